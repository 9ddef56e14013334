// Package chandb holds the in-memory data model of the voice server: the
// channel hierarchy, connected players, and per-channel player privileges.
// It mirrors the channel semantics of the original TeamSpeak protocol:
// channels form a two-level tree (root channels and their subchannels), and
// a subchannel delegates its flags, password and privileges to its root.
package chandb

import (
	"errors"
	"fmt"
	"strings"
)

// Channel flag bits, wire-compatible with the original protocol.
const (
	FlagUnregistered uint16 = 0x0001 // ephemeral channel, privileges never persisted
	FlagModerated    uint16 = 0x0002
	FlagPassword     uint16 = 0x0004
	FlagSubchannels  uint16 = 0x0008
	FlagDefault      uint16 = 0x0010 // server auto-join channel, exempt from capacity
)

// Codec identifies a channel's audio codec on the wire.
type Codec uint16

const (
	CodecCELP51    Codec = 0
	CodecCELP63    Codec = 1
	CodecGSM148    Codec = 2
	CodecGSM164    Codec = 3
	CodecCELPWin52 Codec = 4
	CodecSpeex34   Codec = 5
	CodecSpeex52   Codec = 6
	CodecSpeex72   Codec = 7
	CodecSpeex93   Codec = 8
	CodecSpeex123  Codec = 9
	CodecSpeex163  Codec = 10
	CodecSpeex196  Codec = 11
	CodecSpeex259  Codec = 12
)

func (c Codec) String() string {
	switch c {
	case CodecCELP51:
		return "CELP 5.1"
	case CodecCELP63:
		return "CELP 6.3"
	case CodecGSM148:
		return "GSM 14.8"
	case CodecGSM164:
		return "GSM 16.4"
	case CodecCELPWin52:
		return "CELP Windows 5.2"
	case CodecSpeex34:
		return "Speex 3.4"
	case CodecSpeex52:
		return "Speex 5.2"
	case CodecSpeex72:
		return "Speex 7.2"
	case CodecSpeex93:
		return "Speex 9.3"
	case CodecSpeex123:
		return "Speex 12.3"
	case CodecSpeex163:
		return "Speex 16.3"
	case CodecSpeex196:
		return "Speex 19.6"
	case CodecSpeex259:
		return "Speex 25.9"
	default:
		return "unknown"
	}
}

// PasswordLen is the size of the fixed password slot on the wire.
const PasswordLen = 30

// NoParent is the wire sentinel for a channel without a parent.
const NoParent uint32 = 0xFFFFFFFF

var (
	ErrInvalidText   = errors.New("chandb: text field contains a NUL byte")
	ErrNoSubchannels = errors.New("chandb: channel can not have subchannels")
	ErrDepthExceeded = errors.New("chandb: subchannel can not have subchannels of its own")
	ErrSelfParent    = errors.New("chandb: channel can not be its own parent")
	ErrNotSubchannel = errors.New("chandb: channel is not a subchannel of this parent")
	ErrChannelFull   = errors.New("chandb: channel is full")
	ErrNotProtected  = errors.New("chandb: channel is not password protected")
	ErrPasswordSize  = errors.New("chandb: password hash exceeds slot size")
)

// Channel is a single voice channel. ID is zero until the channel is
// registered with a server; ParentID is only meaningful right after a wire
// decode, before the real parent reference has been resolved.
type Channel struct {
	ID        uint32
	Name      string
	Topic     string
	Desc      string
	Flags     uint16
	Codec     Codec
	SortOrder uint16

	password [PasswordLen]byte

	Parent   *Channel
	ParentID uint32

	Subchannels *Collection[*Channel]
	Members     *Collection[*Player]
	Privileges  *Collection[*Privilege]
}

// NewChannel builds an unregistered channel. The three text fields must not
// contain NUL bytes (they are NUL-terminated on the wire); a violation fails
// the whole construction.
func NewChannel(name, topic, desc string, flags uint16, codec Codec, sortOrder, maxUsers uint16) (*Channel, error) {
	for _, f := range []struct{ field, text string }{
		{"name", name},
		{"topic", topic},
		{"description", desc},
	} {
		if strings.IndexByte(f.text, 0) >= 0 {
			return nil, fmt.Errorf("chandb: channel %s: %w", f.field, ErrInvalidText)
		}
	}

	return &Channel{
		Name:        name,
		Topic:       topic,
		Desc:        desc,
		Flags:       flags,
		Codec:       codec,
		SortOrder:   sortOrder,
		ParentID:    NoParent,
		Subchannels: NewCollection[*Channel](Unbounded),
		Members:     NewCollection[*Player](int(maxUsers)),
		Privileges:  NewCollection[*Privilege](Unbounded),
	}, nil
}

// NewPredefChannel builds a throwaway channel with test defaults, matching
// the predefined channel of the original server.
func NewPredefChannel() *Channel {
	ch, err := NewChannel("Channel name", "Channel topic", "Channel description",
		0, CodecSpeex196, 0, 16)
	if err != nil {
		// Static inputs; a failure here is a programming error.
		panic(err)
	}
	return ch
}

// MaxUsers returns the member capacity as carried on the wire.
func (c *Channel) MaxUsers() uint16 {
	return uint16(c.Members.MaxSlots())
}

// Root follows the parent link to the authoritative channel of the
// hierarchy. By the depth invariant this is at most one hop.
func (c *Channel) Root() *Channel {
	if c.Parent != nil {
		return c.Parent
	}
	return c
}

// EffectiveFlags returns the channel's own flags for a root channel, or the
// parent's flags for a subchannel. A subchannel can not itself hold
// subchannels and can not be the default channel, so those bits are cleared.
func (c *Channel) EffectiveFlags() uint16 {
	if c.Parent == nil {
		return c.Flags
	}
	return c.Parent.Flags &^ (FlagSubchannels | FlagDefault)
}

// SetPassword stores a pre-hashed credential in the fixed password slot.
// The hash must fit in PasswordLen bytes; shorter hashes are zero-padded.
func (c *Channel) SetPassword(hash []byte) error {
	if len(hash) > PasswordLen {
		return ErrPasswordSize
	}
	c.password = [PasswordLen]byte{}
	copy(c.password[:], hash)
	return nil
}

// ClearPassword resets the password slot to the empty sentinel.
func (c *Channel) ClearPassword() {
	c.password = [PasswordLen]byte{}
}

// EffectivePassword returns the root channel's stored password hash.
// Querying a channel whose root is not password protected is a usage error
// and reported as ErrNotProtected rather than returning an empty slot.
func (c *Channel) EffectivePassword() ([PasswordLen]byte, error) {
	root := c.Root()
	if root.Flags&FlagPassword == 0 {
		return [PasswordLen]byte{}, ErrNotProtected
	}
	return root.password, nil
}

// AddSubchannel attaches child below c. The target must accept subchannels
// (per its effective flags, so a subchannel never qualifies), and the child
// must not bring its own children along or the depth invariant would break.
// A child with a different current parent is re-parented implicitly.
func (c *Channel) AddSubchannel(child *Channel) error {
	if c.EffectiveFlags()&FlagSubchannels == 0 {
		return fmt.Errorf("chandb: channel %d %q: %w", c.ID, c.Name, ErrNoSubchannels)
	}
	if child == c {
		return ErrSelfParent
	}
	if child.Subchannels.Used() > 0 {
		return ErrDepthExceeded
	}
	if child.Parent == c {
		return nil
	}
	if child.Parent != nil {
		if err := child.Parent.RemoveSubchannel(child); err != nil {
			return err
		}
	}
	child.Parent = c
	c.Subchannels.Insert(child)
	return nil
}

// RemoveSubchannel detaches child from c without destroying it.
func (c *Channel) RemoveSubchannel(child *Channel) error {
	if child.Parent != c {
		return ErrNotSubchannel
	}
	c.Subchannels.Remove(child)
	child.Parent = nil
	return nil
}

// IsFull reports whether the channel can take no more members. The default
// channel has no practical limit: it is only full at the ceiling of the
// used-count itself.
func (c *Channel) IsFull() bool {
	if c.EffectiveFlags()&FlagDefault != 0 {
		return c.Members.Used() == Unbounded
	}
	return c.Members.Full()
}

// AddMember puts pl into the channel and updates the player's current
// channel. The player is NOT removed from any channel they already occupy;
// callers move players via Server.MovePlayer, which vacates first.
func (c *Channel) AddMember(pl *Player) error {
	if c.IsFull() {
		return fmt.Errorf("chandb: channel %d %q: %w", c.ID, c.Name, ErrChannelFull)
	}
	c.Members.Insert(pl)
	pl.Channel = c
	return nil
}

// RemoveMember takes pl out of the channel, clearing the player's current
// channel if it still points here.
func (c *Channel) RemoveMember(pl *Player) {
	c.Members.Remove(pl)
	if pl.Channel == c {
		pl.Channel = nil
	}
}

// LogTo writes a human-readable dump of the channel, for debugging.
func (c *Channel) LogTo(log Logger) {
	if c == nil {
		log.Infof("Channel nil")
		return
	}
	log.Infof("Channel ID %d", c.ID)
	log.Infof("\t name    : %s", c.Name)
	log.Infof("\t topic   : %s", c.Topic)
	log.Infof("\t desc    : %s", c.Desc)
	if c.EffectiveFlags()&FlagDefault != 0 {
		log.Infof("\t default : y")
	}
}
