// Package server owns a running voice server instance: its channel tree,
// connected players, and the wiring between the in-memory model and the
// persistence stores.
package server

import (
	"errors"
	"fmt"

	"github.com/sorajate/soliloque-server/pkg/chandb"
	"github.com/sorajate/soliloque-server/pkg/events"
)

var (
	ErrChannelNotFound = errors.New("server: channel not found")
	ErrHasSubchannels  = errors.New("server: channel still has subchannels")
	ErrParentNotFound  = errors.New("server: parent channel not found")
)

// ChannelStore persists the channel tree and the privileges attached to it.
// *boltstore.Store implements it.
type ChannelStore interface {
	PutChannel(ch *chandb.Channel) error
	DeleteChannel(id uint32) error
	LoadChannels() ([]*chandb.Channel, error)
	LoadPrivileges(ch *chandb.Channel) ([]*chandb.Privilege, error)
}

// Server is a single voice server instance. Access is owner-serialized:
// the model packages do no locking of their own, so all structural
// mutations must come through one goroutine.
type Server struct {
	Channels *chandb.Collection[*chandb.Channel]
	Players  *chandb.Collection[*chandb.Player]

	Name    string
	Machine string
	Version [4]uint16

	password [chandb.PasswordLen]byte

	log       chandb.Logger
	resolver  *chandb.Resolver
	chanStore ChannelStore
	metrics   *Metrics
	bus       *events.Bus

	nextChanID uint32
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// New creates an empty server. privStore receives newly created privileges
// of registered accounts and may be nil; log may be nil to discard.
func New(name, machine string, privStore chandb.PrivilegeStore, log chandb.Logger) *Server {
	if log == nil {
		log = noopLogger{}
	}
	return &Server{
		Channels:   chandb.NewCollection[*chandb.Channel](chandb.Unbounded),
		Players:    chandb.NewCollection[*chandb.Player](chandb.Unbounded),
		Name:       name,
		Machine:    machine,
		Version:    [4]uint16{2, 0, 20, 1},
		log:        log,
		resolver:   chandb.NewResolver(privStore, log),
		nextChanID: 1,
	}
}

// SetPassword stores the server-wide connection password hash, sized like
// a channel password slot.
func (s *Server) SetPassword(hash []byte) error {
	if len(hash) > chandb.PasswordLen {
		return chandb.ErrPasswordSize
	}
	s.password = [chandb.PasswordLen]byte{}
	copy(s.password[:], hash)
	return nil
}

// Password returns the server-wide password hash slot.
func (s *Server) Password() [chandb.PasswordLen]byte {
	return s.password
}

// UseChannelStore turns on write-through channel persistence.
func (s *Server) UseChannelStore(store ChannelStore) {
	s.chanStore = store
}

// UseBus attaches an event bus; structural changes are emitted to it.
func (s *Server) UseBus(bus *events.Bus) {
	s.bus = bus
}

func (s *Server) emit(ev events.Event) {
	if s.bus != nil {
		s.bus.Emit(ev)
	}
}

// UseMetrics attaches an observability collector.
func (s *Server) UseMetrics(m *Metrics) {
	s.metrics = m
	m.SetServer(s)
	s.resolver.OnPersistError = func(error) {
		m.privilegePersistErrors.Inc()
	}
}

// AddChannel registers ch, assigning its id. Channels get their identity
// here, not in the constructor.
func (s *Server) AddChannel(ch *chandb.Channel) error {
	for s.ChannelByID(s.nextChanID) != nil {
		s.nextChanID++
	}
	ch.ID = s.nextChanID
	s.nextChanID++
	s.Channels.Insert(ch)

	if s.chanStore != nil && ch.Flags&chandb.FlagUnregistered == 0 {
		if err := s.chanStore.PutChannel(ch); err != nil {
			return fmt.Errorf("server: persist channel %d: %w", ch.ID, err)
		}
	}
	if s.metrics != nil {
		s.metrics.channelsTotal.Inc()
	}
	s.log.Infof("channel %d (%s) created", ch.ID, ch.Name)
	s.emit(events.Event{Type: events.EvChannelCreated, Channel: ch})
	return nil
}

// ChannelByID returns the channel with the given id, or nil.
func (s *Server) ChannelByID(id uint32) *chandb.Channel {
	for _, ch := range s.Channels.Items() {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

// DefaultChannel returns the server's auto-join channel, or nil when none
// is flagged.
func (s *Server) DefaultChannel() *chandb.Channel {
	for _, ch := range s.Channels.Items() {
		if ch.Flags&chandb.FlagDefault != 0 {
			return ch
		}
	}
	return nil
}

// RemoveChannel unregisters the channel with the given id. A channel that
// still has subchannels is refused: removing it would leave the children
// pointing at a dead parent, so callers detach or remove them first.
// Members are released individually and left without a current channel.
func (s *Server) RemoveChannel(id uint32) error {
	ch := s.ChannelByID(id)
	if ch == nil {
		return fmt.Errorf("server: remove channel %d: %w", id, ErrChannelNotFound)
	}
	if ch.Subchannels.Used() > 0 {
		return fmt.Errorf("server: remove channel %d: %w", id, ErrHasSubchannels)
	}
	if ch.Parent != nil {
		if err := ch.Parent.RemoveSubchannel(ch); err != nil {
			return err
		}
	}
	for _, pl := range append([]*chandb.Player(nil), ch.Members.Items()...) {
		ch.RemoveMember(pl)
	}
	s.Channels.Remove(ch)

	if s.chanStore != nil {
		if err := s.chanStore.DeleteChannel(id); err != nil {
			return fmt.Errorf("server: delete channel %d from store: %w", id, err)
		}
	}
	if s.metrics != nil {
		s.metrics.channelsTotal.Dec()
	}
	s.emit(events.Event{Type: events.EvChannelRemoved, Channel: ch})
	return nil
}

// Restore loads the persisted channel tree from store, links parents, and
// rebuilds each root channel's privilege collection. It replaces the
// current (normally empty) channel set.
func (s *Server) Restore(store ChannelStore) error {
	channels, err := store.LoadChannels()
	if err != nil {
		return err
	}
	for _, ch := range channels {
		s.Channels.Insert(ch)
		if ch.ID >= s.nextChanID {
			s.nextChanID = ch.ID + 1
		}
	}
	if err := s.LinkDecoded(channels); err != nil {
		return err
	}
	for _, ch := range channels {
		if ch.Parent != nil {
			continue
		}
		privs, err := store.LoadPrivileges(ch)
		if err != nil {
			return err
		}
		for _, priv := range privs {
			ch.Privileges.Insert(priv)
		}
	}
	if s.metrics != nil {
		s.metrics.channelsTotal.Set(float64(s.Channels.Used()))
	}
	s.log.Infof("restored %d channels", s.Channels.Used())
	return nil
}

// LinkDecoded resolves the transient ParentID carried by freshly decoded
// channels into real parent references. Every channel named as a parent
// must already be registered with the server.
func (s *Server) LinkDecoded(channels []*chandb.Channel) error {
	for _, ch := range channels {
		if ch.ParentID == chandb.NoParent {
			continue
		}
		parent := s.ChannelByID(ch.ParentID)
		if parent == nil {
			return fmt.Errorf("server: channel %d references parent %d: %w",
				ch.ID, ch.ParentID, ErrParentNotFound)
		}
		if err := parent.AddSubchannel(ch); err != nil {
			return err
		}
		ch.ParentID = chandb.NoParent
	}
	return nil
}

// AddPlayer registers a connected player.
func (s *Server) AddPlayer(pl *chandb.Player) {
	s.Players.Insert(pl)
	if s.metrics != nil {
		s.metrics.playersConnected.Inc()
	}
}

// RemovePlayer drops a player from the server and from whatever channel
// they occupy.
func (s *Server) RemovePlayer(pl *chandb.Player) {
	if ch := pl.Channel; ch != nil {
		ch.RemoveMember(pl)
		s.emit(events.Event{Type: events.EvPlayerLeft, Channel: ch, Player: pl})
	}
	if s.Players.Remove(pl) && s.metrics != nil {
		s.metrics.playersConnected.Dec()
	}
}

// PlayerByIDs returns the player matching both ids, or nil.
func (s *Server) PlayerByIDs(pubID, privID uint32) *chandb.Player {
	for _, pl := range s.Players.Items() {
		if pl.PublicID == pubID && pl.PrivateID == privID {
			return pl
		}
	}
	return nil
}

// PlayerByPublicID returns the player with the given public id, or nil.
func (s *Server) PlayerByPublicID(pubID uint32) *chandb.Player {
	for _, pl := range s.Players.Items() {
		if pl.PublicID == pubID {
			return pl
		}
	}
	return nil
}

// MovePlayer moves pl into the target channel, vacating the current one
// first so the player is never counted in two channels. On a full target
// the player stays where they are.
func (s *Server) MovePlayer(pl *chandb.Player, to *chandb.Channel) error {
	if pl.Channel == to {
		return nil
	}
	if to.IsFull() {
		return fmt.Errorf("server: move player %d: %w", pl.PublicID, chandb.ErrChannelFull)
	}
	from := pl.Channel
	if from != nil {
		from.RemoveMember(pl)
	}
	if err := to.AddMember(pl); err != nil {
		return err
	}
	if from == nil {
		s.emit(events.Event{Type: events.EvPlayerJoined, Channel: to, Player: pl})
	} else {
		s.emit(events.Event{Type: events.EvPlayerMoved, Channel: to, From: from, Player: pl})
	}
	return nil
}

// ResolvePrivilege returns (creating if absent) pl's privilege record for
// ch's hierarchy.
func (s *Server) ResolvePrivilege(ch *chandb.Channel, pl *chandb.Player) (*chandb.Privilege, error) {
	priv, err := s.resolver.Resolve(ch, pl)
	if s.metrics != nil {
		s.metrics.privilegesResolved.Inc()
	}
	return priv, err
}
