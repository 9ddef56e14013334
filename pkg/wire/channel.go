// Package wire implements the binary layout channels take on the network.
// A channel is a 16-byte little-endian header followed by three
// NUL-terminated UTF-8 strings (name, topic, description):
//
//	offset 0  u32  channel id
//	offset 4  u16  flags (stored, not effective)
//	offset 6  u16  codec
//	offset 8  u32  parent id, 0xFFFFFFFF when the channel has no parent
//	offset 12 u16  sort order
//	offset 14 u16  max members
//
// The layout is the compatibility contract with existing clients and must
// byte-match the original protocol.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sorajate/soliloque-server/pkg/chandb"
)

// HeaderSize is the fixed portion of an encoded channel.
const HeaderSize = 16

var (
	ErrShortBuffer  = errors.New("wire: destination buffer too small")
	ErrTruncated    = errors.New("wire: channel payload truncated")
	ErrUnterminated = errors.New("wire: string terminator not found")
)

// EncodedSize returns the exact number of bytes EncodeChannel will write
// for ch.
func EncodedSize(ch *chandb.Channel) int {
	return HeaderSize + len(ch.Name) + 1 + len(ch.Topic) + 1 + len(ch.Desc) + 1
}

// EncodeChannel writes ch into buf and returns the number of bytes written,
// which always equals EncodedSize(ch). buf must be at least that large.
func EncodeChannel(ch *chandb.Channel, buf []byte) (int, error) {
	size := EncodedSize(ch)
	if len(buf) < size {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, size, len(buf))
	}

	binary.LittleEndian.PutUint32(buf[0:4], ch.ID)
	binary.LittleEndian.PutUint16(buf[4:6], ch.Flags)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(ch.Codec))
	if ch.Parent == nil {
		binary.LittleEndian.PutUint32(buf[8:12], chandb.NoParent)
	} else {
		binary.LittleEndian.PutUint32(buf[8:12], ch.Parent.ID)
	}
	binary.LittleEndian.PutUint16(buf[12:14], ch.SortOrder)
	binary.LittleEndian.PutUint16(buf[14:16], ch.MaxUsers())

	off := HeaderSize
	for _, s := range []string{ch.Name, ch.Topic, ch.Desc} {
		off += copy(buf[off:], s)
		buf[off] = 0
		off++
	}

	if off != size {
		return 0, fmt.Errorf("wire: encoded %d bytes, expected %d", off, size)
	}
	return size, nil
}

// AppendChannel appends the encoding of ch to buf and returns the extended
// slice.
func AppendChannel(ch *chandb.Channel, buf []byte) []byte {
	out := append(buf, make([]byte, EncodedSize(ch))...)
	// The destination is sized exactly; EncodeChannel can not fail here.
	if _, err := EncodeChannel(ch, out[len(buf):]); err != nil {
		panic(err)
	}
	return out
}

// DecodeChannel reads one channel from data and returns it together with
// the number of bytes consumed. Each string is located by an explicit
// bounded search for its terminator; a missing terminator fails the decode
// rather than scanning past the payload.
//
// The returned channel is unlinked: when the payload carries a parent id,
// it is stored in the transient ParentID field for the caller to resolve
// once all channels are loaded.
func DecodeChannel(data []byte) (*chandb.Channel, int, error) {
	if len(data) < HeaderSize {
		return nil, 0, fmt.Errorf("%w: %d byte header, need %d", ErrTruncated, len(data), HeaderSize)
	}

	id := binary.LittleEndian.Uint32(data[0:4])
	flags := binary.LittleEndian.Uint16(data[4:6])
	codec := binary.LittleEndian.Uint16(data[6:8])
	parentID := binary.LittleEndian.Uint32(data[8:12])
	sortOrder := binary.LittleEndian.Uint16(data[12:14])
	maxUsers := binary.LittleEndian.Uint16(data[14:16])

	off := HeaderSize
	var texts [3]string
	for i, field := range [3]string{"name", "topic", "description"} {
		end := bytes.IndexByte(data[off:], 0)
		if end < 0 {
			return nil, 0, fmt.Errorf("wire: channel %s: %w", field, ErrUnterminated)
		}
		texts[i] = string(data[off : off+end])
		off += end + 1
	}

	ch, err := chandb.NewChannel(texts[0], texts[1], texts[2], flags,
		chandb.Codec(codec), sortOrder, maxUsers)
	if err != nil {
		return nil, 0, fmt.Errorf("wire: decode channel: %w", err)
	}
	ch.ID = id
	if parentID != chandb.NoParent {
		ch.ParentID = parentID
	}

	return ch, off, nil
}
