package boltstore

import (
	"bytes"
	"encoding/binary"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta       = []byte("meta")
	bucketChannels   = []byte("channels")
	bucketPrivileges = []byte("privileges")
)

// channelKey converts a channel id to a 4-byte big-endian key, so channels
// iterate in id order.
func channelKey(id uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, id)
	return buf
}

// keyToChannelID converts a channel key back to its id.
func keyToChannelID(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// privilegeKey builds the composite (channel id, account id) key. Keys of
// one channel share the channel-id prefix, so a cursor seek plus prefix
// scan visits exactly that channel's privileges.
func privilegeKey(channelID, accountID uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], channelID)
	binary.BigEndian.PutUint32(buf[4:8], accountID)
	return buf
}

func hasPrefix(k, prefix []byte) bool {
	return k != nil && bytes.HasPrefix(k, prefix)
}
