package boltstore

import (
	"bytes"
	"encoding/gob"
)

// privilegeRecord is the stored form of a registered account's privilege.
type privilegeRecord struct {
	ChannelID uint32
	AccountID uint32
	Level     uint16
}

// encodePrivilege serializes a privilegeRecord to bytes using gob.
func encodePrivilege(rec *privilegeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodePrivilege deserializes bytes back into a privilegeRecord.
func decodePrivilege(data []byte) (*privilegeRecord, error) {
	var rec privilegeRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
