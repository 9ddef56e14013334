// Package boltstore persists the server's registered channels and the
// privileges of registered accounts in a bbolt database. Channels are kept
// in their wire encoding, so the on-disk format is the same one clients
// see; privileges are small gob records keyed by (channel id, account id).
package boltstore

import (
	"fmt"
	"os"

	bbolt "go.etcd.io/bbolt"

	"github.com/sorajate/soliloque-server/pkg/chandb"
	"github.com/sorajate/soliloque-server/pkg/wire"
)

// Store wraps a bbolt database. It implements chandb.PrivilegeStore.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketChannels, bucketPrivileges} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Remove deletes the database file. The store must already be closed.
func (s *Store) Remove() error {
	return os.Remove(s.Path())
}

// PutChannel persists a single registered channel (write-through).
func (s *Store) PutChannel(ch *chandb.Channel) error {
	data := wire.AppendChannel(ch, nil)
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChannels).Put(channelKey(ch.ID), data)
	})
}

// DeleteChannel removes a channel and all privileges scoped to it.
func (s *Store) DeleteChannel(id uint32) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketChannels).Delete(channelKey(id)); err != nil {
			return err
		}
		c := tx.Bucket(bucketPrivileges).Cursor()
		prefix := channelKey(id)
		for k, _ := c.Seek(prefix); hasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadChannels reads every stored channel, in key order. The returned
// channels are unlinked; callers resolve ParentID references once the whole
// set is loaded.
func (s *Store) LoadChannels() ([]*chandb.Channel, error) {
	var channels []*chandb.Channel
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChannels).ForEach(func(k, v []byte) error {
			ch, _, err := wire.DecodeChannel(v)
			if err != nil {
				return fmt.Errorf("channel %d: %w", keyToChannelID(k), err)
			}
			channels = append(channels, ch)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: load channels: %w", err)
	}
	return channels, nil
}

// PutPrivilege persists the privilege of a registered account. Privileges
// of anonymous players have no durable identity and are rejected.
func (s *Store) PutPrivilege(priv *chandb.Privilege) error {
	reg, ok := priv.Subject.(chandb.Registered)
	if !ok {
		return fmt.Errorf("boltstore: privilege subject is not a registered account")
	}
	rec := privilegeRecord{
		ChannelID: priv.Channel.ID,
		AccountID: reg.AccountID,
		Level:     priv.Level,
	}
	data, err := encodePrivilege(&rec)
	if err != nil {
		return fmt.Errorf("boltstore: encode privilege: %w", err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPrivileges).Put(privilegeKey(rec.ChannelID, rec.AccountID), data)
	})
}

// LoadPrivileges rebuilds the stored privilege records for ch and returns
// them bound to ch, ready to be inserted into its privilege collection.
func (s *Store) LoadPrivileges(ch *chandb.Channel) ([]*chandb.Privilege, error) {
	var privs []*chandb.Privilege
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPrivileges).Cursor()
		prefix := channelKey(ch.ID)
		for k, v := c.Seek(prefix); hasPrefix(k, prefix); k, v = c.Next() {
			rec, err := decodePrivilege(v)
			if err != nil {
				return err
			}
			privs = append(privs, &chandb.Privilege{
				Channel: ch,
				Subject: chandb.Registered{AccountID: rec.AccountID},
				Level:   rec.Level,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: load privileges for channel %d: %w", ch.ID, err)
	}
	return privs, nil
}
