// Package sqlstore is a SQLite-backed privilege store, for deployments that
// want the privilege table queryable by external tooling. It implements
// chandb.PrivilegeStore with the same schema the original server used.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sorajate/soliloque-server/pkg/chandb"
)

const createStmt = `
CREATE TABLE IF NOT EXISTS player_channel_privileges (
	channel_id INTEGER NOT NULL,
	account_id INTEGER NOT NULL,
	level      INTEGER NOT NULL,
	PRIMARY KEY (channel_id, account_id)
)`

// Store manages a SQLite database connection holding privilege records.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

// Open opens a SQLite database, sets WAL mode and busy timeout, and ensures
// the privilege table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening sqlite %s: %w", path, err)
	}
	// Set WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(createStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: creating privilege table: %w", err)
	}
	return &Store{
		db:      db,
		path:    path,
		timeout: 5 * time.Second,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the filesystem path of the database file.
func (s *Store) Path() string {
	return s.path
}

// PutPrivilege upserts the privilege of a registered account. Privileges of
// anonymous players have no durable identity and are rejected.
func (s *Store) PutPrivilege(priv *chandb.Privilege) error {
	reg, ok := priv.Subject.(chandb.Registered)
	if !ok {
		return fmt.Errorf("sqlstore: privilege subject is not a registered account")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("sqlstore: store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO player_channel_privileges (channel_id, account_id, level)
		 VALUES (?, ?, ?)
		 ON CONFLICT (channel_id, account_id) DO UPDATE SET level = excluded.level`,
		priv.Channel.ID, reg.AccountID, priv.Level)
	if err != nil {
		return fmt.Errorf("sqlstore: upsert privilege (channel %d, account %d): %w",
			priv.Channel.ID, reg.AccountID, err)
	}
	return nil
}

// LoadPrivileges rebuilds the stored privilege records for ch, bound to ch
// and ready to be inserted into its privilege collection.
func (s *Store) LoadPrivileges(ch *chandb.Channel) ([]*chandb.Privilege, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("sqlstore: store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, level FROM player_channel_privileges
		 WHERE channel_id = ? ORDER BY account_id`, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query privileges for channel %d: %w", ch.ID, err)
	}
	defer rows.Close()

	var privs []*chandb.Privilege
	for rows.Next() {
		var accountID uint32
		var level uint16
		if err := rows.Scan(&accountID, &level); err != nil {
			return nil, fmt.Errorf("sqlstore: scan privilege row: %w", err)
		}
		privs = append(privs, &chandb.Privilege{
			Channel: ch,
			Subject: chandb.Registered{AccountID: accountID},
			Level:   level,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate privilege rows: %w", err)
	}
	return privs, nil
}

// DeleteChannel removes every privilege scoped to a channel.
func (s *Store) DeleteChannel(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("sqlstore: store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM player_channel_privileges WHERE channel_id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete privileges for channel %d: %w", id, err)
	}
	return nil
}
