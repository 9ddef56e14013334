package chandb

import (
	"errors"
	"fmt"
)

// Subject identifies who a privilege belongs to: either a registered
// account (stable across sessions) or an anonymous in-memory player. The
// discriminant is fixed when the privilege is created.
type Subject interface {
	isSubject()
}

// Registered is the subject of a privilege held by a registered account.
type Registered struct {
	AccountID uint32
}

// Unregistered is the subject of a privilege held by an anonymous player;
// it lives only as long as the player's session.
type Unregistered struct {
	Player *Player
}

func (Registered) isSubject()   {}
func (Unregistered) isSubject() {}

// Privilege is a player's access level within a root channel's scope.
type Privilege struct {
	Channel *Channel
	Subject Subject
	Level   uint16
}

// PrivilegeStore persists privileges of registered accounts to durable
// storage. Implementations must accept the record synchronously; the call
// may block on I/O.
type PrivilegeStore interface {
	PutPrivilege(priv *Privilege) error
}

// Logger is the injected logging collaborator used throughout the model.
// *logrus.Logger satisfies it directly.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Infof(string, ...any)  {}
func (discardLogger) Warnf(string, ...any)  {}
func (discardLogger) Errorf(string, ...any) {}

var ErrPersistence = errors.New("chandb: privilege persistence failed")

// Resolver looks up and lazily creates per-(channel, player) privileges.
// Callers must serialize resolutions for the same channel; two concurrent
// first lookups for one player would otherwise both create a record.
type Resolver struct {
	store PrivilegeStore
	log   Logger

	// Strict makes a failed store write fail the resolution instead of
	// being logged and swallowed.
	Strict bool

	// OnPersistError, when set, observes every failed store write,
	// including the ones Strict would surface anyway.
	OnPersistError func(error)
}

// NewResolver builds a resolver. store may be nil for a purely in-memory
// server; log may be nil to discard.
func NewResolver(store PrivilegeStore, log Logger) *Resolver {
	if log == nil {
		log = discardLogger{}
	}
	return &Resolver{store: store, log: log}
}

// Resolve returns the privilege record for pl in ch's hierarchy, creating
// it if none exists yet. Lookups and creations both go through the root
// channel: subchannels hold no privileges of their own.
//
// A newly created record for a registered player is persisted before it is
// returned, unless the root channel is flagged UNREGISTERED (ephemeral
// channels never persist privileges). A persistence failure is logged and
// the in-memory record returned anyway, unless Strict is set.
func (r *Resolver) Resolve(ch *Channel, pl *Player) (*Privilege, error) {
	root := ch.Root()

	for _, priv := range root.Privileges.Items() {
		switch s := priv.Subject.(type) {
		case Registered:
			if pl.Registered() && s.AccountID == pl.Reg.ID {
				return priv, nil
			}
		case Unregistered:
			if s.Player == pl {
				return priv, nil
			}
		}
	}

	r.log.Infof("chandb: no privileges for player %q in channel %d, creating", pl.Nickname, root.ID)

	priv := &Privilege{Channel: root}
	if pl.Registered() {
		priv.Subject = Registered{AccountID: pl.Reg.ID}
		if root.Flags&FlagUnregistered == 0 && r.store != nil {
			if err := r.store.PutPrivilege(priv); err != nil {
				if r.OnPersistError != nil {
					r.OnPersistError(err)
				}
				if r.Strict {
					return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
				}
				r.log.Warnf("chandb: persisting privilege for account %d in channel %d: %v",
					pl.Reg.ID, root.ID, err)
			}
		}
	} else {
		priv.Subject = Unregistered{Player: pl}
	}
	root.Privileges.Insert(priv)

	return priv, nil
}
