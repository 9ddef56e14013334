package server

import (
	"errors"
	"testing"

	"github.com/sorajate/soliloque-server/pkg/chandb"
	"github.com/sorajate/soliloque-server/pkg/events"
)

// memStore is an in-memory ChannelStore for tests.
type memStore struct {
	channels map[uint32][]byte
	privs    map[uint32][]*chandb.Privilege
	puts     int
}

func newMemStore() *memStore {
	return &memStore{
		channels: make(map[uint32][]byte),
		privs:    make(map[uint32][]*chandb.Privilege),
	}
}

func (m *memStore) PutChannel(ch *chandb.Channel) error {
	m.channels[ch.ID] = nil
	m.puts++
	return nil
}

func (m *memStore) DeleteChannel(id uint32) error {
	delete(m.channels, id)
	delete(m.privs, id)
	return nil
}

func (m *memStore) LoadChannels() ([]*chandb.Channel, error) {
	return nil, nil
}

func (m *memStore) LoadPrivileges(ch *chandb.Channel) ([]*chandb.Privilege, error) {
	return m.privs[ch.ID], nil
}

func mustChannel(t *testing.T, name string, flags uint16, maxUsers uint16) *chandb.Channel {
	t.Helper()
	ch, err := chandb.NewChannel(name, "topic", "desc", flags, chandb.CodecSpeex196, 0, maxUsers)
	if err != nil {
		t.Fatalf("NewChannel(%q): %v", name, err)
	}
	return ch
}

func TestAddChannelAssignsIDs(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	a := mustChannel(t, "a", 0, 16)
	b := mustChannel(t, "b", 0, 16)

	if err := s.AddChannel(a); err != nil {
		t.Fatalf("AddChannel(a): %v", err)
	}
	if err := s.AddChannel(b); err != nil {
		t.Fatalf("AddChannel(b): %v", err)
	}
	if a.ID == 0 || b.ID == 0 {
		t.Fatal("registration must assign nonzero ids")
	}
	if a.ID == b.ID {
		t.Fatalf("duplicate channel id %d", a.ID)
	}
	if s.ChannelByID(a.ID) != a || s.ChannelByID(b.ID) != b {
		t.Error("ChannelByID should find registered channels")
	}
	if s.ChannelByID(9999) != nil {
		t.Error("ChannelByID of an unknown id should return nil")
	}
}

func TestServerPassword(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	if err := s.SetPassword(chandb.HashPassword("hunter2")); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if s.Password() == [chandb.PasswordLen]byte{} {
		t.Error("password slot should not be empty after SetPassword")
	}
	if err := s.SetPassword(make([]byte, chandb.PasswordLen+1)); !errors.Is(err, chandb.ErrPasswordSize) {
		t.Errorf("expected ErrPasswordSize, got %v", err)
	}
}

func TestDefaultChannel(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	if s.DefaultChannel() != nil {
		t.Error("empty server has no default channel")
	}
	plain := mustChannel(t, "plain", 0, 16)
	def := mustChannel(t, "default", chandb.FlagDefault, 16)
	for _, ch := range []*chandb.Channel{plain, def} {
		if err := s.AddChannel(ch); err != nil {
			t.Fatalf("AddChannel: %v", err)
		}
	}
	if s.DefaultChannel() != def {
		t.Error("DefaultChannel should return the DEFAULT-flagged channel")
	}
}

func TestRemoveChannel(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	root := mustChannel(t, "root", chandb.FlagSubchannels, 16)
	sub := mustChannel(t, "sub", 0, 16)
	if err := s.AddChannel(root); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if err := root.AddSubchannel(sub); err != nil {
		t.Fatalf("AddSubchannel: %v", err)
	}
	if err := s.AddChannel(sub); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	// A channel with live subchannels is refused; children first.
	if err := s.RemoveChannel(root.ID); !errors.Is(err, ErrHasSubchannels) {
		t.Fatalf("expected ErrHasSubchannels, got %v", err)
	}

	pl := &chandb.Player{PublicID: 1}
	if err := sub.AddMember(pl); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := s.RemoveChannel(sub.ID); err != nil {
		t.Fatalf("RemoveChannel(sub): %v", err)
	}
	if sub.Parent != nil {
		t.Error("removed subchannel should be detached from its parent")
	}
	if root.Subchannels.Used() != 0 {
		t.Error("parent should no longer list the removed subchannel")
	}
	if pl.Channel != nil {
		t.Error("members of a removed channel are released")
	}
	if err := s.RemoveChannel(root.ID); err != nil {
		t.Fatalf("RemoveChannel(root): %v", err)
	}
	if err := s.RemoveChannel(root.ID); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestRemoveChannelDeletesFromStore(t *testing.T) {
	store := newMemStore()
	s := New("test", "testbox", nil, nil)
	s.UseChannelStore(store)

	ch := mustChannel(t, "ch", 0, 16)
	if err := s.AddChannel(ch); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if _, ok := store.channels[ch.ID]; !ok {
		t.Fatal("AddChannel should write through to the store")
	}
	if err := s.RemoveChannel(ch.ID); err != nil {
		t.Fatalf("RemoveChannel: %v", err)
	}
	if _, ok := store.channels[ch.ID]; ok {
		t.Error("RemoveChannel should delete from the store")
	}

	// UNREGISTERED channels stay out of the store entirely.
	adhoc := mustChannel(t, "adhoc", chandb.FlagUnregistered, 16)
	if err := s.AddChannel(adhoc); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if _, ok := store.channels[adhoc.ID]; ok {
		t.Error("UNREGISTERED channel must not be persisted")
	}
}

func TestMovePlayer(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	a := mustChannel(t, "a", 0, 16)
	b := mustChannel(t, "b", 0, 1)
	for _, ch := range []*chandb.Channel{a, b} {
		if err := s.AddChannel(ch); err != nil {
			t.Fatalf("AddChannel: %v", err)
		}
	}

	pl := &chandb.Player{PublicID: 1}
	s.AddPlayer(pl)
	if err := s.MovePlayer(pl, a); err != nil {
		t.Fatalf("MovePlayer to a: %v", err)
	}
	if err := s.MovePlayer(pl, b); err != nil {
		t.Fatalf("MovePlayer to b: %v", err)
	}
	if pl.Channel != b {
		t.Error("player should be in channel b")
	}
	if a.Members.Used() != 0 {
		t.Error("player must be vacated from the previous channel")
	}

	// A full target leaves the player where they are.
	other := &chandb.Player{PublicID: 2}
	s.AddPlayer(other)
	if err := s.MovePlayer(other, a); err != nil {
		t.Fatalf("MovePlayer(other, a): %v", err)
	}
	if err := s.MovePlayer(other, b); !errors.Is(err, chandb.ErrChannelFull) {
		t.Fatalf("expected ErrChannelFull, got %v", err)
	}
	if other.Channel != a {
		t.Error("failed move must not vacate the player")
	}

	s.RemovePlayer(pl)
	if b.Members.Used() != 0 {
		t.Error("RemovePlayer should vacate the player's channel")
	}
	if s.PlayerByPublicID(pl.PublicID) != nil {
		t.Error("removed player should be gone from the server")
	}
}

func TestPlayerLookup(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	pl := &chandb.Player{PublicID: 10, PrivateID: 20}
	s.AddPlayer(pl)

	if s.PlayerByIDs(10, 20) != pl {
		t.Error("PlayerByIDs should match on both ids")
	}
	if s.PlayerByIDs(10, 21) != nil {
		t.Error("PlayerByIDs must not match on a wrong private id")
	}
	if s.PlayerByPublicID(10) != pl {
		t.Error("PlayerByPublicID should find the player")
	}
}

func TestLinkDecoded(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	root := mustChannel(t, "root", chandb.FlagSubchannels, 16)
	sub := mustChannel(t, "sub", 0, 16)
	if err := s.AddChannel(root); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if err := s.AddChannel(sub); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}

	sub.ParentID = root.ID
	if err := s.LinkDecoded([]*chandb.Channel{root, sub}); err != nil {
		t.Fatalf("LinkDecoded: %v", err)
	}
	if sub.Parent != root {
		t.Error("transient parent id should resolve to the real parent")
	}
	if sub.ParentID != chandb.NoParent {
		t.Error("ParentID must be cleared once linked")
	}

	orphan := mustChannel(t, "orphan", 0, 16)
	if err := s.AddChannel(orphan); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	orphan.ParentID = 9999
	err := s.LinkDecoded([]*chandb.Channel{orphan})
	if !errors.Is(err, ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}
}

// recordingSub collects emitted events.
type recordingSub struct {
	events []events.Event
}

func (r *recordingSub) Receive(ev events.Event) { r.events = append(r.events, ev) }
func (r *recordingSub) Closed() bool            { return false }

func TestServerEmitsEvents(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	sub := &recordingSub{}
	bus := events.NewBus()
	bus.Subscribe(sub)
	s.UseBus(bus)

	a := mustChannel(t, "a", 0, 16)
	b := mustChannel(t, "b", 0, 16)
	for _, ch := range []*chandb.Channel{a, b} {
		if err := s.AddChannel(ch); err != nil {
			t.Fatalf("AddChannel: %v", err)
		}
	}
	pl := &chandb.Player{PublicID: 1}
	s.AddPlayer(pl)
	if err := s.MovePlayer(pl, a); err != nil {
		t.Fatalf("MovePlayer to a: %v", err)
	}
	if err := s.MovePlayer(pl, b); err != nil {
		t.Fatalf("MovePlayer to b: %v", err)
	}
	s.RemovePlayer(pl)
	if err := s.RemoveChannel(a.ID); err != nil {
		t.Fatalf("RemoveChannel: %v", err)
	}

	want := []events.EventType{
		events.EvChannelCreated,
		events.EvChannelCreated,
		events.EvPlayerJoined,
		events.EvPlayerMoved,
		events.EvPlayerLeft,
		events.EvChannelRemoved,
	}
	if len(sub.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(sub.events))
	}
	for i, w := range want {
		if sub.events[i].Type != w {
			t.Errorf("event %d: expected %v, got %v", i, w, sub.events[i].Type)
		}
	}
	if sub.events[3].From != a || sub.events[3].Channel != b {
		t.Error("move event should carry both channels")
	}
}

func TestResolvePrivilegeDelegates(t *testing.T) {
	s := New("test", "testbox", nil, nil)
	ch := mustChannel(t, "root", 0, 16)
	if err := s.AddChannel(ch); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	pl := &chandb.Player{
		GlobalFlags: chandb.GlobalFlagRegistered,
		Reg:         &chandb.Registration{ID: 5},
	}
	s.AddPlayer(pl)

	priv, err := s.ResolvePrivilege(ch, pl)
	if err != nil {
		t.Fatalf("ResolvePrivilege: %v", err)
	}
	again, err := s.ResolvePrivilege(ch, pl)
	if err != nil {
		t.Fatalf("ResolvePrivilege: %v", err)
	}
	if priv != again {
		t.Error("repeated resolution should return the same record")
	}
}
