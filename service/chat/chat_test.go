package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"RentChat/module/chat/store"
)

// fakeClock makes heartbeat expiry and ordering deterministic in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

type fixture struct {
	clock *fakeClock
	store *store.MemoryStore
	mgr   *ConnManager
	rooms *RoomDispatcher
	pipe  *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	st := store.NewMemoryStore()
	mgr := NewConnManager(ManagerConf{Clock: clock.Now, SweepEvery: time.Hour})
	t.Cleanup(mgr.Close)
	rooms := NewRoomDispatcher(st, mgr)
	return &fixture{
		clock: clock,
		store: st,
		mgr:   mgr,
		rooms: rooms,
		pipe:  NewPipeline(st, rooms, clock.Now),
	}
}

func (fx *fixture) conn(t *testing.T, user string) *Conn {
	t.Helper()
	c, err := fx.mgr.Register(nil, user)
	if err != nil {
		t.Fatalf("register %s: %v", user, err)
	}
	return c
}

// recvEvent pops one queued outbound frame or fails.
func recvEvent(t *testing.T, c *Conn) (EventType, map[string]any) {
	t.Helper()
	select {
	case raw := <-c.send:
		var f struct {
			Type    EventType      `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal outbound frame: %v", err)
		}
		return f.Type, f.Payload
	case <-time.After(time.Second):
		t.Fatal("no outbound frame queued")
		return "", nil
	}
}

func noEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected outbound frame: %s", raw)
	default:
	}
}
