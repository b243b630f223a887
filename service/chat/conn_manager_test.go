package chat

import (
	"testing"
	"time"
)

func TestRegisterUnregisterDeltasOrdered(t *testing.T) {
	clock := newFakeClock()
	mgr := NewConnManager(ManagerConf{Clock: clock.Now, SweepEvery: time.Hour})
	defer mgr.Close()

	var events []string
	mgr.SetHooks(
		func(u string) { events = append(events, "+"+u) },
		func(u string) { events = append(events, "-"+u) },
		nil,
	)

	c1, err := mgr.Register(nil, "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c2, _ := mgr.Register(nil, "alice")
	mgr.Unregister(c1)
	mgr.Unregister(c2)
	mgr.Unregister(c2) // idempotent, no extra delta

	want := []string{"+alice", "+alice", "-alice", "-alice"}
	if len(events) != len(want) {
		t.Fatalf("deltas = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("deltas = %v, want %v", events, want)
		}
	}
	if n := mgr.CountForUser("alice"); n != 0 {
		t.Fatalf("count = %d after full unregister", n)
	}
}

// A connection's disconnect delta must never overtake its own connect
// delta, or a rapid reconnect cycle skews the presence refcount for good.
func TestRapidReconnectKeepsPresenceConsistent(t *testing.T) {
	clock := newFakeClock()
	mgr := NewConnManager(ManagerConf{Clock: clock.Now, SweepEvery: time.Hour})
	defer mgr.Close()

	p := NewPresenceTracker(mgr)
	mgr.SetHooks(
		func(u string) { p.OnConnectionDelta(u, +1) },
		func(u string) { p.OnConnectionDelta(u, -1) },
		nil,
	)

	for i := 0; i < 20000; i++ {
		c, err := mgr.Register(nil, "alice")
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		mgr.Unregister(c)
	}

	if p.Online("alice") {
		t.Fatal("alice has zero connections but presence reports online")
	}
	if got := p.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot = %v after all disconnects", got)
	}
}

func TestRegisterRejectsEmptyUser(t *testing.T) {
	clock := newFakeClock()
	mgr := NewConnManager(ManagerConf{Clock: clock.Now, SweepEvery: time.Hour})
	defer mgr.Close()
	if _, err := mgr.Register(nil, ""); err == nil {
		t.Fatal("empty user accepted")
	}
}

func TestSweepExpiresSilentConnections(t *testing.T) {
	clock := newFakeClock()
	mgr := NewConnManager(ManagerConf{
		Clock:        clock.Now,
		HeartbeatTTL: 75 * time.Second,
		SweepEvery:   time.Hour, // drive sweeps by hand
	})
	defer mgr.Close()

	evicted := make(chan string, 2)
	mgr.SetHooks(nil, nil, func(c *Conn) { evicted <- c.ID })

	stale, _ := mgr.Register(nil, "alice")
	fresh, _ := mgr.Register(nil, "bob")

	clock.Advance(60 * time.Second)
	mgr.Touch(fresh.ID)
	clock.Advance(30 * time.Second) // stale is now 90s silent, fresh 30s

	mgr.sweepOnce(clock.Now())

	select {
	case id := <-evicted:
		if id != stale.ID {
			t.Fatalf("evicted %s, want %s", id, stale.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("stale connection survived the sweep")
	}
	if _, ok := mgr.Get(stale.ID); ok {
		t.Fatal("stale connection still registered")
	}
	if _, ok := mgr.Get(fresh.ID); !ok {
		t.Fatal("touched connection was swept")
	}
}

func TestConnsOfUser(t *testing.T) {
	clock := newFakeClock()
	mgr := NewConnManager(ManagerConf{Clock: clock.Now, SweepEvery: time.Hour})
	defer mgr.Close()

	a1, _ := mgr.Register(nil, "alice")
	a2, _ := mgr.Register(nil, "alice")
	_, _ = mgr.Register(nil, "bob")

	conns := mgr.ConnsOfUser("alice")
	if len(conns) != 2 {
		t.Fatalf("got %d conns, want 2", len(conns))
	}
	ids := map[string]bool{a1.ID: true, a2.ID: true}
	for _, c := range conns {
		if !ids[c.ID] {
			t.Fatalf("unexpected conn %s", c.ID)
		}
	}
}
