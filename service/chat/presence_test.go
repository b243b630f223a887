package chat

import (
	"testing"
)

func TestPresenceCoalescesMultipleConnections(t *testing.T) {
	fx := newFixture(t)
	p := NewPresenceTracker(fx.mgr)

	watcher := fx.conn(t, "watcher")
	p.Subscribe(watcher)

	// three tabs, one transition
	p.OnConnectionDelta("alice", +1)
	p.OnConnectionDelta("alice", +1)
	p.OnConnectionDelta("alice", +1)

	et, payload := recvEvent(t, watcher)
	if et != EventUserOnline || payload["user_id"] != "alice" {
		t.Fatalf("got %s %v", et, payload)
	}
	noEvent(t, watcher)

	p.OnConnectionDelta("alice", -1)
	p.OnConnectionDelta("alice", -1)
	noEvent(t, watcher) // still one tab open

	p.OnConnectionDelta("alice", -1)
	et, payload = recvEvent(t, watcher)
	if et != EventUserOffline || payload["user_id"] != "alice" {
		t.Fatalf("got %s %v", et, payload)
	}
}

func TestPresenceSnapshotSorted(t *testing.T) {
	fx := newFixture(t)
	p := NewPresenceTracker(fx.mgr)

	p.OnConnectionDelta("charlie", +1)
	p.OnConnectionDelta("alice", +1)
	p.OnConnectionDelta("bob", +1)
	p.OnConnectionDelta("bob", -1)

	got := p.Snapshot()
	want := []string{"alice", "charlie"}
	if len(got) != len(want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", got, want)
		}
	}
	if !p.Online("alice") || p.Online("bob") {
		t.Fatal("online state inconsistent with snapshot")
	}
}

func TestPresenceUnsubscribeStopsDelivery(t *testing.T) {
	fx := newFixture(t)
	p := NewPresenceTracker(fx.mgr)

	watcher := fx.conn(t, "watcher")
	p.Subscribe(watcher)
	p.Unsubscribe(watcher.ID)
	p.Unsubscribe(watcher.ID) // idempotent

	p.OnConnectionDelta("alice", +1)
	noEvent(t, watcher)
}

func TestPresenceNeverGoesNegative(t *testing.T) {
	fx := newFixture(t)
	p := NewPresenceTracker(fx.mgr)

	watcher := fx.conn(t, "watcher")
	p.Subscribe(watcher)

	p.OnConnectionDelta("alice", -1) // stray delta
	noEvent(t, watcher)
	p.OnConnectionDelta("alice", +1)
	if et, _ := recvEvent(t, watcher); et != EventUserOnline {
		t.Fatalf("got %s after recovery", et)
	}
}
