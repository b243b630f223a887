package chat

import (
	"sort"
	"sync"

	"RentChat/logger"
	"RentChat/metrics"
	"RentChat/service/storage"
	"RentChat/tools/safe"
)

// PresenceTracker owns the per-user reference count of live connections.
// Only the 0->1 and 1->0 transitions are observable; intermediate counts
// among multiple tabs stay invisible. Presence is global, not room-scoped:
// transitions go to the connections that subscribed, not to any room.
type PresenceTracker struct {
	mu   sync.Mutex
	refs map[string]int
	subs map[string]*Conn // conn id -> subscribed conn

	mgr *ConnManager
}

func NewPresenceTracker(mgr *ConnManager) *PresenceTracker {
	return &PresenceTracker{
		refs: make(map[string]int),
		subs: make(map[string]*Conn),
		mgr:  mgr,
	}
}

// OnConnectionDelta is invoked by the connection registry with +1/-1.
func (p *PresenceTracker) OnConnectionDelta(user string, delta int) {
	p.mu.Lock()
	old := p.refs[user]
	n := old + delta
	if n <= 0 {
		n = 0
		delete(p.refs, user)
	} else {
		p.refs[user] = n
	}
	wentOnline := old == 0 && n > 0
	wentOffline := old > 0 && n == 0
	p.mu.Unlock()

	switch {
	case wentOnline:
		metrics.OnlineUsers.Inc()
		if storage.Enabled() {
			safe.Go(func() { p.mirror(user, true) })
		}
		p.broadcast(BuildEvent(EventUserOnline, PresencePayload{UserID: user}))
	case wentOffline:
		metrics.OnlineUsers.Dec()
		if storage.Enabled() {
			safe.Go(func() { p.mirror(user, false) })
		}
		p.broadcast(BuildEvent(EventUserOffline, PresencePayload{UserID: user}))
	}
}

// Subscribe registers a connection for presence updates.
func (p *PresenceTracker) Subscribe(c *Conn) {
	p.mu.Lock()
	p.subs[c.ID] = c
	p.mu.Unlock()
}

// Unsubscribe is idempotent; invoked on unregister.
func (p *PresenceTracker) Unsubscribe(connID string) {
	p.mu.Lock()
	delete(p.subs, connID)
	p.mu.Unlock()
}

// Snapshot returns every currently online user, sorted. Clients call it on
// (re)connect to reconcile transitions they missed while disconnected.
func (p *PresenceTracker) Snapshot() []string {
	p.mu.Lock()
	out := make([]string, 0, len(p.refs))
	for u := range p.refs {
		out = append(out, u)
	}
	p.mu.Unlock()
	sort.Strings(out)
	return out
}

// Online reports the current state of one user.
func (p *PresenceTracker) Online(user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs[user] > 0
}

func (p *PresenceTracker) broadcast(data []byte) {
	if data == nil {
		return
	}
	p.mu.Lock()
	subs := make([]*Conn, 0, len(p.subs))
	for _, c := range p.subs {
		subs = append(subs, c)
	}
	p.mu.Unlock()

	for _, c := range subs {
		if !c.trySend(data) {
			p.mgr.Kick(c, "presence queue overflow")
		}
	}
}

// mirror writes the transition through to redis for out-of-process readers.
// Best-effort: a mirror failure never blocks or reverts a transition.
func (p *PresenceTracker) mirror(user string, online bool) {
	var err error
	if online {
		err = storage.PresenceOnline(user)
	} else {
		err = storage.PresenceOffline(user)
	}
	if err != nil {
		logger.Warnf("[presence] mirror user=%s online=%v: %v", user, online, err)
	}
}
