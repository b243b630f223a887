package chat

import (
	"context"
	"sync"

	"RentChat/logger"
	"RentChat/metrics"
	"RentChat/module/chat/store"
	"RentChat/tools/errs"
)

// RoomDispatcher fans events out to the connections currently joined to a
// conversation. Rooms are derived state: an empty member set is deleted,
// nothing durable exists per room.
type RoomDispatcher struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Conn // conversation id -> conn id -> conn

	store store.ConversationStore
	mgr   *ConnManager
}

func NewRoomDispatcher(st store.ConversationStore, mgr *ConnManager) *RoomDispatcher {
	return &RoomDispatcher{
		rooms: make(map[string]map[string]*Conn),
		store: st,
		mgr:   mgr,
	}
}

// Join adds the connection to the conversation's room. The caller must be
// one of the conversation's two participants; anything else is rejected and
// logged as a policy violation before any event can leak.
func (d *RoomDispatcher) Join(ctx context.Context, c *Conn, convID string) error {
	conv, err := d.store.Get(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(c.UserID) {
		logger.Warnf("[rooms] policy violation: user=%s tried to join conv=%s", c.UserID, convID)
		return errs.ErrAuthorization.WithDetail("not a participant of " + convID)
	}

	d.mu.Lock()
	if d.rooms[convID] == nil {
		d.rooms[convID] = make(map[string]*Conn)
	}
	d.rooms[convID][c.ID] = c
	d.mu.Unlock()
	c.joinRoom(convID)
	return nil
}

// Leave removes the connection; no-op if it was never joined.
func (d *RoomDispatcher) Leave(c *Conn, convID string) {
	d.mu.Lock()
	if mm := d.rooms[convID]; mm != nil {
		delete(mm, c.ID)
		if len(mm) == 0 {
			delete(d.rooms, convID)
		}
	}
	d.mu.Unlock()
	c.leaveRoom(convID)
}

// LeaveAll drops the connection from every room it had joined; invoked by
// the registry on unregister.
func (d *RoomDispatcher) LeaveAll(c *Conn) {
	for _, id := range c.roomIDs() {
		d.Leave(c, id)
	}
}

// Broadcast delivers data to every currently joined connection, skipping
// connections owned by excludeUser when set. Membership is query-time: a
// connection joining after the call never sees the event. Delivery never
// blocks on a slow receiver; an overflowing connection is kicked instead.
func (d *RoomDispatcher) Broadcast(convID string, data []byte, excludeUser string) {
	if data == nil {
		return
	}
	d.mu.RLock()
	members := make([]*Conn, 0, len(d.rooms[convID]))
	for _, c := range d.rooms[convID] {
		members = append(members, c)
	}
	d.mu.RUnlock()

	n := 0
	for _, c := range members {
		if excludeUser != "" && c.UserID == excludeUser {
			continue
		}
		if !c.trySend(data) {
			d.mgr.Kick(c, "outbound queue overflow")
			continue
		}
		n++
	}
	metrics.BroadcastFanout.Observe(float64(n))
}

// MemberCount reports the current room size (0 means the room does not
// exist as an object at all).
func (d *RoomDispatcher) MemberCount(convID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[convID])
}
