package chat

import (
	"sync"
	"time"

	"RentChat/tools/errs"
)

// TypingMarkerTTL is the server-side debounce window. Expiry is advisory:
// the server relays the latest state and stamps the deadline; receivers
// must treat an indicator as stale after the same window even if the
// explicit stop signal is lost.
const TypingMarkerTTL = 3 * time.Second

// TypingRelay is ephemeral last-write-wins state, never persisted.
type TypingRelay struct {
	mu      sync.Mutex
	markers map[string]time.Time // conv|user -> expiry

	rooms *RoomDispatcher
	clock func() time.Time
}

func NewTypingRelay(rooms *RoomDispatcher, clock func() time.Time) *TypingRelay {
	if clock == nil {
		clock = time.Now
	}
	return &TypingRelay{
		markers: make(map[string]time.Time),
		rooms:   rooms,
		clock:   clock,
	}
}

func typingKey(convID, user string) string { return convID + "|" + user }

// SetTyping records/refreshes or clears the marker and relays the event to
// the room, excluding the sender's own connections. Events here are lossy
// by design; the caller treats errors as non-fatal.
func (t *TypingRelay) SetTyping(c *Conn, convID string, typing bool) error {
	if !c.inRoom(convID) {
		return errs.ErrAuthorization.WithDetail("not joined to " + convID)
	}
	now := t.clock()

	t.mu.Lock()
	// opportunistic sweep of expired markers
	for k, exp := range t.markers {
		if now.After(exp) {
			delete(t.markers, k)
		}
	}
	key := typingKey(convID, c.UserID)
	var expiry time.Time
	if typing {
		expiry = now.Add(TypingMarkerTTL)
		t.markers[key] = expiry
	} else {
		delete(t.markers, key)
	}
	t.mu.Unlock()

	evt := EventStopTyping
	payload := TypingEventPayload{ConversationID: convID, UserID: c.UserID}
	if typing {
		evt = EventTyping
		payload.ExpiresAt = expiry.UnixMilli()
	}
	t.rooms.Broadcast(convID, BuildEvent(evt, payload), c.UserID)
	return nil
}

// ActiveTypists lists users with an unexpired marker in the conversation.
func (t *TypingRelay) ActiveTypists(convID string) []string {
	now := t.clock()
	prefix := convID + "|"
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for k, exp := range t.markers {
		if now.After(exp) {
			continue
		}
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k[len(prefix):])
		}
	}
	return out
}
