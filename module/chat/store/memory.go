package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"RentChat/module/chat/model"
	"RentChat/tools/errs"
	"RentChat/tools/ids"
)

// MemoryStore keeps everything in-process. It backs the tests and the
// STORE_DRIVER=memory dev mode; semantics mirror MongoStore.
type MemoryStore struct {
	mu         sync.RWMutex
	convByID   map[string]*model.Conversation
	convByPair map[string]*model.Conversation
	msgs       map[string][]*model.Message // conversation id -> messages in (ts, seq) order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convByID:   make(map[string]*model.Conversation),
		convByPair: make(map[string]*model.Conversation),
		msgs:       make(map[string][]*model.Message),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, errs.ErrValidation.WithDetail("conversation needs two distinct participants")
	}
	pair := model.PairKeyOf(userA, userB)

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convByPair[pair]; ok {
		return cloneConv(c), nil
	}
	now := time.Now()
	c := &model.Conversation{
		ID:           ids.GenerateString(),
		PairKey:      pair,
		Participants: []string{userA, userB},
		Unread:       map[string]int64{userA: 0, userB: 0},
		CreateTime:   now,
		LastActivity: now,
	}
	s.convByID[c.ID] = c
	s.convByPair[pair] = c
	return cloneConv(c), nil
}

func (s *MemoryStore) Get(ctx context.Context, convID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convByID[convID]
	if !ok {
		return nil, errs.ErrNotFound.WithDetail("conversation " + convID)
	}
	return cloneConv(c), nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Conversation
	for _, c := range s.convByID {
		if c.HasParticipant(userID) {
			out = append(out, cloneConv(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *model.Message, unreadFor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convByID[msg.ConversationID]
	if !ok {
		return errs.ErrNotFound.WithDetail("conversation " + msg.ConversationID)
	}
	cp := *msg
	s.msgs[msg.ConversationID] = append(s.msgs[msg.ConversationID], &cp)
	c.Unread[unreadFor]++
	c.LastActivity = time.UnixMilli(msg.Ts)
	return nil
}

func (s *MemoryStore) LastOrdering(ctx context.Context, convID string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.msgs[convID]
	if len(list) == 0 {
		return 0, 0, nil
	}
	last := list[len(list)-1]
	return last.Ts, last.Seq, nil
}

func (s *MemoryStore) History(ctx context.Context, convID string, beforeTs, beforeSeq int64, limit int64) ([]*model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.msgs[convID]
	var out []*model.Message
	for i := len(list) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if beforeTs > 0 && !beforeCursor(list[i], beforeTs, beforeSeq) {
			continue
		}
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

// beforeCursor reports whether m sorts strictly before (ts, seq) in the
// lexicographic ordering key.
func beforeCursor(m *model.Message, ts, seq int64) bool {
	if m.Ts != ts {
		return m.Ts < ts
	}
	return m.Seq < seq
}

func (s *MemoryStore) MarkRead(ctx context.Context, convID, reader string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convByID[convID]
	if !ok {
		return errs.ErrNotFound.WithDetail("conversation " + convID)
	}
	c.Unread[reader] = 0
	for _, m := range s.msgs[convID] {
		if m.SenderID == reader || contains(m.ReadBy, reader) {
			continue
		}
		m.ReadBy = append(m.ReadBy, reader)
	}
	return nil
}

func cloneConv(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.Unread = make(map[string]int64, len(c.Unread))
	for k, v := range c.Unread {
		cp.Unread[k] = v
	}
	return &cp
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
