package store

import (
	"context"

	"RentChat/module/chat/model"
)

// ConversationStore is the single source of truth for conversations,
// messages and unread counters. All counter mutations go through
// AppendMessage and MarkRead; nothing in the presentation layer writes
// counters directly.
type ConversationStore interface {
	// GetOrCreate resolves the conversation for an unordered user pair,
	// creating it lazily on first contact. Idempotent: concurrent first
	// messages converge on one record.
	GetOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error)

	Get(ctx context.Context, convID string) (*model.Conversation, error)

	// ListByUser returns the caller's conversations, most recently active
	// first, with unread counters included.
	ListByUser(ctx context.Context, userID string) ([]*model.Conversation, error)

	// AppendMessage persists msg, increments the unread counter of
	// unreadFor and bumps last-activity. All-or-nothing: on failure no
	// message and no counter change survive.
	AppendMessage(ctx context.Context, msg *model.Message, unreadFor string) error

	// LastOrdering returns the (ts, seq) of the newest persisted message,
	// (0, 0) for an empty conversation.
	LastOrdering(ctx context.Context, convID string) (ts, seq int64, err error)

	// History returns up to limit messages strictly older than the
	// (beforeTs, beforeSeq) cursor in the ordering key, most-recent-first.
	// The cursor is composite because several messages can share one ts;
	// beforeTs<=0 means newest. Callers page by passing the (ts, seq) of
	// the last message of the previous page.
	History(ctx context.Context, convID string, beforeTs, beforeSeq int64, limit int64) ([]*model.Message, error)

	// MarkRead resets reader's unread counter to zero and adds reader to
	// the read-state of every message sent by the other participant.
	// Idempotent.
	MarkRead(ctx context.Context, convID, reader string) error
}
