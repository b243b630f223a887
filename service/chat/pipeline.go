package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"RentChat/metrics"
	"RentChat/module/chat/model"
	"RentChat/module/chat/store"
	"RentChat/tools/errs"
	"RentChat/tools/ids"
)

// SendRequest is what the delivery pipeline accepts: an existing
// conversation id, or a peer id on first contact (the conversation is then
// created lazily). At least one of Text and Attachment must be present.
type SendRequest struct {
	ConversationID string
	PeerID         string
	Text           string
	Attachment     *model.Attachment
}

// convOrdering is the single logical owner of one conversation's ordering
// state. Holding its mutex across assign -> persist -> broadcast is what
// guarantees delivery order equals persistence order without
// cross-conversation contention.
type convOrdering struct {
	mu     sync.Mutex
	loaded bool
	ts     int64
	seq    int64
}

// Pipeline is the principal write path: validate, persist, bump unread,
// broadcast. All counter mutations happen here or in MarkRead, never in a
// presentation layer.
type Pipeline struct {
	store store.ConversationStore
	rooms *RoomDispatcher
	// ord holds one small entry per conversation written to since process
	// start and is never evicted; if long-lived deployments ever make this
	// a problem, entries are safe to drop when idle because Send reloads
	// the ordering from LastOrdering on the next touch.
	ord   sync.Map // conversation id -> *convOrdering
	clock func() time.Time
}

func NewPipeline(st store.ConversationStore, rooms *RoomDispatcher, clock func() time.Time) *Pipeline {
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{store: st, rooms: rooms, clock: clock}
}

func (p *Pipeline) ordering(convID string) *convOrdering {
	if v, ok := p.ord.Load(convID); ok {
		return v.(*convOrdering)
	}
	v, _ := p.ord.LoadOrStore(convID, &convOrdering{})
	return v.(*convOrdering)
}

// Send runs the full delivery contract. Validation order: participant
// first, then content. On any failure nothing is persisted, no counter
// moves and nothing is broadcast; only the caller sees the error.
func (p *Pipeline) Send(ctx context.Context, sender string, req SendRequest) (*model.Message, error) {
	conv, err := p.resolveConversation(ctx, sender, req)
	if err != nil {
		return nil, err
	}
	if err := validateContent(req); err != nil {
		return nil, err
	}

	o := p.ordering(conv.ID)
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.loaded {
		ts, seq, err := p.store.LastOrdering(ctx, conv.ID)
		if err != nil {
			return nil, errs.ErrInternal.WithDetail(err.Error())
		}
		o.ts, o.seq, o.loaded = ts, seq, true
	}

	// (ts, seq) strictly increases: ts never goes backwards even under a
	// coarse or stepped clock, seq breaks the ties.
	ts := p.clock().UnixMilli()
	if ts < o.ts {
		ts = o.ts
	}
	seq := o.seq + 1

	msg := &model.Message{
		ID:             ids.GenerateString(),
		ConversationID: conv.ID,
		SenderID:       sender,
		Ts:             ts,
		Seq:            seq,
		Text:           req.Text,
		Attachment:     req.Attachment,
		ReadBy:         []string{},
	}

	if err := p.store.AppendMessage(ctx, msg, conv.Other(sender)); err != nil {
		return nil, errs.ErrInternal.WithDetail(err.Error())
	}
	o.ts, o.seq = ts, seq

	metrics.MessagesDelivered.Inc()
	// every currently joined connection sees it, the sender's own other
	// devices included: one source of truth for ordering
	p.rooms.Broadcast(conv.ID, BuildEvent(EventNewMessage, msg), "")
	return msg, nil
}

// MarkRead resets the reader's unread counter and acknowledges all of the
// peer's messages up to now. Idempotent, and the broadcast fires either
// way so clients can call it unconditionally on conversation open.
func (p *Pipeline) MarkRead(ctx context.Context, reader, convID string) error {
	conv, err := p.store.Get(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(reader) {
		return errs.ErrAuthorization.WithDetail("not a participant of " + convID)
	}
	if err := p.store.MarkRead(ctx, convID, reader); err != nil {
		return errs.ErrInternal.WithDetail(err.Error())
	}
	p.rooms.Broadcast(convID, BuildEvent(EventReadReceiptUpdate, ReadReceiptPayload{
		ConversationID: convID,
		ReaderID:       reader,
		Ts:             p.clock().UnixMilli(),
	}), "")
	return nil
}

func (p *Pipeline) resolveConversation(ctx context.Context, sender string, req SendRequest) (*model.Conversation, error) {
	switch {
	case req.ConversationID != "":
		conv, err := p.store.Get(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if !conv.HasParticipant(sender) {
			return nil, errs.ErrAuthorization.WithDetail("not a participant of " + req.ConversationID)
		}
		return conv, nil
	case req.PeerID != "":
		return p.store.GetOrCreate(ctx, sender, req.PeerID)
	default:
		return nil, errs.ErrValidation.WithDetail("conversation_id or peer_id required")
	}
}

func validateContent(req SendRequest) error {
	if req.Attachment != nil {
		if req.Attachment.URL == "" {
			return errs.ErrValidation.WithDetail("attachment missing url")
		}
		if req.Attachment.Kind != model.MediaKindImage && req.Attachment.Kind != model.MediaKindVideo {
			return errs.ErrValidation.WithDetail("unsupported media kind " + req.Attachment.Kind)
		}
		return nil
	}
	if strings.TrimSpace(req.Text) == "" {
		return errs.ErrValidation.WithDetail("empty message")
	}
	return nil
}
