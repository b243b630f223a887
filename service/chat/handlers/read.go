package handlers

import (
	"context"

	"RentChat/service/chat"
)

type MarkReadHandler struct{}

func (MarkReadHandler) Type() chat.EventType { return chat.EventMarkAsRead }

func (MarkReadHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Conn) error {
	p, err := chat.DecodePayload[chat.MarkReadPayload](f)
	if err != nil {
		return err
	}
	return ctx.S.Pipeline().MarkRead(context.Background(), c.UserID, p.ConversationID)
}
