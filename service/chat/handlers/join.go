package handlers

import (
	"context"

	"RentChat/service/chat"
)

type JoinHandler struct{}

func (JoinHandler) Type() chat.EventType { return chat.EventJoinConversation }

func (JoinHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Conn) error {
	p, err := chat.DecodePayload[chat.JoinPayload](f)
	if err != nil {
		return err
	}
	return ctx.S.Rooms().Join(context.Background(), c, p.ConversationID)
}

type LeaveHandler struct{}

func (LeaveHandler) Type() chat.EventType { return chat.EventLeaveConversation }

func (LeaveHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Conn) error {
	p, err := chat.DecodePayload[chat.JoinPayload](f)
	if err != nil {
		return err
	}
	ctx.S.Rooms().Leave(c, p.ConversationID)
	return nil
}
