package handlers

import (
	"RentChat/service/chat"
)

type TypingHandler struct{}

func (TypingHandler) Type() chat.EventType { return chat.EventTyping }

func (TypingHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Conn) error {
	p, err := chat.DecodePayload[chat.TypingPayload](f)
	if err != nil {
		return err
	}
	return ctx.S.Typing().SetTyping(c, p.ConversationID, true)
}

type StopTypingHandler struct{}

func (StopTypingHandler) Type() chat.EventType { return chat.EventStopTyping }

func (StopTypingHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Conn) error {
	p, err := chat.DecodePayload[chat.TypingPayload](f)
	if err != nil {
		return err
	}
	return ctx.S.Typing().SetTyping(c, p.ConversationID, false)
}
