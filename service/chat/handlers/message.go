package handlers

import (
	"context"

	"RentChat/service/chat"
)

type SendMessageHandler struct{}

func (SendMessageHandler) Type() chat.EventType { return chat.EventSendMessage }

func (SendMessageHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Conn) error {
	p, err := chat.DecodePayload[chat.SendMessagePayload](f)
	if err != nil {
		return err
	}
	_, err = ctx.S.Pipeline().Send(context.Background(), c.UserID, chat.SendRequest{
		ConversationID: p.ConversationID,
		PeerID:         p.PeerID,
		Text:           p.Text,
	})
	return err
}
