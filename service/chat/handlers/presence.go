package handlers

import (
	"RentChat/service/chat"
)

// RequestOnlineUsersHandler subscribes the connection to presence
// transitions and replies with the current snapshot so the client can
// reconcile anything it missed while disconnected.
type RequestOnlineUsersHandler struct{}

func (RequestOnlineUsersHandler) Type() chat.EventType { return chat.EventRequestOnlineUsers }

func (RequestOnlineUsersHandler) Handle(ctx *chat.Context, _ *chat.Frame, c *chat.Conn) error {
	ctx.S.Presence().Subscribe(c)
	c.Reply(chat.BuildEvent(chat.EventOnlineUsers, chat.OnlineUsersPayload{
		Users: ctx.S.Presence().Snapshot(),
	}))
	return nil
}

// SubscribePresenceHandler opts in to transitions without a snapshot.
type SubscribePresenceHandler struct{}

func (SubscribePresenceHandler) Type() chat.EventType { return chat.EventSubscribePresence }

func (SubscribePresenceHandler) Handle(ctx *chat.Context, _ *chat.Frame, c *chat.Conn) error {
	ctx.S.Presence().Subscribe(c)
	return nil
}
