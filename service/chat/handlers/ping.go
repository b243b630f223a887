package handlers

import (
	"RentChat/service/chat"
)

// PingHandler covers clients that cannot use protocol-level pings. The
// heartbeat is refreshed by the read loop; this only answers.
type PingHandler struct{}

func (PingHandler) Type() chat.EventType { return chat.EventPing }

func (PingHandler) Handle(_ *chat.Context, _ *chat.Frame, c *chat.Conn) error {
	c.Reply(chat.BuildEvent(chat.EventPong, nil))
	return nil
}
