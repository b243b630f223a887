package handlers

import (
	"RentChat/service/chat"
)

// RegisterAll wires every channel event handler into the server's
// dispatcher.
func RegisterAll(s *chat.Server) {
	for _, h := range []chat.Handler{
		JoinHandler{},
		LeaveHandler{},
		SendMessageHandler{},
		TypingHandler{},
		StopTypingHandler{},
		MarkReadHandler{},
		RequestOnlineUsersHandler{},
		SubscribePresenceHandler{},
		PingHandler{},
	} {
		s.Disp().Register(h)
	}
}
