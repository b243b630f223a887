package chat

import (
	"RentChat/module/chat/store"
	"RentChat/tools/security"
)

// Server ties the registry, dispatcher, presence tracker, typing relay and
// delivery pipeline together around one conversation store.
type Server struct {
	store    store.ConversationStore
	connMgr  *ConnManager
	rooms    *RoomDispatcher
	presence *PresenceTracker
	typing   *TypingRelay
	pipeline *Pipeline
	disp     *Dispatcher
	auth     security.Options
}

func NewServer(st store.ConversationStore, auth security.Options, conf ManagerConf) *Server {
	s := &Server{store: st, auth: auth, disp: NewDispatcher()}
	s.connMgr = NewConnManager(conf)
	s.rooms = NewRoomDispatcher(st, s.connMgr)
	s.presence = NewPresenceTracker(s.connMgr)
	s.typing = NewTypingRelay(s.rooms, s.connMgr.Clock())
	s.pipeline = NewPipeline(st, s.rooms, s.connMgr.Clock())

	s.connMgr.SetHooks(
		func(user string) { s.presence.OnConnectionDelta(user, +1) },
		func(user string) { s.presence.OnConnectionDelta(user, -1) },
		func(c *Conn) {
			s.rooms.LeaveAll(c)
			s.presence.Unsubscribe(c.ID)
		},
	)
	return s
}

func (s *Server) Store() store.ConversationStore { return s.store }
func (s *Server) ConnMgr() *ConnManager          { return s.connMgr }
func (s *Server) Rooms() *RoomDispatcher         { return s.rooms }
func (s *Server) Presence() *PresenceTracker     { return s.presence }
func (s *Server) Typing() *TypingRelay           { return s.typing }
func (s *Server) Pipeline() *Pipeline            { return s.pipeline }
func (s *Server) Disp() *Dispatcher              { return s.disp }

func (s *Server) Close() {
	s.connMgr.Close()
}
