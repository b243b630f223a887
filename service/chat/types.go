package chat

type Handler interface {
	Type() EventType
	Handle(*Context, *Frame, *Conn) error
}

type Context struct {
	S *Server
}
