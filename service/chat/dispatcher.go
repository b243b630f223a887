package chat

import (
	"RentChat/tools/errs"
)

type Dispatcher struct {
	handlers map[EventType]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventType]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, f *Frame, conn *Conn) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return errs.ErrValidation.WithDetail("unknown event " + string(f.Type))
	}
	return h.Handle(ctx, f, conn)
}

func (d *Dispatcher) GetHandler(t EventType) Handler {
	return d.handlers[t]
}
