package mux

import (
	"errors"
)

// Delivery is one inbound message on its way to the application.
type Delivery struct {
	Conn    ConnectionHandle
	Channel Channel
	Payload []byte
}

// FilterHandleFunc is the continuation a filter calls to pass a delivery
// down the chain.
type FilterHandleFunc func(d *Delivery) error

// InboundFilter is an interceptor over inbound deliveries. A filter may
// inspect, mutate, or swallow a delivery; returning without calling f
// drops it, returning an error stops the current drain.
type InboundFilter func(d *Delivery, f FilterHandleFunc) error

// InboundFilterChain applies filters in order ahead of a final handler.
type InboundFilterChain []InboundFilter

// Handle runs d through the chain, ending at f.
func (fc InboundFilterChain) Handle(d *Delivery, f FilterHandleFunc) error {
	if len(fc) == 0 {
		return f(d)
	}
	return fc[0](d, func(d *Delivery) error {
		return fc[1:].Handle(d, f)
	})
}

// ErrMessageTooLarge is returned by the max-size filter for oversized
// inbound messages.
var ErrMessageTooLarge = errors.New("inbound message exceeds size limit")

// MaxSizeFilter drops deliveries whose payload exceeds limit bytes. A
// well-behaved peer never triggers it; a triggering peer is either broken
// or hostile, so the delivery is swallowed rather than dispatched.
func MaxSizeFilter(limit int) InboundFilter {
	return func(d *Delivery, f FilterHandleFunc) error {
		if limit > 0 && len(d.Payload) > limit {
			return ErrMessageTooLarge
		}
		return f(d)
	}
}
