package mux

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/lcx/linkmux/codec"
)

// MessageSender is the send surface shared by ClientSocket and
// ServerSocket-bound targets.
type MessageSender interface {
	Send(channel Channel, payload []byte) error
}

// boundSender fixes a server-side connection so proto helpers can treat
// both socket kinds uniformly.
type boundSender struct {
	socket *ServerSocket
	conn   ConnectionHandle
}

func (b boundSender) Send(channel Channel, payload []byte) error {
	return b.socket.Send(b.conn, channel, payload)
}

// BindConnection adapts one server connection to MessageSender.
func (s *ServerSocket) BindConnection(conn ConnectionHandle) MessageSender {
	return boundSender{socket: s, conn: conn}
}

// SendProto encodes msg with the configured codec and queues it on
// channel. Encoding failures are reported; queueing follows Send's
// silent-refusal contract.
func SendProto(sender MessageSender, channel Channel, msg protoreflect.ProtoMessage) error {
	payload, err := codec.Encode(msg, nil)
	if err != nil {
		return fmt.Errorf("encode %T: %w", msg, err)
	}
	return sender.Send(channel, payload)
}

// DecodeProto decodes a message event's payload into out.
func DecodeProto(e Event, out protoreflect.ProtoMessage) error {
	if e.Kind != EventMessage {
		return fmt.Errorf("event %s carries no payload", e.Kind)
	}
	if err := codec.Decode(out, e.Payload); err != nil {
		return fmt.Errorf("decode %T: %w", out, err)
	}
	return nil
}
