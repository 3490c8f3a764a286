package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// DefaultCodec marshals payloads as protobuf wire format.
type DefaultCodec struct{}

// Encode implements Codec.
func (c *DefaultCodec) Encode(m protoreflect.ProtoMessage, b []byte) ([]byte, error) {
	return proto.MarshalOptions{}.MarshalAppend(b, m)
}

// Decode implements Codec.
func (c *DefaultCodec) Decode(m protoreflect.ProtoMessage, b []byte) error {
	return proto.Unmarshal(b, m)
}
