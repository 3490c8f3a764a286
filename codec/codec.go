// Package codec provides the payload codec used by the typed send/receive
// helpers. The transport core itself moves opaque bytes; this package is
// the seam where applications marshal structured messages into those
// bytes.
package codec

import (
	"errors"

	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	errCodecNotInit = errors.New("codec not init")

	_codec Codec = &DefaultCodec{}
)

// Codec encodes and decodes message payloads.
type Codec interface {
	Encode(m protoreflect.ProtoMessage, b []byte) ([]byte, error)
	Decode(m protoreflect.ProtoMessage, b []byte) error
}

// Encode marshals m, appending to b.
func Encode(m protoreflect.ProtoMessage, b []byte) ([]byte, error) {
	if _codec == nil {
		return nil, errCodecNotInit
	}
	return _codec.Encode(m, b)
}

// Decode unmarshals b into m.
func Decode(m protoreflect.ProtoMessage, b []byte) error {
	if _codec == nil {
		return errCodecNotInit
	}
	return _codec.Decode(m, b)
}

// SetCodec replaces the package-level codec.
func SetCodec(c Codec) {
	_codec = c
}
