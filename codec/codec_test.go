package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestDefaultCodecRoundTrip(t *testing.T) {
	b, err := Encode(wrapperspb.String("payload"), nil)
	require.NoError(t, err)
	require.NotEmpty(t, b)

	var got wrapperspb.StringValue
	require.NoError(t, Decode(&got, b))
	assert.Equal(t, "payload", got.GetValue())
}

func TestEncodeAppendsToBuffer(t *testing.T) {
	prefix := []byte{0xDE, 0xAD}
	b, err := Encode(wrapperspb.Int64(42), prefix)
	require.NoError(t, err)
	assert.Equal(t, prefix, b[:2], "encode must append, not overwrite")

	var got wrapperspb.Int64Value
	require.NoError(t, Decode(&got, b[2:]))
	assert.Equal(t, int64(42), got.GetValue())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var got wrapperspb.StringValue
	assert.Error(t, Decode(&got, []byte{0xFF, 0xFF, 0xFF}))
}
