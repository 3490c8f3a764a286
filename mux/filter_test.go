package mux

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterChainRunsInRegistrationOrder(t *testing.T) {
	var trace []string
	mk := func(name string) InboundFilter {
		return func(d *Delivery, f FilterHandleFunc) error {
			trace = append(trace, name)
			return f(d)
		}
	}

	chain := InboundFilterChain{mk("first"), mk("second"), mk("third")}
	err := chain.Handle(&Delivery{}, func(d *Delivery) error {
		trace = append(trace, "handler")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "handler"}, trace)
}

func TestFilterChainErrorShortCircuits(t *testing.T) {
	boom := errors.New("rejected")
	handled := false

	chain := InboundFilterChain{
		func(d *Delivery, f FilterHandleFunc) error { return boom },
		func(d *Delivery, f FilterHandleFunc) error {
			t.Fatal("filter after the failure must not run")
			return nil
		},
	}
	err := chain.Handle(&Delivery{}, func(d *Delivery) error {
		handled = true
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, handled)
}

func TestFilterCanSwallowWithoutError(t *testing.T) {
	handled := false
	chain := InboundFilterChain{
		func(d *Delivery, f FilterHandleFunc) error { return nil },
	}
	err := chain.Handle(&Delivery{}, func(d *Delivery) error {
		handled = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, handled)
}

func TestMaxSizeFilter(t *testing.T) {
	filter := MaxSizeFilter(4)
	pass := func(d *Delivery) error { return nil }

	assert.NoError(t, filter(&Delivery{Payload: []byte("four")}, pass))
	assert.ErrorIs(t, filter(&Delivery{Payload: []byte("fiver")}, pass), ErrMessageTooLarge)

	unlimited := MaxSizeFilter(0)
	assert.NoError(t, unlimited(&Delivery{Payload: make([]byte, 1<<16)}, pass))
}

func TestTokenRecvLimiter(t *testing.T) {
	l := NewTokenRecvLimiter(1, 2)

	assert.True(t, l.TryTake())
	assert.True(t, l.TryTake())
	assert.False(t, l.TryTake(), "burst spent, refill is a full second away")

	l.Reload(1000, 1000)
	assert.True(t, l.TryTake(), "reload applies the new budget immediately")
}
