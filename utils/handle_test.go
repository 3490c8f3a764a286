package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackHandle(t *testing.T) {
	tests := []struct {
		name       string
		index      uint32
		generation uint32
	}{
		{name: "zero slot first generation", index: 0, generation: 0},
		{name: "small values", index: 3, generation: 7},
		{name: "max index", index: 0xFFFFFFFF, generation: 1},
		{name: "max generation", index: 1, generation: 0x7FFFFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := PackHandle(tt.index, tt.generation)
			assert.True(t, IsHandleValid(h))

			index, generation := UnpackHandle(h)
			assert.Equal(t, tt.index, index)
			assert.Equal(t, tt.generation, generation)
		})
	}
}

func TestZeroHandleIsInvalid(t *testing.T) {
	assert.False(t, IsHandleValid(0))
}

func TestGenerationDistinguishesSlotReuse(t *testing.T) {
	first := PackHandle(5, 1)
	second := PackHandle(5, 2)
	assert.NotEqual(t, first, second)

	index1, _ := UnpackHandle(first)
	index2, _ := UnpackHandle(second)
	assert.Equal(t, index1, index2)
}
