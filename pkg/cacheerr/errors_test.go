package cacheerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageAndKind(t *testing.T) {
	err := New(InvalidInput, "empty prompt")
	assert.Equal(t, "[invalid_input] empty prompt", err.Error())
}

func TestIs_MatchesByKindOnly(t *testing.T) {
	a := New(CapacityExhausted, "tier L1 full")
	b := New(CapacityExhausted, "different message")
	c := New(Configuration, "tier L1 full")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
	assert.False(t, errors.Is(a, errors.New("plain error")))
}
