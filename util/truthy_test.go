package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, "", float64(0), math.NaN(), 0, int64(0)}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%v", v)
	}
	truthy := []any{true, "false", "0", float64(-1), 3, map[string]any{}, []any{}}
	for _, v := range truthy {
		assert.True(t, Truthy(v), "%v", v)
	}
}
