package thruster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeForce(t *testing.T) {
	assert.Equal(t, int16(0), encodeForce(0))
	assert.Equal(t, int16(1250), encodeForce(12.5))
	assert.Equal(t, int16(-3000), encodeForce(-30))
	assert.Equal(t, int16(124), encodeForce(1.236))

	// forces past the int16 range clamp instead of wrapping
	assert.Equal(t, int16(math.MaxInt16), encodeForce(400))
	assert.Equal(t, int16(math.MinInt16), encodeForce(-400))
}
