package vectorutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoftMax(t *testing.T) {
	scores := SoftMax([]float32{1.0, 2.0, 3.0})
	assert.Len(t, scores, 3)

	var sum float32
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, float32(0))
		assert.LessOrEqual(t, s, float32(1))
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	// order is preserved
	assert.Less(t, scores[0], scores[1])
	assert.Less(t, scores[1], scores[2])
}

func TestSoftMaxStability(t *testing.T) {
	// large logits must not overflow to NaN or Inf
	scores := SoftMax([]float32{1000, 1001, 1002})
	var sum float32
	for _, s := range scores {
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestSoftMaxEmpty(t *testing.T) {
	assert.Nil(t, SoftMax(nil))
}

func TestArgMax(t *testing.T) {
	index, value, err := ArgMax([]float32{0.1, 0.7, 0.2})
	assert.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, float32(0.7), value)

	_, _, err = ArgMax(nil)
	assert.Error(t, err)
}

func TestMean(t *testing.T) {
	assert.Equal(t, float32(2), Mean([]float32{1, 2, 3}))
	assert.Equal(t, float32(0), Mean(nil))
}
