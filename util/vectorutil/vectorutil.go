package vectorutil

import (
	"errors"
	"math"
)

// SoftMax converts raw logits into a probability distribution. The maximum
// is subtracted before exponentiation to keep the computation stable.
func SoftMax(vector []float32) []float32 {
	if len(vector) == 0 {
		return nil
	}
	maxLogit := vector[0]
	for _, v := range vector {
		if v > maxLogit {
			maxLogit = v
		}
	}
	exps := make([]float64, len(vector))
	var sum float64
	for i, v := range vector {
		exps[i] = math.Exp(float64(v - maxLogit))
		sum += exps[i]
	}
	out := make([]float32, len(vector))
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

// ArgMax returns the index and value of the largest element.
func ArgMax(vector []float32) (int, float32, error) {
	if len(vector) == 0 {
		return 0, 0, errors.New("attempted to calculate argmax of empty vector")
	}
	maxIndex := 0
	maxValue := vector[0]
	for i, v := range vector {
		if v > maxValue {
			maxIndex = i
			maxValue = v
		}
	}
	return maxIndex, maxValue, nil
}

// Mean returns the arithmetic mean of the values, 0 for an empty slice.
func Mean(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	var sum float32
	for _, v := range values {
		sum += v
	}
	return sum / float32(len(values))
}
