package convert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openpharma/nerpack/backends"
)

// stubForwarder returns a fixed logits tensor shaped per its fields.
type stubForwarder struct {
	seqLen    int
	numLabels int
	err       error
	called    int
}

func (s *stubForwarder) Forward(inputIDs, attentionMask []int32, batchSize, seqLen int) (map[string]backends.OutputTensor, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	return map[string]backends.OutputTensor{
		"logits": {
			Name:  "logits",
			Shape: []int64{int64(batchSize), int64(s.seqLen), int64(s.numLabels)},
			Data:  make([]float32, batchSize*s.seqLen*s.numLabels),
		},
	}, nil
}

func TestTrace(t *testing.T) {
	stub := &stubForwarder{seqLen: 8, numLabels: 3}
	traced, err := Trace(NewLogitsWrapper(stub), TraceInputs{
		OnnxBytes:      []byte("graph"),
		VocabSize:      100,
		NumLabels:      3,
		SequenceLength: 8,
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, stub.called)
	assert.Equal(t, 1, traced.BatchSize)
	assert.Equal(t, 8, traced.SequenceLength)
	assert.Equal(t, []int64{1, 8, 3}, traced.LogitsShape)
	assert.NotEmpty(t, traced.Checksum)
}

func TestTraceDefaultSequenceLength(t *testing.T) {
	stub := &stubForwarder{seqLen: DefaultSequenceLength, numLabels: 2}
	traced, err := Trace(NewLogitsWrapper(stub), TraceInputs{
		OnnxBytes: []byte("graph"),
		VocabSize: 100,
		NumLabels: 2,
	})
	assert.NoError(t, err)
	assert.Equal(t, DefaultSequenceLength, traced.SequenceLength)
}

func TestTraceShapeMismatch(t *testing.T) {
	// the graph emits 4 labels but config declares 3
	stub := &stubForwarder{seqLen: 8, numLabels: 4}
	_, err := Trace(NewLogitsWrapper(stub), TraceInputs{
		OnnxBytes:      []byte("graph"),
		VocabSize:      100,
		NumLabels:      3,
		SequenceLength: 8,
	})
	assert.ErrorContains(t, err, "does not match expected")
}

func TestTraceValidation(t *testing.T) {
	stub := &stubForwarder{seqLen: 8, numLabels: 3}
	_, err := Trace(NewLogitsWrapper(stub), TraceInputs{OnnxBytes: []byte("graph"), NumLabels: 3})
	assert.ErrorContains(t, err, "vocabulary size")

	_, err = Trace(NewLogitsWrapper(stub), TraceInputs{OnnxBytes: []byte("graph"), VocabSize: 100})
	assert.ErrorContains(t, err, "no configured labels")
	assert.Equal(t, 0, stub.called)
}

func TestTraceForwardError(t *testing.T) {
	stub := &stubForwarder{err: errors.New("unsupported operator LayerNormalization")}
	_, err := Trace(NewLogitsWrapper(stub), TraceInputs{
		OnnxBytes:      []byte("graph"),
		VocabSize:      100,
		NumLabels:      3,
		SequenceLength: 8,
	})
	assert.ErrorContains(t, err, "tracing forward pass")
	assert.ErrorContains(t, err, "LayerNormalization")
}

func TestLogitsWrapperSelection(t *testing.T) {
	// without a "logits" name, the only rank-3 output is selected
	wrapper := NewLogitsWrapper(forwarderFunc(func(batchSize, seqLen int) map[string]backends.OutputTensor {
		return map[string]backends.OutputTensor{
			"output_0":      {Name: "output_0", Shape: []int64{1, 8, 3}, Data: make([]float32, 24)},
			"pooler_output": {Name: "pooler_output", Shape: []int64{1, 768}, Data: make([]float32, 768)},
		}
	}))
	out, err := wrapper.Logits(make([]int32, 8), make([]int32, 8), 1, 8)
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 8, 3}, out.Shape)

	// ambiguous outputs are rejected
	wrapper = NewLogitsWrapper(forwarderFunc(func(batchSize, seqLen int) map[string]backends.OutputTensor {
		return map[string]backends.OutputTensor{
			"output_0": {Shape: []int64{1, 8, 3}},
			"output_1": {Shape: []int64{1, 8, 5}},
		}
	}))
	_, err = wrapper.Logits(make([]int32, 8), make([]int32, 8), 1, 8)
	assert.ErrorContains(t, err, "cannot identify the logits output")
}

type forwarderFunc func(batchSize, seqLen int) map[string]backends.OutputTensor

func (f forwarderFunc) Forward(_, _ []int32, batchSize, seqLen int) (map[string]backends.OutputTensor, error) {
	return f(batchSize, seqLen), nil
}
