package convert

import (
	"fmt"
	"math/rand"

	"github.com/openpharma/nerpack/backends"
	"github.com/openpharma/nerpack/mlpackage"
)

// DefaultSequenceLength is the fixed deployment sequence length. Fixed-shape
// graphs convert reliably; dynamic shapes are harder for the target runtime
// to optimize.
const DefaultSequenceLength = 512

// TraceInputs describes the graph to trace.
type TraceInputs struct {
	OnnxBytes      []byte
	GraphInputs    []backends.InputOutputInfo
	VocabSize      int
	NumLabels      int
	SequenceLength int
}

// TracedGraph is the immutable record of one fixed-shape execution of the
// wrapped model. It is produced once and consumed exactly once by Convert.
type TracedGraph struct {
	OnnxBytes      []byte
	GraphInputs    []backends.InputOutputInfo
	LogitsShape    []int64
	BatchSize      int
	SequenceLength int
	NumLabels      int
	Checksum       string
}

// Trace executes the wrapper once on synthetic inputs of the exact
// deployment shape: batch 1, random token ids within vocabulary range, and
// an all-ones attention mask (no padding simulated). The observed logits
// shape must match (1, seqLen, numLabels) or tracing fails, since the
// converter declares exactly that schema downstream.
func Trace(wrapper *LogitsWrapper, in TraceInputs) (*TracedGraph, error) {
	if in.SequenceLength <= 0 {
		in.SequenceLength = DefaultSequenceLength
	}
	if in.VocabSize <= 0 {
		return nil, fmt.Errorf("cannot trace without a vocabulary size")
	}
	if in.NumLabels <= 0 {
		return nil, fmt.Errorf("cannot trace a model with no configured labels")
	}

	const batchSize = 1
	total := batchSize * in.SequenceLength
	inputIDs := make([]int32, total)
	attentionMask := make([]int32, total)
	for i := range total {
		inputIDs[i] = int32(rand.Intn(in.VocabSize))
		attentionMask[i] = 1
	}

	logits, err := wrapper.Logits(inputIDs, attentionMask, batchSize, in.SequenceLength)
	if err != nil {
		return nil, fmt.Errorf("tracing forward pass: %w", err)
	}

	want := []int64{batchSize, int64(in.SequenceLength), int64(in.NumLabels)}
	if !shapeEqual(logits.Shape, want) {
		return nil, fmt.Errorf("traced logits shape %v does not match expected %v", logits.Shape, want)
	}

	return &TracedGraph{
		OnnxBytes:      in.OnnxBytes,
		GraphInputs:    in.GraphInputs,
		LogitsShape:    logits.Shape,
		BatchSize:      batchSize,
		SequenceLength: in.SequenceLength,
		NumLabels:      in.NumLabels,
		Checksum:       mlpackage.Checksum(in.OnnxBytes),
	}, nil
}

// TraceModel traces a loaded model through the logits wrapper.
func TraceModel(model *backends.Model, sequenceLength int) (*TracedGraph, error) {
	return Trace(NewLogitsWrapper(model), TraceInputs{
		OnnxBytes:      model.OnnxBytes,
		GraphInputs:    model.InputsMeta,
		VocabSize:      model.VocabSize,
		NumLabels:      model.NumLabels(),
		SequenceLength: sequenceLength,
	})
}

func shapeEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
