// Package convert turns a loaded token-classification model into an
// on-device inference package: it wraps the model behind a single-output
// adapter, traces one fixed-shape forward pass, lowers the traced graph into
// the package format and writes the tokenizer/label sidecar files.
package convert

import (
	"fmt"

	"github.com/openpharma/nerpack/backends"
)

// Forwarder is the forward computation of a loaded model: a pure function
// from (token ids, attention mask) to named output tensors.
// *backends.Model satisfies it.
type Forwarder interface {
	Forward(inputIDs, attentionMask []int32, batchSize, seqLen int) (map[string]backends.OutputTensor, error)
}

// LogitsWrapper adapts a model's structured output to a single positional
// tensor. Transformer token classifiers return a mapping of named tensors
// (logits plus optional hidden states and attentions); the converter needs a
// fixed single-output signature, so everything but the logits is discarded.
type LogitsWrapper struct {
	inner Forwarder
}

func NewLogitsWrapper(inner Forwarder) *LogitsWrapper {
	return &LogitsWrapper{inner: inner}
}

// Logits runs the wrapped forward pass and projects the logits tensor,
// selected by name or, failing that, as the only rank-3 float output.
func (w *LogitsWrapper) Logits(inputIDs, attentionMask []int32, batchSize, seqLen int) (backends.OutputTensor, error) {
	outputs, err := w.inner.Forward(inputIDs, attentionMask, batchSize, seqLen)
	if err != nil {
		return backends.OutputTensor{}, err
	}
	if logits, ok := outputs["logits"]; ok {
		return logits, nil
	}
	var candidates []backends.OutputTensor
	for _, out := range outputs {
		if len(out.Shape) == 3 {
			candidates = append(candidates, out)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return backends.OutputTensor{}, fmt.Errorf("cannot identify the logits output among %d outputs", len(outputs))
}
