package mlpackage

import (
	"fmt"

	"github.com/advancedclimatesystems/gonnx"

	"github.com/openpharma/nerpack/backends"
)

// deviceRuntime is the loaded graph session, created lazily on the first
// Predict call. It stands in for the target platform's inference runtime.
type deviceRuntime struct {
	session *gonnx.Model
}

// Predict runs one batch through the packaged graph and returns the logits
// reshaped per the declared output spec. Inputs are the host-side 32-bit
// integers declared in the manifest; they are widened to the element type
// the graph consumes.
func (p *Package) Predict(inputIDs, attentionMask []int32) ([][][]float32, error) {
	inputIDsSpec, ok := p.InputSpec("input_ids")
	if !ok {
		return nil, fmt.Errorf("package declares no input_ids input")
	}
	maskSpec, ok := p.InputSpec("attention_mask")
	if !ok {
		return nil, fmt.Errorf("package declares no attention_mask input")
	}
	logitsSpec, ok := p.OutputSpec("logits")
	if !ok {
		return nil, fmt.Errorf("package declares no logits output")
	}
	if len(inputIDsSpec.Shape) != 2 || len(logitsSpec.Shape) != 3 {
		return nil, fmt.Errorf("unexpected tensor ranks: input %v, output %v", inputIDsSpec.Shape, logitsSpec.Shape)
	}

	batchSize := int(inputIDsSpec.Shape[0])
	seqLen := int(inputIDsSpec.Shape[1])
	if len(inputIDs) != batchSize*seqLen {
		return nil, fmt.Errorf("input_ids must hold %d elements per the declared shape %v, got %d", batchSize*seqLen, inputIDsSpec.Shape, len(inputIDs))
	}
	if len(attentionMask) != batchSize*seqLen {
		return nil, fmt.Errorf("attention_mask must hold %d elements per the declared shape %v, got %d", batchSize*seqLen, maskSpec.Shape, len(attentionMask))
	}

	if p.runtime == nil {
		session, err := gonnx.NewModelFromBytes(p.modelBytes)
		if err != nil {
			return nil, fmt.Errorf("loading packaged graph: %w", err)
		}
		p.runtime = &deviceRuntime{session: session}
	}

	inputMap, err := backends.BuildGoInputTensors(p.runtime.session.InputNames(), inputIDs, attentionMask, batchSize, seqLen)
	if err != nil {
		return nil, err
	}
	outputs, err := p.runtime.session.Run(inputMap)
	if err != nil {
		return nil, fmt.Errorf("packaged graph inference: %w", err)
	}

	converted := backends.ConvertGoOutputs(outputs)
	logits, ok := converted["logits"]
	if !ok {
		return nil, fmt.Errorf("packaged graph produced no logits output")
	}

	numLabels := int(logitsSpec.Shape[2])
	if len(logits.Data) != batchSize*seqLen*numLabels {
		return nil, fmt.Errorf("logits hold %d values, declared shape %v requires %d", len(logits.Data), logitsSpec.Shape, batchSize*seqLen*numLabels)
	}
	return reshapeLogits(logits.Data, batchSize, seqLen, numLabels), nil
}

func reshapeLogits(flat []float32, batchSize, seqLen, numLabels int) [][][]float32 {
	out := make([][][]float32, batchSize)
	idx := 0
	for b := range batchSize {
		rows := make([][]float32, seqLen)
		for s := range seqLen {
			rows[s] = flat[idx : idx+numLabels : idx+numLabels]
			idx += numLabels
		}
		out[b] = rows
	}
	return out
}
