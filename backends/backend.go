package backends

import (
	"fmt"
)

type InputOutputInfo struct {
	// The name of the input or output
	Name string
	// The input or output's tensor dimensions. Dynamic dimensions are
	// reported as -1.
	Dimensions Shape
}

type Shape []int64

func (s Shape) String() string {
	return fmt.Sprintf("%v", []int64(s))
}

func (s Shape) ValuesInt() []int {
	output := make([]int, len(s))
	for i, v := range s {
		output[i] = int(v)
	}
	return output
}

// NewShape returns a Shape with the given dimensions.
func NewShape(dimensions ...int64) Shape {
	return dimensions
}

// OutputTensor is one named float output of a forward pass, with its flat
// data and the shape reported by the runtime.
type OutputTensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// TokenizedInput holds the result of running the tokenizer on an input.
type TokenizedInput struct {
	Raw               string
	Tokens            []string
	TokenIDs          []uint32
	TypeIDs           []uint32
	AttentionMask     []uint32
	SpecialTokensMask []uint32
	Offsets           [][2]uint
}

// Forward runs the model once on a single fixed-shape input and returns all
// named float outputs. inputIDs and attentionMask must both hold
// batchSize*seqLen elements; the backend widens them to the element type the
// graph expects.
func (m *Model) Forward(inputIDs, attentionMask []int32, batchSize, seqLen int) (map[string]OutputTensor, error) {
	if len(inputIDs) != batchSize*seqLen || len(attentionMask) != batchSize*seqLen {
		return nil, fmt.Errorf("forward inputs must hold %d elements, got %d input ids and %d mask values",
			batchSize*seqLen, len(inputIDs), len(attentionMask))
	}
	switch m.Backend {
	case "ORT":
		return forwardORT(m, inputIDs, attentionMask, batchSize, seqLen)
	case "GO":
		return forwardGo(m, inputIDs, attentionMask, batchSize, seqLen)
	}
	return nil, fmt.Errorf("backend %s not recognized", m.Backend)
}
