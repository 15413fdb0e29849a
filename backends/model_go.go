package backends

import (
	"fmt"

	"github.com/advancedclimatesystems/gonnx"
	"gorgonia.org/tensor"
)

// GoModel is the pure-Go ONNX backend. It needs no shared libraries, which
// also makes it the runtime used to exercise a saved package.
type GoModel struct {
	Session *gonnx.Model
}

func createGoModelBackend(model *Model) error {
	session, err := gonnx.NewModelFromBytes(model.OnnxBytes)
	if err != nil {
		return fmt.Errorf("loading onnx graph: %w", err)
	}
	inputs, outputs := loadInputOutputMetaGo(session)
	model.GoModel = &GoModel{Session: session}
	model.InputsMeta = inputs
	model.OutputsMeta = outputs
	return nil
}

func loadInputOutputMetaGo(session *gonnx.Model) ([]InputOutputInfo, []InputOutputInfo) {
	var inputs, outputs []InputOutputInfo

	inputShapes := session.InputShapes()
	for _, name := range session.InputNames() {
		shape := inputShapes[name]
		dimensions := make([]int64, len(shape))
		for i, dim := range shape {
			dimensions[i] = dim.Size
		}
		inputs = append(inputs, InputOutputInfo{
			Name:       name,
			Dimensions: dimensions,
		})
	}
	outputShapes := session.OutputShapes()
	for _, name := range session.OutputNames() {
		shape := outputShapes[name]
		dimensions := make([]int64, len(shape))
		for i, dim := range shape {
			dimensions[i] = dim.Size
		}
		outputs = append(outputs, InputOutputInfo{
			Name:       name,
			Dimensions: dimensions,
		})
	}
	return inputs, outputs
}

func forwardGo(model *Model, inputIDs, attentionMask []int32, batchSize, seqLen int) (map[string]OutputTensor, error) {
	inputMap, err := BuildGoInputTensors(GetNames(model.InputsMeta), inputIDs, attentionMask, batchSize, seqLen)
	if err != nil {
		return nil, err
	}
	outputs, err := model.GoModel.Session.Run(inputMap)
	if err != nil {
		return nil, err
	}
	return ConvertGoOutputs(outputs), nil
}

// BuildGoInputTensors assembles the gonnx input map for a transformer
// forward pass. The graphs consume int64 element types, so the 32-bit ids
// are widened here. token_type_ids, when present, is zeroed (single
// segment).
func BuildGoInputTensors(inputNames []string, inputIDs, attentionMask []int32, batchSize, seqLen int) (gonnx.Tensors, error) {
	inputMap := gonnx.Tensors{}
	for _, name := range inputNames {
		backing := make([]int64, batchSize*seqLen)
		switch name {
		case "input_ids":
			for i, v := range inputIDs {
				backing[i] = int64(v)
			}
		case "attention_mask":
			for i, v := range attentionMask {
				backing[i] = int64(v)
			}
		case "token_type_ids":
			// all zeros
		default:
			return nil, fmt.Errorf("input %s not recognized", name)
		}
		inputMap[name] = tensor.New(
			tensor.WithShape(batchSize, seqLen),
			tensor.WithBacking(backing),
		)
	}
	return inputMap, nil
}

// ConvertGoOutputs extracts every float32 output into an OutputTensor.
func ConvertGoOutputs(outputs gonnx.Tensors) map[string]OutputTensor {
	converted := map[string]OutputTensor{}
	for name, t := range outputs {
		data, ok := t.Data().([]float32)
		if !ok {
			continue
		}
		shape := t.Shape()
		dims := make([]int64, len(shape))
		for i, d := range shape {
			dims[i] = int64(d)
		}
		converted[name] = OutputTensor{
			Name:  name,
			Shape: dims,
			Data:  data,
		}
	}
	return converted
}

func GetNames(info []InputOutputInfo) []string {
	names := make([]string, 0, len(info))
	for _, v := range info {
		names = append(names, v.Name)
	}
	return names
}
