//go:build cgo && (ORT || ALL)

package backends

import (
	"errors"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/openpharma/nerpack/options"
)

type ORTModel struct {
	Session        *ort.DynamicAdvancedSession
	SessionOptions *ort.SessionOptions
	Options        *options.OrtOptions
	Destroy        func() error
}

func createORTModelBackend(model *Model, s *options.Options) error {
	sessionOptions, ok := s.BackendOptions.(*ort.SessionOptions)
	if !ok {
		return errors.New("onnxruntime session options not initialized, create the session with NewORTSession")
	}

	inputs, outputs, err := loadInputOutputMetaORT(model.OnnxBytes)
	if err != nil {
		return err
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		model.OnnxBytes,
		GetNames(inputs),
		GetNames(outputs),
		sessionOptions,
	)
	if err != nil {
		return err
	}

	model.ORTModel = &ORTModel{
		Session:        session,
		SessionOptions: sessionOptions,
		Options:        s.ORTOptions,
		Destroy: func() error {
			return session.Destroy()
		},
	}
	model.InputsMeta = inputs
	model.OutputsMeta = outputs
	return nil
}

func loadInputOutputMetaORT(onnxBytes []byte) ([]InputOutputInfo, []InputOutputInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(onnxBytes)
	if err != nil {
		return nil, nil, err
	}
	return convertORTInputOutputs(inputs), convertORTInputOutputs(outputs), nil
}

func convertORTInputOutputs(inputOutputs []ort.InputOutputInfo) []InputOutputInfo {
	converted := make([]InputOutputInfo, len(inputOutputs))
	for i, inputOutput := range inputOutputs {
		converted[i] = InputOutputInfo{
			Name:       inputOutput.Name,
			Dimensions: Shape(inputOutput.Dimensions),
		}
	}
	return converted
}

func forwardORT(model *Model, inputIDs, attentionMask []int32, batchSize, seqLen int) (result map[string]OutputTensor, err error) {
	inputVals := make([]ort.Value, len(model.InputsMeta))
	defer func() {
		for _, v := range inputVals {
			if v != nil {
				err = errors.Join(err, v.Destroy())
			}
		}
	}()

	for mi, meta := range model.InputsMeta {
		backing := make([]int64, batchSize*seqLen)
		switch meta.Name {
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
			return nil, fmt.Errorf("input %s not recognized", meta.Name)
		}
		t, err := ort.NewTensor(ort.NewShape(int64(batchSize), int64(seqLen)), backing)
		if err != nil {
			return nil, err
		}
		inputVals[mi] = t
	}

	outputTensors := make([]ort.Value, len(model.OutputsMeta))
	if err := model.ORTModel.Session.Run(inputVals, outputTensors); err != nil {
		return nil, err
	}

	converted := map[string]OutputTensor{}
	for i, t := range outputTensors {
		name := model.OutputsMeta[i].Name
		if v, ok := t.(*ort.Tensor[float32]); ok {
			data := v.GetData()
			out := make([]float32, len(data))
			copy(out, data)
			converted[name] = OutputTensor{
				Name:  name,
				Shape: v.GetShape(),
				Data:  out,
			}
		}
		err = errors.Join(err, t.Destroy())
	}
	return converted, err
}
