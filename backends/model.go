package backends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openpharma/nerpack/options"
	"github.com/openpharma/nerpack/util/fileutil"
)

// SpecialTokenNames are the reserved tokenizer tokens carried over to the
// special-token sidecar, in the order they are serialized.
var SpecialTokenNames = []string{"cls_token", "sep_token", "pad_token", "unk_token", "mask_token"}

// Model is a handle on a token-classification model directory: the ONNX
// graph bytes, the parsed configuration and the tokenizer.
type Model struct {
	ID                    string
	GoModel               *GoModel
	ORTModel              *ORTModel
	Tokenizer             *Tokenizer
	Destroy               func() error
	IDLabelMap            map[int]string
	LabelIDMap            map[string]int
	SpecialTokens         map[string]string
	Path                  string
	OnnxFilename          string
	OnnxPath              string
	OnnxBytes             []byte
	InputsMeta            []InputOutputInfo
	OutputsMeta           []InputOutputInfo
	MaxPositionEmbeddings int
	VocabSize             int
	PadToken              int64
	Backend               string
}

// NumLabels returns the configured number of output classes.
func (m *Model) NumLabels() int {
	return len(m.IDLabelMap)
}

func LoadModel(path string, onnxFilename string, opts *options.Options) (*Model, error) {
	model := &Model{
		ID:           path + ":" + onnxFilename,
		Path:         path,
		OnnxFilename: onnxFilename,
		Backend:      opts.Backend,
	}
	if err := loadModelConfig(model); err != nil {
		return nil, err
	}
	if err := GetOnnxModelPath(model); err != nil {
		return nil, err
	}
	onnxBytes, err := fileutil.ReadFileBytes(model.OnnxPath)
	if err != nil {
		return nil, err
	}
	model.OnnxBytes = onnxBytes
	if err := createModelBackend(model, opts); err != nil {
		return nil, err
	}
	if err := LoadTokenizer(model, opts); err != nil {
		return nil, err
	}

	model.Destroy = func() error {
		var destroyErr error
		if model.Tokenizer != nil {
			destroyErr = model.Tokenizer.Destroy()
		}
		switch model.Backend {
		case "ORT":
			if model.ORTModel != nil {
				destroyErr = errors.Join(destroyErr, model.ORTModel.Destroy())
				model.ORTModel = nil
			}
		case "GO":
			model.GoModel = nil
		}
		return destroyErr
	}
	return model, nil
}

func createModelBackend(model *Model, s *options.Options) error {
	switch s.Backend {
	case "ORT":
		return createORTModelBackend(model, s)
	case "GO":
		return createGoModelBackend(model)
	}
	return fmt.Errorf("backend %s not recognized", s.Backend)
}

func GetOnnxModelPath(model *Model) error {
	onnxFiles, err := getOnnxFiles(model.Path)
	if err != nil {
		return err
	}
	if len(onnxFiles) == 0 {
		return fmt.Errorf("no .onnx file detected at %s. There should be exactly one .onnx file", model.Path)
	}
	if len(onnxFiles) > 1 {
		if model.OnnxFilename == "" {
			return fmt.Errorf("multiple .onnx files detected at %s and no OnnxFilename specified", model.Path)
		}
		for i := range onnxFiles {
			if onnxFiles[i][1] == model.OnnxFilename {
				model.OnnxPath = fileutil.PathJoinSafe(onnxFiles[i]...)
				return nil
			}
		}
		return fmt.Errorf("file %s not found at %s", model.OnnxFilename, model.Path)
	}
	model.OnnxPath = fileutil.PathJoinSafe(onnxFiles[0]...)
	return nil
}

func getOnnxFiles(path string) ([][]string, error) {
	var onnxFiles [][]string
	walker := func(_ context.Context, _ string, parent string, info os.FileInfo, _ io.Reader) (toContinue bool, err error) {
		if strings.HasSuffix(info.Name(), ".onnx") {
			// parent is reported relative to the walked URL
			onnxFiles = append(onnxFiles, []string{fileutil.PathJoinSafe(path, parent), info.Name()})
		}
		return true, nil
	}
	err := fileutil.WalkDir()(context.Background(), path, walker)
	return onnxFiles, err
}

// loadModelConfig reads config.json and special_tokens_map.json from the
// model directory. The label maps are required: the converter needs the
// configured class count and the sidecar writer serializes them verbatim.
func loadModelConfig(model *Model) error {
	configPath := fileutil.PathJoinSafe(model.Path, "config.json")
	exists, err := fileutil.FileExists(configPath)
	if err != nil {
		return err
	}
	if exists {
		configBytes, readErr := fileutil.ReadFileBytes(configPath)
		if readErr != nil {
			return readErr
		}
		configMap := map[string]any{}
		readErr = json.Unmarshal(configBytes, &configMap)
		if readErr != nil {
			return readErr
		}
		if maxPositionEmbeddingsRaw, existsOk := configMap["max_position_embeddings"]; existsOk {
			if maxPositionEmbeddings, castOk := maxPositionEmbeddingsRaw.(float64); castOk {
				model.MaxPositionEmbeddings = int(maxPositionEmbeddings)
			}
		}
		if padTokenRaw, existsOk := configMap["pad_token_id"]; existsOk {
			if padToken, castOk := padTokenRaw.(float64); castOk {
				model.PadToken = int64(padToken)
			}
		}
		if vocabSizeRaw, existsOk := configMap["vocab_size"]; existsOk {
			if vocabSize, castOk := vocabSizeRaw.(float64); castOk {
				model.VocabSize = int(vocabSize)
			} else {
				return errors.New("vocab_size is not a number")
			}
		}
		if id2LabelRaw, existsOk := configMap["id2label"]; existsOk {
			id2Label, castOk := id2LabelRaw.(map[string]any)
			if !castOk {
				return fmt.Errorf("id2label is not a map")
			}
			id2LabelCast := map[int]string{}
			label2IDCast := map[string]int{}
			for k, v := range id2Label {
				kInt, kErr := strconv.Atoi(k)
				if kErr != nil {
					return kErr
				}
				label, labelOk := v.(string)
				if !labelOk {
					return fmt.Errorf("id2label value for id %d is not a string", kInt)
				}
				if existing, dup := label2IDCast[label]; dup {
					return fmt.Errorf("id2label is not a bijection: label %q maps to both %d and %d", label, existing, kInt)
				}
				id2LabelCast[kInt] = label
				label2IDCast[label] = kInt
			}
			model.IDLabelMap = id2LabelCast
			model.LabelIDMap = label2IDCast
		}
	}

	specialTokensPath := fileutil.PathJoinSafe(model.Path, "special_tokens_map.json")
	exists, err = fileutil.FileExists(specialTokensPath)
	if err != nil {
		return err
	}
	if exists {
		specialTokensBytes, readErr := fileutil.ReadFileBytes(specialTokensPath)
		if readErr != nil {
			return readErr
		}
		var specialTokensMap map[string]any
		readErr = json.Unmarshal(specialTokensBytes, &specialTokensMap)
		if readErr != nil {
			return readErr
		}
		model.SpecialTokens = map[string]string{}
		for _, name := range SpecialTokenNames {
			raw, ok := specialTokensMap[name]
			if !ok {
				continue
			}
			switch v := raw.(type) {
			case map[string]any:
				t, contentOk := v["content"]
				if !contentOk {
					return fmt.Errorf("%s is a map but no content field is available", name)
				}
				tString, stringOk := t.(string)
				if !stringOk {
					return fmt.Errorf("%s cannot be converted to string: %v", name, t)
				}
				model.SpecialTokens[name] = tString
			case string:
				model.SpecialTokens[name] = v
			default:
				return fmt.Errorf("%s has unexpected type: %v", name, v)
			}
		}
	}
	return nil
}
