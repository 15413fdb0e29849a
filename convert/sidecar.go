package convert

import (
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/openpharma/nerpack/backends"
	"github.com/openpharma/nerpack/util/fileutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SidecarPaths are the side tables the host application loads next to the
// package.
type SidecarPaths struct {
	Vocab         string
	Labels        string
	SpecialTokens string
}

type labelsFile struct {
	ID2Label  map[string]string `json:"id2label"`
	Label2ID  map[string]int    `json:"label2id"`
	NumLabels int               `json:"num_labels"`
}

// SpecialTokensFile mirrors the special_tokens.json layout: token strings,
// their vocabulary ids, and the tokenizer's maximum sequence length.
type SpecialTokensFile struct {
	ClsToken    string `json:"cls_token"`
	SepToken    string `json:"sep_token"`
	PadToken    string `json:"pad_token"`
	UnkToken    string `json:"unk_token"`
	MaskToken   string `json:"mask_token"`
	ClsTokenID  int    `json:"cls_token_id"`
	SepTokenID  int    `json:"sep_token_id"`
	PadTokenID  int    `json:"pad_token_id"`
	UnkTokenID  int    `json:"unk_token_id"`
	MaskTokenID int    `json:"mask_token_id"`
	MaxLength   int    `json:"max_length"`
}

// WriteSidecars serializes the vocabulary, label and special-token tables to
// pretty-printed JSON files in dir. The three writes are independent; a
// crash mid-way leaves a partially updated set.
func WriteSidecars(dir string, model *backends.Model) (SidecarPaths, error) {
	paths := SidecarPaths{
		Vocab:         fileutil.PathJoinSafe(dir, "vocab.json"),
		Labels:        fileutil.PathJoinSafe(dir, "labels.json"),
		SpecialTokens: fileutil.PathJoinSafe(dir, "special_tokens.json"),
	}

	if model.Tokenizer == nil || len(model.Tokenizer.Vocab) == 0 {
		return paths, errors.New("model has no vocabulary table to serialize")
	}
	if err := writeJSON(paths.Vocab, model.Tokenizer.Vocab); err != nil {
		return paths, err
	}

	id2label := make(map[string]string, len(model.IDLabelMap))
	for id, label := range model.IDLabelMap {
		id2label[strconv.Itoa(id)] = label
	}
	labels := labelsFile{
		ID2Label:  id2label,
		Label2ID:  model.LabelIDMap,
		NumLabels: model.NumLabels(),
	}
	if err := writeJSON(paths.Labels, &labels); err != nil {
		return paths, err
	}

	specialTokens, err := collectSpecialTokens(model)
	if err != nil {
		return paths, err
	}
	if err := writeJSON(paths.SpecialTokens, specialTokens); err != nil {
		return paths, err
	}
	return paths, nil
}

func collectSpecialTokens(model *backends.Model) (*SpecialTokensFile, error) {
	out := &SpecialTokensFile{MaxLength: model.MaxPositionEmbeddings}
	tokens := map[string]*string{
		"cls_token":  &out.ClsToken,
		"sep_token":  &out.SepToken,
		"pad_token":  &out.PadToken,
		"unk_token":  &out.UnkToken,
		"mask_token": &out.MaskToken,
	}
	ids := map[string]*int{
		"cls_token":  &out.ClsTokenID,
		"sep_token":  &out.SepTokenID,
		"pad_token":  &out.PadTokenID,
		"unk_token":  &out.UnkTokenID,
		"mask_token": &out.MaskTokenID,
	}
	for _, name := range backends.SpecialTokenNames {
		token, ok := model.SpecialTokens[name]
		if !ok {
			return nil, fmt.Errorf("special token %s missing from special_tokens_map.json", name)
		}
		id, ok := model.Tokenizer.TokenID(token)
		if !ok {
			return nil, fmt.Errorf("special token %q is not in the vocabulary", token)
		}
		*tokens[name] = token
		*ids[name] = id
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	writer, err := fileutil.NewFileWriter(path)
	if err != nil {
		return err
	}
	_, writeErr := writer.Write(data)
	return errors.Join(writeErr, writer.Close())
}
