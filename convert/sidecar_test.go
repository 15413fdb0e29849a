package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openpharma/nerpack/backends"
)

func sidecarModelFixture() *backends.Model {
	return &backends.Model{
		IDLabelMap: map[int]string{0: "O", 1: "B-Medication", 2: "I-Medication"},
		LabelIDMap: map[string]int{"O": 0, "B-Medication": 1, "I-Medication": 2},
		SpecialTokens: map[string]string{
			"cls_token":  "[CLS]",
			"sep_token":  "[SEP]",
			"pad_token":  "[PAD]",
			"unk_token":  "[UNK]",
			"mask_token": "[MASK]",
		},
		MaxPositionEmbeddings: 512,
		Tokenizer: &backends.Tokenizer{
			Vocab: map[string]int{
				"[PAD]":  0,
				"[UNK]":  100,
				"[CLS]":  101,
				"[SEP]":  102,
				"[MASK]": 103,
				"take":   5000,
			},
		},
	}
}

func TestWriteSidecars(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteSidecars(dir, sidecarModelFixture())
	assert.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "vocab.json"), paths.Vocab)
	assert.Equal(t, filepath.Join(dir, "labels.json"), paths.Labels)
	assert.Equal(t, filepath.Join(dir, "special_tokens.json"), paths.SpecialTokens)

	var vocab map[string]int
	readJSONFile(t, paths.Vocab, &vocab)
	assert.Len(t, vocab, 6)
	assert.Equal(t, 101, vocab["[CLS]"])

	var labels labelsFile
	readJSONFile(t, paths.Labels, &labels)
	assert.Equal(t, 3, labels.NumLabels)
	assert.Equal(t, "B-Medication", labels.ID2Label["1"])
	assert.Equal(t, 1, labels.Label2ID["B-Medication"])
	// label maps remain a bijection after the string-key round trip
	assert.Len(t, labels.ID2Label, len(labels.Label2ID))

	var specialTokens SpecialTokensFile
	readJSONFile(t, paths.SpecialTokens, &specialTokens)
	assert.Equal(t, "[CLS]", specialTokens.ClsToken)
	assert.Equal(t, 101, specialTokens.ClsTokenID)
	assert.Equal(t, "[PAD]", specialTokens.PadToken)
	assert.Equal(t, 0, specialTokens.PadTokenID)
	assert.Equal(t, 103, specialTokens.MaskTokenID)
	assert.Equal(t, 512, specialTokens.MaxLength)
}

func TestWriteSidecarsMissingSpecialToken(t *testing.T) {
	model := sidecarModelFixture()
	delete(model.SpecialTokens, "mask_token")
	_, err := WriteSidecars(t.TempDir(), model)
	assert.ErrorContains(t, err, "mask_token missing")
}

func TestWriteSidecarsTokenNotInVocab(t *testing.T) {
	model := sidecarModelFixture()
	delete(model.Tokenizer.Vocab, "[MASK]")
	_, err := WriteSidecars(t.TempDir(), model)
	assert.ErrorContains(t, err, "not in the vocabulary")
}

func TestWriteSidecarsNoVocab(t *testing.T) {
	model := sidecarModelFixture()
	model.Tokenizer.Vocab = nil
	_, err := WriteSidecars(t.TempDir(), model)
	assert.ErrorContains(t, err, "no vocabulary")
}

func readJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(data, v))
}
