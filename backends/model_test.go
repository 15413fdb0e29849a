package backends

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testConfig = `{
	"max_position_embeddings": 512,
	"pad_token_id": 0,
	"vocab_size": 30522,
	"id2label": {"0": "O", "1": "B-Medication", "2": "I-Medication"},
	"label2id": {"O": 0, "B-Medication": 1, "I-Medication": 2}
}`

const testSpecialTokensMap = `{
	"cls_token": "[CLS]",
	"sep_token": "[SEP]",
	"pad_token": "[PAD]",
	"unk_token": "[UNK]",
	"mask_token": {"content": "[MASK]", "lstrip": false}
}`

func writeModelDir(t *testing.T, config, specialTokens string) string {
	t.Helper()
	dir := t.TempDir()
	if config != "" {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(config), 0o644))
	}
	if specialTokens != "" {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, "special_tokens_map.json"), []byte(specialTokens), 0o644))
	}
	return dir
}

func TestLoadModelConfig(t *testing.T) {
	model := &Model{Path: writeModelDir(t, testConfig, testSpecialTokensMap)}
	err := loadModelConfig(model)
	assert.NoError(t, err)

	assert.Equal(t, 512, model.MaxPositionEmbeddings)
	assert.Equal(t, int64(0), model.PadToken)
	assert.Equal(t, 30522, model.VocabSize)
	assert.Equal(t, 3, model.NumLabels())
	assert.Equal(t, "B-Medication", model.IDLabelMap[1])
	assert.Equal(t, 1, model.LabelIDMap["B-Medication"])
	assert.Equal(t, "[CLS]", model.SpecialTokens["cls_token"])
	assert.Equal(t, "[MASK]", model.SpecialTokens["mask_token"])
}

func TestLoadModelConfigDuplicateLabels(t *testing.T) {
	config := `{"id2label": {"0": "O", "1": "O"}}`
	model := &Model{Path: writeModelDir(t, config, "")}
	err := loadModelConfig(model)
	assert.ErrorContains(t, err, "not a bijection")
}

func TestLoadModelConfigMissingFiles(t *testing.T) {
	// an empty model directory is tolerated at this stage; later stages
	// reject the missing label maps and tokenizer
	model := &Model{Path: t.TempDir()}
	assert.NoError(t, loadModelConfig(model))
	assert.Equal(t, 0, model.NumLabels())
}

func TestGetOnnxModelPath(t *testing.T) {
	dir := t.TempDir()
	model := &Model{Path: dir}
	err := GetOnnxModelPath(model)
	assert.ErrorContains(t, err, "no .onnx file")

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("graph"), 0o644))
	assert.NoError(t, GetOnnxModelPath(model))
	assert.Equal(t, filepath.Join(dir, "model.onnx"), model.OnnxPath)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "model_quantized.onnx"), []byte("graph"), 0o644))
	model = &Model{Path: dir}
	err = GetOnnxModelPath(model)
	assert.ErrorContains(t, err, "multiple .onnx files")

	model = &Model{Path: dir, OnnxFilename: "model_quantized.onnx"}
	assert.NoError(t, GetOnnxModelPath(model))
	assert.Equal(t, filepath.Join(dir, "model_quantized.onnx"), model.OnnxPath)
}

func TestGetOnnxModelPathNested(t *testing.T) {
	// the resolved path must stay anchored to the model directory, also for
	// graphs in subfolders like onnx/model.onnx
	dir := t.TempDir()
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "onnx"), 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "onnx", "model.onnx"), []byte("graph"), 0o644))

	model := &Model{Path: dir}
	assert.NoError(t, GetOnnxModelPath(model))
	assert.Equal(t, filepath.Join(dir, "onnx", "model.onnx"), model.OnnxPath)
}
