package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testTokenizerJSON = `{
	"added_tokens": [
		{"id": 0, "content": "[PAD]"},
		{"id": 101, "content": "[CLS]"},
		{"id": 102, "content": "[SEP]"}
	],
	"model": {
		"type": "WordPiece",
		"vocab": {"take": 5, "##mg": 6, "twice": 7}
	}
}`

func TestParseVocab(t *testing.T) {
	vocab, err := ParseVocab([]byte(testTokenizerJSON))
	assert.NoError(t, err)
	assert.Len(t, vocab, 6)
	assert.Equal(t, 5, vocab["take"])
	assert.Equal(t, 101, vocab["[CLS]"])

	tokenizer := &Tokenizer{Vocab: vocab}
	id, ok := tokenizer.TokenID("[SEP]")
	assert.True(t, ok)
	assert.Equal(t, 102, id)
	_, ok = tokenizer.TokenID("missing")
	assert.False(t, ok)
}

func TestParseVocabNoTable(t *testing.T) {
	_, err := ParseVocab([]byte(`{"model": {"type": "BPE"}}`))
	assert.ErrorContains(t, err, "no model.vocab table")

	_, err = ParseVocab([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeUnknownRuntime(t *testing.T) {
	_, err := Encode(&Tokenizer{Runtime: "JAVA"}, "text")
	assert.ErrorContains(t, err, "not recognized")
}
