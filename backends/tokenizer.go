package backends

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/openpharma/nerpack/options"
	"github.com/openpharma/nerpack/util/fileutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tokenizer wraps one of the two tokenizer runtimes and the vocabulary table
// parsed from tokenizer.json. The table is what gets serialized to the
// vocab.json sidecar and what resolves special-token ids.
type Tokenizer struct {
	RustTokenizer    *RustTokenizer
	GoTokenizer      *GoTokenizer
	Vocab            map[string]int
	Destroy          func() error
	Runtime          string
	MaxAllowedTokens int
}

// TokenID resolves a token string to its vocabulary id.
func (t *Tokenizer) TokenID(token string) (int, bool) {
	id, ok := t.Vocab[token]
	return id, ok
}

func LoadTokenizer(model *Model, s *options.Options) error {
	tokenizerPath := fileutil.PathJoinSafe(model.Path, "tokenizer.json")
	exists, err := fileutil.FileExists(tokenizerPath)
	if err != nil {
		return fmt.Errorf("error checking for existence of tokenizer.json: %w", err)
	}
	if !exists {
		return fmt.Errorf("no tokenizer.json found at %s", model.Path)
	}
	tokenizerBytes, err := fileutil.ReadFileBytes(tokenizerPath)
	if err != nil {
		return err
	}

	switch s.Backend {
	case "ORT":
		err = loadRustTokenizer(tokenizerBytes, model)
	case "GO":
		err = loadGoTokenizer(tokenizerBytes, model)
	default:
		return fmt.Errorf("backend %s not recognized", s.Backend)
	}
	if err != nil {
		return err
	}

	vocab, err := ParseVocab(tokenizerBytes)
	if err != nil {
		return fmt.Errorf("parsing vocabulary from tokenizer.json: %w", err)
	}
	model.Tokenizer.Vocab = vocab
	return nil
}

// ParseVocab extracts the token -> id table from tokenizer.json, merging
// added tokens over the base model vocabulary.
func ParseVocab(tokenizerBytes []byte) (map[string]int, error) {
	var tokenizerFile struct {
		AddedTokens []struct {
			ID      int    `json:"id"`
			Content string `json:"content"`
		} `json:"added_tokens"`
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(tokenizerBytes, &tokenizerFile); err != nil {
		return nil, err
	}
	if tokenizerFile.Model.Vocab == nil {
		return nil, fmt.Errorf("tokenizer.json has no model.vocab table")
	}
	vocab := make(map[string]int, len(tokenizerFile.Model.Vocab)+len(tokenizerFile.AddedTokens))
	for token, id := range tokenizerFile.Model.Vocab {
		vocab[token] = id
	}
	for _, added := range tokenizerFile.AddedTokens {
		vocab[added.Content] = added.ID
	}
	return vocab, nil
}

// Encode tokenizes a single input, truncated to the tokenizer's maximum
// allowed length. Padding is left to the caller, which knows the deployment
// shape.
func Encode(tk *Tokenizer, input string) (TokenizedInput, error) {
	switch tk.Runtime {
	case "RUST":
		return encodeRust(tk, input)
	case "GO":
		return encodeGo(tk, input)
	}
	return TokenizedInput{}, fmt.Errorf("runtime %s not recognized", tk.Runtime)
}

func Decode(tokens []uint32, tokenizer *Tokenizer, skipSpecialTokens bool) (string, error) {
	switch tokenizer.Runtime {
	case "RUST":
		return decodeRust(tokens, tokenizer, skipSpecialTokens), nil
	case "GO":
		return decodeGo(tokens, tokenizer, skipSpecialTokens), nil
	}
	return "", fmt.Errorf("runtime %s not recognized", tokenizer.Runtime)
}
