//go:build cgo && (ORT || ALL)

package backends

import (
	"github.com/daulet/tokenizers"
)

type RustTokenizer struct {
	Tokenizer *tokenizers.Tokenizer
	Options   []tokenizers.EncodeOption
}

func loadRustTokenizer(tokenizerBytes []byte, model *Model) error {
	tk, tkErr := tokenizers.FromBytes(tokenizerBytes)
	if tkErr != nil {
		return tkErr
	}
	model.Tokenizer = &Tokenizer{
		Runtime: "RUST",
		RustTokenizer: &RustTokenizer{
			Tokenizer: tk,
			Options: []tokenizers.EncodeOption{
				tokenizers.WithReturnTokens(),
				tokenizers.WithReturnTypeIDs(),
				tokenizers.WithReturnAttentionMask(),
				tokenizers.WithReturnSpecialTokensMask(),
				tokenizers.WithReturnOffsets(),
			},
		},
		MaxAllowedTokens: model.MaxPositionEmbeddings,
		Destroy: func() error {
			return tk.Close()
		},
	}
	return nil
}

func encodeRust(tk *Tokenizer, input string) (TokenizedInput, error) {
	output := tk.RustTokenizer.Tokenizer.EncodeWithOptions(input, true, tk.RustTokenizer.Options...)

	maxTokens := len(output.IDs)
	if tk.MaxAllowedTokens > 0 && tk.MaxAllowedTokens < maxTokens {
		maxTokens = tk.MaxAllowedTokens
	}
	offsets := make([][2]uint, maxTokens)
	for i := range maxTokens {
		offsets[i] = [2]uint{uint(output.Offsets[i][0]), uint(output.Offsets[i][1])}
	}
	return TokenizedInput{
		Raw:               input,
		Tokens:            output.Tokens[:maxTokens],
		TokenIDs:          output.IDs[:maxTokens],
		TypeIDs:           output.TypeIDs[:maxTokens],
		AttentionMask:     output.AttentionMask[:maxTokens],
		SpecialTokensMask: output.SpecialTokensMask[:maxTokens],
		Offsets:           offsets,
	}, nil
}

func decodeRust(tokens []uint32, tokenizer *Tokenizer, skipSpecialTokens bool) string {
	return tokenizer.RustTokenizer.Tokenizer.Decode(tokens, skipSpecialTokens)
}
