package backends

import (
	"bytes"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/openpharma/nerpack/util/safeconv"
)

type GoTokenizer struct {
	Tokenizer *tokenizer.Tokenizer
}

func loadGoTokenizer(tokenizerBytes []byte, model *Model) error {
	tk, tkErr := pretrained.FromReader(bytes.NewReader(tokenizerBytes))
	if tkErr != nil {
		return tkErr
	}
	model.Tokenizer = &Tokenizer{
		Runtime:          "GO",
		GoTokenizer:      &GoTokenizer{Tokenizer: tk},
		MaxAllowedTokens: model.MaxPositionEmbeddings,
		Destroy: func() error {
			return nil
		},
	}
	return nil
}

func encodeGo(tk *Tokenizer, input string) (TokenizedInput, error) {
	output, err := tk.GoTokenizer.Tokenizer.EncodeSingle(input, true)
	if err != nil {
		return TokenizedInput{}, err
	}

	if tk.MaxAllowedTokens > 0 && len(output.Tokens) > tk.MaxAllowedTokens {
		output.Tokens = output.Tokens[:tk.MaxAllowedTokens]
		output.Ids = output.Ids[:min(len(output.Ids), tk.MaxAllowedTokens)]
		output.TypeIds = output.TypeIds[:min(len(output.TypeIds), tk.MaxAllowedTokens)]
		output.AttentionMask = output.AttentionMask[:min(len(output.AttentionMask), tk.MaxAllowedTokens)]
		output.SpecialTokenMask = output.SpecialTokenMask[:min(len(output.SpecialTokenMask), tk.MaxAllowedTokens)]
		output.Offsets = output.Offsets[:min(len(output.Offsets), tk.MaxAllowedTokens)]
	}

	return TokenizedInput{
		Raw:               input,
		Tokens:            output.Tokens,
		TokenIDs:          safeconv.IntSliceToUint32Slice(output.Ids),
		TypeIDs:           safeconv.IntSliceToUint32Slice(output.TypeIds),
		AttentionMask:     safeconv.IntSliceToUint32Slice(output.AttentionMask),
		SpecialTokensMask: safeconv.IntSliceToUint32Slice(output.SpecialTokenMask),
		Offsets:           safeconv.IntOffsetsToUintPairs(output.Offsets),
	}, nil
}

func decodeGo(tokens []uint32, tokenizer *Tokenizer, skipSpecialTokens bool) string {
	return tokenizer.GoTokenizer.Tokenizer.Decode(safeconv.Uint32SliceToIntSlice(tokens), skipSpecialTokens)
}
