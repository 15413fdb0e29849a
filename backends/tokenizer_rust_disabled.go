//go:build !cgo || (!ORT && !ALL)

package backends

import "errors"

type RustTokenizer struct{}

func loadRustTokenizer(_ []byte, _ *Model) error {
	return errors.New("rust tokenizer is not enabled")
}

func encodeRust(_ *Tokenizer, _ string) (TokenizedInput, error) {
	return TokenizedInput{}, errors.New("rust tokenizer is not enabled")
}

func decodeRust(_ []uint32, _ *Tokenizer, _ bool) string {
	return ""
}
