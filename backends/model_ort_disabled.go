//go:build !cgo || (!ORT && !ALL)

package backends

import (
	"errors"

	"github.com/openpharma/nerpack/options"
)

type ORTModel struct {
	Destroy func() error
}

func createORTModelBackend(_ *Model, _ *options.Options) error {
	return errors.New("ORT is not enabled")
}

func forwardORT(_ *Model, _ []int32, _ []int32, _ int, _ int) (map[string]OutputTensor, error) {
	return nil, errors.New("ORT is not enabled")
}
