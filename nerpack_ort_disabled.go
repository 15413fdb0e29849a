//go:build !cgo || (!ORT && !ALL)

package nerpack

import (
	"errors"

	"github.com/openpharma/nerpack/options"
)

// NewORTSession is unavailable without the ORT build tag and cgo.
func NewORTSession(_ ...options.WithOption) (*Session, error) {
	return nil, errors.New("ORT is not enabled, build with -tags ORT or -tags ALL and cgo")
}
