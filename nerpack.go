// Package nerpack converts Hugging Face token-classification models into
// self-contained on-device inference packages. A Session owns the loaded
// models and the backend runtime; Convert drives the whole path from model
// directory to saved package plus JSON sidecar files.
package nerpack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openpharma/nerpack/backends"
	"github.com/openpharma/nerpack/convert"
	"github.com/openpharma/nerpack/mlpackage"
	"github.com/openpharma/nerpack/options"
	"github.com/openpharma/nerpack/util/fileutil"
)

// Session holds the models loaded so far and the backend runtime state.
// Create one with NewGoSession or NewORTSession and destroy it when done,
// preferably with a defer() call.
type Session struct {
	models             map[string]*backends.Model
	options            *options.Options
	environmentDestroy func() error
}

func newSession(backend string, opts ...options.WithOption) (*Session, error) {
	parsedOptions := options.Defaults()
	parsedOptions.Backend = backend
	// Collect options into a struct, so they can be applied in the correct order later
	for _, option := range opts {
		err := option(parsedOptions)
		if err != nil {
			return nil, err
		}
	}

	session := &Session{
		models:  map[string]*backends.Model{},
		options: parsedOptions,
		environmentDestroy: func() error {
			return nil
		},
	}

	return session, nil
}

// NewGoSession creates a session backed by the pure Go inference runtime.
// It needs no shared libraries and works without cgo.
func NewGoSession(opts ...options.WithOption) (*Session, error) {
	return newSession("GO", opts...)
}

// LoadModel loads the model at path, reusing an already loaded instance when
// the same path is requested twice.
func (s *Session) LoadModel(path string, onnxFilename string) (*backends.Model, error) {
	if model, ok := s.models[path]; ok {
		return model, nil
	}
	model, err := backends.LoadModel(path, onnxFilename, s.options)
	if err != nil {
		return nil, err
	}
	s.models[path] = model
	return model, nil
}

// Destroy frees all loaded models and the backend environment. The session
// must not be used afterwards.
func (s *Session) Destroy() error {
	var err error
	for _, model := range s.models {
		err = errors.Join(err, model.Destroy())
	}
	s.models = nil

	if s.options != nil {
		err = errors.Join(err, s.options.Destroy())
		s.options = nil
	}

	err = errors.Join(err, s.environmentDestroy())
	return err
}

// ConvertConfig parameterizes one model conversion.
type ConvertConfig struct {
	// ModelPath is the local directory holding the Hugging Face model export.
	ModelPath string
	// ModelID is the hub identifier recorded in the package metadata. Derived
	// from ModelPath when empty.
	ModelID string
	// OnnxFilename selects the graph file when the directory holds several.
	OnnxFilename string
	// OutputDir receives the package and its sidecar files.
	OutputDir string
	// PackageName is the package file name without extension.
	PackageName string
	// SequenceLength is the fixed deployment sequence length.
	SequenceLength int
	// Target declares platform version and compute-unit preferences.
	Target convert.Target
}

// ConvertResult reports where the conversion artifacts were written.
type ConvertResult struct {
	PackagePath string
	Package     *mlpackage.Package
	Sidecars    convert.SidecarPaths
	NumLabels   int
	Model       *backends.Model
}

// Convert loads the model, traces one fixed-shape forward pass, lowers the
// traced graph into a package and writes it with its vocabulary, label and
// special-token sidecars.
func (s *Session) Convert(cfg ConvertConfig) (*ConvertResult, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("a model path is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("an output directory is required")
	}
	if cfg.PackageName == "" {
		cfg.PackageName = "BiomedicalNER"
	}
	if cfg.SequenceLength <= 0 {
		cfg.SequenceLength = convert.DefaultSequenceLength
	}
	if cfg.Target == (convert.Target{}) {
		cfg.Target = convert.DefaultTarget()
	}
	if cfg.ModelID == "" {
		cfg.ModelID = ModelIDFromPath(cfg.ModelPath)
	}

	model, err := s.LoadModel(cfg.ModelPath, cfg.OnnxFilename)
	if err != nil {
		return nil, fmt.Errorf("loading model from %s: %w", cfg.ModelPath, err)
	}

	traced, err := convert.TraceModel(model, cfg.SequenceLength)
	if err != nil {
		return nil, fmt.Errorf("tracing %s: %w", cfg.ModelID, err)
	}

	pkg, err := convert.Convert(traced, cfg.Target)
	if err != nil {
		return nil, err
	}
	convert.Annotate(pkg, cfg.ModelID)

	packagePath := fileutil.PathJoinSafe(cfg.OutputDir, cfg.PackageName+mlpackage.Extension)
	if err = pkg.Save(packagePath); err != nil {
		return nil, fmt.Errorf("saving package to %s: %w", packagePath, err)
	}

	sidecars, err := convert.WriteSidecars(cfg.OutputDir, model)
	if err != nil {
		return nil, err
	}

	return &ConvertResult{
		PackagePath: packagePath,
		Package:     pkg,
		Sidecars:    sidecars,
		NumLabels:   model.NumLabels(),
		Model:       model,
	}, nil
}

// ModelIDFromPath derives a readable model identifier from a local path,
// turning the trailing owner/name directories back into hub form.
func ModelIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	if len(parts) == 1 && parts[0] != "" {
		return parts[0]
	}
	return path
}
