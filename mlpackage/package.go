// Package mlpackage implements the on-device inference package format: a
// zip archive holding a JSON manifest with tensor schemas and descriptive
// metadata, plus the lowered model graph. Saved packages are what the host
// application ships and loads.
package mlpackage

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/openpharma/nerpack/util/fileutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Extension is the file extension of saved packages.
	Extension = ".nerpack"
	// FormatVersion is bumped on incompatible manifest changes.
	FormatVersion = 1

	manifestEntryName = "Manifest.json"
	modelEntryName    = "Data/model.onnx"
)

// TensorSpec declares one input or output tensor of the packaged graph.
type TensorSpec struct {
	Name        string  `json:"name"`
	DType       string  `json:"dtype"`
	Shape       []int64 `json:"shape"`
	Description string  `json:"description,omitempty"`
}

// Metadata carries the human-readable package annotations.
type Metadata struct {
	ShortDescription string `json:"short_description"`
	Author           string `json:"author"`
	License          string `json:"license"`
	Version          string `json:"version"`
}

// Manifest is the serialized header of a package.
type Manifest struct {
	FormatVersion      int          `json:"format_version"`
	Metadata           Metadata     `json:"metadata"`
	Inputs             []TensorSpec `json:"inputs"`
	Outputs            []TensorSpec `json:"outputs"`
	MinPlatformVersion string       `json:"min_platform_version"`
	ComputeUnits       string       `json:"compute_units"`
	ModelChecksum      string       `json:"model_checksum"`
}

// Package is an in-memory inference package. The model bytes are immutable
// after construction; Save and Load round-trip the whole structure.
type Package struct {
	Manifest
	modelBytes []byte

	runtime *deviceRuntime
}

// New creates a package around the given model graph bytes.
func New(modelBytes []byte) *Package {
	return &Package{
		Manifest: Manifest{
			FormatVersion: FormatVersion,
			ModelChecksum: Checksum(modelBytes),
		},
		modelBytes: modelBytes,
	}
}

// Checksum returns the hex sha256 of the model bytes.
func Checksum(modelBytes []byte) string {
	sum := sha256.Sum256(modelBytes)
	return hex.EncodeToString(sum[:])
}

func (p *Package) ModelBytes() []byte {
	return p.modelBytes
}

// SetInputDescription attaches a human-readable description to a declared
// input tensor. Unknown names are ignored, matching the annotation step's
// fire-and-forget character.
func (p *Package) SetInputDescription(name, description string) {
	setDescription(p.Inputs, name, description)
}

func (p *Package) SetOutputDescription(name, description string) {
	setDescription(p.Outputs, name, description)
}

func setDescription(specs []TensorSpec, name, description string) {
	for i := range specs {
		if specs[i].Name == name {
			specs[i].Description = description
		}
	}
}

// InputSpec returns the declared spec for the named input.
func (p *Package) InputSpec(name string) (TensorSpec, bool) {
	for _, spec := range p.Inputs {
		if spec.Name == name {
			return spec, true
		}
	}
	return TensorSpec{}, false
}

// OutputSpec returns the declared spec for the named output.
func (p *Package) OutputSpec(name string) (TensorSpec, bool) {
	for _, spec := range p.Outputs {
		if spec.Name == name {
			return spec, true
		}
	}
	return TensorSpec{}, false
}

// Save writes the package to path as a zip archive, overwriting any
// existing file.
func (p *Package) Save(path string) error {
	manifestBytes, err := json.MarshalIndent(&p.Manifest, "", "  ")
	if err != nil {
		return err
	}

	writer, err := fileutil.NewFileWriter(path)
	if err != nil {
		return err
	}
	archive := zip.NewWriter(writer)

	manifestEntry, err := archive.Create(manifestEntryName)
	if err != nil {
		return errors.Join(err, archive.Close(), writer.Close())
	}
	if _, err = manifestEntry.Write(manifestBytes); err != nil {
		return errors.Join(err, archive.Close(), writer.Close())
	}
	modelEntry, err := archive.Create(modelEntryName)
	if err != nil {
		return errors.Join(err, archive.Close(), writer.Close())
	}
	if _, err = modelEntry.Write(p.modelBytes); err != nil {
		return errors.Join(err, archive.Close(), writer.Close())
	}
	return errors.Join(archive.Close(), writer.Close())
}

// Load reads a saved package from path and verifies the model checksum
// against the manifest. A missing, truncated or tampered file returns an
// error.
func Load(path string) (*Package, error) {
	packageBytes, err := fileutil.ReadFileBytes(path)
	if err != nil {
		return nil, fmt.Errorf("reading package %s: %w", path, err)
	}
	archive, err := zip.NewReader(bytes.NewReader(packageBytes), int64(len(packageBytes)))
	if err != nil {
		return nil, fmt.Errorf("package %s is not a valid archive: %w", path, err)
	}

	var manifest Manifest
	manifestBytes, err := readEntry(archive, manifestEntryName)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("parsing package manifest: %w", err)
	}
	if manifest.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("package format version %d is newer than supported version %d", manifest.FormatVersion, FormatVersion)
	}

	modelBytes, err := readEntry(archive, modelEntryName)
	if err != nil {
		return nil, err
	}
	if checksum := Checksum(modelBytes); checksum != manifest.ModelChecksum {
		return nil, fmt.Errorf("model checksum mismatch: manifest declares %s, archive holds %s", manifest.ModelChecksum, checksum)
	}

	return &Package{Manifest: manifest, modelBytes: modelBytes}, nil
}

func readEntry(archive *zip.Reader, name string) ([]byte, error) {
	entry, err := archive.Open(name)
	if err != nil {
		return nil, fmt.Errorf("package entry %s: %w", name, err)
	}
	entryBytes, readErr := io.ReadAll(entry)
	return entryBytes, errors.Join(readErr, entry.Close())
}
