package mlpackage

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func packageFixture() *Package {
	pkg := New([]byte("not a real graph"))
	pkg.Inputs = []TensorSpec{
		{Name: "input_ids", DType: "int32", Shape: []int64{1, 512}},
		{Name: "attention_mask", DType: "int32", Shape: []int64{1, 512}},
	}
	pkg.Outputs = []TensorSpec{
		{Name: "logits", DType: "float32", Shape: []int64{1, 512, 5}},
	}
	pkg.Metadata = Metadata{
		ShortDescription: "Biomedical Named Entity Recognition",
		Author:           "d4data/biomedical-ner-all via Hugging Face",
		License:          "Check original model license",
		Version:          "1.0",
	}
	pkg.MinPlatformVersion = "18"
	pkg.ComputeUnits = "all"
	return pkg
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BiomedicalNER"+Extension)
	pkg := packageFixture()
	assert.NoError(t, pkg.Save(path))

	loaded, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, pkg.Manifest, loaded.Manifest)
	assert.Equal(t, []byte("not a real graph"), loaded.ModelBytes())
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BiomedicalNER"+Extension)
	assert.NoError(t, packageFixture().Save(path))

	updated := packageFixture()
	updated.Metadata.Version = "2.0"
	assert.NoError(t, updated.Save(path))

	loaded, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "2.0", loaded.Metadata.Version)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"+Extension))
	assert.Error(t, err)
}

func TestLoadCorruptedArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt"+Extension)
	assert.NoError(t, os.WriteFile(path, []byte("definitely not a zip"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "not a valid archive")
}

func TestLoadChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tampered"+Extension)
	writeTamperedPackage(t, path)
	_, err := Load(path)
	assert.ErrorContains(t, err, "checksum mismatch")
}

// writeTamperedPackage builds an archive whose manifest declares a checksum
// for different model bytes than the archive carries.
func writeTamperedPackage(t *testing.T, path string) {
	t.Helper()
	manifest := Manifest{
		FormatVersion: FormatVersion,
		ModelChecksum: Checksum([]byte("the original bytes")),
	}
	manifestBytes, err := json.Marshal(&manifest)
	assert.NoError(t, err)

	file, err := os.Create(path)
	assert.NoError(t, err)
	archive := zip.NewWriter(file)
	entry, err := archive.Create(manifestEntryName)
	assert.NoError(t, err)
	_, err = entry.Write(manifestBytes)
	assert.NoError(t, err)
	entry, err = archive.Create(modelEntryName)
	assert.NoError(t, err)
	_, err = entry.Write([]byte("swapped bytes"))
	assert.NoError(t, err)
	assert.NoError(t, archive.Close())
	assert.NoError(t, file.Close())
}

func TestLoadNewerFormatVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future"+Extension)
	pkg := packageFixture()
	pkg.FormatVersion = FormatVersion + 1
	assert.NoError(t, pkg.Save(path))
	_, err := Load(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestDescriptions(t *testing.T) {
	pkg := packageFixture()
	pkg.SetInputDescription("input_ids", "Tokenized input text (BERT tokens)")
	pkg.SetOutputDescription("logits", "Raw logits for each token classification")
	pkg.SetInputDescription("no_such_input", "ignored")

	spec, ok := pkg.InputSpec("input_ids")
	assert.True(t, ok)
	assert.Equal(t, "Tokenized input text (BERT tokens)", spec.Description)
	out, ok := pkg.OutputSpec("logits")
	assert.True(t, ok)
	assert.Equal(t, "Raw logits for each token classification", out.Description)
	_, ok = pkg.InputSpec("no_such_input")
	assert.False(t, ok)
}
