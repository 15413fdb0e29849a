package nerpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGoSession(t *testing.T) {
	session, err := NewGoSession()
	assert.NoError(t, err)
	assert.Equal(t, "GO", session.options.Backend)
	assert.NoError(t, session.Destroy())
}

func TestConvertValidation(t *testing.T) {
	session, err := NewGoSession()
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, session.Destroy())
	}()

	_, err = session.Convert(ConvertConfig{OutputDir: t.TempDir()})
	assert.ErrorContains(t, err, "model path is required")

	_, err = session.Convert(ConvertConfig{ModelPath: "some/model"})
	assert.ErrorContains(t, err, "output directory is required")
}

func TestModelIDFromPath(t *testing.T) {
	assert.Equal(t, "d4data/biomedical-ner-all", ModelIDFromPath("models/d4data/biomedical-ner-all"))
	assert.Equal(t, "d4data/biomedical-ner-all", ModelIDFromPath("/models/d4data/biomedical-ner-all/"))
	assert.Equal(t, "biomedical-ner-all", ModelIDFromPath("biomedical-ner-all"))
}

func TestNewDownloadOptions(t *testing.T) {
	opts := NewDownloadOptions()
	assert.Equal(t, "main", opts.Branch)
	assert.Equal(t, 5, opts.MaxRetries)
	assert.Equal(t, 5, opts.RetryInterval)
	assert.Equal(t, 5, opts.ConcurrentConnections)
}
