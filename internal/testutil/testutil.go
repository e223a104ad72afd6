// Package testutil holds fixtures shared by package tests: synthetic spread
// rasters and in-memory filesystems.
package testutil

import (
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// NewMemFs returns an empty in-memory filesystem.
func NewMemFs(t *testing.T) afero.Fs {
	t.Helper()
	return afero.NewMemMapFs()
}

// WriteFile writes data into fs, creating parent directories.
func WriteFile(t *testing.T, fs afero.Fs, name string, data []byte) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(path.Dir(name), 0o755))
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644), "write %s", name)
}

