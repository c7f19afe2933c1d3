package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDir(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.pdf"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.pdf"), []byte("bravo"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(srcDir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "nested", "ignored.pdf"), []byte("x"), 0o644))

	destPath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, CompressDir(srcDir, destPath))

	zr, err := zip.OpenReader(destPath)
	require.NoError(t, err)
	defer zr.Close()

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}

	// Only top-level regular files, base names only.
	assert.Equal(t, map[string]string{"a.pdf": "alpha", "b.pdf": "bravo"}, contents)
}

func TestCompressDirEmpty(t *testing.T) {
	destPath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, CompressDir(t.TempDir(), destPath))

	zr, err := zip.OpenReader(destPath)
	require.NoError(t, err)
	defer zr.Close()
	assert.Empty(t, zr.File)
}

func TestCompressDirMissingSource(t *testing.T) {
	destPath := filepath.Join(t.TempDir(), "out.zip")
	err := CompressDir(filepath.Join(t.TempDir(), "does-not-exist"), destPath)

	require.Error(t, err)
	assert.NoFileExists(t, destPath)
}
