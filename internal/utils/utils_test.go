package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("sniffs content", func(t *testing.T) {
		// extension lies, content wins
		p := writeFile(t, dir, "picture.dat", pngHeader)
		f, err := OpenFile(p, 0)
		require.NoError(t, err)
		assert.Equal(t, "picture.dat", f.Name)
		assert.Equal(t, "image/png", f.ContentType)
		assert.EqualValues(t, len(pngHeader), f.Size)

		data, err := f.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
	})

	t.Run("falls back to octet-stream", func(t *testing.T) {
		p := writeFile(t, dir, "blob", []byte{0x00, 0x13, 0x37, 0x00, 0x42})
		f, err := OpenFile(p, 0)
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", f.ContentType)
	})

	t.Run("too large", func(t *testing.T) {
		p := writeFile(t, dir, "big.txt", make([]byte, 2048))
		_, err := OpenFile(p, 1024)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := OpenFile(dir, 0)
		assert.ErrorIs(t, err, ErrIsDirectory)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := OpenFile(filepath.Join(dir, "nope"), 0)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestOpenFilesStopsAtFirstError(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "a.txt", []byte("a"))

	files, err := OpenFiles([]string{ok}, 0)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = OpenFiles([]string{ok, dir}, 0)
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/png", DetectContentType("x.bin", pngHeader))
	assert.Equal(t, "image/jpeg", DetectContentType("photo.jpg", nil))
	assert.Equal(t, "application/octet-stream", DetectContentType("noext", nil))
}

func TestNewFile(t *testing.T) {
	f := NewFile("note.txt", []byte("hello"), "text/markdown")
	assert.Equal(t, "text/markdown", f.ContentType)
	assert.EqualValues(t, 5, f.Size)

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
