package utils

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const fallbackContentType = "application/octet-stream"

var (
	ErrIsDirectory  = errors.New("utils: path is a directory")
	ErrFileTooLarge = errors.New("utils: file too large")
)

// File is a local file queued for upload.
type File struct {
	Name        string
	Path        string
	ContentType string
	Size        int64
	data        []byte
}

// NewFile builds an in-memory File. An empty contentType is detected from the
// content and name.
func NewFile(name string, data []byte, contentType string) File {
	if contentType == "" {
		contentType = DetectContentType(name, data)
	}
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		data:        data,
	}
}

// ReadAll returns the file content, reading it from disk if the file was
// opened lazily.
func (f File) ReadAll() ([]byte, error) {
	if f.data != nil || f.Path == "" {
		return f.data, nil
	}
	return os.ReadFile(f.Path)
}

// OpenFiles stats each path and sniffs its content type. maxSize of zero
// disables the size check.
func OpenFiles(paths []string, maxSize uint64) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f, err := OpenFile(p, maxSize)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func OpenFile(path string, maxSize uint64) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	if maxSize > 0 && uint64(info.Size()) > maxSize {
		return File{}, fmt.Errorf("%w: %s is %s, limit %s", ErrFileTooLarge, path,
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(maxSize))
	}

	contentType := fallbackContentType
	if mt, err := mimetype.DetectFile(path); err == nil && mt.String() != fallbackContentType {
		contentType = mt.String()
	} else if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		contentType = byExt
	}

	return File{
		Name:        filepath.Base(path),
		Path:        path,
		ContentType: contentType,
		Size:        info.Size(),
	}, nil
}

// DetectContentType sniffs data first and falls back to the file extension.
func DetectContentType(name string, data []byte) string {
	if len(data) > 0 {
		if mt := mimetype.Detect(data); mt.String() != fallbackContentType {
			return mt.String()
		}
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return fallbackContentType
}
