// Package cvfile holds the file value queued for screening and its transport encoding.
package cvfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	sniffLen = 512
)

// ErrUnreadable is returned when the file content cannot be read.
var ErrUnreadable = errors.New("file is unreadable")

// File is a named binary payload. It is immutable once built.
type File struct {
	Name        string
	Size        int64
	ContentType string

	open func() (io.ReadCloser, error)
}

// FromPath builds a File backed by a path on disk. Content is read lazily;
// only the first bytes are sniffed to detect the content type.
func FromPath(path string) (*File, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnreadable, path, err)
	}

	name := filepath.Base(path)

	return &File{
		Name:        name,
		Size:        stat.Size(),
		ContentType: Sniff(name, head[:n]),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes builds an in-memory File.
func FromBytes(name string, data []byte) *File {
	content := bytes.Clone(data)
	return &File{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: Sniff(name, content),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// FromOpener builds a File from an arbitrary content source.
func FromOpener(name string, size int64, contentType string, open func() (io.ReadCloser, error)) *File {
	return &File{Name: name, Size: size, ContentType: contentType, open: open}
}

// Open returns a fresh reader over the file content.
func (f *File) Open() (io.ReadCloser, error) {
	if f == nil || f.open == nil {
		return nil, fmt.Errorf("%w: no content source", ErrUnreadable)
	}

	r, err := f.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnreadable, f.Name, err)
	}

	return r, nil
}

// Digest returns the hex encoded SHA-256 of the content.
func (f *File) Digest() (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnreadable, f.Name, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sniff detects the content type from the name and leading bytes.
// DOCX files are zip archives, so the extension decides between a plain zip and DOCX.
func Sniff(name string, head []byte) string {
	ct := http.DetectContentType(head)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}

	if ct == "application/zip" && strings.EqualFold(filepath.Ext(name), ".docx") {
		return ContentTypeDOCX
	}

	return ct
}
