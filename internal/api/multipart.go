package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// form builds a multipart/form-data body. Errors are sticky; the first one
// is returned from encode.
type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

// optional writes the field only when value is non-empty.
func (f *form) optional(name, value string) {
	if value != "" {
		f.field(name, value)
	}
}

// file attaches the file at path. An empty path is skipped.
func (f *form) file(name, path string) {
	if f.err != nil || path == "" {
		return
	}
	src, err := os.Open(path)
	if err != nil {
		f.err = fmt.Errorf("opening %s: %w", path, err)
		return
	}
	defer src.Close()

	part, err := f.w.CreateFormFile(name, filepath.Base(path))
	if err != nil {
		f.err = err
		return
	}
	if _, err := io.Copy(part, src); err != nil {
		f.err = fmt.Errorf("reading %s: %w", path, err)
	}
}

func (f *form) encode() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return &f.buf, f.w.FormDataContentType(), nil
}
