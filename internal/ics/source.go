package ics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	appLog "minibridge/internal/log"
	"minibridge/internal/model"
)

// MaxFileSize caps a single calendar read from disk or a request body.
const MaxFileSize = 32 << 20

// LoadFiles reads calendar files from disk. Unreadable paths are logged and
// returned in the error slice; the returned uploads only contain files that
// were read successfully. Each upload is named after the base name of its
// path, which is what the promotion/class detection looks at.
func LoadFiles(paths []string) ([]model.Upload, []error) {
	uploads := make([]model.Upload, 0, len(paths))
	errs := make([]error, 0)

	for _, p := range paths {
		u, err := LoadFile(p)
		if err != nil {
			errs = append(errs, &FileError{Filename: p, Err: err})
			appLog.Error("ics file read failed", err, "path", p)
			continue
		}
		uploads = append(uploads, u)
	}
	return uploads, errs
}

// LoadFile reads a single calendar file.
func LoadFile(path string) (model.Upload, error) {
	if path == "" {
		return model.Upload{}, errors.New("empty path")
	}
	f, err := os.Open(path)
	if err != nil {
		return model.Upload{}, err
	}
	defer f.Close()

	body, err := ReadLimited(f, MaxFileSize)
	if err != nil {
		return model.Upload{}, err
	}
	return model.Upload{Filename: filepath.Base(path), Body: body}, nil
}

// ReadLimited reads r fully, failing if it holds more than limit bytes.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	}
	return body, nil
}
