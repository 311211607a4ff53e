package ics

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCalendar marks an upload that could not be decoded as a
	// VCALENDAR document.
	ErrMalformedCalendar = errors.New("malformed calendar")

	// ErrUnknownExtractMode is returned for an extraction mode other than
	// ModeRegex or ModeMarker.
	ErrUnknownExtractMode = errors.New("unknown teacher extraction mode")

	// ErrFileTooLarge is returned by ReadLimited for input above its limit.
	ErrFileTooLarge = errors.New("file too large")
)

// FileError ties a failure to the upload that caused it. Other files of the
// same batch are unaffected.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
