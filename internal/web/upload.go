package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"minibridge/internal/ics"
	"minibridge/internal/model"
)

// Multipart field names.
const (
	fieldFiles    = "files"
	fieldTeacher  = "teacher"
	fieldAnnotate = "annotate"
	fieldTimezone = "timezone"
)

// memoryLimit is how much of a multipart form is held in memory before
// spilling file parts to disk.
const memoryLimit = 8 << 20

var (
	errBadForm      = errors.New("bad form")
	errUploadTooBig = errors.New("upload too large")
)

// uploadForm is a decoded multipart request.
type uploadForm struct {
	Uploads  []model.Upload
	Teachers []string

	// Annotate and Timezone are nil when the field was not sent.
	Annotate *bool
	Timezone *bool
}

// buildOptions overlays the form switches on defaults.
func (f *uploadForm) buildOptions(defaults ics.BuildOptions) ics.BuildOptions {
	opts := defaults
	if f.Annotate != nil {
		opts.Annotate = *f.Annotate
	}
	if f.Timezone != nil {
		opts.IncludeTimezone = *f.Timezone
	}
	return opts
}

// readUploadForm parses a multipart request carrying calendar files in
// "files" and selected teachers in repeated "teacher" fields.
// Each file is also capped at maxFile bytes.
func readUploadForm(w http.ResponseWriter, r *http.Request, maxBytes, maxFile int64) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errUploadTooBig, mbe.Limit)
		}
		return nil, fmt.Errorf("%w: %w", errBadForm, err)
	}
	defer r.MultipartForm.RemoveAll()

	form := &uploadForm{}
	for _, fh := range r.MultipartForm.File[fieldFiles] {
		u, err := readPart(fh, maxFile)
		if errors.Is(err, ics.ErrFileTooLarge) {
			return nil, fmt.Errorf("%w: %s: %w", errUploadTooBig, fh.Filename, err)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errBadForm, fh.Filename, err)
		}
		form.Uploads = append(form.Uploads, u)
	}

	values := r.MultipartForm.Value
	form.Teachers = values[fieldTeacher]

	var err error
	if form.Annotate, err = optionalBool(values, fieldAnnotate); err != nil {
		return nil, err
	}
	if form.Timezone, err = optionalBool(values, fieldTimezone); err != nil {
		return nil, err
	}
	return form, nil
}

func readPart(fh *multipart.FileHeader, maxFile int64) (model.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return model.Upload{}, err
	}
	defer f.Close()

	body, err := ics.ReadLimited(f, maxFile)
	if err != nil {
		return model.Upload{}, err
	}
	return model.Upload{Filename: fh.Filename, Body: body}, nil
}

// optionalBool reads a checkbox-style field. HTML checkboxes send "on".
func optionalBool(values map[string][]string, name string) (*bool, error) {
	vs := values[name]
	if len(vs) == 0 {
		return nil, nil
	}
	v := strings.TrimSpace(vs[len(vs)-1])
	if strings.EqualFold(v, "on") {
		b := true
		return &b, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %q is not a boolean", errBadForm, name, v)
	}
	return &b, nil
}
