package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"minibridge/internal/bridge"
	"minibridge/internal/capture"
	"minibridge/internal/config"
	appLog "minibridge/internal/log"
	"minibridge/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// configResponse is the JSON shape for /api/config. Secrets are never sent.
type configResponse struct {
	Extraction  config.ExtractionConfig `json:"extraction"`
	Export      config.ExportConfig     `json:"export"`
	MaxUploadMB int                     `json:"max_upload_mb"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		Extraction:  s.cfg.Extraction,
		Export:      s.cfg.Export,
		MaxUploadMB: s.cfg.MaxUploadMB,
	})
}

// teachersResponse carries the catalog even on failure so the page can
// list rejected files.
type teachersResponse struct {
	*bridge.Catalog
	Error string `json:"error,omitempty"`
}

// handleTeachers lists the teachers named in the uploaded calendars.
//
// POST /api/teachers (multipart: files...)
func (s *Server) handleTeachers(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readForm(w, r)
	if !ok {
		return
	}
	cat, err := s.svc.Teachers(form.Uploads)
	if cat != nil {
		s.metrics.rejectedFiles.Add(float64(len(cat.Rejected)))
	}
	if err != nil {
		status, msg := errorStatus(err)
		if cat == nil {
			writeError(w, status, msg)
			return
		}
		writeJSON(w, status, teachersResponse{Catalog: cat, Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, teachersResponse{Catalog: cat})
}

type previewResponse struct {
	Count int                `json:"count"`
	Rows  []model.PreviewRow `json:"rows"`
}

// handlePreview returns the events an export would contain.
//
// POST /api/preview (multipart: files..., teacher...)
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readForm(w, r)
	if !ok {
		return
	}
	rows, err := s.svc.Preview(form.Uploads, form.Teachers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Count: len(rows), Rows: rows})
}

// handlePreviewHTML renders the preview as the printable page used for
// PNG captures.
//
// POST /api/preview.html (multipart: files..., teacher...)
func (s *Server) handlePreviewHTML(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readForm(w, r)
	if !ok {
		return
	}
	rows, err := s.svc.Preview(form.Uploads, form.Teachers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := capture.RenderPreviewHTML(strings.Join(form.Teachers, " · "), rows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// handleExport returns the filtered calendar as a download.
//
// POST /api/export (multipart: files..., teacher..., [annotate], [timezone])
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	form, ok := s.readForm(w, r)
	if !ok {
		return
	}
	exp, err := s.svc.ExportWith(form.Uploads, form.Teachers, form.buildOptions(s.svc.Defaults()))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.metrics.exports.Inc()
	s.metrics.exportedEvents.Add(float64(len(exp.Rows)))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename}))
	w.Header().Set("X-Event-Count", strconv.Itoa(len(exp.Rows)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Body)
}

func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (*uploadForm, bool) {
	form, err := readUploadForm(w, r, s.cfg.MaxUploadBytes(), s.maxFileBytes)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return form, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "request_id", requestIDFrom(r.Context()), "path", r.URL.Path)
	} else {
		appLog.Debug("request rejected", "request_id", requestIDFrom(r.Context()), "status", status, "error", err.Error())
	}
	writeError(w, status, msg)
}

// errorStatus maps bridge and form errors to an HTTP status and a message
// safe to show to the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errUploadTooBig):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, errBadForm):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, bridge.ErrNoFiles), errors.Is(err, bridge.ErrEmptySelection):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, bridge.ErrNoCalendars), errors.Is(err, bridge.ErrNoTeachers):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
