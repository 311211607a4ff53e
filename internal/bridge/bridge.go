// Package bridge ties the ics core to its shells: it turns a batch of
// uploads plus a teacher selection into a catalog, preview rows or an
// export body. The HTTP server and the CLI both go through it.
package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"minibridge/internal/ics"
	appLog "minibridge/internal/log"
	"minibridge/internal/model"
)

var (
	// ErrNoFiles is returned when a batch holds no upload at all.
	ErrNoFiles = errors.New("no calendar files")

	// ErrNoCalendars is returned when every upload of a batch failed to
	// decode. It wraps the per-file errors.
	ErrNoCalendars = errors.New("no readable calendar")

	// ErrNoTeachers is returned when the decoded batch names no teacher.
	// Nothing can be selected, so nothing is built.
	ErrNoTeachers = errors.New("no teacher detected")

	// ErrEmptySelection is returned by Preview and Export when no teacher
	// was selected.
	ErrEmptySelection = errors.New("no teacher selected")
)

// Service runs parse/filter/build cycles on behalf of a shell. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	parser   *ics.Parser
	defaults ics.BuildOptions
}

func NewService(parser *ics.Parser, defaults ics.BuildOptions) *Service {
	return &Service{parser: parser, defaults: defaults}
}

// Parser exposes the underlying parser (cache stats, purge).
func (s *Service) Parser() *ics.Parser {
	return s.parser
}

// Defaults returns the build options used by Export.
func (s *Service) Defaults() ics.BuildOptions {
	return s.defaults
}

// FileSummary describes one decoded upload.
type FileSummary struct {
	Filename string     `json:"filename"`
	Promo    string     `json:"promo,omitempty"`
	Class    string     `json:"class,omitempty"`
	Events   int        `json:"events"`
	Census   ics.Census `json:"census"`
}

// Rejection describes one upload that could not be decoded.
type Rejection struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Catalog is the result of scanning a batch for teachers.
type Catalog struct {
	Teachers []string      `json:"teachers"`
	Files    []FileSummary `json:"files"`
	Rejected []Rejection   `json:"rejected,omitempty"`
	Mode     string        `json:"mode"`
}

// Export is a built calendar ready to be written or downloaded.
type Export struct {
	Body     []byte
	Filename string
	Rows     []model.PreviewRow
}

// Teachers parses uploads and lists the teachers they mention. The catalog
// is returned alongside ErrNoTeachers or ErrNoCalendars so the caller can
// still show which files were rejected.
func (s *Service) Teachers(uploads []model.Upload) (*Catalog, error) {
	res, err := s.parse(uploads)
	if res == nil {
		return nil, err
	}
	return catalogOf(res, s.parser.Mode()), err
}

// Preview returns one row per event matching selection, in encounter order.
func (s *Service) Preview(uploads []model.Upload, selection []string) ([]model.PreviewRow, error) {
	res, selected, err := s.prepare(uploads, selection)
	if err != nil {
		return nil, err
	}
	return previewRows(ics.Select(res.Events, selected)), nil
}

// Export builds the filtered calendar with the service defaults.
func (s *Service) Export(uploads []model.Upload, selection []string) (*Export, error) {
	return s.ExportWith(uploads, selection, s.defaults)
}

// ExportWith builds the filtered calendar with explicit options.
func (s *Service) ExportWith(uploads []model.Upload, selection []string, opts ics.BuildOptions) (*Export, error) {
	res, selected, err := s.prepare(uploads, selection)
	if err != nil {
		return nil, err
	}
	names := setKeys(selection)

	cal := ics.Build(res.Documents, res.Events, names, opts)
	rows := previewRows(ics.Select(res.Events, selected))
	out := &Export{
		Body:     ics.Serialize(cal),
		Filename: ics.SuggestedFilename(names),
		Rows:     rows,
	}

	appLog.Info("export built",
		"teachers", len(names),
		"events", len(rows),
		"bytes", len(out.Body),
		"annotate", opts.Annotate,
		"timezone", opts.IncludeTimezone,
	)
	return out, nil
}

func (s *Service) parse(uploads []model.Upload) (*ics.ParseResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	res := s.parser.Parse(uploads)
	if len(res.Documents) == 0 {
		return res, fmt.Errorf("%w: %w", ErrNoCalendars, res.Err())
	}
	if len(res.Teachers) == 0 {
		appLog.Warn("no teacher detected", "files", len(uploads), "events", len(res.Events))
		return res, ErrNoTeachers
	}
	return res, nil
}

func (s *Service) prepare(uploads []model.Upload, selection []string) (*ics.ParseResult, map[string]struct{}, error) {
	res, err := s.parse(uploads)
	if err != nil {
		return nil, nil, err
	}
	names := setKeys(selection)
	if len(names) == 0 {
		return nil, nil, ErrEmptySelection
	}
	selected := make(map[string]struct{}, len(names))
	for _, n := range names {
		selected[n] = struct{}{}
	}
	return res, selected, nil
}

// setKeys trims the selection and drops blanks and repeats, keeping order.
func setKeys(selection []string) []string {
	seen := make(map[string]struct{}, len(selection))
	out := make([]string, 0, len(selection))
	for _, s := range selection {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func catalogOf(res *ics.ParseResult, mode ics.ExtractMode) *Catalog {
	c := &Catalog{
		Teachers: res.Teachers,
		Files:    make([]FileSummary, 0, len(res.Documents)),
		Mode:     string(mode),
	}
	if c.Teachers == nil {
		c.Teachers = []string{}
	}
	for _, doc := range res.Documents {
		promo, class := ics.DetectContext(doc.Filename)
		c.Files = append(c.Files, FileSummary{
			Filename: doc.Filename,
			Promo:    promo,
			Class:    class,
			Events:   len(doc.Events),
			Census:   doc.Census,
		})
	}
	for _, fe := range res.Rejected {
		c.Rejected = append(c.Rejected, Rejection{Filename: fe.Filename, Error: fe.Err.Error()})
	}
	return c
}

func previewRows(events []ics.NormalizedEvent) []model.PreviewRow {
	rows := make([]model.PreviewRow, 0, len(events))
	for _, ev := range events {
		row := model.PreviewRow{
			Summary:  ev.Summary(),
			Teachers: strings.Join(ev.Teachers, ", "),
			Filename: ev.Filename,
			Promo:    ev.Promo,
			Class:    ev.Class,
			Groups:   ev.Groups,
		}
		if t, err := ev.Source.GetStartAt(); err == nil {
			row.Start = timePtr(t)
		}
		if t, err := ev.Source.GetEndAt(); err == nil {
			row.End = timePtr(t)
		}
		rows = append(rows, row)
	}
	return rows
}

func timePtr(t time.Time) *time.Time {
	return &t
}
