package ics

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "minibridge/internal/log"
	"minibridge/internal/model"
)

// ComponentKind tags the blocks found while walking a calendar.
type ComponentKind int

const (
	KindEvent ComponentKind = iota
	KindTimezone
	KindOther
)

func (k ComponentKind) String() string {
	switch k {
	case KindEvent:
		return "VEVENT"
	case KindTimezone:
		return "VTIMEZONE"
	case KindOther:
		return "OTHER"
	default:
		return fmt.Sprintf("ComponentKind(%d)", int(k))
	}
}

// KindOf classifies c. Blocks the library did not type (GeneralComponent)
// are classified by their BEGIN token.
func KindOf(c ical.Component) ComponentKind {
	switch v := c.(type) {
	case *ical.VEvent:
		return KindEvent
	case *ical.VTimezone:
		return KindTimezone
	case *ical.GeneralComponent:
		switch strings.ToUpper(v.Token) {
		case "VEVENT":
			return KindEvent
		case "VTIMEZONE":
			return KindTimezone
		}
	}
	return KindOther
}

// Census counts the blocks of a document by kind, nested ones included.
type Census struct {
	Events    int `json:"events"`
	Timezones int `json:"timezones"`
	Others    int `json:"others"`
}

// NormalizedEvent is the per-VEVENT record the builder filters on.
// Source points into the parsed document and must not be modified.
type NormalizedEvent struct {
	Source   *ical.VEvent
	Filename string

	// Teachers keeps duplicates and order of appearance.
	Teachers []string
	Groups   []string

	// Promo and Class are "" when the filename carries no marker.
	Promo string
	Class string

	// raw holds the source lines of the block, nil when they could not be
	// matched to Source.
	raw *rawBlock
}

// Matches reports whether any of the event's teachers is in selected.
func (e NormalizedEvent) Matches(selected map[string]struct{}) bool {
	for _, t := range e.Teachers {
		if _, ok := selected[t]; ok {
			return true
		}
	}
	return false
}

// Summary returns the SUMMARY value of the source event.
func (e NormalizedEvent) Summary() string {
	return propertyText(e.Source, ical.ComponentPropertySummary)
}

func (e NormalizedEvent) clone() NormalizedEvent {
	e.Teachers = slices.Clone(e.Teachers)
	e.Groups = slices.Clone(e.Groups)
	return e
}

// Document is one decoded upload. The calendar is shared with the parse
// cache and is read-only.
type Document struct {
	Filename string
	Calendar *ical.Calendar
	Events   []NormalizedEvent
	Census   Census

	// header holds the calendar property lines as read, or nil.
	header []string
}

func (d *Document) clone() *Document {
	out := *d
	out.Events = make([]NormalizedEvent, len(d.Events))
	for i, ev := range d.Events {
		out.Events[i] = ev.clone()
	}
	return &out
}

// ParseResult aggregates a batch of uploads.
type ParseResult struct {
	// Documents holds the successfully decoded uploads in input order.
	Documents []*Document
	// Events lists every VEVENT of Documents in encounter order.
	Events []NormalizedEvent
	// Teachers is the sorted, de-duplicated union of all detected names.
	Teachers []string
	// Rejected lists uploads that failed to decode.
	Rejected []*FileError
}

// Err joins the per-file failures, or returns nil if every file decoded.
func (r *ParseResult) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, fe := range r.Rejected {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

// Parse decodes every upload independently. A file that fails is reported
// in Rejected and does not affect the others.
func (p *Parser) Parse(uploads []model.Upload) *ParseResult {
	res := &ParseResult{}
	seen := make(map[string]struct{})

	for _, u := range uploads {
		doc, err := p.ParseFile(u)
		if err != nil {
			appLog.Error("ics parse failed", err, "file", u.Filename)
			res.Rejected = append(res.Rejected, &FileError{Filename: u.Filename, Err: err})
			continue
		}
		res.Documents = append(res.Documents, doc)
		for _, ev := range doc.Events {
			res.Events = append(res.Events, ev)
			for _, t := range ev.Teachers {
				seen[t] = struct{}{}
			}
		}
	}

	res.Teachers = make([]string, 0, len(seen))
	for t := range seen {
		res.Teachers = append(res.Teachers, t)
	}
	slices.Sort(res.Teachers)

	appLog.Debug("ics batch parsed",
		"files", len(uploads),
		"rejected", len(res.Rejected),
		"events", len(res.Events),
		"teachers", len(res.Teachers),
	)
	return res
}

// ParseFile decodes a single upload, going through the cache when enabled.
// The returned Document is a private copy; its Calendar is shared.
func (p *Parser) ParseFile(u model.Upload) (*Document, error) {
	doc, err := p.cached(u)
	if err != nil {
		return nil, err
	}
	return doc.clone(), nil
}

// decode does the uncached work for ParseFile.
func (p *Parser) decode(u model.Upload) (*Document, error) {
	body, ok := stripPreamble(u.Body)
	if !ok {
		return nil, fmt.Errorf("%w: missing BEGIN:VCALENDAR", ErrMalformedCalendar)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCalendar, err)
	}

	doc := &Document{
		Filename: u.Filename,
		Calendar: cal,
	}
	promo, class := DetectContext(u.Filename)

	root, err := scanRaw(body)
	if err != nil {
		appLog.Debug("ics source lines unavailable", "file", u.Filename, "error", err.Error())
	}
	var blocks []*rawBlock
	if root != nil {
		doc.header = root.header(cal.CalendarProperties)
		blocks = root.children
	}

	walk(cal.Components, blocks, func(c ical.Component, rb *rawBlock) {
		switch KindOf(c) {
		case KindEvent:
			doc.Census.Events++
			ev := asEvent(c)
			if ev == nil {
				return
			}
			ne := p.normalize(u.Filename, ev, promo, class)
			if rb.fits(ev.Properties, ev.Components) {
				ne.raw = rb
			}
			doc.Events = append(doc.Events, ne)
		case KindTimezone:
			doc.Census.Timezones++
		case KindOther:
			doc.Census.Others++
		}
	})

	appLog.Info("ics parse completed",
		"file", u.Filename,
		"mode", p.extractor.Mode(),
		"event_count", len(doc.Events),
		"promo", promo,
		"class", class,
	)
	return doc, nil
}

func (p *Parser) normalize(filename string, ev *ical.VEvent, promo, class string) NormalizedEvent {
	text := DescriptionText(ev)
	return NormalizedEvent{
		Source:   ev,
		Filename: filename,
		Teachers: p.extractor.Extract(text),
		Groups:   DetectGroups(text),
		Promo:    promo,
		Class:    class,
	}
}

// walk visits components depth-first, parents before children. blocks are
// the source blocks at the same level; when their count differs from
// components, visit gets nil blocks for the whole subtree.
func walk(components []ical.Component, blocks []*rawBlock, visit func(ical.Component, *rawBlock)) {
	for i, c := range components {
		var rb *rawBlock
		if len(blocks) == len(components) {
			rb = blocks[i]
		}
		visit(c, rb)
		var children []*rawBlock
		if rb != nil {
			children = rb.children
		}
		walk(c.SubComponents(), children, visit)
	}
}

func asEvent(c ical.Component) *ical.VEvent {
	switch v := c.(type) {
	case *ical.VEvent:
		return v
	case *ical.GeneralComponent:
		return &ical.VEvent{ComponentBase: v.ComponentBase}
	}
	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stripPreamble drops a UTF-8 BOM and leading blank lines, and reports
// whether what remains opens a VCALENDAR.
func stripPreamble(body []byte) ([]byte, bool) {
	body = bytes.TrimPrefix(body, utf8BOM)
	body = bytes.TrimLeft(body, " \t\r\n")
	const begin = "BEGIN:VCALENDAR"
	if len(body) < len(begin) {
		return nil, false
	}
	return body, strings.EqualFold(string(body[:len(begin)]), begin)
}
