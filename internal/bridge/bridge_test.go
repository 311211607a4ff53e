package bridge

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/go-cmp/cmp"

	"minibridge/internal/ics"
	"minibridge/internal/model"
)

const edtP1 = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//School//EDT//FR\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:alg-1@edt\r\n" +
	"DTSTART:20240902T080000Z\r\n" +
	"DTEND:20240902T100000Z\r\n" +
	"SUMMARY:Algèbre\r\n" +
	"DESCRIPTION:\\nG2\\nDUPONT\\, Jean\\n\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:phy-1@edt\r\n" +
	"SUMMARY:Physique\r\n" +
	"DESCRIPTION:MARTIN\\, Paul\\nDUPONT\\, Jean\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:meet-1@edt\r\n" +
	"SUMMARY:Réunion\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const staffOnly = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:x@edt\r\n" +
	"SUMMARY:Conseil\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func upload(name, body string) model.Upload {
	return model.Upload{Filename: name, Body: []byte(body)}
}

func newTestService(t *testing.T, defaults ics.BuildOptions) *Service {
	t.Helper()
	p, err := ics.NewParser(ics.ParserOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(p, defaults)
}

func TestTeachers(t *testing.T) {
	s := newTestService(t, ics.BuildOptions{})
	cat, err := s.Teachers([]model.Upload{
		upload("EDT_P1A3.ics", edtP1),
		upload("broken.ics", "garbage"),
	})
	if err != nil {
		t.Fatalf("Teachers: %v", err)
	}

	want := &Catalog{
		Teachers: []string{"DUPONT, Jean", "MARTIN, Paul"},
		Files: []FileSummary{{
			Filename: "EDT_P1A3.ics",
			Promo:    "P1",
			Class:    "A3",
			Events:   3,
			Census:   ics.Census{Events: 3},
		}},
		Mode: "regex",
	}
	if diff := cmp.Diff(want, cat, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Rejected"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("catalog (-want +got):\n%s", diff)
	}
	if len(cat.Rejected) != 1 || cat.Rejected[0].Filename != "broken.ics" {
		t.Errorf("rejected = %+v", cat.Rejected)
	}
}

func TestTeachers_Errors(t *testing.T) {
	s := newTestService(t, ics.BuildOptions{})

	if _, err := s.Teachers(nil); !errors.Is(err, ErrNoFiles) {
		t.Errorf("no uploads: err = %v, want ErrNoFiles", err)
	}

	cat, err := s.Teachers([]model.Upload{upload("bad.ics", "nope")})
	if !errors.Is(err, ErrNoCalendars) || !errors.Is(err, ics.ErrMalformedCalendar) {
		t.Errorf("malformed only: err = %v, want ErrNoCalendars wrapping ErrMalformedCalendar", err)
	}
	if cat == nil || len(cat.Rejected) != 1 {
		t.Errorf("catalog should still list the rejection, got %+v", cat)
	}

	cat, err = s.Teachers([]model.Upload{upload("staff.ics", staffOnly)})
	if !errors.Is(err, ErrNoTeachers) {
		t.Errorf("staff only: err = %v, want ErrNoTeachers", err)
	}
	if cat == nil || len(cat.Teachers) != 0 || len(cat.Files) != 1 {
		t.Errorf("catalog = %+v", cat)
	}
}

func TestPreview(t *testing.T) {
	s := newTestService(t, ics.BuildOptions{})
	rows, err := s.Preview([]model.Upload{upload("EDT_P1A3.ics", edtP1)}, []string{"DUPONT, Jean"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	start := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	end := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	want := []model.PreviewRow{
		{
			Start:    &start,
			End:      &end,
			Summary:  "Algèbre",
			Teachers: "DUPONT, Jean",
			Filename: "EDT_P1A3.ics",
			Promo:    "P1",
			Class:    "A3",
			Groups:   []string{"G2"},
		},
		{
			Summary:  "Physique",
			Teachers: "MARTIN, Paul, DUPONT, Jean",
			Filename: "EDT_P1A3.ics",
			Promo:    "P1",
			Class:    "A3",
		},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestPreview_SelectionErrors(t *testing.T) {
	s := newTestService(t, ics.BuildOptions{})
	uploads := []model.Upload{upload("EDT_P1A3.ics", edtP1)}

	for _, sel := range [][]string{nil, {}, {"  ", ""}} {
		if _, err := s.Preview(uploads, sel); !errors.Is(err, ErrEmptySelection) {
			t.Errorf("Preview(%q): err = %v, want ErrEmptySelection", sel, err)
		}
	}

	if _, err := s.Preview([]model.Upload{upload("staff.ics", staffOnly)}, []string{"DUPONT, Jean"}); !errors.Is(err, ErrNoTeachers) {
		t.Errorf("staff only: err = %v, want ErrNoTeachers", err)
	}

	rows, err := s.Preview(uploads, []string{"NOBODY, Here"})
	if err != nil || len(rows) != 0 {
		t.Errorf("unknown teacher: rows = %d, err = %v; want 0, nil", len(rows), err)
	}
}

func TestExport(t *testing.T) {
	s := newTestService(t, ics.BuildOptions{Annotate: true, IncludeTimezone: true})
	exp, err := s.Export([]model.Upload{upload("EDT_P1A3.ics", edtP1)}, []string{" MARTIN, Paul ", "MARTIN, Paul"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if exp.Filename != "MARTIN,_Paul.ics" {
		t.Errorf("filename = %q", exp.Filename)
	}
	if len(exp.Rows) != 1 || exp.Rows[0].Summary != "Physique" {
		t.Errorf("rows = %+v", exp.Rows)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(exp.Body))
	if err != nil {
		t.Fatalf("export does not parse: %v", err)
	}
	var summaries []string
	for _, c := range cal.Components {
		if ev, ok := c.(*ical.VEvent); ok {
			summaries = append(summaries, ev.GetProperty(ical.ComponentPropertySummary).Value)
		}
	}
	if diff := cmp.Diff([]string{"Physique [P1 - A3]"}, summaries); diff != "" {
		t.Errorf("summaries (-want +got):\n%s", diff)
	}
	if !strings.Contains(string(exp.Body), "TZID:Europe/Paris") {
		t.Errorf("timezone block missing")
	}
}

func TestExportWith_OverridesDefaults(t *testing.T) {
	s := newTestService(t, ics.BuildOptions{Annotate: true, IncludeTimezone: true})
	exp, err := s.ExportWith([]model.Upload{upload("EDT_P1A3.ics", edtP1)}, []string{"MARTIN, Paul"}, ics.BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	body := string(exp.Body)
	if strings.Contains(body, "VTIMEZONE") || strings.Contains(body, "[P1") {
		t.Errorf("options not applied:\n%s", body)
	}
}
