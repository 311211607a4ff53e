package ics

import (
	"bytes"
	"strings"
	"testing"

	ical "github.com/arran4/golang-ical"
	"github.com/google/go-cmp/cmp"

	"minibridge/internal/model"
)

func parseBoth(t *testing.T) *ParseResult {
	t.Helper()
	res := newTestParser(t).Parse([]model.Upload{firstUpload(), secondUpload()})
	if err := res.Err(); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return res
}

func events(cal *ical.Calendar) []*ical.VEvent {
	var out []*ical.VEvent
	for _, c := range cal.Components {
		if ev, ok := c.(*ical.VEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

func reparse(t *testing.T, body []byte) *ical.Calendar {
	t.Helper()
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, body)
	}
	return cal
}

func TestBuild_FullUniverseRoundTrip(t *testing.T) {
	res := parseBoth(t)
	cal := Build(res.Documents, res.Events, res.Teachers, BuildOptions{})
	out := reparse(t, Serialize(cal))

	// Every event with at least one teacher, in encounter order.
	var want []NormalizedEvent
	for _, ev := range res.Events {
		if len(ev.Teachers) > 0 {
			want = append(want, ev)
		}
	}
	got := events(out)
	if len(got) != len(want) {
		t.Fatalf("events = %d, want %d", len(got), len(want))
	}
	for _, ev := range want {
		if ev.raw == nil {
			t.Errorf("event %q has no source lines", ev.Source.GetProperty(ical.ComponentPropertyUniqueId).Value)
		}
	}
	for i := range want {
		if diff := cmp.Diff(propertyPairs(want[i].Source.Properties), propertyPairs(got[i].Properties)); diff != "" {
			t.Errorf("event %d properties changed (-want +got):\n%s", i, diff)
		}
	}
}

func TestSerialize_KeepsSourceLines(t *testing.T) {
	res := parseBoth(t)
	for _, annotate := range []bool{false, true} {
		out := string(Serialize(Build(res.Documents, res.Events, res.Teachers, BuildOptions{Annotate: annotate})))
		for _, want := range []string{
			"\r\nX-WR-CALDESC:Cours,TD;semestre 1\r\n",
			"\r\nCATEGORIES:COURS,TD\r\n",
			"\r\nX-ALT-DESC;FMTTYPE=text/plain:a;b\r\n",
			"\r\nDESCRIPTION:MARTIN\\, Paul\\nDUPONT\\, Jean\\nDUPONT\\, Jean\r\n",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("annotate=%v: output missing %q:\n%s", annotate, want, out)
			}
		}
		if strings.Contains(out, `COURS\,TD`) {
			t.Errorf("annotate=%v: list separator escaped", annotate)
		}
	}
}

func TestSerialize_CRLF(t *testing.T) {
	res := parseBoth(t)
	out := string(Serialize(Build(res.Documents, res.Events, res.Teachers, BuildOptions{Annotate: true, IncludeTimezone: true})))
	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(out, "END:VCALENDAR\r\n") {
		t.Errorf("calendar not CRLF framed:\n%q", out)
	}
	if n := strings.Count(out, "\n"); n != strings.Count(out, "\r\n") {
		t.Errorf("found bare LF line endings:\n%q", out)
	}
}

func TestWriteFolded(t *testing.T) {
	cfg := &ical.SerializationConfiguration{MaxLength: 10, NewLine: "\r\n"}
	tests := []struct {
		in, want string
	}{
		{"SHORT:x", "SHORT:x\r\n"},
		{"SUMMARY:abcdefghij", "SUMMARY:ab\r\n cdefghij\r\n"},
		{"SUMMARY:é", "SUMMARY:é\r\n"},
		{"SUMMARY:éé", "SUMMARY:é\r\n é\r\n"},
	}
	for _, tt := range tests {
		var b bytes.Buffer
		if err := writeFolded(&b, tt.in, cfg); err != nil {
			t.Fatal(err)
		}
		if got := b.String(); got != tt.want {
			t.Errorf("writeFolded(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuild_AnnotatesSummary(t *testing.T) {
	res := parseBoth(t)
	cal := Build(res.Documents, res.Events, []string{"DUPONT, Jean"}, BuildOptions{Annotate: true})
	out := reparse(t, Serialize(cal))

	got := events(out)
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	summaries := []string{
		got[0].GetProperty(ical.ComponentPropertySummary).Value,
		got[1].GetProperty(ical.ComponentPropertySummary).Value,
	}
	want := []string{"Algèbre [P1 - A3 - G2]", "Physique [P1 - A3]"}
	if diff := cmp.Diff(want, summaries); diff != "" {
		t.Errorf("summaries (-want +got):\n%s", diff)
	}

	// SUMMARY keeps its position among the properties.
	var tokens []string
	for _, p := range got[0].Properties {
		tokens = append(tokens, p.IANAToken)
	}
	var srcTokens []string
	for _, p := range res.Events[0].Source.Properties {
		srcTokens = append(srcTokens, p.IANAToken)
	}
	if diff := cmp.Diff(srcTokens, tokens); diff != "" {
		t.Errorf("property order changed:\n%s", diff)
	}
}

func TestBuild_AnnotationDoesNotTouchSource(t *testing.T) {
	res := parseBoth(t)
	before := propertyPairs(res.Events[0].Source.Properties)

	cal := Build(res.Documents, res.Events, []string{"DUPONT, Jean"}, BuildOptions{Annotate: true})

	if diff := cmp.Diff(before, propertyPairs(res.Events[0].Source.Properties)); diff != "" {
		t.Errorf("source event modified:\n%s", diff)
	}
	if res.Events[0].Summary() != "Algèbre" {
		t.Errorf("source summary = %q", res.Events[0].Summary())
	}

	alarms := events(cal.Calendar)[0].Components
	if len(alarms) != 1 || KindOf(alarms[0]) != KindOther {
		t.Errorf("alarm not carried over: %d sub-components", len(alarms))
	}
}

func TestBuild_UnannotatedKeepsSummary(t *testing.T) {
	res := parseBoth(t)
	cal := Build(res.Documents, res.Events, []string{"LEFÈVRE, Hélène"}, BuildOptions{})
	got := events(cal.Calendar)
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	if s := got[0].GetProperty(ical.ComponentPropertySummary).Value; s != "Histoire" {
		t.Errorf("summary = %q, want Histoire", s)
	}
}

func TestBuild_EmptySelection(t *testing.T) {
	res := parseBoth(t)
	cal := Build(res.Documents, res.Events, nil, BuildOptions{IncludeTimezone: true})

	if n := len(events(cal.Calendar)); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
	want := calendarPairs(res.Documents[0].Calendar.CalendarProperties)
	if diff := cmp.Diff(want, calendarPairs(cal.CalendarProperties)); diff != "" {
		t.Errorf("calendar properties (-want +got):\n%s", diff)
	}
	out := string(Serialize(cal))
	if !strings.Contains(out, "BEGIN:VTIMEZONE") {
		t.Errorf("timezone missing from empty export")
	}
}

func TestBuild_UnknownTeacher(t *testing.T) {
	res := parseBoth(t)
	cal := Build(res.Documents, res.Events, []string{"NOBODY, Here"}, BuildOptions{})
	if n := len(events(cal.Calendar)); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
}

func TestBuild_SelectionIsMonotonic(t *testing.T) {
	res := parseBoth(t)
	small := Build(res.Documents, res.Events, []string{"MARTIN, Paul"}, BuildOptions{})
	large := Build(res.Documents, res.Events, []string{"MARTIN, Paul", "LEFÈVRE, Hélène"}, BuildOptions{})

	in := make(map[*ical.VEvent]bool)
	for _, ev := range events(large.Calendar) {
		in[ev] = true
	}
	for _, ev := range events(small.Calendar) {
		if !in[ev] {
			t.Errorf("event %q dropped when selection grew", ev.GetProperty(ical.ComponentPropertyUniqueId).Value)
		}
	}
	if len(events(large.Calendar)) != 3 {
		t.Errorf("large selection events = %d, want 3", len(events(large.Calendar)))
	}
}

func TestBuild_PropertiesFromFirstDocumentOnly(t *testing.T) {
	res := parseBoth(t)
	cal := Build(res.Documents, res.Events, []string{"O'NEIL-SMITH, Anne-Marie"}, BuildOptions{})

	got := calendarPairs(cal.CalendarProperties)
	if diff := cmp.Diff(calendarPairs(res.Documents[0].Calendar.CalendarProperties), got); diff != "" {
		t.Errorf("calendar properties (-want +got):\n%s", diff)
	}
	for _, p := range got {
		if strings.Contains(p, "EDT P2") {
			t.Errorf("second document property leaked: %s", p)
		}
	}
	if len(events(cal.Calendar)) != 1 {
		t.Errorf("events = %d, want the chemistry event", len(events(cal.Calendar)))
	}
}

func TestBuild_NoDocuments(t *testing.T) {
	cal := Build(nil, nil, []string{"DUPONT, Jean"}, BuildOptions{})
	if len(cal.CalendarProperties) != 0 || len(cal.Components) != 0 {
		t.Errorf("want an empty calendar, got %d properties / %d components", len(cal.CalendarProperties), len(cal.Components))
	}
}

func TestAnnotatedSummary(t *testing.T) {
	withSummary := eventWithDescription("")
	withSummary.Properties = append(withSummary.Properties, newProperty("SUMMARY", "Algèbre"))

	tests := []struct {
		name string
		ev   NormalizedEvent
		want string
	}{
		{"all labels", NormalizedEvent{Source: withSummary, Promo: "P1", Class: "A3", Groups: []string{"G2"}}, "Algèbre [P1 - A3 - G2]"},
		{"several groups", NormalizedEvent{Source: withSummary, Groups: []string{"G1", "G2"}}, "Algèbre [G1 - G2]"},
		{"class only", NormalizedEvent{Source: withSummary, Class: "A1"}, "Algèbre [A1]"},
		{"no labels", NormalizedEvent{Source: withSummary}, "Algèbre"},
		{"no summary", NormalizedEvent{Source: &ical.VEvent{}, Promo: "P2"}, "[P2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnnotatedSummary(tt.ev); got != tt.want {
				t.Errorf("AnnotatedSummary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnnotatedCopy_AppendsMissingSummary(t *testing.T) {
	src := &ical.VEvent{}
	src.Properties = append(src.Properties, newProperty("UID", "x@edt"))
	out := annotatedCopy(NormalizedEvent{Source: src, Promo: "P3"})

	if diff := cmp.Diff([]string{"UID=x@edt", "SUMMARY=[P3]"}, propertyPairs(out.Properties)); diff != "" {
		t.Errorf("properties (-want +got):\n%s", diff)
	}
	if len(src.Properties) != 1 {
		t.Errorf("source grew to %d properties", len(src.Properties))
	}
}

func TestSuggestedFilename(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"DUPONT, Jean"}, "DUPONT,_Jean.ics"},
		{[]string{"DUPONT, Jean", "DE LA TOUR, Marc"}, "DUPONT,_Jean_DE_LA_TOUR,_Marc.ics"},
		{nil, ".ics"},
	}
	for _, tt := range tests {
		if got := SuggestedFilename(tt.in); got != tt.want {
			t.Errorf("SuggestedFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
