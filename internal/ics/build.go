package ics

import (
	"bytes"
	"slices"
	"strings"

	ical "github.com/arran4/golang-ical"
)

// BuildOptions controls what Build adds on top of the matched events.
type BuildOptions struct {
	// Annotate appends " [promo - class - groups]" to each event summary.
	Annotate bool
	// IncludeTimezone adds the Europe/Paris VTIMEZONE block.
	IncludeTimezone bool
}

// Output is a calendar produced by Build. Copied blocks are written from
// their source lines, so property values keep their original escaping.
type Output struct {
	*ical.Calendar

	header []string
	raw    map[ical.Component]*rawBlock
}

// Build assembles a new calendar holding the events whose teachers
// intersect selection.
//
// Top-level properties come from the first document only, in order.
// Without annotation the source VEVENTs are added as-is; with annotation
// each is copied property by property with SUMMARY rewritten in place.
// Sub-components (alarms...) are carried over unchanged either way. An
// empty selection yields a calendar with no events.
func Build(docs []*Document, events []NormalizedEvent, selection []string, opts BuildOptions) *Output {
	// Not ical.NewCalendar: that one adds its own VERSION/PRODID.
	out := &Output{
		Calendar: &ical.Calendar{
			Components:         []ical.Component{},
			CalendarProperties: []ical.CalendarProperty{},
		},
		raw: make(map[ical.Component]*rawBlock),
	}

	if len(docs) > 0 && docs[0] != nil && docs[0].Calendar != nil {
		for _, p := range docs[0].Calendar.CalendarProperties {
			out.CalendarProperties = append(out.CalendarProperties, ical.CalendarProperty{
				BaseProperty: cloneBaseProperty(p.BaseProperty),
			})
		}
		out.header = docs[0].header
	}

	if opts.IncludeTimezone {
		out.Components = append(out.Components, ParisTimezone())
	}

	selected := make(map[string]struct{}, len(selection))
	for _, s := range selection {
		selected[s] = struct{}{}
	}

	for _, ev := range Select(events, selected) {
		if !opts.Annotate {
			out.Components = append(out.Components, ev.Source)
			if ev.raw != nil {
				out.raw[ev.Source] = ev.raw
			}
			continue
		}
		cp := annotatedCopy(ev)
		out.Components = append(out.Components, cp)
		if ev.raw != nil {
			out.raw[cp] = ev.raw.withProperties(ev.Source.Properties, cp.Properties)
		}
	}
	return out
}

// Select returns the events matching selected, in order.
func Select(events []NormalizedEvent, selected map[string]struct{}) []NormalizedEvent {
	var out []NormalizedEvent
	for _, ev := range events {
		if ev.Matches(selected) {
			out = append(out, ev)
		}
	}
	return out
}

// Serialize renders out in iCalendar wire form: CRLF line endings, lines
// folded at 75 octets.
func Serialize(out *Output) []byte {
	cfg := &ical.SerializationConfiguration{
		MaxLength:         75,
		PropertyMaxLength: 75,
		NewLine:           string(ical.WithNewLineWindows),
	}
	var b bytes.Buffer
	_, _ = b.WriteString("BEGIN:VCALENDAR" + cfg.NewLine)
	if out.header != nil {
		for _, l := range out.header {
			_ = writeFolded(&b, l, cfg)
		}
	} else {
		for _, p := range out.CalendarProperties {
			_ = p.SerializeTo(&b, cfg)
		}
	}
	for _, c := range out.Components {
		if rb := out.raw[c]; rb != nil {
			_ = writeBlock(&b, rb, cfg)
			continue
		}
		_ = c.SerializeTo(&b, cfg)
	}
	_, _ = b.WriteString("END:VCALENDAR" + cfg.NewLine)
	return b.Bytes()
}

// Annotation returns "[P1 - A3 - G2]" built from the labels present on ev,
// or "" when it has none.
func Annotation(ev NormalizedEvent) string {
	parts := make([]string, 0, 2+len(ev.Groups))
	if ev.Promo != "" {
		parts = append(parts, ev.Promo)
	}
	if ev.Class != "" {
		parts = append(parts, ev.Class)
	}
	parts = append(parts, ev.Groups...)
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, " - ") + "]"
}

// AnnotatedSummary returns the summary of ev with its annotation appended.
func AnnotatedSummary(ev NormalizedEvent) string {
	tag := Annotation(ev)
	summary := ev.Summary()
	switch {
	case tag == "":
		return summary
	case summary == "":
		return tag
	default:
		return summary + " " + tag
	}
}

func annotatedCopy(ev NormalizedEvent) *ical.VEvent {
	src := ev.Source
	out := &ical.VEvent{}
	out.Properties = make([]ical.IANAProperty, 0, len(src.Properties)+1)

	summary := AnnotatedSummary(ev)
	replaced := false
	for _, p := range src.Properties {
		cp := ical.IANAProperty{BaseProperty: cloneBaseProperty(p.BaseProperty)}
		if strings.EqualFold(cp.IANAToken, string(ical.ComponentPropertySummary)) && !replaced {
			cp.Value = summary
			replaced = true
		}
		out.Properties = append(out.Properties, cp)
	}
	if !replaced && summary != "" {
		out.Properties = append(out.Properties, newProperty(string(ical.ComponentPropertySummary), summary))
	}

	out.Components = slices.Clone(src.Components)
	return out
}

func cloneBaseProperty(p ical.BaseProperty) ical.BaseProperty {
	out := p
	if p.ICalParameters != nil {
		out.ICalParameters = make(map[string][]string, len(p.ICalParameters))
		for k, v := range p.ICalParameters {
			out.ICalParameters[k] = slices.Clone(v)
		}
	}
	return out
}

// SuggestedFilename names the export after the selected teachers, spaces
// replaced by underscores: ["DUPONT, Jean"] -> "DUPONT,_Jean.ics".
func SuggestedFilename(selection []string) string {
	parts := make([]string, len(selection))
	for i, s := range selection {
		parts[i] = strings.ReplaceAll(s, " ", "_")
	}
	return strings.Join(parts, "_") + ".ics"
}
