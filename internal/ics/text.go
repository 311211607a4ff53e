package ics

import (
	"strings"

	ical "github.com/arran4/golang-ical"
	"golang.org/x/text/unicode/norm"
)

// DescriptionText returns the DESCRIPTION of ev as matching text, or ""
// when the property is absent.
//
// The text keeps line breaks in their escaped form (a literal `\n`), which
// is what separates one teacher entry from the next, while escaped commas
// ("\,") are turned back into literal commas for the teacher pattern. The
// result is the same whether or not the decoder already unescaped the
// value. It is also NFC-normalized so that decomposed accents match the
// same character classes as precomposed ones.
func DescriptionText(ev *ical.VEvent) string {
	if ev == nil {
		return ""
	}
	p := ev.GetProperty(ical.ComponentPropertyDescription)
	if p == nil {
		return ""
	}
	return matchText(p.Value)
}

func matchText(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\r\n", `\n`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, `\,`, ",")
	return norm.NFC.String(v)
}

// propertyText returns the value of prop on ev, or "".
func propertyText(ev *ical.VEvent, prop ical.ComponentProperty) string {
	if ev == nil {
		return ""
	}
	if p := ev.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}
