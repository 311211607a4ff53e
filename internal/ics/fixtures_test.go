package ics

import (
	"strings"
	"testing"

	ical "github.com/arran4/golang-ical"

	"minibridge/internal/model"
)

type fixtureEvent struct {
	UID         string
	Summary     string
	Description string // "" means no DESCRIPTION property
	Alarm       bool
	Extra       []string // raw content lines appended after LOCATION
}

func (e fixtureEvent) lines() []string {
	out := []string{
		"BEGIN:VEVENT",
		"UID:" + e.UID,
		"DTSTAMP:20240901T000000Z",
		"DTSTART:20240902T080000Z",
		"DTEND:20240902T100000Z",
		"SUMMARY:" + e.Summary,
		"LOCATION:Salle B12",
	}
	out = append(out, e.Extra...)
	if e.Description != "" {
		out = append(out, "DESCRIPTION:"+e.Description)
	}
	if e.Alarm {
		out = append(out,
			"BEGIN:VALARM",
			"ACTION:DISPLAY",
			"TRIGGER:-PT15M",
			"DESCRIPTION:Rappel",
			"END:VALARM",
		)
	}
	return append(out, "END:VEVENT")
}

func calendarBody(prodID string, events ...fixtureEvent) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
		"X-WR-CALNAME:EDT",
		"X-WR-CALDESC:Cours,TD;semestre 1",
	}
	for _, e := range events {
		lines = append(lines, e.lines()...)
	}
	lines = append(lines, "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

var (
	evAlgebra = fixtureEvent{
		UID:         "alg-1@edt",
		Summary:     "Algèbre",
		Description: `\nG2\nDUPONT\, Jean\n`,
		Alarm:       true,
	}
	evPhysics = fixtureEvent{
		UID:         "phy-1@edt",
		Summary:     "Physique",
		Description: `MARTIN\, Paul\nDUPONT\, Jean\nDUPONT\, Jean`,
		Extra: []string{
			"CATEGORIES:COURS,TD",
			"X-ALT-DESC;FMTTYPE=text/plain:a;b",
		},
	}
	evHistory = fixtureEvent{
		UID:         "his-1@edt",
		Summary:     "Histoire",
		Description: `\nLEFÈVRE\, Hélène`,
	}
	evMeeting = fixtureEvent{
		UID:         "meet-1@edt",
		Summary:     "Réunion",
		Description: `Réunion d'information`,
	}
	evNoDescription = fixtureEvent{
		UID:     "free-1@edt",
		Summary: "Libre",
	}
	evChemistry = fixtureEvent{
		UID:         "chi-1@edt",
		Summary:     "Chimie",
		Description: `G 1\nMARTIN\, Paul\nO'NEIL-SMITH\, Anne-Marie`,
	}
)

func firstUpload() model.Upload {
	return model.Upload{
		Filename: "EDT_P1A3.ics",
		Body:     calendarBody("-//School//EDT P1//FR", evAlgebra, evPhysics, evHistory, evMeeting, evNoDescription),
	}
}

func secondUpload() model.Upload {
	return model.Upload{
		Filename: "edt-p2a1.ics",
		Body:     calendarBody("-//School//EDT P2//FR", evChemistry),
	}
}

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(ParserOptions{})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func eventWithDescription(value string) *ical.VEvent {
	ev := &ical.VEvent{}
	ev.Properties = append(ev.Properties, newProperty("DESCRIPTION", value))
	return ev
}

// propertyPairs flattens properties to token=value strings for comparison.
func propertyPairs(props []ical.IANAProperty) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.IANAToken + "=" + p.Value
	}
	return out
}

func calendarPairs(props []ical.CalendarProperty) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.IANAToken + "=" + p.Value
	}
	return out
}

func uids(events []NormalizedEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = propertyText(ev.Source, ical.ComponentPropertyUniqueId)
	}
	return out
}
