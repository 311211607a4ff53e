package ics

import (
	"fmt"
	"regexp"
	"strings"
)

// ExtractMode selects how teacher names are pulled out of a description.
// The two conventions are incompatible (the marker mode splits on the very
// comma the regex mode keys on), so exactly one is active per Parser.
type ExtractMode string

const (
	// ModeRegex finds every "SURNAME, Firstname" token in the text.
	ModeRegex ExtractMode = "regex"
	// ModeMarker takes the comma-separated list following a marker phrase.
	ModeMarker ExtractMode = "marker"
)

// DefaultMarker is the phrase used by ModeMarker when none is configured.
const DefaultMarker = "Enseignant(s) :"

// Extractor turns description text into teacher names, in order of
// appearance. Duplicates are kept.
type Extractor interface {
	Mode() ExtractMode
	Extract(text string) []string
}

// teacherPattern: surname in capitals (accents, apostrophe, hyphen, spaces),
// an optional leftover backslash, a comma, then the first name.
var teacherPattern = regexp.MustCompile(`([A-ZÀ-Ÿ][A-ZÀ-Ÿ'\-\s]+)\\?,\s*([A-Za-zÀ-ÿ][A-Za-zÀ-ÿ'\-\s]+)`)

// RegexExtractor implements ModeRegex.
type RegexExtractor struct{}

func (RegexExtractor) Mode() ExtractMode { return ModeRegex }

func (RegexExtractor) Extract(text string) []string {
	matches := teacherPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1])+", "+strings.TrimSpace(m[2]))
	}
	return out
}

// MarkerExtractor implements ModeMarker.
type MarkerExtractor struct {
	Marker string
}

func (m MarkerExtractor) Mode() ExtractMode { return ModeMarker }

func (m MarkerExtractor) Extract(text string) []string {
	if m.Marker == "" {
		return nil
	}
	_, rest, ok := strings.Cut(text, m.Marker)
	if !ok {
		return nil
	}
	// The list ends at the escaped newline; a raw one ends it too.
	if i := strings.Index(rest, `\n`); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexAny(rest, "\r\n"); i >= 0 {
		rest = rest[:i]
	}

	var out []string
	for _, piece := range strings.Split(rest, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		out = append(out, piece)
	}
	return out
}

// NewExtractor returns the Extractor for mode. An empty mode means
// ModeRegex; an empty marker means DefaultMarker.
func NewExtractor(mode ExtractMode, marker string) (Extractor, error) {
	switch mode {
	case "", ModeRegex:
		return RegexExtractor{}, nil
	case ModeMarker:
		if marker == "" {
			marker = DefaultMarker
		}
		return MarkerExtractor{Marker: marker}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractMode, mode)
	}
}
