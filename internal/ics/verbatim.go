package ics

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	ical "github.com/arran4/golang-ical"
)

// golang-ical unescapes TEXT values on read and escapes every ',' and ';'
// on write, so list values (CATEGORIES:A,B) and X- properties do not
// survive a parse/serialize cycle. Copied blocks are therefore written
// from the content lines they were read from.

// rawLine is one unfolded content line and its property name.
type rawLine struct {
	token string
	text  string
}

// rawBlock mirrors a BEGIN/END block of the source text.
type rawBlock struct {
	name     string
	lines    []rawLine
	children []*rawBlock
}

// scanRaw splits body into blocks using the same line reader and property
// grammar as ical.ParseCalendar. It returns the outermost block.
func scanRaw(body []byte) (*rawBlock, error) {
	cs := ical.NewCalendarStream(bytes.NewReader(body))
	var root *rawBlock
	var stack []*rawBlock

	for {
		l, err := cs.ReadLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if l != nil && len(*l) > 0 {
			prop, perr := ical.ParseProperty(*l)
			if perr != nil {
				return nil, perr
			}
			if prop == nil {
				return nil, errors.New("unparsable content line")
			}
			switch prop.IANAToken {
			case "BEGIN":
				b := &rawBlock{name: prop.Value}
				if n := len(stack); n > 0 {
					stack[n-1].children = append(stack[n-1].children, b)
				} else if root == nil {
					root = b
				}
				stack = append(stack, b)
			case "END":
				if n := len(stack); n > 0 {
					stack = stack[:n-1]
				}
			default:
				if n := len(stack); n > 0 {
					stack[n-1].lines = append(stack[n-1].lines, rawLine{token: prop.IANAToken, text: string(*l)})
				}
			}
		}
		if err != nil {
			break
		}
	}
	if root == nil {
		return nil, errors.New("no BEGIN line")
	}
	return root, nil
}

// fits reports whether b holds exactly the properties and sub-components
// of a parsed component, in the same order.
func (b *rawBlock) fits(props []ical.IANAProperty, subs []ical.Component) bool {
	if b == nil || len(b.lines) != len(props) || len(b.children) != len(subs) {
		return false
	}
	for i, p := range props {
		if b.lines[i].token != p.IANAToken {
			return false
		}
	}
	for i, c := range subs {
		if !b.children[i].fits(c.UnknownPropertiesIANAProperties(), c.SubComponents()) {
			return false
		}
	}
	return true
}

// header returns the content lines of the calendar properties, or nil when
// they do not line up with props.
func (b *rawBlock) header(props []ical.CalendarProperty) []string {
	if b == nil || len(b.lines) != len(props) {
		return nil
	}
	out := make([]string, len(props))
	for i, p := range props {
		if b.lines[i].token != p.IANAToken {
			return nil
		}
		out[i] = b.lines[i].text
	}
	return out
}

// withProperties returns a copy of b whose lines follow props: a property
// whose value equals the one at the same index in src keeps its source
// line, anything else is rendered by the library.
func (b *rawBlock) withProperties(src, props []ical.IANAProperty) *rawBlock {
	out := &rawBlock{name: b.name, children: b.children}
	out.lines = make([]rawLine, len(props))
	for i, p := range props {
		if i < len(src) && i < len(b.lines) && p.IANAToken == src[i].IANAToken && p.Value == src[i].Value {
			out.lines[i] = b.lines[i]
			continue
		}
		out.lines[i] = rawLine{token: p.IANAToken, text: propertyLine(p.BaseProperty)}
	}
	return out
}

// propertyLine renders p as a single unfolded content line.
func propertyLine(p ical.BaseProperty) string {
	var sb strings.Builder
	_ = p.SerializeTo(&sb, &ical.SerializationConfiguration{MaxLength: math.MaxInt, NewLine: ""})
	return sb.String()
}

func writeBlock(w io.Writer, b *rawBlock, cfg *ical.SerializationConfiguration) error {
	if err := writeFolded(w, "BEGIN:"+b.name, cfg); err != nil {
		return err
	}
	for _, l := range b.lines {
		if err := writeFolded(w, l.text, cfg); err != nil {
			return err
		}
	}
	for _, c := range b.children {
		if err := writeBlock(w, c, cfg); err != nil {
			return err
		}
	}
	return writeFolded(w, "END:"+b.name, cfg)
}

// writeFolded writes line folded at cfg.MaxLength octets, never splitting
// a UTF-8 sequence. Continuation lines start with a space.
func writeFolded(w io.Writer, line string, cfg *ical.SerializationConfiguration) error {
	limit := cfg.MaxLength
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if _, err := io.WriteString(w, line[:cut]+cfg.NewLine); err != nil {
			return err
		}
		line = " " + line[cut:]
	}
	_, err := io.WriteString(w, line+cfg.NewLine)
	return err
}
