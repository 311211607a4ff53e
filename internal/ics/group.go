package ics

import "regexp"

var groupPattern = regexp.MustCompile(`(?i)G\s*([1-9])`)

// DetectGroups returns the group tags ("G1".."G9") found in text, in order.
// Tags are informational only and never take part in filtering.
func DetectGroups(text string) []string {
	matches := groupPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, "G"+m[1])
	}
	return out
}
