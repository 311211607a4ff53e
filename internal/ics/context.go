package ics

import "regexp"

var (
	promoPattern = regexp.MustCompile(`(?i)P([1-9])`)
	classPattern = regexp.MustCompile(`(?i)A([1-9])`)
)

// DetectContext reads the promotion ("P1".."P9") and class ("A1".."A9")
// labels from a source filename. Only the first match of each is used;
// a missing label is returned as "".
func DetectContext(filename string) (promo, class string) {
	if m := promoPattern.FindStringSubmatch(filename); m != nil {
		promo = "P" + m[1]
	}
	if m := classPattern.FindStringSubmatch(filename); m != nil {
		class = "A" + m[1]
	}
	return promo, class
}
