package ics

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectContext(t *testing.T) {
	tests := []struct {
		filename   string
		promo, cls string
	}{
		{"EDT_P1A3.ics", "P1", "A3"},
		{"edt-p2a1.ics", "P2", "A1"},
		{"P3.ics", "P3", ""},
		{"classe_a4.ics", "", "A4"},
		{"P1_P2_A5_A6.ics", "P1", "A5"},
		{"planning.ics", "", ""},
		{"P0A0.ics", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			promo, cls := DetectContext(tt.filename)
			if promo != tt.promo || cls != tt.cls {
				t.Errorf("DetectContext(%q) = (%q, %q), want (%q, %q)", tt.filename, promo, cls, tt.promo, tt.cls)
			}
		})
	}
}

func TestDetectGroups(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{`\nG2\nDUPONT, Jean`, []string{"G2"}},
		{`TD g 1 et G3`, []string{"G1", "G3"}},
		{`G0 only`, nil},
		{`Amphi`, nil},
	}
	for _, tt := range tests {
		got := DetectGroups(tt.text)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("DetectGroups(%q) mismatch (-want +got):\n%s", tt.text, diff)
		}
	}
}
