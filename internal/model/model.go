package model

import "time"

// Upload is one calendar file handed to the core by a shell (HTTP form,
// CLI argument). Filename matters: promotion and class labels are read
// from it.
type Upload struct {
	Filename string
	Body     []byte
}

// PreviewRow is the display view of a matched event. Start/End are nil
// when the event has no (parseable) DTSTART/DTEND.
type PreviewRow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	Summary string `json:"summary"`

	// Teachers is the comma-joined list of names detected on the event.
	Teachers string `json:"teachers"`

	Filename string   `json:"filename"`
	Promo    string   `json:"promo,omitempty"`
	Class    string   `json:"class,omitempty"`
	Groups   []string `json:"groups,omitempty"`
}
