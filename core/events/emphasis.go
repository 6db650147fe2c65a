package events

import "time"

// KindEmphasis identifies a word emphasis marker.
const KindEmphasis Kind = "emphasis"

// Emphasis marks a delivered word as important at the given point on the
// delivery timeline.
type Emphasis struct {
	Base
	Word   string
	Offset time.Duration
}

// NewEmphasis creates an emphasis event for a delivered word.
func NewEmphasis(word string, offset time.Duration) Emphasis {
	return Emphasis{Base: NewBase(KindEmphasis), Word: word, Offset: offset}
}
