package events

import "time"

// KindText identifies an incremental explanation text fragment.
const KindText Kind = "text"

// Text carries one fragment of the explanation. Concatenating the Content of
// all Text events of a cycle reconstructs the full explanation exactly,
// whitespace and punctuation included.
//
// Delay and Offset are pacing hints: Offset is where the fragment sits on the
// simulated delivery timeline, Delay is how long the transport should wait
// after surfacing it before surfacing the next fragment. Neither is
// serialized.
type Text struct {
	Base
	Content string
	Delay   time.Duration
	Offset  time.Duration
}

// NewText creates a text fragment event with its pacing hints.
func NewText(content string, delay, offset time.Duration) Text {
	return Text{Base: NewBase(KindText), Content: content, Delay: delay, Offset: offset}
}
