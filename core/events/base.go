package events

import "time"

// Kind identifies an event variant. Kinds double as the wire "type" field.
type Kind string

// Event is implemented by every delivery event variant.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the fields shared by all event variants.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
