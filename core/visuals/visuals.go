// Package visuals defines the contract between the orchestration core and
// visual producers, plus the cue extraction used to decide what visual a
// sentence calls for.
package visuals

import (
	"context"

	"github.com/koscakluka/tutor-core/core/events"
)

// Request describes the visual a question cycle wants generated. Concept is
// the word the delivery timeline anchors the cue to; it may be empty.
type Request struct {
	Question    string
	Concept     string
	Description string
	Type        events.VisualType
	Template    string
}

// Producer generates at most one visual per request. Returning (nil, nil)
// means no visual is available, which is not a failure. Failure is
// recoverable for the question cycle: it proceeds without a visual.
type Producer interface {
	Generate(ctx context.Context, req Request) (*events.VisualDescriptor, error)
}
