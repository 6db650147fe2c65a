package visuals

import (
	"strings"

	"github.com/koscakluka/tutor-core/core/events"
)

// Cue is a visual opportunity detected in delivered explanation text.
type Cue struct {
	Type        events.VisualType
	Concept     string
	Description string
	Template    string
}

// trigger phrases are checked in order so that more specific phrases win over
// their substrings ("apple falls" is listed before it could be shadowed).
var triggers = []struct {
	phrase   string
	template string
	concept  string
}{
	{phrase: "apple falls", template: "apple_falling", concept: "apple"},
	{phrase: "falling", template: "falling_object", concept: "falling"},
	{phrase: "dropping", template: "falling_object", concept: "dropping"},
	{phrase: "pendulum", template: "pendulum_swing", concept: "pendulum"},
	{phrase: "swings", template: "pendulum_swing", concept: "swings"},
	{phrase: "wave", template: "wave_motion", concept: "wave"},
	{phrase: "oscillate", template: "oscillation", concept: "oscillate"},
	{phrase: "graph", template: "function_graph", concept: "graph"},
	{phrase: "circle", template: "shape_circle", concept: "circle"},
	{phrase: "triangle", template: "shape_triangle", concept: "triangle"},
	{phrase: "diagram", template: "generic_diagram", concept: "diagram"},
}

const (
	visualMarkerOpen  = "[visual:"
	visualMarkerClose = "]"
)

// ExtractCue scans one sentence for a visual opportunity: an explicit
// [VISUAL: description] marker takes precedence over the trigger table.
// Returns nil when the sentence calls for no visual.
func ExtractCue(sentence string) *Cue {
	lowered := strings.ToLower(sentence)

	if start := strings.Index(lowered, visualMarkerOpen); start >= 0 {
		start += len(visualMarkerOpen)
		if end := strings.Index(lowered[start:], visualMarkerClose); end > 0 {
			description := strings.TrimSpace(sentence[start : start+end])
			if description != "" {
				return &Cue{
					Type:        events.VisualImage,
					Description: description,
					Concept:     firstWord(description),
				}
			}
		}
	}

	for _, trigger := range triggers {
		if strings.Contains(lowered, trigger.phrase) {
			return &Cue{
				Type:        events.VisualAnimation,
				Concept:     trigger.concept,
				Description: strings.TrimSpace(sentence),
				Template:    trigger.template,
			}
		}
	}

	return nil
}

// StripMarkers removes [VISUAL: ...] markers from text, collapsing the
// whitespace they leave behind. Used before handing text to narration.
func StripMarkers(text string) string {
	for {
		lowered := strings.ToLower(text)
		start := strings.Index(lowered, visualMarkerOpen)
		if start < 0 {
			return text
		}
		end := strings.Index(lowered[start:], visualMarkerClose)
		if end < 0 {
			return strings.TrimRight(text[:start], " \t")
		}

		before := strings.TrimRight(text[:start], " \t")
		after := strings.TrimLeft(text[start+end+len(visualMarkerClose):], " \t")
		switch {
		case before == "":
			text = after
		case after == "":
			text = before
		default:
			text = before + " " + after
		}
	}
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[0], ".,!?;:\"'()"))
}
