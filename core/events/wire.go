package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire framing: every event serializes to {"type": ..., ...variant fields}.
// Offsets are serialized as seconds so clients do not need to understand Go
// durations. Pacing hints (Text.Delay) are deliberately not part of the wire
// contract.

type wireText struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type wireEmphasis struct {
	Type   string  `json:"type"`
	Word   string  `json:"word"`
	Offset float64 `json:"offset"`
}

type wireDescriptor struct {
	VisualType  string  `json:"type"`
	Source      string  `json:"source"`
	URL         *string `json:"url"`
	Description string  `json:"description"`
}

type wireVisualCue struct {
	Type       string         `json:"type"`
	Action     string         `json:"action"`
	Descriptor wireDescriptor `json:"descriptor"`
}

type wireAudioCue struct {
	Type     string  `json:"type"`
	URL      string  `json:"url"`
	Offset   float64 `json:"offset"`
	VideoURL *string `json:"video_url,omitempty"`
}

type wireMetadata struct {
	Keywords          []string `json:"keywords"`
	RelatedConcepts   []string `json:"related_concepts"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

type wireComplete struct {
	Type     string       `json:"type"`
	FullText string       `json:"full_text"`
	Metadata wireMetadata `json:"metadata"`
}

type wireError struct {
	Type        string `json:"type"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// MarshalWire serializes an event to its wire framing.
func MarshalWire(event Event) ([]byte, error) {
	switch e := event.(type) {
	case Text:
		return json.Marshal(wireText{Type: string(KindText), Content: e.Content})
	case Emphasis:
		return json.Marshal(wireEmphasis{Type: string(KindEmphasis), Word: e.Word, Offset: e.Offset.Seconds()})
	case VisualCue:
		return json.Marshal(wireVisualCue{
			Type:   string(KindVisualCue),
			Action: string(e.Action),
			Descriptor: wireDescriptor{
				VisualType:  string(e.Descriptor.Type),
				Source:      e.Descriptor.Source,
				URL:         e.Descriptor.URL,
				Description: e.Descriptor.Description,
			},
		})
	case AudioCue:
		return json.Marshal(wireAudioCue{Type: string(KindAudioCue), URL: e.URL, Offset: e.Offset.Seconds(), VideoURL: e.VideoURL})
	case Complete:
		return json.Marshal(wireComplete{
			Type:     string(KindComplete),
			FullText: e.FullText,
			Metadata: wireMetadata{
				Keywords:          nonNil(e.Metadata.Keywords),
				RelatedConcepts:   nonNil(e.Metadata.RelatedConcepts),
				FollowUpQuestions: nonNil(e.Metadata.FollowUpQuestions),
			},
		})
	case Error:
		return json.Marshal(wireError{Type: string(KindError), Kind: string(e.Reason), Message: e.Message, Recoverable: e.Recoverable})
	default:
		return nil, fmt.Errorf("unknown event variant %T", event)
	}
}

// UnmarshalWire parses a wire frame back into its event variant. Pacing hints
// are not on the wire, so Text events come back without Delay/Offset.
func UnmarshalWire(data []byte) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse wire frame: %w", err)
	}

	switch Kind(probe.Type) {
	case KindText:
		var w wireText
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return NewText(w.Content, 0, 0), nil
	case KindEmphasis:
		var w wireEmphasis
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return NewEmphasis(w.Word, secondsToDuration(w.Offset)), nil
	case KindVisualCue:
		var w wireVisualCue
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return NewVisualCue(VisualAction(w.Action), VisualDescriptor{
			Type:        VisualType(w.Descriptor.VisualType),
			Source:      w.Descriptor.Source,
			URL:         w.Descriptor.URL,
			Description: w.Descriptor.Description,
		}), nil
	case KindAudioCue:
		var w wireAudioCue
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return NewAudioCue(w.URL, w.VideoURL, secondsToDuration(w.Offset)), nil
	case KindComplete:
		var w wireComplete
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return NewComplete(w.FullText, Metadata{
			Keywords:          w.Metadata.Keywords,
			RelatedConcepts:   w.Metadata.RelatedConcepts,
			FollowUpQuestions: w.Metadata.FollowUpQuestions,
		}), nil
	case KindError:
		var w wireError
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return NewError(ErrorKind(w.Kind), w.Message, w.Recoverable), nil
	default:
		return nil, fmt.Errorf("unknown wire event type %q", probe.Type)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
