package events

// KindVisualCue identifies a visual cue event.
const KindVisualCue Kind = "visual_cue"

// VisualAction tells the client what to do with the cued visual.
type VisualAction string

const (
	VisualShow   VisualAction = "show"
	VisualHide   VisualAction = "hide"
	VisualUpdate VisualAction = "update"
)

// VisualType classifies a visual asset.
type VisualType string

const (
	VisualAnimation VisualType = "animation"
	VisualImage     VisualType = "image"
	VisualTemplate  VisualType = "template"
)

// VisualDescriptor describes a visual asset to display. URL is nil until the
// asset has been rendered; template-backed visuals may never carry one and
// are resolved client-side from Source.
type VisualDescriptor struct {
	Type        VisualType
	Source      string
	URL         *string
	Description string
}

// VisualCue signals a visual asset change. A new show cue supersedes any
// prior visual without requiring an intervening hide.
type VisualCue struct {
	Base
	Action     VisualAction
	Descriptor VisualDescriptor
}

// NewVisualCue creates a visual cue event.
func NewVisualCue(action VisualAction, descriptor VisualDescriptor) VisualCue {
	return VisualCue{Base: NewBase(KindVisualCue), Action: action, Descriptor: descriptor}
}
