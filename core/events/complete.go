package events

// KindComplete identifies the terminal success event of a cycle.
const KindComplete Kind = "complete"

// Metadata is assembled by the orchestrator from producer outputs and
// attached to the terminal event.
type Metadata struct {
	Keywords          []string
	RelatedConcepts   []string
	FollowUpQuestions []string
}

// Complete terminates a successful question cycle. FullText is the complete
// explanation, byte-equal to the concatenated Text fragments.
type Complete struct {
	Base
	FullText string
	Metadata Metadata
}

// NewComplete creates the terminal success event.
func NewComplete(fullText string, metadata Metadata) Complete {
	return Complete{Base: NewBase(KindComplete), FullText: fullText, Metadata: metadata}
}
