// Package explanations defines the contract between the orchestration core
// and explanation producers. A producer turns a question into a lazy stream
// of text deltas terminated by a final result carrying structured metadata.
package explanations

import "context"

// Request carries the question context handed to a producer.
type Request struct {
	Question   string
	Subject    string
	GradeLevel string
	Language   string
}

// Producer generates an explanation for a question. Implementations are
// treated as opaque async data sources; failure is fatal for the question
// cycle that issued the request.
type Producer interface {
	Explain(ctx context.Context, req Request) (Stream, error)
}

// Stream yields explanation chunks in source order. The iterator stops on the
// first error or after the final chunk.
type Stream interface {
	Chunks(ctx context.Context) func(func(Chunk, error) bool)
}

// Chunk is either a ContentChunk (text delta) or a FinalChunk (terminal).
type Chunk interface {
	Final() bool
}

// ContentChunk carries an incremental text delta.
type ContentChunk interface {
	Chunk
	Content() string
}

// FinalChunk terminates a stream. FullText is the complete explanation for
// producers that deliver in one block; producers that streamed deltas may
// leave it empty.
type FinalChunk interface {
	Chunk
	FullText() string
	Metadata() Metadata
}

// Metadata is the structured companion to an explanation.
type Metadata struct {
	Keywords          []string
	RelatedConcepts   []string
	FollowUpQuestions []string
	VisualSuggestion  *VisualSuggestion
}

// VisualSuggestion is the producer's hint for a supporting visual.
type VisualSuggestion struct {
	Type        string
	Description string
	Elements    []string
}

// Delta is the canonical ContentChunk implementation.
type Delta struct {
	Text string
}

func (d Delta) Final() bool     { return false }
func (d Delta) Content() string { return d.Text }

// Result is the canonical FinalChunk implementation.
type Result struct {
	Text string
	Meta Metadata
}

func (r Result) Final() bool        { return true }
func (r Result) FullText() string   { return r.Text }
func (r Result) Metadata() Metadata { return r.Meta }
