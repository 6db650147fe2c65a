package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/tutor-core/core/events"
	"github.com/koscakluka/tutor-core/core/explanations"
	"github.com/koscakluka/tutor-core/core/speech"
	"github.com/koscakluka/tutor-core/core/visuals"
)

type scriptedExplainer struct {
	chunks     []explanations.Chunk
	explainErr error
	streamErr  error
	gate       chan struct{}
}

func (e *scriptedExplainer) Explain(_ context.Context, _ explanations.Request) (explanations.Stream, error) {
	if e.explainErr != nil {
		return nil, e.explainErr
	}
	return &scriptedExplanationStream{chunks: e.chunks, err: e.streamErr, gate: e.gate}, nil
}

type scriptedExplanationStream struct {
	chunks []explanations.Chunk
	err    error
	gate   chan struct{}
}

func (s *scriptedExplanationStream) Chunks(ctx context.Context) func(func(explanations.Chunk, error) bool) {
	return func(yield func(explanations.Chunk, error) bool) {
		if s.gate != nil {
			select {
			case <-s.gate:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

type scriptedVisualProducer struct {
	descriptor *events.VisualDescriptor
	err        error

	requests []visuals.Request
}

func (p *scriptedVisualProducer) Generate(_ context.Context, req visuals.Request) (*events.VisualDescriptor, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return p.descriptor, nil
}

type gatedVisualProducer struct {
	gate chan struct{}
}

func (p *gatedVisualProducer) Generate(ctx context.Context, _ visuals.Request) (*events.VisualDescriptor, error) {
	select {
	case <-p.gate:
	case <-ctx.Done():
	}
	return nil, nil
}

type scriptedSpeechProvider struct {
	result *speech.Result
	err    error
}

func (p *scriptedSpeechProvider) Name() string { return "scripted" }

func (p *scriptedSpeechProvider) Synthesize(_ context.Context, _ speech.Request) (*speech.Result, error) {
	return p.result, p.err
}

func collectEvents(t *testing.T, stream <-chan events.Event) []events.Event {
	t.Helper()

	var collected []events.Event
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return collected
			}
			collected = append(collected, event)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for events, got %d so far", len(collected))
		}
	}
}

func coalesceText(collected []events.Event) string {
	var sb strings.Builder
	for _, event := range collected {
		if text, ok := event.(events.Text); ok {
			sb.WriteString(text.Content)
		}
	}
	return sb.String()
}

func awaitIdle(t *testing.T, session *Session) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if session.State() == SessionIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never returned to idle, state %s", session.State())
}

func TestAskStreamsExplanationWithEmphasis(t *testing.T) {
	fullText := "Gravity pulls objects together. It is a force."
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: "Gravity pulls "},
		explanations.Delta{Text: "objects together. "},
		explanations.Delta{Text: "It is a force."},
		explanations.Result{Text: fullText, Meta: explanations.Metadata{
			Keywords:          []string{"gravity", "force"},
			RelatedConcepts:   []string{"mass"},
			FollowUpQuestions: []string{"What is mass?"},
		}},
	}}

	session := NewSession("classroom-1", WithExplanationProducer(explainer))
	stream, err := session.Ask(context.Background(), AskRequest{Question: "What is gravity?"})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	collected := collectEvents(t, stream)
	if len(collected) == 0 {
		t.Fatal("expected events")
	}

	if got := coalesceText(collected); got != fullText {
		t.Fatalf("coalesced text mismatch:\n got %q\nwant %q", got, fullText)
	}

	var emphasized []string
	for _, event := range collected {
		if emphasis, ok := event.(events.Emphasis); ok {
			emphasized = append(emphasized, emphasis.Word)
		}
	}
	if len(emphasized) != 2 || emphasized[0] != "Gravity" || emphasized[1] != "force" {
		t.Fatalf("expected emphasis on Gravity and force, got %v", emphasized)
	}

	// emphasis is deferred to the sentence boundary
	firstEmphasis := -1
	sentenceEnd := -1
	for i, event := range collected {
		if _, ok := event.(events.Emphasis); ok && firstEmphasis < 0 {
			firstEmphasis = i
		}
		if text, ok := event.(events.Text); ok && strings.Contains(text.Content, "together.") {
			sentenceEnd = i
		}
	}
	if firstEmphasis < sentenceEnd {
		t.Fatalf("expected emphasis after its sentence's last word, got index %d < %d", firstEmphasis, sentenceEnd)
	}

	terminal, ok := collected[len(collected)-1].(events.Complete)
	if !ok {
		t.Fatalf("expected terminal complete event, got %T", collected[len(collected)-1])
	}
	if terminal.FullText != fullText {
		t.Fatalf("expected terminal full text %q, got %q", fullText, terminal.FullText)
	}
	if len(terminal.Metadata.Keywords) != 2 || terminal.Metadata.Keywords[0] != "gravity" {
		t.Fatalf("expected metadata keywords carried over, got %v", terminal.Metadata.Keywords)
	}

	awaitIdle(t, session)
}

func TestSingleBlockExplanationIsDelivered(t *testing.T) {
	fullText := "Gravity is a force."
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Result{Text: fullText, Meta: explanations.Metadata{
			Keywords: []string{"gravity"},
		}},
	}}

	session := NewSession("", WithExplanationProducer(explainer))
	stream, err := session.Ask(context.Background(), AskRequest{Question: "What is gravity?"})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	collected := collectEvents(t, stream)
	if got := coalesceText(collected); got != fullText {
		t.Fatalf("single-block text not delivered: got %q, want %q", got, fullText)
	}

	terminal, ok := collected[len(collected)-1].(events.Complete)
	if !ok {
		t.Fatalf("expected terminal complete event, got %T", collected[len(collected)-1])
	}
	if terminal.FullText != fullText {
		t.Fatalf("expected terminal full text %q, got %q", fullText, terminal.FullText)
	}
}

func TestKeywordsDoNotCarryAcrossQuestions(t *testing.T) {
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: "Stripes are common."},
		explanations.Result{Meta: explanations.Metadata{Keywords: []string{"zebra"}}},
	}}
	session := NewSession("", WithExplanationProducer(explainer))

	stream, err := session.Ask(context.Background(), AskRequest{Question: "What has stripes?"})
	if err != nil {
		t.Fatalf("expected first ask to start, got %v", err)
	}
	collectEvents(t, stream)
	awaitIdle(t, session)

	explainer.chunks = []explanations.Chunk{
		explanations.Delta{Text: "A zebra has stripes."},
		explanations.Result{},
	}
	stream, err = session.Ask(context.Background(), AskRequest{Question: "Tell me about zebras"})
	if err != nil {
		t.Fatalf("expected second ask to start, got %v", err)
	}

	for _, event := range collectEvents(t, stream) {
		if emphasis, ok := event.(events.Emphasis); ok && strings.EqualFold(emphasis.Word, "zebra") {
			t.Fatal("keyword from the previous question's metadata emphasized in a later cycle")
		}
	}
}

func TestSlowVisualProducerDoesNotStallText(t *testing.T) {
	gate := make(chan struct{})
	producer := &gatedVisualProducer{gate: gate}

	var sb strings.Builder
	sb.WriteString("The pendulum swings back and forth. ")
	for range 11 {
		sb.WriteString("It keeps moving steadily. ")
	}
	fullText := sb.String()

	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: fullText},
		explanations.Result{},
	}}

	session := NewSession("",
		WithExplanationProducer(explainer),
		WithVisualProducer(producer),
	)
	stream, err := session.Ask(context.Background(), AskRequest{Question: "Show me a pendulum", IncludeVisual: true})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	// all text must arrive while the visual producer is still blocked
	var collected []events.Event
	deadline := time.After(2 * time.Second)
	for coalesceText(collected) != fullText {
		select {
		case event, ok := <-stream:
			if !ok {
				t.Fatalf("stream closed early, got %q", coalesceText(collected))
			}
			collected = append(collected, event)
		case <-deadline:
			close(gate)
			t.Fatalf("text delivery stalled behind the visual producer, got %d events", len(collected))
		}
	}

	close(gate)
	collected = append(collected, collectEvents(t, stream)...)
	if _, ok := collected[len(collected)-1].(events.Complete); !ok {
		t.Fatalf("expected terminal complete event, got %T", collected[len(collected)-1])
	}
}

func TestAskOffsetsAreMonotonic(t *testing.T) {
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: "One two three. Four five."},
		explanations.Result{},
	}}

	session := NewSession("", WithExplanationProducer(explainer))
	stream, err := session.Ask(context.Background(), AskRequest{Question: "count"})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	var last time.Duration = -1
	for _, event := range collectEvents(t, stream) {
		text, ok := event.(events.Text)
		if !ok {
			continue
		}
		if text.Offset < last {
			t.Fatalf("offset went backwards: %v after %v", text.Offset, last)
		}
		if text.Delay <= 0 {
			t.Fatalf("expected a positive delay hint, got %v", text.Delay)
		}
		last = text.Offset
	}
}

func TestAskWhileProcessingReturnsBusy(t *testing.T) {
	gate := make(chan struct{})
	explainer := &scriptedExplainer{
		gate: gate,
		chunks: []explanations.Chunk{
			explanations.Delta{Text: "slow answer."},
			explanations.Result{},
		},
	}

	session := NewSession("busy-session", WithExplanationProducer(explainer))
	stream, err := session.Ask(context.Background(), AskRequest{Question: "first?"})
	if err != nil {
		t.Fatalf("expected first ask to start, got %v", err)
	}

	_, err = session.Ask(context.Background(), AskRequest{Question: "second?"})
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) || sessionErr.Kind != SessionBusy {
		t.Fatalf("expected busy error, got %v", err)
	}

	close(gate)
	collectEvents(t, stream)
	awaitIdle(t, session)

	stream, err = session.Ask(context.Background(), AskRequest{Question: "third?"})
	if err != nil {
		t.Fatalf("expected ask after completion to start, got %v", err)
	}
	collectEvents(t, stream)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	session := NewSession("", WithExplanationProducer(&scriptedExplainer{}))

	if _, err := session.Ask(context.Background(), AskRequest{Question: "   "}); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected empty question error, got %v", err)
	}
}

func TestExplanationFailureEndsStreamWithFatalError(t *testing.T) {
	explainer := &scriptedExplainer{
		chunks: []explanations.Chunk{
			explanations.Delta{Text: "Gravity is "},
		},
		streamErr: errors.New("upstream exploded"),
	}

	session := NewSession("", WithExplanationProducer(explainer))
	stream, err := session.Ask(context.Background(), AskRequest{Question: "What is gravity?"})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	collected := collectEvents(t, stream)
	terminal, ok := collected[len(collected)-1].(events.Error)
	if !ok {
		t.Fatalf("expected terminal error event, got %T", collected[len(collected)-1])
	}
	if terminal.Recoverable {
		t.Fatal("expected a non-recoverable terminal error")
	}
	if terminal.Reason != events.ErrorUpstream {
		t.Fatalf("expected upstream reason, got %q", terminal.Reason)
	}

	errorCount := 0
	for _, event := range collected {
		if _, ok := event.(events.Error); ok {
			errorCount++
		}
		if _, ok := event.(events.Complete); ok {
			t.Fatal("expected no complete event after a fatal error")
		}
	}
	if errorCount != 1 {
		t.Fatalf("expected exactly one error event, got %d", errorCount)
	}

	awaitIdle(t, session)
}

func TestVisualFailureDegradesToAdvisory(t *testing.T) {
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: "Watch the pendulum swing. "},
		explanations.Delta{Text: "It repeats."},
		explanations.Result{},
	}}
	producer := &scriptedVisualProducer{err: errors.New("renderer offline")}

	session := NewSession("",
		WithExplanationProducer(explainer),
		WithVisualProducer(producer),
	)
	stream, err := session.Ask(context.Background(), AskRequest{Question: "Show me a pendulum", IncludeVisual: true})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	collected := collectEvents(t, stream)

	advisories := 0
	for _, event := range collected {
		if errEvent, ok := event.(events.Error); ok {
			if !errEvent.Recoverable {
				t.Fatalf("expected only recoverable errors, got %+v", errEvent)
			}
			advisories++
		}
	}
	if advisories != 1 {
		t.Fatalf("expected exactly one advisory, got %d", advisories)
	}

	if _, ok := collected[len(collected)-1].(events.Complete); !ok {
		t.Fatalf("expected the cycle to still complete, terminal was %T", collected[len(collected)-1])
	}
}

func TestVisualCueFromMarkerIsEmittedAndStripped(t *testing.T) {
	url := "https://cdn.example/apple.png"
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: "An apple drops. [VISUAL: an apple falling from a tree] Watch it."},
		explanations.Result{},
	}}
	producer := &scriptedVisualProducer{descriptor: &events.VisualDescriptor{
		Type: events.VisualImage,
		URL:  &url,
	}}

	session := NewSession("",
		WithExplanationProducer(explainer),
		WithVisualProducer(producer),
	)
	stream, err := session.Ask(context.Background(), AskRequest{Question: "Why do apples fall?", IncludeVisual: true})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	collected := collectEvents(t, stream)

	var cue *events.VisualCue
	for _, event := range collected {
		if visual, ok := event.(events.VisualCue); ok {
			cue = &visual
		}
	}
	if cue == nil {
		t.Fatal("expected a visual cue event")
	}
	if cue.Action != events.VisualShow || cue.Descriptor.URL == nil || *cue.Descriptor.URL != url {
		t.Fatalf("unexpected visual cue %+v", cue)
	}

	if text := coalesceText(collected); strings.Contains(strings.ToLower(text), "[visual:") {
		t.Fatalf("expected marker stripped from delivered text, got %q", text)
	}

	terminal := collected[len(collected)-1].(events.Complete)
	if strings.Contains(strings.ToLower(terminal.FullText), "[visual:") {
		t.Fatalf("expected marker stripped from full text, got %q", terminal.FullText)
	}

	if len(producer.requests) != 1 {
		t.Fatalf("expected one visual request, got %d", len(producer.requests))
	}
	if producer.requests[0].Description != "an apple falling from a tree" {
		t.Fatalf("unexpected visual description %q", producer.requests[0].Description)
	}
}

func TestDisabledModalitiesProduceNoCues(t *testing.T) {
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: "Watch the pendulum swing. [VISUAL: a pendulum] Done."},
		explanations.Result{},
	}}
	producer := &scriptedVisualProducer{descriptor: &events.VisualDescriptor{Type: events.VisualAnimation}}
	chain := speech.NewChain([]speech.Provider{&scriptedSpeechProvider{
		result: &speech.Result{AudioURL: "/media/audio_dead.mp3"},
	}})

	session := NewSession("",
		WithExplanationProducer(explainer),
		WithVisualProducer(producer),
		WithSpeechChain(chain),
	)
	stream, err := session.Ask(context.Background(), AskRequest{Question: "Show me a pendulum"})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	for _, event := range collectEvents(t, stream) {
		switch event.(type) {
		case events.VisualCue, events.AudioCue:
			t.Fatalf("expected no modality cues, got %T", event)
		}
	}
	if len(producer.requests) != 0 {
		t.Fatalf("expected the visual producer untouched, got %d requests", len(producer.requests))
	}
}

func TestNarrationEmitsAudioCueBeforeComplete(t *testing.T) {
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Delta{Text: "Sound travels in waves."},
		explanations.Result{},
	}}
	chain := speech.NewChain([]speech.Provider{&scriptedSpeechProvider{
		result: &speech.Result{AudioURL: "/media/audio_cafe.mp3", Duration: 2 * time.Second},
	}})

	session := NewSession("",
		WithExplanationProducer(explainer),
		WithSpeechChain(chain),
	)
	stream, err := session.Ask(context.Background(), AskRequest{Question: "What is sound?", IncludeAudio: true})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	collected := collectEvents(t, stream)

	audioIndex, completeIndex := -1, -1
	for i, event := range collected {
		switch event := event.(type) {
		case events.AudioCue:
			if event.URL != "/media/audio_cafe.mp3" {
				t.Fatalf("unexpected audio URL %q", event.URL)
			}
			audioIndex = i
		case events.Complete:
			completeIndex = i
		}
	}
	if audioIndex < 0 {
		t.Fatal("expected an audio cue event")
	}
	if completeIndex != len(collected)-1 || audioIndex > completeIndex {
		t.Fatalf("expected audio cue before terminal complete, got %d and %d", audioIndex, completeIndex)
	}
}

func TestCancelEndsStreamAndFreesSession(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	explainer := &scriptedExplainer{
		gate: gate,
		chunks: []explanations.Chunk{
			explanations.Delta{Text: "never delivered"},
			explanations.Result{},
		},
	}

	session := NewSession("", WithExplanationProducer(explainer))
	stream, err := session.Ask(context.Background(), AskRequest{Question: "first?"})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	session.Cancel()
	if state := session.State(); state != SessionIdle {
		t.Fatalf("expected session idle right after cancel, got %s", state)
	}

	collected := collectEvents(t, stream)
	if len(collected) == 0 {
		t.Fatal("expected a terminal event on the cancelled stream")
	}
	terminal, ok := collected[len(collected)-1].(events.Error)
	if !ok {
		t.Fatalf("expected terminal error event, got %T", collected[len(collected)-1])
	}
	if terminal.Reason != events.ErrorCancelled || !terminal.Recoverable {
		t.Fatalf("unexpected terminal event %+v", terminal)
	}

	if _, err := session.Ask(context.Background(), AskRequest{Question: "second?"}); err != nil {
		t.Fatalf("expected session to accept a new question after cancel, got %v", err)
	}
}

func TestEmptyExplanationCompletesImmediately(t *testing.T) {
	explainer := &scriptedExplainer{chunks: []explanations.Chunk{
		explanations.Result{},
	}}

	session := NewSession("", WithExplanationProducer(explainer))
	stream, err := session.Ask(context.Background(), AskRequest{Question: "anything?"})
	if err != nil {
		t.Fatalf("expected ask to start, got %v", err)
	}

	collected := collectEvents(t, stream)
	if len(collected) != 1 {
		t.Fatalf("expected only the terminal event, got %d events", len(collected))
	}
	terminal, ok := collected[0].(events.Complete)
	if !ok {
		t.Fatalf("expected complete event, got %T", collected[0])
	}
	if terminal.FullText != "" {
		t.Fatalf("expected empty full text, got %q", terminal.FullText)
	}
}

func TestClosedSessionRejectsAsks(t *testing.T) {
	session := NewSession("", WithExplanationProducer(&scriptedExplainer{}))
	session.Close()

	_, err := session.Ask(context.Background(), AskRequest{Question: "hello?"})
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) || sessionErr.Kind != SessionClosedErr {
		t.Fatalf("expected closed session error, got %v", err)
	}
}
