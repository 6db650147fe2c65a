package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/tutor-core/core/events"
	"github.com/koscakluka/tutor-core/core/explanations"
	"github.com/koscakluka/tutor-core/core/speech"
	"github.com/koscakluka/tutor-core/core/visuals"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	eventQueueCapacity   = 64
	advisoryCapacity     = 4
	sentenceChanCapacity = 8
)

// questionCycle runs one question through the producer fan-out and owns the
// event stream handed to the caller. Four workers cooperate: the explanation
// worker fills the buffer, the visual and narration workers produce cues, and
// the pacer is the only goroutine that ever sends on out. That single-sender
// rule is what guarantees the terminal event is the last one emitted.
type questionCycle struct {
	sessionID string
	req       AskRequest
	config    sessionConfig

	out     chan events.Event
	buffer  *explanationBuffer
	matcher KeywordMatcher

	sentenceCh chan string
	advisoryCh chan events.Error
	visualCh   chan events.VisualDescriptor
	audioCh    chan speech.Result

	abort     chan struct{}
	abortOnce sync.Once
	cancelled atomic.Bool

	mu       sync.Mutex
	fatal    *events.Error
	meta     explanations.Metadata
	fullText string

	startedAt     time.Time
	spokenText    string
	emittedVisual *events.VisualDescriptor
	emittedAudio  *speech.Result
	completed     bool

	onFinished func(*questionCycle)
}

func newQuestionCycle(sessionID string, req AskRequest, config sessionConfig, onFinished func(*questionCycle)) *questionCycle {
	return &questionCycle{
		sessionID: sessionID,
		req:       req,
		config:    config,

		out:     make(chan events.Event, eventQueueCapacity),
		buffer:  newExplanationBuffer(),
		matcher: config.newMatcher(),

		sentenceCh: make(chan string, sentenceChanCapacity),
		advisoryCh: make(chan events.Error, advisoryCapacity),
		visualCh:   make(chan events.VisualDescriptor, 1),
		audioCh:    make(chan speech.Result, 1),

		abort: make(chan struct{}),

		startedAt:  time.Now(),
		onFinished: onFinished,
	}
}

func (c *questionCycle) run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "question cycle")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", c.sessionID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := withContextCancelHook(ctx, func() { c.buffer.Clear() })
	defer close(done)

	// aborting (cancel or fatal) unwinds producer work through the context
	abortDone := make(chan struct{})
	defer close(abortDone)
	go func() {
		select {
		case <-c.abort:
			cancel()
		case <-abortDone:
		}
	}()

	var workerErr error
	workerErrMu := sync.Mutex{}
	addWorkerErr := func(err error) {
		if err == nil {
			return
		}
		workerErrMu.Lock()
		workerErr = errors.Join(workerErr, err)
		workerErrMu.Unlock()
	}

	run := func(name string, f func(context.Context) error) {
		if err := panicSafeNamedWorker(name, f)(ctx); err != nil {
			addWorkerErr(err)
			cancel()
		}
	}

	wg := &sync.WaitGroup{}
	wg.Add(4)
	go func() {
		defer wg.Done()
		run("explanation", c.runExplanation)
	}()
	go func() {
		defer wg.Done()
		run("visual", c.runVisual)
	}()
	go func() {
		defer wg.Done()
		run("narration", c.runNarration)
	}()
	go func() {
		defer wg.Done()
		run("pacing", c.runPacer)
	}()
	wg.Wait()

	close(c.out)

	if workerErr != nil {
		err := fmt.Errorf("one or more question cycle workers failed: %w", workerErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if c.completed {
		dispatchRecord(c.config.sink, c.buildRecord())
	}

	if c.onFinished != nil {
		c.onFinished(c)
	}
}

// Cancel aborts the cycle. The pacer emits a terminal cancelled error before
// the stream closes; producer work unwinds in the background.
func (c *questionCycle) Cancel() {
	if c == nil || !c.cancelled.CompareAndSwap(false, true) {
		return
	}

	c.abortOnce.Do(func() { close(c.abort) })
	c.buffer.Clear()
}

func (c *questionCycle) failFatal(perr *ProducerError) {
	c.mu.Lock()
	if c.fatal == nil {
		event := events.NewError(perr.Kind, perr.Message(), false)
		c.fatal = &event
	}
	c.mu.Unlock()

	c.abortOnce.Do(func() { close(c.abort) })
	c.buffer.Clear()
}

func (c *questionCycle) takeFatal() *events.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fatal
}

// advise queues a recoverable error for the pacer to interleave into the
// stream. Drops on overflow rather than block a producer worker.
func (c *questionCycle) advise(event events.Error) {
	select {
	case c.advisoryCh <- event:
	default:
		logger.Warn("advisory queue full, dropping advisory error",
			"session_id", c.sessionID, "reason", string(event.Reason))
	}
}

func (c *questionCycle) runExplanation(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "generate explanation")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.config.timeouts.Explanation)
	defer cancel()

	stream, err := c.config.explainer.Explain(ctx, explanations.Request{
		Question:   c.req.Question,
		Subject:    c.req.Subject,
		GradeLevel: c.req.GradeLevel,
		Language:   c.req.Language,
	})
	if err != nil {
		perr := producerFailure("explanation", err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		c.failFatal(perr)
		return nil
	}

	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			perr := producerFailure("explanation", err)
			span.RecordError(perr)
			span.SetStatus(codes.Error, perr.Error())
			c.failFatal(perr)
			return nil
		}
		if c.cancelled.Load() {
			break
		}

		switch chunk := chunk.(type) {
		case explanations.ContentChunk:
			c.buffer.AddChunk(chunk.Content())
		case explanations.FinalChunk:
			meta := chunk.Metadata()
			full := chunk.FullText()
			c.mu.Lock()
			c.meta = meta
			if full != "" {
				c.fullText = full
			}
			c.mu.Unlock()
			// single-block mode: the final chunk carries the whole text and
			// must still flow through the pacer
			if full != "" && c.buffer.Len() == 0 {
				c.buffer.AddChunk(full)
			}
			// metadata keywords reinforce emphasis for sentences still queued
			c.matcher.Add(meta.Keywords...)
		}
	}

	c.buffer.TextComplete()
	return nil
}

func (c *questionCycle) runVisual(ctx context.Context) error {
	defer close(c.visualCh)

	ctx, span := tracer.Start(ctx, "produce visual")
	defer span.End()

	if c.config.visuals == nil || !c.req.IncludeVisual {
		for range c.sentenceCh {
		}
		return nil
	}

	produced := false
	for sentence := range c.sentenceCh {
		if produced {
			continue
		}
		cue := visuals.ExtractCue(sentence)
		if cue == nil {
			continue
		}

		descriptor := c.generateVisual(ctx, visuals.Request{
			Question:    c.req.Question,
			Concept:     cue.Concept,
			Description: cue.Description,
			Type:        cue.Type,
			Template:    cue.Template,
		})
		if descriptor != nil {
			c.visualCh <- *descriptor
			produced = true
		}
	}

	if produced || c.cancelled.Load() || c.takeFatal() != nil {
		return nil
	}

	// no cue surfaced in the text; fall back to the producer's suggestion
	c.mu.Lock()
	suggestion := c.meta.VisualSuggestion
	c.mu.Unlock()
	if suggestion == nil {
		return nil
	}

	descriptor := c.generateVisual(ctx, visuals.Request{
		Question:    c.req.Question,
		Concept:     firstElement(suggestion.Elements),
		Description: suggestion.Description,
		Type:        events.VisualType(suggestion.Type),
	})
	if descriptor != nil {
		c.visualCh <- *descriptor
	}
	return nil
}

func (c *questionCycle) generateVisual(ctx context.Context, req visuals.Request) *events.VisualDescriptor {
	ctx, cancel := context.WithTimeout(ctx, c.config.timeouts.Visual)
	defer cancel()

	descriptor, err := c.config.visuals.Generate(ctx, req)
	if err != nil {
		perr := producerFailure("visual", err)
		logger.WarnContext(ctx, "visual generation failed", "session_id", c.sessionID, "error", err)
		c.advise(events.NewError(perr.Kind, perr.Message(), true))
		return nil
	}
	return descriptor
}

func (c *questionCycle) runNarration(ctx context.Context) error {
	defer close(c.audioCh)

	if !c.req.IncludeAudio || c.config.speech.Empty() {
		return nil
	}

	select {
	case <-c.buffer.Done():
	case <-c.abort:
		return nil
	case <-ctx.Done():
		return nil
	}

	c.mu.Lock()
	text := c.fullText
	c.mu.Unlock()
	if text == "" {
		text = c.buffer.String()
	}
	text = visuals.StripMarkers(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "produce narration")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.config.timeouts.Audio)
	defer cancel()

	result, err := c.config.speech.Synthesize(ctx, speech.Request{
		Text:        text,
		VoiceStyle:  c.req.VoiceStyle,
		AvatarStyle: c.req.AvatarStyle,
	})
	if err != nil {
		perr := producerFailure("narration", err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		c.advise(events.NewError(perr.Kind, perr.Message(), true))
		return nil
	}

	c.audioCh <- *result
	return nil
}

// runPacer turns buffered explanation chunks into the timed event stream.
// It is the sole sender on out.
func (c *questionCycle) runPacer(ctx context.Context) error {
	_, span := tracer.Start(ctx, "pace delivery")
	defer span.End()

	closeSentences := sync.OnceFunc(func() { close(c.sentenceCh) })
	defer closeSentences()

	var (
		offset    time.Duration
		carry     string
		spoken    strings.Builder
		sentence  strings.Builder
		pending   []events.Emphasis
		backlog   []string
		inMarker  bool
		wordCount int
	)

	// sentence handoff never blocks: a visual worker stuck in a slow
	// Generate call must not stall text delivery
	relaySentences := func() {
		for len(backlog) > 0 {
			select {
			case c.sentenceCh <- backlog[0]:
				backlog = backlog[1:]
			default:
				return
			}
		}
	}

	flushSentence := func() {
		for _, emphasis := range pending {
			c.emit(ctx, emphasis)
		}
		pending = nil

		if sentence.Len() > 0 {
			backlog = append(backlog, sentence.String())
			sentence.Reset()
		}
		relaySentences()

		c.drainAdvisories(ctx)
		c.maybeEmitVisual(ctx)
	}

	deliver := func(token string) {
		sentence.WriteString(token)

		if inMarker {
			inMarker = !closesMarker(token)
			if !inMarker && endsSentence(token) {
				flushSentence()
			}
			return
		}
		if startsMarker(token) {
			inMarker = !closesMarker(token)
			return
		}

		delay := c.config.pacing.delayFor(token)
		c.emit(ctx, events.NewText(token, delay, offset))
		spoken.WriteString(token)
		wordCount++

		c.matcher.Observe(token)
		if c.matcher.Match(token) {
			pending = append(pending, events.NewEmphasis(trimWordCased(token), offset))
		}

		offset += delay
		if endsSentence(token) {
			flushSentence()
		}
	}

tokenLoop:
	for chunk := range c.buffer.Chunks {
		tokens, rest := splitTokens(carry + chunk)
		carry = rest
		for _, token := range tokens {
			if c.cancelled.Load() || c.takeFatal() != nil {
				break tokenLoop
			}
			deliver(token)
		}
	}

	if fatal := c.takeFatal(); fatal != nil {
		c.emit(ctx, *fatal)
		return nil
	}
	if c.cancelled.Load() {
		c.emit(ctx, events.NewError(events.ErrorCancelled, "question cancelled", true))
		return nil
	}

	if carry != "" {
		deliver(carry)
		carry = ""
	}
	flushSentence()
	for len(backlog) > 0 {
		select {
		case c.sentenceCh <- backlog[0]:
			backlog = backlog[1:]
		case <-ctx.Done():
			backlog = nil
		}
	}
	closeSentences()

	span.SetAttributes(attribute.Int("delivery.words", wordCount))

	if ok := c.awaitCues(ctx); !ok {
		if c.cancelled.Load() {
			c.emit(ctx, events.NewError(events.ErrorCancelled, "question cancelled", true))
		} else if fatal := c.takeFatal(); fatal != nil {
			c.emit(ctx, *fatal)
		}
		return nil
	}
	c.drainAdvisories(ctx)

	c.mu.Lock()
	meta := c.meta
	c.mu.Unlock()

	c.spokenText = spoken.String()
	var metadata events.Metadata
	if err := copier.Copy(&metadata, &meta); err != nil {
		logger.Warn("failed to map explanation metadata", "session_id", c.sessionID, "error", err)
	}

	if c.emit(ctx, events.NewComplete(c.spokenText, metadata)) {
		c.completed = true
	}
	return nil
}

// awaitCues waits for the visual and narration workers to resolve, relaying
// their cues and any advisories. Returns false if the cycle aborted first.
func (c *questionCycle) awaitCues(ctx context.Context) bool {
	visualCh, audioCh := c.visualCh, c.audioCh
	for visualCh != nil || audioCh != nil {
		select {
		case descriptor, ok := <-visualCh:
			if !ok {
				visualCh = nil
				continue
			}
			c.emitVisual(ctx, descriptor)
		case result, ok := <-audioCh:
			if !ok {
				audioCh = nil
				continue
			}
			c.emitAudio(ctx, result)
		case advisory := <-c.advisoryCh:
			c.emit(ctx, advisory)
		case <-c.abort:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (c *questionCycle) maybeEmitVisual(ctx context.Context) {
	if c.emittedVisual != nil {
		return
	}
	select {
	case descriptor, ok := <-c.visualCh:
		if ok {
			c.emitVisual(ctx, descriptor)
		}
	default:
	}
}

func (c *questionCycle) emitVisual(ctx context.Context, descriptor events.VisualDescriptor) {
	if c.emittedVisual != nil {
		return
	}
	c.emittedVisual = &descriptor
	c.emit(ctx, events.NewVisualCue(events.VisualShow, descriptor))
}

func (c *questionCycle) emitAudio(ctx context.Context, result speech.Result) {
	if c.emittedAudio != nil {
		return
	}
	c.emittedAudio = &result
	c.emit(ctx, events.NewAudioCue(result.AudioURL, result.VideoURL, 0))
}

func (c *questionCycle) drainAdvisories(ctx context.Context) {
	for {
		select {
		case advisory := <-c.advisoryCh:
			c.emit(ctx, advisory)
		default:
			return
		}
	}
}

// emit queues an event for the consumer. Queue room wins over a cancelled
// context so terminal events still land on the stream during teardown.
func (c *questionCycle) emit(ctx context.Context, event events.Event) bool {
	select {
	case c.out <- event:
		return true
	default:
	}

	select {
	case c.out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *questionCycle) buildRecord() QuestionRecord {
	record := QuestionRecord{
		SessionID: c.sessionID,
		Question:  c.req.Question,
		Answer:    c.spokenText,
		AskedAt:   c.startedAt,
		Duration:  time.Since(c.startedAt),
	}

	c.mu.Lock()
	meta := c.meta
	c.mu.Unlock()
	if err := copier.Copy(&record, &meta); err != nil {
		logger.Warn("failed to map metadata into question record", "session_id", c.sessionID, "error", err)
	}

	if c.emittedVisual != nil && c.emittedVisual.URL != nil {
		record.VisualURL = c.emittedVisual.URL
	}
	if c.emittedAudio != nil {
		record.AudioURL = &c.emittedAudio.AudioURL
		record.AvatarVideoURL = c.emittedAudio.VideoURL
	}
	return record
}

func firstElement(elements []string) string {
	if len(elements) == 0 {
		return ""
	}
	return elements[0]
}
