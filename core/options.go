package orchestration

import (
	"time"

	"github.com/koscakluka/tutor-core/core/explanations"
	"github.com/koscakluka/tutor-core/core/speech"
	"github.com/koscakluka/tutor-core/core/visuals"
)

// Timeouts bounds each producer call within a question cycle.
type Timeouts struct {
	Explanation time.Duration
	Visual      time.Duration
	Audio       time.Duration
}

func defaultTimeouts() Timeouts {
	return Timeouts{
		Explanation: 60 * time.Second,
		Visual:      30 * time.Second,
		Audio:       60 * time.Second,
	}
}

type sessionConfig struct {
	explainer explanations.Producer
	visuals   visuals.Producer
	speech    *speech.Chain

	// newMatcher builds a fresh matcher per question cycle so learned
	// emphasis state never carries over between questions.
	newMatcher func() KeywordMatcher

	pacing   PacingOptions
	timeouts Timeouts
	sink     RecordSink
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		newMatcher: NewHeuristicMatcher,
		pacing:     DefaultPacingOptions(),
		timeouts:   defaultTimeouts(),
	}
}

type SessionOption func(*sessionConfig)

func WithExplanationProducer(producer explanations.Producer) SessionOption {
	return func(c *sessionConfig) {
		c.explainer = producer
	}
}

func WithVisualProducer(producer visuals.Producer) SessionOption {
	return func(c *sessionConfig) {
		c.visuals = producer
	}
}

func WithSpeechChain(chain *speech.Chain) SessionOption {
	return func(c *sessionConfig) {
		c.speech = chain
	}
}

// WithKeywordMatcher replaces the emphasis matcher. The factory is invoked
// once per question cycle.
func WithKeywordMatcher(newMatcher func() KeywordMatcher) SessionOption {
	return func(c *sessionConfig) {
		if newMatcher != nil {
			c.newMatcher = newMatcher
		}
	}
}

func WithPacing(pacing PacingOptions) SessionOption {
	return func(c *sessionConfig) {
		c.pacing = pacing.withDefaults()
	}
}

func WithTimeouts(timeouts Timeouts) SessionOption {
	return func(c *sessionConfig) {
		defaults := defaultTimeouts()
		if timeouts.Explanation <= 0 {
			timeouts.Explanation = defaults.Explanation
		}
		if timeouts.Visual <= 0 {
			timeouts.Visual = defaults.Visual
		}
		if timeouts.Audio <= 0 {
			timeouts.Audio = defaults.Audio
		}
		c.timeouts = timeouts
	}
}

func WithRecordSink(sink RecordSink) SessionOption {
	return func(c *sessionConfig) {
		c.sink = sink
	}
}
