// Package speech defines the contract between the orchestration core and
// avatar/TTS providers, and the prioritized provider chain used to attempt
// them.
package speech

import (
	"context"
	"strings"
	"time"
)

// Request carries the text to narrate and the requested styles.
type Request struct {
	Text        string
	VoiceStyle  string
	AvatarStyle string
}

// Result is a successful synthesis: a playable audio URL, an optional avatar
// video URL, and the (possibly estimated) narration duration.
type Result struct {
	AudioURL string
	VideoURL *string
	Duration time.Duration
}

// Provider synthesizes narration for a request. Implementations are opaque;
// a failed provider is skipped in favor of the next one in the chain.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

const estimateWordsPerMinute = 150

// EstimateDuration approximates how long narrating the text takes at a
// typical reading rate. Used when a provider does not report duration.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return time.Duration(words) * time.Minute / estimateWordsPerMinute
}
