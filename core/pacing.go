package orchestration

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// PacingOptions controls how word delivery is timed. Delays are attached to
// text events as hints; the transport decides whether to honor them.
type PacingOptions struct {
	// WordsPerMinute is the base delivery rate.
	WordsPerMinute int
	// LongWordLength is the rune count from which a word gets a 25% delay
	// surcharge.
	LongWordLength int
	// SentencePause is added after sentence-ending punctuation.
	SentencePause time.Duration
	// ClausePause is added after commas, semicolons and colons.
	ClausePause time.Duration
}

func DefaultPacingOptions() PacingOptions {
	return PacingOptions{
		WordsPerMinute: 150,
		LongWordLength: 8,
		SentencePause:  300 * time.Millisecond,
		ClausePause:    150 * time.Millisecond,
	}
}

func (p PacingOptions) withDefaults() PacingOptions {
	defaults := DefaultPacingOptions()
	if p.WordsPerMinute <= 0 {
		p.WordsPerMinute = defaults.WordsPerMinute
	}
	if p.LongWordLength <= 0 {
		p.LongWordLength = defaults.LongWordLength
	}
	if p.SentencePause < 0 {
		p.SentencePause = defaults.SentencePause
	}
	if p.ClausePause < 0 {
		p.ClausePause = defaults.ClausePause
	}
	return p
}

// delayFor returns the pause preceding the next word after this token: the
// base word rate, a surcharge for long words, and any punctuation pause.
func (p PacingOptions) delayFor(token string) time.Duration {
	delay := time.Minute / time.Duration(p.WordsPerMinute)
	if utf8.RuneCountInString(trimWordCased(token)) >= p.LongWordLength {
		delay += delay / 4
	}
	switch {
	case endsSentence(token):
		delay += p.SentencePause
	case endsClause(token):
		delay += p.ClausePause
	}
	return delay
}

// splitTokens cuts buf into delivery tokens, each a word with its trailing
// whitespace. The tail that may still grow (no word/whitespace boundary seen
// after it yet) is returned as rest and carried into the next call.
func splitTokens(buf string) (tokens []string, rest string) {
	start := 0
	i := 0
	for i < len(buf) {
		for i < len(buf) && !isSpace(buf[i]) {
			i++
		}
		j := i
		for j < len(buf) && isSpace(buf[j]) {
			j++
		}
		if j == len(buf) {
			return tokens, buf[start:]
		}
		tokens = append(tokens, buf[start:j])
		start = j
		i = j
	}
	return tokens, buf[start:]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func endsSentence(token string) bool {
	return endsWithAny(token, ".!?")
}

func endsClause(token string) bool {
	return endsWithAny(token, ",;:")
}

func endsWithAny(token string, punctuation string) bool {
	trimmed := strings.TrimRightFunc(token, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '\'' || r == ')' || r == ']'
	})
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	return strings.ContainsRune(punctuation, r)
}

// visual markers are consumed by the cue extractor, never spoken
const markerPrefix = "[visual:"

func startsMarker(token string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimLeft(token, " \t\n\r")), markerPrefix)
}

func closesMarker(token string) bool {
	return strings.Contains(token, "]")
}
