package orchestration

import (
	"testing"
	"time"
)

func TestSplitTokensCarriesIncompleteTail(t *testing.T) {
	tokens, rest := splitTokens("Gravity pulls obj")
	if len(tokens) != 2 {
		t.Fatalf("expected 2 complete tokens, got %v", tokens)
	}
	if tokens[0] != "Gravity " || tokens[1] != "pulls " {
		t.Fatalf("unexpected tokens %q", tokens)
	}
	if rest != "obj" {
		t.Fatalf("expected carry %q, got %q", "obj", rest)
	}

	tokens, rest = splitTokens(rest + "ects together. ")
	if len(tokens) != 1 || tokens[0] != "objects " {
		t.Fatalf("expected completed token, got %v", tokens)
	}
	if rest != "together. " {
		t.Fatalf("expected trailing token carried (whitespace may grow), got %q", rest)
	}
}

func TestSplitTokensKeepsWhitespaceLossless(t *testing.T) {
	input := "one  two\nthree "
	tokens, rest := splitTokens(input)

	var joined string
	for _, token := range tokens {
		joined += token
	}
	if joined+rest != input {
		t.Fatalf("tokenization lost bytes: %q + %q != %q", joined, rest, input)
	}
}

func TestDelayForAddsLongWordSurcharge(t *testing.T) {
	pacing := DefaultPacingOptions()
	base := time.Minute / time.Duration(pacing.WordsPerMinute)

	if got := pacing.delayFor("is "); got != base {
		t.Fatalf("expected base delay %v for a short word, got %v", base, got)
	}
	if got := pacing.delayFor("acceleration "); got != base+base/4 {
		t.Fatalf("expected surcharged delay for a long word, got %v", got)
	}
}

func TestDelayForAddsPunctuationPauses(t *testing.T) {
	pacing := DefaultPacingOptions()
	base := time.Minute / time.Duration(pacing.WordsPerMinute)

	if got := pacing.delayFor("down. "); got != base+pacing.SentencePause {
		t.Fatalf("expected sentence pause, got %v", got)
	}
	if got := pacing.delayFor("first, "); got != base+pacing.ClausePause {
		t.Fatalf("expected clause pause, got %v", got)
	}
}

func TestEndsSentence(t *testing.T) {
	for _, token := range []string{"done. ", "what? ", "wow!\n", `said." `} {
		if !endsSentence(token) {
			t.Errorf("expected %q to end a sentence", token)
		}
	}
	for _, token := range []string{"word ", "pause, ", ""} {
		if endsSentence(token) {
			t.Errorf("expected %q to not end a sentence", token)
		}
	}
}

func TestMarkerDetection(t *testing.T) {
	if !startsMarker("[VISUAL: ") {
		t.Error("expected marker start to be detected")
	}
	if !startsMarker("[visual: ") {
		t.Error("expected lowercase marker start to be detected")
	}
	if startsMarker("visible ") {
		t.Error("expected plain word to not start a marker")
	}
	if !closesMarker("falling] ") {
		t.Error("expected closing bracket to be detected")
	}
}

func TestPacingWithDefaultsFillsZeroValues(t *testing.T) {
	pacing := PacingOptions{WordsPerMinute: 200}.withDefaults()
	if pacing.WordsPerMinute != 200 {
		t.Fatalf("expected explicit rate kept, got %d", pacing.WordsPerMinute)
	}
	if pacing.LongWordLength != DefaultPacingOptions().LongWordLength {
		t.Fatalf("expected default long word length, got %d", pacing.LongWordLength)
	}
}
