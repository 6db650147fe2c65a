package orchestration

import "testing"

func TestStaticMatcherIgnoresCaseAndPunctuation(t *testing.T) {
	matcher := NewStaticMatcher("gravity", "force")

	for _, word := range []string{"Gravity", "gravity,", "FORCE.", "force"} {
		if !matcher.Match(word) {
			t.Errorf("expected %q to match", word)
		}
	}
	if matcher.Match("apple") {
		t.Error("expected unknown word to not match")
	}
}

func TestStaticMatcherAdd(t *testing.T) {
	matcher := NewStaticMatcher()
	if matcher.Match("photosynthesis") {
		t.Fatal("expected no match before Add")
	}

	matcher.Add("Photosynthesis")
	if !matcher.Match("photosynthesis,") {
		t.Fatal("expected match after Add")
	}
}

func TestHeuristicMatcherMatchesCuratedTerms(t *testing.T) {
	matcher := NewHeuristicMatcher()

	for _, word := range []string{"gravity", "force.", "Energy", "because", "example,"} {
		if !matcher.Match(word) {
			t.Errorf("expected curated term %q to match", word)
		}
	}
	if matcher.Match("banana") {
		t.Error("expected uncurated word to not match")
	}
}

func TestHeuristicMatcherLearnsRepeatedProperNouns(t *testing.T) {
	matcher := NewHeuristicMatcher()

	matcher.Observe("Newton")
	if matcher.Match("Newton") {
		t.Fatal("expected a single observation to not be enough")
	}

	matcher.Observe("Newton.")
	if !matcher.Match("Newton") {
		t.Fatal("expected a repeated proper noun to match")
	}
	if matcher.Match("newton") {
		t.Fatal("expected lowercase occurrence to not be emphasized")
	}
}

func TestHeuristicMatcherIgnoresLowercaseObservations(t *testing.T) {
	matcher := NewHeuristicMatcher()

	matcher.Observe("apple")
	matcher.Observe("apple")
	if matcher.Match("apple") {
		t.Fatal("expected lowercase repetitions to not match")
	}
}
