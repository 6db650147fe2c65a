package orchestration

import (
	"strings"
	"sync"
	"unicode"
)

// KeywordMatcher decides which spoken words deserve an emphasis event.
// Observe is called for every delivered word; Add injects words learned from
// explanation metadata mid-stream.
type KeywordMatcher interface {
	Observe(word string)
	Match(word string) bool
	Add(words ...string)
}

// NewStaticMatcher matches a fixed, case-insensitive word list.
func NewStaticMatcher(words ...string) KeywordMatcher {
	m := &staticMatcher{words: map[string]struct{}{}}
	m.Add(words...)
	return m
}

type staticMatcher struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

func (m *staticMatcher) Observe(string) {}

func (m *staticMatcher) Match(word string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.words[trimWord(word)]
	return ok
}

func (m *staticMatcher) Add(words ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, word := range words {
		if trimmed := trimWord(word); trimmed != "" {
			m.words[trimmed] = struct{}{}
		}
	}
}

var importantTerms = []string{
	"gravity", "force", "energy", "mass", "velocity", "acceleration",
	"important", "key", "crucial", "remember", "note", "formula",
	"equation", "theorem", "law", "principle", "concept",
	"example", "because", "therefore", "however", "although",
	"first", "second", "third", "finally", "result",
}

// NewHeuristicMatcher matches a curated list of teaching terms and, in
// addition, any capitalized mid-sentence word it has observed more than once.
// Repetition of a proper noun is a decent signal that it is the topic.
func NewHeuristicMatcher() KeywordMatcher {
	return &heuristicMatcher{
		static: NewStaticMatcher(importantTerms...),
		seen:   map[string]int{},
	}
}

type heuristicMatcher struct {
	static KeywordMatcher

	mu   sync.Mutex
	seen map[string]int
}

func (m *heuristicMatcher) Observe(word string) {
	trimmed := trimWordCased(word)
	if trimmed == "" || !unicode.IsUpper([]rune(trimmed)[0]) {
		return
	}

	m.mu.Lock()
	m.seen[strings.ToLower(trimmed)]++
	m.mu.Unlock()
}

func (m *heuristicMatcher) Match(word string) bool {
	if m.static.Match(word) {
		return true
	}

	trimmed := trimWordCased(word)
	if trimmed == "" || !unicode.IsUpper([]rune(trimmed)[0]) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.seen[strings.ToLower(trimmed)] > 1
}

func (m *heuristicMatcher) Add(words ...string) {
	m.static.Add(words...)
}

func trimWord(word string) string {
	return strings.ToLower(trimWordCased(word))
}

func trimWordCased(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
