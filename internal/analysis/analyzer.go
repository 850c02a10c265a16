// Package analysis turns raw text into index terms: lower-casing, splitting
// on non-alphanumeric boundaries, English stop-word removal and Snowball
// (Porter2) stemming. Queries and documents must go through the same
// Analyzer so their terms line up.
package analysis

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// Analyzer maps text to an ordered term sequence. Duplicates are kept.
type Analyzer interface {
	Analyze(text string) []string
}

// Standard is the default English analyzer.
type Standard struct {
	stopWords map[string]struct{}
	minLength int
	stem      bool
}

type Option func(*Standard)

// WithoutStemming keeps surface forms, which is useful when the caller has
// already normalised terms.
func WithoutStemming() Option {
	return func(s *Standard) { s.stem = false }
}

// WithStopWords replaces the default stop-word list.
func WithStopWords(words []string) Option {
	return func(s *Standard) {
		s.stopWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			s.stopWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithMinLength drops tokens shorter than n runes before stemming.
func WithMinLength(n int) Option {
	return func(s *Standard) { s.minLength = n }
}

func NewStandard(opts ...Option) *Standard {
	s := &Standard{
		stopWords: defaultStopWords,
		minLength: 1,
		stem:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Standard) Analyze(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < s.minLength {
			continue
		}
		if _, stop := s.stopWords[word]; stop {
			continue
		}
		if s.stem {
			word = english.Stem(word, true)
		}
		if word == "" {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// Func adapts a plain function to Analyzer.
type Func func(text string) []string

func (f Func) Analyze(text string) []string { return f(text) }

// Whitespace splits on spaces only. Tests use it to feed pre-tokenised text.
var Whitespace Analyzer = Func(strings.Fields)
