// Package text builds embedding text from hierarchical document context.
// Descriptions are cleaned, filtered, budgeted per source, and capped so
// the most local context dominates the embedding.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTokens is the hard cap on composed embedding text length.
const MaxTokens = 20

// Word budgets per context source, most specific first.
const (
	segmentBudget      = 10
	segmentationBudget = 5
	recordingBudget    = 5
	presetBudget       = 10
	effectBudget       = 5
)

// stopWords are dropped during cleaning: standard English function words
// plus audio-adjacent noise words that carry no semantic weight in a sound
// catalog.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "this": {}, "that": {},
	"these": {}, "those": {},

	"sound": {}, "audio": {}, "recording": {}, "sample": {},
	"track": {}, "file": {}, "piece": {},
}

// Lemmatizer reduces one cleaned token to its lemma. Implementations must
// be deterministic within a process; changing lemmatizers mid-run requires
// an index rebuild.
type Lemmatizer interface {
	Lemma(token string) string
}

// Source pairs a context text with its word budget.
type Source struct {
	text   string
	budget int
}

// NewSource creates a Source.
func NewSource(text string, budget int) Source {
	return Source{text: text, budget: budget}
}

// Text returns the raw source text.
func (s Source) Text() string { return s.text }

// Budget returns the word budget.
func (s Source) Budget() int { return s.budget }

// Composer builds embedding text and enhanced queries. It is pure; the
// same inputs always produce the same output.
type Composer struct {
	lemmatizer Lemmatizer
}

// NewComposer creates a Composer. A nil lemmatizer passes tokens through
// unchanged.
func NewComposer(lemmatizer Lemmatizer) Composer {
	return Composer{lemmatizer: lemmatizer}
}

// SegmentText composes embedding text for a segment from its own
// description, the segmentation description, and the recording description.
func (c Composer) SegmentText(segment, segmentation, recording string) string {
	return c.Compose(
		NewSource(segment, segmentBudget),
		NewSource(segmentation, segmentationBudget),
		NewSource(recording, recordingBudget),
	)
}

// PresetText composes embedding text for a preset from its own description
// and the effect description.
func (c Composer) PresetText(preset, effect string) string {
	return c.Compose(
		NewSource(preset, presetBudget),
		NewSource(effect, effectBudget),
	)
}

// Compose cleans each source, takes at most its budget of tokens, joins
// the sources in order, drops repeated tokens keeping the first
// occurrence, and truncates to MaxTokens.
func (c Composer) Compose(sources ...Source) string {
	var combined []string
	for _, src := range sources {
		tokens := c.tokens(src.text)
		if len(tokens) > src.budget {
			tokens = tokens[:src.budget]
		}
		combined = append(combined, tokens...)
	}

	seen := make(map[string]struct{}, len(combined))
	unique := make([]string, 0, len(combined))
	for _, token := range combined {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}

	if len(unique) > MaxTokens {
		unique = unique[:MaxTokens]
	}
	return strings.Join(unique, " ")
}

// EnhanceQuery applies the composer's cleaning to a query with no budget
// and no cap.
func (c Composer) EnhanceQuery(query string) string {
	return strings.Join(c.tokens(query), " ")
}

// tokens cleans text into filtered, lemmatized tokens: lowercase,
// punctuation stripped to whitespace, whitespace collapsed, stop words and
// tokens of two runes or fewer dropped.
func (c Composer) tokens(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, ok := stopWords[word]; ok {
			continue
		}
		if c.lemmatizer != nil {
			word = c.lemmatizer.Lemma(word)
		}
		tokens = append(tokens, word)
	}
	return tokens
}
