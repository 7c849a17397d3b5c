// Package query turns raw query text into a ProcessedQuery: cleaned and
// spell-corrected text, content terms, phrase windows, synonym expansions,
// a classified intent, and structural filter hints. Processing is a pure
// function over its input and the static lexicon tables; it performs no I/O
// and never aborts the pipeline past validation.
package query

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
)

// DefaultMaxQueryLength bounds raw query text in runes.
const DefaultMaxQueryLength = 512

// Processor derives ProcessedQuery values from raw text. Safe for
// concurrent use; the lexicon is swapped atomically on overlay reload.
type Processor struct {
	maxLength int
	logger    *slog.Logger
	lexicon   atomic.Pointer[Lexicon]
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxQueryLength overrides the maximum raw query length in runes.
func WithMaxQueryLength(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxLength = n
		}
	}
}

// WithLexicon sets the initial lexicon.
func WithLexicon(lex *Lexicon) Option {
	return func(p *Processor) {
		if lex != nil {
			p.lexicon.Store(lex)
		}
	}
}

// WithLogger sets the logger used to record degraded processing.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a Processor with the built-in lexicon.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		maxLength: DefaultMaxQueryLength,
		logger:    slog.Default(),
	}
	p.lexicon.Store(NewLexicon())

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetLexicon swaps the active lexicon. In-flight Process calls keep the
// lexicon they loaded at entry.
func (p *Processor) SetLexicon(lex *Lexicon) {
	if lex != nil {
		p.lexicon.Store(lex)
	}
}

// Lexicon returns the active lexicon.
func (p *Processor) Lexicon() *Lexicon {
	return p.lexicon.Load()
}

// Process validates and derives a ProcessedQuery from raw text.
//
// Validation failures (empty/whitespace-only text, text over the length
// bound) return a validation error before any processing. Past validation
// the function never fails: an internal panic degrades to the original
// text as both cleaned and corrected forms with empty components, recorded
// in the log, so processing cannot abort the pipeline.
func (p *Processor) Process(raw string) (pq *ProcessedQuery, err error) {
	if strings.TrimSpace(raw) == "" {
		return nil, mserrors.New(mserrors.ErrCodeQueryEmpty,
			"query text is empty", nil)
	}
	if n := utf8.RuneCountInString(raw); n > p.maxLength {
		return nil, mserrors.New(mserrors.ErrCodeQueryTooLong,
			fmt.Sprintf("query text is %d characters, maximum is %d", n, p.maxLength), nil).
			WithDetail("length", fmt.Sprintf("%d", n)).
			WithDetail("max_length", fmt.Sprintf("%d", p.maxLength))
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("query_processing_degraded",
				slog.Any("panic", r),
				slog.String("query", raw),
			)
			pq = degradedQuery(raw)
			err = nil
		}
	}()

	lex := p.lexicon.Load()

	cleaned := cleanText(raw)
	rawTokens := strings.Fields(cleaned)

	tokens := make([]string, len(rawTokens))
	for i, tok := range rawTokens {
		tokens[i] = lex.Correct(tok)
	}
	corrected := strings.Join(tokens, " ")

	contentTerms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !lex.IsStopWord(tok) {
			contentTerms = append(contentTerms, tok)
		}
	}

	phrases := append(ngrams(tokens, 2), ngrams(tokens, 3)...)

	return &ProcessedQuery{
		Original:      raw,
		Cleaned:       cleaned,
		Corrected:     corrected,
		Tokens:        tokens,
		ContentTerms:  contentTerms,
		Phrases:       phrases,
		ExpandedTerms: expandTerms(lex, tokens),
		Intent:        classifyIntent(raw, tokens),
		Filters:       extractFilterHints(raw, tokens),
	}, nil
}

// degradedQuery is the fallback shape when processing itself fails: the
// original text stands in for the derived forms and every component is
// empty.
func degradedQuery(raw string) *ProcessedQuery {
	return &ProcessedQuery{
		Original:  raw,
		Cleaned:   raw,
		Corrected: raw,
		Intent:    IntentGeneral,
	}
}

// cleanText collapses whitespace runs to single spaces, strips characters
// outside letters/digits/space/hyphen/period, and lowercases.
func cleanText(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || r == '.':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		default:
			// Stripped entirely; adjacent fragments join.
		}
	}

	return b.String()
}

// ngrams returns the sliding n-token windows over tokens, joined by spaces.
func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

// expandTerms collects synonym expansions for every token with a table
// entry. Output is deduplicated, excludes terms already in the token
// stream, and follows token order then table order so identical inputs
// yield identical output.
func expandTerms(lex *Lexicon, tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		seen[tok] = struct{}{}
	}

	var expanded []string
	for _, tok := range tokens {
		for _, syn := range lex.Synonyms(tok) {
			if _, dup := seen[syn]; dup {
				continue
			}
			seen[syn] = struct{}{}
			expanded = append(expanded, syn)
		}
	}

	return expanded
}
