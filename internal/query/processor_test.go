package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
)

// =============================================================================
// Validation Tests
// =============================================================================

func TestProcess_EmptyQuery_FailsValidation(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"spaces only", "   "},
		{"tabs and newlines", "\t\n  \t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: processing blank input
			pq, err := p.Process(tt.raw)

			// Then: a validation error, no ProcessedQuery
			require.Error(t, err)
			assert.Nil(t, pq)
			assert.Equal(t, mserrors.ErrCodeQueryEmpty, mserrors.GetCode(err))
			assert.True(t, mserrors.IsValidation(err))
		})
	}
}

func TestProcess_OverlongQuery_FailsValidation(t *testing.T) {
	// Given: a processor with a tight length bound
	p := NewProcessor(WithMaxQueryLength(10))

	// When: processing eleven characters
	pq, err := p.Process("abcdefghijk")

	// Then: rejected with the too-long code
	require.Error(t, err)
	assert.Nil(t, pq)
	assert.Equal(t, mserrors.ErrCodeQueryTooLong, mserrors.GetCode(err))
	assert.True(t, mserrors.IsValidation(err))
}

func TestProcess_LengthBoundCountsRunes(t *testing.T) {
	// Given: a 10-rune query of multi-byte characters
	p := NewProcessor(WithMaxQueryLength(10))

	// When: processing exactly at the bound
	pq, err := p.Process("éééééééééé")

	// Then: accepted
	require.NoError(t, err)
	require.NotNil(t, pq)
}

// =============================================================================
// Cleaning Tests
// =============================================================================

func TestProcess_CleansText(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name    string
		raw     string
		cleaned string
	}{
		{
			name:    "collapses whitespace and lowercases",
			raw:     "  Hello   WORLD  ",
			cleaned: "hello world",
		},
		{
			name:    "strips punctuation outside the kept set",
			raw:     "sunset, beach! (2023)",
			cleaned: "sunset beach 2023",
		},
		{
			name:    "keeps hyphens and periods",
			raw:     "re-do v2.0",
			cleaned: "re-do v2.0",
		},
		{
			name:    "stripped characters join adjacent fragments",
			raw:     "don't",
			cleaned: "dont",
		},
		{
			name:    "slash dates collapse into one token",
			raw:     "12/25/2024",
			cleaned: "12252024",
		},
		{
			name:    "unicode letters survive",
			raw:     "Café naïve",
			cleaned: "café naïve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq, err := p.Process(tt.raw)

			require.NoError(t, err)
			assert.Equal(t, tt.cleaned, pq.Cleaned)
		})
	}
}

func TestProcess_PreservesOriginal(t *testing.T) {
	p := NewProcessor()
	raw := "  What IS this?? "

	pq, err := p.Process(raw)

	require.NoError(t, err)
	assert.Equal(t, raw, pq.Original)
}

// =============================================================================
// Misspelling Correction Tests
// =============================================================================

func TestProcess_CorrectsMisspellings(t *testing.T) {
	// Given: a query with known misspellings
	p := NewProcessor()

	// When: processing
	pq, err := p.Process("car insurnce documnet")

	// Then: corrected text substitutes the dictionary entries
	require.NoError(t, err)
	assert.Equal(t, "car insurnce documnet", pq.Cleaned)
	assert.Equal(t, "car insurance document", pq.Corrected)
	assert.Equal(t, []string{"car", "insurance", "document"}, pq.Tokens)
}

func TestProcess_CorrectionFeedsDownstreamStages(t *testing.T) {
	// Given: a misspelled term with a synonym entry under its corrected form
	p := NewProcessor()

	// When: processing
	pq, err := p.Process("vehical registration")

	// Then: expansion looks up the corrected token
	require.NoError(t, err)
	assert.Contains(t, pq.ExpandedTerms, "car")
	assert.Contains(t, pq.ExpandedTerms, "automobile")
}

// =============================================================================
// Content Term Tests
// =============================================================================

func TestProcess_RemovesStopWords(t *testing.T) {
	p := NewProcessor()

	pq, err := p.Process("how does car insurance work")

	require.NoError(t, err)
	assert.Equal(t, []string{"car", "insurance", "work"}, pq.ContentTerms)
	// The full token stream is retained separately.
	assert.Equal(t, []string{"how", "does", "car", "insurance", "work"}, pq.Tokens)
}

// =============================================================================
// Phrase Window Tests
// =============================================================================

func TestProcess_GeneratesPhraseWindows(t *testing.T) {
	// Given: a five-token query
	p := NewProcessor()

	// When: processing
	pq, err := p.Process("how does car insurance work")

	// Then: 2-grams then 3-grams, over all tokens including stop words
	require.NoError(t, err)
	assert.Equal(t, []string{
		"how does", "does car", "car insurance", "insurance work",
		"how does car", "does car insurance", "car insurance work",
	}, pq.Phrases)
}

func TestProcess_ShortQueries_FewerWindows(t *testing.T) {
	p := NewProcessor()

	t.Run("single token yields no phrases", func(t *testing.T) {
		pq, err := p.Process("sunset")
		require.NoError(t, err)
		assert.Empty(t, pq.Phrases)
	})

	t.Run("two tokens yield one 2-gram", func(t *testing.T) {
		pq, err := p.Process("sunset beach")
		require.NoError(t, err)
		assert.Equal(t, []string{"sunset beach"}, pq.Phrases)
	})
}

// =============================================================================
// Synonym Expansion Tests
// =============================================================================

func TestProcess_ExpandsSynonyms(t *testing.T) {
	// Given: the fixed synonym table
	p := NewProcessor()

	// When: processing "car insurance"
	pq, err := p.Process("car insurance")

	// Then: the car expansions appear and intent stays general
	require.NoError(t, err)
	assert.Contains(t, pq.ExpandedTerms, "automobile")
	assert.Contains(t, pq.ExpandedTerms, "vehicle")
	assert.Contains(t, pq.ExpandedTerms, "auto")
	assert.Equal(t, IntentGeneral, pq.Intent)
}

func TestProcess_ExpansionExcludesInputTokens(t *testing.T) {
	// Given: a query already containing one of car's synonyms
	p := NewProcessor()

	// When: processing
	pq, err := p.Process("car vehicle")

	// Then: "vehicle" is not re-added, and nothing appears twice
	require.NoError(t, err)
	assert.NotContains(t, pq.ExpandedTerms, "vehicle")
	assert.NotContains(t, pq.ExpandedTerms, "car")
	seen := make(map[string]int)
	for _, term := range pq.ExpandedTerms {
		seen[term]++
	}
	for term, count := range seen {
		assert.Equal(t, 1, count, "term %q duplicated", term)
	}
}

func TestProcess_NoSynonymEntries_EmptyExpansion(t *testing.T) {
	p := NewProcessor()

	pq, err := p.Process("zyzzyva xylophone")

	require.NoError(t, err)
	assert.Empty(t, pq.ExpandedTerms)
}

// =============================================================================
// Intent Classification Tests
// =============================================================================

func TestProcess_ClassifiesIntent(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name   string
		raw    string
		intent Intent
	}{
		{"question mark suffix", "sunset photos from the beach?", IntentQuestion},
		{"leading interrogative", "how do i find old receipts", IntentQuestion},
		{"url marker", "open www.example.com gallery", IntentNavigational},
		{"bare domain token", "example.com photo archive", IntentNavigational},
		{"site keyword", "vacation photos website", IntentNavigational},
		{"informational keyword", "information about route 66", IntentInformational},
		{"transactional keyword", "buy camera lens", IntentTransactional},
		{"plain query", "car insurance", IntentGeneral},
		{"question outranks transactional", "where to buy camera lens", IntentQuestion},
		{"navigational outranks informational", "about page on website", IntentNavigational},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq, err := p.Process(tt.raw)

			require.NoError(t, err)
			assert.Equal(t, tt.intent, pq.Intent, "query: %q", tt.raw)
		})
	}
}

func TestProcess_QuestionMarkSurvivesCleaning(t *testing.T) {
	// Given: cleaning strips the question mark
	p := NewProcessor()

	// When: processing a trailing-? query with no interrogative token
	pq, err := p.Process("beach trip 2019?")

	// Then: the raw-text check still classifies it as a question
	require.NoError(t, err)
	assert.NotContains(t, pq.Cleaned, "?")
	assert.Equal(t, IntentQuestion, pq.Intent)
}

// =============================================================================
// Filter Hint Tests
// =============================================================================

func TestProcess_ExtractsDateHints(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name  string
		raw   string
		dates []string
	}{
		{"four digit year", "sunset photos from 2023", []string{"2023"}},
		{"slash date from raw text", "receipts from 12/25/2024", []string{"12/25/2024"}},
		{"month name", "trip in july", []string{"july"}},
		{"weekday name", "meeting notes monday", []string{"monday"}},
		{"mixed and deduplicated", "july 2023 photos july", []string{"2023", "july"}},
		{"no dates", "car insurance", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq, err := p.Process(tt.raw)

			require.NoError(t, err)
			if tt.dates == nil {
				assert.Empty(t, pq.Filters.Dates)
			} else {
				assert.ElementsMatch(t, tt.dates, pq.Filters.Dates)
			}
		})
	}
}

func TestProcess_ExtractsContentTypeHints(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name  string
		raw   string
		types []string
	}{
		{"image family", "beach photos", []string{"image"}},
		{"video family", "birthday clip", []string{"video"}},
		{"text family", "insurance documents", []string{"text"}},
		{"keyframe family", "opening scene frames", []string{"keyframe"}},
		{"audio family", "road trip songs", []string{"audio"}},
		{"multiple families deduplicated", "photos and pictures and videos", []string{"image", "video"}},
		{"no families", "car insurance", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq, err := p.Process(tt.raw)

			require.NoError(t, err)
			if tt.types == nil {
				assert.Empty(t, pq.Filters.ContentTypes)
			} else {
				assert.Equal(t, tt.types, pq.Filters.ContentTypes)
			}
		})
	}
}

func TestFilterHints_Empty(t *testing.T) {
	assert.True(t, FilterHints{}.Empty())
	assert.False(t, FilterHints{Dates: []string{"2023"}}.Empty())
	assert.False(t, FilterHints{ContentTypes: []string{"image"}}.Empty())
}

// =============================================================================
// Purity and Degradation Tests
// =============================================================================

func TestProcess_IsDeterministic(t *testing.T) {
	// Given: one processor, one input
	p := NewProcessor()
	raw := "how does car insurance work in july 2023"

	// When: processing twice
	first, err := p.Process(raw)
	require.NoError(t, err)
	second, err := p.Process(raw)
	require.NoError(t, err)

	// Then: byte-identical derived data
	assert.Equal(t, first, second)
}

func TestProcess_IndependentProcessorsAgree(t *testing.T) {
	raw := "buy vintage camra on www.example.com"

	a, err := NewProcessor().Process(raw)
	require.NoError(t, err)
	b, err := NewProcessor().Process(raw)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestProcess_HostileInputNeverFailsPastValidation(t *testing.T) {
	p := NewProcessor()

	inputs := []string{
		"!!!@@@###",
		strings.Repeat("-", 100),
		"\x00\x01\x02 binary junk",
		"🎉🎊 emoji party 🎈",
		"ＵＮＩＣＯＤＥ ｗｉｄｅ",
		"....----....",
	}

	for _, raw := range inputs {
		pq, err := p.Process(raw)

		require.NoError(t, err, "input %q", raw)
		require.NotNil(t, pq, "input %q", raw)
		assert.Equal(t, raw, pq.Original)
	}
}

func TestDegradedQuery_OriginalStandsInForDerivedForms(t *testing.T) {
	// Given: the fallback shape used when processing panics internally
	pq := degradedQuery("Some RAW text?")

	// Then: original text fills both derived forms, components are empty
	assert.Equal(t, "Some RAW text?", pq.Original)
	assert.Equal(t, "Some RAW text?", pq.Cleaned)
	assert.Equal(t, "Some RAW text?", pq.Corrected)
	assert.Empty(t, pq.Tokens)
	assert.Empty(t, pq.ContentTerms)
	assert.Empty(t, pq.Phrases)
	assert.Empty(t, pq.ExpandedTerms)
	assert.True(t, pq.Filters.Empty())
	assert.Equal(t, IntentGeneral, pq.Intent)
}
