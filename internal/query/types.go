package query

// Intent classifies what a query is trying to accomplish. It biases
// downstream ranking but never excludes results on its own.
type Intent string

const (
	// IntentQuestion marks interrogative queries ("how do I ...?").
	IntentQuestion Intent = "question"
	// IntentNavigational marks queries aimed at a specific site or URL.
	IntentNavigational Intent = "navigational"
	// IntentInformational marks queries seeking background material.
	IntentInformational Intent = "informational"
	// IntentTransactional marks queries with purchase/acquisition verbs.
	IntentTransactional Intent = "transactional"
	// IntentGeneral is the fallback when no stronger signal matches.
	IntentGeneral Intent = "general"
)

// FilterHints are structural filters extracted from query text: date-like
// tokens and content-type keyword families. They are hints, not predicates;
// the dispatcher decides whether an index can honor them.
type FilterHints struct {
	// ContentTypes lists detected content-type families ("image", "video",
	// "text", "keyframe", "audio") in first-appearance order.
	ContentTypes []string

	// Dates lists date-like tokens (4-digit years, slash dates,
	// month/weekday names) in first-appearance order.
	Dates []string
}

// Empty reports whether no hints were extracted.
func (h FilterHints) Empty() bool {
	return len(h.ContentTypes) == 0 && len(h.Dates) == 0
}

// ProcessedQuery is the derived form of a raw query string. It is pure
// derived data: built once by Processor.Process and never mutated, so it is
// safe to share across concurrent pipeline branches.
type ProcessedQuery struct {
	// Original is the raw input, untouched.
	Original string

	// Cleaned is the whitespace-collapsed, lowercased text with characters
	// outside letters/digits/space/hyphen/period stripped.
	Cleaned string

	// Corrected is the cleaned text after misspelling substitution.
	Corrected string

	// Tokens is the corrected token stream, including stop words.
	Tokens []string

	// ContentTerms is Tokens with stop words removed.
	ContentTerms []string

	// Phrases holds the sliding 2-gram and 3-gram windows over Tokens.
	Phrases []string

	// ExpandedTerms holds synonym expansions of Tokens, deduplicated and
	// excluding terms already present in the token stream.
	ExpandedTerms []string

	// Intent is the classified query intent.
	Intent Intent

	// Filters holds extracted structural filter hints.
	Filters FilterHints
}
