package store

import (
	"strings"
	"unicode"
)

// TokenizeText splits natural-language text into lowercase tokens for
// keyword indexing. Letter/digit runs are kept; everything else is a
// separator. Single-rune tokens are dropped unless numeric.
func TokenizeText(text string) []string {
	if text == "" {
		return nil
	}

	tokens := make([]string, 0, len(text)/6)
	var b strings.Builder

	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if len(tok) >= 2 || isNumeric(tok) {
			tokens = append(tokens, tok)
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// FilterStopTokens removes tokens present in the stop set. Used by the
// keyword index analyzer; query-side stop-word removal lives in the
// query package's lexicon.
func FilterStopTokens(tokens []string, stop map[string]struct{}) []string {
	if len(stop) == 0 {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, skip := stop[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	return out
}
