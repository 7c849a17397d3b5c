package query

import "strings"

// Intent marker tables. Checks run in strict priority order: question,
// navigational, informational, transactional; the first match wins.

// interrogatives classify a query as a question when one opens it.
var interrogatives = map[string]struct{}{
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {},
	"who": {}, "whom": {}, "whose": {}, "which": {},
	"can": {}, "could": {}, "do": {}, "does": {}, "did": {},
	"is": {}, "are": {}, "was": {}, "were": {},
	"should": {}, "would": {}, "will": {},
}

// navigationalMarkers flag queries aimed at a specific site or page.
var navigationalMarkers = map[string]struct{}{
	"www": {}, "http": {}, "https": {},
	"site": {}, "website": {}, "webpage": {}, "homepage": {},
	"url": {}, "login": {}, "portal": {},
}

// domainSuffixes catch bare domain tokens, which survive cleaning because
// periods are kept.
var domainSuffixes = []string{
	".com", ".org", ".net", ".io", ".gov", ".edu", ".dev",
}

// informationalKeywords flag queries seeking background material.
var informationalKeywords = map[string]struct{}{
	"about": {}, "info": {}, "information": {},
	"explain": {}, "explained": {}, "meaning": {}, "definition": {},
	"define": {}, "guide": {}, "tutorial": {}, "overview": {},
	"details": {}, "history": {}, "facts": {}, "tips": {},
	"examples": {}, "learn": {},
}

// transactionalKeywords flag queries with acquisition verbs.
var transactionalKeywords = map[string]struct{}{
	"buy": {}, "purchase": {}, "order": {}, "download": {},
	"subscribe": {}, "rent": {}, "sale": {}, "shop": {},
	"checkout": {}, "coupon": {}, "deal": {}, "deals": {},
	"discount": {}, "price": {}, "prices": {}, "pricing": {},
	"cheap": {},
}

// classifyIntent applies the marker tables in priority order. The
// question-mark check runs against the raw text because cleaning strips
// the question mark.
func classifyIntent(raw string, tokens []string) Intent {
	trimmed := strings.TrimSpace(raw)
	if strings.HasSuffix(trimmed, "?") {
		return IntentQuestion
	}
	if len(tokens) > 0 {
		if _, ok := interrogatives[tokens[0]]; ok {
			return IntentQuestion
		}
	}

	lowered := strings.ToLower(trimmed)
	if strings.Contains(lowered, "http://") || strings.Contains(lowered, "https://") ||
		strings.Contains(lowered, "www.") {
		return IntentNavigational
	}
	for _, tok := range tokens {
		if _, ok := navigationalMarkers[tok]; ok {
			return IntentNavigational
		}
		if hasDomainSuffix(tok) {
			return IntentNavigational
		}
	}

	for _, tok := range tokens {
		if _, ok := informationalKeywords[tok]; ok {
			return IntentInformational
		}
	}

	for _, tok := range tokens {
		if _, ok := transactionalKeywords[tok]; ok {
			return IntentTransactional
		}
	}

	return IntentGeneral
}

func hasDomainSuffix(token string) bool {
	for _, suffix := range domainSuffixes {
		if len(token) > len(suffix) && strings.HasSuffix(token, suffix) {
			return true
		}
	}
	return false
}
