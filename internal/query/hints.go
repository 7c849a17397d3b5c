package query

import "regexp"

// Filter-hint tables and patterns.

// yearPattern matches plausible 4-digit years.
var yearPattern = regexp.MustCompile(`^(19|20)\d{2}$`)

// slashDatePattern matches slash dates (12/25, 12/25/2024, 2024/12/25).
// It runs over the raw text: cleaning strips slashes, so slash dates are
// invisible in the token stream.
var slashDatePattern = regexp.MustCompile(`\b\d{1,4}/\d{1,2}(?:/\d{1,4})?\b`)

var monthNames = map[string]struct{}{
	"january": {}, "february": {}, "march": {}, "april": {},
	"may": {}, "june": {}, "july": {}, "august": {},
	"september": {}, "october": {}, "november": {}, "december": {},
}

var weekdayNames = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

// contentTypeFamilies maps keyword tokens to the content-type family they
// hint at. "audio" is detected even though no audio index exists yet; the
// dispatcher ignores hints it cannot honor.
var contentTypeFamilies = map[string]string{
	// image family
	"photo": "image", "photos": "image",
	"photograph": "image", "photographs": "image",
	"picture": "image", "pictures": "image",
	"pic": "image", "pics": "image",
	"image": "image", "images": "image",
	"screenshot": "image", "screenshots": "image",
	"selfie": "image", "portrait": "image",

	// video family
	"video": "video", "videos": "video",
	"clip": "video", "clips": "video",
	"movie": "video", "movies": "video",
	"film": "video", "films": "video",
	"footage": "video", "recording": "video", "recordings": "video",

	// text family
	"document": "text", "documents": "text",
	"doc": "text", "docs": "text",
	"note": "text", "notes": "text",
	"article": "text", "articles": "text",
	"text": "text", "pdf": "text", "pdfs": "text",
	"letter": "text", "report": "text", "essay": "text",

	// keyframe family
	"keyframe": "keyframe", "keyframes": "keyframe",
	"frame": "keyframe", "frames": "keyframe",
	"scene": "keyframe", "scenes": "keyframe",
	"thumbnail": "keyframe", "thumbnails": "keyframe",

	// audio family
	"audio": "audio", "sound": "audio",
	"song": "audio", "songs": "audio",
	"music": "audio", "podcast": "audio", "podcasts": "audio",
}

// extractFilterHints scans for date-like tokens and content-type keyword
// families. Both lists preserve first-appearance order and are
// deduplicated.
func extractFilterHints(raw string, tokens []string) FilterHints {
	var hints FilterHints

	seenDates := make(map[string]struct{})
	addDate := func(d string) {
		if _, dup := seenDates[d]; dup {
			return
		}
		seenDates[d] = struct{}{}
		hints.Dates = append(hints.Dates, d)
	}

	for _, match := range slashDatePattern.FindAllString(raw, -1) {
		addDate(match)
	}
	for _, tok := range tokens {
		if yearPattern.MatchString(tok) {
			addDate(tok)
			continue
		}
		if _, ok := monthNames[tok]; ok {
			addDate(tok)
			continue
		}
		if _, ok := weekdayNames[tok]; ok {
			addDate(tok)
		}
	}

	seenTypes := make(map[string]struct{})
	for _, tok := range tokens {
		family, ok := contentTypeFamilies[tok]
		if !ok {
			continue
		}
		if _, dup := seenTypes[family]; dup {
			continue
		}
		seenTypes[family] = struct{}{}
		hints.ContentTypes = append(hints.ContentTypes, family)
	}

	return hints
}
