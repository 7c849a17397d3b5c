package query

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon bundles the static tables the processor consults: misspelling
// corrections, stop words, and synonym expansions. A Lexicon is immutable
// after construction; overlays produce a new merged copy so an in-flight
// Process call never observes a half-updated table.
type Lexicon struct {
	misspellings map[string]string
	stopWords    map[string]struct{}
	synonyms     map[string][]string
}

// NewLexicon returns a Lexicon holding the built-in tables.
func NewLexicon() *Lexicon {
	stop := make(map[string]struct{}, len(builtinStopWords))
	for _, w := range builtinStopWords {
		stop[w] = struct{}{}
	}

	miss := make(map[string]string, len(builtinMisspellings))
	for k, v := range builtinMisspellings {
		miss[k] = v
	}

	syn := make(map[string][]string, len(builtinSynonyms))
	for k, v := range builtinSynonyms {
		syn[k] = v
	}

	return &Lexicon{
		misspellings: miss,
		stopWords:    stop,
		synonyms:     syn,
	}
}

// Correct returns the dictionary correction for token, or token unchanged.
func (l *Lexicon) Correct(token string) string {
	if fixed, ok := l.misspellings[token]; ok {
		return fixed
	}
	return token
}

// IsStopWord reports whether token is a stop word.
func (l *Lexicon) IsStopWord(token string) bool {
	_, ok := l.stopWords[token]
	return ok
}

// Synonyms returns the expansion terms for token, or nil.
func (l *Lexicon) Synonyms(token string) []string {
	return l.synonyms[token]
}

// Overlay is a user-supplied extension of the built-in tables, loaded from
// a YAML file. Misspelling entries override built-ins; stop words and
// synonyms are additive.
type Overlay struct {
	Misspellings map[string]string   `yaml:"misspellings"`
	StopWords    []string            `yaml:"stop_words"`
	Synonyms     map[string][]string `yaml:"synonyms"`
}

// LoadOverlay reads an Overlay from a YAML file.
func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon overlay %s: %w", path, err)
	}

	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon overlay %s: %w", path, err)
	}

	return &o, nil
}

// WithOverlay returns a new Lexicon with the overlay merged in. The
// receiver is left untouched.
func (l *Lexicon) WithOverlay(o *Overlay) *Lexicon {
	if o == nil {
		return l
	}

	merged := &Lexicon{
		misspellings: make(map[string]string, len(l.misspellings)+len(o.Misspellings)),
		stopWords:    make(map[string]struct{}, len(l.stopWords)+len(o.StopWords)),
		synonyms:     make(map[string][]string, len(l.synonyms)+len(o.Synonyms)),
	}

	for k, v := range l.misspellings {
		merged.misspellings[k] = v
	}
	for k, v := range o.Misspellings {
		merged.misspellings[k] = v
	}

	for w := range l.stopWords {
		merged.stopWords[w] = struct{}{}
	}
	for _, w := range o.StopWords {
		merged.stopWords[w] = struct{}{}
	}

	for k, v := range l.synonyms {
		merged.synonyms[k] = v
	}
	for k, extra := range o.Synonyms {
		existing := merged.synonyms[k]
		seen := make(map[string]struct{}, len(existing)+len(extra))
		combined := make([]string, 0, len(existing)+len(extra))
		for _, s := range existing {
			if _, dup := seen[s]; !dup {
				seen[s] = struct{}{}
				combined = append(combined, s)
			}
		}
		for _, s := range extra {
			if _, dup := seen[s]; !dup {
				seen[s] = struct{}{}
				combined = append(combined, s)
			}
		}
		merged.synonyms[k] = combined
	}

	return merged
}

// Sizes returns table cardinalities for logging.
func (l *Lexicon) Sizes() (misspellings, stopWords, synonyms int) {
	return len(l.misspellings), len(l.stopWords), len(l.synonyms)
}

// builtinMisspellings maps common misspellings to their corrections.
// Lookups are token-exact against cleaned, lowercased tokens.
var builtinMisspellings = map[string]string{
	"absense":      "absence",
	"accomodation": "accommodation",
	"acheive":      "achieve",
	"adress":       "address",
	"begining":     "beginning",
	"beleive":      "believe",
	"calender":     "calendar",
	"camra":        "camera",
	"definately":   "definitely",
	"docment":      "document",
	"documnet":     "document",
	"enviroment":   "environment",
	"excersize":    "exercise",
	"febuary":      "february",
	"foto":         "photo",
	"fotograph":    "photograph",
	"goverment":    "government",
	"grammer":      "grammar",
	"imge":         "image",
	"insurnce":     "insurance",
	"insurence":    "insurance",
	"libary":       "library",
	"lisence":      "license",
	"momento":      "memento",
	"neccessary":   "necessary",
	"occured":      "occurred",
	"pictre":       "picture",
	"pharoah":      "pharaoh",
	"recieve":      "receive",
	"reciept":      "receipt",
	"restaraunt":   "restaurant",
	"screnshot":    "screenshot",
	"seperate":     "separate",
	"serch":        "search",
	"succesful":    "successful",
	"teh":          "the",
	"tommorow":     "tomorrow",
	"truely":       "truly",
	"untill":       "until",
	"vacum":        "vacuum",
	"vehical":      "vehicle",
	"vidoe":        "video",
	"vido":         "video",
	"wierd":        "weird",
	"wich":         "which",
	"wendsday":     "wednesday",
	"wether":       "weather",
}

// builtinStopWords are removed when deriving content terms. Interrogatives
// stay out of this list's influence on intent: classification runs over the
// full token stream before stop words are dropped.
var builtinStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "been", "but", "by",
	"did", "do", "does", "for", "from", "had", "has", "have", "he",
	"her", "here", "his", "how", "i", "if", "in", "into", "is", "it",
	"its", "me", "my", "no", "not", "of", "on", "or", "our", "she",
	"so", "some", "than", "that", "the", "their", "them", "then",
	"there", "these", "they", "this", "those", "to", "too", "up", "us",
	"was", "we", "were", "what", "when", "where", "which", "who",
	"whom", "why", "will", "with", "would", "you", "your",
}

// builtinSynonyms maps content terms to expansion terms. Entries map user
// vocabulary to likely caption/transcript vocabulary; expansions feed the
// keyword list and never replace the original terms.
var builtinSynonyms = map[string][]string{
	// Vehicles
	"car":        {"automobile", "vehicle", "auto"},
	"automobile": {"car", "vehicle", "auto"},
	"vehicle":    {"car", "automobile", "auto"},
	"bike":       {"bicycle", "cycle"},
	"motorcycle": {"motorbike", "bike"},
	"truck":      {"lorry", "pickup"},
	"plane":      {"airplane", "aircraft", "flight"},

	// Media nouns
	"photo":      {"photograph", "picture", "image", "snapshot"},
	"photograph": {"photo", "picture", "image"},
	"picture":    {"photo", "image", "photograph"},
	"image":      {"picture", "photo", "photograph"},
	"screenshot": {"screen capture", "screengrab"},
	"video":      {"clip", "footage", "recording", "movie"},
	"movie":      {"film", "video"},
	"film":       {"movie", "video"},
	"clip":       {"video", "footage"},
	"document":   {"file", "text", "paper"},
	"note":       {"memo", "annotation"},
	"song":       {"track", "music", "audio"},
	"music":      {"song", "audio", "soundtrack"},

	// People and places
	"doctor":   {"physician", "medic"},
	"lawyer":   {"attorney", "counsel"},
	"house":    {"home", "residence"},
	"home":     {"house", "residence"},
	"beach":    {"shore", "seaside", "coast"},
	"mountain": {"peak", "summit"},
	"city":     {"town", "urban"},
	"dog":      {"puppy", "canine"},
	"cat":      {"kitten", "feline"},
	"kid":      {"child", "children"},
	"child":    {"kid", "children"},

	// Events
	"wedding":    {"marriage", "ceremony"},
	"birthday":   {"anniversary", "celebration"},
	"vacation":   {"holiday", "trip", "travel"},
	"trip":       {"journey", "travel", "vacation"},
	"party":      {"celebration", "gathering"},
	"graduation": {"commencement", "ceremony"},
	"concert":    {"show", "performance", "gig"},
	"game":       {"match", "competition"},

	// Qualities
	"big":       {"large", "huge"},
	"small":     {"little", "tiny"},
	"fast":      {"quick", "rapid"},
	"old":       {"vintage", "antique"},
	"new":       {"recent", "latest"},
	"beautiful": {"pretty", "scenic", "gorgeous"},
	"funny":     {"humorous", "comedy"},

	// Commerce
	"buy":      {"purchase", "order"},
	"purchase": {"buy", "order"},
	"cheap":    {"inexpensive", "affordable", "budget"},
	"price":    {"cost", "pricing"},

	// Misc
	"recipe":  {"cooking", "dish", "meal"},
	"weather": {"forecast", "climate"},
	"invoice": {"bill", "receipt"},
	"resume":  {"cv", "curriculum vitae"},
	"manual":  {"guide", "handbook", "instructions"},
}
