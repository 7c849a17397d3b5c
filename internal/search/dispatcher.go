package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/query"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// Dispatcher fans one query vector out across per-modality vector
// indexes, and in hybrid mode gathers a keyword list over text content in
// the same group. Every branch runs the same vector with the same
// threshold; a branch failure degrades to an empty list rather than
// failing the request.
type Dispatcher struct {
	indexes map[store.Modality]store.VectorIndex
	keyword store.KeywordIndex
	timeout time.Duration
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSearchTimeout bounds each branch's index call.
func WithSearchTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithDispatcherLogger sets the logger used for branch failures.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if logger != nil {
			disp.logger = logger
		}
	}
}

// NewDispatcher creates a Dispatcher over the given modality indexes.
// keyword may be nil when hybrid keyword search is disabled.
func NewDispatcher(indexes map[store.Modality]store.VectorIndex, keyword store.KeywordIndex, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		indexes: indexes,
		keyword: keyword,
		timeout: DefaultConfig().SearchTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchParams shapes one fan-out.
type DispatchParams struct {
	// Modalities to search. Requested modalities without an index are
	// recorded as failed.
	Modalities []store.Modality

	// Limit is the requested result count. Each branch fetches limit
	// candidates, doubled when the keyword list will also be fused, so
	// fusion has headroom beyond any single list.
	Limit int

	// Threshold is the shared minimum similarity.
	Threshold float64

	// Filters are explicit attribute predicates; the dispatcher merges in
	// predicates derived from the processed query's filter hints.
	Filters map[string][]string

	// Hybrid also gathers the keyword list when text is dispatched.
	Hybrid bool
}

// DispatchResult carries every gathered list plus the branches that
// failed. Within each list the index's descending-relevance order is
// preserved untouched.
type DispatchResult struct {
	// Lists holds one candidate list per requested modality. Failed
	// branches are present with an empty list.
	Lists map[store.Modality][]*store.Candidate

	// Keyword is the BM25 list gathered in hybrid mode, nil otherwise.
	Keyword []*store.Candidate

	// Failed names the modalities whose branch failed, in request order.
	// A failed keyword branch is recorded here as "keyword".
	Failed []string
}

// GatheredLists counts branches that produced a usable (possibly empty)
// list.
func (r *DispatchResult) GatheredLists() int {
	n := 0
	for m := range r.Lists {
		if !r.failedBranch(string(m)) {
			n++
		}
	}
	if r.Keyword != nil {
		n++
	}
	return n
}

func (r *DispatchResult) failedBranch(name string) bool {
	for _, f := range r.Failed {
		if f == name {
			return true
		}
	}
	return false
}

// Dispatch runs one vector search per requested modality concurrently,
// plus the keyword search when hybrid mode applies. Branch failures
// degrade to empty lists; only every requested modality failing is an
// error (keyword success alone cannot rescue a request whose semantic
// fan-out is fully down).
func (d *Dispatcher) Dispatch(ctx context.Context, vector []float32, pq *query.ProcessedQuery, params DispatchParams) (*DispatchResult, error) {
	modalities := narrowModalities(params.Modalities, pq)
	filters := mergeHintFilters(params.Filters, pq)

	fetchLimit := params.Limit
	hybrid := params.Hybrid && d.keyword != nil && hasModality(modalities, store.ModalityText)
	if hybrid {
		fetchLimit *= 2
	}

	result := &DispatchResult{
		Lists: make(map[store.Modality][]*store.Candidate, len(modalities)),
	}

	var (
		mu     sync.Mutex
		causes []error
	)
	fail := func(branch string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Failed = append(result.Failed, branch)
		causes = append(causes, mserrors.IndexUnavailable(branch, err))
		d.logger.Warn("modality_search_failed",
			slog.String("modality", branch),
			slog.String("error", err.Error()),
		)
	}

	// Every key is created before any branch goroutine starts; the
	// goroutines then only replace values under mu, never grow the map.
	for _, m := range modalities {
		result.Lists[m] = nil
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, m := range modalities {
		idx, ok := d.indexes[m]
		if !ok {
			fail(string(m), errors.New("no index registered"))
			continue
		}

		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()

			hits, err := idx.Search(sctx, vector, fetchLimit, params.Threshold, filters)
			if err != nil {
				fail(string(m), err)
				return nil
			}
			mu.Lock()
			result.Lists[m] = hits
			mu.Unlock()
			return nil
		})
	}

	if hybrid {
		keywordQuery := keywordQueryFor(pq)
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, d.timeout)
			defer cancel()

			hits, err := d.keyword.Search(sctx, keywordQuery, fetchLimit)
			if err != nil {
				fail(string(SourceKeyword), err)
				return nil
			}
			mu.Lock()
			if hits == nil {
				hits = []*store.Candidate{}
			}
			result.Keyword = hits
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Branches never return errors; only caller cancellation lands here.
		return nil, err
	}

	modalityFailures := 0
	for _, f := range result.Failed {
		if f != string(SourceKeyword) {
			modalityFailures++
		}
	}
	if len(modalities) > 0 && modalityFailures == len(modalities) {
		return nil, mserrors.RetrievalUnavailable(errors.Join(causes...))
	}

	return result, nil
}

// keywordQueryFor builds the BM25 query text: the corrected query plus
// synonym expansions. Expansion helps keyword matching bridge vocabulary
// gaps; the vector branches use the raw embedding instead, since the
// embedding model handles semantic similarity natively.
func keywordQueryFor(pq *query.ProcessedQuery) string {
	if len(pq.ExpandedTerms) == 0 {
		return pq.Corrected
	}
	return pq.Corrected + " " + strings.Join(pq.ExpandedTerms, " ")
}

// narrowModalities applies content-type hints from the query text. Hints
// narrow the fan-out only when the caller asked for the default full
// modality set; an explicit modality selection always wins.
func narrowModalities(requested []store.Modality, pq *query.ProcessedQuery) []store.Modality {
	if len(requested) != len(store.AllModalities) || len(pq.Filters.ContentTypes) == 0 {
		return requested
	}
	for i, m := range requested {
		if m != store.AllModalities[i] {
			return requested
		}
	}

	var narrowed []store.Modality
	for _, family := range pq.Filters.ContentTypes {
		var m store.Modality
		switch family {
		case "text":
			m = store.ModalityText
		case "image":
			m = store.ModalityImage
		case "video", "keyframe":
			m = store.ModalityVideo
		default:
			// Families with no backing index (e.g. audio) cannot narrow.
			return requested
		}
		if !hasModality(narrowed, m) {
			narrowed = append(narrowed, m)
		}
	}
	if len(narrowed) == 0 {
		return requested
	}
	return narrowed
}

// mergeHintFilters folds date hints into the explicit attribute filters.
// Only 4-digit years map onto an index attribute; month and weekday hints
// have no indexed counterpart and stay advisory.
func mergeHintFilters(explicit map[string][]string, pq *query.ProcessedQuery) map[string][]string {
	var years []string
	for _, d := range pq.Filters.Dates {
		if isYear(d) && !containsString(explicit["year"], d) && !containsString(years, d) {
			years = append(years, d)
		}
	}
	if len(years) == 0 {
		return explicit
	}

	merged := make(map[string][]string, len(explicit)+1)
	for k, v := range explicit {
		merged[k] = v
	}
	merged["year"] = append(append([]string(nil), explicit["year"]...), years...)
	return merged
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s >= "1900" && s <= "2099"
}

func hasModality(ms []store.Modality, m store.Modality) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
