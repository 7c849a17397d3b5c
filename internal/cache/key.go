package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KeyParams collects everything that legitimately changes a search
// result. Two requests with equal params must produce equal keys, and
// anything that would alter the bundle (including an index rebuild)
// must land in here.
type KeyParams struct {
	Query      string
	Modalities []string
	Limit      int
	Threshold  float64
	Filters    map[string][]string
	Strategy   string
	Weights    map[string]float64
	Generation uint64
}

// Key renders params canonically (sorted modalities, sorted filter and
// weight keys, exact float formatting) and hashes the result, so map
// iteration order never leaks into cache identity.
func Key(p KeyParams) string {
	var b strings.Builder

	// Length-prefix the query: it is the only free-text field, and a
	// crafted query must not be able to impersonate other fields.
	fmt.Fprintf(&b, "q:%d=%s\n", len(p.Query), p.Query)

	mods := append([]string(nil), p.Modalities...)
	sort.Strings(mods)
	b.WriteString("m=" + strings.Join(mods, ",") + "\n")

	fmt.Fprintf(&b, "l=%d\n", p.Limit)
	b.WriteString("t=" + strconv.FormatFloat(p.Threshold, 'g', -1, 64) + "\n")

	fkeys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		fkeys = append(fkeys, k)
	}
	sort.Strings(fkeys)
	for _, k := range fkeys {
		vals := append([]string(nil), p.Filters[k]...)
		sort.Strings(vals)
		b.WriteString("f:" + k + "=" + strings.Join(vals, ",") + "\n")
	}

	b.WriteString("s=" + p.Strategy + "\n")

	wkeys := make([]string, 0, len(p.Weights))
	for k := range p.Weights {
		wkeys = append(wkeys, k)
	}
	sort.Strings(wkeys)
	for _, k := range wkeys {
		b.WriteString("w:" + k + "=" + strconv.FormatFloat(p.Weights[k], 'g', -1, 64) + "\n")
	}

	fmt.Fprintf(&b, "g=%d\n", p.Generation)

	sum := sha256.Sum256([]byte(b.String()))
	return "bundle:" + hex.EncodeToString(sum[:])
}
