// prefilter.go - candidate-reducing prefilters: a Bloom token filter for
// text match, a trigram filter for regex, and zone maps for range
// predicates. None of these change result semantics; each only narrows
// the candidate set before the exact predicate runs.

package aggo

import (
	"math"
	"strings"
	"unicode"

	"github.com/google/btree"
	"github.com/holiman/bloomfilter/v2"
	"github.com/spaolacci/murmur3"
)

// TokenBloomFilter is a fixed-width Bloom filter over lowercased,
// whitespace/punctuation-split tokens, sized so that a 256-byte filter
// targets <=1% false positives and a 512-byte filter targets <=0.1%,
// using murmur3 as the underlying hash.
type TokenBloomFilter struct {
	bits *bloomfilter.Filter
}

// NewTokenBloomFilter builds a filter of byteWidth bytes whose hash count
// is derived from that width and expectedTokens distinct tokens alone;
// falsePositiveRate is accepted but not used in the sizing.
func NewTokenBloomFilter(byteWidth int, falsePositiveRate float64, expectedTokens uint64) *TokenBloomFilter {
	if expectedTokens == 0 {
		expectedTokens = 1
	}
	bits := uint64(byteWidth) * 8
	k := optimalBloomK(bits, expectedTokens)
	f, _ := bloomfilter.New(bits, k)
	return &TokenBloomFilter{bits: f}
}

// optimalBloomK picks the hash-function count minimizing false-positive
// rate for m bits and n expected items: k = (m/n)*ln2, clamped to >=1.
func optimalBloomK(m, n uint64) uint64 {
	if n == 0 {
		n = 1
	}
	k := uint64(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	return k
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func tokenHash(tok string) bloomfilter.Hashable {
	return murmurHashable(murmur3.Sum64([]byte(tok)))
}

// murmurHashable adapts a precomputed uint64 to bloomfilter.Hashable.
type murmurHashable uint64

func (h murmurHashable) Hash() uint64 { return uint64(h) }

// AddText indexes every token of s into the filter.
func (f *TokenBloomFilter) AddText(s string) {
	for _, tok := range tokenize(s) {
		f.bits.Add(tokenHash(tok))
	}
}

// MayContainToken reports whether tok might have been added; false is
// authoritative (zero false negatives by construction), true requires the
// caller to confirm with the exact predicate.
func (f *TokenBloomFilter) MayContainToken(tok string) bool {
	return f.bits.Contains(tokenHash(strings.ToLower(tok)))
}

// MayContainAll reports whether every token of query might be present,
// i.e. whether this document is still a candidate for a text predicate
// requiring all of query's tokens.
func (f *TokenBloomFilter) MayContainAll(query string) bool {
	for _, tok := range tokenize(query) {
		if !f.MayContainToken(tok) {
			return false
		}
	}
	return true
}

// TrigramFilter extracts literal length->=3 substrings from a regular
// expression's pattern source and checks whether a candidate string could
// possibly match by requiring every extracted trigram to appear somewhere
// in the candidate. Patterns yielding no trigrams (e.g. "a.*" with no
// literal run of length 3) skip the prefilter entirely.
type TrigramFilter struct {
	trigrams []string
}

// NewTrigramFilter extracts trigrams from a regex pattern's literal runs,
// treating any of `.*+?[](){}|^$\` as a run boundary since those are the
// metacharacters that make a substring's presence non-literal.
func NewTrigramFilter(pattern string) *TrigramFilter {
	var runs []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 3 {
			runs = append(runs, cur.String())
		}
		cur.Reset()
	}
	for _, r := range pattern {
		if strings.ContainsRune(`.*+?[](){}|^$\`, r) {
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	var trigrams []string
	seen := make(map[string]bool)
	for _, run := range runs {
		for i := 0; i+3 <= len(run); i++ {
			tri := run[i : i+3]
			if !seen[tri] {
				seen[tri] = true
				trigrams = append(trigrams, tri)
			}
		}
	}
	return &TrigramFilter{trigrams: trigrams}
}

// MayMatch reports whether candidate could possibly match the filter's
// source regex; if the pattern produced no trigrams, every candidate is
// passed through (the prefilter is skipped, not a false "no match").
func (f *TrigramFilter) MayMatch(candidate string) bool {
	if len(f.trigrams) == 0 {
		return true
	}
	for _, tri := range f.trigrams {
		if !strings.Contains(candidate, tri) {
			return false
		}
	}
	return true
}

// zoneEntry is one chunk's min/max summary for a single field.
type zoneEntry struct {
	chunkStart int
	min, max   Value
	hasNull    bool
	kind       Kind
	updatedAt  uint64
}

func (e *zoneEntry) Less(other btree.Item) bool {
	return e.chunkStart < other.(*zoneEntry).chunkStart
}

// ZoneMap tracks per-chunk min/max for one field across a store's
// physical row ids, ordered by chunk start in a B-tree so a range
// predicate can prune chunks without scanning them.
type ZoneMap struct {
	field     string
	chunkSize int
	tree      *btree.BTree
	gen       uint64
}

// NewZoneMap builds an empty zone map for field with the given chunk size.
func NewZoneMap(field string, chunkSize int) *ZoneMap {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &ZoneMap{field: field, chunkSize: chunkSize, tree: btree.New(8)}
}

// Build scans store's live documents in physical-id order and records one
// zoneEntry per chunk.
func (z *ZoneMap) Build(store *Store) {
	z.tree = btree.New(8)
	z.gen++
	live := store.LiveSet()
	it := live.Iterator()
	var cur *zoneEntry
	count := 0
	flush := func() {
		if cur != nil {
			z.tree.ReplaceOrInsert(cur)
		}
	}
	for it.HasNext() {
		idx := it.Next()
		doc, ok := store.Get(PhysicalRowId(idx))
		if !ok {
			continue
		}
		if count%z.chunkSize == 0 {
			flush()
			cur = &zoneEntry{chunkStart: int(idx), updatedAt: z.gen}
		}
		v := resolvePath(doc.Root(), []string{z.field})
		if v.IsNullish() {
			cur.hasNull = true
		} else {
			cur.kind = v.Kind()
			if cur.min.IsMissing() || Compare(v, cur.min) < 0 {
				cur.min = v
			}
			if cur.max.IsMissing() || Compare(v, cur.max) > 0 {
				cur.max = v
			}
		}
		count++
	}
	flush()
}

// CandidateChunks returns the chunkStart values whose [min,max] range
// could satisfy a predicate of the given comparison against pivot; chunks
// not returned are guaranteed to contain no matching row.
func (z *ZoneMap) CandidateChunks(op string, pivot Value) []int {
	var out []int
	z.tree.Ascend(func(item btree.Item) bool {
		e := item.(*zoneEntry)
		if e.min.IsMissing() && e.max.IsMissing() {
			if e.hasNull {
				out = append(out, e.chunkStart)
			}
			return true
		}
		include := false
		switch op {
		case "$eq":
			include = Compare(pivot, e.min) >= 0 && Compare(pivot, e.max) <= 0
		case "$lt":
			include = Compare(e.min, pivot) < 0
		case "$lte":
			include = Compare(e.min, pivot) <= 0
		case "$gt":
			include = Compare(e.max, pivot) > 0
		case "$gte":
			include = Compare(e.max, pivot) >= 0
		default:
			include = true
		}
		if include {
			out = append(out, e.chunkStart)
		}
		return true
	})
	return out
}
