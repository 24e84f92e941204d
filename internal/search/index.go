// Package search provides a small, deterministic, concurrency-safe in-memory
// ranking index over content documents. It is used to order search hits by
// relevance after the database has selected the matching rows.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Unicode-aware tokenization with case folding and optional stop-words
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring: ties keep the input order
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|. A document's title tokens
// are weighted by also counting a bonus when the query hits the title.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Document is one rankable item.
type Document struct {
	ID    string
	Title string
	Body  string
}

// Result is a ranked document id with its similarity score.
type Result struct {
	ID    string
	Score float64
}

// Index ranks the documents it was built from.
type Index interface {
	// TopK returns up to k documents with a positive score, best first.
	TopK(query string, k int) []Result
	// Rank returns every document, best first; documents without any
	// overlap keep their input order after the scored ones.
	Rank(query string) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minDocRunes int
	stopwords   map[string]struct{}
	maxDocs     int
	titleBoost  float64
}

func defaultConfig() config {
	return config{
		minDocRunes: 0,
		stopwords:   nil,
		maxDocs:     0,
		titleBoost:  0.25,
	}
}

// WithMinDocRunes skips documents whose text is shorter than n runes.
func WithMinDocRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minDocRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = Fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithTitleBoost sets the score added per unit of title overlap ratio.
func WithTitleBoost(b float64) Option {
	return func(c *config) {
		if b >= 0 {
			c.titleBoost = b
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	tokens map[string]struct{}
	title  map[string]struct{}
	tLen   int
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index from docs. Title and body are reduced to plain
// text before tokenizing.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return buildIndex(docs, cfg)
}

func buildIndex(in []Document, cfg config) *index {
	docs := make([]doc, 0, len(in))
	for _, d := range in {
		title := PlainText(d.Title)
		text := strings.TrimSpace(title + " " + PlainText(d.Body))
		if text == "" {
			continue
		}
		if cfg.minDocRunes > 0 && utf8.RuneCountInString(text) < cfg.minDocRunes {
			continue
		}
		toks := tokenize(text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{id: d.ID, tokens: toks, title: tokenize(title, cfg.stopwords), tLen: len(toks)})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

type scored struct {
	id    string
	score float64
	pos   int
}

func (i *index) score(q string) []scored {
	out := make([]scored, len(i.docs))
	qTokens := tokenize(q, i.cfg.stopwords)
	qLen := len(qTokens)
	for n, d := range i.docs {
		out[n] = scored{id: d.id, pos: n}
		if qLen == 0 {
			continue
		}
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		s := float64(over) / union
		if hit := overlap(qTokens, d.title); hit > 0 {
			s += i.cfg.titleBoost * float64(hit) / float64(qLen)
		}
		out[n].score = s
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].score != out[b].score {
			return out[a].score > out[b].score
		}
		return out[a].pos < out[b].pos
	})
	return out
}

// Rank returns all documents ordered by score.
func (i *index) Rank(q string) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	all := i.score(q)
	out := make([]Result, len(all))
	for n, s := range all {
		out[n] = Result{ID: s.id, Score: s.score}
	}
	return out
}

// TopK returns up to k best-matching documents by Jaccard similarity.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	out := make([]Result, 0, min(k, len(i.docs)))
	for _, s := range i.score(q) {
		if s.score <= 0 || len(out) == k {
			break
		}
		out = append(out, Result{ID: s.id, Score: s.score})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(Fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
