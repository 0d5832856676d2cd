// Package search resolves dashboard search queries against the loaded
// market datasets, falling back to a remote ticker lookup for symbols that
// are not tracked locally.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"rookie/internal/domain"
)

// DefaultDebounce is the quiet period after the last Update before a query
// is evaluated.
const DefaultDebounce = 500 * time.Millisecond

// Lookup fetches quotes for a comma-joined symbol list.
type Lookup interface {
	FetchQuotes(ctx context.Context, symbols string) ([]domain.Asset, error)
}

// Corpus returns the assets local matching runs over.
type Corpus func() []domain.Asset

// State is the published outcome of the latest evaluation. Active with no
// Results is the "no results" state.
type State struct {
	Query   string         `json:"query"`
	Results []domain.Asset `json:"results"`
	Active  bool           `json:"active"`
	Pending bool           `json:"pending"`
}

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }

// Resolver debounces query updates. Only the most recent query is ever
// evaluated; a newer Update cancels both the pending timer and any remote
// lookup still running for an older query.
type Resolver struct {
	lookup   Lookup
	corpus   Corpus
	debounce time.Duration
	after    afterFunc
	log      *slog.Logger

	mu      sync.Mutex
	gen     uint64
	pending timer
	cancel  context.CancelFunc
	state   State
}

// NewResolver creates a Resolver. A non-positive debounce selects
// DefaultDebounce.
func NewResolver(lookup Lookup, corpus Corpus, debounce time.Duration, logger *slog.Logger) *Resolver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		lookup:   lookup,
		corpus:   corpus,
		debounce: debounce,
		after:    realAfterFunc,
		log:      logger.With("component", "search"),
		state:    State{Results: []domain.Asset{}},
	}
}

// Update schedules evaluation of query after the debounce period. A blank
// query clears the search immediately.
func (r *Resolver) Update(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supersedeLocked()

	if strings.TrimSpace(query) == "" {
		r.state = State{Results: []domain.Asset{}}
		return
	}

	r.state.Query = query
	r.state.Active = true
	r.state.Pending = true
	gen := r.gen
	r.pending = r.after(r.debounce, func() { r.evaluate(gen, query) })
}

// Clear cancels any pending or running evaluation and leaves search.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supersedeLocked()
	r.state = State{Results: []domain.Asset{}}
}

// Rerun re-schedules the active query, for use after the datasets change.
// It does nothing when no search is active.
func (r *Resolver) Rerun() {
	r.mu.Lock()
	q, active := r.state.Query, r.state.Active
	r.mu.Unlock()
	if active {
		r.Update(q)
	}
}

// Results returns the latest published state.
func (r *Resolver) Results() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	s.Results = append([]domain.Asset(nil), s.Results...)
	return s
}

func (r *Resolver) supersedeLocked() {
	r.gen++
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Resolver) evaluate(gen uint64, query string) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.pending = nil
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	results := r.Evaluate(ctx, query)
	cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		r.log.Debug("discarding superseded search", "query", query)
		return
	}
	r.cancel = nil
	r.state = State{Query: query, Results: results, Active: true}
}

// Evaluate runs one query synchronously: local substring matching on symbol
// or name, then a remote lookup for ticker-like queries with no exact local
// symbol match.
func (r *Resolver) Evaluate(ctx context.Context, query string) []domain.Asset {
	if strings.TrimSpace(query) == "" {
		return []domain.Asset{}
	}
	lower := strings.ToLower(query)

	var corpus []domain.Asset
	if r.corpus != nil {
		corpus = r.corpus()
	}
	matches := make([]domain.Asset, 0)
	exact := false
	for _, a := range corpus {
		sym := strings.ToLower(a.Symbol)
		if strings.Contains(sym, lower) || strings.Contains(strings.ToLower(a.Name), lower) {
			matches = append(matches, a)
			if sym == lower {
				exact = true
			}
		}
	}

	if exact || !tickerLike(query) || r.lookup == nil {
		return matches
	}

	remote, err := r.lookup.FetchQuotes(ctx, strings.ToUpper(query))
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn("remote search lookup failed", "query", query, "error", err)
		}
		return matches
	}
	if len(remote) == 0 {
		return matches
	}
	for _, m := range matches {
		if m.Symbol == remote[0].Symbol {
			return matches
		}
	}
	return append(matches, remote[0])
}

// tickerLike reports whether query could be a ticker symbol: 2 to 6
// characters with no whitespace.
func tickerLike(query string) bool {
	n := len([]rune(query))
	if n < 2 || n > 6 {
		return false
	}
	return strings.IndexFunc(query, unicode.IsSpace) < 0
}
