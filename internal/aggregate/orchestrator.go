// Package aggregate runs refresh cycles over every market source and
// publishes the results as one consistent snapshot of named datasets.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rookie/internal/config"
	"rookie/internal/domain"
)

// Dataset names.
const (
	DatasetCrypto   = "crypto"
	DatasetNasdaq   = "nasdaq"
	DatasetNYSE     = "nyse"
	DatasetBIST     = "bist"
	DatasetPenny    = "penny"
	DatasetTrending = "trending"
)

// DatasetNames lists every dataset in merge priority order. Search results
// slot in between penny and trending; see Snapshot.Merged.
var DatasetNames = []string{DatasetCrypto, DatasetNasdaq, DatasetNYSE, DatasetBIST, DatasetPenny, DatasetTrending}

// Fetch loads one dataset.
type Fetch func(ctx context.Context) ([]domain.Asset, error)

// Dataset binds a name to its fetcher.
type Dataset struct {
	Name  string
	Fetch Fetch
}

// Source is the market client surface the standard datasets need.
type Source interface {
	FetchCrypto(ctx context.Context, ids string) ([]domain.Asset, error)
	FetchTrending(ctx context.Context) ([]domain.Asset, error)
	FetchQuotes(ctx context.Context, symbols string) ([]domain.Asset, error)
	FetchBIST(ctx context.Context) ([]domain.Asset, error)
}

// MarketDatasets returns the six standard datasets over src.
func MarketDatasets(src Source, m config.MarketsConfig) []Dataset {
	quotes := func(symbols string) Fetch {
		return func(ctx context.Context) ([]domain.Asset, error) { return src.FetchQuotes(ctx, symbols) }
	}
	return []Dataset{
		{Name: DatasetCrypto, Fetch: func(ctx context.Context) ([]domain.Asset, error) { return src.FetchCrypto(ctx, m.CryptoIDs) }},
		{Name: DatasetNasdaq, Fetch: quotes(m.Nasdaq)},
		{Name: DatasetNYSE, Fetch: quotes(m.NYSE)},
		{Name: DatasetBIST, Fetch: src.FetchBIST},
		{Name: DatasetPenny, Fetch: quotes(m.PennyStocks)},
		{Name: DatasetTrending, Fetch: src.FetchTrending},
	}
}

// Snapshot is an immutable view of every dataset as of one published cycle.
type Snapshot struct {
	Version   uint64                    `json:"version"`
	Cycle     uint64                    `json:"cycle"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Datasets  map[string][]domain.Asset `json:"datasets"`
	Errors    map[string]string         `json:"errors,omitempty"`
}

// Get returns a dataset, or an empty slice for unknown or unloaded names.
func (s Snapshot) Get(name string) []domain.Asset {
	if l, ok := s.Datasets[name]; ok {
		return l
	}
	return []domain.Asset{}
}

// Merged deduplicates every dataset in priority order: crypto, nasdaq,
// nyse, bist, penny, then extra (search results), then trending.
func (s Snapshot) Merged(extra ...[]domain.Asset) []domain.Asset {
	lists := [][]domain.Asset{
		s.Get(DatasetCrypto), s.Get(DatasetNasdaq), s.Get(DatasetNYSE),
		s.Get(DatasetBIST), s.Get(DatasetPenny),
	}
	lists = append(lists, extra...)
	lists = append(lists, s.Get(DatasetTrending))
	return Merge(lists...)
}

// Searchable is the deduplicated union of the datasets local search runs
// over. Trending coins are excluded.
func (s Snapshot) Searchable() []domain.Asset {
	return Merge(s.Get(DatasetCrypto), s.Get(DatasetNasdaq), s.Get(DatasetNYSE), s.Get(DatasetBIST), s.Get(DatasetPenny))
}

// timer is the subset of *time.Timer the scheduler needs.
type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }

// Orchestrator fans out one fetch per dataset on every refresh cycle.
// A failed or panicking source keeps its previous snapshot. When cycles
// overlap, only the most recently started one is published.
type Orchestrator struct {
	datasets []Dataset
	log      *slog.Logger
	after    afterFunc
	now      func() time.Time

	mu        sync.Mutex
	started   uint64
	published uint64
	version   uint64
	inFlight  int
	updatedAt time.Time
	data      map[string][]domain.Asset
	errs      map[string]string

	interval     time.Duration
	pending      timer
	timerGen     uint64
	cycleRunning bool // a scheduled or initial cycle is running
	runCtx       context.Context

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Snapshot
}

// New creates an Orchestrator over datasets. interval is the initial refresh
// interval; non-positive disables recurring refresh.
func New(datasets []Dataset, interval time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	data := make(map[string][]domain.Asset, len(datasets))
	for _, d := range datasets {
		data[d.Name] = []domain.Asset{}
	}
	return &Orchestrator{
		datasets: datasets,
		log:      logger.With("component", "orchestrator"),
		after:    realAfterFunc,
		now:      time.Now,
		data:     data,
		errs:     make(map[string]string),
		interval: interval,
		subs:     make(map[int]chan Snapshot),
	}
}

// Snapshot returns the latest published snapshot.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	errs := make(map[string]string, len(o.errs))
	for k, v := range o.errs {
		errs[k] = v
	}
	return Snapshot{
		Version:   o.version,
		Cycle:     o.published,
		UpdatedAt: o.updatedAt,
		Datasets:  o.data,
		Errors:    errs,
	}
}

// Loading reports whether the first cycle is still running with no crypto
// data yet.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.published == 0 && o.inFlight > 0 && len(o.data[DatasetCrypto]) == 0
}

// Interval returns the current refresh interval.
func (o *Orchestrator) Interval() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.interval
}

type fetchResult struct {
	assets []domain.Asset
	err    error
}

// Refresh runs one cycle and waits for every source to settle. The boolean
// reports whether the cycle was published; it is false when a newer cycle
// started in the meantime.
func (o *Orchestrator) Refresh(ctx context.Context) (Snapshot, bool) {
	o.mu.Lock()
	o.started++
	n := o.started
	o.inFlight++
	o.mu.Unlock()

	start := time.Now()
	results := make([]fetchResult, len(o.datasets))
	var wg sync.WaitGroup
	for i, d := range o.datasets {
		wg.Add(1)
		go func(i int, d Dataset) {
			defer wg.Done()
			results[i] = o.fetchOne(ctx, d)
		}(i, d)
	}
	wg.Wait()

	o.mu.Lock()
	o.inFlight--
	if n < o.started {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		o.log.Info("discarding stale cycle", "cycle", n, "latest", snap.Cycle)
		return snap, false
	}

	data := make(map[string][]domain.Asset, len(o.data))
	for k, v := range o.data {
		data[k] = v
	}
	failed := 0
	for i, d := range o.datasets {
		r := results[i]
		if r.err != nil {
			failed++
			o.errs[d.Name] = r.err.Error()
			continue
		}
		delete(o.errs, d.Name)
		data[d.Name] = r.assets
	}
	o.data = data
	o.version++
	o.published = n
	o.updatedAt = o.now()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.log.Info("refresh cycle published",
		"cycle", n,
		"failed_sources", failed,
		"crypto", len(snap.Get(DatasetCrypto)),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	o.broadcast(snap)
	return snap, true
}

// fetchOne calls one source inside its own failure boundary.
func (o *Orchestrator) fetchOne(ctx context.Context, d Dataset) (res fetchResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("source panicked", "dataset", d.Name, "panic", r)
			res = fetchResult{err: fmt.Errorf("%s: panic: %v", d.Name, r)}
		}
	}()
	assets, err := d.Fetch(ctx)
	if err != nil {
		return fetchResult{err: fmt.Errorf("%s: %w", d.Name, err)}
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	return fetchResult{assets: assets}
}

// Run performs the initial load, then refreshes every interval until ctx is
// done. The interval may be changed at any time with SetInterval.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	o.runCtx = ctx
	o.cycleRunning = true
	o.mu.Unlock()

	o.Refresh(ctx)

	o.mu.Lock()
	o.cycleRunning = false
	if o.pending == nil && o.interval > 0 && ctx.Err() == nil {
		o.scheduleLocked()
	}
	o.mu.Unlock()

	<-ctx.Done()

	o.mu.Lock()
	o.stopTimerLocked()
	o.runCtx = nil
	o.mu.Unlock()
	return nil
}

// SetInterval cancels any pending refresh and, when d is positive, schedules
// the next one d from now. While the initial load or a timed cycle is
// running only the interval is recorded; the timer is armed when that
// cycle completes.
func (o *Orchestrator) SetInterval(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTimerLocked()
	o.interval = d
	if d > 0 && o.runCtx != nil && !o.cycleRunning {
		o.scheduleLocked()
	}
	o.log.Info("refresh interval changed", "interval", d)
}

func (o *Orchestrator) stopTimerLocked() {
	if o.pending != nil {
		o.pending.Stop()
		o.pending = nil
	}
	o.timerGen++
}

func (o *Orchestrator) scheduleLocked() {
	gen := o.timerGen
	o.pending = o.after(o.interval, func() { o.tick(gen) })
}

func (o *Orchestrator) tick(gen uint64) {
	o.mu.Lock()
	ctx := o.runCtx
	if gen != o.timerGen || ctx == nil || ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	o.pending = nil
	o.cycleRunning = true
	o.mu.Unlock()

	o.Refresh(ctx)

	o.mu.Lock()
	o.cycleRunning = false
	if o.pending == nil && o.interval > 0 && o.runCtx != nil && o.runCtx.Err() == nil {
		o.scheduleLocked()
	}
	o.mu.Unlock()
}

// Subscribe returns a channel that receives every published snapshot.
// bufSize controls the channel buffer; slow consumers will have snapshots
// dropped.
func (o *Orchestrator) Subscribe(bufSize int) (int, <-chan Snapshot) {
	ch := make(chan Snapshot, bufSize)
	o.subsMu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subs[id] = ch
	o.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (o *Orchestrator) Unsubscribe(id int) {
	o.subsMu.Lock()
	if ch, ok := o.subs[id]; ok {
		delete(o.subs, id)
		close(ch)
	}
	o.subsMu.Unlock()
}

func (o *Orchestrator) broadcast(s Snapshot) {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
