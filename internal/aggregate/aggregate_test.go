package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rookie/internal/domain"
)

func asset(id string, price, change float64) domain.Asset {
	return domain.Asset{ID: id, Symbol: id, CurrentPrice: price, PriceChangePercent24h: change}
}

func ids(assets []domain.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.ID
	}
	return out
}

func equalIDs(t *testing.T, got []domain.Asset, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

func TestMergeFirstSeenWins(t *testing.T) {
	crypto := []domain.Asset{asset("bitcoin", 1, 0), asset("ethereum", 2, 0)}
	trending := []domain.Asset{asset("ethereum", 99, 0), asset("pepe", 3, 0)}

	merged := Merge(crypto, trending)
	equalIDs(t, merged, "bitcoin", "ethereum", "pepe")
	if merged[1].CurrentPrice != 2 {
		t.Errorf("ethereum price = %v, want the first-seen 2", merged[1].CurrentPrice)
	}

	again := Merge(merged, merged)
	equalIDs(t, again, "bitcoin", "ethereum", "pepe")

	if got := Merge(); len(got) != 0 {
		t.Errorf("Merge() = %v, want empty", got)
	}
}

func TestSnapshotMergedOrder(t *testing.T) {
	s := Snapshot{Datasets: map[string][]domain.Asset{
		DatasetCrypto:   {asset("bitcoin", 1, 0)},
		DatasetNasdaq:   {asset("AAPL", 1, 0)},
		DatasetTrending: {asset("pepe", 1, 0), asset("bitcoin", 5, 0)},
	}}
	search := []domain.Asset{asset("PLTR", 1, 0)}

	equalIDs(t, s.Merged(search), "bitcoin", "AAPL", "PLTR", "pepe")
	equalIDs(t, s.Searchable(), "bitcoin", "AAPL")
	if got := s.Get("missing"); got == nil || len(got) != 0 {
		t.Errorf("Get(missing) = %v, want empty non-nil", got)
	}
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func TestSort(t *testing.T) {
	in := []domain.Asset{
		{ID: "b", Symbol: "beta", CurrentPrice: 2, MarketCap: 10},
		{ID: "a", Symbol: "Alpha", CurrentPrice: 3, MarketCap: 10},
		{ID: "c", Symbol: "gamma", CurrentPrice: 1, MarketCap: 30},
	}

	equalIDs(t, Sort(in, SortName, Asc), "a", "b", "c")
	equalIDs(t, Sort(in, SortPrice, Desc), "a", "b", "c")
	equalIDs(t, Sort(in, SortPrice, Asc), "c", "b", "a")
	// Equal market caps keep input order.
	equalIDs(t, Sort(in, SortMcap, Asc), "b", "a", "c")
	equalIDs(t, Sort(in, SortNone, Asc), "b", "a", "c")

	if in[0].ID != "b" {
		t.Error("Sort modified its input")
	}
}

func TestParseSort(t *testing.T) {
	f, d, err := ParseSort("Price", "")
	if err != nil || f != SortPrice || d != Desc {
		t.Errorf("ParseSort(Price, \"\") = %q, %q, %v", f, d, err)
	}
	if _, _, err := ParseSort("volume", "asc"); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, _, err := ParseSort("name", "up"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestTopGainersAndWatchlist(t *testing.T) {
	in := []domain.Asset{asset("a", 1, 1), asset("b", 1, 9), asset("c", 1, -3), asset("d", 1, 4)}

	equalIDs(t, TopGainers(in, 2), "b", "d")
	equalIDs(t, TopGainers(in, 10), "b", "d", "a", "c")

	equalIDs(t, WatchlistAssets(in, []string{"c", "a", "unknown"}), "a", "c")
	if got := WatchlistAssets(in, nil); len(got) != 0 {
		t.Errorf("empty watchlist = %v", ids(got))
	}
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

type fakeTimer struct {
	s       *fakeScheduler
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records every timer the orchestrator arms.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) after(d time.Duration, f func()) timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	ft := &fakeTimer{s: s, d: d, f: f}
	s.timers = append(s.timers, ft)
	return ft
}

func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the single pending timer as if it had expired.
func (s *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	p := s.pending()
	if len(p) != 1 {
		t.Fatalf("pending timers = %d, want 1", len(p))
	}
	s.mu.Lock()
	p[0].stopped = true
	s.mu.Unlock()
	p[0].f()
}

func static(assets ...domain.Asset) Fetch {
	return func(context.Context) ([]domain.Asset, error) { return assets, nil }
}

func TestRefreshIsolatesFailures(t *testing.T) {
	fail := false
	datasets := []Dataset{
		{Name: DatasetCrypto, Fetch: static(asset("bitcoin", 1, 0))},
		{Name: DatasetNasdaq, Fetch: func(context.Context) ([]domain.Asset, error) {
			if fail {
				return []domain.Asset{}, errors.New("quota exceeded")
			}
			return []domain.Asset{asset("AAPL", 1, 0)}, nil
		}},
		{Name: DatasetTrending, Fetch: func(context.Context) ([]domain.Asset, error) {
			panic("bad payload")
		}},
	}
	o := New(datasets, 0, nil)

	snap, ok := o.Refresh(context.Background())
	if !ok {
		t.Fatal("first cycle not published")
	}
	equalIDs(t, snap.Get(DatasetCrypto), "bitcoin")
	equalIDs(t, snap.Get(DatasetNasdaq), "AAPL")
	if len(snap.Get(DatasetTrending)) != 0 {
		t.Error("panicking source produced data")
	}
	if snap.Errors[DatasetTrending] == "" {
		t.Error("panic not recorded as a source error")
	}

	fail = true
	snap, _ = o.Refresh(context.Background())
	equalIDs(t, snap.Get(DatasetNasdaq), "AAPL")
	if snap.Errors[DatasetNasdaq] == "" {
		t.Error("nasdaq failure not recorded")
	}
	if snap.Version != 2 {
		t.Errorf("Version = %d, want 2", snap.Version)
	}

	fail = false
	snap, _ = o.Refresh(context.Background())
	if _, ok := snap.Errors[DatasetNasdaq]; ok {
		t.Error("nasdaq error not cleared after recovery")
	}
}

func TestRefreshDiscardsStaleCycle(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var mu sync.Mutex
	calls := 0

	datasets := []Dataset{{Name: DatasetCrypto, Fetch: func(context.Context) ([]domain.Asset, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			entered <- struct{}{}
			<-release
			return []domain.Asset{asset("old", 1, 0)}, nil
		}
		return []domain.Asset{asset("new", 1, 0)}, nil
	}}}
	o := New(datasets, 0, nil)

	type result struct {
		snap Snapshot
		ok   bool
	}
	done := make(chan result)
	go func() {
		s, ok := o.Refresh(context.Background())
		done <- result{s, ok}
	}()
	<-entered

	if !o.Loading() {
		t.Error("Loading() = false during first cycle with no crypto data")
	}

	snap, ok := o.Refresh(context.Background())
	if !ok {
		t.Fatal("newer cycle not published")
	}
	equalIDs(t, snap.Get(DatasetCrypto), "new")

	close(release)
	stale := <-done
	if stale.ok {
		t.Error("stale cycle was published")
	}
	equalIDs(t, o.Snapshot().Get(DatasetCrypto), "new")
	if o.Loading() {
		t.Error("Loading() = true after a published cycle")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	o := New([]Dataset{{Name: DatasetCrypto, Fetch: static(asset("bitcoin", 1, 0))}}, 0, nil)
	id, ch := o.Subscribe(1)

	o.Refresh(context.Background())
	// Buffer is full; this one is dropped rather than blocking.
	o.Refresh(context.Background())

	snap := <-ch
	if snap.Cycle != 1 {
		t.Errorf("first delivered cycle = %d, want 1", snap.Cycle)
	}
	o.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("channel not closed after Unsubscribe")
	}
}

func TestSchedulerKeepsOnePendingTimer(t *testing.T) {
	var mu sync.Mutex
	cycles := 0
	o := New([]Dataset{{Name: DatasetCrypto, Fetch: func(context.Context) ([]domain.Asset, error) {
		mu.Lock()
		cycles++
		mu.Unlock()
		return []domain.Asset{asset("bitcoin", 1, 0)}, nil
	}}}, time.Minute, nil)
	sched := &fakeScheduler{}
	o.after = sched.after

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(runDone)
	}()

	waitFor(t, func() bool { return len(sched.pending()) == 1 })
	if d := sched.pending()[0].d; d != time.Minute {
		t.Errorf("first timer = %v, want 1m", d)
	}

	o.SetInterval(5 * time.Second)
	o.SetInterval(10 * time.Second)
	p := sched.pending()
	if len(p) != 1 || p[0].d != 10*time.Second {
		t.Fatalf("pending after SetInterval = %d timers, want one at 10s", len(p))
	}

	sched.fire(t)
	p = sched.pending()
	if len(p) != 1 || p[0].d != 10*time.Second {
		t.Fatalf("pending after tick = %d timers, want one re-armed at 10s", len(p))
	}
	mu.Lock()
	if cycles != 2 {
		t.Errorf("cycles = %d, want 2", cycles)
	}
	mu.Unlock()

	o.SetInterval(0)
	if len(sched.pending()) != 0 {
		t.Error("SetInterval(0) left a pending timer")
	}
	if o.Interval() != 0 {
		t.Errorf("Interval() = %v, want 0", o.Interval())
	}

	cancel()
	<-runDone
}

func TestSetIntervalDuringInitialLoad(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var mu sync.Mutex
	calls, active, maxActive := 0, 0, 0

	o := New([]Dataset{{Name: DatasetCrypto, Fetch: func(context.Context) ([]domain.Asset, error) {
		mu.Lock()
		calls++
		n := calls
		active++
		maxActive = max(maxActive, active)
		mu.Unlock()
		defer func() {
			mu.Lock()
			active--
			mu.Unlock()
		}()
		if n == 1 {
			entered <- struct{}{}
			<-release
		}
		return []domain.Asset{asset("bitcoin", 1, 0)}, nil
	}}}, time.Minute, nil)
	sched := &fakeScheduler{}
	o.after = sched.after

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)
	<-entered

	o.SetInterval(time.Second)
	if n := len(sched.pending()); n != 0 {
		t.Fatalf("pending timers during initial load = %d, want 0", n)
	}
	if o.Interval() != time.Second {
		t.Errorf("Interval() = %v, want 1s", o.Interval())
	}

	close(release)
	waitFor(t, func() bool { return len(sched.pending()) == 1 })
	if d := sched.pending()[0].d; d != time.Second {
		t.Errorf("timer after initial load = %v, want 1s", d)
	}
	if o.Snapshot().Cycle != 1 {
		t.Errorf("Cycle = %d, want the initial load published", o.Snapshot().Cycle)
	}

	sched.fire(t)
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 || maxActive != 1 {
		t.Errorf("calls = %d, max concurrent = %d, want 2 sequential cycles", calls, maxActive)
	}
}

func TestStaleTimerCallbackIgnored(t *testing.T) {
	var mu sync.Mutex
	cycles := 0
	o := New([]Dataset{{Name: DatasetCrypto, Fetch: func(context.Context) ([]domain.Asset, error) {
		mu.Lock()
		cycles++
		mu.Unlock()
		return nil, nil
	}}}, time.Minute, nil)
	sched := &fakeScheduler{}
	o.after = sched.after

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)
	waitFor(t, func() bool { return len(sched.pending()) == 1 })

	old := sched.pending()[0]
	o.SetInterval(time.Hour)
	// A timer that fired just before being stopped must not start a cycle.
	old.f()

	mu.Lock()
	defer mu.Unlock()
	if cycles != 1 {
		t.Errorf("cycles = %d, want 1", cycles)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}
