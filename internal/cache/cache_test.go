package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bankfees/internal/core"
	"bankfees/internal/metrics"
	"bankfees/internal/source"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRUExpiryAndEviction(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	c := NewLRUCache[int](2, time.Minute)
	c.now = clk.now

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3) // evicts b, the least recently used
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a: %v %v", v, ok)
	}

	clk.t = clk.t.Add(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired at exactly ttl")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry cleaned, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

func TestLRUOverwriteDeleteClear(t *testing.T) {
	c := NewLRUCache[string](0, time.Minute)
	c.Set("k", "v1")
	c.Set("k", "v2")
	if v, _ := c.Get("k"); v != "v2" || c.Size() != 1 {
		t.Fatalf("overwrite failed: %q size=%d", v, c.Size())
	}
	c.Set("other", "x")
	if c.Size() != 1 {
		t.Fatalf("size 0 should be treated as 1, got %d", c.Size())
	}
	c.Delete("other")
	c.Set("a", "1")
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("clear failed")
	}
}

func TestManagerSweepAndStop(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](4, time.Second)
	c.now = clk.now
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager(nil)
	m.Register(c)
	clk.t = clk.t.Add(2 * time.Second)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}

	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()

	NewManager(nil).Stop()
}

type fakeSource struct {
	mu      sync.Mutex
	banks   []core.Bank
	err     error
	lists   int32
	gets    int32
	release chan struct{}
	started chan struct{}
}

func (f *fakeSource) ListBanks(ctx context.Context) ([]core.Bank, error) {
	if atomic.AddInt32(&f.lists, 1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.Bank(nil), f.banks...), nil
}

func (f *fakeSource) GetBank(ctx context.Context, id string) (core.Bank, error) {
	atomic.AddInt32(&f.gets, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return core.Bank{}, f.err
	}
	for _, b := range f.banks {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Bank{}, core.ErrBankNotFound
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func testBanks() []core.Bank {
	return []core.Bank{
		{ID: "brac", Name: "BRAC Bank", AccountTypes: []core.AccountFees{{Type: core.Savings, MinimumBalance: 5000}}},
		{ID: "ibbl", Name: "Islami Bank"},
	}
}

func TestCachedSourceListHitsCache(t *testing.T) {
	up := &fakeSource{banks: testBanks()}
	cs := NewCachedSource(up, Options{Metrics: metrics.New("test")})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		banks, err := cs.ListBanks(ctx)
		if err != nil || len(banks) != 2 {
			t.Fatalf("list %d: %v %v", i, banks, err)
		}
		banks[0] = core.Bank{}
	}
	if up.lists != 1 {
		t.Fatalf("expected one upstream call, got %d", up.lists)
	}
	banks, _ := cs.ListBanks(ctx)
	if banks[0].ID != "brac" {
		t.Fatalf("callers must not be able to corrupt the cached list")
	}

	b, err := cs.GetBank(ctx, "ibbl")
	if err != nil || b.Name != "Islami Bank" {
		t.Fatalf("get: %+v %v", b, err)
	}
	if up.gets != 0 {
		t.Fatalf("get should be served from the cached list, upstream gets=%d", up.gets)
	}
}

func TestCachedSourceDoesNotCacheFailures(t *testing.T) {
	up := &fakeSource{banks: testBanks()}
	fetchErr := source.Fetch("remote", "list", errors.New("boom"))
	up.setErr(fetchErr)
	cs := NewCachedSource(up, Options{})
	ctx := context.Background()

	if _, err := cs.ListBanks(ctx); !source.IsFetchFailure(err) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	up.setErr(nil)
	banks, err := cs.ListBanks(ctx)
	if err != nil || len(banks) != 2 {
		t.Fatalf("recovery: %v %v", banks, err)
	}
	if up.lists != 2 {
		t.Fatalf("expected the failure to be retried upstream, calls=%d", up.lists)
	}
}

func TestCachedSourceGetBank(t *testing.T) {
	up := &fakeSource{banks: testBanks()}
	cs := NewCachedSource(up, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cs.GetBank(ctx, "brac"); err != nil {
			t.Fatal(err)
		}
	}
	if up.gets != 1 {
		t.Fatalf("expected one upstream get, got %d", up.gets)
	}

	for i := 0; i < 2; i++ {
		if _, err := cs.GetBank(ctx, "missing"); !errors.Is(err, core.ErrBankNotFound) {
			t.Fatalf("expected ErrBankNotFound, got %v", err)
		}
	}
	if up.gets != 3 {
		t.Fatalf("not-found must not be cached, upstream gets=%d", up.gets)
	}
	if _, err := cs.GetBank(ctx, "  "); !errors.Is(err, core.ErrBankNotFound) {
		t.Fatalf("blank id: %v", err)
	}
}

func TestCachedSourceSingleFlight(t *testing.T) {
	up := &fakeSource{banks: testBanks(), release: make(chan struct{}), started: make(chan struct{})}
	cs := NewCachedSource(up, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cs.ListBanks(context.Background()); err != nil {
				t.Errorf("list: %v", err)
			}
		}()
	}
	<-up.started
	time.Sleep(50 * time.Millisecond)
	close(up.release)
	wg.Wait()

	if got := atomic.LoadInt32(&up.lists); got != 1 {
		t.Fatalf("concurrent misses should share one upstream call, got %d", got)
	}
}

func TestCachedSourceSharedFetchSurvivesCallerCancel(t *testing.T) {
	up := &fakeSource{banks: testBanks(), release: make(chan struct{}), started: make(chan struct{})}
	cs := NewCachedSource(up, Options{})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cs.ListBanks(first)
		firstErr <- err
	}()
	<-up.started

	type result struct {
		banks []core.Bank
		err   error
	}
	second := make(chan result, 1)
	go func() {
		banks, err := cs.ListBanks(context.Background())
		second <- result{banks, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: got %v, want context.Canceled", err)
	}

	close(up.release)
	res := <-second
	if res.err != nil || len(res.banks) != 2 {
		t.Fatalf("live caller should get the shared result: %v %v", res.banks, res.err)
	}
	if got := atomic.LoadInt32(&up.lists); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}
	// the detached fetch still filled the cache
	if _, err := cs.ListBanks(context.Background()); err != nil || atomic.LoadInt32(&up.lists) != 1 {
		t.Fatalf("expected a cache hit after the shared fetch, err=%v", err)
	}
}

func TestCachedSourceInvalidate(t *testing.T) {
	up := &fakeSource{banks: testBanks()}
	cs := NewCachedSource(up, Options{})
	ctx := context.Background()

	_, _ = cs.ListBanks(ctx)
	_, _ = cs.GetBank(ctx, "brac")
	if err := cs.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	_, _ = cs.ListBanks(ctx)
	if up.lists != 2 {
		t.Fatalf("invalidate should force a refetch, calls=%d", up.lists)
	}
	for _, c := range cs.Cleaners() {
		if c.CleanExpired() != 0 {
			t.Fatalf("nothing should be expired yet")
		}
	}
}

func TestCachedSourceUnreachableRedisFallsBack(t *testing.T) {
	layer, err := NewRedisLayer(context.Background(), RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	if err == nil {
		t.Skip("something is listening on 127.0.0.1:1")
	}
	defer layer.Close()

	up := &fakeSource{banks: testBanks()}
	cs := NewCachedSource(up, Options{Redis: layer})
	banks, err := cs.ListBanks(context.Background())
	if err != nil || len(banks) != 2 {
		t.Fatalf("expected upstream result despite redis being down: %v %v", banks, err)
	}
	if err := cs.Invalidate(context.Background()); err == nil {
		t.Fatalf("expected redis flush error")
	}
	if _, err := NewRedisLayer(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
