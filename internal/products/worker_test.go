package products

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// MockCollector returns a fixed price per URL and fails for unknown ones.
type MockCollector struct {
	mu      sync.Mutex
	prices  map[string]int64
	started bool
	stopped bool
	block   chan struct{}
}

func (m *MockCollector) Start() error {
	m.started = true
	return nil
}

func (m *MockCollector) Stop() error {
	m.stopped = true
	return nil
}

func (m *MockCollector) Collect(ctx context.Context, url string) (*CrawledData, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.prices[url]
	if !ok {
		return nil, ErrNoPrice
	}
	return &CrawledData{Title: url, PriceCents: price}, nil
}

func startPool(t *testing.T, collector *MockCollector, store Store, cfg WorkerPoolConfig) *WorkerPool {
	t.Helper()
	pool := NewWorkerPool(collector, store, zap.NewNop(), cfg)
	if err := pool.Start(); err != nil {
		t.Fatalf("failed to start pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop() })
	return pool
}

func TestWorkerPool_SubmitAndWait(t *testing.T) {
	collector := &MockCollector{prices: map[string]int64{"https://a.com/1": 1000}}
	pool := startPool(t, collector, newMockStore(), WorkerPoolConfig{NumWorkers: 2})

	data, err := pool.SubmitAndWait(context.Background(), CrawlerJob{URL: "https://a.com/1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.PriceCents != 1000 {
		t.Errorf("price = %d", data.PriceCents)
	}

	if _, err := pool.SubmitAndWait(context.Background(), CrawlerJob{URL: "https://a.com/missing"}); !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice, got %v", err)
	}
}

func TestWorkerPool_SubmitAndWaitTimeout(t *testing.T) {
	collector := &MockCollector{block: make(chan struct{})}
	pool := startPool(t, collector, newMockStore(), WorkerPoolConfig{NumWorkers: 1})
	defer close(collector.block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := pool.SubmitAndWait(ctx, CrawlerJob{URL: "https://a.com/1"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkerPool_SubmitBatch(t *testing.T) {
	collector := &MockCollector{prices: map[string]int64{
		"https://a.com/1": 1000,
		"https://a.com/2": 2000,
	}}
	pool := startPool(t, collector, newMockStore(), WorkerPoolConfig{NumWorkers: 3})

	jobs := []CrawlerJob{{URL: "https://a.com/1"}, {URL: "https://a.com/2"}, {URL: "https://a.com/3"}}
	results, err := pool.SubmitBatch(context.Background(), jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[string]int64{}
	failed := 0
	for r := range results {
		if r.Error != nil {
			failed++
			continue
		}
		got[r.Job.URL] = r.Data.PriceCents
	}
	if failed != 1 || got["https://a.com/1"] != 1000 || got["https://a.com/2"] != 2000 {
		t.Errorf("unexpected results: %v failed=%d", got, failed)
	}
}

func TestWorkerPool_SubmitBatchLargerThanQueue(t *testing.T) {
	prices := map[string]int64{}
	var jobs []CrawlerJob
	for i := 0; i < 25; i++ {
		url := fmt.Sprintf("https://loja.com.br/p/%d", i)
		prices[url] = int64(1000 + i)
		jobs = append(jobs, CrawlerJob{URL: url})
	}
	pool := startPool(t, &MockCollector{prices: prices}, newMockStore(), WorkerPoolConfig{NumWorkers: 2, QueueSize: 4})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := pool.SubmitBatch(ctx, jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := 0
	for r := range results {
		if r.Error != nil {
			t.Errorf("unexpected error for %s: %v", r.Job.URL, r.Error)
			continue
		}
		if r.Data.PriceCents != prices[r.Job.URL] {
			t.Errorf("price for %s = %d", r.Job.URL, r.Data.PriceCents)
		}
		got++
	}
	if got != len(jobs) {
		t.Errorf("expected %d results, got %d", len(jobs), got)
	}
}

func TestWorkerPool_SubmitBatchCancelledWhileQueueFull(t *testing.T) {
	collector := &MockCollector{block: make(chan struct{})}
	pool := startPool(t, collector, newMockStore(), WorkerPoolConfig{NumWorkers: 1, QueueSize: 1})
	defer close(collector.block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	jobs := []CrawlerJob{{URL: "https://a.com/1"}, {URL: "https://a.com/2"}, {URL: "https://a.com/3"}}
	if _, err := pool.SubmitBatch(ctx, jobs); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkerPool_SubmitSavesResult(t *testing.T) {
	product := testProduct(2000)
	store := newMockStore(product)
	collector := &MockCollector{prices: map[string]int64{product.Url: 1500}}
	pool := startPool(t, collector, store, WorkerPoolConfig{NumWorkers: 1})

	if err := pool.Submit(CrawlerJob{ProductID: product.ID, URL: product.Url}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		saved := len(store.snapshots)
		store.mu.Unlock()
		if saved == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("async result was not saved")
}

func TestWorkerPool_NotRunning(t *testing.T) {
	pool := NewWorkerPool(&MockCollector{}, newMockStore(), zap.NewNop(), WorkerPoolConfig{})
	if err := pool.Submit(CrawlerJob{URL: "https://a.com"}); !errors.Is(err, ErrPoolNotRunning) {
		t.Errorf("expected ErrPoolNotRunning, got %v", err)
	}
}

func TestWorkerPool_StopStopsCollector(t *testing.T) {
	collector := &MockCollector{}
	pool := NewWorkerPool(collector, newMockStore(), zap.NewNop(), WorkerPoolConfig{NumWorkers: 2})
	if err := pool.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pool.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !collector.started || !collector.stopped {
		t.Error("collector lifecycle not driven by the pool")
	}
}
