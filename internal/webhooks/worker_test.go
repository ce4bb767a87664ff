package webhooks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"go.uber.org/zap"
)

type MockPoster struct {
	mu    sync.Mutex
	calls int
	code  int
	err   error
}

func (m *MockPoster) Send(ctx context.Context, url, secret, event string, payload []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.code, m.err
}

type MockDeliveryStore struct {
	mu        sync.Mutex
	succeeded []repo.MarkDeliverySucceededParams
	failed    []repo.MarkDeliveryFailedParams
}

func (m *MockDeliveryStore) MarkDeliverySucceeded(ctx context.Context, arg repo.MarkDeliverySucceededParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.succeeded = append(m.succeeded, arg)
	return nil
}

func (m *MockDeliveryStore) MarkDeliveryFailed(ctx context.Context, arg repo.MarkDeliveryFailedParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, arg)
	return nil
}

func startPool(t *testing.T, poster *MockPoster, store *MockDeliveryStore, maxAttempts int) *WorkerPool {
	t.Helper()
	wp := NewWorkerPool(poster, store, zap.NewNop(), WorkerPoolConfig{NumWorkers: 2, QueueSize: 10, MaxAttempts: maxAttempts})
	if err := wp.Start(); err != nil {
		t.Fatalf("failed to start pool: %v", err)
	}
	t.Cleanup(func() { wp.Stop() })
	return wp
}

func TestWorkerPool_Success(t *testing.T) {
	store := &MockDeliveryStore{}
	wp := startPool(t, &MockPoster{code: 200}, store, 6)

	result, err := wp.SubmitAndWait(context.Background(), DeliveryJob{DeliveryID: parser.NewPgUUID(), Event: "e"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Delivered || result.StatusCode != 200 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(store.succeeded) != 1 || store.succeeded[0].ResponseCode.Int32 != 200 {
		t.Errorf("success not recorded: %+v", store.succeeded)
	}
}

func TestWorkerPool_FailureSchedulesRetry(t *testing.T) {
	store := &MockDeliveryStore{}
	wp := startPool(t, &MockPoster{code: 503, err: errors.New(strings.Repeat("e", 900))}, store, 6)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	wp.now = func() time.Time { return now }

	result, err := wp.SubmitAndWait(context.Background(), DeliveryJob{DeliveryID: parser.NewPgUUID(), Attempts: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Delivered {
		t.Fatal("expected failed delivery")
	}

	if len(store.failed) != 1 {
		t.Fatalf("failure not recorded")
	}
	f := store.failed[0]
	if f.Status != DeliveryPending {
		t.Errorf("status = %q, want pending", f.Status)
	}
	if !f.NextAttemptAt.Valid || f.NextAttemptAt.Time.Sub(now) != 5*time.Minute {
		t.Errorf("next attempt = %v, want +5m", f.NextAttemptAt.Time)
	}
	if len(f.LastError.String) != maxErrorLength {
		t.Errorf("last error length = %d", len(f.LastError.String))
	}
	if f.ResponseCode.Int32 != 503 {
		t.Errorf("response code = %d", f.ResponseCode.Int32)
	}
}

func TestWorkerPool_MaxAttemptsMarksFailed(t *testing.T) {
	store := &MockDeliveryStore{}
	wp := startPool(t, &MockPoster{err: errors.New("connection refused")}, store, 3)

	if _, err := wp.SubmitAndWait(context.Background(), DeliveryJob{DeliveryID: parser.NewPgUUID(), Attempts: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := store.failed[0]
	if f.Status != DeliveryFailed || f.NextAttemptAt.Valid {
		t.Errorf("expected terminal failure, got %+v", f)
	}
	if f.ResponseCode.Valid {
		t.Error("no response code expected for transport errors")
	}
}

func TestWorkerPool_SubmitBatch(t *testing.T) {
	store := &MockDeliveryStore{}
	wp := startPool(t, &MockPoster{code: 204}, store, 6)

	jobs := []DeliveryJob{
		{DeliveryID: parser.NewPgUUID()},
		{DeliveryID: parser.NewPgUUID()},
		{DeliveryID: parser.NewPgUUID()},
	}
	results, skipped, err := wp.SubmitBatch(context.Background(), jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d", skipped)
	}

	count := 0
	for r := range results {
		if !r.Delivered {
			t.Errorf("unexpected failure: %+v", r)
		}
		count++
	}
	if count != 3 {
		t.Errorf("got %d results, want 3", count)
	}
}

func TestWorkerPool_NotRunning(t *testing.T) {
	wp := NewWorkerPool(&MockPoster{}, &MockDeliveryStore{}, zap.NewNop(), WorkerPoolConfig{})
	if err := wp.Submit(DeliveryJob{DeliveryID: parser.NewPgUUID()}); !errors.Is(err, ErrPoolNotRunning) {
		t.Errorf("expected ErrPoolNotRunning, got %v", err)
	}
}
