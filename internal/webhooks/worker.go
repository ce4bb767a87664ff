package webhooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const maxErrorLength = 500

var (
	ErrPoolNotRunning = errors.New("worker pool is not running")
	ErrQueueFull      = errors.New("job queue is full")
	ErrInFlight       = errors.New("delivery already in flight")
)

type DeliveryJob struct {
	DeliveryID pgtype.UUID
	URL        string
	Secret     string
	Event      string
	Payload    []byte
	Attempts   int32
	jobID      string
}

type DeliveryResult struct {
	Job        DeliveryJob
	StatusCode int
	Delivered  bool
	Error      error
}

type Poster interface {
	Send(ctx context.Context, url, secret, event string, payload []byte) (int, error)
}

type DeliveryStore interface {
	MarkDeliverySucceeded(ctx context.Context, arg repo.MarkDeliverySucceededParams) error
	MarkDeliveryFailed(ctx context.Context, arg repo.MarkDeliveryFailedParams) error
}

type WorkerPool struct {
	sender      Poster
	repo        DeliveryStore
	logger      *zap.Logger
	jobs        chan DeliveryJob
	numWorkers  int
	maxAttempts int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	isRunning   bool
	mu          sync.Mutex
	syncResults map[string]chan DeliveryResult
	syncMu      sync.RWMutex
	inflight    map[pgtype.UUID]struct{}
	inflightMu  sync.Mutex
	now         func() time.Time
}

type WorkerPoolConfig struct {
	NumWorkers  int
	QueueSize   int
	MaxAttempts int
}

func NewWorkerPool(sender Poster, store DeliveryStore, logger *zap.Logger, config WorkerPoolConfig) *WorkerPool {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 500
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = len(backoffSchedule) + 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		sender:      sender,
		repo:        store,
		logger:      logger,
		jobs:        make(chan DeliveryJob, config.QueueSize),
		numWorkers:  config.NumWorkers,
		maxAttempts: config.MaxAttempts,
		ctx:         ctx,
		cancel:      cancel,
		syncResults: make(map[string]chan DeliveryResult),
		inflight:    make(map[pgtype.UUID]struct{}),
		now:         time.Now,
	}
}

func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.isRunning {
		return nil
	}

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.isRunning = true
	wp.logger.Info("webhook worker pool started", zap.Int("workers", wp.numWorkers))
	return nil
}

func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	if !wp.isRunning {
		wp.mu.Unlock()
		return nil
	}
	wp.isRunning = false
	wp.mu.Unlock()

	wp.cancel()
	close(wp.jobs)
	wp.wg.Wait()

	wp.logger.Info("webhook worker pool stopped")
	return nil
}

// Submit enfileira uma entrega sem bloquear. Uma entrega que já está na fila
// ou sendo enviada é recusada com ErrInFlight.
func (wp *WorkerPool) Submit(job DeliveryJob) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.isRunning {
		return ErrPoolNotRunning
	}

	wp.inflightMu.Lock()
	if _, busy := wp.inflight[job.DeliveryID]; busy {
		wp.inflightMu.Unlock()
		return ErrInFlight
	}
	wp.inflight[job.DeliveryID] = struct{}{}
	wp.inflightMu.Unlock()

	select {
	case wp.jobs <- job:
		return nil
	default:
		wp.release(job.DeliveryID)
		return ErrQueueFull
	}
}

func (wp *WorkerPool) SubmitAndWait(ctx context.Context, job DeliveryJob) (*DeliveryResult, error) {
	jobID := fmt.Sprintf("%s-%d", parser.MustPgUUIDToString(job.DeliveryID), time.Now().UnixNano())
	job.jobID = jobID

	resultChan := make(chan DeliveryResult, 1)
	wp.syncMu.Lock()
	wp.syncResults[jobID] = resultChan
	wp.syncMu.Unlock()

	defer func() {
		wp.syncMu.Lock()
		delete(wp.syncResults, jobID)
		wp.syncMu.Unlock()
	}()

	if err := wp.Submit(job); err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	select {
	case result := <-resultChan:
		return &result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitBatch enfileira todos os jobs que couberem e retorna um canal com um
// resultado por job aceito, na ordem em que terminam. Jobs recusados pelo
// Submit são pulados e contados no int retornado.
func (wp *WorkerPool) SubmitBatch(ctx context.Context, jobs []DeliveryJob) (<-chan DeliveryResult, int, error) {
	out := make(chan DeliveryResult, len(jobs))
	if len(jobs) == 0 {
		close(out)
		return out, 0, nil
	}

	internal := make(chan DeliveryResult, len(jobs))
	var accepted []string
	skipped := 0
	for i := range jobs {
		jobID := fmt.Sprintf("%s-%d-%d", parser.MustPgUUIDToString(jobs[i].DeliveryID), time.Now().UnixNano(), i)
		jobs[i].jobID = jobID

		wp.syncMu.Lock()
		wp.syncResults[jobID] = internal
		wp.syncMu.Unlock()

		if err := wp.Submit(jobs[i]); err != nil {
			wp.syncMu.Lock()
			delete(wp.syncResults, jobID)
			wp.syncMu.Unlock()
			if errors.Is(err, ErrPoolNotRunning) {
				wp.forget(accepted)
				close(out)
				return nil, 0, err
			}
			skipped++
			continue
		}
		accepted = append(accepted, jobID)
	}

	go func() {
		defer close(out)
		defer wp.forget(accepted)

		for received := 0; received < len(accepted); received++ {
			select {
			case result := <-internal:
				out <- result
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, skipped, nil
}

func (wp *WorkerPool) forget(jobIDs []string) {
	wp.syncMu.Lock()
	for _, id := range jobIDs {
		delete(wp.syncResults, id)
	}
	wp.syncMu.Unlock()
}

func (wp *WorkerPool) release(id pgtype.UUID) {
	wp.inflightMu.Lock()
	delete(wp.inflight, id)
	wp.inflightMu.Unlock()
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			result := wp.process(job)
			wp.release(job.DeliveryID)

			if job.jobID != "" {
				wp.syncMu.RLock()
				if ch, exists := wp.syncResults[job.jobID]; exists {
					ch <- result
				}
				wp.syncMu.RUnlock()
			}

		case <-wp.ctx.Done():
			wp.logger.Debug("webhook worker cancelled", zap.Int("worker_id", id))
			return
		}
	}
}

func (wp *WorkerPool) process(job DeliveryJob) DeliveryResult {
	code, err := wp.sender.Send(wp.ctx, job.URL, job.Secret, job.Event, job.Payload)
	result := DeliveryResult{Job: job, StatusCode: code, Delivered: err == nil, Error: err}

	if recErr := wp.record(job, code, err); recErr != nil {
		wp.logger.Error("failed to record webhook delivery",
			zap.String("delivery_id", parser.MustPgUUIDToString(job.DeliveryID)),
			zap.Error(recErr),
		)
	}
	return result
}

func (wp *WorkerPool) record(job DeliveryJob, code int, sendErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var responseCode pgtype.Int4
	if code > 0 {
		responseCode = pgtype.Int4{Int32: int32(code), Valid: true}
	}

	if sendErr == nil {
		wp.logger.Debug("webhook delivered",
			zap.String("delivery_id", parser.MustPgUUIDToString(job.DeliveryID)),
			zap.String("event", job.Event),
			zap.Int("status", code),
		)
		return wp.repo.MarkDeliverySucceeded(ctx, repo.MarkDeliverySucceededParams{
			ID:           job.DeliveryID,
			ResponseCode: responseCode,
		})
	}

	attempts := int(job.Attempts) + 1
	params := repo.MarkDeliveryFailedParams{
		ID:           job.DeliveryID,
		Status:       DeliveryPending,
		ResponseCode: responseCode,
		LastError:    parser.PgText(truncate(sendErr.Error(), maxErrorLength)),
	}
	if attempts >= wp.maxAttempts {
		params.Status = DeliveryFailed
	} else {
		params.NextAttemptAt = pgtype.Timestamptz{Time: NextAttempt(attempts, wp.now()), Valid: true}
	}

	wp.logger.Warn("webhook delivery failed",
		zap.String("delivery_id", parser.MustPgUUIDToString(job.DeliveryID)),
		zap.String("event", job.Event),
		zap.Int("attempt", attempts),
		zap.String("status", params.Status),
		zap.Error(sendErr),
	)
	return wp.repo.MarkDeliveryFailed(ctx, params)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
