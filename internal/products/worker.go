package products

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const collectTimeout = 60 * time.Second

var (
	ErrPoolNotRunning = errors.New("worker pool is not running")
	ErrPoolStopping   = errors.New("worker pool is shutting down")
	ErrQueueFull      = errors.New("job queue is full")
)

// Collector busca os dados atuais de uma página de produto.
type Collector interface {
	Start() error
	Stop() error
	Collect(ctx context.Context, url string) (*CrawledData, error)
}

type WorkerPool struct {
	collector   Collector
	repo        Store
	logger      *zap.Logger
	jobs        chan CrawlerJob
	results     chan WorkerResult
	numWorkers  int
	maxDelay    time.Duration
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	isRunning   bool
	mu          sync.Mutex
	syncResults map[string]chan WorkerResult // canais de quem espera por um job
	syncMu      sync.RWMutex
}

type WorkerResult struct {
	Job   CrawlerJob
	Data  *CrawledData
	Error error
}

type WorkerPoolConfig struct {
	NumWorkers int
	QueueSize  int
	// MaxDelay espalha as requisições para as mesmas lojas: cada job espera
	// um tempo aleatório até esse valor antes de coletar.
	MaxDelay time.Duration
}

func NewWorkerPool(collector Collector, store Store, logger *zap.Logger, config WorkerPoolConfig) *WorkerPool {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 3
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		collector:   collector,
		repo:        store,
		logger:      logger,
		jobs:        make(chan CrawlerJob, config.QueueSize),
		results:     make(chan WorkerResult, config.QueueSize),
		numWorkers:  config.NumWorkers,
		maxDelay:    config.MaxDelay,
		ctx:         ctx,
		cancel:      cancel,
		syncResults: make(map[string]chan WorkerResult),
	}
}

func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.isRunning {
		return nil
	}

	if err := wp.collector.Start(); err != nil {
		return fmt.Errorf("failed to start crawler: %w", err)
	}

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.wg.Add(1)
	go wp.processResults()

	wp.isRunning = true
	wp.logger.Info("crawler pool started", zap.Int("workers", wp.numWorkers))

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
	wp.wg.Wait()

	if err := wp.collector.Stop(); err != nil {
		return fmt.Errorf("failed to stop crawler: %w", err)
	}

	wp.logger.Info("crawler pool stopped")
	return nil
}

// Submit enfileira um job sem esperar. O resultado é salvo pelo próprio pool.
func (wp *WorkerPool) Submit(job CrawlerJob) error {
	wp.mu.Lock()
	if !wp.isRunning {
		wp.mu.Unlock()
		return ErrPoolNotRunning
	}
	wp.mu.Unlock()

	select {
	case wp.jobs <- job:
		wp.logger.Debug("job submitted", zap.String("url", job.URL))
		return nil
	case <-wp.ctx.Done():
		return ErrPoolStopping
	default:
		return ErrQueueFull
	}
}

// enqueue é a versão bloqueante do Submit.
func (wp *WorkerPool) enqueue(ctx context.Context, job CrawlerJob) error {
	wp.mu.Lock()
	running := wp.isRunning
	wp.mu.Unlock()
	if !running {
		return ErrPoolNotRunning
	}

	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return ErrPoolStopping
	}
}

// SubmitAndWait enfileira um job e devolve os dados coletados. Salvar fica
// a cargo de quem chamou.
func (wp *WorkerPool) SubmitAndWait(ctx context.Context, job CrawlerJob) (*CrawledData, error) {
	job.jobID = uuid.NewString()

	resultChan := make(chan WorkerResult, 1)
	wp.syncMu.Lock()
	wp.syncResults[job.jobID] = resultChan
	wp.syncMu.Unlock()

	defer func() {
		wp.syncMu.Lock()
		delete(wp.syncResults, job.jobID)
		wp.syncMu.Unlock()
	}()

	if err := wp.Submit(job); err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	select {
	case result := <-resultChan:
		if result.Error != nil {
			return nil, result.Error
		}
		return result.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wp.ctx.Done():
		return nil, ErrPoolStopping
	}
}

// SubmitBatch enfileira todos os jobs e retorna um canal que emite os
// resultados conforme cada job termina, fora de ordem. Com a fila cheia ele
// espera os workers liberarem espaço, então lotes maiores que a fila rodam
// inteiros. O canal é fechado quando todos os resultados chegarem ou ctx
// terminar.
func (wp *WorkerPool) SubmitBatch(ctx context.Context, jobs []CrawlerJob) (<-chan WorkerResult, error) {
	if len(jobs) == 0 {
		ch := make(chan WorkerResult)
		close(ch)
		return ch, nil
	}

	internalChan := make(chan WorkerResult, len(jobs))
	outputChan := make(chan WorkerResult, len(jobs))

	jobIDs := make([]string, len(jobs))
	wp.syncMu.Lock()
	for i := range jobs {
		jobs[i].jobID = uuid.NewString()
		jobIDs[i] = jobs[i].jobID
		wp.syncResults[jobIDs[i]] = internalChan
	}
	wp.syncMu.Unlock()

	// Limpa os canais registrados em caso de erro ou ao final
	release := func() {
		wp.syncMu.Lock()
		for _, id := range jobIDs {
			delete(wp.syncResults, id)
		}
		wp.syncMu.Unlock()
	}

	for _, job := range jobs {
		if err := wp.enqueue(ctx, job); err != nil {
			release()
			return nil, fmt.Errorf("failed to submit job %s: %w", job.URL, err)
		}
	}

	// Repassa os resultados e limpa quando todos terminarem
	go func() {
		defer close(outputChan)
		defer release()

		for received := 0; received < len(jobs); received++ {
			select {
			case result := <-internalChan:
				outputChan <- result
			case <-ctx.Done():
				return
			case <-wp.ctx.Done():
				return
			}
		}
	}()

	return outputChan, nil
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.logger.Debug("worker started", zap.Int("worker_id", id))

	for {
		select {
		case job := <-wp.jobs:
			if !wp.wait() {
				wp.deliver(WorkerResult{Job: job, Error: ErrPoolStopping})
				return
			}

			wp.logger.Debug("processing job",
				zap.Int("worker_id", id),
				zap.String("url", job.URL),
			)

			ctx, cancel := context.WithTimeout(wp.ctx, collectTimeout)
			data, err := wp.collector.Collect(ctx, job.URL)
			cancel()

			wp.deliver(WorkerResult{Job: job, Data: data, Error: err})

		case <-wp.ctx.Done():
			wp.logger.Debug("worker cancelled", zap.Int("worker_id", id))
			return
		}
	}
}

// wait dorme um tempo aleatório e retorna false se o pool parar nesse meio tempo.
func (wp *WorkerPool) wait() bool {
	if wp.maxDelay <= 0 {
		return true
	}
	timer := time.NewTimer(time.Duration(rand.Int63n(int64(wp.maxDelay))))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// deliver devolve jobs síncronos para quem espera e manda o resto para ser
// salvo.
func (wp *WorkerPool) deliver(result WorkerResult) {
	if result.Job.jobID != "" {
		wp.syncMu.RLock()
		ch, exists := wp.syncResults[result.Job.jobID]
		wp.syncMu.RUnlock()
		if exists {
			ch <- result
		}
		return
	}
	select {
	case wp.results <- result:
	case <-wp.ctx.Done():
	}
}

func (wp *WorkerPool) processResults() {
	defer wp.wg.Done()

	for {
		select {
		case result := <-wp.results:
			wp.save(result)
		case <-wp.ctx.Done():
			for {
				select {
				case result := <-wp.results:
					wp.save(result)
				default:
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) save(result WorkerResult) {
	if result.Error != nil {
		wp.logger.Error("crawling failed",
			zap.String("url", result.Job.URL),
			zap.Error(result.Error),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	change, err := saveCrawlResult(ctx, wp.repo, result.Job, result.Data)
	if err != nil {
		wp.logger.Error("failed to save snapshot",
			zap.String("url", result.Job.URL),
			zap.Error(err),
		)
		return
	}

	fields := []zap.Field{
		zap.String("url", result.Job.URL),
		zap.Int64("price_cents", result.Data.PriceCents),
	}
	if change != nil {
		fields = append(fields, zap.Int64("old_price_cents", change.OldCents))
	}
	wp.logger.Info("snapshot saved", fields...)
}
