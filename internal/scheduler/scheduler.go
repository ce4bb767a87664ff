package scheduler

import (
	"context"
	"fmt"
	"html"
	"sync/atomic"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/internal/email"
	"github.com/freitasmatheusrn/pricecompare/internal/products"
	"github.com/freitasmatheusrn/pricecompare/internal/webhooks"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	priceRefreshTimeout = 30 * time.Minute
	webhookRetryTimeout = 5 * time.Minute
)

// PriceRefresher lists tracked products and persists crawl results.
type PriceRefresher interface {
	ListProductsToRefresh(ctx context.Context) ([]repo.Product, error)
	SaveCrawlResult(ctx context.Context, job products.CrawlerJob, data *products.CrawledData) (*products.PriceChange, error)
}

// BatchSubmitter defines the interface for submitting batch crawl jobs
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, jobs []products.CrawlerJob) (<-chan products.WorkerResult, error)
}

// Audience resolves who follows a product.
type Audience interface {
	ListFavoriteUsersByProduct(ctx context.Context, productID pgtype.UUID) ([]repo.FavoriteUserRow, error)
}

type WebhookRetrier interface {
	RetryDue(ctx context.Context) (webhooks.RetrySummary, error)
}

// Jobs holds the cron expressions. An empty expression disables the job.
// Expressions use 6 fields: seconds, minutes, hours, day of month, month, day of week.
// Example: "0 0 3 * * *" runs at 3:00 AM every day
type Jobs struct {
	PriceRefresh string
	WebhookRetry string
}

type Scheduler struct {
	cron            *cron.Cron
	workerPool      BatchSubmitter
	service         PriceRefresher
	audience        Audience
	webhooks        WebhookRetrier
	logger          *zap.Logger
	email           email.Email
	alertRecipients []string
	refreshing      atomic.Bool
}

// NewScheduler builds the scheduler. workerPool may be nil when crawling is
// disabled; webhooks may be nil when deliveries are not retried.
func NewScheduler(workerPool BatchSubmitter, service PriceRefresher, audience Audience, retrier WebhookRetrier, logger *zap.Logger, e email.Email, alertRecipients []string) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		workerPool:      workerPool,
		service:         service,
		audience:        audience,
		webhooks:        retrier,
		logger:          logger,
		email:           e,
		alertRecipients: alertRecipients,
	}
}

func (s *Scheduler) Start(jobs Jobs) error {
	if jobs.PriceRefresh != "" && s.workerPool != nil {
		if _, err := s.cron.AddFunc(jobs.PriceRefresh, s.runPriceRefreshJob); err != nil {
			return fmt.Errorf("invalid price refresh cron %q: %w", jobs.PriceRefresh, err)
		}
	}
	if jobs.WebhookRetry != "" && s.webhooks != nil {
		if _, err := s.cron.AddFunc(jobs.WebhookRetry, s.runWebhookRetryJob); err != nil {
			return fmt.Errorf("invalid webhook retry cron %q: %w", jobs.WebhookRetry, err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("price_refresh_cron", jobs.PriceRefresh),
		zap.String("webhook_retry_cron", jobs.WebhookRetry),
		zap.Int("jobs", len(s.cron.Entries())),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

// RunNow executes the price refresh job immediately (for manual triggers).
// It reports false when crawling is disabled or a refresh is already running.
func (s *Scheduler) RunNow() bool {
	if s.workerPool == nil || s.refreshing.Load() {
		return false
	}
	go s.runPriceRefreshJob()
	return true
}

// runPriceRefreshJob crawls every followed product and warns users about
// price drops.
func (s *Scheduler) runPriceRefreshJob() {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.logger.Info("price refresh already running, skipping")
		return
	}
	defer s.refreshing.Store(false)

	s.logger.Info("starting price refresh job")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), priceRefreshTimeout)
	defer cancel()

	tracked, err := s.service.ListProductsToRefresh(ctx)
	if err != nil {
		s.notifyError("failed to list products to refresh", err)
		return
	}

	if len(tracked) == 0 {
		s.logger.Info("no products to refresh")
		return
	}

	s.logger.Info("found products to refresh", zap.Int("count", len(tracked)))

	jobs := make([]products.CrawlerJob, 0, len(tracked))
	for _, p := range tracked {
		jobs = append(jobs, products.CrawlerJob{ProductID: p.ID, URL: p.Url})
	}

	resultsChan, err := s.workerPool.SubmitBatch(ctx, jobs)
	if err != nil {
		s.notifyError("failed to submit batch", err)
		return
	}

	var successCount, errorCount int
	var drops []products.PriceChange

	for result := range resultsChan {
		if result.Error != nil {
			errorCount++
			s.logger.Warn("crawl failed",
				zap.String("url", result.Job.URL),
				zap.Error(result.Error),
			)
			continue
		}

		change, err := s.service.SaveCrawlResult(ctx, result.Job, result.Data)
		if err != nil {
			errorCount++
			s.logger.Error("failed to save crawl result",
				zap.String("url", result.Job.URL),
				zap.Error(err),
			)
			continue
		}
		successCount++

		if change == nil {
			continue
		}
		s.logger.Info("price changed",
			zap.String("url", change.URL),
			zap.Int64("old_cents", change.OldCents),
			zap.Int64("new_cents", change.NewCents),
		)
		if change.Dropped() {
			drops = append(drops, *change)
		}
	}

	sent := 0
	for _, drop := range drops {
		sent += s.sendPriceDropEmails(ctx, drop)
	}

	s.logger.Info("price refresh job completed",
		zap.Int("total", len(tracked)),
		zap.Int("success", successCount),
		zap.Int("errors", errorCount),
		zap.Int("price_drops", len(drops)),
		zap.Int("emails_sent", sent),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// sendPriceDropEmails emails every user that favorited the product and
// returns how many emails went out.
func (s *Scheduler) sendPriceDropEmails(ctx context.Context, change products.PriceChange) int {
	users, err := s.audience.ListFavoriteUsersByProduct(ctx, change.ProductID)
	if err != nil {
		s.logger.Error("failed to list users following product",
			zap.String("url", change.URL),
			zap.Error(err),
		)
		return 0
	}

	sent := 0
	for _, u := range users {
		msg, err := email.Render(email.TemplatePriceDrop, email.PriceDropData{
			Name:     u.Name,
			Title:    change.Title,
			URL:      change.URL,
			OldPrice: parser.FormatCents(change.OldCents, change.Currency),
			NewPrice: parser.FormatCents(change.NewCents, change.Currency),
		})
		if err != nil {
			s.logger.Error("failed to render price drop email", zap.Error(err))
			return sent
		}
		if err := s.email.Send(msg.Subject, msg.Text, msg.HTML, []string{u.Email}); err != nil {
			s.logger.Error("failed to send price drop email",
				zap.String("url", change.URL),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (s *Scheduler) runWebhookRetryJob() {
	ctx, cancel := context.WithTimeout(context.Background(), webhookRetryTimeout)
	defer cancel()

	summary, err := s.webhooks.RetryDue(ctx)
	if err != nil {
		s.notifyError("failed to retry webhook deliveries", err)
		return
	}
	if summary.Due == 0 {
		return
	}

	s.logger.Info("webhook retry job completed",
		zap.Int("due", summary.Due),
		zap.Int("delivered", summary.Delivered),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
}

// notifyError logs the error and sends an email notification to alert recipients
func (s *Scheduler) notifyError(context string, err error) {
	s.logger.Error(context, zap.Error(err))

	if len(s.alertRecipients) == 0 {
		return
	}

	subject := "⚠️ Erro no Scheduler - " + context
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	textBody := fmt.Sprintf("Contexto: %s\nErro: %v\nHorário: %s", context, err, timestamp)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<style>
		body { font-family: Arial, sans-serif; }
		.error-box { background-color: #ffebee; border-left: 4px solid #f44336; padding: 16px; margin: 20px 0; }
		.label { font-weight: bold; color: #333; }
		.value { color: #666; }
	</style>
</head>
<body>
	<h2 style="color: #f44336;">⚠️ Erro no Scheduler</h2>
	<div class="error-box">
		<p><span class="label">Contexto:</span> <span class="value">%s</span></p>
		<p><span class="label">Erro:</span> <span class="value">%v</span></p>
		<p><span class="label">Horário:</span> <span class="value">%s</span></p>
	</div>
</body>
</html>`, html.EscapeString(context), html.EscapeString(err.Error()), timestamp)

	if sendErr := s.email.Send(subject, textBody, htmlBody, s.alertRecipients); sendErr != nil {
		s.logger.Error("failed to send error notification email",
			zap.Error(sendErr),
			zap.String("original_error_context", context),
		)
	}
}
