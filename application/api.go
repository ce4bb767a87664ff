package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	configs "github.com/freitasmatheusrn/pricecompare/configs"
	authPkg "github.com/freitasmatheusrn/pricecompare/internal/auth"
	"github.com/freitasmatheusrn/pricecompare/internal/business"
	"github.com/freitasmatheusrn/pricecompare/internal/compare"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	redisdb "github.com/freitasmatheusrn/pricecompare/internal/database/redis"
	"github.com/freitasmatheusrn/pricecompare/internal/domains"
	"github.com/freitasmatheusrn/pricecompare/internal/email"
	"github.com/freitasmatheusrn/pricecompare/internal/email/mailjet"
	"github.com/freitasmatheusrn/pricecompare/internal/email/smtp"
	"github.com/freitasmatheusrn/pricecompare/internal/favorites"
	"github.com/freitasmatheusrn/pricecompare/internal/products"
	"github.com/freitasmatheusrn/pricecompare/internal/scheduler"
	"github.com/freitasmatheusrn/pricecompare/internal/tracking"
	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/internal/webhooks"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/notification"
	"github.com/freitasmatheusrn/pricecompare/pkg/notification/twilio"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 15 * time.Second
	trackingPrefix  = "/track/"
)

type Application struct {
	Config configs.Configs
	Logger *zap.Logger
	DB     *pgxpool.Pool
	Redis  *redisdb.Client

	scheduler   *scheduler.Scheduler
	crawlerPool *products.WorkerPool
	webhookPool *webhooks.WorkerPool
}

func (app *Application) Mount() (http.Handler, error) {
	cfg := app.Config
	store := repo.NewStore(app.DB)
	emailClient := app.emailProvider()
	sms := app.smsProvider()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = app.CustomErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      isTrackingRequest(false),
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
	}))
	// The tracking script runs on every merchant site.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      isTrackingRequest(true),
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, "X-API-Key"},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:  true,
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			status := v.Status
			if v.Error != nil {
				var apiErr *rest.ApiErr
				var httpErr *echo.HTTPError
				switch {
				case errors.As(v.Error, &apiErr):
					status = apiErr.Code
				case errors.As(v.Error, &httpErr):
					status = httpErr.Code
				}
			}

			fields := []zap.Field{
				zap.Duration("latency", v.Latency),
				zap.Int("status", status),
				zap.String("uri", v.URI),
				zap.String("method", v.Method),
			}

			switch {
			case status >= 500:
				app.Logger.Error("request", append(fields, zap.Error(v.Error))...)
			case status >= 400:
				app.Logger.Warn("request", fields...)
			default:
				app.Logger.Info("request", fields...)
			}
			return nil
		},
	}))

	jwtConfig := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.JWTCustomClaims)
		},
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:Authorization:Bearer ,cookie:access_token",
		SuccessHandler: func(c echo.Context) {
			token := c.Get("user").(*jwt.Token)
			claims := token.Claims.(*auth.JWTCustomClaims)
			currentUser, err := authPkg.CurrentUserFromClaims(claims)
			if err != nil {
				return
			}
			user.SetCurrentUser(c, currentUser)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return rest.NewUnauthorizedRequestError("usuário não autenticado")
		},
	}

	// Webhook deliveries
	webhookPool := webhooks.NewWorkerPool(webhooks.NewSender(), store, app.Logger, webhooks.WorkerPoolConfig{
		NumWorkers:  cfg.WebhookWorkers,
		QueueSize:   256,
		MaxAttempts: cfg.WebhookMaxAttempts,
	})
	if err := webhookPool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start webhook pool: %w", err)
	}
	app.webhookPool = webhookPool
	webhookService := webhooks.NewService(store, webhookPool, app.Logger)
	webhookHandler := webhooks.NewHandler(webhookService)

	// Auth and accounts
	authService := authPkg.NewService(
		store,
		authPkg.NewTokenRepository(app.Redis.Client),
		authPkg.NewResetRepository(app.Redis.Client),
		emailClient,
		app.Logger,
		authPkg.Config{
			JWTSecret:       cfg.JWTSecret,
			AccessTokenExp:  cfg.AccessTokenExp,
			RefreshTokenExp: cfg.RefreshTokenExp,
		},
	)
	authHandler := authPkg.NewHandler(authService, cfg.AccessTokenExp, cfg.RefreshTokenExp)
	userHandler := user.NewHandler(user.NewService(store))

	businessService := business.NewService(store, webhookService, emailClient, app.Logger, business.Config{
		PublicBaseURL:        cfg.PublicBaseURL,
		DefaultCommissionBps: int32(cfg.DefaultCommissionBps),
	})
	businessHandler := business.NewHandler(businessService, authService, authHandler.SetTokenCookies)

	domainService := domains.NewService(store, domains.NewChecker(net.DefaultResolver), webhookService, emailClient, app.Logger)
	domainHandler := domains.NewHandler(domainService)

	trackingService := tracking.NewService(store, tracking.NewRedisDeduper(app.Redis.Client), webhookService, emailClient, sms, app.Logger)
	trackingHandler := tracking.NewHandler(trackingService, cfg.PublicBaseURL, app.Logger)

	// Comparison
	compareService := compare.NewService(
		store,
		compare.NewRedisCache(app.Redis.Client),
		app.compareBackends(),
		time.Duration(cfg.CompareCacheTTL)*time.Second,
		app.Logger,
	)
	compareHandler := compare.NewHandler(compareService)

	// Tracked products and price refresh
	var waiter products.Waiter
	var submitter scheduler.BatchSubmitter
	if cfg.CrawlerEnabled {
		crawlerPool := products.NewWorkerPool(products.NewCrawler(), store, app.Logger, products.WorkerPoolConfig{
			NumWorkers: cfg.CrawlerWorkers,
			QueueSize:  100,
			MaxDelay:   3 * time.Second,
		})
		if err := crawlerPool.Start(); err != nil {
			app.Shutdown()
			return nil, fmt.Errorf("failed to start crawler pool: %w", err)
		}
		app.crawlerPool = crawlerPool
		waiter = crawlerPool
		submitter = crawlerPool
	} else {
		app.Logger.Info("crawler disabled, price refresh job will not run")
	}
	productService := products.NewService(store, waiter, app.Logger)
	productHandler := products.NewHandler(productService)

	favoriteHandler := favorites.NewHandler(favorites.NewService(store, app.Logger))

	priceScheduler := scheduler.NewScheduler(submitter, productService, store, webhookService, app.Logger, emailClient, cfg.AlertRecipients)
	if err := priceScheduler.Start(scheduler.Jobs{
		PriceRefresh: cfg.PriceRefreshCron,
		WebhookRetry: cfg.WebhookRetryCron,
	}); err != nil {
		app.Shutdown()
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	app.scheduler = priceScheduler

	compareLimiter := rateLimiter(cfg.CompareRateLimit, 3)
	trackingLimiter := rateLimiter(cfg.TrackingRateLimit, 40)

	e.GET("/health", app.Health)

	// Public API routes
	e.POST("/signup", authHandler.Signup)
	e.POST("/signin", authHandler.Signin)
	e.POST("/refresh", authHandler.Refresh)
	e.POST("/forgot-password", authHandler.ForgotPassword)
	e.POST("/reset-password", authHandler.ResetPassword)
	e.POST("/business/register", businessHandler.Register)
	e.POST("/business/signin", authHandler.SigninBusiness)

	e.POST("/compare", compareHandler.Compare, compareLimiter, authPkg.OptionalAuth(cfg.JWTSecret))
	e.GET("/products/:id", productHandler.GetProduct)
	e.GET("/products/:id/history", productHandler.History)

	// Tracking routes (called from merchant sites and stores)
	e.GET("/t/:affiliateId", trackingHandler.Click, trackingLimiter)
	e.GET("/track/script.js", trackingHandler.Script)
	e.POST("/track/event", trackingHandler.Event, trackingLimiter)
	e.POST("/track/conversion", trackingHandler.Conversion, trackingLimiter)
	e.POST("/webhooks/shopify/:affiliateId", trackingHandler.Shopify)

	// Protected routes (JWT required)
	protected := e.Group("")
	protected.Use(authPkg.AutoRefreshMiddleware(authService, cfg.AccessTokenExp, cfg.RefreshTokenExp, cfg.JWTSecret))
	protected.Use(echojwt.WithConfig(jwtConfig))

	protected.POST("/logout", authHandler.Logout)
	protected.POST("/logout-all", authHandler.LogoutAll)
	protected.POST("/products/:id/refresh", productHandler.Refresh)

	// Shoppers
	shoppers := protected.Group("", authPkg.RequireRole(auth.RoleUser, auth.RoleAdmin))
	shoppers.GET("/me", userHandler.GetMe)
	shoppers.PUT("/me", userHandler.Update)
	shoppers.GET("/favorites", favoriteHandler.List)
	shoppers.POST("/favorites", favoriteHandler.Add)
	shoppers.DELETE("/favorites/:id", favoriteHandler.Remove)

	// Businesses
	biz := protected.Group("/business", authPkg.RequireRole(auth.RoleBusiness))
	biz.GET("/profile", businessHandler.GetProfile)
	biz.PUT("/profile", businessHandler.UpdateProfile)
	biz.POST("/api-key", businessHandler.RotateAPIKey)
	biz.GET("/stats", businessHandler.Stats)
	biz.GET("/clicks", businessHandler.ListClicks)
	biz.GET("/conversions", businessHandler.ListConversions)
	biz.GET("/commissions", businessHandler.ListCommissions)
	biz.GET("/reports/conversions.xlsx", businessHandler.ConversionsReport)

	biz.POST("/domain/verification", domainHandler.Start)
	biz.POST("/domain/verify", domainHandler.Verify)
	biz.GET("/domain", domainHandler.Status)

	biz.POST("/webhooks", webhookHandler.Create)
	biz.GET("/webhooks", webhookHandler.List)
	biz.DELETE("/webhooks/:id", webhookHandler.Delete)
	biz.POST("/webhooks/:id/test", webhookHandler.SendTest)
	biz.GET("/webhooks/:id/deliveries", webhookHandler.ListDeliveries)

	// Admin
	admin := protected.Group("/admin", authPkg.RequireRole(auth.RoleAdmin))
	admin.GET("/businesses", businessHandler.AdminList)
	admin.PUT("/businesses/:id/status", businessHandler.AdminSetStatus)
	admin.PUT("/businesses/:id/commission-rate", businessHandler.AdminSetCommissionRate)
	admin.PUT("/commissions/:id/status", businessHandler.AdminSetCommissionStatus)
	admin.GET("/stats", businessHandler.AdminPlatformStats)
	admin.POST("/jobs/price-refresh", app.RunPriceRefresh)

	return e, nil
}

// Run serves until ctx is cancelled, then drains requests and stops the
// background workers.
func (app *Application) Run(ctx context.Context, h http.Handler) error {
	srv := &http.Server{
		Addr:         app.Config.WebServerPort,
		Handler:      h,
		WriteTimeout: time.Minute, // comparisons may wait on n8n
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}
	defer app.Shutdown()

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("server has started", zap.String("addr", app.Config.WebServerPort))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Shutdown stops the scheduler first so no job submits to a stopped pool.
func (app *Application) Shutdown() {
	if app.scheduler != nil {
		<-app.scheduler.Stop().Done()
		app.scheduler = nil
	}
	if app.crawlerPool != nil {
		if err := app.crawlerPool.Stop(); err != nil {
			app.Logger.Warn("failed to stop crawler pool", zap.Error(err))
		}
		app.crawlerPool = nil
	}
	if app.webhookPool != nil {
		if err := app.webhookPool.Stop(); err != nil {
			app.Logger.Warn("failed to stop webhook pool", zap.Error(err))
		}
		app.webhookPool = nil
	}
}

func (app *Application) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"database": "ok", "redis": "ok"}
	code := http.StatusOK
	if err := app.DB.Ping(ctx); err != nil {
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := app.Redis.Ping(ctx).Err(); err != nil {
		status["redis"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

func (app *Application) RunPriceRefresh(c echo.Context) error {
	if app.scheduler == nil || !app.scheduler.RunNow() {
		return rest.NewConflictError("atualização de preços desabilitada ou em andamento")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "atualização de preços iniciada"})
}

func (app *Application) emailProvider() email.Email {
	cfg := app.Config
	if strings.EqualFold(cfg.EmailProvider, "mailjet") {
		return mailjet.New(cfg.MailjetAPIKey, cfg.MailjetAPISecret, cfg.EmailFrom, cfg.EmailFromName)
	}
	from := cfg.EmailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return smtp.New(cfg.SMTPHost, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPPort, from, cfg.EmailFromName)
}

// smsProvider returns nil when Twilio is not configured.
func (app *Application) smsProvider() notification.Notification {
	cfg := app.Config
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioNumber == "" {
		return nil
	}
	return twilio.NewSMS(cfg.TwilioNumber, twilio.InitClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken))
}

// compareBackends leaves unconfigured backends as nil interfaces.
func (app *Application) compareBackends() compare.Backends {
	cfg := app.Config
	var backends compare.Backends
	if cfg.N8NWebhookURL != "" {
		backends.Primary = compare.NewN8NClient(cfg.N8NWebhookURL, time.Duration(cfg.N8NTimeoutSeconds)*time.Second)
	}
	if cfg.GeminiAPIKey != "" {
		backends.Identifier = compare.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.SearchAPIKey != "" {
		backends.Searcher = compare.NewSearchAPIClient(cfg.SearchAPIKey, cfg.SearchAPIURL, time.Duration(cfg.SearchAPIMinInterval)*time.Millisecond)
	}
	if backends.Primary == nil && backends.Searcher == nil {
		app.Logger.Warn("no comparison backend configured, /compare will answer 502")
	}
	return backends
}

// rateLimiter limits per client IP; perSecond <= 0 disables it.
func rateLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return rest.NewForbiddenError("não foi possível identificar o cliente")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return rest.NewTooManyRequestsError("muitas requisições, tente novamente em instantes")
		},
	})
}

// isTrackingRequest builds a CORS skipper. With tracking=true it skips every
// request outside the tracking paths, and the opposite otherwise.
func isTrackingRequest(tracking bool) middleware.Skipper {
	return func(c echo.Context) bool {
		path := c.Request().URL.Path
		isTracking := strings.HasPrefix(path, trackingPrefix) || strings.HasPrefix(path, "/t/")
		if tracking {
			return !isTracking
		}
		return isTracking
	}
}
