package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mailcleaner/internal/aggregate"
	"mailcleaner/internal/ai"
	"mailcleaner/internal/classifier"
	"mailcleaner/internal/config"
	"mailcleaner/internal/gmail"
	"mailcleaner/internal/handler"
	"mailcleaner/internal/logger"
	appmw "mailcleaner/internal/middleware"
	"mailcleaner/internal/repository/sqlstore"
	"mailcleaner/internal/router"
	"mailcleaner/internal/service"
	"mailcleaner/internal/sse"
	"mailcleaner/internal/syncjob"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("Config validation failed:", err)
	}

	appLogger := logger.NewWithLevel(os.Stdout, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := sqlstore.Open(ctx, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer store.Close()
	if cfg.UsesPostgres() {
		appLogger.Info("Using PostgreSQL store")
	} else {
		appLogger.Info("Using SQLite store at", cfg.DBPath)
	}

	cls := classifier.New(store, appLogger)
	if err := cls.Load(ctx); err != nil {
		appLogger.Warn("Failed to load classifier model, using rules only:", err)
	}

	engine := aggregate.NewEngine(store, store, appLogger)
	engine.StartDebounce(ctx, cfg.RefreshDebounce)
	defer engine.Close()

	aiClient := ai.NewAIClient(cfg, appLogger)

	if cfg.GmailAccessToken == "" {
		appLogger.Warn("GMAIL_ACCESS_TOKEN is not set, provider calls will fail")
	}
	mailbox, err := gmail.NewClient(ctx, cfg.GmailAccessToken, cfg.FetchMaxRetries, appLogger)
	if err != nil {
		log.Fatal("Failed to create Gmail client:", err)
	}

	// Initialize services
	messageService := service.NewMessageService(store, mailbox, engine, appLogger)
	feedbackService := service.NewFeedbackService(store, store, cls, engine, appLogger)
	summaryService := service.NewSummaryService(store, engine, aiClient, cfg.SummaryRatePerMinute, cfg.SummaryCacheTTL, appLogger)
	unsubscribeService := service.NewUnsubscribeService(store, store, mailbox, appLogger)

	broker := sse.NewBroker(appLogger)
	defer broker.Close()

	job := syncjob.New(mailbox, cls, store, store, engine, broker, cfg.MaxFetchEmails, cfg.SyncInterval, appLogger)
	defer job.Close()
	go job.Run(ctx)

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(appmw.RequestLogger(appLogger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	router.SetupRoutes(e, router.Handlers{
		Emails:      handler.NewEmailHandler(messageService, engine, appLogger),
		Stats:       handler.NewStatsHandler(engine, summaryService, appLogger),
		Sync:        handler.NewSyncHandler(job, broker, appLogger),
		Summaries:   handler.NewSummaryHandler(summaryService, appLogger),
		Unsubscribe: handler.NewUnsubscribeHandler(unsubscribeService, appLogger),
		Feedback:    handler.NewFeedbackHandler(feedbackService, appLogger),
	})

	go func() {
		appLogger.Info("Starting server on port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Failed to start server:", err)
			cancel()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	// Close the event streams first so open SSE requests return.
	broker.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Failed to shut down server:", err)
	}
}
