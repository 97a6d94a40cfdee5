package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/agent"
	"github.com/solstudio/ig-agent-go/internal/config"
	"github.com/solstudio/ig-agent-go/internal/coordinator"
	"github.com/solstudio/ig-agent-go/internal/database"
	"github.com/solstudio/ig-agent-go/internal/dispatch"
	"github.com/solstudio/ig-agent-go/internal/handler"
	"github.com/solstudio/ig-agent-go/internal/instagram"
	"github.com/solstudio/ig-agent-go/internal/jobs"
	"github.com/solstudio/ig-agent-go/internal/middleware"
	"github.com/solstudio/ig-agent-go/internal/notify"
	"github.com/solstudio/ig-agent-go/internal/redis"
	"github.com/solstudio/ig-agent-go/internal/repository"
	"github.com/solstudio/ig-agent-go/internal/schedule"
	"github.com/solstudio/ig-agent-go/internal/service"
	"github.com/solstudio/ig-agent-go/internal/tools"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	convRepo := repository.NewConversationRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	outboundRepo := repository.NewOutboundMessageRepository(db.DB)
	bookingRepo := repository.NewBookingRepository(db.DB)

	dispatcher := dispatch.NewDispatcher(redisClient, cfg.DebounceMin(), cfg.DebounceMax())
	coord := coordinator.New(coordinator.NewSQLStore(db))

	igClient := instagram.NewClient(cfg.GraphBaseURL, cfg.PageAccessToken)
	notifier := notify.NewWebhookNotifier(cfg.ManagerWebhookURL)
	scheduleProvider := schedule.NewFeedProvider(cfg.ScheduleFeedURL)

	catalog := tools.NewCatalog(tools.CatalogParams{
		Messenger:     igClient,
		Notifier:      notifier,
		Schedules:     scheduleProvider,
		Conversations: convRepo,
		Bookings:      bookingRepo,
		Outbound:      outboundRepo,
		Cooldown:      cfg.NotifyCooldown(),
	})

	agentClient, err := agent.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create agent client")
	}
	invoker := agent.NewInvoker(agentClient, catalog)

	history := service.NewRepositoryHistory(messageRepo, outboundRepo)
	processor := service.NewProcessorService(coord, history, invoker, dispatcher)
	convService := service.NewConversationService(convRepo, messageRepo, outboundRepo)
	ingestService := service.NewIngestService(convRepo, messageRepo, dispatcher, igClient)

	worker := dispatch.NewWorker(dispatcher, processor, config.DispatchPollInterval)
	worker.Start()
	defer worker.Stop()

	reclaimJob := jobs.NewReclaimJob(messageRepo, dispatcher, config.ReclaimInterval)
	reclaimJob.Start()
	defer reclaimJob.Stop()

	webhookHandler := handler.NewWebhookHandler(
		ingestService, convService, cfg.VerifyToken, cfg.AllowedSenderID, cfg.ResetKeyword,
	)
	dispatchHandler := handler.NewDispatchHandler(processor)

	signatureMiddleware := middleware.NewSignatureMiddleware(cfg.AppSecret)
	dispatchAuthMiddleware := middleware.NewDispatchAuthMiddleware(cfg.DispatchAuthToken)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(middleware.BodyLimit(config.WebhookMaxBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/webhook/instagram", func(r chi.Router) {
		r.Get("/", webhookHandler.Verify)
		r.With(signatureMiddleware.Handler).Post("/", webhookHandler.Receive)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(dispatchAuthMiddleware.Handler)
		r.Post("/dispatch", dispatchHandler.Dispatch)
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
