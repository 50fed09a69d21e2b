package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitHeroAPI/handlers"
	"habitHeroAPI/internal/config"
	"habitHeroAPI/internal/database"
	"habitHeroAPI/internal/logger"
	"habitHeroAPI/internal/motivation"
	"habitHeroAPI/internal/queue"
	"habitHeroAPI/internal/storage"
	"habitHeroAPI/internal/telegram"
	"habitHeroAPI/internal/workers"
	"habitHeroAPI/middleware"
	"habitHeroAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.IsDevelopment())
	handlers.SetDevelopment(cfg.IsDevelopment())

	if err := run(cfg); err != nil {
		logger.LogError("Server stopped with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.Connect(rootCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		logger.LogSystem("Closing database connection pool")
		dbPool.Close()
	}()
	logger.LogSystem("Connected to Postgres")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	services.RegisterMetrics(prometheus.DefaultRegisterer)

	// Telegram
	var messenger telegram.Messenger = telegram.LogMessenger{}
	var tgClient *telegram.Client
	if cfg.TelegramEnabled() {
		tgClient = telegram.NewClient(cfg.TelegramBotToken)
		messenger = tgClient
	} else {
		logger.LogSystem("TELEGRAM_BOT_TOKEN not set, messages are only logged")
	}

	// Motivation
	var generator motivation.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := motivation.NewGeminiGenerator(rootCtx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.LogError("Gemini unavailable, using canned motivation", err)
		} else {
			generator = g
		}
	}
	motivator, err := motivation.NewService(generator, 256)
	if err != nil {
		return fmt.Errorf("motivation cache: %w", err)
	}

	// Activity stream
	var producer *queue.Producer
	if cfg.KafkaBroker != "" {
		producer = queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
		defer producer.Close()
	}

	// Proof uploads
	var proofs *storage.ProofStore
	if cfg.S3Bucket != "" {
		proofs, err = storage.NewProofStore(rootCtx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3PublicBaseURL)
		if err != nil {
			logger.LogError("S3 unavailable, proof uploads disabled", err)
			proofs = nil
		}
	}

	dispatcher := services.NewNotificationDispatcher(messenger)
	defer dispatcher.Stop()

	notificationService := services.NewNotificationService(dbPool)
	effects := services.NewEffectRunner(
		services.CelebrationEffect{},
		&services.MotivationEffect{Motivation: motivator, Notifications: notificationService, Dispatcher: dispatcher},
		&services.GroupNotifyEffect{Notifications: notificationService, Dispatcher: dispatcher},
		&services.PublishEffect{Producer: producer},
	)
	defer effects.Wait()

	authService := services.NewAuthService(dbPool, messenger, cfg.JWTSecret, cfg.LoginCodeTTL, cfg.FrontendURL)
	groupService := services.NewGroupService(dbPool)
	challengeService := services.NewChallengeService(dbPool)
	taskService := services.NewTaskService(dbPool, effects)
	analyticsService := services.NewAnalyticsService(dbPool)
	userService := services.NewUserService(dbPool)
	botService := services.NewBotService(dbPool, authService, messenger)

	if cfg.RemindersEnabled {
		reminders := services.NewReminderService(dbPool, notificationService, dispatcher)
		reminders.Start()
		defer reminders.Stop()
	}
	workers.StartCleanupWorker(rootCtx, dbPool, cfg.LoginCodeTTL)

	if tgClient != nil && cfg.BackendURL != "" {
		hook := strings.TrimRight(cfg.BackendURL, "/") + "/api/telegram/webhook/" + cfg.TelegramWebhookSecret
		if err := tgClient.SetWebhook(rootCtx, hook); err != nil {
			logger.LogError("Failed to register Telegram webhook", err)
		} else {
			logger.LogSystem("Telegram webhook registered")
		}
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(dbPool)
	authHandler := handlers.NewAuthHandler(authService, cfg.TelegramBotUsername)
	groupHandler := handlers.NewGroupHandler(groupService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	taskHandler := handlers.NewTaskHandler(taskService, proofs)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	userHandler := handlers.NewUserHandler(userService)
	telegramHandler := handlers.NewTelegramHandler(botService, cfg.TelegramWebhookSecret)

	limiter := middleware.NewRateLimiter(5, 30)
	go limiter.CleanupVisitors(rootCtx)

	r := mux.NewRouter()
	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))
	standardRouter.HandleFunc("/health", healthHandler.Health).Methods("GET")

	api := standardRouter.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/request-code", authHandler.RequestCode).Methods("POST")
	api.HandleFunc("/auth/verify-code", authHandler.VerifyCode).Methods("POST")
	api.HandleFunc("/auth/qr.png", authHandler.LoginQR).Methods("GET")
	api.HandleFunc("/telegram/webhook/{secret}", telegramHandler.Webhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))

	protected.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	protected.HandleFunc("/auth/profile", authHandler.UpdateProfile).Methods("PUT")

	protected.HandleFunc("/groups", groupHandler.CreateGroup).Methods("POST")
	protected.HandleFunc("/groups", groupHandler.ListGroups).Methods("GET")
	protected.HandleFunc("/groups/{groupId}", groupHandler.GetGroup).Methods("GET")
	protected.HandleFunc("/groups/{groupId}", groupHandler.UpdateGroup).Methods("PUT")
	protected.HandleFunc("/groups/{groupId}/members", groupHandler.AddMember).Methods("POST")
	protected.HandleFunc("/groups/{groupId}/members", groupHandler.ListMembers).Methods("GET")
	protected.HandleFunc("/groups/{groupId}/members/me", groupHandler.UpdateMyProfile).Methods("PUT")
	protected.HandleFunc("/groups/{groupId}/members/{memberId}/strikes", groupHandler.AdjustStrikes).Methods("POST")
	protected.HandleFunc("/groups/{groupId}/members/{memberId}/penalties/pay", groupHandler.PayPenalty).Methods("POST")
	protected.HandleFunc("/groups/{groupId}/delete-vote", groupHandler.VoteDelete).Methods("POST")

	protected.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/group/{groupId}", challengeHandler.ListByGroup).Methods("GET")
	protected.HandleFunc("/challenges/{challengeId}", challengeHandler.GetChallenge).Methods("GET")
	protected.HandleFunc("/challenges/{challengeId}", challengeHandler.UpdateChallenge).Methods("PUT")
	protected.HandleFunc("/challenges/{challengeId}", challengeHandler.DeleteChallenge).Methods("DELETE")

	protected.HandleFunc("/tasks/complete", taskHandler.Complete).Methods("POST")
	protected.HandleFunc("/tasks/toggle", taskHandler.Toggle).Methods("POST")
	protected.HandleFunc("/tasks/proof", taskHandler.UploadProof).Methods("POST")
	protected.HandleFunc("/tasks/completions/{completionId}", taskHandler.Undo).Methods("DELETE")
	protected.HandleFunc("/tasks/challenge/{challengeId}/my-completions", taskHandler.MyCompletions).Methods("GET")
	protected.HandleFunc("/tasks/task/{taskId}/completions", taskHandler.TaskCompletions).Methods("GET")

	protected.HandleFunc("/analytics/group/{groupId}", analyticsHandler.GroupStats).Methods("GET")
	protected.HandleFunc("/analytics/group/{groupId}/activity", analyticsHandler.Activity).Methods("GET")
	protected.HandleFunc("/analytics/user/stats", analyticsHandler.UserStats).Methods("GET")
	protected.HandleFunc("/analytics/challenge/{challengeId}/progress", analyticsHandler.ChallengeProgress).Methods("GET")

	protected.HandleFunc("/notifications/settings", notificationHandler.GetSettings).Methods("GET")
	protected.HandleFunc("/notifications/settings", notificationHandler.UpdateSettings).Methods("PUT")

	protected.HandleFunc("/users/search", userHandler.Search).Methods("GET")

	// CORS configuration
	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{cfg.FrontendURL}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	var handler http.Handler = corsHandler(r)
	if cfg.IsDevelopment() {
		handler = gorillaHandlers.CombinedLoggingHandler(os.Stdout, handler)
	}

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.LogSystem("Starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-rootCtx.Done():
		logger.LogSystem("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError("Server shutdown error", err)
	}

	logger.LogSystem("Server shutdown complete")
	return nil
}
