package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-battle/config"
	"quiz-battle/handler"
	"quiz-battle/service"
	"quiz-battle/storage"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// newLogger создает логгер по уровню из конфигурации
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Инициализация логгера
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting Quiz Battle Service", zap.Bool("env_file", cfg.EnvFileLoaded))

	deps := service.Dependencies{}

	// Хранилище итогов матчей
	var results handler.ResultReader
	if cfg.RedisAddr != "" {
		redisStorage, err := storage.NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ResultTTL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis storage", zap.Error(err))
		}
		defer redisStorage.Close()

		deps.Sink = redisStorage
		results = redisStorage
		logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR is empty, match results will not be stored")
	}

	// Внешний сервис квизов
	if cfg.QuizServiceURL != "" {
		quizClient := service.NewHTTPQuizClient(cfg.QuizServiceURL, cfg.QuizFetchTimeout)
		deps.Questions = quizClient
		deps.Grades = quizClient
	} else {
		logger.Warn("QUIZ_SERVICE_URL is empty, using built-in questions")
	}

	hub := handler.NewHub(logger)
	deps.Transport = hub

	battleService := service.NewBattleService(deps, logger, cfg.Battle)
	identities := service.NewIdentityResolver(cfg.JWTSecret, logger)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, every connection will be a guest")
	}

	janitor, err := service.NewJanitor(battleService, cfg.SweepInterval, logger)
	if err != nil {
		logger.Fatal("Failed to initialize janitor", zap.Error(err))
	}

	apiHandler := handler.NewAPIHandler(battleService, hub, results, logger)
	wsHandler := handler.NewWSHandler(battleService, hub, identities, cfg.AllowedOrigins, logger)
	router := handler.NewRouter(apiHandler, wsHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	// Настройка HTTP сервера. WriteTimeout не задан: он оборвал бы websocket соединения.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     corsHandler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	janitor.Start()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := janitor.Stop(); err != nil {
		logger.Warn("Janitor stopped with error", zap.Error(err))
	}

	// Shutdown не ждет hijacked websocket соединения, закрываем их сами
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	battleService.Close()

	logger.Info("Server exited")
}
