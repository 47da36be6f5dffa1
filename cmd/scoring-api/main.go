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

	"github.com/sirupsen/logrus"

	"github.com/olvesh/airsportslivetracking/internal/auth"
	"github.com/olvesh/airsportslivetracking/internal/config"
	"github.com/olvesh/airsportslivetracking/internal/feed"
	"github.com/olvesh/airsportslivetracking/internal/handler"
	"github.com/olvesh/airsportslivetracking/internal/ingest"
	"github.com/olvesh/airsportslivetracking/internal/metrics"
	"github.com/olvesh/airsportslivetracking/internal/repository"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

var (
	// Version будет установлен при сборке через ldflags
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализируем логирование
	logger := utils.NewLogger(config.LogLevel(), "text")
	logger.WithField("version", Version).Info("Starting live scoring backend")
	metrics.SetAppInfo(Version, Commit, BuildTime)

	// Создаем контекст приложения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем Redis репозиторий живых данных
	liveRepo, err := repository.NewRedisRepository(&cfg.Redis, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize Redis repository")
	}
	defer liveRepo.Close()

	if err := liveRepo.Ping(ctx); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to Redis")
	}
	logger.Info("Connected to Redis")

	// Инициализируем MySQL репозиторий справочных данных
	taskRepo, err := repository.NewMySQLRepository(&cfg.MySQL, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize MySQL repository")
	}
	defer taskRepo.Close()

	if err := taskRepo.Ping(ctx); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to MySQL")
	}
	logger.Info("Connected to MySQL")

	// Менеджер рассылки WebSocket клиентам
	broadcast := handler.NewBroadcastManager()

	// Менеджер расчетных воркеров
	manager := feed.NewManager(taskRepo, taskRepo, liveRepo, broadcast, cfg.Scoring, logger)
	go manager.Run(ctx)

	// Принимаем живые позиции трекеров из MQTT
	mqttClient, err := ingest.NewClient(&cfg.MQTT, logger, manager.HandlePosition)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize MQTT client")
	}
	defer mqttClient.Disconnect()

	if err := mqttClient.Connect(); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to MQTT broker")
	}
	logger.Info("Connected to MQTT broker")

	// Аутентификация операторских endpoints
	authLogger := logrus.New()
	if level, err := logrus.ParseLevel(config.LogLevel()); err == nil {
		authLogger.SetLevel(level)
	}
	authCache := auth.NewCache(liveRepo.GetClient(), cfg.Auth.CacheTTL)
	authValidator := auth.NewValidator(cfg.Auth.Endpoint, authCache, authLogger)
	authMiddleware := auth.NewMiddleware(authValidator, authLogger)

	// HTTP сервер трансляции и API
	server := handler.NewServer(cfg, liveRepo, taskRepo, broadcast, authMiddleware, logger)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithField("error", err).Fatal("Failed to start HTTP server")
		}
	}()

	// Ждем сигнала остановки
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Останавливаем прием позиций и воркеры расчета
	mqttClient.Disconnect()
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("HTTP server shutdown error")
	}

	logger.Info("Server stopped gracefully")
}
