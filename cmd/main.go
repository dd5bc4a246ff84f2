package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"digital-human/internal/bot"
	"digital-human/internal/config"
	"digital-human/internal/metrics"
	"digital-human/internal/migrations"
	"digital-human/internal/pipeline"
	"digital-human/internal/scheduler"
	"digital-human/internal/store"
	"digital-human/internal/tts"
	"digital-human/internal/video"
	"digital-human/internal/web"
	"digital-human/internal/whisper"
	"digital-human/internal/workspace"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения Digital Human Generator",
		zap.String("env", cfg.App.Env),
		zap.String("voice_provider", cfg.Voice.Provider),
		zap.String("video_provider", cfg.Video.Provider))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Рабочие директории создаются и при старте, и перед каждой генерацией
	ws := workspace.New(cfg.Workspace.InputDir, cfg.Workspace.OutputDir, logger)
	if err := ws.EnsureDirs(); err != nil {
		logger.Fatal("ошибка создания рабочих директорий", zap.Error(err))
	}

	checks := map[string]healthChecker{}

	// Инициализация Whisper клиента
	var transcriber tts.ReferenceTranscriber
	if cfg.Whisper.APIURL != "" {
		whisperClient := whisper.NewClient(cfg.Whisper.APIURL, cfg.Voice.Language, logger)
		transcriber = whisperClient
		checks["whisper"] = whisperClient
		logger.Info("Whisper клиент инициализирован", zap.String("url", cfg.Whisper.APIURL))
	} else {
		logger.Info("транскрибация образца голоса отключена")
	}

	// Инициализация сервиса клонирования голоса
	voiceCloner, err := tts.NewVoiceCloner(cfg.Voice, transcriber, logger)
	if err != nil {
		logger.Fatal("ошибка создания сервиса синтеза речи", zap.Error(err))
	}

	// Инициализация генератора видео
	videoGenerator, err := video.NewGenerator(cfg.Video, logger)
	if err != nil {
		logger.Fatal("ошибка создания генератора видео", zap.Error(err))
	}
	if checker, ok := videoGenerator.(healthChecker); ok {
		checks["video"] = checker
	}

	// Недоступность внешних моделей при старте не фатальна, они могут подниматься дольше
	checkDependencies(ctx, checks, logger)

	// Инициализация метрик
	metricsSystem := metrics.New(logger, prometheus.DefaultRegisterer)
	metricsHandler := metrics.NewHandler(prometheus.DefaultGatherer, logger)

	opts := []pipeline.Option{pipeline.WithMetrics(metricsSystem)}

	// Инициализация планировщика задач
	taskScheduler := scheduler.NewScheduler(logger)

	// История генераций в базе данных опциональна
	var generations store.GenerationRepository
	if cfg.Database.Enabled {
		db, err := store.NewStore(cfg, logger)
		if err != nil {
			logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
		}
		defer db.Close()

		if err := migrations.RunMigrations(cfg, logger); err != nil {
			logger.Fatal("ошибка применения миграций", zap.Error(err))
		}

		generations = db.Generation()
		opts = append(opts, pipeline.WithHistory(generations))
		taskScheduler.AddJob(scheduler.NewRetentionJob(generations, cfg.Retention.MaxAge, logger))
	} else {
		logger.Info("история генераций отключена")
	}

	generator := pipeline.NewGenerator(ws, voiceCloner, videoGenerator, logger, opts...)

	// Инициализация веб-интерфейса
	webHandler, err := web.NewHandler(generator, ws.OutputDir(), cfg.App.MaxUploadBytes(), logger)
	if err != nil {
		logger.Fatal("ошибка инициализации веб-интерфейса", zap.Error(err))
	}
	if generations != nil {
		webHandler.WithHistory(generations)
	}

	router := webHandler.Routes()
	router.Handle("/metrics", metricsHandler.MetricsHandler())
	router.Get("/health", metricsHandler.HealthHandler)

	// Инициализация Telegram бота
	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.BotToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
		}

		logger.Info("Telegram бот инициализирован",
			zap.String("username", botAPI.Self.UserName),
			zap.Int64("id", botAPI.Self.ID))

		botHandler := bot.NewHandler(botAPI, generator, logger)
		taskScheduler.AddJob(scheduler.NewSessionCleanupJob(botHandler.Sessions(), logger))

		go handleUpdates(ctx, botAPI, botHandler, logger)
	} else {
		logger.Info("Telegram бот отключен")
	}

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	// Запуск планировщика задач
	go taskScheduler.Start(ctx, cfg.Retention.Interval)

	logger.Info("приложение запущено и готово к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)))

	// Ожидание сигнала завершения
	<-sigChan
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")

	if botAPI != nil {
		botAPI.StopReceivingUpdates()
	}
	cancel()

	// Генерация может идти долго, ждем ее завершения ограниченное время
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка при остановке HTTP сервера", zap.Error(err))
	}

	logger.Info("приложение завершено")
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// checkDependencies проверяет доступность внешних сервисов
func checkDependencies(ctx context.Context, checks map[string]healthChecker, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for name, checker := range checks {
		if err := checker.HealthCheck(ctx); err != nil {
			logger.Warn("внешний сервис недоступен", zap.String("service", name), zap.Error(err))
			continue
		}
		logger.Info("внешний сервис доступен", zap.String("service", name))
	}
}

// initLogger инициализирует логгер
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewDevelopmentConfig()
	if cfg.App.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = cfg.App.GetLogLevel()
	zapConfig.OutputPaths = []string{"stdout", "logs/app.log"}
	zapConfig.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return zapConfig.Build()
}

// handleUpdates обрабатывает обновления от Telegram
func handleUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger *zap.Logger) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			// Обрабатываем обновление в горутине, генерации все равно выполняются по одной
			go func(update tgbotapi.Update) {
				if err := handler.HandleUpdate(ctx, update); err != nil {
					logger.Error("ошибка обработки обновления",
						zap.Int64("chat_id", update.Message.Chat.ID),
						zap.Error(err))
				}
			}(update)

		case <-ctx.Done():
			logger.Info("остановка обработки обновлений")
			return
		}
	}
}
