package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"digital-human/internal/config"
	"digital-human/internal/migrations"
	"digital-human/internal/store"
	"digital-human/internal/workspace"

	"go.uber.org/zap"
)

func main() {
	var (
		maxAgeHours = flag.Int("max-age-hours", 0, "Удалить записи истории старше указанного количества часов (0 = RETENTION_MAX_AGE_HOURS)")
		dryRun      = flag.Bool("dry-run", false, "Показать что будет удалено без фактического удаления")
		artifacts   = flag.Bool("artifacts", false, "Удалить также файлы последней генерации из рабочих директорий")
		status      = flag.Bool("migrations-status", false, "Вывести статус миграций перед очисткой")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	maxAge := cfg.Retention.MaxAge
	if *maxAgeHours > 0 {
		maxAge = time.Duration(*maxAgeHours) * time.Hour
	}

	ctx := context.Background()

	if cfg.Database.Enabled {
		db, err := store.NewStore(cfg, logger)
		if err != nil {
			logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
		}
		defer db.Close()

		if *status {
			if err := migrations.GetMigrationStatus(cfg, logger); err != nil {
				logger.Fatal("Ошибка получения статуса миграций", zap.Error(err))
			}
		}

		if err := cleanupHistory(ctx, db.Generation(), maxAge, *dryRun, logger); err != nil {
			logger.Fatal("Ошибка очистки истории генераций", zap.Error(err))
		}
	} else {
		logger.Info("База данных отключена, очистка истории пропущена")
	}

	if *artifacts {
		ws := workspace.New(cfg.Workspace.InputDir, cfg.Workspace.OutputDir, logger)
		if err := cleanupArtifacts(ws, *dryRun, logger); err != nil {
			logger.Fatal("Ошибка удаления файлов", zap.Error(err))
		}
	}

	logger.Info("Очистка завершена успешно")
}

func cleanupHistory(ctx context.Context, generations store.GenerationRepository, maxAge time.Duration, dryRun bool, logger *zap.Logger) error {
	if maxAge <= 0 {
		return fmt.Errorf("некорректный возраст записей: %s", maxAge)
	}

	before := time.Now().Add(-maxAge)

	if dryRun {
		count, err := generations.CountOlderThan(ctx, before)
		if err != nil {
			return fmt.Errorf("ошибка подсчета записей: %w", err)
		}

		logger.Info("DRY RUN: Будет удалено записей истории",
			zap.Time("before", before),
			zap.Int64("to_delete", count))
		return nil
	}

	deleted, err := generations.DeleteOlderThan(ctx, before)
	if err != nil {
		return fmt.Errorf("ошибка удаления записей: %w", err)
	}

	logger.Info("Удалены записи истории",
		zap.Time("before", before),
		zap.Int64("deleted_count", deleted))

	return nil
}

func cleanupArtifacts(ws *workspace.Workspace, dryRun bool, logger *zap.Logger) error {
	if dryRun {
		logger.Info("DRY RUN: Будут удалены файлы",
			zap.Strings("files", []string{ws.ImagePath(), ws.VoiceSamplePath(), ws.SpeechPath(), ws.VideoPath()}))
		return nil
	}

	removed, err := ws.RemoveArtifacts()
	if err != nil {
		return err
	}

	logger.Info("Удалены файлы генерации", zap.Strings("files", removed))
	return nil
}
