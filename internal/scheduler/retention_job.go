package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// GenerationPruner удаляет старые записи истории
type GenerationPruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// RetentionJob удаляет записи истории генераций старше maxAge
type RetentionJob struct {
	pruner GenerationPruner
	maxAge time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewRetentionJob создает джобу очистки истории
func NewRetentionJob(pruner GenerationPruner, maxAge time.Duration, logger *zap.Logger) *RetentionJob {
	return &RetentionJob{
		pruner: pruner,
		maxAge: maxAge,
		now:    time.Now,
		logger: logger,
	}
}

// Name возвращает имя джобы
func (j *RetentionJob) Name() string {
	return "generation_retention"
}

// Run удаляет устаревшие записи
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.maxAge <= 0 {
		j.logger.Debug("очистка истории отключена")
		return nil
	}

	before := j.now().Add(-j.maxAge)
	deleted, err := j.pruner.DeleteOlderThan(ctx, before)
	if err != nil {
		return fmt.Errorf("ошибка очистки истории генераций: %w", err)
	}

	j.logger.Info("история генераций очищена",
		zap.Time("before", before),
		zap.Int64("deleted", deleted))

	return nil
}
