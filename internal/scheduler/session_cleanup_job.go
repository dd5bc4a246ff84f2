package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// SessionCleaner удаляет устаревшие сессии бота
type SessionCleaner interface {
	Cleanup() int
}

// SessionCleanupJob очищает незавершенные сессии Telegram бота
type SessionCleanupJob struct {
	cleaner SessionCleaner
	logger  *zap.Logger
}

// NewSessionCleanupJob создает джобу очистки сессий
func NewSessionCleanupJob(cleaner SessionCleaner, logger *zap.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		cleaner: cleaner,
		logger:  logger,
	}
}

// Name возвращает имя джобы
func (j *SessionCleanupJob) Name() string {
	return "bot_session_cleanup"
}

// Run удаляет устаревшие сессии
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	if removed := j.cleaner.Cleanup(); removed > 0 {
		j.logger.Info("удалены устаревшие сессии бота", zap.Int("removed", removed))
	}
	return nil
}
