package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"digital-human/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Ограничения для выборок и хранения
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
	MaxErrorLength   = 2000
)

// ErrGenerationNotFound возвращается, если генерация отсутствует в истории
var ErrGenerationNotFound = errors.New("генерация не найдена")

// generationRepository реализует GenerationRepository
type generationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewGenerationRepository создает новый репозиторий генераций
func NewGenerationRepository(db *pgxpool.Pool, logger *zap.Logger) GenerationRepository {
	return &generationRepository{
		db:     db,
		logger: logger,
	}
}

// Create записывает начало генерации
func (r *generationRepository) Create(ctx context.Context, generation *models.Generation) error {
	query := `
		INSERT INTO generations (id, source, text, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if generation.CreatedAt.IsZero() {
		generation.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		generation.ID, generation.Source, generation.Text, generation.Status, generation.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания генерации: %w", err)
	}

	r.logger.Debug("создана запись генерации", zap.String("generation_id", generation.ID))
	return nil
}

// Finish записывает итог генерации
func (r *generationRepository) Finish(ctx context.Context, id string, result models.GenerationResult) error {
	query := `
		UPDATE generations
		SET status = $2, image_size = $3, voice_sample_size = $4, video_path = $5,
		    error = $6, duration_ms = $7, finished_at = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		id,
		result.Status,
		result.ImageSize,
		result.VoiceSampleSize,
		result.VideoPath,
		truncateError(result.Error),
		result.Duration.Milliseconds(),
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления генерации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGenerationNotFound
	}

	r.logger.Debug("генерация обновлена",
		zap.String("generation_id", id),
		zap.String("status", result.Status))
	return nil
}

// GetByID получает генерацию по идентификатору
func (r *generationRepository) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	query := `
		SELECT id, source, text, status, image_size, voice_sample_size, video_path,
		       error, duration_ms, created_at, finished_at
		FROM generations
		WHERE id = $1`

	generation, err := scanGeneration(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGenerationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения генерации: %w", err)
	}

	return generation, nil
}

// ListRecent возвращает последние генерации
func (r *generationRepository) ListRecent(ctx context.Context, limit int) ([]*models.Generation, error) {
	query := `
		SELECT id, source, text, status, image_size, voice_sample_size, video_path,
		       error, duration_ms, created_at, finished_at
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории генераций: %w", err)
	}
	defer rows.Close()

	var generations []*models.Generation
	for rows.Next() {
		generation, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования генерации: %w", err)
		}
		generations = append(generations, generation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения истории генераций: %w", err)
	}

	return generations, nil
}

// CountOlderThan возвращает количество генераций старше before
func (r *generationRepository) CountOlderThan(ctx context.Context, before time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM generations WHERE created_at < $1`, before).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета генераций: %w", err)
	}
	return count, nil
}

// DeleteOlderThan удаляет генерации старше before
func (r *generationRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM generations WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления старых генераций: %w", err)
	}

	r.logger.Info("удалены старые генерации",
		zap.Time("before", before),
		zap.Int64("deleted", tag.RowsAffected()))

	return tag.RowsAffected(), nil
}

func scanGeneration(row pgx.Row) (*models.Generation, error) {
	var g models.Generation
	err := row.Scan(
		&g.ID,
		&g.Source,
		&g.Text,
		&g.Status,
		&g.ImageSize,
		&g.VoiceSampleSize,
		&g.VideoPath,
		&g.Error,
		&g.DurationMs,
		&g.CreatedAt,
		&g.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// clampLimit приводит лимит выборки к допустимому диапазону
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// truncateError обрезает текст ошибки по границе руны
func truncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxErrorLength {
		return msg
	}
	return string(runes[:MaxErrorLength])
}
