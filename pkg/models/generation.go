package models

import (
	"time"
)

// Статусы генерации
const (
	GenerationStatusPending   = "pending"
	GenerationStatusCompleted = "completed"
	GenerationStatusFailed    = "failed"
)

// Источники запросов
const (
	SourceWeb      = "web"
	SourceAPI      = "api"
	SourceTelegram = "telegram"
)

// Generation представляет один запуск генерации цифрового аватара
type Generation struct {
	ID              string     `json:"id" db:"id"`
	Source          string     `json:"source" db:"source"`
	Text            string     `json:"text" db:"text"`
	Status          string     `json:"status" db:"status"`
	ImageSize       int64      `json:"image_size" db:"image_size"`
	VoiceSampleSize int64      `json:"voice_sample_size" db:"voice_sample_size"`
	VideoPath       string     `json:"video_path,omitempty" db:"video_path"`
	Error           string     `json:"error,omitempty" db:"error"`
	DurationMs      int64      `json:"duration_ms" db:"duration_ms"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// IsFinished проверяет, завершена ли генерация
func (g *Generation) IsFinished() bool {
	return g.Status == GenerationStatusCompleted || g.Status == GenerationStatusFailed
}

// GenerationResult описывает итог генерации для записи в историю
type GenerationResult struct {
	Status          string
	ImageSize       int64
	VoiceSampleSize int64
	VideoPath       string
	Error           string
	Duration        time.Duration
	FinishedAt      time.Time
}
