package video

import "context"

// Generator представляет интерфейс генератора говорящей головы.
// Анимирует изображение imagePath под аудио audioPath и записывает mp4 в outputPath.
type Generator interface {
	GenerateVideo(ctx context.Context, imagePath, audioPath, outputPath string) error
}

// DurationProber определяет длительность медиафайла в секундах
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}
