package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// maxStderrTail ограничивает объем вывода ffmpeg в тексте ошибки
const maxStderrTail = 2048

// FFmpegGenerator собирает видео из неподвижного изображения и речи.
// Используется, когда модель анимации недоступна.
type FFmpegGenerator struct {
	ffmpegPath string
	prober     DurationProber
	logger     *zap.Logger
}

// NewFFmpegGenerator создает новый генератор на базе ffmpeg
func NewFFmpegGenerator(ffmpegPath string, prober DurationProber, logger *zap.Logger) *FFmpegGenerator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegGenerator{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		logger:     logger,
	}
}

// GenerateVideo собирает mp4 длиной в аудиодорожку
func (g *FFmpegGenerator) GenerateVideo(ctx context.Context, imagePath, audioPath, outputPath string) error {
	duration, err := g.prober.Duration(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("ошибка получения длительности аудио: %w", err)
	}
	if duration <= 0 {
		return fmt.Errorf("аудио %s имеет нулевую длительность", audioPath)
	}

	args := buildArgs(imagePath, audioPath, outputPath, duration)

	g.logger.Info("🎬 собираем видео через ffmpeg",
		zap.String("image", imagePath),
		zap.String("audio", audioPath),
		zap.Float64("duration", duration))

	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderr.Bytes()
		if len(tail) > maxStderrTail {
			tail = tail[len(tail)-maxStderrTail:]
		}
		g.logger.Error("ошибка выполнения ffmpeg",
			zap.Error(err),
			zap.ByteString("stderr", tail))
		return fmt.Errorf("ошибка выполнения ffmpeg: %w: %s", err, tail)
	}

	g.logger.Info("🎬 видео собрано", zap.String("output", outputPath))
	return nil
}

// buildArgs формирует аргументы ffmpeg для статичного видео с аудио
func buildArgs(imagePath, audioPath, outputPath string, duration float64) []string {
	return []string{
		"-y", // Перезаписать файл
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		// libx264 требует четные размеры кадра
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-t", fmt.Sprintf("%.3f", duration),
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
}
