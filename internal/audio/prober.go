package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Prober определяет параметры медиафайлов через ffprobe
type Prober struct {
	ffprobePath string
	logger      *zap.Logger
}

// NewProber создает новый Prober
func NewProber(ffprobePath string, logger *zap.Logger) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

// Duration возвращает длительность файла в секундах
func (p *Prober) Duration(ctx context.Context, inputFile string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		inputFile)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ошибка выполнения ffprobe: %w", err)
	}

	duration, err := ParseDuration(string(output))
	if err != nil {
		return 0, err
	}

	p.logger.Debug("длительность файла определена",
		zap.String("file", inputFile),
		zap.Float64("duration", duration))

	return duration, nil
}

// ParseDuration разбирает вывод ffprobe с форматом csv=p=0
func ParseDuration(output string) (float64, error) {
	durationStr := strings.TrimSpace(output)
	if durationStr == "" || durationStr == "N/A" {
		return 0, fmt.Errorf("ffprobe не вернул длительность")
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("ошибка парсинга длительности: %w", err)
	}

	return duration, nil
}
