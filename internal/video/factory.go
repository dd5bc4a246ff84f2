package video

import (
	"fmt"
	"time"

	"digital-human/internal/audio"
	"digital-human/internal/config"

	"go.uber.org/zap"
)

// NewGenerator создает генератор видео на основе конфигурации
func NewGenerator(cfg config.VideoConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case config.VideoProviderSadTalker:
		options := SadTalkerOptions{
			Preprocess: cfg.Preprocess,
			StillMode:  cfg.StillMode,
			Enhancer:   cfg.Enhancer,
		}
		return NewSadTalkerClient(cfg.BaseURL, options, time.Duration(cfg.TimeoutSeconds)*time.Second, logger), nil
	case config.VideoProviderFFmpeg:
		return NewFFmpegGenerator(cfg.FFmpegPath, audio.NewProber(cfg.FFprobePath, logger), logger), nil
	default:
		return nil, fmt.Errorf("неподдерживаемый провайдер видео: %s. Поддерживаются: '%s', '%s'",
			cfg.Provider, config.VideoProviderSadTalker, config.VideoProviderFFmpeg)
	}
}
