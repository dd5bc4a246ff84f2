package tts

import (
	"fmt"
	"time"

	"digital-human/internal/config"

	"go.uber.org/zap"
)

// NewVoiceCloner создает сервис клонирования голоса на основе конфигурации.
// transcriber может быть nil.
func NewVoiceCloner(cfg config.VoiceConfig, transcriber ReferenceTranscriber, logger *zap.Logger) (VoiceCloner, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case config.VoiceProviderXTTS:
		service := NewXTTSService(logger, cfg.BaseURL, cfg.Language, timeout)
		if transcriber != nil {
			service.WithTranscriber(transcriber)
		}
		return service, nil
	case config.VoiceProviderAllTalk:
		return NewAllTalkService(logger, cfg.BaseURL, cfg.Language, cfg.AllTalkVoicesDir, timeout), nil
	default:
		return nil, fmt.Errorf("неподдерживаемый провайдер голоса: %s. Поддерживаются: '%s', '%s'",
			cfg.Provider, config.VoiceProviderXTTS, config.VoiceProviderAllTalk)
	}
}
