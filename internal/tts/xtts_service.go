package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// XTTSService клонирует голос через HTTP API сервера XTTS
type XTTSService struct {
	logger      *zap.Logger
	baseURL     string
	language    string
	client      *http.Client
	transcriber ReferenceTranscriber
}

// NewXTTSService создает новый XTTS сервис
func NewXTTSService(logger *zap.Logger, baseURL, language string, timeout time.Duration) *XTTSService {
	return &XTTSService{
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithTranscriber включает передачу текста образца голоса в модель
func (s *XTTSService) WithTranscriber(t ReferenceTranscriber) *XTTSService {
	s.transcriber = t
	return s
}

// SynthesizeVoice синтезирует речь голосом из образца
func (s *XTTSService) SynthesizeVoice(ctx context.Context, text, referencePath, outputPath string) error {
	s.logger.Info("🎵 клонируем голос через XTTS",
		zap.String("reference", referencePath),
		zap.Int("text_length", len(text)))

	referenceText := ""
	if s.transcriber != nil {
		var err error
		referenceText, err = s.transcriber.Transcribe(ctx, referencePath)
		if err != nil {
			// Текст образца лишь улучшает качество, без него модель тоже работает
			s.logger.Warn("не удалось распознать образец голоса", zap.Error(err))
			referenceText = ""
		}
	}

	audioData, err := s.generateAudio(ctx, text, referencePath, referenceText)
	if err != nil {
		return fmt.Errorf("ошибка генерации аудио: %w", err)
	}

	if err := os.WriteFile(outputPath, audioData, 0644); err != nil {
		return fmt.Errorf("ошибка записи аудио: %w", err)
	}

	s.logger.Info("🎵 аудио успешно сгенерировано",
		zap.String("output", outputPath),
		zap.Int("audio_size", len(audioData)))

	return nil
}

// generateAudio отправляет текст и образец голоса и получает WAV
func (s *XTTSService) generateAudio(ctx context.Context, text, referencePath, referenceText string) ([]byte, error) {
	url := fmt.Sprintf("%s/tts_to_audio", s.baseURL)

	reference, err := os.Open(referencePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия образца голоса: %w", err)
	}
	defer reference.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	_ = writer.WriteField("text", text)
	_ = writer.WriteField("language", s.language)
	if referenceText != "" {
		_ = writer.WriteField("reference_text", referenceText)
	}

	part, err := writer.CreateFormFile("speaker_wav", filepath.Base(referencePath))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания формы: %w", err)
	}
	if _, err := io.Copy(part, reference); err != nil {
		return nil, fmt.Errorf("ошибка копирования образца голоса: %w", err)
	}

	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	s.logger.Debug("🎵 отправляем запрос к XTTS",
		zap.String("url", url),
		zap.Bool("with_reference_text", referenceText != ""))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("неожиданный статус от XTTS: %d, тело: %s", resp.StatusCode, respBody)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения аудио данных: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("XTTS вернул пустое аудио")
	}

	return audioData, nil
}
