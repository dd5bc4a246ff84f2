package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AllTalkService клонирует голос через AllTalk TTS.
// AllTalk берет голоса только из своей директории voices, поэтому образец
// копируется туда под именем, зависящим от содержимого.
type AllTalkService struct {
	logger     *zap.Logger
	baseURL    string
	language   string
	voicesDir  string
	httpClient *http.Client
}

// NewAllTalkService создает новый AllTalk TTS сервис
func NewAllTalkService(logger *zap.Logger, baseURL, language, voicesDir string, timeout time.Duration) *AllTalkService {
	return &AllTalkService{
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		language:  language,
		voicesDir: voicesDir,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SynthesizeVoice синтезирует речь голосом из образца через AllTalk
func (s *AllTalkService) SynthesizeVoice(ctx context.Context, text, referencePath, outputPath string) error {
	voiceName, err := s.installVoice(referencePath)
	if err != nil {
		return fmt.Errorf("ошибка подготовки голоса: %w", err)
	}

	s.logger.Info("🎵 генерируем аудио через AllTalk TTS",
		zap.String("voice", voiceName),
		zap.Int("text_length", len(text)))

	audioURL, err := s.generateAudio(ctx, text, voiceName)
	if err != nil {
		return fmt.Errorf("ошибка генерации аудио: %w", err)
	}

	size, err := s.downloadAudioFile(ctx, audioURL, outputPath)
	if err != nil {
		return fmt.Errorf("ошибка скачивания аудио: %w", err)
	}

	s.logger.Info("🎵 аудио успешно сгенерировано",
		zap.String("output", outputPath),
		zap.Int64("audio_size", size))

	return nil
}

// installVoice копирует образец в директорию голосов AllTalk
func (s *AllTalkService) installVoice(referencePath string) (string, error) {
	data, err := os.ReadFile(referencePath)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения образца голоса: %w", err)
	}

	sum := sha256.Sum256(data)
	voiceName := "clone_" + hex.EncodeToString(sum[:8]) + ".wav"
	voicePath := filepath.Join(s.voicesDir, voiceName)

	if _, err := os.Stat(voicePath); err == nil {
		return voiceName, nil
	}

	if err := os.MkdirAll(s.voicesDir, 0755); err != nil {
		return "", fmt.Errorf("ошибка создания директории голосов: %w", err)
	}
	if err := os.WriteFile(voicePath, data, 0644); err != nil {
		return "", fmt.Errorf("ошибка записи голоса: %w", err)
	}

	s.logger.Debug("голос установлен в AllTalk", zap.String("path", voicePath))
	return voiceName, nil
}

// generateAudio запускает генерацию и возвращает URL результата
func (s *AllTalkService) generateAudio(ctx context.Context, text, voiceName string) (string, error) {
	data := url.Values{}
	data.Set("text_input", text)
	data.Set("text_filtering", "none")
	data.Set("character_voice_gen", voiceName)
	data.Set("narrator_enabled", "false")
	data.Set("text_not_inside", "character")
	data.Set("language", s.language)
	data.Set("output_file_name", "digital_human")
	data.Set("output_file_timestamp", "true")
	data.Set("autoplay", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/tts-generate", strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AllTalk TTS вернул ошибку %d: %s", resp.StatusCode, string(responseBody))
	}

	var response struct {
		Status         string `json:"status"`
		OutputFilePath string `json:"output_file_path"`
		OutputFileURL  string `json:"output_file_url"`
	}

	if err := json.Unmarshal(responseBody, &response); err != nil {
		return "", fmt.Errorf("ошибка парсинга ответа: %w", err)
	}

	if response.Status != "generate-success" {
		return "", fmt.Errorf("AllTalk TTS вернул статус: %s", response.Status)
	}

	return s.resolveURL(response.OutputFileURL)
}

// resolveURL превращает относительный URL AllTalk в абсолютный
func (s *AllTalkService) resolveURL(fileURL string) (string, error) {
	base, err := url.Parse(s.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("некорректный адрес AllTalk: %w", err)
	}
	ref, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("некорректный URL аудио: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// downloadAudioFile скачивает аудио файл по URL в outputPath
func (s *AllTalkService) downloadAudioFile(ctx context.Context, audioURL, outputPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания запроса для скачивания: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ошибка скачивания аудио файла: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ошибка скачивания аудио: статус %d", resp.StatusCode)
	}

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return n, fmt.Errorf("ошибка чтения аудио данных: %w", err)
	}

	return n, nil
}
