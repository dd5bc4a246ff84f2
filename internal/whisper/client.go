package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client представляет клиент для работы с Whisper ASR API.
// Используется для получения текста образца голоса, который
// модели клонирования принимают как reference_text.
type Client struct {
	apiURL     string
	language   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создает новый клиент Whisper
func NewClient(apiURL, language string, logger *zap.Logger) *Client {
	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		language: language,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// TranscribeResponse представляет ответ от Whisper API
type TranscribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// TranscribeFile транскрибирует аудио файл
func (c *Client) TranscribeFile(ctx context.Context, filePath string) (*TranscribeResponse, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("аудио файл не найден: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer file.Close()

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("audio_file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания формы: %w", err)
	}

	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("ошибка копирования файла: %w", err)
	}

	writer.Close()

	params := url.Values{}
	params.Set("output", "json")
	params.Set("task", "transcribe")
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/asr?"+params.Encode(), &requestBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Info("отправка запроса на транскрибацию",
		zap.String("file", filePath),
		zap.String("api_url", c.apiURL),
		zap.String("params", params.Encode()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ошибка API (статус %d): %s", resp.StatusCode, string(body))
	}

	// Проверяем Content-Type, но разрешаем text/plain если это JSON
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") && !strings.Contains(contentType, "text/plain") {
		return nil, fmt.Errorf("неожиданный Content-Type: %s, тело: %s", contentType, string(body))
	}

	var response TranscribeResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа: %w, тело: %s", err, string(body))
	}

	c.logger.Info("транскрибация завершена",
		zap.String("file", filePath),
		zap.String("text", response.Text),
		zap.Float64("duration", response.Duration))

	return &response, nil
}

// Transcribe возвращает только распознанный текст
func (c *Client) Transcribe(ctx context.Context, filePath string) (string, error) {
	response, err := c.TranscribeFile(ctx, filePath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Text), nil
}

// HealthCheck проверяет доступность Whisper API
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("нездоровый статус API: %d", resp.StatusCode)
	}

	return nil
}
