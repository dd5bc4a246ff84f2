package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SadTalkerOptions содержит параметры анимации
type SadTalkerOptions struct {
	Preprocess string // crop, resize, full
	StillMode  bool
	Enhancer   string // gfpgan или пусто
}

// SadTalkerClient генерирует видео через HTTP API SadTalker
type SadTalkerClient struct {
	baseURL    string
	options    SadTalkerOptions
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSadTalkerClient создает новый клиент SadTalker
func NewSadTalkerClient(baseURL string, options SadTalkerOptions, timeout time.Duration, logger *zap.Logger) *SadTalkerClient {
	return &SadTalkerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		options: options,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GenerateVideo отправляет изображение и аудио и сохраняет полученное видео
func (c *SadTalkerClient) GenerateVideo(ctx context.Context, imagePath, audioPath, outputPath string) error {
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	if err := attachFile(writer, "source_image", imagePath); err != nil {
		return err
	}
	if err := attachFile(writer, "driven_audio", audioPath); err != nil {
		return err
	}

	_ = writer.WriteField("preprocess", c.options.Preprocess)
	_ = writer.WriteField("still_mode", strconv.FormatBool(c.options.StillMode))
	if c.options.Enhancer != "" {
		_ = writer.WriteField("enhancer", c.options.Enhancer)
	}

	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", &requestBody)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Info("🎬 отправка запроса на генерацию видео",
		zap.String("image", imagePath),
		zap.String("audio", audioPath),
		zap.String("api_url", c.baseURL),
		zap.String("preprocess", c.options.Preprocess),
		zap.Bool("still_mode", c.options.StillMode))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ошибка API (статус %d): %s", resp.StatusCode, string(body))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "video/") && !strings.Contains(contentType, "octet-stream") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("неожиданный Content-Type: %s, тело: %s", contentType, string(body))
	}

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("ошибка создания файла видео: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка сохранения видео: %w", err)
	}

	c.logger.Info("🎬 видео сгенерировано",
		zap.String("output", outputPath),
		zap.Int64("size", size))

	return nil
}

// HealthCheck проверяет доступность SadTalker API
func (c *SadTalkerClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
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

func attachFile(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("ошибка создания формы: %w", err)
	}

	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("ошибка копирования файла %s: %w", path, err)
	}

	return nil
}
