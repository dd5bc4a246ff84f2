package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"digital-human/internal/pipeline"
	"digital-human/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	// Лимиты безопасности
	MaxFileSize   = 25 * 1024 * 1024 // 25MB максимум для фото и аудио
	MaxTextLength = 4000             // Максимальная длина текста сообщения

	// Rate limiting
	MaxRequestsPerMinute = 30
	RateLimitWindow      = time.Minute

	downloadTimeout = 60 * time.Second
)

const (
	inputImage = "Фото"
	inputVoice = "Образец голоса"
	inputText  = "Текст"
)

var errFileTooLarge = errors.New("файл превышает допустимый размер")

// API подмножество методов Telegram Bot API, используемых обработчиком
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// VideoGenerator запускает генерацию и возвращает путь к видео
type VideoGenerator interface {
	Generate(ctx context.Context, req pipeline.Request) (string, error)
}

// Handler представляет обработчик сообщений Telegram
type Handler struct {
	api         API
	generator   VideoGenerator
	sessions    *SessionStore
	rateLimiter *RateLimiter
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewHandler создает новый обработчик
func NewHandler(api API, generator VideoGenerator, logger *zap.Logger) *Handler {
	return &Handler{
		api:         api,
		generator:   generator,
		sessions:    NewSessionStore(),
		rateLimiter: NewRateLimiter(MaxRequestsPerMinute, RateLimitWindow),
		httpClient:  &http.Client{Timeout: downloadTimeout},
		logger:      logger,
	}
}

// Sessions возвращает хранилище сессий для периодической очистки
func (h *Handler) Sessions() *SessionStore {
	return h.sessions
}

// HandleUpdate обрабатывает входящее обновление
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	message := update.Message
	if message == nil || message.Chat == nil {
		return nil
	}
	chatID := message.Chat.ID

	if !h.rateLimiter.IsAllowed(chatID) {
		h.logger.Warn("rate limit exceeded", zap.Int64("chat_id", chatID))
		return h.sendMessage(chatID, msgRateLimited)
	}

	h.logger.Debug("получено обновление",
		zap.Int64("chat_id", chatID),
		zap.Int("message_id", message.MessageID))

	if message.IsCommand() {
		return h.handleCommand(message)
	}

	switch {
	case len(message.Photo) > 0:
		// Telegram присылает несколько размеров, последний самый большой
		photo := message.Photo[len(message.Photo)-1]
		return h.handleFile(ctx, chatID, photo.FileID, photo.FileSize, inputImage, message.Caption)
	case message.Voice != nil:
		return h.handleFile(ctx, chatID, message.Voice.FileID, message.Voice.FileSize, inputVoice, message.Caption)
	case message.Audio != nil:
		return h.handleFile(ctx, chatID, message.Audio.FileID, message.Audio.FileSize, inputVoice, message.Caption)
	case message.Document != nil:
		doc := message.Document
		switch {
		case strings.HasPrefix(doc.MimeType, "image/"):
			return h.handleFile(ctx, chatID, doc.FileID, doc.FileSize, inputImage, message.Caption)
		case strings.HasPrefix(doc.MimeType, "audio/"):
			return h.handleFile(ctx, chatID, doc.FileID, doc.FileSize, inputVoice, message.Caption)
		}
		return h.sendMessage(chatID, msgUnsupported)
	case message.Text != "":
		return h.handleText(ctx, chatID, message.Text)
	default:
		return h.sendMessage(chatID, msgUnsupported)
	}
}

// handleCommand обрабатывает команды бота
func (h *Handler) handleCommand(message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		h.sessions.Reset(chatID)
		return h.sendMessage(chatID, msgStart)
	case "help":
		return h.sendMessage(chatID, msgHelp)
	case "reset":
		h.sessions.Reset(chatID)
		return h.sendMessage(chatID, msgReset)
	default:
		return h.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleText сохраняет текст для озвучивания
func (h *Handler) handleText(ctx context.Context, chatID int64, text string) error {
	text = sanitizeText(text)
	if text == "" {
		return h.sendMessage(chatID, msgUnsupported)
	}

	session := h.sessions.Update(chatID, func(s *Session) {
		s.Text = text
	})

	return h.advance(ctx, chatID, session, inputText)
}

// handleFile скачивает фото или образец голоса и сохраняет в сессию
func (h *Handler) handleFile(ctx context.Context, chatID int64, fileID string, fileSize int, kind, caption string) error {
	if fileSize > MaxFileSize {
		return h.sendMessage(chatID, msgFileTooLarge)
	}

	data, err := h.download(ctx, fileID)
	if err != nil {
		h.logger.Error("ошибка скачивания файла",
			zap.Int64("chat_id", chatID),
			zap.String("kind", kind),
			zap.Error(err))
		if errors.Is(err, errFileTooLarge) {
			return h.sendMessage(chatID, msgFileTooLarge)
		}
		return h.sendMessage(chatID, msgDownloadFailed)
	}

	caption = sanitizeText(caption)
	session := h.sessions.Update(chatID, func(s *Session) {
		if kind == inputImage {
			s.Image = data
		} else {
			s.VoiceSample = data
		}
		if caption != "" {
			s.Text = caption
		}
	})

	h.logger.Info("получен файл",
		zap.Int64("chat_id", chatID),
		zap.String("kind", kind),
		zap.Int("size", len(data)))

	return h.advance(ctx, chatID, session, kind)
}

// advance запускает генерацию, если собраны все данные, иначе подсказывает, чего не хватает
func (h *Handler) advance(ctx context.Context, chatID int64, session Session, received string) error {
	if !session.Ready() {
		return h.sendMessage(chatID, missingMessage(received, session.Missing()))
	}

	ready, ok := h.sessions.Take(chatID)
	if !ok {
		// Сессию уже забрал параллельный апдейт
		return nil
	}

	return h.generate(ctx, chatID, ready)
}

// generate запускает генерацию и отправляет видео в чат
func (h *Handler) generate(ctx context.Context, chatID int64, session Session) error {
	if err := h.sendMessage(chatID, msgGenerating); err != nil {
		h.logger.Warn("ошибка отправки сообщения о генерации", zap.Error(err))
	}

	if _, err := h.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadVideo)); err != nil {
		h.logger.Debug("ошибка отправки chat action", zap.Error(err))
	}

	videoPath, err := h.generator.Generate(ctx, pipeline.Request{
		Source:      models.SourceTelegram,
		Image:       bytes.NewReader(session.Image),
		Text:        session.Text,
		VoiceSample: bytes.NewReader(session.VoiceSample),
	})
	if err != nil {
		h.logger.Error("ошибка генерации видео",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return h.sendMessage(chatID, msgFailed)
	}

	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(videoPath))
	video.Caption = msgDone
	video.SupportsStreaming = true

	if _, err := h.api.Send(video); err != nil {
		h.logger.Error("ошибка отправки видео",
			zap.Int64("chat_id", chatID),
			zap.String("video_path", videoPath),
			zap.Error(err))
		return fmt.Errorf("ошибка отправки видео: %w", err)
	}

	h.logger.Info("видео отправлено", zap.Int64("chat_id", chatID))
	return nil
}

// download скачивает файл Telegram с ограничением размера
func (h *Handler) download(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := h.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ссылки на файл: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка скачивания файла: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("неудачный статус скачивания: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, errFileTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("получен пустой файл")
	}

	return data, nil
}

func (h *Handler) sendMessage(chatID int64, text string) error {
	_, err := h.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		h.logger.Error("ошибка отправки сообщения",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return err
	}
	return nil
}

// sanitizeText очищает текст от потенциально опасного содержимого
func sanitizeText(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}

	// Ограничиваем длину по символам
	if utf8.RuneCountInString(text) > MaxTextLength {
		text = string([]rune(text)[:MaxTextLength])
	}

	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r", "")

	return strings.TrimSpace(text)
}
