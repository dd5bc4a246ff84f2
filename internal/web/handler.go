package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"digital-human/internal/pipeline"
	"digital-human/internal/store"
	"digital-human/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	pageTitle       = "Digital Human Generator"
	pageDescription = "Upload image, voice, and text to create a talking digital avatar"

	// Сообщение пользователю не раскрывает причину ошибки
	genericErrorMessage = "Error"

	// Часть формы, которая держится в памяти, остальное уходит во временные файлы
	multipartMemory = 32 << 20
)

// VideoGenerator запускает генерацию и возвращает путь к видео
type VideoGenerator interface {
	Generate(ctx context.Context, req pipeline.Request) (string, error)
}

// HistoryReader читает историю генераций
type HistoryReader interface {
	GetByID(ctx context.Context, id string) (*models.Generation, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Generation, error)
}

// Handler обслуживает страницу с формой и API генерации
type Handler struct {
	generator      VideoGenerator
	history        HistoryReader
	outputDir      string
	maxUploadBytes int64
	tmpl           *template.Template
	logger         *zap.Logger
}

type pageData struct {
	Title       string
	Description string
	Text        string
	VideoURL    string
	Error       string
}

// NewHandler создает новый веб-обработчик
func NewHandler(generator VideoGenerator, outputDir string, maxUploadBytes int64, logger *zap.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки шаблонов: %w", err)
	}

	return &Handler{
		generator:      generator,
		outputDir:      outputDir,
		maxUploadBytes: maxUploadBytes,
		tmpl:           tmpl,
		logger:         logger,
	}, nil
}

// WithHistory включает эндпоинт истории генераций
func (h *Handler) WithHistory(history HistoryReader) *Handler {
	h.history = history
	return h
}

// Routes возвращает маршруты веб-интерфейса
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.Index)
	r.Post("/generate", h.GenerateForm)
	r.Post("/api/generate", h.GenerateAPI)
	r.Get("/api/generations", h.ListGenerations)
	r.Get("/api/generations/{id}", h.GetGeneration)
	r.Handle("/output/*", http.StripPrefix("/output/", http.FileServer(http.Dir(h.outputDir))))

	return r
}

// Index отображает пустую форму
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageData{})
}

// GenerateForm обрабатывает отправку формы и отображает видео
func (h *Handler) GenerateForm(w http.ResponseWriter, r *http.Request) {
	req, cleanup, status, err := h.readRequest(w, r, models.SourceWeb)
	if err != nil {
		h.logger.Warn("некорректная форма", zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context())))
		h.render(w, status, pageData{Error: err.Error()})
		return
	}
	defer cleanup()

	videoPath, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.logger.Error("ошибка генерации видео",
			zap.Error(err),
			zap.String("request_id", middleware.GetReqID(r.Context())))
		h.render(w, http.StatusInternalServerError, pageData{Text: req.Text, Error: genericErrorMessage})
		return
	}

	h.render(w, http.StatusOK, pageData{Text: req.Text, VideoURL: videoURL(videoPath, time.Now())})
}

// GenerateAPI обрабатывает multipart запрос и отвечает JSON
func (h *Handler) GenerateAPI(w http.ResponseWriter, r *http.Request) {
	req, cleanup, status, err := h.readRequest(w, r, models.SourceAPI)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	defer cleanup()

	videoPath, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.logger.Error("ошибка генерации видео",
			zap.Error(err),
			zap.String("request_id", middleware.GetReqID(r.Context())))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": genericErrorMessage})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"video_path": videoPath,
		"video_url":  videoURL(videoPath, time.Now()),
	})
}

// ListGenerations возвращает историю генераций
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "история генераций отключена"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	generations, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("ошибка получения истории генераций", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": genericErrorMessage})
		return
	}

	if generations == nil {
		generations = []*models.Generation{}
	}
	writeJSON(w, http.StatusOK, generations)
}

// GetGeneration возвращает одну генерацию по идентификатору
func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "история генераций отключена"})
		return
	}

	id := chi.URLParam(r, "id")
	generation, err := h.history.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrGenerationNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("ошибка получения генерации", zap.String("generation_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": genericErrorMessage})
		return
	}

	writeJSON(w, http.StatusOK, generation)
}

// readRequest разбирает multipart форму с изображением, текстом и образцом голоса
func (h *Handler) readRequest(w http.ResponseWriter, r *http.Request, source string) (pipeline.Request, func(), int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return pipeline.Request{}, nil, http.StatusRequestEntityTooLarge,
				fmt.Errorf("размер загрузки превышает %d байт", maxBytesErr.Limit)
		}
		return pipeline.Request{}, nil, http.StatusBadRequest, fmt.Errorf("ошибка разбора формы: %w", err)
	}

	image, err := formFile(r, "image")
	if err != nil {
		r.MultipartForm.RemoveAll()
		return pipeline.Request{}, nil, http.StatusBadRequest, err
	}

	voiceSample, err := formFile(r, "voice_sample")
	if err != nil {
		image.Close()
		r.MultipartForm.RemoveAll()
		return pipeline.Request{}, nil, http.StatusBadRequest, err
	}

	cleanup := func() {
		image.Close()
		voiceSample.Close()
		r.MultipartForm.RemoveAll()
	}

	return pipeline.Request{
		Source:      source,
		Image:       image,
		Text:        r.FormValue("text"),
		VoiceSample: voiceSample,
	}, cleanup, http.StatusOK, nil
}

func formFile(r *http.Request, field string) (multipart.File, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("не передан файл %s: %w", field, err)
	}
	return file, nil
}

// videoURL строит адрес видео. Имя файла фиксировано, поэтому
// добавляется параметр против кеширования браузером.
func videoURL(videoPath string, now time.Time) string {
	return "/output/" + url.PathEscape(filepath.Base(videoPath)) + "?v=" + strconv.FormatInt(now.UnixNano(), 10)
}

func (h *Handler) render(w http.ResponseWriter, status int, data pageData) {
	data.Title = pageTitle
	data.Description = pageDescription

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.Error("ошибка отрисовки страницы", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
