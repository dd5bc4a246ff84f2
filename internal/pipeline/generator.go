package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"digital-human/internal/tts"
	"digital-human/internal/video"
	"digital-human/internal/workspace"
	"digital-human/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Этапы генерации для метрик
const (
	StageSaveInputs      = "save_inputs"
	StageSynthesizeVoice = "synthesize_voice"
	StageGenerateVideo   = "generate_video"
)

// ErrMissingInput возвращается, когда поверхность не передала файл
var ErrMissingInput = errors.New("не передан обязательный файл")

// Request содержит входные данные одной генерации
type Request struct {
	Source      string
	Image       io.Reader
	Text        string
	VoiceSample io.Reader
}

// HistoryRecorder сохраняет историю генераций
type HistoryRecorder interface {
	Create(ctx context.Context, generation *models.Generation) error
	Finish(ctx context.Context, id string, result models.GenerationResult) error
}

// MetricsRecorder собирает метрики генераций
type MetricsRecorder interface {
	GenerationStarted()
	RecordGeneration(success bool, seconds float64)
	RecordStage(stage string, seconds float64)
	RecordUpload(kind string, size int64)
}

// Generator связывает сохранение входных файлов, синтез голоса и генерацию видео.
// Все артефакты лежат по фиксированным путям, поэтому запросы выполняются по одному.
type Generator struct {
	ws      *workspace.Workspace
	voice   tts.VoiceCloner
	video   video.Generator
	history HistoryRecorder
	metrics MetricsRecorder
	logger  *zap.Logger

	mu sync.Mutex
}

// Option настраивает Generator
type Option func(*Generator)

// WithHistory включает запись истории генераций
func WithHistory(history HistoryRecorder) Option {
	return func(g *Generator) {
		if history != nil {
			g.history = history
		}
	}
}

// WithMetrics включает сбор метрик
func WithMetrics(metrics MetricsRecorder) Option {
	return func(g *Generator) {
		if metrics != nil {
			g.metrics = metrics
		}
	}
}

// NewGenerator создает новый Generator
func NewGenerator(ws *workspace.Workspace, voice tts.VoiceCloner, video video.Generator, logger *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		ws:      ws,
		voice:   voice,
		video:   video,
		history: noopHistory{},
		metrics: noopMetrics{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// VideoPath возвращает фиксированный путь итогового видео
func (g *Generator) VideoPath() string {
	return g.ws.VideoPath()
}

// Generate выполняет полный цикл генерации и возвращает путь к видео.
// Ошибки коллабораторов возвращаются без изменений.
func (g *Generator) Generate(ctx context.Context, req Request) (videoPath string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	generation := &models.Generation{
		ID:        uuid.NewString(),
		Source:    req.Source,
		Text:      req.Text,
		Status:    models.GenerationStatusPending,
		CreatedAt: time.Now(),
	}
	logger := g.logger.With(
		zap.String("generation_id", generation.ID),
		zap.String("source", req.Source))

	logger.Info("🧑 запуск генерации цифрового аватара", zap.Int("text_length", len(req.Text)))

	g.metrics.GenerationStarted()
	if herr := g.history.Create(ctx, generation); herr != nil {
		logger.Warn("не удалось записать генерацию в историю", zap.Error(herr))
	}

	var imageSize, voiceSampleSize int64
	defer func() {
		elapsed := time.Since(generation.CreatedAt)
		result := models.GenerationResult{
			Status:          models.GenerationStatusCompleted,
			ImageSize:       imageSize,
			VoiceSampleSize: voiceSampleSize,
			VideoPath:       videoPath,
			Duration:        elapsed,
			FinishedAt:      time.Now(),
		}
		if err != nil {
			result.Status = models.GenerationStatusFailed
			result.Error = err.Error()
			logger.Error("ошибка генерации", zap.Error(err), zap.Duration("elapsed", elapsed))
		} else {
			logger.Info("🧑 генерация завершена",
				zap.String("video", videoPath),
				zap.Duration("elapsed", elapsed))
		}

		g.metrics.RecordGeneration(err == nil, elapsed.Seconds())
		// История пишется даже если клиент уже отключился
		if herr := g.history.Finish(context.WithoutCancel(ctx), generation.ID, result); herr != nil {
			logger.Warn("не удалось обновить историю генерации", zap.Error(herr))
		}
	}()

	if req.Image == nil || req.VoiceSample == nil {
		return "", ErrMissingInput
	}

	stageStart := time.Now()
	if err = g.ws.EnsureDirs(); err != nil {
		return "", err
	}

	imageSize, err = g.ws.SaveImage(req.Image)
	if err != nil {
		return "", err
	}
	voiceSampleSize, err = g.ws.SaveVoiceSample(req.VoiceSample)
	if err != nil {
		return "", err
	}
	g.metrics.RecordUpload("image", imageSize)
	g.metrics.RecordUpload("voice_sample", voiceSampleSize)
	g.metrics.RecordStage(StageSaveInputs, time.Since(stageStart).Seconds())

	logger.Debug("входные файлы сохранены",
		zap.Int64("image_size", imageSize),
		zap.Int64("voice_sample_size", voiceSampleSize))

	stageStart = time.Now()
	if err = g.voice.SynthesizeVoice(ctx, req.Text, g.ws.VoiceSamplePath(), g.ws.SpeechPath()); err != nil {
		return "", err
	}
	g.metrics.RecordStage(StageSynthesizeVoice, time.Since(stageStart).Seconds())

	stageStart = time.Now()
	if err = g.video.GenerateVideo(ctx, g.ws.ImagePath(), g.ws.SpeechPath(), g.ws.VideoPath()); err != nil {
		return "", err
	}
	g.metrics.RecordStage(StageGenerateVideo, time.Since(stageStart).Seconds())

	return g.ws.VideoPath(), nil
}

type noopHistory struct{}

func (noopHistory) Create(context.Context, *models.Generation) error { return nil }
func (noopHistory) Finish(context.Context, string, models.GenerationResult) error {
	return nil
}

type noopMetrics struct{}

func (noopMetrics) GenerationStarted()             {}
func (noopMetrics) RecordGeneration(bool, float64) {}
func (noopMetrics) RecordStage(string, float64)    {}
func (noopMetrics) RecordUpload(string, int64)     {}
