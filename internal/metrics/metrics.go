package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	logger *zap.Logger

	// Счетчики
	generations *prometheus.CounterVec
	uploadBytes *prometheus.CounterVec

	// Гистограммы
	generationDuration prometheus.Histogram
	stageDuration      *prometheus.HistogramVec

	// Gauge метрики
	inFlight prometheus.Gauge

	mu sync.RWMutex
}

// Бакеты под длительные операции инференса
var inferenceBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300, 600, 900}

// New создает новый экземпляр метрик и регистрирует их в reg.
// Если reg равен nil, используется глобальный регистр Prometheus.
func New(logger *zap.Logger, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		logger: logger,

		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generations_total",
				Help: "Общее количество генераций цифрового аватара",
			},
			[]string{"status"}, // completed, failed
		),

		uploadBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upload_bytes_total",
				Help: "Объем загруженных пользователями файлов",
			},
			[]string{"kind"}, // image, voice_sample
		),

		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "Полное время генерации в секундах",
				Buckets: inferenceBuckets,
			},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "generation_stage_duration_seconds",
				Help:    "Время отдельных этапов генерации в секундах",
				Buckets: inferenceBuckets,
			},
			[]string{"stage"}, // save_inputs, synthesize_voice, generate_video
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "generations_in_flight",
				Help: "Количество генераций в процессе",
			},
		),
	}

	reg.MustRegister(
		m.generations,
		m.uploadBytes,
		m.generationDuration,
		m.stageDuration,
		m.inFlight,
	)

	return m
}

// IncrementCounter увеличивает счетчик на value
func (m *Metrics) IncrementCounter(name string, value float64, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counter *prometheus.CounterVec

	switch name {
	case "generations_total":
		counter = m.generations
	case "upload_bytes_total":
		counter = m.uploadBytes
	default:
		m.logger.Error("неизвестная метрика", zap.String("name", name))
		return
	}

	counter.WithLabelValues(labels...).Add(value)
	m.logger.Debug("метрика увеличена", zap.String("metric", name), zap.Float64("value", value))
}

// AddGauge изменяет значение gauge метрики на delta
func (m *Metrics) AddGauge(name string, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "generations_in_flight":
		m.inFlight.Add(delta)
	default:
		m.logger.Error("неизвестная gauge метрика", zap.String("name", name))
		return
	}

	m.logger.Debug("метрика изменена", zap.String("metric", name), zap.Float64("delta", delta))
}

// ObserveHistogram добавляет наблюдение в гистограмму
func (m *Metrics) ObserveHistogram(name string, value float64, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "generation_duration_seconds":
		m.generationDuration.Observe(value)
	case "generation_stage_duration_seconds":
		m.stageDuration.WithLabelValues(labels...).Observe(value)
	default:
		m.logger.Error("неизвестная гистограмма", zap.String("name", name))
		return
	}

	m.logger.Debug("гистограмма обновлена", zap.String("metric", name), zap.Float64("value", value))
}

// GenerationStarted отмечает начало генерации
func (m *Metrics) GenerationStarted() {
	m.AddGauge("generations_in_flight", 1)
}

// RecordGeneration записывает итог генерации
func (m *Metrics) RecordGeneration(success bool, seconds float64) {
	status := "completed"
	if !success {
		status = "failed"
	}

	m.AddGauge("generations_in_flight", -1)
	m.IncrementCounter("generations_total", 1, status)
	m.ObserveHistogram("generation_duration_seconds", seconds)
}

// RecordStage записывает длительность этапа генерации
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.ObserveHistogram("generation_stage_duration_seconds", seconds, stage)
}

// RecordUpload записывает объем загруженного файла
func (m *Metrics) RecordUpload(kind string, size int64) {
	m.IncrementCounter("upload_bytes_total", float64(size), kind)
}
