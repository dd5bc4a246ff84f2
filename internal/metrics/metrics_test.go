package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(zap.NewNop(), reg)

	// Test high-level methods
	m.GenerationStarted()
	m.RecordStage("synthesize_voice", 3.2)
	m.RecordUpload("image", 1024)
	m.RecordGeneration(true, 12.5)

	m.GenerationStarted()
	m.RecordGeneration(false, 1.0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("failed")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.uploadBytes.WithLabelValues("image")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))

	// Unknown names are logged and ignored
	m.IncrementCounter("unknown_total", 1)
	m.AddGauge("unknown", 1)
	m.ObserveHistogram("unknown", 1)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(zap.NewNop(), reg)
	m.RecordGeneration(true, 2)

	h := NewHandler(reg, zap.NewNop())

	rec := httptest.NewRecorder()
	h.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "generations_total"))

	rec = httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"digital-human"}`, rec.Body.String())
}
