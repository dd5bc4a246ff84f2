package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return s.text, s.err
}

func writeSample(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestXTTSService_SynthesizeVoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts_to_audio", r.URL.Path)
		assert.Equal(t, "Привет, это мой голос", r.FormValue("text"))
		assert.Equal(t, "ru", r.FormValue("language"))
		assert.Equal(t, "sample words", r.FormValue("reference_text"))

		file, _, err := r.FormFile("speaker_wav")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		sample, _ := io.ReadAll(file)
		assert.Equal(t, "reference-audio", string(sample))

		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF-synth"))
	}))
	defer server.Close()

	reference := writeSample(t, "reference-audio")
	output := filepath.Join(t.TempDir(), "tts.wav")

	service := NewXTTSService(zap.NewNop(), server.URL+"/", "ru", 5*time.Second).
		WithTranscriber(&stubTranscriber{text: "sample words"})

	err := service.SynthesizeVoice(context.Background(), "Привет, это мой голос", reference, output)
	require.NoError(t, err)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "RIFF-synth", string(got))
}

func TestXTTSService_TranscriberFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.FormValue("reference_text"))
		w.Write([]byte("RIFF"))
	}))
	defer server.Close()

	service := NewXTTSService(zap.NewNop(), server.URL, "en", 5*time.Second).
		WithTranscriber(&stubTranscriber{err: errors.New("asr down")})

	output := filepath.Join(t.TempDir(), "tts.wav")
	require.NoError(t, service.SynthesizeVoice(context.Background(), "hi", writeSample(t, "x"), output))
}

func TestXTTSService_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "speaker_wav is too short", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	service := NewXTTSService(zap.NewNop(), server.URL, "en", 5*time.Second)
	output := filepath.Join(t.TempDir(), "tts.wav")

	err := service.SynthesizeVoice(context.Background(), "hi", writeSample(t, "x"), output)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.NoFileExists(t, output)
}

func TestXTTSService_EmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewXTTSService(zap.NewNop(), server.URL, "en", 5*time.Second)
	err := service.SynthesizeVoice(context.Background(), "hi", writeSample(t, "x"), filepath.Join(t.TempDir(), "tts.wav"))
	assert.Error(t, err)
}

func TestXTTSService_MissingReference(t *testing.T) {
	service := NewXTTSService(zap.NewNop(), "http://127.0.0.1:1", "en", time.Second)
	err := service.SynthesizeVoice(context.Background(), "hi", filepath.Join(t.TempDir(), "missing.wav"), filepath.Join(t.TempDir(), "tts.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
