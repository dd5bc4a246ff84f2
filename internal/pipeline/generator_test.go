package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"digital-human/internal/workspace"
	"digital-human/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type voiceCall struct {
	text, referencePath, outputPath string
}

type fakeVoice struct {
	calls []voiceCall
	err   error
}

func (f *fakeVoice) SynthesizeVoice(ctx context.Context, text, referencePath, outputPath string) error {
	f.calls = append(f.calls, voiceCall{text, referencePath, outputPath})
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("speech"), 0644)
}

type videoCall struct {
	imagePath, audioPath, outputPath string
	speechExisted                    bool
}

type fakeVideo struct {
	calls []videoCall
	err   error
}

func (f *fakeVideo) GenerateVideo(ctx context.Context, imagePath, audioPath, outputPath string) error {
	_, statErr := os.Stat(audioPath)
	f.calls = append(f.calls, videoCall{imagePath, audioPath, outputPath, statErr == nil})
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("video"), 0644)
}

type fakeHistory struct {
	mu       sync.Mutex
	created  []*models.Generation
	finished map[string]models.GenerationResult
	err      error
}

func (f *fakeHistory) Create(ctx context.Context, generation *models.Generation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, generation)
	return f.err
}

func (f *fakeHistory) Finish(ctx context.Context, id string, result models.GenerationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished == nil {
		f.finished = make(map[string]models.GenerationResult)
	}
	f.finished[id] = result
	return f.err
}

type fakeMetrics struct {
	started, succeeded, failed int
	stages                     []string
	uploads                    map[string]int64
}

func (f *fakeMetrics) GenerationStarted() { f.started++ }
func (f *fakeMetrics) RecordGeneration(success bool, seconds float64) {
	if success {
		f.succeeded++
	} else {
		f.failed++
	}
}
func (f *fakeMetrics) RecordStage(stage string, seconds float64) { f.stages = append(f.stages, stage) }
func (f *fakeMetrics) RecordUpload(kind string, size int64) {
	if f.uploads == nil {
		f.uploads = make(map[string]int64)
	}
	f.uploads[kind] += size
}

func newTestGenerator(t *testing.T, voice *fakeVoice, video *fakeVideo, opts ...Option) (*Generator, *workspace.Workspace) {
	t.Helper()
	root := t.TempDir()
	ws := workspace.New(filepath.Join(root, "input"), filepath.Join(root, "output"), zap.NewNop())
	return NewGenerator(ws, voice, video, zap.NewNop(), opts...), ws
}

func newRequest(image, voice []byte, text string) Request {
	return Request{
		Source:      models.SourceWeb,
		Image:       bytes.NewReader(image),
		Text:        text,
		VoiceSample: bytes.NewReader(voice),
	}
}

func TestGenerate_Success(t *testing.T) {
	voice := &fakeVoice{}
	video := &fakeVideo{}
	gen, ws := newTestGenerator(t, voice, video)

	image := []byte{0xFF, 0xD8, 0x01, 0x02}
	sample := []byte("RIFF....WAVEfmt ")
	text := "  Привет!  Это   мой цифровой двойник.\n"

	path, err := gen.Generate(context.Background(), newRequest(image, sample, text))
	require.NoError(t, err)
	assert.Equal(t, ws.VideoPath(), path)
	assert.Equal(t, gen.VideoPath(), path)

	// Входные файлы совпадают побайтно
	gotImage, err := os.ReadFile(ws.ImagePath())
	require.NoError(t, err)
	assert.Equal(t, image, gotImage)

	gotSample, err := os.ReadFile(ws.VoiceSamplePath())
	require.NoError(t, err)
	assert.Equal(t, sample, gotSample)

	// Синтез вызван ровно один раз с неизмененным текстом
	require.Len(t, voice.calls, 1)
	assert.Equal(t, voiceCall{text, ws.VoiceSamplePath(), ws.SpeechPath()}, voice.calls[0])

	// Видео вызвано один раз после синтеза с его выходным файлом
	require.Len(t, video.calls, 1)
	assert.Equal(t, ws.ImagePath(), video.calls[0].imagePath)
	assert.Equal(t, voice.calls[0].outputPath, video.calls[0].audioPath)
	assert.Equal(t, ws.VideoPath(), video.calls[0].outputPath)
	assert.True(t, video.calls[0].speechExisted)
}

func TestGenerate_RepeatedInvocation(t *testing.T) {
	voice := &fakeVoice{}
	video := &fakeVideo{}
	gen, ws := newTestGenerator(t, voice, video)

	_, err := gen.Generate(context.Background(), newRequest([]byte("first-image"), []byte("first"), "one"))
	require.NoError(t, err)

	path, err := gen.Generate(context.Background(), newRequest([]byte("img2"), []byte("second"), "two"))
	require.NoError(t, err)
	assert.Equal(t, ws.VideoPath(), path)

	// Второй запрос перезаписывает артефакты первого
	gotImage, err := os.ReadFile(ws.ImagePath())
	require.NoError(t, err)
	assert.Equal(t, []byte("img2"), gotImage)

	assert.Len(t, voice.calls, 2)
	assert.Len(t, video.calls, 2)
}

func TestGenerate_SynthesisFailureSkipsVideo(t *testing.T) {
	synthErr := errors.New("reference audio is malformed")
	voice := &fakeVoice{err: synthErr}
	video := &fakeVideo{}
	gen, _ := newTestGenerator(t, voice, video)

	path, err := gen.Generate(context.Background(), newRequest([]byte("img"), []byte("wav"), "text"))
	assert.Empty(t, path)
	assert.Same(t, synthErr, err)
	assert.Len(t, voice.calls, 1)
	assert.Empty(t, video.calls)
}

func TestGenerate_VideoFailurePropagates(t *testing.T) {
	videoErr := errors.New("unsupported image format")
	gen, _ := newTestGenerator(t, &fakeVoice{}, &fakeVideo{err: videoErr})

	_, err := gen.Generate(context.Background(), newRequest([]byte("img"), []byte("wav"), "text"))
	assert.Same(t, videoErr, err)
}

func TestGenerate_DirectoryFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "input")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	voice := &fakeVoice{}
	ws := workspace.New(blocker, filepath.Join(root, "output"), zap.NewNop())
	gen := NewGenerator(ws, voice, &fakeVideo{}, zap.NewNop())

	_, err := gen.Generate(context.Background(), newRequest([]byte("img"), []byte("wav"), "text"))
	assert.Error(t, err)
	assert.Empty(t, voice.calls)
}

func TestGenerate_MissingInput(t *testing.T) {
	voice := &fakeVoice{}
	gen, _ := newTestGenerator(t, voice, &fakeVideo{})

	_, err := gen.Generate(context.Background(), Request{Text: "text", VoiceSample: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Empty(t, voice.calls)
}

func TestGenerate_RecordsHistoryAndMetrics(t *testing.T) {
	history := &fakeHistory{}
	metrics := &fakeMetrics{}
	gen, ws := newTestGenerator(t, &fakeVoice{}, &fakeVideo{}, WithHistory(history), WithMetrics(metrics))

	_, err := gen.Generate(context.Background(), newRequest([]byte("12345"), []byte("123"), "hello"))
	require.NoError(t, err)

	require.Len(t, history.created, 1)
	created := history.created[0]
	assert.Equal(t, "hello", created.Text)
	assert.Equal(t, models.SourceWeb, created.Source)
	assert.Equal(t, models.GenerationStatusPending, created.Status)
	assert.NotEmpty(t, created.ID)

	result := history.finished[created.ID]
	assert.Equal(t, models.GenerationStatusCompleted, result.Status)
	assert.Equal(t, int64(5), result.ImageSize)
	assert.Equal(t, int64(3), result.VoiceSampleSize)
	assert.Equal(t, ws.VideoPath(), result.VideoPath)

	assert.Equal(t, 1, metrics.started)
	assert.Equal(t, 1, metrics.succeeded)
	assert.Equal(t, []string{StageSaveInputs, StageSynthesizeVoice, StageGenerateVideo}, metrics.stages)
	assert.Equal(t, int64(5), metrics.uploads["image"])
}

func TestGenerate_HistoryFailureDoesNotChangeResult(t *testing.T) {
	history := &fakeHistory{err: errors.New("db down")}
	metrics := &fakeMetrics{}
	synthErr := errors.New("empty text")
	gen, _ := newTestGenerator(t, &fakeVoice{err: synthErr}, &fakeVideo{}, WithHistory(history), WithMetrics(metrics))

	_, err := gen.Generate(context.Background(), newRequest([]byte("img"), []byte("wav"), ""))
	assert.Same(t, synthErr, err)

	require.Len(t, history.created, 1)
	result := history.finished[history.created[0].ID]
	assert.Equal(t, models.GenerationStatusFailed, result.Status)
	assert.Equal(t, "empty text", result.Error)
	assert.Equal(t, 1, metrics.failed)
}

func TestGenerate_Serialized(t *testing.T) {
	gen, _ := newTestGenerator(t, &fakeVoice{}, &fakeVideo{})

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.Generate(context.Background(), newRequest([]byte("img"), []byte("wav"), "text"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
