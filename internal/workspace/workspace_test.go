package workspace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWorkspace(t *testing.T) *Workspace {
	root := t.TempDir()
	return New(filepath.Join(root, "input"), filepath.Join(root, "output"), zap.NewNop())
}

func TestEnsureDirs_Idempotent(t *testing.T) {
	ws := newTestWorkspace(t)

	require.NoError(t, ws.EnsureDirs())
	require.NoError(t, ws.EnsureDirs())

	for _, dir := range []string{ws.InputDir(), ws.OutputDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestEnsureDirs_FileInTheWay(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "input")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	ws := New(blocker, filepath.Join(root, "output"), zap.NewNop())
	assert.Error(t, ws.EnsureDirs())
}

func TestFixedPaths(t *testing.T) {
	ws := New("in", "out", zap.NewNop())

	assert.Equal(t, filepath.Join("in", "photo.jpg"), ws.ImagePath())
	assert.Equal(t, filepath.Join("in", "voice.wav"), ws.VoiceSamplePath())
	assert.Equal(t, filepath.Join("out", "tts.wav"), ws.SpeechPath())
	assert.Equal(t, filepath.Join("out", "output.mp4"), ws.VideoPath())
}

func TestSave_ByteIdenticalAndOverwrites(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.EnsureDirs())

	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	n, err := ws.SaveImage(bytes.NewReader(image))
	require.NoError(t, err)
	assert.Equal(t, int64(len(image)), n)

	long := bytes.Repeat([]byte("RIFF"), 64)
	_, err = ws.SaveVoiceSample(bytes.NewReader(long))
	require.NoError(t, err)

	// Более короткий образец должен полностью заменить предыдущий
	short := []byte("RIFF----WAVE")
	_, err = ws.SaveVoiceSample(bytes.NewReader(short))
	require.NoError(t, err)

	got, err := os.ReadFile(ws.ImagePath())
	require.NoError(t, err)
	assert.Equal(t, image, got)

	got, err = os.ReadFile(ws.VoiceSamplePath())
	require.NoError(t, err)
	assert.Equal(t, short, got)
}

func TestSave_MissingDir(t *testing.T) {
	ws := newTestWorkspace(t)

	_, err := ws.SaveImage(bytes.NewReader([]byte("img")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveArtifacts(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.EnsureDirs())

	_, err := ws.SaveImage(bytes.NewReader([]byte("img")))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ws.VideoPath(), []byte("mp4"), 0644))

	removed, err := ws.RemoveArtifacts()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ws.ImagePath(), ws.VideoPath()}, removed)

	removed, err = ws.RemoveArtifacts()
	require.NoError(t, err)
	assert.Empty(t, removed)
}
