package bot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"digital-human/internal/pipeline"
	"digital-human/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testChatID int64 = 42

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	baseURL  string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.baseURL + "/" + fileID, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var texts []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type recordedRequest struct {
	source string
	image  string
	text   string
	voice  string
}

type fakeGenerator struct {
	calls []recordedRequest
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, req pipeline.Request) (string, error) {
	image, _ := io.ReadAll(req.Image)
	voice, _ := io.ReadAll(req.VoiceSample)
	f.calls = append(f.calls, recordedRequest{req.Source, string(image), req.Text, string(voice)})
	if f.err != nil {
		return "", f.err
	}
	return "output/output.mp4", nil
}

func newTestBot(t *testing.T, gen *fakeGenerator) (*Handler, *fakeAPI) {
	t.Helper()

	files := map[string]string{
		"photo-small": "small-jpeg",
		"photo-large": "large-jpeg",
		"voice-1":     "ogg-bytes",
		"audio-1":     "mp3-bytes",
		"doc-image":   "png-bytes",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(data))
	}))
	t.Cleanup(server.Close)

	api := &fakeAPI{baseURL: server.URL}
	return NewHandler(api, gen, zap.NewNop()), api
}

func message(m tgbotapi.Message) tgbotapi.Update {
	m.Chat = &tgbotapi.Chat{ID: testChatID}
	return tgbotapi.Update{Message: &m}
}

func command(name string) tgbotapi.Update {
	text := "/" + name
	return message(tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	})
}

func photo() tgbotapi.Update {
	return message(tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
		{FileID: "photo-small", FileSize: 10},
		{FileID: "photo-large", FileSize: 100},
	}})
}

func TestHandleUpdate_FullFlow(t *testing.T) {
	gen := &fakeGenerator{}
	h, api := newTestBot(t, gen)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo()))
	assert.Contains(t, api.lastText(), "образец голоса, текст")

	require.NoError(t, h.HandleUpdate(ctx, message(tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "voice-1", FileSize: 9}})))
	assert.Contains(t, api.lastText(), "Осталось прислать: текст")
	assert.Empty(t, gen.calls)

	require.NoError(t, h.HandleUpdate(ctx, message(tgbotapi.Message{Text: "  Hello, world  "})))

	require.Len(t, gen.calls, 1)
	assert.Equal(t, recordedRequest{
		source: models.SourceTelegram,
		image:  "large-jpeg",
		text:   "Hello, world",
		voice:  "ogg-bytes",
	}, gen.calls[0])

	require.NotEmpty(t, api.sent)
	video, ok := api.sent[len(api.sent)-1].(tgbotapi.VideoConfig)
	require.True(t, ok, "последним отправляется видео")
	assert.Equal(t, testChatID, video.ChatID)
	assert.Equal(t, tgbotapi.FilePath("output/output.mp4"), video.File)

	require.Len(t, api.requests, 1)
	assert.Equal(t, 0, h.Sessions().Len(), "сессия закрывается после генерации")
}

func TestHandleUpdate_CaptionIsText(t *testing.T) {
	gen := &fakeGenerator{}
	h, _ := newTestBot(t, gen)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, message(tgbotapi.Message{
		Audio:   &tgbotapi.Audio{FileID: "audio-1"},
		Caption: "from caption",
	})))
	require.NoError(t, h.HandleUpdate(ctx, message(tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "doc-image", MimeType: "image/png"},
	})))

	require.Len(t, gen.calls, 1)
	assert.Equal(t, "png-bytes", gen.calls[0].image)
	assert.Equal(t, "mp3-bytes", gen.calls[0].voice)
	assert.Equal(t, "from caption", gen.calls[0].text)
}

func TestHandleUpdate_GenerationError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	h, api := newTestBot(t, gen)
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo()))
	require.NoError(t, h.HandleUpdate(ctx, message(tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "voice-1"}})))
	require.NoError(t, h.HandleUpdate(ctx, message(tgbotapi.Message{Text: "text"})))

	require.Len(t, gen.calls, 1)
	assert.Equal(t, msgFailed, api.lastText())
	assert.Equal(t, 0, h.Sessions().Len())
}

func TestHandleUpdate_FileTooLarge(t *testing.T) {
	gen := &fakeGenerator{}
	h, api := newTestBot(t, gen)

	require.NoError(t, h.HandleUpdate(context.Background(), message(tgbotapi.Message{
		Voice: &tgbotapi.Voice{FileID: "voice-1", FileSize: MaxFileSize + 1},
	})))

	assert.Equal(t, msgFileTooLarge, api.lastText())
	assert.Equal(t, 0, h.Sessions().Len())
}

func TestHandleUpdate_DownloadFailure(t *testing.T) {
	h, api := newTestBot(t, &fakeGenerator{})

	require.NoError(t, h.HandleUpdate(context.Background(), message(tgbotapi.Message{
		Voice: &tgbotapi.Voice{FileID: "missing"},
	})))

	assert.Equal(t, msgDownloadFailed, api.lastText())
}

func TestHandleUpdate_UnsupportedDocument(t *testing.T) {
	h, api := newTestBot(t, &fakeGenerator{})

	require.NoError(t, h.HandleUpdate(context.Background(), message(tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"},
	})))

	assert.Equal(t, msgUnsupported, api.lastText())
}

func TestHandleUpdate_Commands(t *testing.T) {
	h, api := newTestBot(t, &fakeGenerator{})
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command("start")))
	assert.Equal(t, msgStart, api.lastText())

	require.NoError(t, h.HandleUpdate(ctx, command("help")))
	assert.Equal(t, msgHelp, api.lastText())

	require.NoError(t, h.HandleUpdate(ctx, photo()))
	assert.Equal(t, 1, h.Sessions().Len())

	require.NoError(t, h.HandleUpdate(ctx, command("reset")))
	assert.Equal(t, msgReset, api.lastText())
	assert.Equal(t, 0, h.Sessions().Len())

	require.NoError(t, h.HandleUpdate(ctx, command("premium")))
	assert.Equal(t, msgUnknownCommand, api.lastText())
}

func TestHandleUpdate_IgnoresNonMessageUpdates(t *testing.T) {
	h, api := newTestBot(t, &fakeGenerator{})

	require.NoError(t, h.HandleUpdate(context.Background(), tgbotapi.Update{}))
	assert.Empty(t, api.sent)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", sanitizeText("  hel\x00lo\r "))
	assert.Equal(t, "", sanitizeText("   "))

	long := strings.Repeat("я", MaxTextLength+10)
	assert.Equal(t, MaxTextLength, len([]rune(sanitizeText(long))))
}
