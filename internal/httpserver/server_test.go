package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasir-pv/Ai-ChatBot/internal/avatar"
	"github.com/jasir-pv/Ai-ChatBot/internal/llm"
	"github.com/jasir-pv/Ai-ChatBot/internal/store"
	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
	"github.com/jasir-pv/Ai-ChatBot/internal/tts"
)

type fakeChat struct {
	deltas []string
	err    error
	got    chatRequest
}

func (f *fakeChat) Stream(ctx context.Context, conversationID string, history []llm.Message, onDelta func(string) error) (string, error) {
	f.got = chatRequest{Messages: history, ConversationID: conversationID}
	var out strings.Builder
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return out.String(), err
		}
		out.WriteString(d)
	}
	return out.String(), f.err
}

type fakeSTT struct {
	clip transcript.Clip
	err  error
}

func (f *fakeSTT) Transcribe(ctx context.Context, clip transcript.Clip) (string, error) {
	f.clip = clip
	if f.err != nil {
		return "", f.err
	}
	return "hello there", nil
}

type fakeTTS struct{ voice string }

func (f *fakeTTS) Synthesize(ctx context.Context, text, voice string) (tts.Audio, error) {
	f.voice = voice
	return tts.Audio{Data: []byte("mp3:" + text), MimeType: "audio/mpeg"}, nil
}

type fakeAvatar struct {
	err  error
	last string
}

func (f *fakeAvatar) CreateToken(context.Context) (string, error) { return "tok-1", f.err }
func (f *fakeAvatar) ListAvatars(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"data":[]}`), f.err
}
func (f *fakeAvatar) NewSession(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"data":{"session_id":"s1"}}`), f.err
}
func (f *fakeAvatar) StartSession(_ context.Context, sid string, sdp json.RawMessage) (json.RawMessage, error) {
	f.last = "start:" + sid + ":" + string(sdp)
	return json.RawMessage(`{"code":100}`), f.err
}
func (f *fakeAvatar) Speak(_ context.Context, sid, text string) (json.RawMessage, error) {
	f.last = "speak:" + sid + ":" + text
	return json.RawMessage(`{"code":100}`), f.err
}
func (f *fakeAvatar) Interrupt(_ context.Context, sid string) error {
	f.last = "interrupt:" + sid
	return f.err
}
func (f *fakeAvatar) StopSession(_ context.Context, sid string) error {
	f.last = "stop:" + sid
	return f.err
}

func newTestServer(mod func(*Deps)) (*echo.Echo, *store.Memory) {
	st := store.NewMemory()
	deps := Deps{Store: st, Voice: "alloy", Log: zerolog.Nop()}
	if mod != nil {
		mod(&deps)
	}
	return New(deps), st
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestServer_Healthz(t *testing.T) {
	e, _ := newTestServer(nil)
	w := do(e, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestServer_TokenAuthGuardsAPI(t *testing.T) {
	e, _ := newTestServer(func(d *Deps) { d.APIToken = "secret" })

	if w := do(e, http.MethodGet, "/api/conversations", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := do(e, http.MethodGet, "/api/conversations?password=wrong", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := do(e, http.MethodGet, "/api/conversations?password=secret", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if w := do(e, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", w.Code)
	}
}

func TestConversations_CRUD(t *testing.T) {
	e, st := newTestServer(nil)

	w := do(e, http.MethodPost, "/api/conversations", `{"title":"First"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var conv store.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.Equal(t, "First", conv.Title)
	assert.Contains(t, w.Body.String(), `"createdAt"`)

	w = do(e, http.MethodPost, "/api/conversations", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid title provided", errorBody(t, w))
	w = do(e, http.MethodPost, "/api/conversations", `{"title":42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(e, http.MethodGet, "/api/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(e, http.MethodGet, "/api/conversations/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Conversation not found", errorBody(t, w))

	w = do(e, http.MethodPatch, "/api/conversations/"+conv.ID, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Renamed")
	w = do(e, http.MethodPatch, "/api/conversations/nope", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	msg, err := st.CreateMessage(context.Background(), store.NewMessage{ConversationID: conv.ID, Role: store.RoleUser, Content: "hi"})
	require.NoError(t, err)
	w = do(e, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []store.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, conv.ID, msgs[0].ConversationID)

	w = do(e, http.MethodDelete, "/api/conversations/"+conv.ID+"/messages/"+msg.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(e, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", "")
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(e, http.MethodGet, "/api/conversations", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(e, http.MethodDelete, "/api/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(e, http.MethodGet, "/api/conversations", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestConversations_DeleteMessageScopedToConversation(t *testing.T) {
	e, st := newTestServer(nil)
	ctx := context.Background()
	a, err := st.CreateConversation(ctx, "a")
	require.NoError(t, err)
	b, err := st.CreateConversation(ctx, "b")
	require.NoError(t, err)
	msg, err := st.CreateMessage(ctx, store.NewMessage{ConversationID: b.ID, Role: store.RoleUser, Content: "keep me"})
	require.NoError(t, err)

	w := do(e, http.MethodDelete, "/api/conversations/"+a.ID+"/messages/"+msg.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	msgs, err := st.ListMessages(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
}

func TestChat_StreamsText(t *testing.T) {
	chat := &fakeChat{deltas: []string{"Hel", "lo"}}
	e, _ := newTestServer(func(d *Deps) { d.Chat = chat })

	w := do(e, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}],"conversationId":"c1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get(echo.HeaderContentType), "text/plain"))
	assert.Equal(t, "c1", chat.got.ConversationID)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, chat.got.Messages)
}

func TestChat_Errors(t *testing.T) {
	chat := &fakeChat{}
	e, _ := newTestServer(func(d *Deps) { d.Chat = chat })

	for _, body := range []string{`{}`, `{"messages":"hi"}`, `{"messages":[{"role":"robot","content":"x"}]}`} {
		w := do(e, http.MethodPost, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Invalid messages format", errorBody(t, w))
	}

	chat.err = fmt.Errorf("save user message: %w", store.ErrNotFound)
	w := do(e, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}],"conversationId":"gone"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	chat.err = errors.New("upstream down")
	w = do(e, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", errorBody(t, w))

	// a failure after output started truncates the stream
	chat.deltas = []string{"partial"}
	w = do(e, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func multipartAudio(t *testing.T, field, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename="clip"`, field)}
		h["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "x"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSpeechToText(t *testing.T) {
	stt := &fakeSTT{}
	e, _ := newTestServer(func(d *Deps) { d.STT = stt })

	body, ct := multipartAudio(t, "audio", "audio/webm", []byte("webm-bytes"))
	r := httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	r.Header.Set(echo.HeaderContentType, ct)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"hello there"}`, w.Body.String())
	assert.Equal(t, transcript.FormatWebM, stt.clip.Format)
	assert.Equal(t, "audio.webm", stt.clip.Name())
	assert.Equal(t, []byte("webm-bytes"), stt.clip.Data)

	body, ct = multipartAudio(t, "audio", "audio/L16;rate=16000", []byte{1, 2})
	r = httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	r.Header.Set(echo.HeaderContentType, ct)
	w = httptest.NewRecorder()
	e.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, transcript.FormatPCM16k, stt.clip.Format)

	body, ct = multipartAudio(t, "", "", nil)
	r = httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	r.Header.Set(echo.HeaderContentType, ct)
	w = httptest.NewRecorder()
	e.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No audio file provided", errorBody(t, w))

	stt.err = errors.New("whisper 500")
	body, ct = multipartAudio(t, "audio", "audio/webm", []byte("x"))
	r = httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	r.Header.Set(echo.HeaderContentType, ct)
	w = httptest.NewRecorder()
	e.ServeHTTP(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to transcribe audio", errorBody(t, w))
}

func TestTextToSpeech(t *testing.T) {
	synth := &fakeTTS{}
	e, _ := newTestServer(func(d *Deps) { d.TTS = synth })

	w := do(e, http.MethodPost, "/api/text-to-speech", `{"text":"Hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "6", w.Header().Get(echo.HeaderContentLength))
	assert.Equal(t, "mp3:Hi", w.Body.String())
	assert.Equal(t, "alloy", synth.voice)

	w = do(e, http.MethodPost, "/api/text-to-speech", `{"text":"Hi","voice":"nova"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nova", synth.voice)

	w = do(e, http.MethodPost, "/api/text-to-speech", `{"voice":"nova"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid text provided", errorBody(t, w))
}

func TestHeyGen_Proxy(t *testing.T) {
	av := &fakeAvatar{}
	e, _ := newTestServer(func(d *Deps) { d.Avatar = av })

	w := do(e, http.MethodPost, "/api/heygen/create-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"tok-1"}`, w.Body.String())

	w = do(e, http.MethodGet, "/api/heygen/list-avatars", "")
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	w = do(e, http.MethodPost, "/api/heygen/create-session", "")
	assert.JSONEq(t, `{"data":{"session_id":"s1"}}`, w.Body.String())

	w = do(e, http.MethodPost, "/api/heygen/start-session", `{"session_id":"s1","sdp":{"type":"answer","sdp":"v=0"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `start:s1:{"type":"answer","sdp":"v=0"}`, av.last)
	w = do(e, http.MethodPost, "/api/heygen/start-session", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing session_id or sdp", errorBody(t, w))

	w = do(e, http.MethodPost, "/api/heygen/speak", `{"session_id":"s1","text":"Hello"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "speak:s1:Hello", av.last)
	w = do(e, http.MethodPost, "/api/heygen/speak", `{"text":"Hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(e, http.MethodPost, "/api/heygen/interrupt", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "interrupt:s1", av.last)
	w = do(e, http.MethodPost, "/api/heygen/stop-session", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "stop:s1", av.last)
}

func TestHeyGen_Errors(t *testing.T) {
	av := &fakeAvatar{err: &avatar.StatusError{Op: "new session", Status: http.StatusTooManyRequests, Body: "quota"}}
	e, _ := newTestServer(func(d *Deps) { d.Avatar = av })
	w := do(e, http.MethodPost, "/api/heygen/create-session", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Failed to create HeyGen session","details":"quota"}`, w.Body.String())

	av.err = avatar.ErrNotConfigured
	w = do(e, http.MethodPost, "/api/heygen/create-token", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "HeyGen API key not configured", errorBody(t, w))

	e, _ = newTestServer(nil)
	w = do(e, http.MethodGet, "/api/heygen/list-avatars", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "HeyGen API key not configured", errorBody(t, w))
}

func TestLive_MountedWhenConfigured(t *testing.T) {
	e, _ := newTestServer(nil)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/live", "").Code)

	live := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	e, _ = newTestServer(func(d *Deps) { d.Live = live })
	assert.Equal(t, http.StatusTeapot, do(e, http.MethodGet, "/api/live", "").Code)
}
