package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const assemblyAIURL = "wss://streaming.assemblyai.com/v3/ws"

// chunkBytes is 50ms of 16 kHz PCM, the smallest chunk the streaming API accepts.
const chunkBytes = SampleRate / 20 * 2

// AssemblyAI transcribes PCM clips over the realtime streaming API.
// Each clip is one streaming session: audio in, Terminate, wait for Termination.
type AssemblyAI struct {
	APIKey string
	URL    string
	Log    zerolog.Logger
	Dialer *websocket.Dialer
}

func NewAssemblyAI(apiKey string, log zerolog.Logger) *AssemblyAI {
	return &AssemblyAI{
		APIKey: apiKey,
		URL:    assemblyAIURL,
		Log:    log,
		Dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// AssemblyAI message types
type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type          string `json:"type"`
	TurnOrder     int    `json:"turn_order"`
	Transcript    string `json:"transcript"`
	EndOfTurn     bool   `json:"end_of_turn"`
	TurnFormatted bool   `json:"turn_is_formatted"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// turns keeps the latest text for each turn; later messages for the same
// turn replace earlier partials.
type turns struct {
	mu   sync.Mutex
	text map[int]string
}

func (t *turns) set(order int, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.text == nil {
		t.text = make(map[int]string)
	}
	t.text[order] = strings.TrimSpace(text)
}

func (t *turns) joined() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	orders := make([]int, 0, len(t.text))
	for o := range t.text {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if s := t.text[o]; s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (a *AssemblyAI) Transcribe(ctx context.Context, clip Clip) (string, error) {
	if a.APIKey == "" {
		return "", ErrMissingKey
	}
	if clip.Format != FormatPCM16k {
		return "", fmt.Errorf("assemblyai: %w: %s", ErrUnsupportedFormat, clip.Format)
	}
	if len(clip.Data) == 0 {
		return "", nil
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "true")
	params.Set("encoding", "pcm_s16le")
	headers := http.Header{"Authorization": {a.APIKey}}

	conn, resp, err := a.Dialer.DialContext(ctx, a.URL+"?"+params.Encode(), headers)
	if err != nil {
		if resp != nil {
			return "", fmt.Errorf("assemblyai: connect status=%d: %w", resp.StatusCode, err)
		}
		return "", fmt.Errorf("assemblyai: connect: %w", err)
	}
	defer conn.Close()

	// Unblock reads when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var tt turns
	done := make(chan error, 1)
	go func() { done <- a.readLoop(conn, &tt) }()

	for off := 0; off < len(clip.Data); off += chunkBytes {
		end := min(off+chunkBytes, len(clip.Data))
		if err := conn.WriteMessage(websocket.BinaryMessage, clip.Data[off:end]); err != nil {
			return "", fmt.Errorf("assemblyai: send audio: %w", err)
		}
	}
	if err := conn.WriteJSON(map[string]string{"type": "Terminate"}); err != nil {
		return "", fmt.Errorf("assemblyai: terminate: %w", err)
	}

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
		return tt.joined(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readLoop returns nil once the session terminates.
func (a *AssemblyAI) readLoop(conn *websocket.Conn, tt *turns) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("assemblyai: read: %w", err)
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &base); err != nil {
			a.Log.Warn().Err(err).Msg("assemblyai: bad message")
			continue
		}
		switch base.Type {
		case "Begin":
			var msg beginMessage
			if err := json.Unmarshal(message, &msg); err == nil {
				a.Log.Debug().Str("session", msg.ID).
					Str("expires_at", time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339)).
					Msg("assemblyai session began")
			}
		case "Turn":
			var msg turnMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				a.Log.Warn().Err(err).Msg("assemblyai: bad turn")
				continue
			}
			if msg.Transcript != "" {
				tt.set(msg.TurnOrder, msg.Transcript)
			}
		case "Termination":
			var msg terminationMessage
			if err := json.Unmarshal(message, &msg); err == nil {
				a.Log.Debug().Float64("audio_s", msg.AudioDurationSeconds).
					Float64("session_s", msg.SessionDurationSeconds).
					Msg("assemblyai session terminated")
			}
			return nil
		case "Error":
			var msg errorMessage
			_ = json.Unmarshal(message, &msg)
			return fmt.Errorf("assemblyai: %s", msg.Error)
		default:
			a.Log.Debug().Str("type", base.Type).Msg("assemblyai: unknown message type")
		}
	}
}
