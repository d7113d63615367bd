// Package voice serves live conversation mode over a websocket: microphone
// clips in, transcripts and spoken replies out, one coordinator per connection.
package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jasir-pv/Ai-ChatBot/internal/agent"
	"github.com/jasir-pv/Ai-ChatBot/internal/infra/storage"
	"github.com/jasir-pv/Ai-ChatBot/internal/store"
	"github.com/jasir-pv/Ai-ChatBot/internal/transcript"
	"github.com/jasir-pv/Ai-ChatBot/internal/tts"
)

// maxFrameBytes bounds a single websocket message from the client.
const maxFrameBytes = 4 << 20

// Deps are shared by every live connection.
type Deps struct {
	Chat    Replier
	Store   store.Store
	STT     transcript.Transcriber
	TTS     tts.Synthesizer
	Avatar  AvatarClient // nil disables the avatar speaker
	Archive storage.Archive
	Agent   agent.Config
	Voice   string
	Log     zerolog.Logger
}

// Handler upgrades requests to live sessions.
type Handler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  65536,
			WriteBufferSize: 65536,
			// Auth is enforced by middleware before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.deps.Log.Warn().Err(err).Msg("live: websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	s := newSession(conn, h.deps)
	s.log.Info().Str("remote", r.RemoteAddr).Msg("live connection opened")
	err = s.run(r.Context())
	s.log.Info().AnErr("reason", err).Int("turns", s.turns()).Msg("live connection closed")
}

// playbackSink is implemented by both speakers.
type playbackSink interface {
	agent.Speaker
	PlaybackEnded(id int) bool
}

// session is one websocket connection. Control fields are only touched by
// the read loop goroutine.
type session struct {
	id   string
	conn *websocket.Conn
	deps Deps
	log  zerolog.Logger
	wire *wire

	coord          *agent.Coordinator
	coordCancel    context.CancelFunc
	rec            *Recorder
	spk            playbackSink
	conversationID string
	pastTurns      int
}

func newSession(conn *websocket.Conn, deps Deps) *session {
	id := uuid.NewString()
	log := deps.Log.With().Str("conn_id", id).Logger()
	return &session{id: id, conn: conn, deps: deps, log: log, wire: newWire(conn, log)}
}

func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.wire.run(ctx)
	defer func() {
		s.stopCoordinator()
		cancel()
		<-s.wire.done
	}()

	s.conn.SetReadLimit(maxFrameBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		switch mt {
		case websocket.BinaryMessage:
			if s.rec != nil {
				s.rec.Write(data)
			}
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.sendError("invalid message")
				continue
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *session) handle(ctx context.Context, msg clientMessage) {
	switch strings.ToLower(msg.Type) {
	case msgStart:
		if err := s.start(ctx, msg); err != nil {
			s.log.Warn().Err(err).Msg("live start rejected")
			s.sendError(err.Error())
		}
	case msgFinished:
		if s.coord != nil {
			s.coord.UserFinishedSpeaking()
		}
	case msgStop:
		if s.coord != nil {
			s.coord.Stop()
		}
	case msgPlaybackEnded:
		if s.spk != nil && !s.spk.PlaybackEnded(msg.Playback) {
			s.log.Debug().Int("playback", msg.Playback).Msg("stale playback_ended ignored")
		}
	default:
		s.sendError("unknown message type " + msg.Type)
	}
}

var (
	errAlreadyActive  = errors.New("live mode already running")
	errBadFormat      = errors.New("audio_format must be webm or pcm16k")
	errBadSpeaker     = errors.New("speaker must be audio or avatar")
	errNoAvatar       = errors.New("avatar speaker needs avatar_session_id and a configured HeyGen key")
	errNoSynthesizer  = errors.New("no text-to-speech provider configured")
	errNoConversation = errors.New("conversation not found")
)

// start builds the collaborators for this run and activates the coordinator.
// A previous coordinator is replaced once it is idle.
func (s *session) start(ctx context.Context, msg clientMessage) error {
	if s.coord != nil {
		if s.coord.Status().Active {
			return errAlreadyActive
		}
		s.stopCoordinator()
	}

	format := transcript.Format(strings.ToLower(msg.AudioFormat))
	switch format {
	case "":
		format = transcript.FormatWebM
	case transcript.FormatWebM, transcript.FormatPCM16k:
	default:
		return errBadFormat
	}

	var spk playbackSink
	switch strings.ToLower(msg.Speaker) {
	case "", speakerAudio:
		if s.deps.TTS == nil {
			return errNoSynthesizer
		}
		voice := msg.Voice
		if voice == "" {
			voice = s.deps.Voice
		}
		spk = NewAudioSpeaker(s.deps.TTS, voice, s.wire, s.log)
	case speakerAvatar:
		if s.deps.Avatar == nil || msg.AvatarSessionID == "" {
			return errNoAvatar
		}
		spk = NewAvatarSpeaker(s.deps.Avatar, msg.AvatarSessionID, s.wire, s.log)
	default:
		return errBadSpeaker
	}

	conversationID, err := s.resolveConversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}

	s.conversationID = conversationID
	s.spk = spk
	s.rec = NewRecorder(format, s.deps.STT, s.deps.Archive, s.id, s.wire, s.log)
	resp := NewResponder(s.deps.Chat, conversationID, s.wire)

	hooks := agent.Hooks{
		OnStatus: func(st agent.Status) {
			s.wire.sendJSON(statusMessage{
				Type:           msgStatus,
				State:          st.State.String(),
				Active:         st.Active,
				Turns:          st.Turns,
				ConversationID: conversationID,
			})
		},
		OnTranscript: func(text string) { s.wire.sendJSON(textMessage{Type: msgTranscript, Text: text}) },
		OnReply:      func(text string) { s.wire.sendJSON(textMessage{Type: msgReply, Text: text}) },
	}
	coord := agent.NewCoordinator(s.deps.Agent, s.rec, resp, spk, hooks, s.log)
	coordCtx, cancel := context.WithCancel(ctx)
	go func() { _ = coord.Run(coordCtx) }()
	s.coord, s.coordCancel = coord, cancel

	s.log.Info().Str("conversation", conversationID).Str("format", string(format)).
		Str("speaker", msg.Speaker).Msg("live mode started")
	coord.Start()
	return nil
}

func (s *session) resolveConversation(ctx context.Context, id string) (string, error) {
	if s.deps.Store == nil {
		return id, nil
	}
	if id != "" {
		if _, err := s.deps.Store.GetConversation(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", errNoConversation
			}
			return "", err
		}
		return id, nil
	}
	c, err := s.deps.Store.CreateConversation(ctx, "Live conversation "+time.Now().Format("Jan 2 15:04"))
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// stopCoordinator ends the current coordinator and waits for its loop.
func (s *session) stopCoordinator() {
	if s.coord == nil {
		return
	}
	s.coordCancel()
	<-s.coord.Done()
	s.rec.Wait()
	s.pastTurns += s.coord.Status().Turns
	s.coord, s.coordCancel = nil, nil
}

// turns counts replies across every run on this connection.
func (s *session) turns() int {
	n := s.pastTurns
	if s.coord != nil {
		n += s.coord.Status().Turns
	}
	return n
}

func (s *session) sendError(msg string) {
	s.wire.sendJSON(errorMessage{Type: msgError, Message: msg})
}
