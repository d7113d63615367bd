package voice

// Client to server control messages. Binary frames carry microphone audio.
const (
	msgStart         = "start"
	msgFinished      = "finished"
	msgStop          = "stop"
	msgPlaybackEnded = "playback_ended"
)

// Server to client messages.
const (
	msgStatus      = "status"
	msgTranscript  = "transcript"
	msgReplyDelta  = "reply_delta"
	msgReply       = "reply"
	msgSpeak       = "speak"
	msgSpeakEnd    = "speak_end"
	msgSpeakCancel = "speak_cancel"
	msgError       = "error"
)

// Speaker kinds a client can ask for.
const (
	speakerAudio  = "audio"
	speakerAvatar = "avatar"
)

type clientMessage struct {
	Type            string `json:"type"`
	ConversationID  string `json:"conversation_id,omitempty"`
	AudioFormat     string `json:"audio_format,omitempty"`
	Speaker         string `json:"speaker,omitempty"`
	AvatarSessionID string `json:"avatar_session_id,omitempty"`
	Voice           string `json:"voice,omitempty"`
	// Playback echoes the id from speak/speak_end in playback_ended.
	Playback int `json:"playback,omitempty"`
}

type statusMessage struct {
	Type           string `json:"type"`
	State          string `json:"state"`
	Active         bool   `json:"active"`
	Turns          int    `json:"turns"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// speakMessage precedes the binary audio frame for one chunk. For the avatar
// speaker no audio frame follows.
type speakMessage struct {
	Type     string `json:"type"`
	Playback int    `json:"playback"`
	Seq      int    `json:"seq"`
	Mime     string `json:"mime"`
	Text     string `json:"text"`
}

type speakEndMessage struct {
	Type     string `json:"type"`
	Playback int    `json:"playback"`
}

type typeMessage struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
