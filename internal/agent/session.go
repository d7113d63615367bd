package agent

import "strings"

// activity is the collaborator call the session is waiting on.
type activity int

const (
	activityNone activity = iota
	activityRecording
	activityTranscribing
	activityResponding
	activitySpeaking
	activitySettling
)

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evFinished
	evRecorderFailed
	evTranscript
	evReply
	evPlaybackEnded
	evSettled
)

// event is the only input to the state machine. Completion events carry the
// generation they were issued under so results from before a Stop are dropped.
type event struct {
	kind eventKind
	gen  uint64
	text string
	err  error
}

type commandKind int

const (
	cmdStartRecording commandKind = iota
	cmdStopRecording
	cmdDiscardRecording
	cmdSend
	cmdSpeak
	cmdStopSpeaking
	cmdSettle
	cmdNotifyTranscript
	cmdNotifyReply
)

type command struct {
	kind commandKind
	gen  uint64
	text string
}

// Session is the live-mode record. State and Continue only change together
// inside apply.
type Session struct {
	State    State
	Continue bool
	Turns    int

	gen     uint64
	pending activity
}

// Status returns the renderable view of the session.
func (s *Session) Status() Status {
	return Status{State: s.State, Active: s.Continue, Turns: s.Turns}
}

// apply runs one transition and returns the side effects to perform.
func (s *Session) apply(ev event) []command {
	switch ev.kind {
	case evStart:
		return s.start()
	case evStop:
		return s.stop()
	case evFinished:
		return s.finished()
	}

	if ev.gen != s.gen || !s.Continue {
		return nil
	}

	switch ev.kind {
	case evRecorderFailed:
		if s.pending != activityRecording {
			return nil
		}
		s.halt()
		return nil

	case evTranscript:
		if s.pending != activityTranscribing {
			return nil
		}
		text := strings.TrimSpace(ev.text)
		if ev.err != nil || text == "" {
			return s.relisten()
		}
		s.pending = activityResponding
		return []command{
			{kind: cmdNotifyTranscript, gen: s.gen, text: text},
			{kind: cmdSend, gen: s.gen, text: text},
		}

	case evReply:
		if s.pending != activityResponding || s.State != StateProcessing {
			return nil
		}
		text := strings.TrimSpace(ev.text)
		if ev.err != nil || text == "" {
			return s.relisten()
		}
		s.Turns++
		s.State = StateSpeaking
		s.pending = activitySpeaking
		return []command{
			{kind: cmdNotifyReply, gen: s.gen, text: text},
			{kind: cmdSpeak, gen: s.gen, text: text},
		}

	case evPlaybackEnded:
		if s.pending != activitySpeaking {
			return nil
		}
		s.pending = activitySettling
		return []command{{kind: cmdSettle, gen: s.gen}}

	case evSettled:
		if s.pending != activitySettling {
			return nil
		}
		return s.relisten()
	}
	return nil
}

func (s *Session) start() []command {
	if s.State != StateIdle {
		return nil
	}
	s.gen++
	s.Continue = true
	s.Turns = 0
	s.State = StateListening
	s.pending = activityRecording
	return []command{{kind: cmdStartRecording, gen: s.gen}}
}

func (s *Session) finished() []command {
	if !s.Continue || s.State != StateListening || s.pending != activityRecording {
		return nil
	}
	s.State = StateProcessing
	s.pending = activityTranscribing
	return []command{{kind: cmdStopRecording, gen: s.gen}}
}

func (s *Session) stop() []command {
	if !s.Continue && s.State == StateIdle {
		return nil
	}
	var cmds []command
	switch s.pending {
	case activityRecording:
		// The microphone is still open; close it and drop whatever it heard.
		cmds = append(cmds, command{kind: cmdDiscardRecording, gen: s.gen})
	case activitySpeaking:
		cmds = append(cmds, command{kind: cmdStopSpeaking, gen: s.gen})
	}
	s.halt()
	return cmds
}

func (s *Session) relisten() []command {
	s.State = StateListening
	s.pending = activityRecording
	return []command{{kind: cmdStartRecording, gen: s.gen}}
}

// halt clears the flag and bumps the generation so in-flight completions are ignored.
func (s *Session) halt() {
	s.Continue = false
	s.State = StateIdle
	s.pending = activityNone
	s.gen++
}
