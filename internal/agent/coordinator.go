package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Coordinator drives a Session against real collaborators. All transitions
// happen on the goroutine running Run; control calls and collaborator
// completions are delivered to it as events.
type Coordinator struct {
	cfg   Config
	rec   Recorder
	resp  Responder
	spk   Speaker
	hooks Hooks
	log   zerolog.Logger

	events chan event
	quit   chan struct{} // closed when Run stops taking events
	done   chan struct{}
	wg     sync.WaitGroup

	// sess and the call context fields are owned by the Run goroutine.
	sess       Session
	runCtx     context.Context
	callCtx    context.Context
	callCancel context.CancelFunc
	callGen    uint64

	mu     sync.RWMutex
	status Status
}

// NewCoordinator constructs a Coordinator. Run must be called before the
// control methods have any effect.
func NewCoordinator(cfg Config, rec Recorder, resp Responder, spk Speaker, hooks Hooks, log zerolog.Logger) *Coordinator {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Coordinator{
		cfg:    cfg,
		rec:    rec,
		resp:   resp,
		spk:    spk,
		hooks:  hooks,
		log:    log,
		events: make(chan event, 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		status: Status{State: StateIdle},
	}
}

// Start activates live mode. It is a no-op unless the session is idle.
func (c *Coordinator) Start() { c.post(event{kind: evStart}) }

// Stop deactivates live mode from any state. Calling it twice is harmless.
func (c *Coordinator) Stop() { c.post(event{kind: evStop}) }

// UserFinishedSpeaking ends the current recording and hands it on for transcription.
func (c *Coordinator) UserFinishedSpeaking() { c.post(event{kind: evFinished}) }

// Status returns the last published status.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Done is closed once Run has stopped and every collaborator call it
// started has returned.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Run processes events until ctx is canceled, then stops the session and
// waits for outstanding collaborator calls to return.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCtx = ctx
	c.syncGeneration()
	for {
		select {
		case <-ctx.Done():
			c.handle(event{kind: evStop})
			c.callCancel()
			close(c.quit)
			c.wg.Wait()
			close(c.done)
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Coordinator) handle(ev event) {
	before := c.sess.State
	c.step(ev)
	if after := c.sess.State; after != before {
		c.log.Debug().Str("from", before.String()).Str("to", after.String()).Msg("live state changed")
	}
	c.publish()
}

func (c *Coordinator) step(ev event) {
	cmds := c.sess.apply(ev)
	c.syncGeneration()
	for _, cmd := range cmds {
		c.exec(cmd)
	}
}

// syncGeneration gives each session generation its own call context, so
// moving past a generation cancels every call made under it.
func (c *Coordinator) syncGeneration() {
	if c.callCtx != nil && c.callGen == c.sess.gen {
		return
	}
	if c.callCancel != nil {
		c.callCancel()
	}
	c.callCtx, c.callCancel = context.WithCancel(c.runCtx)
	c.callGen = c.sess.gen
}

func (c *Coordinator) exec(cmd command) {
	ctx := c.callCtx
	switch cmd.kind {
	case cmdStartRecording:
		if err := c.rec.Start(ctx); err != nil {
			c.log.Warn().Err(err).Msg("recorder could not start; leaving live mode")
			c.step(event{kind: evRecorderFailed, gen: cmd.gen})
		}

	case cmdStopRecording:
		c.spawn(func() {
			callCtx, cancel := c.callContext(ctx)
			defer cancel()
			text, err := c.rec.Stop(callCtx)
			if err != nil {
				c.log.Warn().Err(err).Msg("transcription failed")
			}
			c.post(event{kind: evTranscript, gen: cmd.gen, text: text, err: err})
		})

	case cmdDiscardRecording:
		// A canceled context tells the recorder to release capture without transcribing.
		// It runs on the loop so a following Start cannot be overtaken by it.
		discard, cancel := context.WithCancel(context.WithoutCancel(ctx))
		cancel()
		if _, err := c.rec.Stop(discard); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Debug().Err(err).Msg("discarded recording stop failed")
		}

	case cmdSend:
		c.spawn(func() {
			callCtx, cancel := c.callContext(ctx)
			defer cancel()
			reply, err := c.resp.Send(callCtx, cmd.text)
			if err != nil {
				c.log.Warn().Err(err).Msg("responder failed")
			}
			c.post(event{kind: evReply, gen: cmd.gen, text: reply, err: err})
		})

	case cmdSpeak:
		c.spawn(func() {
			callCtx, cancel := c.callContext(ctx)
			defer cancel()
			err := c.spk.Speak(callCtx, cmd.text)
			if err != nil {
				c.log.Warn().Err(err).Msg("playback failed")
			}
			c.post(event{kind: evPlaybackEnded, gen: cmd.gen, err: err})
		})

	case cmdStopSpeaking:
		c.spk.Stop()

	case cmdSettle:
		gen := cmd.gen
		time.AfterFunc(c.cfg.SettleDelay, func() {
			c.post(event{kind: evSettled, gen: gen})
		})

	case cmdNotifyTranscript:
		if c.hooks.OnTranscript != nil {
			c.hooks.OnTranscript(cmd.text)
		}

	case cmdNotifyReply:
		if c.hooks.OnReply != nil {
			c.hooks.OnReply(cmd.text)
		}
	}
}

func (c *Coordinator) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Coordinator) publish() {
	next := c.sess.Status()
	c.mu.Lock()
	changed := next != c.status
	c.status = next
	c.mu.Unlock()
	if changed && c.hooks.OnStatus != nil {
		c.hooks.OnStatus(next)
	}
}
