package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atluriin/voicelink/internal/observe"
	"github.com/atluriin/voicelink/internal/wire"
)

// State is the lifecycle phase of a [Session].
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReconnectConfig tunes the automatic reconnect behaviour after a transient
// connection loss.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive reconnect attempts before the
	// session gives up. Defaults to 3 if zero.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number to produce the wait
	// before each attempt. Defaults to 1500ms if zero.
	BaseDelay time.Duration

	// MaxDelay caps the computed wait. Defaults to 10s if zero.
	MaxDelay time.Duration
}

func (c *ReconnectConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 1500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
}

// delayFor returns the wait before the given 1-based attempt.
func (c *ReconnectConfig) delayFor(attempt int) time.Duration {
	d := c.BaseDelay * time.Duration(attempt)
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Config configures a [Session].
type Config struct {
	Transport TransportConfig
	Reconnect ReconnectConfig

	// StreamTimeout bounds how long an in-flight answer generation may go
	// without a chunk before it is finalized as a fallback. Defaults to 20s
	// if zero.
	StreamTimeout time.Duration

	// HintCap and DedupWindow tune the conversation layer; zero values take
	// the conversation defaults.
	HintCap     int
	DedupWindow time.Duration

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Session supervises one participant's connection across its whole lifetime:
// dialing, the post-open handshake, event routing, reconnecting after
// transient losses, and terminal shutdown. Audio frames submitted while no
// connection is open are silently dropped.
type Session struct {
	cfg    Config
	log    *slog.Logger
	conv   *Conversation
	router *Router

	state     atomic.Int32
	transport atomic.Pointer[Transport]

	userStopped atomic.Bool
	completed   atomic.Bool
	closeOnce   sync.Once
	done        chan struct{}
	started     time.Time

	// roomMu guards Transport.RoomID, which a room_assigned message may
	// replace between connection attempts.
	roomMu sync.Mutex
}

// transportConfig snapshots the transport config for the next dial.
func (s *Session) transportConfig() TransportConfig {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()
	return s.cfg.Transport
}

// New builds a Session. Run must be called to start it.
func New(cfg Config) (*Session, error) {
	if !cfg.Transport.Participant.IsValid() {
		return nil, errors.New("session: participant must be candidate or interviewer")
	}
	cfg.Reconnect.applyDefaults()
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 20 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("participant", cfg.Transport.Participant, "room", cfg.Transport.RoomID)

	s := &Session{
		cfg:  cfg,
		log:  log,
		done: make(chan struct{}),
	}
	s.conv = NewConversation(ConversationConfig{
		AssistIntensity: cfg.Transport.AssistIntensity,
		StreamTimeout:   cfg.StreamTimeout,
		HintCap:         cfg.HintCap,
		DedupWindow:     cfg.DedupWindow,
		Logger:          log,
	})
	if cfg.Metrics != nil {
		m := cfg.Metrics
		s.conv.OnAnswerDone = func(mode AnswerMode, elapsed time.Duration) {
			m.AnswerCompleted(context.Background(), mode.String(), elapsed)
		}
	}
	s.router = NewRouter(s, s.conv, log, cfg.Metrics)
	return s, nil
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Conversation exposes the conversation state for UI rendering and tests.
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// Done is closed once the session has reached [StateClosed].
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		s.log.Debug("session state change", "from", prev.String(), "to", next.String())
	}
}

// SendFrame forwards one audio frame to the live transport, best-effort.
// Frames offered while connecting or reconnecting are dropped.
func (s *Session) SendFrame(frame []byte) bool {
	t := s.transport.Load()
	if t == nil || s.State() != StateOpen {
		return false
	}
	ok := t.SendFrame(frame)
	if m := s.cfg.Metrics; m != nil {
		if ok {
			m.FrameSent(context.Background(), string(s.cfg.Transport.Participant), len(frame))
		} else {
			m.FrameDropped(context.Background(), string(s.cfg.Transport.Participant))
		}
	}
	return ok
}

// SendControl forwards one control message to the live transport.
func (s *Session) SendControl(msg wire.Message) error {
	t := s.transport.Load()
	if t == nil {
		return ErrTransportClosed
	}
	return t.SendControl(msg)
}

// SetQuestion submits a manually entered question. Only the candidate channel
// echoes questions to the backend.
func (s *Session) SetQuestion(text string) error {
	if s.cfg.Transport.Participant != Candidate {
		return nil
	}
	return s.SendControl(wire.SetQuestion(text))
}

// echoQuestion forwards an adopted question upstream, best-effort. The
// candidate gate lives in SetQuestion.
func (s *Session) echoQuestion(text string) {
	if err := s.SetQuestion(text); err != nil {
		s.log.Debug("question echo not sent", "err", err)
	}
}

// StopAnswer asks the backend to abandon the in-flight answer generation.
func (s *Session) StopAnswer() error {
	return s.SendControl(wire.StopAnswerGeneration())
}

// markCompleted is called by the router when a final summary arrives; a
// completed session never reconnects.
func (s *Session) markCompleted() {
	s.completed.Store(true)
}

// adoptRoom replaces the room ID with one assigned by the backend so that
// reconnects rejoin the assigned room.
func (s *Session) adoptRoom(id string) {
	s.roomMu.Lock()
	if s.cfg.Transport.RoomID != id {
		s.cfg.Transport.RoomID = id
		s.log.Info("room assigned by backend", "room", id)
	}
	s.roomMu.Unlock()
}

// Stop requests a graceful shutdown. The session closes its live transport
// (if any) and will not reconnect. Safe to call multiple times.
func (s *Session) Stop() {
	s.closeOnce.Do(func() {
		s.userStopped.Store(true)
		if t := s.transport.Load(); t != nil {
			t.Close()
		}
	})
}

// Run drives the session until it is stopped, completes, hits a fatal close
// code, or exhausts its reconnect budget. It blocks; cancel ctx or call Stop
// to end it early.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.setState(StateClosed)
	defer s.conv.Shutdown()

	s.started = time.Now()
	if m := s.cfg.Metrics; m != nil {
		m.SessionStarted(context.Background(), string(s.cfg.Transport.Participant))
	}
	defer func() {
		if m := s.cfg.Metrics; m != nil {
			m.SessionEnded(context.Background(), string(s.cfg.Transport.Participant), time.Since(s.started))
		}
	}()

	attempt := 0
	for {
		if ctx.Err() != nil || s.userStopped.Load() {
			return ctx.Err()
		}

		s.setState(StateConnecting)
		t, err := Dial(ctx, s.transportConfig())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			if attempt > s.cfg.Reconnect.MaxAttempts {
				s.log.Error("connection attempts exhausted", "attempts", attempt-1, "err", err)
				return err
			}
			delay := s.cfg.Reconnect.delayFor(attempt)
			s.log.Warn("dial failed, retrying", "attempt", attempt, "delay", delay, "err", err)
			s.setState(StateReconnecting)
			if m := s.cfg.Metrics; m != nil {
				m.ReconnectAttempt(context.Background(), string(s.cfg.Transport.Participant))
			}
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		s.transport.Store(t)
		s.setState(StateOpen)
		attempt = 0
		s.log.Info("voice channel open")

		s.handshake(t)
		s.consume(ctx, t)

		s.transport.Store(nil)
		code := t.CloseCode()

		if ctx.Err() != nil || s.userStopped.Load() {
			return ctx.Err()
		}
		if s.completed.Load() {
			s.log.Info("session complete, not reconnecting", "close_code", code)
			return nil
		}

		switch wire.Classify(code) {
		case wire.CloseNormal:
			s.log.Info("connection closed", "close_code", code)
			return nil
		case wire.CloseFatal:
			s.log.Error("connection rejected, not reconnecting", "close_code", code)
			return fatalCloseError(code)
		case wire.CloseTransient:
			attempt++
			if attempt > s.cfg.Reconnect.MaxAttempts {
				s.log.Error("reconnect attempts exhausted", "close_code", code)
				return errors.New("session: reconnect attempts exhausted")
			}
			delay := s.cfg.Reconnect.delayFor(attempt)
			s.log.Warn("connection lost, reconnecting",
				"close_code", code, "attempt", attempt, "delay", delay)
			s.setState(StateReconnecting)
			if m := s.cfg.Metrics; m != nil {
				m.ReconnectAttempt(context.Background(), string(s.cfg.Transport.Participant))
			}
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
		}
	}
}

// handshake announces the participant role and requests a state snapshot so
// a reconnected session converges with the backend.
func (s *Session) handshake(t *Transport) {
	if err := t.SendControl(wire.RoleMessage(string(s.cfg.Transport.Participant))); err != nil {
		s.log.Warn("role announcement failed", "err", err)
	}
	if err := t.SendControl(wire.SyncStateRequest()); err != nil {
		s.log.Warn("sync state request failed", "err", err)
	}
}

// consume routes inbound events until the transport ends or ctx is canceled.
func (s *Session) consume(ctx context.Context, t *Transport) {
	for {
		select {
		case msg, ok := <-t.Events():
			if !ok {
				return
			}
			s.router.Route(msg)
		case <-ctx.Done():
			t.Close()
			// Drain so the read loop can exit.
			for range t.Events() {
			}
			return
		}
	}
}

// sleepCtx waits d, returning false early if ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func fatalCloseError(code int) error {
	if code == wire.CodeSessionExpired {
		return errors.New("session: authentication rejected")
	}
	return errors.New("session: policy violation close")
}
