// Package room coordinates the two participant sessions of one interview
// room: the candidate's microphone channel and the interviewer's system
// audio channel, each with its own capture pipeline and WebSocket
// connection.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atluriin/voicelink/internal/config"
	"github.com/atluriin/voicelink/internal/health"
	"github.com/atluriin/voicelink/internal/observe"
	"github.com/atluriin/voicelink/internal/session"
	"github.com/atluriin/voicelink/pkg/audio"
	"github.com/atluriin/voicelink/pkg/audio/capture"
)

// OpenSourceFunc opens a capture source. It is a seam for tests; production
// use wires [defaultOpenSource], which opens real devices via the capture
// package.
type OpenSourceFunc func(ctx context.Context, kind capture.Kind, cfg capture.Config) (audio.Stream, error)

func defaultOpenSource(ctx context.Context, kind capture.Kind, cfg capture.Config) (audio.Stream, error) {
	return capture.Open(ctx, kind, cfg)
}

// Coordinator runs one interview room end to end: it resolves the room ID,
// opens capture for each enabled participant, and supervises both sessions
// independently so a failure on one side never takes down the other.
type Coordinator struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observe.Metrics
	healthH *health.Handler

	openSource OpenSourceFunc

	roomID string

	mu       sync.Mutex
	sessions map[session.Participant]*session.Session
	stopped  bool
}

// Option customises a [Coordinator].
type Option func(*Coordinator)

// WithOpenSource overrides how capture sources are opened.
func WithOpenSource(fn OpenSourceFunc) Option {
	return func(c *Coordinator) { c.openSource = fn }
}

// WithMetrics attaches metrics recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithHealth registers per-session readiness checks on h.
func WithHealth(h *health.Handler) Option {
	return func(c *Coordinator) { c.healthH = h }
}

// New builds a Coordinator. If the configured room ID is empty a fresh
// UUIDv4 room is generated.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("room: nil config")
	}
	if log == nil {
		log = slog.Default()
	}

	roomID := cfg.Room.ID
	if roomID == "" {
		roomID = uuid.NewString()
		log.Info("generated room", "room", roomID)
	} else if _, err := uuid.Parse(roomID); err != nil {
		return nil, fmt.Errorf("room: invalid room ID %q: %w", roomID, err)
	}

	c := &Coordinator{
		cfg:        cfg,
		log:        log.With("room", roomID),
		openSource: defaultOpenSource,
		roomID:     roomID,
		sessions:   make(map[session.Participant]*session.Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RoomID returns the resolved room identifier.
func (c *Coordinator) RoomID() string {
	return c.roomID
}

// AdoptRoom replaces the room ID with one assigned by the backend. Only
// valid before Run.
func (c *Coordinator) AdoptRoom(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("room: invalid assigned room ID %q: %w", id, err)
	}
	c.mu.Lock()
	c.roomID = id
	c.mu.Unlock()
	c.log.Info("adopted assigned room", "room", id)
	return nil
}

// Session returns the running session for the given participant, or nil.
func (c *Coordinator) Session(p session.Participant) *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[p]
}

// captureKind maps a configured source to the capture backend kind. The
// interviewer's "system" source uses OS loopback.
func captureKind(src config.SourceKind) (capture.Kind, bool) {
	switch src {
	case config.SourceMicrophone:
		return capture.Microphone, true
	case config.SourceSystem:
		return capture.Loopback, true
	default:
		return "", false
	}
}

// Run starts one pipeline per enabled participant and blocks until both have
// finished or ctx is canceled. Each side runs independently: an error on one
// is reported but does not cancel the other.
func (c *Coordinator) Run(ctx context.Context) error {
	type side struct {
		participant session.Participant
		source      config.SourceKind
	}
	sides := []side{
		{session.Candidate, c.cfg.Audio.CandidateSource},
		{session.Interviewer, c.cfg.Audio.InterviewerSource},
	}

	g := &errgroup.Group{}
	started := 0
	for _, s := range sides {
		kind, enabled := captureKind(s.source)
		if !enabled {
			c.log.Info("participant capture disabled", "participant", s.participant)
			continue
		}
		started++
		g.Go(func() error {
			err := c.runSide(ctx, s.participant, kind)
			if err != nil && !errors.Is(err, context.Canceled) {
				c.log.Error("participant pipeline failed",
					"participant", s.participant, "err", err)
				return fmt.Errorf("%s: %w", s.participant, err)
			}
			return nil
		})
	}
	if started == 0 {
		return errors.New("room: no participant enabled")
	}
	return g.Wait()
}

// runSide opens capture, starts the session, and pumps audio until either
// ends.
func (c *Coordinator) runSide(ctx context.Context, p session.Participant, kind capture.Kind) error {
	src, err := c.openSource(ctx, kind, capture.Config{
		DeviceName: c.cfg.Audio.Device,
		BufferCap:  c.cfg.Audio.BufferFrames,
	})
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer src.Close()

	sess, err := session.New(session.Config{
		Transport: session.TransportConfig{
			BackendURL:       c.cfg.Backend.URL,
			RoomID:           c.roomID,
			Participant:      p,
			AssistIntensity:  c.cfg.Assist.Intensity,
			Token:            c.cfg.Backend.Token,
			AnswerLanguage:   c.cfg.Backend.AnswerLanguage,
			MaxBufferedBytes: c.cfg.Transport.MaxBufferedBytes,
			ConnectTimeout:   c.cfg.Transport.ConnectTimeout,
		},
		Reconnect: session.ReconnectConfig{
			MaxAttempts: c.cfg.Reconnect.MaxAttempts,
			BaseDelay:   c.cfg.Reconnect.BaseDelay,
			MaxDelay:    c.cfg.Reconnect.MaxDelay,
		},
		StreamTimeout: c.cfg.Transport.StreamTimeout,
		HintCap:       c.cfg.Assist.HintCap,
		DedupWindow:   c.cfg.Assist.QuestionDedupWindow,
		Logger:        c.log,
		Metrics:       c.metrics,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return context.Canceled
	}
	c.sessions[p] = sess
	c.mu.Unlock()

	if c.healthH != nil {
		name := string(p)
		c.healthH.Set(name, func(context.Context) error {
			if st := sess.State(); st != session.StateOpen {
				return fmt.Errorf("session %s", st)
			}
			return nil
		})
		defer c.healthH.Remove(name)
	}

	go c.pump(src, sess)

	err = sess.Run(ctx)

	c.mu.Lock()
	delete(c.sessions, p)
	c.mu.Unlock()
	return err
}

// pump converts captured sample blocks to wire frames and hands them to the
// session. It exits when the capture channel closes or the session ends.
func (c *Coordinator) pump(src audio.Stream, sess *session.Session) {
	framer := &audio.Framer{}
	for {
		select {
		case samples, ok := <-src.Frames():
			if !ok {
				return
			}
			pcm := audio.Resample(samples, src.SampleRate())
			if len(pcm) == 0 {
				continue
			}
			for _, frame := range framer.Push(pcm) {
				sess.SendFrame(frame)
			}
		case <-sess.Done():
			return
		}
	}
}

// Stop requests a graceful shutdown of every running session. Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	sessions := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	c.log.Info("room stopped")
}
