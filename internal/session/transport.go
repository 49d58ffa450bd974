// Package session implements the client side of one /ws/voice connection:
// the transport that carries audio frames and control messages, the
// state machine that supervises connect/reconnect/resync, and the event
// router that folds inbound messages into conversation state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/atluriin/voicelink/internal/wire"
	"github.com/atluriin/voicelink/pkg/audio"
)

// Participant identifies which side of the room a connection speaks for.
type Participant string

const (
	Candidate   Participant = "candidate"
	Interviewer Participant = "interviewer"
)

// IsValid reports whether p is a recognised participant role.
func (p Participant) IsValid() bool {
	return p == Candidate || p == Interviewer
}

// Default transport tuning. All values are overridable via [TransportConfig].
const (
	defaultMaxBufferedBytes = 256 * 1024
	defaultConnectTimeout   = 8 * time.Second
	defaultWriteQueue       = 128

	// controlRetryDelay is how long a control send waits before its single
	// retry when the socket is not yet open.
	controlRetryDelay = 250 * time.Millisecond
)

// ErrTransportClosed is returned by control sends after Close.
var ErrTransportClosed = errors.New("session: transport closed")

// TransportConfig configures a [Transport].
type TransportConfig struct {
	// BackendURL is the http(s) base of the analysis backend. The ws(s)
	// scheme and /ws/voice path are derived from it.
	BackendURL string

	// RoomID is the shared room identifier (UUIDv4).
	RoomID string

	// Participant selects the candidate or interviewer channel.
	Participant Participant

	// AssistIntensity is the 1–3 hint verbosity level.
	AssistIntensity int

	// Token optionally authenticates the connection.
	Token string

	// AnswerLanguage optionally requests an answer language policy.
	AnswerLanguage string

	// MaxBufferedBytes is the backpressure threshold: while more than this
	// many frame bytes are queued but unwritten, SendFrame drops. Defaults
	// to 256 KiB if zero.
	MaxBufferedBytes int64

	// ConnectTimeout bounds the WebSocket dial. Defaults to 8s if zero.
	ConnectTimeout time.Duration
}

// outbound is one queued wire write. Control and binary writes share a single
// queue so control messages are never reordered relative to the audio frames
// they bracket.
type outbound struct {
	binary  bool
	payload []byte
}

// Transport owns one live /ws/voice connection. Binary audio sends are
// best-effort and lossy under backpressure; control messages are reliable
// within the session's lifetime. Events decoded from inbound text frames are
// delivered on [Transport.Events] until the connection ends.
//
// All methods are safe for concurrent use.
type Transport struct {
	cfg TransportConfig

	conn   *websocket.Conn
	writes chan outbound
	events chan wire.Message
	done   chan struct{}

	outstanding atomic.Int64
	opened      atomic.Bool
	closeOnce   sync.Once
	wg          sync.WaitGroup

	mu        sync.Mutex
	closeCode int
}

// Dial opens the WebSocket connection and starts the read and write loops.
// The context bounds only the connection attempt.
func Dial(ctx context.Context, cfg TransportConfig) (*Transport, error) {
	if cfg.MaxBufferedBytes <= 0 {
		cfg.MaxBufferedBytes = defaultMaxBufferedBytes
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if !cfg.Participant.IsValid() {
		return nil, fmt.Errorf("session: invalid participant %q", cfg.Participant)
	}

	wsURL, err := buildVoiceURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("session: build URL: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{},
	})
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", cfg.Participant, err)
	}

	t := &Transport{
		cfg:       cfg,
		conn:      conn,
		writes:    make(chan outbound, defaultWriteQueue),
		events:    make(chan wire.Message, 64),
		done:      make(chan struct{}),
		closeCode: int(websocket.StatusAbnormalClosure),
	}
	t.opened.Store(true)

	t.wg.Add(2)
	go t.readLoop()
	go t.writeLoop()
	return t, nil
}

// buildVoiceURL derives the ws(s) endpoint with query parameters from the
// backend base URL.
func buildVoiceURL(cfg TransportConfig) (string, error) {
	u, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws/voice"

	q := u.Query()
	q.Set("assist_intensity", strconv.Itoa(cfg.AssistIntensity))
	q.Set("room_id", cfg.RoomID)
	q.Set("participant", string(cfg.Participant))
	if cfg.Token != "" {
		q.Set("token", cfg.Token)
	}
	if cfg.AnswerLanguage != "" {
		q.Set("answer_language", cfg.AnswerLanguage)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SendFrame queues one binary audio frame, best-effort. It never blocks and
// never enqueues past the backpressure threshold: when the outstanding byte
// counter exceeds MaxBufferedBytes the frame is dropped and false is
// returned. Undersized or odd-length frames are dropped outright. Frames are
// written in the order they were accepted.
func (t *Transport) SendFrame(frame []byte) bool {
	if len(frame) < audio.MinFrameBytes || len(frame)%2 != 0 {
		return false
	}
	if !t.opened.Load() {
		return false
	}
	if t.outstanding.Load() > t.cfg.MaxBufferedBytes {
		return false
	}

	t.outstanding.Add(int64(len(frame)))
	select {
	case t.writes <- outbound{binary: true, payload: frame}:
		return true
	default:
		// Queue full: drop rather than block the capture path.
		t.outstanding.Add(-int64(len(frame)))
		return false
	}
}

// SendControl queues one JSON control message. If the transport is already
// closed the send is retried once after a short delay, then fails; control
// sends share the write queue with audio so ordering is preserved.
func (t *Transport) SendControl(msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		if t.opened.Load() {
			select {
			case t.writes <- outbound{payload: data}:
				return nil
			case <-t.done:
				return ErrTransportClosed
			}
		}
		if attempt == 0 {
			time.Sleep(controlRetryDelay)
		}
	}
	return fmt.Errorf("%w: control %s not sent", ErrTransportClosed, msg.Type)
}

// Events returns the channel of decoded inbound messages. It is closed when
// the connection ends.
func (t *Transport) Events() <-chan wire.Message {
	return t.events
}

// Done is closed when the connection has fully terminated.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// CloseCode reports the WebSocket close code observed when the connection
// ended. Before termination it reports 1006 (abnormal closure).
func (t *Transport) CloseCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCode
}

// Outstanding reports the bytes currently queued but not yet written. Exposed
// for backpressure metrics and tests.
func (t *Transport) Outstanding() int64 {
	return t.outstanding.Load()
}

// Close tears the connection down: a graceful stop control message is
// attempted first (failures swallowed), then the socket is closed with a
// normal-closure status. Safe to call multiple times.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.opened.Store(false)

		if stop, err := wire.Encode(wire.StopMessage()); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = t.conn.Write(ctx, websocket.MessageText, stop)
			cancel()
		}

		t.conn.Close(websocket.StatusNormalClosure, "client stop")
		t.setCloseCode(int(websocket.StatusNormalClosure))
		t.wg.Wait()
	})
	return nil
}

func (t *Transport) setCloseCode(code int) {
	t.mu.Lock()
	t.closeCode = code
	t.mu.Unlock()
}

// writeLoop drains the shared write queue onto the socket. A single writer
// preserves capture order and the control/binary bracketing.
func (t *Transport) writeLoop() {
	defer t.wg.Done()
	ctx := context.Background()
	for {
		select {
		case out := <-t.writes:
			kind := websocket.MessageText
			if out.binary {
				kind = websocket.MessageBinary
			}
			err := t.conn.Write(ctx, kind, out.payload)
			if out.binary {
				t.outstanding.Add(-int64(len(out.payload)))
			}
			if err != nil {
				t.opened.Store(false)
				return
			}
		case <-t.done:
			return
		}
	}
}

// readLoop receives inbound frames, decodes text frames, and delivers them
// as events. When the read fails the close code is recorded and the event
// channel and done channel are closed.
func (t *Transport) readLoop() {
	defer t.wg.Done()
	defer close(t.done)
	defer close(t.events)

	ctx := context.Background()
	for {
		kind, data, err := t.conn.Read(ctx)
		if err != nil {
			t.opened.Store(false)
			if code := websocket.CloseStatus(err); code != -1 {
				t.setCloseCode(int(code))
			}
			return
		}
		if kind != websocket.MessageText {
			// The backend never sends binary; ignore.
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil {
			slog.Debug("discarding malformed inbound message",
				"participant", t.cfg.Participant,
				"err", err,
			)
			continue
		}
		select {
		case t.events <- msg:
		default:
			slog.Warn("inbound event queue full, dropping message",
				"participant", t.cfg.Participant,
				"type", msg.Type,
			)
		}
	}
}
