package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/atluriin/voicelink/internal/observe"
	"github.com/atluriin/voicelink/internal/wire"
)

// controlSender is the slice of [Session] the router needs to reply to the
// backend and to flag completion.
type controlSender interface {
	SendControl(msg wire.Message) error
	markCompleted()
	adoptRoom(id string)
	echoQuestion(text string)
}

// Router folds inbound wire messages into conversation state and answers
// protocol-level requests (ping) on the session's behalf.
type Router struct {
	sender  controlSender
	conv    *Conversation
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewRouter wires a router to its session and conversation.
func NewRouter(sender controlSender, conv *Conversation, log *slog.Logger, m *observe.Metrics) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{sender: sender, conv: conv, log: log, metrics: m}
}

// Route dispatches one inbound message. Unhandled conditions are logged and
// swallowed; a bad message must never take the session down.
func (r *Router) Route(msg wire.Message) {
	if r.metrics != nil {
		r.metrics.EventReceived(context.Background(), string(msg.Type))
	}

	switch msg.Type {
	case wire.TypeSyncState:
		r.conv.ApplySyncState(msg)

	case wire.TypePartialTranscript:
		r.conv.ApplyPartial(msg.Text)

	case wire.TypeTranscript:
		r.conv.ApplyFinal(msg.Text)

	case wire.TypeInterviewerQuestion:
		// The backend already started generating for a detected question;
		// echoing set_question here would trigger a second generation.
		if q := firstNonEmpty(msg.Question, msg.Text); q != "" {
			if r.conv.SetQuestion(q) {
				r.log.Info("new question", "question", q)
				r.conv.BeginAnswer(false)
			}
		}

	case wire.TypeNextQuestion:
		// Advancing to the next question also begins a fresh generation
		// cycle; the candidate channel echoes the adopted question upstream.
		if q := firstNonEmpty(msg.Question, msg.Text); q != "" {
			if r.conv.SetQuestion(q) {
				r.log.Info("next question", "question", q)
				r.conv.BeginAnswer(false)
				r.sender.echoQuestion(q)
			}
		}

	case wire.TypeAnswerSuggestionStart:
		if msg.Question != "" {
			r.conv.SetQuestion(msg.Question)
		}
		r.conv.BeginAnswer(msg.IsThinking)

	case wire.TypeAnswerSuggestionChunk:
		if msg.IsThinking {
			r.conv.MarkThinking()
		} else {
			r.conv.AppendChunk(msg.Chunk)
		}

	case wire.TypeAnswerSuggestionDone:
		r.conv.FinishAnswer(msg.Suggestion, msg.Reason)

	case wire.TypeAssistHint:
		if msg.Hint != nil {
			r.conv.OfferHint(*msg.Hint)
		}

	case wire.TypeAIDecision:
		if msg.Decision != nil {
			r.conv.ApplyDecision(*msg.Decision)
		}

	case wire.TypePing:
		ts := msg.TS
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		if err := r.sender.SendControl(wire.PongMessage(ts)); err != nil {
			r.log.Debug("pong not sent", "err", err)
		}

	case wire.TypeWaitingForInterviewer:
		r.conv.SuspendStreaming()
		r.log.Info("waiting for interviewer to join")

	case wire.TypeSTTWarning:
		r.log.Warn("speech-to-text degraded", "warning", msg.Warning)

	case wire.TypeFinalSummary:
		r.conv.SetSummary(msg.Summary)
		r.sender.markCompleted()
		r.log.Info("final summary received")

	case wire.TypeRoomAssigned:
		if msg.RoomID != "" {
			r.sender.adoptRoom(msg.RoomID)
		}

	default:
		r.log.Debug("unhandled message type", "type", msg.Type)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
