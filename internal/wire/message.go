// Package wire defines the JSON message vocabulary spoken on the /ws/voice
// connection to the analysis backend, plus the close-code classification that
// drives reconnect decisions.
//
// Binary frames on the same connection carry raw PCM16 audio and are not
// represented here; every text frame is a JSON object with a "type"
// discriminator drawn from the closed set below.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type discriminates the JSON text frames exchanged on a voice connection.
type Type string

// Outbound message types (client → backend).
const (
	TypeRole                 Type = "role"
	TypeStop                 Type = "stop"
	TypeSyncStateRequest     Type = "sync_state_request"
	TypePong                 Type = "pong"
	TypeSetQuestion          Type = "set_question"
	TypeStopAnswerGeneration Type = "stop_answer_generation"
)

// Inbound message types (backend → client).
const (
	TypeSyncState             Type = "sync_state"
	TypePartialTranscript     Type = "partial_transcript"
	TypeTranscript            Type = "transcript"
	TypeInterviewerQuestion   Type = "interviewer_question"
	TypeNextQuestion          Type = "next_question"
	TypeAnswerSuggestionStart Type = "answer_suggestion_start"
	TypeAnswerSuggestionChunk Type = "answer_suggestion_chunk"
	TypeAnswerSuggestionDone  Type = "answer_suggestion_done"
	TypeAssistHint            Type = "assist_hint"
	TypeAIDecision            Type = "ai_decision"
	TypePing                  Type = "ping"
	TypeWaitingForInterviewer Type = "waiting_for_interviewer"
	TypeSTTWarning            Type = "stt_warning"
	TypeFinalSummary          Type = "final_summary"
	TypeRoomAssigned          Type = "room_assigned"
)

// knownTypes is the closed set accepted by [Decode].
var knownTypes = map[Type]bool{
	TypeRole: true, TypeStop: true, TypeSyncStateRequest: true,
	TypePong: true, TypeSetQuestion: true, TypeStopAnswerGeneration: true,
	TypeSyncState: true, TypePartialTranscript: true, TypeTranscript: true,
	TypeInterviewerQuestion: true, TypeNextQuestion: true,
	TypeAnswerSuggestionStart: true, TypeAnswerSuggestionChunk: true,
	TypeAnswerSuggestionDone: true, TypeAssistHint: true,
	TypeAIDecision: true, TypePing: true, TypeWaitingForInterviewer: true,
	TypeSTTWarning: true, TypeFinalSummary: true, TypeRoomAssigned: true,
}

// ErrMalformed marks an inbound text frame that could not be interpreted:
// invalid JSON, a missing discriminator, or a type outside the closed set.
// The router swallows these with a diagnostic log line.
var ErrMalformed = errors.New("wire: malformed message")

// Message is the envelope for every text frame. Only the fields relevant to
// a given [Type] are populated; the rest stay at their zero values.
type Message struct {
	Type Type `json:"type"`

	// Transcript text (partial_transcript, transcript) and warning text
	// (stt_warning uses Warning below).
	Text string `json:"text,omitempty"`

	// Question carried by interviewer_question, next_question,
	// answer_suggestion_start, and set_question.
	Question string `json:"question,omitempty"`

	// Streaming answer fields.
	Chunk      string `json:"chunk,omitempty"`
	IsThinking bool   `json:"is_thinking,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// Hint is the assist_hint payload.
	Hint *Hint `json:"payload,omitempty"`

	// Decision is the ai_decision payload.
	Decision *Decision `json:"decision,omitempty"`

	// Resync snapshot (sync_state).
	ActiveQuestion  string `json:"active_question,omitempty"`
	PartialAnswer   string `json:"partial_answer,omitempty"`
	IsStreaming     bool   `json:"is_streaming,omitempty"`
	AssistIntensity int    `json:"assist_intensity,omitempty"`

	// Role assignment (role).
	Role string `json:"role,omitempty"`

	// Session / room identity.
	SessionID string `json:"session_id,omitempty"`
	RoomID    string `json:"room_id,omitempty"`

	// Warning text (stt_warning).
	Warning string `json:"message,omitempty"`

	// Summary is the raw final report (final_summary). The report schema
	// evolves server-side, so it stays opaque here.
	Summary json.RawMessage `json:"data,omitempty"`

	// TS is a millisecond timestamp echoed on pong.
	TS int64 `json:"ts,omitempty"`
}

// Hint is the payload of an assist_hint message.
type Hint struct {
	RuleID     string  `json:"rule_id"`
	Message    string  `json:"message"`
	Title      string  `json:"title,omitempty"`
	Severity   string  `json:"severity"`
	Priority   int     `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// Decision is the payload of an ai_decision message. Scores are 0–100 unless
// noted.
type Decision struct {
	Confidence             float64 `json:"confidence"` // 0..1
	HesitationCount        int     `json:"hesitation_count"`
	Message                string  `json:"message,omitempty"`
	ClarityScore           float64 `json:"clarity_score"`
	DepthScore             float64 `json:"depth_score"`
	StructureScore         float64 `json:"structure_score"`
	MetricUsageScore       float64 `json:"metric_usage_score"`
	DriftFrequency         float64 `json:"drift_frequency"` // 0..1
	ContradictionsDetected int     `json:"contradictions_detected"`
	OwnershipClarityScore  float64 `json:"ownership_clarity_score"`
	Verdict                string  `json:"verdict,omitempty"`
	Explanation            string  `json:"explanation,omitempty"`
}

// Decode parses one inbound text frame. Frames that are not valid JSON, lack
// a type, or carry a type outside the closed set return an error wrapping
// [ErrMalformed].
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type discriminator", ErrMalformed)
	}
	if !knownTypes[msg.Type] {
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, msg.Type)
	}
	return msg, nil
}

// Encode serialises an outbound message as a JSON text frame.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", msg.Type, err)
	}
	return data, nil
}

// ── Outbound builders ────────────────────────────────────────────────────────

// RoleMessage announces the interview role context after connecting.
func RoleMessage(role string) Message {
	return Message{Type: TypeRole, Role: role}
}

// StopMessage requests a graceful session stop.
func StopMessage() Message {
	return Message{Type: TypeStop}
}

// SyncStateRequest asks the backend to replay in-flight conversation state.
// Sent immediately after every (re)connect.
func SyncStateRequest() Message {
	return Message{Type: TypeSyncStateRequest}
}

// PongMessage answers a server ping with a millisecond timestamp.
func PongMessage(ts int64) Message {
	return Message{Type: TypePong, TS: ts}
}

// SetQuestion echoes an adopted question upstream so the backend tracks the
// active question for the candidate channel.
func SetQuestion(question string) Message {
	return Message{Type: TypeSetQuestion, Question: question}
}

// StopAnswerGeneration aborts an in-flight answer stream.
func StopAnswerGeneration() Message {
	return Message{Type: TypeStopAnswerGeneration}
}
