package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/atluriin/voicelink/internal/wire"
)

// AnswerMode describes how the current answer text was produced.
type AnswerMode int

const (
	// AnswerIdle means no generation is in flight and no answer is shown.
	AnswerIdle AnswerMode = iota

	// AnswerGenerating means chunks are streaming in.
	AnswerGenerating

	// AnswerLive is a completed answer built from streamed chunks.
	AnswerLive

	// AnswerFallback is a completed answer delivered after a stream timeout
	// or backend error; it replaced the streamed text wholesale.
	AnswerFallback
)

// String implements [fmt.Stringer].
func (m AnswerMode) String() string {
	switch m {
	case AnswerIdle:
		return "idle"
	case AnswerGenerating:
		return "generating"
	case AnswerLive:
		return "live"
	case AnswerFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// thinkingPlaceholder is shown while the backend signals it is still
// formulating an answer and no real chunk has arrived yet.
const thinkingPlaceholder = "Analyzing question..."

// Fallback reasons carried on answer_suggestion_done.
const (
	ReasonTimeoutFallback = "timeout_fallback"
	ReasonErrorFallback   = "error_fallback"
)

// Conversation tuning defaults.
const (
	defaultHintCap       = 3
	defaultDedupWindow   = 3 * time.Second
	defaultStreamTimeout = 20 * time.Second
	answerHistoryCap     = 5

	// questionKeyLen bounds the normalized dedup key.
	questionKeyLen = 50

	// questionSimilarity is the Jaro-Winkler score above which two
	// normalized questions count as the same question.
	questionSimilarity = 0.92
)

// hintReshowInterval returns the minimum gap before a rule's hint may be
// shown again, per assist intensity.
func hintReshowInterval(intensity int) time.Duration {
	switch intensity {
	case 1:
		return 2800 * time.Millisecond
	case 2:
		return 2200 * time.Millisecond
	default:
		return 1600 * time.Millisecond
	}
}

// hintAllowed applies the intensity gate: level 1 shows only high-severity,
// top-priority hints, level 2 filters out low-severity noise, level 3 shows
// everything.
func hintAllowed(intensity int, h wire.Hint) bool {
	switch intensity {
	case 1:
		return h.Severity == "high" && h.Priority <= 1
	case 2:
		return h.Severity != "low" && h.Priority <= 3
	default:
		return true
	}
}

// HintRecord is one displayed hint plus its bookkeeping.
type HintRecord struct {
	Hint    wire.Hint
	ShownAt time.Time
}

// TranscriptLine is one finalized or in-progress utterance. Finalized lines
// carry the STAR structure detected in their text.
type TranscriptLine struct {
	Text  string
	Final bool
	Star  StarCoverage
}

// DecisionScores is the most recent per-answer evaluation from the backend.
type DecisionScores struct {
	Verdict          string
	Explanation      string
	Confidence       float64
	Clarity          float64
	Depth            float64
	Structure        float64
	MetricUsage      float64
	HesitationCount  int
	DriftFrequency   float64
	Contradictions   int
	OwnershipClarity float64
}

// ConversationConfig configures a [Conversation].
type ConversationConfig struct {
	AssistIntensity int
	StreamTimeout   time.Duration
	HintCap         int
	DedupWindow     time.Duration
	Logger          *slog.Logger

	// Now is the clock; tests override it. Defaults to [time.Now].
	Now func() time.Time
}

// Conversation accumulates the assistant-visible state of one interview
// session: the active question, the streaming answer, transcripts, hints and
// scores. All methods are safe for concurrent use.
type Conversation struct {
	mu  sync.Mutex
	cfg ConversationConfig
	log *slog.Logger
	now func() time.Time

	activeQuestion string
	questionKey    string
	questionAt     time.Time

	answerMode     AnswerMode
	answerText     string
	previousAnswer string
	answerHistory  []string
	answerStarted  time.Time

	// generation guards the stream timer: a fired timer whose generation no
	// longer matches is a stale timer and does nothing.
	generation  uint64
	streamTimer *time.Timer
	shutdown    bool

	transcripts []TranscriptLine
	hints       []HintRecord
	lastShown   map[string]time.Time
	decision    *DecisionScores
	stats       DecisionStats

	summary   []byte
	completed bool

	// OnAnswerDone, if set, observes every answer completion with its mode
	// and elapsed generation time. Used for metrics.
	OnAnswerDone func(mode AnswerMode, elapsed time.Duration)
}

// NewConversation builds an empty conversation.
func NewConversation(cfg ConversationConfig) *Conversation {
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	if cfg.HintCap <= 0 {
		cfg.HintCap = defaultHintCap
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	if cfg.AssistIntensity < 1 || cfg.AssistIntensity > 3 {
		cfg.AssistIntensity = 2
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Conversation{
		cfg:       cfg,
		log:       log,
		now:       now,
		lastShown: make(map[string]time.Time),
	}
}

// normalizeQuestion produces the dedup key: lowercased, trimmed, trailing
// punctuation stripped, truncated.
func normalizeQuestion(q string) string {
	key := strings.ToLower(strings.TrimSpace(q))
	key = strings.TrimRight(key, "?.!…")
	key = strings.TrimSpace(key)
	if len(key) > questionKeyLen {
		key = key[:questionKeyLen]
	}
	return key
}

// sameQuestion reports whether two normalized keys are exact or near
// duplicates.
func sameQuestion(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= questionSimilarity
}

// SetQuestion installs text as the active question unless it is a duplicate
// of the current one arriving within the dedup window. It returns true when
// the question was accepted as new.
func (c *Conversation) SetQuestion(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	key := normalizeQuestion(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if sameQuestion(key, c.questionKey) && now.Sub(c.questionAt) < c.cfg.DedupWindow {
		return false
	}

	c.activeQuestion = text
	c.questionKey = key
	c.questionAt = now
	return true
}

// ActiveQuestion returns the current question text, or "" if none.
func (c *Conversation) ActiveQuestion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeQuestion
}

// BeginAnswer starts a new answer generation. The previous answer, if any,
// is snapshotted once so it stays visible while the replacement streams in.
// When thinking is set a placeholder is shown until the first real chunk.
func (c *Conversation) BeginAnswer(thinking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return
	}

	if c.answerText != "" && c.answerText != thinkingPlaceholder {
		c.previousAnswer = c.answerText
	}
	c.answerMode = AnswerGenerating
	c.answerStarted = c.now()
	if thinking {
		c.answerText = thinkingPlaceholder
	} else {
		c.answerText = ""
	}
	c.armStreamTimerLocked()
}

// AppendChunk appends one streamed chunk. The first real chunk replaces the
// thinking placeholder; later chunks are appended with a single space. Each
// chunk re-arms the stream timeout. Chunks arriving outside a generation are
// ignored.
func (c *Conversation) AppendChunk(chunk string) {
	if chunk == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown || c.answerMode != AnswerGenerating {
		return
	}

	switch {
	case c.answerText == "" || c.answerText == thinkingPlaceholder:
		c.answerText = chunk
	default:
		c.answerText += " " + chunk
	}
	c.armStreamTimerLocked()
}

// MarkThinking shows the analyzing placeholder while the backend reports it
// is still reasoning about the answer. Each thinking signal re-arms the
// stream timeout so a long reasoning phase is not force-finalized.
func (c *Conversation) MarkThinking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown || c.answerMode != AnswerGenerating {
		return
	}
	c.answerText = thinkingPlaceholder
	c.armStreamTimerLocked()
}

// FinishAnswer completes the in-flight generation. A fallback reason replaces
// the streamed text with suggestion wholesale; otherwise a non-empty
// suggestion wins over the accumulated chunks. The completed answer joins the
// bounded history.
func (c *Conversation) FinishAnswer(suggestion, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishAnswerLocked(suggestion, reason)
}

func (c *Conversation) finishAnswerLocked(suggestion, reason string) {
	if c.answerMode != AnswerGenerating {
		return
	}
	c.stopStreamTimerLocked()

	mode := AnswerLive
	if reason == ReasonTimeoutFallback || reason == ReasonErrorFallback {
		mode = AnswerFallback
	}
	if suggestion != "" && (mode == AnswerFallback || c.answerText == "" || c.answerText == thinkingPlaceholder) {
		c.answerText = suggestion
	}
	if c.answerText == thinkingPlaceholder {
		c.answerText = ""
	}
	c.answerMode = mode
	if mode == AnswerFallback {
		c.log.Debug("answer completed via fallback", "reason", reason)
	}

	if c.answerText != "" {
		c.answerHistory = append(c.answerHistory, c.answerText)
		if len(c.answerHistory) > answerHistoryCap {
			c.answerHistory = c.answerHistory[len(c.answerHistory)-answerHistoryCap:]
		}
	}
	if c.OnAnswerDone != nil && !c.answerStarted.IsZero() {
		c.OnAnswerDone(mode, c.now().Sub(c.answerStarted))
	}
}

// armStreamTimerLocked (re)starts the stream timeout. The generation counter
// keeps a timer that fires after a newer arm, a finish, or shutdown from
// touching state.
func (c *Conversation) armStreamTimerLocked() {
	c.generation++
	gen := c.generation
	if c.streamTimer != nil {
		c.streamTimer.Stop()
	}
	c.streamTimer = time.AfterFunc(c.cfg.StreamTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.shutdown || gen != c.generation {
			return
		}
		c.log.Warn("answer stream timed out", "timeout", c.cfg.StreamTimeout)
		c.finishAnswerLocked("", ReasonTimeoutFallback)
	})
}

func (c *Conversation) stopStreamTimerLocked() {
	c.generation++
	if c.streamTimer != nil {
		c.streamTimer.Stop()
		c.streamTimer = nil
	}
}

// Answer returns the current answer text, its mode, and the snapshot of the
// previous answer.
func (c *Conversation) Answer() (text string, mode AnswerMode, previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answerText, c.answerMode, c.previousAnswer
}

// AnswerHistory returns the most recent completed answers, oldest first.
func (c *Conversation) AnswerHistory() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.answerHistory))
	copy(out, c.answerHistory)
	return out
}

// ApplyPartial replaces the in-progress transcript line with text.
func (c *Conversation) ApplyPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.transcripts)
	if n > 0 && !c.transcripts[n-1].Final {
		c.transcripts[n-1].Text = text
		return
	}
	c.transcripts = append(c.transcripts, TranscriptLine{Text: text})
}

// ApplyFinal finalizes the in-progress line (or appends a new one) with text
// and classifies its STAR structure.
func (c *Conversation) ApplyFinal(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := TranscriptLine{Text: text, Final: true, Star: DetectStar(text)}
	n := len(c.transcripts)
	if n > 0 && !c.transcripts[n-1].Final {
		c.transcripts[n-1] = line
		return
	}
	c.transcripts = append(c.transcripts, line)
}

// Transcripts returns a copy of the transcript lines.
func (c *Conversation) Transcripts() []TranscriptLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TranscriptLine, len(c.transcripts))
	copy(out, c.transcripts)
	return out
}

// OfferHint applies the intensity gate and the re-show interval, then
// installs the hint at the front of the bounded display set. A hint whose
// rule is already displayed replaces the older entry, keeping the newest.
// Returns true when the hint became visible.
func (c *Conversation) OfferHint(h wire.Hint) bool {
	if h.RuleID == "" || h.Message == "" {
		return false
	}
	if !hintAllowed(c.cfg.AssistIntensity, h) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.lastShown[h.RuleID]; ok {
		if now.Sub(last) < hintReshowInterval(c.cfg.AssistIntensity) {
			return false
		}
	}
	for i := range c.hints {
		if c.hints[i].Hint.RuleID == h.RuleID {
			c.hints = append(c.hints[:i], c.hints[i+1:]...)
			break
		}
	}

	c.hints = append([]HintRecord{{Hint: h, ShownAt: now}}, c.hints...)
	if len(c.hints) > c.cfg.HintCap {
		evicted := c.hints[len(c.hints)-1]
		c.hints = c.hints[:len(c.hints)-1]
		c.log.Debug("hint evicted", "rule", evicted.Hint.RuleID)
	}
	c.lastShown[h.RuleID] = now
	return true
}

// Hints returns a copy of the currently displayed hints, most recent first.
func (c *Conversation) Hints() []HintRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HintRecord, len(c.hints))
	copy(out, c.hints)
	return out
}

// DecisionStats aggregates evaluation signals across the whole session.
type DecisionStats struct {
	Decisions   int
	DriftEvents int
	MetricMiss  int
}

// ApplyDecision records the backend's per-answer evaluation and updates the
// session-wide counters.
func (c *Conversation) ApplyDecision(d wire.Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Decisions++
	if d.DriftFrequency > 0 {
		c.stats.DriftEvents++
	}
	if d.MetricUsageScore == 0 {
		c.stats.MetricMiss++
	}
	c.decision = &DecisionScores{
		Verdict:          d.Verdict,
		Explanation:      d.Explanation,
		Confidence:       d.Confidence,
		Clarity:          d.ClarityScore,
		Depth:            d.DepthScore,
		Structure:        d.StructureScore,
		MetricUsage:      d.MetricUsageScore,
		HesitationCount:  d.HesitationCount,
		DriftFrequency:   d.DriftFrequency,
		Contradictions:   d.ContradictionsDetected,
		OwnershipClarity: d.OwnershipClarityScore,
	}
}

// Decision returns the latest evaluation, or nil if none has arrived.
func (c *Conversation) Decision() *DecisionScores {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decision == nil {
		return nil
	}
	d := *c.decision
	return &d
}

// Stats returns the session-wide decision counters.
func (c *Conversation) Stats() DecisionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// SuspendStreaming turns the streaming state off without discarding the
// accumulated answer text. Used when the backend reports it is waiting for
// the interviewer. The stream timeout is cancelled.
func (c *Conversation) SuspendStreaming() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answerMode != AnswerGenerating {
		return
	}
	c.stopStreamTimerLocked()
	if c.answerText == thinkingPlaceholder {
		c.answerText = ""
	}
	if c.answerText == "" {
		c.answerMode = AnswerIdle
	} else {
		c.answerMode = AnswerLive
	}
}

// ApplySyncState adopts the backend's authoritative snapshot after a
// (re)connect. A streaming flag re-enters the generating state and re-arms
// the stream timeout so a backend that dies mid-stream still falls back.
func (c *Conversation) ApplySyncState(msg wire.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return
	}

	if q := strings.TrimSpace(msg.ActiveQuestion); q != "" {
		c.activeQuestion = q
		c.questionKey = normalizeQuestion(q)
		c.questionAt = c.now()
	}
	if msg.IsStreaming {
		c.answerMode = AnswerGenerating
		if msg.PartialAnswer != "" {
			c.answerText = msg.PartialAnswer
		} else if c.answerText == "" {
			c.answerText = thinkingPlaceholder
		}
		if c.answerStarted.IsZero() {
			c.answerStarted = c.now()
		}
		c.armStreamTimerLocked()
	} else if msg.PartialAnswer != "" && c.answerMode == AnswerIdle {
		c.answerText = msg.PartialAnswer
		c.answerMode = AnswerLive
	}
}

// SetSummary stores the end-of-session summary document and marks the
// conversation complete.
func (c *Conversation) SetSummary(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = append([]byte(nil), data...)
	c.completed = true
	c.stopStreamTimerLocked()
}

// Summary returns the raw final summary and whether the session completed.
func (c *Conversation) Summary() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary, c.completed
}

// Shutdown stops the stream timer and freezes the conversation. Idempotent.
func (c *Conversation) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown = true
	c.stopStreamTimerLocked()
}
