// Package config provides the configuration schema and loader for the
// voicelink client.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SourceKind selects where a participant's audio comes from.
type SourceKind string

const (
	// SourceMicrophone captures the default (or named) input device.
	SourceMicrophone SourceKind = "microphone"

	// SourceSystem captures system playback via loopback. Used for the
	// interviewer's side of the call.
	SourceSystem SourceKind = "system"

	// SourceNone disables capture for that participant.
	SourceNone SourceKind = "none"
)

// IsValid reports whether s is a recognised source kind.
func (s SourceKind) IsValid() bool {
	switch s {
	case SourceMicrophone, SourceSystem, SourceNone:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Room      RoomConfig      `yaml:"room"`
	Audio     AudioConfig     `yaml:"audio"`
	Transport TransportConfig `yaml:"transport"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Assist    AssistConfig    `yaml:"assist"`
	Server    ServerConfig    `yaml:"server"`
}

// BackendConfig locates and authenticates against the analysis backend.
type BackendConfig struct {
	// URL is the http(s) base URL of the backend. Required.
	URL string `yaml:"url"`

	// Token optionally authenticates the voice connections.
	Token string `yaml:"token"`

	// AnswerLanguage optionally requests an answer language policy
	// (e.g. "en", "de").
	AnswerLanguage string `yaml:"answer_language"`
}

// RoomConfig identifies the interview room.
type RoomConfig struct {
	// ID is the shared room UUID. Leave empty to generate a fresh room.
	ID string `yaml:"id"`
}

// AudioConfig selects the capture sources for each participant.
type AudioConfig struct {
	// CandidateSource is the candidate's capture source. Default: microphone.
	CandidateSource SourceKind `yaml:"candidate_source"`

	// InterviewerSource is the interviewer's capture source. Default: system.
	InterviewerSource SourceKind `yaml:"interviewer_source"`

	// Device optionally names a specific capture device (substring match).
	Device string `yaml:"device"`

	// BufferFrames is the capture channel depth in device callbacks before
	// samples are dropped. Default: 64.
	BufferFrames int `yaml:"buffer_frames"`
}

// TransportConfig tunes the WebSocket connections.
type TransportConfig struct {
	// MaxBufferedBytes is the backpressure threshold above which audio
	// frames are dropped instead of queued. Default: 262144 (256 KiB).
	MaxBufferedBytes int64 `yaml:"max_buffered_bytes"`

	// ConnectTimeout bounds each connection attempt. Default: 8s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// StreamTimeout bounds how long an answer generation may stall before
	// falling back. Default: 20s.
	StreamTimeout time.Duration `yaml:"stream_timeout"`
}

// ReconnectConfig tunes automatic reconnection after transient losses.
type ReconnectConfig struct {
	// MaxAttempts before giving up. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay multiplied by the attempt number. Default: 1500ms.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the computed delay. Default: 10s.
	MaxDelay time.Duration `yaml:"max_delay"`
}

// AssistConfig tunes the in-session assistance behaviour.
type AssistConfig struct {
	// Intensity is the 1–3 hint verbosity level. Default: 2.
	Intensity int `yaml:"intensity"`

	// HintCap bounds how many hints are displayed at once. Default: 3.
	HintCap int `yaml:"hint_cap"`

	// QuestionDedupWindow is how long a repeated question is treated as an
	// echo of the current one. Default: 3s.
	QuestionDedupWindow time.Duration `yaml:"question_dedup_window"`
}

// ServerConfig holds the local status server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the local metrics/health server
	// (e.g. ":9464"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}
