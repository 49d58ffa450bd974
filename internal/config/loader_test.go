package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
backend:
  url: https://api.example.com
`

func TestLoadFromReaderDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Audio.CandidateSource != SourceMicrophone {
		t.Errorf("candidate_source = %q, want microphone", cfg.Audio.CandidateSource)
	}
	if cfg.Audio.InterviewerSource != SourceSystem {
		t.Errorf("interviewer_source = %q, want system", cfg.Audio.InterviewerSource)
	}
	if cfg.Transport.MaxBufferedBytes != 256*1024 {
		t.Errorf("max_buffered_bytes = %d, want %d", cfg.Transport.MaxBufferedBytes, 256*1024)
	}
	if cfg.Transport.ConnectTimeout != 8*time.Second {
		t.Errorf("connect_timeout = %v, want 8s", cfg.Transport.ConnectTimeout)
	}
	if cfg.Transport.StreamTimeout != 20*time.Second {
		t.Errorf("stream_timeout = %v, want 20s", cfg.Transport.StreamTimeout)
	}
	if cfg.Reconnect.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Reconnect.BaseDelay != 1500*time.Millisecond {
		t.Errorf("base_delay = %v, want 1.5s", cfg.Reconnect.BaseDelay)
	}
	if cfg.Assist.Intensity != 2 {
		t.Errorf("intensity = %d, want 2", cfg.Assist.Intensity)
	}
	if cfg.Assist.HintCap != 3 {
		t.Errorf("hint_cap = %d, want 3", cfg.Assist.HintCap)
	}
	if cfg.Assist.QuestionDedupWindow != 3*time.Second {
		t.Errorf("question_dedup_window = %v, want 3s", cfg.Assist.QuestionDedupWindow)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
}

func TestLoadFromReaderFullConfig(t *testing.T) {
	yml := `
backend:
  url: https://api.example.com
  token: secret
  answer_language: de
room:
  id: 6f1f5fbe-9587-4cf5-9fb6-caa6e9871161
audio:
  candidate_source: microphone
  interviewer_source: none
  device: "USB Audio"
  buffer_frames: 32
transport:
  max_buffered_bytes: 131072
  connect_timeout: 4s
  stream_timeout: 15s
reconnect:
  max_attempts: 5
  base_delay: 500ms
  max_delay: 5s
assist:
  intensity: 3
  hint_cap: 5
  question_dedup_window: 2s
server:
  listen_addr: ":9464"
  log_level: debug
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Backend.Token != "secret" {
		t.Errorf("token = %q, want secret", cfg.Backend.Token)
	}
	if cfg.Room.ID != "6f1f5fbe-9587-4cf5-9fb6-caa6e9871161" {
		t.Errorf("room.id = %q", cfg.Room.ID)
	}
	if cfg.Transport.ConnectTimeout != 4*time.Second {
		t.Errorf("connect_timeout = %v, want 4s", cfg.Transport.ConnectTimeout)
	}
	if cfg.Assist.Intensity != 3 {
		t.Errorf("intensity = %d, want 3", cfg.Assist.Intensity)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	yml := `
backend:
  url: https://api.example.com
  api_key: oops
`
	if _, err := LoadFromReader(strings.NewReader(yml)); err == nil {
		t.Fatal("LoadFromReader() accepted unknown field, want error")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{
			name: "missing backend URL",
			yml:  `room: {}`,
			want: "backend.url is required",
		},
		{
			name: "bad scheme",
			yml: `
backend:
  url: ftp://example.com
`,
			want: "scheme",
		},
		{
			name: "bad room UUID",
			yml: `
backend:
  url: https://api.example.com
room:
  id: not-a-uuid
`,
			want: "not a valid UUID",
		},
		{
			name: "bad source kind",
			yml: `
backend:
  url: https://api.example.com
audio:
  candidate_source: telephone
`,
			want: "candidate_source",
		},
		{
			name: "both sources disabled",
			yml: `
backend:
  url: https://api.example.com
audio:
  candidate_source: none
  interviewer_source: none
`,
			want: "at least one participant",
		},
		{
			name: "intensity out of range",
			yml: `
backend:
  url: https://api.example.com
assist:
  intensity: 4
`,
			want: "out of range",
		},
		{
			name: "bad log level",
			yml: `
backend:
  url: https://api.example.com
server:
  log_level: verbose
`,
			want: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tt.yml))
			if err == nil {
				t.Fatal("LoadFromReader() error = nil, want validation failure")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
