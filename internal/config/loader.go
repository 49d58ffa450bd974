package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Audio.CandidateSource == "" {
		cfg.Audio.CandidateSource = SourceMicrophone
	}
	if cfg.Audio.InterviewerSource == "" {
		cfg.Audio.InterviewerSource = SourceSystem
	}
	if cfg.Audio.BufferFrames <= 0 {
		cfg.Audio.BufferFrames = 64
	}
	if cfg.Transport.MaxBufferedBytes <= 0 {
		cfg.Transport.MaxBufferedBytes = 256 * 1024
	}
	if cfg.Transport.ConnectTimeout <= 0 {
		cfg.Transport.ConnectTimeout = 8 * time.Second
	}
	if cfg.Transport.StreamTimeout <= 0 {
		cfg.Transport.StreamTimeout = 20 * time.Second
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect.MaxAttempts = 3
	}
	if cfg.Reconnect.BaseDelay <= 0 {
		cfg.Reconnect.BaseDelay = 1500 * time.Millisecond
	}
	if cfg.Reconnect.MaxDelay <= 0 {
		cfg.Reconnect.MaxDelay = 10 * time.Second
	}
	if cfg.Assist.Intensity == 0 {
		cfg.Assist.Intensity = 2
	}
	if cfg.Assist.HintCap <= 0 {
		cfg.Assist.HintCap = 3
	}
	if cfg.Assist.QuestionDedupWindow <= 0 {
		cfg.Assist.QuestionDedupWindow = 3 * time.Second
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	} else if u, err := url.Parse(cfg.Backend.URL); err != nil {
		errs = append(errs, fmt.Errorf("backend.url %q is not a valid URL: %w", cfg.Backend.URL, err))
	} else {
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			errs = append(errs, fmt.Errorf("backend.url scheme %q is invalid; valid values: http, https, ws, wss", u.Scheme))
		}
	}

	if cfg.Room.ID != "" {
		if _, err := uuid.Parse(cfg.Room.ID); err != nil {
			errs = append(errs, fmt.Errorf("room.id %q is not a valid UUID", cfg.Room.ID))
		}
	}

	if !cfg.Audio.CandidateSource.IsValid() {
		errs = append(errs, fmt.Errorf("audio.candidate_source %q is invalid; valid values: microphone, system, none", cfg.Audio.CandidateSource))
	}
	if !cfg.Audio.InterviewerSource.IsValid() {
		errs = append(errs, fmt.Errorf("audio.interviewer_source %q is invalid; valid values: microphone, system, none", cfg.Audio.InterviewerSource))
	}
	if cfg.Audio.CandidateSource == SourceNone && cfg.Audio.InterviewerSource == SourceNone {
		errs = append(errs, errors.New("audio: at least one participant needs a capture source"))
	}

	if cfg.Assist.Intensity < 1 || cfg.Assist.Intensity > 3 {
		errs = append(errs, fmt.Errorf("assist.intensity %d is out of range [1, 3]", cfg.Assist.Intensity))
	}

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	return errors.Join(errs...)
}
