package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the tutord server configuration. Every field has a usable
// default; API keys come from the environment, never from this file.
type Config struct {
	Addr       string `yaml:"addr"`
	MediaDir   string `yaml:"media_dir"`
	HistoryDir string `yaml:"history_dir"`

	Session SessionConfig `yaml:"session"`
	Pacing  PacingConfig  `yaml:"pacing"`
	Model   ModelConfig   `yaml:"model"`
	Speech  SpeechConfig  `yaml:"speech"`
}

type SessionConfig struct {
	// IdleTimeout reaps sessions with no activity for this long. Zero
	// disables reaping.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

type PacingConfig struct {
	WordsPerMinute int           `yaml:"words_per_minute"`
	SentencePause  time.Duration `yaml:"sentence_pause"`
	ClausePause    time.Duration `yaml:"clause_pause"`

	// RealTime makes the WebSocket transport sleep out pacing hints instead
	// of flushing events as fast as they are produced.
	RealTime bool `yaml:"real_time"`
}

type ModelConfig struct {
	Name string `yaml:"name"`
}

type SpeechConfig struct {
	ElevenLabsVoice string `yaml:"elevenlabs_voice"`
	DeepgramVoice   string `yaml:"deepgram_voice"`
}

func defaultConfig() Config {
	return Config{
		Addr:     ":8080",
		MediaDir: "media",
		Session: SessionConfig{
			IdleTimeout: 30 * time.Minute,
		},
		Pacing: PacingConfig{
			WordsPerMinute: 150,
			SentencePause:  300 * time.Millisecond,
			ClausePause:    150 * time.Millisecond,
			RealTime:       true,
		},
	}
}

// loadConfig reads the YAML config at path, applying defaults for anything
// unset. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.MediaDir == "" {
		config.MediaDir = "media"
	}
	return config, nil
}
