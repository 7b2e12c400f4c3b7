// Package config handles reading and writing callwright.yaml.
//
// The file carries everything a run needs except credentials: those come
// only from the environment (ACCESS_TOKEN, OPENAI_API_KEY, DEEPGRAM_API_KEY)
// and are never written to disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the config file unless --config
// points elsewhere.
const DefaultPath = "callwright.yaml"

// Config is the top-level structure for callwright.yaml.
type Config struct {
	Platform      PlatformConfig      `yaml:"platform"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Run           RunConfig           `yaml:"run"`
	Timeouts      TimeoutsConfig      `yaml:"timeouts"`
	LLM           LLMConfig           `yaml:"llm"`
	TTS           TTSConfig           `yaml:"tts"`
	STT           STTConfig           `yaml:"stt"`
	Paths         PathsConfig         `yaml:"paths"`
}

// PlatformConfig identifies the agent channel under test.
type PlatformConfig struct {
	BaseURL   string `yaml:"base_url"`
	WSURL     string `yaml:"ws_url"`
	ChannelID string `yaml:"channel_id"`
	DeviceID  string `yaml:"device_id"`
}

// ConversationsConfig selects what to replay and how to talk.
type ConversationsConfig struct {
	IDs  []string `yaml:"ids"`
	Mode string   `yaml:"mode"` // "voice" | "text"
}

// RunConfig selects how stimuli are produced.
type RunConfig struct {
	Type     string `yaml:"type"` // "human" | "synthetic" | "translation" | "dynamic"
	Scenario string `yaml:"scenario"`
	MaxSteps int    `yaml:"max_steps"`
	// StepsFile feeds synthetic and translation runs; one utterance per line.
	StepsFile string `yaml:"steps_file"`
}

// TimeoutsConfig overrides the turn and pacing timings.
type TimeoutsConfig struct {
	Response  int `yaml:"response"`   // seconds
	SettleMS  int `yaml:"settle_ms"`  // milliseconds
	StepDelay int `yaml:"step_delay"` // seconds
	Keepalive int `yaml:"keepalive"`  // seconds
	Connect   int `yaml:"connect"`    // seconds
}

// LLMConfig configures the caller generator and the judge.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// TTSConfig selects and tunes the synthesis engine.
type TTSConfig struct {
	Engine      string  `yaml:"engine"` // "googletrans" | "deepgram" | "tone"
	Language    string  `yaml:"language"`
	Accent      string  `yaml:"accent"`
	Voice       string  `yaml:"voice"`
	Speed       float64 `yaml:"speed"`
	MinDuration int     `yaml:"min_duration"` // seconds
	SampleRate  int     `yaml:"sample_rate"`
}

// STTConfig tunes reply transcription.
type STTConfig struct {
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// PathsConfig places the run's artifacts.
type PathsConfig struct {
	Downloads string `yaml:"downloads"`
	Synthesis string `yaml:"synthesis"`
	Logs      string `yaml:"logs"`
	Results   string `yaml:"results"`
}

// ReadConfig reads the config file at path. Returns an error if the file is
// not found or the YAML is malformed.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// WriteConfig writes cfg to path, creating the parent directory if needed.
func WriteConfig(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with the stock defaults. Platform
// coordinates are left empty; a run cannot start until they are filled in.
func DefaultConfig() *Config {
	return &Config{
		Conversations: ConversationsConfig{
			Mode: "voice",
		},
		Run: RunConfig{
			Type:     "human",
			MaxSteps: 6,
		},
		Timeouts: TimeoutsConfig{
			Response:  60,
			SettleMS:  500,
			StepDelay: 5,
			Keepalive: 30,
			Connect:   10,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o",
			Temperature: 0.2,
		},
		TTS: TTSConfig{
			Engine:      "googletrans",
			Language:    "en",
			Accent:      "com",
			Speed:       1.0,
			MinDuration: 18,
			SampleRate:  24000,
		},
		STT: STTConfig{
			Model:    "nova-3",
			Language: "en-US",
		},
		Paths: PathsConfig{
			Downloads: "downloaded_audio",
			Synthesis: "synthesized_audio",
			Logs:      "logs",
			Results:   "test_results",
		},
	}
}
