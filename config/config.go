package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Backend selects the audio output
type Backend string

const (
	BackendOto      Backend = "oto"
	BackendHeadless Backend = "headless"
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid config")

// Engine sizes the scheduling core. Zero values select the built-in defaults.
type Engine struct {
	SampleRate     int    `json:"sampleRate"`
	Channels       int    `json:"channels"`
	QueueCapacity  int    `json:"queueCapacity,omitempty"`
	LateTolerance  uint32 `json:"lateTolerance,omitempty"` // frames
	MaxTracks      int    `json:"maxTracks,omitempty"`
	ScratchSamples int    `json:"scratchSamples,omitempty"`
}

// AudioConfig selects and sizes the output device
type AudioConfig struct {
	Backend      Backend `json:"backend,omitempty"`
	BufferFrames int     `json:"bufferFrames,omitempty"`
}

// MIDIConfig defines the live input
type MIDIConfig struct {
	InputPort   string `json:"inputPort,omitempty"` // substring match, empty for first port
	AutoConnect bool   `json:"autoConnect"`
	Track       int    `json:"track"` // engine track receiving live input
}

// SequencerConfig stores pattern playback settings
type SequencerConfig struct {
	Tempo       float64 `json:"tempo"`
	LookAheadMs int     `json:"lookAheadMs"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Engine    Engine          `json:"engine"`
	Audio     AudioConfig     `json:"audio"`
	MIDI      MIDIConfig      `json:"midi"`
	Sequencer SequencerConfig `json:"sequencer"`
	UI        UIConfig        `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: Engine{
			SampleRate:     48000,
			Channels:       2,
			QueueCapacity:  1024,
			LateTolerance:  1024,
			MaxTracks:      128,
			ScratchSamples: 1920,
		},
		Audio: AudioConfig{
			Backend:      BackendOto,
			BufferFrames: 512,
		},
		MIDI: MIDIConfig{
			AutoConnect: true,
		},
		Sequencer: SequencerConfig{
			Tempo:       120,
			LookAheadMs: 200,
		},
		UI: UIConfig{
			Palette: "default",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-seqengine"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Missing fields keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate checks the engine sizing.
func (e Engine) Validate() error {
	switch {
	case e.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, e.SampleRate)
	case e.Channels != 1 && e.Channels != 2:
		return fmt.Errorf("%w: %d channels, want 1 or 2", ErrInvalid, e.Channels)
	case e.QueueCapacity != 0 && !isPowerOfTwo(e.QueueCapacity):
		return fmt.Errorf("%w: queue capacity %d is not a power of two", ErrInvalid, e.QueueCapacity)
	case e.MaxTracks < 0:
		return fmt.Errorf("%w: max tracks %d", ErrInvalid, e.MaxTracks)
	case e.ScratchSamples != 0 && e.ScratchSamples < e.Channels:
		return fmt.Errorf("%w: scratch of %d samples holds no frame", ErrInvalid, e.ScratchSamples)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	switch c.Audio.Backend {
	case "", BackendOto, BackendHeadless:
	default:
		return fmt.Errorf("%w: audio backend %q", ErrInvalid, c.Audio.Backend)
	}
	if c.Audio.BufferFrames < 0 {
		return fmt.Errorf("%w: buffer frames %d", ErrInvalid, c.Audio.BufferFrames)
	}
	if c.MIDI.Track < 0 {
		return fmt.Errorf("%w: midi track %d", ErrInvalid, c.MIDI.Track)
	}
	if c.Sequencer.Tempo <= 0 {
		return fmt.Errorf("%w: tempo %v", ErrInvalid, c.Sequencer.Tempo)
	}
	if c.Sequencer.LookAheadMs <= 0 {
		return fmt.Errorf("%w: look-ahead %dms", ErrInvalid, c.Sequencer.LookAheadMs)
	}
	return nil
}
