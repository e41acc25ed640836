package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Engine.SampleRate = 44100
	cfg.MIDI.InputPort = "Keystation"
	cfg.Sequencer.Tempo = 96.5
	require.NoError(t, cfg.SaveFile(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sequencer":{"tempo":90}}`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.Sequencer.Tempo)
	assert.Equal(t, 200, cfg.Sequencer.LookAheadMs)
	assert.Equal(t, 48000, cfg.Engine.SampleRate)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine":{"sampleRate":48000,"channels":2,"queueCapacity":1000}}`), 0644))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"sample rate": func(c *Config) { c.Engine.SampleRate = 0 },
		"channels":    func(c *Config) { c.Engine.Channels = 6 },
		"capacity":    func(c *Config) { c.Engine.QueueCapacity = 3 },
		"max tracks":  func(c *Config) { c.Engine.MaxTracks = -1 },
		"scratch":     func(c *Config) { c.Engine.ScratchSamples = 1 },
		"backend":     func(c *Config) { c.Audio.Backend = "alsa" },
		"buffer":      func(c *Config) { c.Audio.BufferFrames = -5 },
		"midi track":  func(c *Config) { c.MIDI.Track = -1 },
		"tempo":       func(c *Config) { c.Sequencer.Tempo = 0 },
		"look-ahead":  func(c *Config) { c.Sequencer.LookAheadMs = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestEngineZeroSizesAllowed(t *testing.T) {
	e := Engine{SampleRate: 44100, Channels: 1}
	assert.NoError(t, e.Validate())
}
