// Package config loads the JSON configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ayusman/handsynth/internal/audio"
	"github.com/ayusman/handsynth/internal/capture"
	"github.com/ayusman/handsynth/internal/control"
	"github.com/ayusman/handsynth/internal/detector"
	"github.com/ayusman/handsynth/internal/engine"
	"github.com/ayusman/handsynth/internal/gesture"
	"github.com/ayusman/handsynth/internal/mode"
	"github.com/ayusman/handsynth/internal/tutorial"
)

// Config is the persistent application configuration.
type Config struct {
	Camera    CameraConfig    `json:"camera"`
	Detection DetectionConfig `json:"detection"`
	RenderFPS int             `json:"render_fps"`

	// Policy names a built-in mode policy: binary, ternary or drumkit.
	Policy string `json:"policy"`

	Gestures GestureConfig  `json:"gestures"`
	Controls ControlConfig  `json:"controls"`
	Audio    AudioConfig    `json:"audio"`
	MIDI     MIDIConfig     `json:"midi"`
	Samples  []SampleConfig `json:"samples"`
	Server   ServerConfig   `json:"server"`
	Tutorial TutorialConfig `json:"tutorial"`

	// DataDir holds the database and log files.
	DataDir  string `json:"data_dir"`
	Tray     bool   `json:"tray"`
	Monitor  bool   `json:"monitor"`
	LogLevel string `json:"log_level"`
}

type CameraConfig struct {
	Device int `json:"device"`
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

// DetectionConfig controls the detection loop. It runs at FPS while the
// scene moves and drops to IdleFPS after IdleAfterMs without motion.
type DetectionConfig struct {
	FPS             int     `json:"fps"`
	IdleFPS         int     `json:"idle_fps"`
	IdleAfterMs     int     `json:"idle_after_ms"`
	MotionThreshold float64 `json:"motion_threshold"`
	MaxHands        int     `json:"max_hands"`
	MinConfidence   float64 `json:"min_confidence"`
}

type GestureConfig struct {
	PinchThreshold float64 `json:"pinch_threshold"`
	ReferenceWidth float64 `json:"reference_width"`
}

type ControlConfig struct {
	Volume control.Range `json:"volume"`
	Pitch  control.Range `json:"pitch"`
	// Waveforms is indexed by raised-finger count.
	Waveforms []control.Waveform `json:"waveforms"`
}

type AudioConfig struct {
	AttackMs    int                `json:"attack_ms"`
	ReleaseMs   int                `json:"release_ms"`
	GlideMs     int                `json:"glide_ms"`
	Instruments []audio.Instrument `json:"instruments"`
}

type MIDIConfig struct {
	Enabled     bool                       `json:"enabled"`
	Port        string                     `json:"port"`
	DrumChannel uint8                      `json:"drum_channel"`
	BendRange   float64                    `json:"bend_range"`
	Programs    map[control.Waveform]uint8 `json:"programs"`
	Envelopes   map[string]EnvelopeConfig  `json:"envelopes"`
}

type EnvelopeConfig struct {
	Channel  uint8 `json:"channel"`
	Note     uint8 `json:"note"`
	LengthMs int   `json:"length_ms"`
}

// SampleConfig seeds the sample bank on first run.
type SampleConfig struct {
	Name     string `json:"name"`
	Note     int    `json:"note"`
	Quadrant int    `json:"quadrant"`
}

type ServerConfig struct {
	Addr      string `json:"addr"`
	StaticDir string `json:"static_dir"`
}

type TutorialConfig struct {
	Enabled    bool `json:"enabled"`
	HoldFrames int  `json:"hold_frames"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	m := control.DefaultMapper()
	mc := audio.DefaultMIDIConfig()
	envelopes := make(map[string]EnvelopeConfig, len(mc.Envelopes))
	for id, e := range mc.Envelopes {
		envelopes[id] = EnvelopeConfig{Channel: e.Channel, Note: e.Note, LengthMs: int(e.Length / time.Millisecond)}
	}

	return &Config{
		Camera: CameraConfig{Width: capture.DefaultWidth, Height: capture.DefaultHeight, FPS: capture.DefaultFPS},
		Detection: DetectionConfig{
			FPS:             15,
			IdleFPS:         5,
			IdleAfterMs:     2000,
			MotionThreshold: 1,
			MaxHands:        2,
			MinConfidence:   0.5,
		},
		RenderFPS: 60,
		Policy:    "ternary",
		Gestures: GestureConfig{
			PinchThreshold: gesture.DefaultPinchThreshold,
			ReferenceWidth: gesture.ReferenceWidth,
		},
		Controls: ControlConfig{
			Volume:    m.Volume,
			Pitch:     m.Pitch,
			Waveforms: control.DefaultWaveformTable(),
		},
		Audio: AudioConfig{
			AttackMs:    50,
			ReleaseMs:   50,
			GlideMs:     20,
			Instruments: audio.DefaultInstruments(),
		},
		MIDI: MIDIConfig{
			Enabled:     true,
			DrumChannel: mc.DrumChannel,
			BendRange:   mc.BendRange,
			Programs:    mc.Programs,
			Envelopes:   envelopes,
		},
		Samples: []SampleConfig{
			{Name: "kick", Note: 36, Quadrant: 1},
			{Name: "snare", Note: 38, Quadrant: 2},
			{Name: "closed-hat", Note: 42, Quadrant: 3},
			{Name: "crash", Note: 49, Quadrant: 4},
		},
		Server:   ServerConfig{Addr: "127.0.0.1:8420", StaticDir: "web"},
		Tutorial: TutorialConfig{Enabled: true, HoldFrames: 15},
		DataDir:  defaultDataDir(),
		Tray:     true,
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handsynth"
	}
	return filepath.Join(home, ".handsynth")
}

// DefaultPath returns ~/.handsynth/config.json.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.json")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	var errs []error
	if c.Detection.FPS <= 0 || c.Detection.IdleFPS <= 0 || c.RenderFPS <= 0 {
		errs = append(errs, errors.New("frame rates must be positive"))
	}
	if _, err := mode.PolicyByName(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Gestures.PinchThreshold <= 0 || c.Gestures.ReferenceWidth <= 0 {
		errs = append(errs, errors.New("pinch threshold and reference width must be positive"))
	}
	if err := c.Controls.Volume.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("volume: %w", err))
	}
	if err := c.Controls.Pitch.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pitch: %w", err))
	}
	if err := control.WaveformTable(c.Controls.Waveforms).Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := audio.ResolveModes(c.Audio.Instruments); err != nil {
		errs = append(errs, err)
	}
	for _, s := range c.Samples {
		if s.Name == "" || s.Note < 0 || s.Note > 127 || s.Quadrant < 0 || s.Quadrant > 4 {
			errs = append(errs, fmt.Errorf("invalid sample %+v", s))
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CaptureConfig converts the camera section.
func (c *Config) CaptureConfig() capture.Config {
	return capture.Config{DeviceID: c.Camera.Device, Width: c.Camera.Width, Height: c.Camera.Height, FPS: c.Camera.FPS}
}

// IdleAfter is how long the scene must be still before detection slows.
func (c *Config) IdleAfter() time.Duration {
	return ms(c.Detection.IdleAfterMs)
}

// DetectorConfig converts the detection section.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{MaxHands: c.Detection.MaxHands, MinConfidence: c.Detection.MinConfidence}
}

// EngineConfig builds the pipeline configuration. layout maps quadrants to
// sample ids and usually comes from the store.
func (c *Config) EngineConfig(layout map[int]string) (engine.Config, error) {
	policy, err := mode.PolicyByName(c.Policy)
	if err != nil {
		return engine.Config{}, err
	}

	insts := make([]audio.Instrument, len(c.Audio.Instruments))
	copy(insts, c.Audio.Instruments)
	if err := audio.ResolveModes(insts); err != nil {
		return engine.Config{}, err
	}

	samples := make(map[gesture.Quadrant]string, len(layout))
	for q, id := range layout {
		samples[gesture.Quadrant(q)] = id
	}

	ec := engine.DefaultConfig()
	ec.Policy = policy
	ec.Mapper = control.Mapper{Volume: c.Controls.Volume, Pitch: c.Controls.Pitch}
	ec.Waveforms = control.WaveformTable(c.Controls.Waveforms)
	ec.PinchThreshold = c.Gestures.PinchThreshold
	ec.ReferenceWidth = c.Gestures.ReferenceWidth
	ec.Audio = audio.Config{
		Instruments: insts,
		Attack:      ms(c.Audio.AttackMs),
		Release:     ms(c.Audio.ReleaseMs),
		Glide:       ms(c.Audio.GlideMs),
		Samples:     samples,
	}
	if c.Tutorial.Enabled {
		ec.TutorialSteps = tutorial.DefaultSteps(c.Tutorial.HoldFrames, c.Gestures.PinchThreshold)
	}
	return ec, nil
}

// MIDIBackendConfig converts the MIDI section. notes maps sample ids to
// drum notes.
func (c *Config) MIDIBackendConfig(notes map[string]uint8) audio.MIDIConfig {
	mc := audio.DefaultMIDIConfig()
	mc.Port = c.MIDI.Port
	mc.DrumChannel = c.MIDI.DrumChannel
	if c.MIDI.BendRange > 0 {
		mc.BendRange = c.MIDI.BendRange
	}
	if len(c.MIDI.Programs) > 0 {
		mc.Programs = c.MIDI.Programs
	}
	if len(c.MIDI.Envelopes) > 0 {
		mc.Envelopes = make(map[string]audio.Envelope, len(c.MIDI.Envelopes))
		for id, e := range c.MIDI.Envelopes {
			mc.Envelopes[id] = audio.Envelope{Channel: e.Channel, Note: e.Note, Length: ms(e.LengthMs)}
		}
	}
	mc.Samples = notes
	return mc
}

// DatabasePath is the SQLite file under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "handsynth.db")
}

// LogDir is where log files go when the monitor owns the terminal.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
