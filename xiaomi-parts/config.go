package main

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pgaskin/partsd/android"
	"github.com/pgaskin/partsd/doze"
	"github.com/pgaskin/partsd/saturation"
	"github.com/pgaskin/partsd/speaker"
	"github.com/pgaskin/partsd/thermal"
)

// DefaultConfig is the default config file path.
const DefaultConfig = "/data/vendor/partsd/partsd.toml"

type Config struct {
	Log             LogConfig        `koanf:"log"`
	Prefs           PrefsConfig      `koanf:"prefs"`
	Host            HostConfig       `koanf:"host"`
	Thermal         ThermalConfig    `koanf:"thermal"`
	Doze            DozeConfig       `koanf:"doze"`
	Saturation      SaturationConfig `koanf:"saturation"`
	Speaker         SpeakerConfig    `koanf:"speaker"`
	Metrics         MetricsConfig    `koanf:"metrics"`
	RestartOnUpdate bool             `koanf:"restart_on_update"`
}

type LogConfig struct {
	Level   string `koanf:"level"`
	Console bool   `koanf:"console"`
}

type PrefsConfig struct {
	Backend string `koanf:"backend"` // file, sqlite
	Path    string `koanf:"path"`
}

type HostConfig struct {
	Backend      string        `koanf:"backend"` // comma-separated: android, stdin, logind
	Shell        []string      `koanf:"shell"`   // e.g., ["adb", "-s", "serial", "shell"]
	PollInterval time.Duration `koanf:"poll_interval"`
	Backlight    string        `koanf:"backlight"`
}

type ThermalConfig struct {
	Node string `koanf:"node"`
}

type DozeConfig struct {
	Node            string `koanf:"node"`
	AlwaysOnDefault bool   `koanf:"always_on_default"`
}

type SaturationConfig struct {
	Delay time.Duration `koanf:"delay"`
}

type SpeakerConfig struct {
	Sound      string        `koanf:"sound"`
	Player     string        `koanf:"player"`
	Parameters string        `koanf:"parameters"`
	Duration   time.Duration `koanf:"duration"`
}

type MetricsConfig struct {
	Listen string `koanf:"listen"`
}

func defaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Prefs: PrefsConfig{
			Backend: "file",
			Path:    "/data/vendor/partsd/prefs.json",
		},
		Host: HostConfig{
			Backend:      "android",
			PollInterval: android.DefaultInterval,
			Backlight:    android.DefaultBacklight,
		},
		Thermal: ThermalConfig{
			Node: thermal.DefaultNode,
		},
		Doze: DozeConfig{
			Node: doze.DefaultNode,
		},
		Saturation: SaturationConfig{
			Delay: saturation.DefaultDelay,
		},
		Speaker: SpeakerConfig{
			Sound:      "/system_ext/etc/clear_speaker_sound.wav",
			Player:     android.DefaultPlayer,
			Parameters: android.DefaultParameters,
			Duration:   speaker.DefaultDuration,
		},
	}
}

// LoadConfig loads the defaults overridden by the TOML file at path. A missing
// file is not an error if optional is true.
func LoadConfig(path string, optional bool) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			if !optional || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("load config %q: %w", path, err)
			}
		}
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Backends returns the host backends in use.
func (c Config) Backends() []string {
	var backends []string
	for _, b := range strings.Split(c.Host.Backend, ",") {
		if b = strings.TrimSpace(b); b != "" && !slices.Contains(backends, b) {
			backends = append(backends, b)
		}
	}
	return backends
}

// Android checks whether the Android platform tools are available. They are
// unless logind is the only backend.
func (c Config) Android() bool {
	return !slices.Equal(c.Backends(), []string{"logind"})
}

func (c Config) validate() error {
	switch c.Prefs.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown prefs backend %q", c.Prefs.Backend)
	}
	if c.Prefs.Path == "" {
		return fmt.Errorf("prefs path is required")
	}
	backends := c.Backends()
	if len(backends) == 0 {
		return fmt.Errorf("no host backend")
	}
	for _, b := range backends {
		switch b {
		case "android", "stdin", "logind":
		default:
			return fmt.Errorf("unknown host backend %q", b)
		}
	}
	if c.Host.PollInterval <= 0 {
		return fmt.Errorf("host poll interval must be positive")
	}
	return nil
}
