// Package doze controls the always-on display brightness.
//
// In the low and high brightness modes, the doze mode node is written once
// when the mode is selected (and again at boot). In the auto mode, the ambient
// light readings from the AOD sensor select the mode while the screen is off.
package doze

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pgaskin/partsd/metrics"
	"github.com/pgaskin/partsd/prefs"
	"github.com/pgaskin/partsd/settings"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/rs/zerolog"
)

// DefaultNode is the panel doze mode node.
const DefaultNode = "/sys/devices/platform/soc/soc:qcom,dsi-display-primary/doze_mode"

// SensorAOD is the sensor reporting ambient light levels while dozing.
const SensorAOD = "xiaomi.sensor.aod"

// Settings and preference keys.
const (
	KeyDozeEnabled = "doze_enabled"    // secure
	KeyAlwaysOn    = "doze_always_on"  // secure
	KeyBrightness  = "doze_brightness" // preference
)

// Doze mode node values.
const (
	ModeLow  = "0"
	ModeHigh = "1"
)

// Brightness is the doze brightness preference.
type Brightness string

const (
	BrightnessLow  Brightness = "0"
	BrightnessHigh Brightness = "1"
	BrightnessAuto Brightness = "2"
)

func (b Brightness) String() string {
	switch b {
	case BrightnessLow:
		return "low"
	case BrightnessHigh:
		return "high"
	case BrightnessAuto:
		return "auto"
	}
	return fmt.Sprintf("brightness(%q)", string(b))
}

// ParseBrightness parses a brightness name or preference value.
func ParseBrightness(s string) (Brightness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return BrightnessLow, nil
	case "high", "1":
		return BrightnessHigh, nil
	case "auto", "2":
		return BrightnessAuto, nil
	}
	return "", fmt.Errorf("unknown doze brightness %q (expected low, high, or auto)", s)
}

// Config configures a Controller.
type Config struct {
	Settings settings.Provider
	Prefs    prefs.Store
	Node     sysfs.Node // DefaultNode if empty

	// AlwaysOnDefault is used when the always-on setting is unset. It should
	// only be true if the device supports always-on display and enables it by
	// default.
	AlwaysOnDefault bool
}

// Controller reads and writes the doze settings, and drives the doze mode node.
// All settings are re-read on every call so changes made by other processes
// take effect immediately.
type Controller struct {
	cfg Config
	log zerolog.Logger

	mu     sync.Mutex
	sensor bool // whether sensor readings are applied
}

// New creates a new Controller.
func New(cfg Config, log zerolog.Logger) *Controller {
	if cfg.Node == "" {
		cfg.Node = DefaultNode
	}
	return &Controller{
		cfg: cfg,
		log: log,
	}
}

// Enabled checks whether doze is enabled.
func (c *Controller) Enabled() bool {
	return settings.Bool(c.cfg.Settings, settings.Secure, KeyDozeEnabled, true)
}

// AlwaysOn checks whether the always-on display is enabled.
func (c *Controller) AlwaysOn() bool {
	return settings.Bool(c.cfg.Settings, settings.Secure, KeyAlwaysOn, c.cfg.AlwaysOnDefault)
}

// Brightness returns the doze brightness preference.
func (c *Controller) Brightness() Brightness {
	b, err := ParseBrightness(c.cfg.Prefs.String(KeyBrightness, string(BrightnessLow)))
	if err != nil {
		return BrightnessLow
	}
	return b
}

// Active checks whether the doze service should be running.
func (c *Controller) Active() bool {
	return c.Enabled() && (c.AlwaysOn() || c.Brightness() == BrightnessAuto)
}

// Available checks whether the doze mode node is writable.
func (c *Controller) Available() bool {
	return sysfs.Writable(string(c.cfg.Node))
}

// SetEnabled enables or disables doze. Disabling doze also disables the
// always-on display and resets the brightness to low.
func (c *Controller) SetEnabled(enabled bool) error {
	if err := settings.PutBool(c.cfg.Settings, settings.Secure, KeyDozeEnabled, enabled); err != nil {
		return err
	}
	if !enabled {
		if err := settings.PutBool(c.cfg.Settings, settings.Secure, KeyAlwaysOn, false); err != nil {
			return err
		}
		if err := c.cfg.Prefs.PutString(KeyBrightness, string(BrightnessLow)); err != nil {
			return fmt.Errorf("reset doze brightness: %w", err)
		}
	}
	c.check()
	return nil
}

// SetAlwaysOn enables or disables the always-on display. Disabling it resets
// the brightness to low.
func (c *Controller) SetAlwaysOn(enabled bool) error {
	if err := settings.PutBool(c.cfg.Settings, settings.Secure, KeyAlwaysOn, enabled); err != nil {
		return err
	}
	if !enabled {
		if err := c.cfg.Prefs.PutString(KeyBrightness, string(BrightnessLow)); err != nil {
			return fmt.Errorf("reset doze brightness: %w", err)
		}
		c.setMode(ModeLow)
	}
	c.check()
	return nil
}

// SetBrightness sets the doze brightness, writing it immediately unless it is
// auto.
func (c *Controller) SetBrightness(b Brightness) error {
	if _, err := ParseBrightness(string(b)); err != nil {
		return err
	}
	if err := c.cfg.Prefs.PutString(KeyBrightness, string(b)); err != nil {
		return fmt.Errorf("set doze brightness: %w", err)
	}
	if b != BrightnessAuto {
		c.setMode(string(b))
	}
	c.check()
	return nil
}

// Boot restores the doze mode after boot.
func (c *Controller) Boot() {
	c.check()
	if c.AlwaysOn() && c.Brightness() != BrightnessAuto {
		c.setMode(string(c.Brightness()))
	}
}

// ScreenChanged enables the AOD sensor while the screen is off in auto
// brightness mode.
func (c *Controller) ScreenChanged(on bool) {
	if !c.Active() || c.Brightness() != BrightnessAuto {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sensor = !on
	c.log.Debug().Bool("enabled", c.sensor).Msg("aod sensor state changed")
}

// SensorChanged applies an AOD sensor reading if the sensor is enabled.
func (c *Controller) SensorChanged(value float64) {
	c.mu.Lock()
	enabled := c.sensor
	c.mu.Unlock()

	if !enabled || !c.Active() || c.Brightness() != BrightnessAuto {
		return
	}
	switch value {
	case 3, 5:
		c.setMode(ModeLow)
	case 4:
		c.setMode(ModeHigh)
	}
}

// SensorEnabled checks whether the AOD sensor readings are being applied.
func (c *Controller) SensorEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sensor
}

func (c *Controller) check() {
	active := c.Active()
	if !active {
		c.mu.Lock()
		c.sensor = false
		c.mu.Unlock()
	}
	c.log.Debug().Bool("active", active).Msg("checked doze state")
}

func (c *Controller) setMode(mode string) {
	log := c.log.With().Str("mode", mode).Logger()
	if err := c.cfg.Node.Write(mode); err != nil {
		log.Warn().Err(err).Msg("failed to set doze mode")
		return
	}
	name := "low"
	if mode == ModeHigh {
		name = "high"
	}
	metrics.ProfilesApplied.WithLabelValues("doze", name).Inc()
	log.Debug().Msg("set doze mode")
}
