// Package thermal applies per-app thermal profiles by writing the thermal
// engine's scenario node.
package thermal

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pgaskin/partsd/metrics"
	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/rs/zerolog"
)

// DefaultNode is the thermal scenario node.
const DefaultNode = "/sys/class/thermal/thermal_message/sconfig"

// Thermal profiles.
const (
	Default profile.Profile = iota
	Benchmark
	Browser
	Camera
	Dialer
	Gaming
	Navigation
	Streaming
	Video
)

// Layout is the profile table layout for thermal profiles.
var Layout = profile.Layout{
	Key: "thermal_control",
	Labels: []string{
		"thermal.benchmark=",
		"thermal.browser=",
		"thermal.camera=",
		"thermal.dialer=",
		"thermal.gaming=",
		"thermal.navigation=",
		"thermal.streaming=",
		"thermal.video=",
	},
}

var profiles = []struct {
	name string
	code int
}{
	{"default", 0},
	{"benchmark", 10},
	{"browser", 11},
	{"camera", 12},
	{"dialer", 8},
	{"gaming", 9},
	{"navigation", 19},
	{"streaming", 14},
	{"video", 21},
}

// Name returns the name of p.
func Name(p profile.Profile) string {
	if p < 0 || int(p) >= len(profiles) {
		return fmt.Sprintf("profile(%d)", int(p))
	}
	return profiles[p].name
}

// Code returns the scenario code for p, or the default one if p is unknown.
func Code(p profile.Profile) int {
	if p < 0 || int(p) >= len(profiles) {
		return profiles[Default].code
	}
	return profiles[p].code
}

// Parse parses a profile name.
func Parse(s string) (profile.Profile, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	names := make([]string, len(profiles))
	for i, x := range profiles {
		if s == x.name {
			return profile.Profile(i), nil
		}
		names[i] = x.name
	}
	return Default, fmt.Errorf("%w %q (expected one of %s)", profile.ErrUnknownProfile, s, strings.Join(names, ", "))
}

// State is a snapshot of the controller's state.
type State struct {
	Package  string
	Profile  profile.Profile
	ScreenOn bool
}

// Controller tracks the foreground app and screen state, and writes the
// scenario code for the foreground app while the screen is on.
type Controller struct {
	table *profile.Table
	node  sysfs.Node
	log   zerolog.Logger

	mu       sync.Mutex
	screenOn bool
	current  string
}

// NewController creates a new Controller. The screen is assumed to be on.
func NewController(table *profile.Table, node sysfs.Node, log zerolog.Logger) *Controller {
	return &Controller{
		table:    table,
		node:     node,
		log:      log,
		screenOn: true,
	}
}

// ForegroundChanged applies the profile for pkg if it isn't already the
// current app and the screen is on.
func (c *Controller) ForegroundChanged(pkg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pkg == c.current {
		return
	}
	c.current = pkg
	if c.screenOn {
		c.apply()
	}
}

// ScreenChanged writes the default profile when the screen turns off, and
// re-applies the current app's profile when it turns on.
func (c *Controller) ScreenChanged(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.screenOn = on
	if on {
		c.apply()
	} else {
		c.write(Default)
	}
}

// Reset forgets the current app so the next foreground event re-applies it.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = ""
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Package:  c.current,
		Profile:  c.table.ProfileFor(c.current),
		ScreenOn: c.screenOn,
	}
}

func (c *Controller) apply() {
	c.write(c.table.ProfileFor(c.current))
}

func (c *Controller) write(p profile.Profile) {
	log := c.log.With().Str("profile", Name(p)).Str("package", c.current).Logger()
	if err := c.node.Write(strconv.Itoa(Code(p))); err != nil {
		log.Warn().Err(err).Msg("failed to set thermal profile")
		return
	}
	metrics.ProfilesApplied.WithLabelValues("thermal", Name(p)).Inc()
	log.Debug().Msg("set thermal profile")
}
