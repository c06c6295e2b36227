// Package refreshrate applies per-app display refresh rate profiles.
//
// Each app can be locked to 60, 90 or 120 Hz, or to one of those rates only
// while the display is in landscape. Unlisted apps get the refresh rate the
// system had while the last unlisted app was in the foreground.
package refreshrate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pgaskin/partsd/metrics"
	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/settings"
	"github.com/rs/zerolog"
)

// Refresh rate profiles.
const (
	Default profile.Profile = iota
	Fixed60
	Fixed90
	Fixed120
	Landscape60
	Landscape90
	Landscape120
)

// Layout is the profile table layout for refresh rates.
var Layout = profile.Layout{
	Key: "refresh_control",
	Labels: []string{
		"refresh.60=",
		"refresh.90=",
		"refresh.120=",
		"refresh.60land=",
		"refresh.90land=",
		"refresh.120land=",
	},
}

// Settings keys.
const (
	KeyMinRefreshRate  = "min_refresh_rate"
	KeyPeakRefreshRate = "peak_refresh_rate"
)

// DefaultRate is used for the remembered system rates until they are first
// read, and if they are unset.
const DefaultRate = 120

var names = []string{"default", "60", "90", "120", "60land", "90land", "120land"}

// Name returns the short name of p.
func Name(p profile.Profile) string {
	if p < 0 || int(p) >= len(names) {
		return fmt.Sprintf("profile(%d)", int(p))
	}
	return names[p]
}

// Parse parses a short profile name (or a rate in Hz with an optional "land"
// suffix).
func Parse(s string) (profile.Profile, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "hz")
	for i, n := range names {
		if s == n {
			return profile.Profile(i), nil
		}
	}
	return Default, fmt.Errorf("%w %q (expected one of %s)", profile.ErrUnknownProfile, s, strings.Join(names, ", "))
}

// Rate returns the rate a non-default profile locks the display to.
func Rate(p profile.Profile) float64 {
	switch p {
	case Fixed60, Landscape60:
		return 60
	case Fixed90, Landscape90:
		return 90
	case Fixed120, Landscape120:
		return 120
	}
	return 0
}

// IsLandscape checks whether p only applies in landscape.
func IsLandscape(p profile.Profile) bool {
	return p == Landscape60 || p == Landscape90 || p == Landscape120
}

// State is a snapshot of the controller's resolved state.
type State struct {
	Package    string
	Profile    profile.Profile
	Landscape  bool
	Listening  bool
	DefaultMin float64
	DefaultMax float64
}

// Controller resolves the foreground app's profile and writes the refresh
// rate settings. All methods are safe for concurrent use, and writes are
// serialized.
type Controller struct {
	table    *profile.Table
	settings settings.Provider
	log      zerolog.Logger

	mu         sync.Mutex
	previous   string          // last app the rate was set for
	listed     bool            // whether previous is in the table
	current    profile.Profile // profile of previous
	listening  bool            // whether orientation changes are applied
	listenPkg  string          // app orientation changes are applied for
	landscape  bool            // last known orientation
	defaultMin float64
	defaultMax float64
}

// NewController creates a new Controller.
func NewController(table *profile.Table, s settings.Provider, log zerolog.Logger) *Controller {
	return &Controller{
		table:      table,
		settings:   s,
		log:        log,
		defaultMin: DefaultRate,
		defaultMax: DefaultRate,
	}
}

// ForegroundChanged applies the profile for the new foreground app.
func (c *Controller) ForegroundChanged(pkg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.table.ProfileFor(pkg)

	// only refreshed after an unlisted app, since the settings hold our own
	// values while a listed app is in the foreground
	if !c.listed {
		c.captureDefaults()
	}

	if pkg != c.previous {
		c.apply(pkg, state)
		c.previous = pkg
	}

	if IsLandscape(state) && c.listed {
		c.applyOrientation(state)
	}
}

// OrientationChanged updates the display orientation, and re-applies the
// profile if an app with a landscape profile is in the foreground.
func (c *Controller) OrientationChanged(landscape bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if landscape == c.landscape {
		return
	}
	c.landscape = landscape

	if !c.listening {
		return
	}
	// the table is re-read so reassigning the current app takes effect on
	// the next rotation
	state := c.table.ProfileFor(c.listenPkg)
	if !IsLandscape(state) {
		return
	}
	c.applyOrientation(state)
}

// ScreenChanged forgets the previous app so the profile is re-applied on the
// next foreground change.
func (c *Controller) ScreenChanged(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.previous = ""
}

// Listening checks whether orientation changes are currently being applied.
func (c *Controller) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Package:    c.previous,
		Profile:    c.current,
		Landscape:  c.landscape,
		Listening:  c.listening,
		DefaultMin: c.defaultMin,
		DefaultMax: c.defaultMax,
	}
}

func (c *Controller) captureDefaults() {
	c.defaultMax = settings.Float(c.settings, settings.System, KeyPeakRefreshRate, DefaultRate)
	c.defaultMin = settings.Float(c.settings, settings.System, KeyMinRefreshRate, DefaultRate)
}

func (c *Controller) apply(pkg string, state profile.Profile) {
	c.current = state
	c.listed = state != Default

	switch {
	case IsLandscape(state):
		// written by applyOrientation
		c.listening = true
		c.listenPkg = pkg
		c.log.Debug().Str("package", pkg).Str("profile", Name(state)).Msg("listening for orientation changes")
		return
	case state == Default:
		c.disableListener()
		c.write(Default, c.defaultMin, c.defaultMax)
	default:
		c.disableListener()
		c.write(state, Rate(state), Rate(state))
	}
}

func (c *Controller) applyOrientation(state profile.Profile) {
	if c.landscape {
		c.write(state, Rate(state), Rate(state))
	} else {
		c.write(Default, c.defaultMin, c.defaultMax)
	}
}

func (c *Controller) disableListener() {
	c.listening = false
	c.listenPkg = ""
}

func (c *Controller) write(state profile.Profile, minRate, maxRate float64) {
	log := c.log.With().Str("profile", Name(state)).Float64("min", minRate).Float64("max", maxRate).Logger()
	if err := settings.PutFloat(c.settings, settings.System, KeyMinRefreshRate, minRate); err != nil {
		log.Warn().Err(err).Msg("failed to set refresh rate")
	}
	if err := settings.PutFloat(c.settings, settings.System, KeyPeakRefreshRate, maxRate); err != nil {
		log.Warn().Err(err).Msg("failed to set refresh rate")
	}
	metrics.ProfilesApplied.WithLabelValues("refreshrate", Name(state)).Inc()
	log.Debug().Msg("set refresh rate")
}
