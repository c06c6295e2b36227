// Package saturation sets the display color saturation through the
// compositor.
package saturation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/metrics"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/prefs"
	"github.com/pgaskin/partsd/seekbar"
	"github.com/rs/zerolog"
)

// ErrNoCompositor is returned by a Compositor if the compositor service isn't
// running.
var ErrNoCompositor = errors.New("compositor service not found")

const (
	// KeySaturation is the preference storing the seek bar value.
	KeySaturation = "saturation"

	// DefaultValue is the seek bar value for unmodified saturation.
	DefaultValue = 100

	// DefaultDelay is how long to wait after boot before applying the saved
	// value, since the compositor resets it during startup.
	DefaultDelay = 5 * time.Second
)

// Compositor sets the saturation matrix of the display.
type Compositor interface {
	SetSaturation(ctx context.Context, v float32) error
}

// Value converts a seek bar value (percent) to a saturation level. The
// default value is nudged above 1 since the compositor treats exactly 1 as
// unset and won't replace a previous level with it.
func Value(v int) float32 {
	if v == DefaultValue {
		return 1.001
	}
	return float32(v) / 100
}

// Config returns the seek bar config for the saturation preference.
func Config() seekbar.Config {
	return seekbar.Config{
		Min:        0,
		Max:        200,
		Interval:   1,
		Default:    DefaultValue,
		HasDefault: true,
		Continuous: true,
	}
}

// Controller reads, writes and applies the saturation preference.
type Controller struct {
	prefs prefs.Store
	comp  Compositor
	log   zerolog.Logger
}

// New creates a new Controller.
func New(store prefs.Store, comp Compositor, log zerolog.Logger) *Controller {
	return &Controller{
		prefs: store,
		comp:  comp,
		log:   log,
	}
}

// Get returns the saved seek bar value.
func (c *Controller) Get() int {
	return c.prefs.Int(KeySaturation, DefaultValue)
}

// Apply applies the saved value.
func (c *Controller) Apply(ctx context.Context) error {
	return c.apply(ctx, c.Get())
}

// Bar returns a seek bar initialized to the saved value which saves and
// applies new values. Failing to apply a value doesn't prevent it from being
// saved.
func (c *Controller) Bar(ctx context.Context) *seekbar.Bar {
	b := seekbar.New(Config())
	b.Restore(c.Get())
	b.Persist = func(v int) error {
		if err := c.prefs.PutInt(KeySaturation, v); err != nil {
			return err
		}
		_ = c.apply(ctx, v)
		return nil
	}
	return b
}

func (c *Controller) apply(ctx context.Context, v int) error {
	log := c.log.With().Int("value", v).Float32("saturation", Value(v)).Logger()
	if err := c.comp.SetSaturation(ctx, Value(v)); err != nil {
		if errors.Is(err, ErrNoCompositor) {
			log.Error().Err(err).Msg("skipping saturation")
		} else {
			log.Error().Err(err).Msg("failed to apply saturation")
		}
		return fmt.Errorf("apply saturation %d: %w", v, err)
	}
	metrics.ProfilesApplied.WithLabelValues("saturation", "custom").Inc()
	log.Debug().Msg("applied saturation")
	return nil
}

// Service applies the saved saturation after boot.
type Service struct {
	Prefs      prefs.Store
	Compositor Compositor
	Delay      time.Duration   // DefaultDelay if zero
	Clock      clockwork.Clock // real clock if nil
}

var _ partsd.Service = Service{}

func (Service) Name() string {
	return "saturation"
}

func (s Service) Run(i partsd.Instance) error {
	delay := s.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(s.Prefs, s.Compositor, *i.Log())

	var timer clockwork.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-i.Stopped():
		case event, ok := <-i.Event():
			if !ok {
				return nil
			}
			if event.Type != partsproto.Boot {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			i.Log().Debug().Dur("delay", delay).Msg("applying saved saturation after delay")
			timer = clock.AfterFunc(delay, func() {
				if i.IsStopped() {
					return
				}
				_ = c.Apply(ctx)
			})
		}
	}
}
