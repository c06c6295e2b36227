// Package speaker implements the earpiece speaker cleaning routine, which
// plays a low-frequency tone on loop to push out dust and water.
package speaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Audio parameters.
const (
	ParamCleanOn  = "status_earpiece_clean=on"
	ParamCleanOff = "status_earpiece_clean=off"
)

// DefaultDuration is how long the sound is played for.
const DefaultDuration = 30 * time.Second

// Audio controls the audio HAL.
type Audio interface {
	// SetParameters sets vendor audio parameters.
	SetParameters(ctx context.Context, kv string) error

	// Play plays a sound on loop until the returned stop function is called
	// or ctx is canceled.
	Play(ctx context.Context, sound string) (stop func() error, err error)
}

// Config configures a Cleaner.
type Config struct {
	Audio    Audio
	Sound    string
	Duration time.Duration   // DefaultDuration if zero
	Clock    clockwork.Clock // real clock if nil
	Log      zerolog.Logger
}

// Cleaner runs the cleaning routine. It is safe for concurrent use.
type Cleaner struct {
	cfg Config

	mu    sync.Mutex
	stop  func() error
	timer clockwork.Timer
	done  chan struct{}
}

// NewCleaner creates a new Cleaner.
func NewCleaner(cfg Config) *Cleaner {
	if cfg.Duration == 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Cleaner{cfg: cfg}
}

// Start starts the routine, restarting it if it is already running. It stops
// automatically after the configured duration. If playback can't be started,
// the routine is left stopped.
func (c *Cleaner) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		c.stopLocked()
	}

	c.setParameters(ParamCleanOn)

	stop, err := c.cfg.Audio.Play(ctx, c.cfg.Sound)
	if err != nil {
		c.cfg.Log.Error().Err(err).Str("sound", c.cfg.Sound).Msg("failed to play speaker clean sound")
		c.setParameters(ParamCleanOff)
		return fmt.Errorf("play %q: %w", c.cfg.Sound, err)
	}
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.timer = c.cfg.Clock.AfterFunc(c.cfg.Duration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		// don't stop a newer run if we raced with Start
		if c.done == done {
			c.stopLocked()
		}
	})
	c.cfg.Log.Info().Dur("duration", c.cfg.Duration).Msg("started speaker cleaning")
	return nil
}

// Stop stops the routine if it is running.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		c.stopLocked()
	}
}

// Running checks whether the routine is running.
func (c *Cleaner) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Done returns a channel which is closed when the current run stops, or nil
// if it isn't running.
func (c *Cleaner) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Cleaner) stopLocked() {
	c.timer.Stop()
	if err := c.stop(); err != nil {
		c.cfg.Log.Warn().Err(err).Msg("failed to stop speaker clean sound")
	}
	c.setParameters(ParamCleanOff)
	close(c.done)
	c.stop, c.timer, c.done = nil, nil, nil
	c.cfg.Log.Info().Msg("stopped speaker cleaning")
}

func (c *Cleaner) setParameters(kv string) {
	if err := c.cfg.Audio.SetParameters(context.Background(), kv); err != nil {
		c.cfg.Log.Warn().Err(err).Str("parameters", kv).Msg("failed to set audio parameters")
	}
}
