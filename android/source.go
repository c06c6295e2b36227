package android

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInterval is the default polling interval.
	DefaultInterval = time.Second

	// DefaultBacklight is the panel backlight brightness node.
	DefaultBacklight = "/sys/class/leds/lcd-backlight/brightness"
)

// Source polls the framework for foreground app and orientation changes. The
// screen state is taken from the backlight brightness if the node exists, and
// polled from the power manager otherwise. Nothing is polled while the screen
// is off.
type Source struct {
	Runner    Runner
	Interval  time.Duration   // DefaultInterval if zero
	Backlight string          // DefaultBacklight if empty, "-" to always poll
	Clock     clockwork.Clock // real clock if nil
	Log       zerolog.Logger
}

var _ partsd.Source = Source{}

func (s Source) Run(ctx context.Context, emit func(partsproto.Event)) error {
	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}
	if s.Backlight == "" {
		s.Backlight = DefaultBacklight
	}
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}

	var screenOff atomic.Bool
	g, ctx := errgroup.WithContext(ctx)

	pollScreen := true
	if s.Backlight != "-" && sysfs.Readable(s.Backlight) {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		if err := watcher.Add(s.Backlight); err != nil {
			return err
		}
		pollScreen = false

		on := true
		if v, err := sysfs.ReadUint[uint32](s.Backlight); err == nil {
			on = v > 0
		}
		screenOff.Store(!on)

		g.Go(func() error {
			return s.watchBacklight(ctx, watcher, on, emit, &screenOff)
		})
	} else {
		s.Log.Info().Str("node", s.Backlight).Msg("backlight not readable, polling screen state")
	}

	g.Go(func() error {
		return s.poll(ctx, emit, &screenOff, pollScreen)
	})

	return g.Wait()
}

func (s Source) poll(ctx context.Context, emit func(partsproto.Event), screenOff *atomic.Bool, pollScreen bool) error {
	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()

	var (
		lastPkg      string
		lastRotation = -1
		lastOn       = true
		wasOff       bool
		failing      bool
	)
	for {
		err := func() error {
			if pollScreen {
				out, err := s.Runner.Run(ctx, cmdScreen)
				if err != nil {
					return err
				}
				if on, ok := ParseScreen(out); ok {
					screenOff.Store(!on)
					if on != lastOn {
						lastOn = on
						emit(partsproto.Event{Type: partsproto.Screen, On: on})
					}
				}
			}
			if screenOff.Load() {
				wasOff = true
				return nil
			}
			if wasOff {
				// resend the foreground app so profiles are re-applied
				wasOff = false
				lastPkg = ""
			}

			out, err := s.Runner.Run(ctx, cmdOrientation)
			if err != nil {
				return err
			}
			if rotation, ok := ParseOrientation(out); ok && rotation != lastRotation {
				lastRotation = rotation
				emit(partsproto.Event{Type: partsproto.Orientation, Rotation: rotation})
			}

			out, err = s.Runner.Run(ctx, cmdForeground)
			if err != nil {
				return err
			}
			if pkg, ok := ParseForeground(out); ok && pkg != lastPkg {
				lastPkg = pkg
				emit(partsproto.Event{Type: partsproto.Foreground, Package: pkg})
			}
			return nil
		}()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if !failing {
				s.Log.Warn().Err(err).Msg("failed to poll framework state")
			}
		} else if failing {
			s.Log.Info().Msg("polling framework state recovered")
		}
		failing = err != nil

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// watchBacklight emits screen events when the backlight brightness changes
// between zero and non-zero.
func (s Source) watchBacklight(ctx context.Context, watcher *fsnotify.Watcher, on bool, emit func(partsproto.Event), screenOff *atomic.Bool) error {
	log := s.Log.With().Str("node", s.Backlight).Logger()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("backlight watcher error")
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) {
				continue
			}
			v, err := sysfs.ReadUint[uint32](s.Backlight)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					log.Warn().Err(err).Msg("failed to read backlight")
				}
				continue
			}
			if cur := v > 0; cur != on {
				on = cur
				log.Debug().Uint32("brightness", v).Bool("on", on).Msg("screen state changed")
				emit(partsproto.Event{Type: partsproto.Screen, On: on})
				screenOff.Store(!on)
			}
		}
	}
}
