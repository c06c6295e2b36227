// Package partsd is a small daemon runtime for device-specific tuning
// services which react to framework events (the foreground app, screen state,
// display orientation, sensors) by writing sysfs nodes and system settings.
package partsd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pgaskin/partsd/metrics"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

const (
	restartEnv = "PARTSD_RESTARTED=1"
	stopSignal = unix.SIGUSR1
	contSignal = unix.SIGUSR2
)

// Service is a single long-running service with its own main loop and state.
// The struct implementing Service should contain read-only configuration and
// shared dependencies, and all state should be contained within Run.
type Service interface {
	// Run contains the main loop for the service, running until the event
	// channel is closed and returning an error if a fatal error occurs.
	Run(Instance) error
}

// ServiceFunc wraps a function in a Service.
type ServiceFunc func(Instance) error

func (fn ServiceFunc) Run(instance Instance) error {
	return fn(instance)
}

// Named may be implemented by a Service to set the name used in logs.
type Named interface {
	Name() string
}

// Instance provides per-instance functions to interact with the daemon.
type Instance interface {
	// IsStopped checks whether the daemon is currently paused. Services
	// should not write to the hardware while paused.
	IsStopped() bool

	// Event gets the event channel. Up to 16 events are buffered, and events
	// are dropped if the service falls behind. It is closed when the daemon
	// exits.
	Event() <-chan partsproto.Event

	// Stopped gets a channel which notifies when IsStopped changes. The buffer
	// size is 1 since the actual value is read from IsStopped.
	Stopped() <-chan struct{}

	// Log gets the logger for the instance.
	Log() *zerolog.Logger
}

// Source produces host events until ctx is canceled or it fails.
type Source interface {
	Run(ctx context.Context, emit func(partsproto.Event)) error
}

// SourceFunc wraps a function in a Source.
type SourceFunc func(ctx context.Context, emit func(partsproto.Event)) error

func (fn SourceFunc) Run(ctx context.Context, emit func(partsproto.Event)) error {
	return fn(ctx, emit)
}

// MultiSource runs multiple sources at once, stopping all of them if any
// fails. A source which returns io.EOF stops without affecting the others, and
// io.EOF is returned once all of them have.
type MultiSource []Source

func (m MultiSource) Run(ctx context.Context, emit func(partsproto.Event)) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range m {
		g.Go(func() error {
			if err := src.Run(ctx, emit); !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return io.EOF
}

type instanceImpl struct {
	log zerolog.Logger

	// notify
	eventCh   chan partsproto.Event
	stoppedCh chan struct{}

	// stopped state
	stopped atomic.Bool
}

func newInstance(log zerolog.Logger) *instanceImpl {
	return &instanceImpl{
		log:       log,
		eventCh:   make(chan partsproto.Event, 16),
		stoppedCh: make(chan struct{}, 1),
	}
}

func instantiate(s Service, log zerolog.Logger, wg *sync.WaitGroup) *instanceImpl {
	instance := newInstance(log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			err := func() (err error) {
				defer func() {
					if p := recover(); p != nil {
						err = fmt.Errorf("panic: %v", p)
					}
				}()
				return s.Run(instance)
			}()
			if err == nil {
				break
			}
			instance.log.Error().Err(err).Msg("service failed, restarting after the next event")
			for {
				select {
				case _, ok := <-instance.eventCh:
					if !ok {
						return
					}
					continue
				default:
				}
				break
			}
			if _, ok := <-instance.eventCh; !ok {
				return
			}
		}
	}()
	return instance
}

func (i *instanceImpl) IsStopped() bool {
	return i.stopped.Load()
}

func (i *instanceImpl) Event() <-chan partsproto.Event {
	return i.eventCh
}

func (i *instanceImpl) Stopped() <-chan struct{} {
	return i.stoppedCh
}

func (i *instanceImpl) Log() *zerolog.Logger {
	return &i.log
}

func (i *instanceImpl) SendEvent(event partsproto.Event) {
	select {
	case i.eventCh <- event:
	default:
		metrics.EventsDropped.Inc()
		i.log.Warn().Stringer("event", event).Msg("event queue full, dropping event")
	}
}

func (i *instanceImpl) SendStopped(stopped bool) {
	i.stopped.Store(stopped)
	select {
	case i.stoppedCh <- struct{}{}:
	default:
	}
}

// Restarted checks whether the process was re-executed by WatchExecutable.
func Restarted() bool {
	return slices.Contains(os.Environ(), restartEnv)
}

// Run runs services, feeding them events from src until ctx is canceled or src
// returns. A boot event is sent to every service before src is started unless
// the process was restarted by WatchExecutable. The daemon is paused by
// SIGUSR1 and resumed by SIGUSR2.
//
// A service which returns an error or panics is restarted after the next
// event. Run waits for all services to return after src stops. If src returns
// io.EOF or ctx is canceled, a nil error is returned.
func Run(ctx context.Context, log zerolog.Logger, src Source, services ...Service) error {
	var (
		wg        sync.WaitGroup
		instances = make([]*instanceImpl, len(services))
		mu        sync.RWMutex
		closed    bool
	)
	for i, service := range services {
		name := strconv.Itoa(i)
		if n, ok := service.(Named); ok {
			name = n.Name()
		}
		instances[i] = instantiate(service, log.With().Str("service", name).Logger(), &wg)
	}

	emit := func(event partsproto.Event) {
		if !event.Valid() {
			log.Warn().Stringer("event", event).Msg("ignoring invalid event")
			return
		}
		mu.RLock()
		defer mu.RUnlock()
		if closed {
			return
		}
		metrics.Events.WithLabelValues(string(event.Type)).Inc()
		log.Trace().Stringer("event", event).Msg("dispatching event")
		for _, instance := range instances {
			instance.SendEvent(event)
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, stopSignal, contSignal)
	defer signal.Stop(sigCh)

	sigCtx, sigCancel := context.WithCancel(ctx)
	defer sigCancel()

	go func() {
		for {
			select {
			case <-sigCtx.Done():
				return
			case sig := <-sigCh:
				stopped := sig == stopSignal
				log.Info().Bool("stopped", stopped).Msg("pause state changed")
				for _, instance := range instances {
					instance.SendStopped(stopped)
				}
			}
		}
	}()

	if !Restarted() {
		emit(partsproto.Event{Type: partsproto.Boot})
	}

	err := src.Run(ctx, emit)

	mu.Lock()
	closed = true
	for _, instance := range instances {
		close(instance.eventCh)
	}
	mu.Unlock()

	wg.Wait()

	if err == nil || errors.Is(err, io.EOF) || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("source: %w", err)
}

// WatchExecutable re-executes the current process when its binary is replaced
// (i.e., after an adb push or go build), until ctx is canceled.
func WatchExecutable(ctx context.Context, log zerolog.Logger) {
	log = log.With().Str("component", "watcher").Logger()

	exe, err := os.Executable()
	if err != nil {
		log.Warn().Err(err).Msg("failed to watch own binary: get own path")
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("failed to watch own binary: create watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(exe); err != nil {
		log.Warn().Err(err).Msg("failed to watch own binary: update watcher")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) {
				// both go build and adb push chmod it at the end
				log.Info().Msg("got chmod, restarting in 500ms")
				time.Sleep(time.Millisecond * 500)
				env := os.Environ()
				if !slices.Contains(env, restartEnv) {
					env = append(env, restartEnv)
				}
				if err := unix.Exec(exe, os.Args, env); err != nil {
					log.Error().Err(err).Msg("restart failed")
				}
			}
		case err, ok := <-watcher.Errors:
			if ok {
				log.Warn().Err(err).Msg("watcher error")
			}
		}
	}
}
