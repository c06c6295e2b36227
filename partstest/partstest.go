// Package partstest provides utilities for testing partsd services.
package partstest

import (
	"sync/atomic"

	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/rs/zerolog"
)

// Instance is a partsd.Instance driven by the test.
type Instance struct {
	event   chan partsproto.Event
	stop    chan struct{}
	stopped atomic.Bool
	log     zerolog.Logger
}

var _ partsd.Instance = (*Instance)(nil)

// NewInstance creates an Instance with room for n queued events.
func NewInstance(n int) *Instance {
	return &Instance{
		event: make(chan partsproto.Event, n),
		stop:  make(chan struct{}, 1),
		log:   zerolog.Nop(),
	}
}

// Send queues events, blocking if the queue is full.
func (i *Instance) Send(events ...partsproto.Event) {
	for _, event := range events {
		i.event <- event
	}
}

// Close closes the event channel, causing the service to return.
func (i *Instance) Close() {
	close(i.event)
}

// SetStopped sets the paused state and notifies the service.
func (i *Instance) SetStopped(stopped bool) {
	i.stopped.Store(stopped)
	select {
	case i.stop <- struct{}{}:
	default:
	}
}

// SetLogger sets the logger returned by Log.
func (i *Instance) SetLogger(log zerolog.Logger) {
	i.log = log
}

func (i *Instance) IsStopped() bool {
	return i.stopped.Load()
}

func (i *Instance) Event() <-chan partsproto.Event {
	return i.event
}

func (i *Instance) Stopped() <-chan struct{} {
	return i.stop
}

func (i *Instance) Log() *zerolog.Logger {
	return &i.log
}
