package thermal

import (
	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/sysfs"
)

// Service applies thermal profiles as the foreground app and screen state
// change.
type Service struct {
	Table *profile.Table
	Node  sysfs.Node // DefaultNode if empty
}

var _ partsd.Service = Service{}

func (Service) Name() string {
	return "thermal"
}

func (s Service) Run(i partsd.Instance) error {
	node := s.Node
	if node == "" {
		node = DefaultNode
	}
	c := NewController(s.Table, node, *i.Log())
	for {
		select {
		case <-i.Stopped():
			if !i.IsStopped() {
				c.Reset()
			}
		case event, ok := <-i.Event():
			if !ok {
				return nil
			}
			if i.IsStopped() {
				continue
			}
			switch event.Type {
			case partsproto.Foreground:
				c.ForegroundChanged(event.Package)
			case partsproto.Screen:
				c.ScreenChanged(event.On)
			}
		}
	}
}
