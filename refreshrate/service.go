package refreshrate

import (
	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/settings"
)

// Service applies refresh rate profiles as the foreground app, screen state
// and orientation change.
type Service struct {
	Table    *profile.Table
	Settings settings.Provider
}

var _ partsd.Service = Service{}

func (Service) Name() string {
	return "refreshrate"
}

func (s Service) Run(i partsd.Instance) error {
	c := NewController(s.Table, s.Settings, *i.Log())
	for {
		select {
		case <-i.Stopped():
			if !i.IsStopped() {
				// re-apply on the next foreground event
				c.ScreenChanged(true)
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
			case partsproto.Orientation:
				c.OrientationChanged(event.Landscape())
			case partsproto.Screen:
				c.ScreenChanged(event.On)
			}
		}
	}
}
