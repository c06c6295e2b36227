package doze

import (
	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/partsproto"
)

// Service restores the doze mode at boot and drives the AOD sensor in auto
// brightness mode.
type Service struct {
	Config
}

var _ partsd.Service = Service{}

func (Service) Name() string {
	return "doze"
}

func (s Service) Run(i partsd.Instance) error {
	c := New(s.Config, *i.Log())
	for {
		select {
		case <-i.Stopped():
		case event, ok := <-i.Event():
			if !ok {
				return nil
			}
			if i.IsStopped() {
				continue
			}
			switch event.Type {
			case partsproto.Boot:
				c.Boot()
			case partsproto.Screen:
				c.ScreenChanged(event.On)
			case partsproto.Sensor:
				if event.Sensor == SensorAOD {
					c.SensorChanged(event.Value)
				}
			}
		}
	}
}
