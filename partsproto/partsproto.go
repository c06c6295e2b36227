// Package partsproto implements the host event protocol used to feed framework
// events (foreground task changes, screen state, orientation, sensor readings)
// into partsd.
//
// Events are encoded as one JSON object per line:
//
//	{"type":"foreground","package":"com.android.chrome"}
//	{"type":"screen","on":false}
//	{"type":"orientation","rotation":1}
//	{"type":"sensor","sensor":"xiaomi.sensor.aod","value":4}
package partsproto

import (
	"strconv"

	"github.com/pgaskin/partsd/internal/jsonenc"
	"github.com/tidwall/gjson"
)

// Type is an event type.
type Type string

const (
	Boot        Type = "boot"
	Foreground  Type = "foreground"
	Screen      Type = "screen"
	Orientation Type = "orientation"
	Sensor      Type = "sensor"
)

// Event is a single host event. Only the fields relevant to Type are set.
type Event struct {
	Type     Type
	Package  string  // foreground
	On       bool    // screen
	Rotation int     // orientation, 0-3 in 90 degree steps from the natural orientation
	Sensor   string  // sensor
	Value    float64 // sensor
}

// Landscape checks whether the rotation is sideways relative to a portrait
// natural orientation.
func (e Event) Landscape() bool {
	return e.Rotation == 1 || e.Rotation == 3
}

// Valid checks whether e has a known type and the fields required by it.
func (e Event) Valid() bool {
	switch e.Type {
	case Boot, Screen, Orientation:
		return true
	case Foreground:
		return e.Package != ""
	case Sensor:
		return e.Sensor != ""
	}
	return false
}

func (e Event) String() string {
	return string(e.AppendJSON(nil))
}

func (e Event) MarshalJSON() ([]byte, error) {
	return e.AppendJSON(nil), nil
}

func (e Event) AppendJSON(s []byte) []byte {
	s = append(s, `{"type":`...)
	s = jsonenc.AppendString(s, string(e.Type))
	switch e.Type {
	case Foreground:
		s = append(s, `,"package":`...)
		s = jsonenc.AppendString(s, e.Package)
	case Screen:
		s = append(s, `,"on":`...)
		s = strconv.AppendBool(s, e.On)
	case Orientation:
		s = append(s, `,"rotation":`...)
		s = strconv.AppendInt(s, int64(e.Rotation), 10)
	case Sensor:
		s = append(s, `,"sensor":`...)
		s = jsonenc.AppendString(s, e.Sensor)
		s = append(s, `,"value":`...)
		s = strconv.AppendFloat(s, e.Value, 'g', -1, 64)
	}
	s = append(s, '}')
	return s
}

// FromJSON parses b without any error checking. Use Valid to check the result.
func (e *Event) FromJSON(b []byte) {
	var event Event
	gjson.ParseBytes(b).ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "type":
			event.Type = Type(value.Str)
		case "package":
			event.Package = value.Str
		case "on":
			event.On = value.Bool()
		case "rotation":
			event.Rotation = int(value.Int()) & 3
		case "sensor":
			event.Sensor = value.Str
		case "value":
			event.Value = value.Float()
		}
		return true
	})
	*e = event
}

