package thermal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pgaskin/partsd/metrics"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/rs/zerolog"
)

// Mode is a global thermal mode selected by the quick settings tile,
// independent of the per-app profiles.
type Mode int

const (
	ModeDefault Mode = iota
	ModePerformance
	ModeBatterySaver
	ModeGaming
	numModes
)

var modes = [numModes]struct {
	name string
	code int
}{
	{"default", 20},
	{"performance", 10},
	{"battery-saver", 3},
	{"gaming", 9},
}

func (m Mode) String() string {
	if m < 0 || m >= numModes {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modes[m].name
}

// Code returns the scenario code for m.
func (m Mode) Code() int {
	if m < 0 || m >= numModes {
		return modes[ModeDefault].code
	}
	return modes[m].code
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m := range numModes {
		if modes[m].name == s {
			return m, nil
		}
	}
	return ModeDefault, fmt.Errorf("unknown thermal mode %q", s)
}

// Tile cycles the thermal node through the global modes.
type Tile struct {
	node sysfs.Node
	log  zerolog.Logger
	mode Mode
}

// NewTile creates a new Tile. Call Sync before Toggle to pick up the current
// mode.
func NewTile(node sysfs.Node, log zerolog.Logger) *Tile {
	return &Tile{
		node: node,
		log:  log,
	}
}

// Mode returns the last synced or set mode.
func (t *Tile) Mode() Mode {
	return t.mode
}

// Sync reads the current mode from the node. Unknown codes are treated as the
// default mode. If the node can't be read, the default mode is written.
func (t *Tile) Sync() Mode {
	v, err := t.node.Int()
	if err != nil {
		t.log.Warn().Err(err).Msg("failed to read thermal mode, resetting to default")
		_ = t.Set(ModeDefault)
		return t.mode
	}
	t.mode = ModeDefault
	for m := range numModes {
		if modes[m].code == v {
			t.mode = m
			break
		}
	}
	return t.mode
}

// Toggle advances to the next mode.
func (t *Tile) Toggle() (Mode, error) {
	err := t.Set((t.mode + 1) % numModes)
	return t.mode, err
}

// Set writes m to the node.
func (t *Tile) Set(m Mode) error {
	t.mode = m
	err := t.node.Write(strconv.Itoa(m.Code()))
	if err != nil {
		t.log.Warn().Err(err).Stringer("mode", m).Msg("failed to set thermal mode")
		return fmt.Errorf("set thermal mode %s: %w", m, err)
	}
	metrics.ProfilesApplied.WithLabelValues("thermal_tile", m.String()).Inc()
	t.log.Debug().Stringer("mode", m).Msg("set thermal mode")
	return nil
}
