// Package seekbar implements a bounded integer preference edited with a
// stepped slider and plus/minus/reset buttons.
package seekbar

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrRejected is returned when the change callback rejects a new value.
var ErrRejected = errors.New("seekbar: change rejected")

// Config configures a Bar.
type Config struct {
	Min      int
	Max      int // Min if less than Min
	Interval int // 1 if not positive

	ShowSign bool   // prefix positive values with +
	Units    string // appended after a space

	Default     int
	HasDefault  bool
	DefaultText string // shown instead of the default value if set

	// Continuous commits every slider movement instead of only the final
	// value when tracking stops.
	Continuous bool
}

// Bar is the state of a seek bar preference. It is not safe for concurrent
// use.
type Bar struct {
	// OnChange, if set, is called before a new value is committed, and may
	// reject it.
	OnChange func(v int) bool

	// Persist, if set, is called to store a new value before it is
	// committed. If it returns an error, the value is not changed.
	Persist func(v int) error

	cfg      Config
	value    int
	tracking bool
	tracked  int
}

// New creates a Bar at the default value (or the minimum if there isn't one).
func New(cfg Config) *Bar {
	if cfg.Interval <= 0 {
		cfg.Interval = 1
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	b := &Bar{cfg: cfg}
	if cfg.HasDefault {
		b.cfg.Default = b.Limit(cfg.Default)
		b.value = b.cfg.Default
	} else {
		b.value = cfg.Min
	}
	return b
}

// Config returns the normalized config.
func (b *Bar) Config() Config {
	return b.cfg
}

// Restore sets the value from storage without calling OnChange or Persist.
func (b *Bar) Restore(v int) {
	b.value = b.Limit(v)
}

// Value returns the committed value.
func (b *Bar) Value() int {
	return b.value
}

// Tracking checks whether the slider is being dragged.
func (b *Bar) Tracking() bool {
	return b.tracking
}

// Limit clamps v to the range.
func (b *Bar) Limit(v int) int {
	return min(max(v, b.cfg.Min), b.cfg.Max)
}

// SeekIndex returns the slider position for v. Values between steps round
// down.
func (b *Bar) SeekIndex(v int) int {
	return floorDiv(v-b.cfg.Min, b.cfg.Interval)
}

// MaxIndex returns the last slider position.
func (b *Bar) MaxIndex() int {
	return b.SeekIndex(b.cfg.Max)
}

// ValueAt returns the value at a slider position.
func (b *Bar) ValueAt(index int) int {
	return b.Limit(b.cfg.Min + index*b.cfg.Interval)
}

// Text formats v.
func (b *Bar) Text(v int) string {
	if b.cfg.DefaultText != "" && b.cfg.HasDefault && v == b.cfg.Default {
		return b.cfg.DefaultText
	}
	var s string
	if b.cfg.ShowSign && v > 0 {
		s = "+"
	}
	s += strconv.Itoa(v)
	if b.cfg.Units != "" {
		s += " " + b.cfg.Units
	}
	return s
}

// Label formats the current value for display. While tracking in
// commit-on-release mode, the uncommitted value is shown in brackets.
func (b *Bar) Label() string {
	isDefault := func(v int) bool {
		return b.cfg.HasDefault && v == b.cfg.Default
	}
	if !b.tracking || b.cfg.Continuous {
		if b.cfg.DefaultText != "" && isDefault(b.value) {
			return b.cfg.DefaultText + " (default)"
		}
		s := fmt.Sprintf("Value: %s", b.Text(b.value))
		if isDefault(b.value) {
			s += " (default)"
		}
		return s
	}
	if b.cfg.DefaultText != "" && isDefault(b.tracked) {
		return "[" + b.cfg.DefaultText + "]"
	}
	return fmt.Sprintf("Value: [%s]", b.Text(b.tracked))
}

// CanReset checks whether the reset button is usable.
func (b *Bar) CanReset() bool {
	return b.cfg.HasDefault && b.value != b.cfg.Default && !b.tracking
}

// CanDecrement checks whether the minus button is usable.
func (b *Bar) CanDecrement() bool {
	return b.value != b.cfg.Min && !b.tracking
}

// CanIncrement checks whether the plus button is usable.
func (b *Bar) CanIncrement() bool {
	return b.value != b.cfg.Max && !b.tracking
}

// SetValue commits v after clamping it.
func (b *Bar) SetValue(v int) error {
	return b.commit(b.Limit(v))
}

// Increment adds one step.
func (b *Bar) Increment() error {
	return b.SetValue(b.value + b.cfg.Interval)
}

// Decrement subtracts one step.
func (b *Bar) Decrement() error {
	return b.SetValue(b.value - b.cfg.Interval)
}

// JumpUp jumps to the midpoint of the range if the value is below it and the
// range is more than two steps wide, and to the maximum otherwise.
func (b *Bar) JumpUp() error {
	lo, hi := b.cfg.Min, b.cfg.Max
	if hi-lo > b.cfg.Interval*2 && hi+lo > b.value*2 {
		return b.SetValue(-floorDiv(-(hi + lo), 2))
	}
	return b.SetValue(hi)
}

// JumpDown jumps to the midpoint of the range if the value is above it and
// the range is more than two steps wide, and to the minimum otherwise.
func (b *Bar) JumpDown() error {
	lo, hi := b.cfg.Min, b.cfg.Max
	if hi-lo > b.cfg.Interval*2 && hi+lo < b.value*2 {
		return b.SetValue(floorDiv(hi+lo, 2))
	}
	return b.SetValue(lo)
}

// Reset commits the default value, if any.
func (b *Bar) Reset() error {
	if !b.cfg.HasDefault {
		return nil
	}
	return b.SetValue(b.cfg.Default)
}

// StartTracking starts a slider drag.
func (b *Bar) StartTracking() {
	b.tracked = b.value
	b.tracking = true
}

// Progress moves the slider to index. The value is committed immediately
// unless tracking in commit-on-release mode.
func (b *Bar) Progress(index int) error {
	v := b.ValueAt(index)
	if b.tracking && !b.cfg.Continuous {
		b.tracked = v
		return nil
	}
	return b.commit(v)
}

// StopTracking ends a slider drag, committing the final value in
// commit-on-release mode.
func (b *Bar) StopTracking() error {
	b.tracking = false
	if !b.cfg.Continuous {
		return b.commit(b.tracked)
	}
	return nil
}

func (b *Bar) commit(v int) error {
	if v == b.value {
		return nil
	}
	if b.OnChange != nil && !b.OnChange(v) {
		return ErrRejected
	}
	if b.Persist != nil {
		if err := b.Persist(v); err != nil {
			return fmt.Errorf("persist value %d: %w", v, err)
		}
	}
	b.value = v
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
