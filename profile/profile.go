// Package profile implements persisted per-package profile tables.
//
// A table maps each of its profiles to a bucket of package names, and is
// stored as a single preference string for compatibility with the settings
// app it replaces:
//
//	refresh.60=com.a,com.b,:refresh.90=:refresh.120=com.c,:...
//
// Buckets are separated by ':', and each package in a bucket is followed by a
// ','. Each bucket starts with a fixed label ending in '=' which identifies it
// to humans but is otherwise ignored. A package is in at most one bucket.
package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/pgaskin/partsd/prefs"
	"github.com/rs/zerolog"
)

// ErrUnknownProfile is returned when assigning a profile the table doesn't
// have.
var ErrUnknownProfile = errors.New("unknown profile")

// Profile identifies a bucket in a table. Packages which are not in any bucket
// have the Default profile, and profile n is stored in bucket n-1.
type Profile int

// Default is the profile of unassigned packages.
const Default Profile = 0

// Layout describes the buckets of a table.
type Layout struct {
	Key    string   // preference key
	Labels []string // initial contents of each bucket, in profile order
}

// Len returns the number of buckets.
func (l Layout) Len() int {
	return len(l.Labels)
}

// Default returns an empty table.
func (l Layout) Default() []Segment {
	segs := make([]Segment, len(l.Labels))
	for i, label := range l.Labels {
		segs[i] = Segment{Label: label}
	}
	return segs
}

// Segment is a single bucket.
type Segment struct {
	Label    string
	Packages []string
}

// Contains checks whether pkg is in the bucket.
func (s Segment) Contains(pkg string) bool {
	return pkg != "" && slices.Contains(s.Packages, pkg)
}

func (s Segment) String() string {
	var b strings.Builder
	b.WriteString(s.Label)
	for _, pkg := range s.Packages {
		b.WriteString(pkg)
		b.WriteByte(',')
	}
	return b.String()
}

func parseSegment(s string) Segment {
	var seg Segment
	if i := strings.LastIndexByte(s, '='); i != -1 {
		seg.Label, s = s[:i+1], s[i+1:]
	}
	for pkg := range strings.SplitSeq(s, ",") {
		if pkg != "" {
			seg.Packages = append(seg.Packages, pkg)
		}
	}
	return seg
}

// Parse parses a table. If text is empty or doesn't have the expected number
// of buckets, missing ones are filled in from the layout, extra ones are
// dropped, and ok is false.
func Parse(l Layout, text string) (segs []Segment, ok bool) {
	if text == "" {
		return l.Default(), false
	}
	parts := strings.Split(text, ":")
	ok = len(parts) == l.Len()
	if len(parts) > l.Len() {
		parts = parts[:l.Len()]
	}
	segs = make([]Segment, 0, l.Len())
	for _, part := range parts {
		segs = append(segs, parseSegment(part))
	}
	for len(segs) < l.Len() {
		segs = append(segs, Segment{Label: l.Labels[len(segs)]})
	}
	return segs, ok
}

// Format formats a table.
func Format(segs []Segment) string {
	var b strings.Builder
	for i, seg := range segs {
		if i != 0 {
			b.WriteByte(':')
		}
		b.WriteString(seg.String())
	}
	return b.String()
}

// Table is a profile table stored in a preference store. It is safe for
// concurrent use, and each operation reads the latest stored value so changes
// made through other Tables sharing the store take effect immediately.
type Table struct {
	store  prefs.Store
	layout Layout
	log    zerolog.Logger

	mu sync.Mutex
}

// New creates a new Table.
func New(store prefs.Store, layout Layout, log zerolog.Logger) *Table {
	return &Table{
		store:  store,
		layout: layout,
		log:    log.With().Str("table", layout.Key).Logger(),
	}
}

// Layout returns the table layout.
func (t *Table) Layout() Layout {
	return t.layout
}

// Get returns the buckets, repairing the stored table if it is missing or
// malformed.
func (t *Table) Get() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get()
}

func (t *Table) get() []Segment {
	text := t.store.String(t.layout.Key, "")
	segs, ok := Parse(t.layout, text)
	if !ok {
		t.log.Info().Str("value", text).Msg("repairing profile table")
		if err := t.store.PutString(t.layout.Key, Format(segs)); err != nil {
			t.log.Error().Err(err).Msg("failed to write repaired profile table")
		}
	}
	return segs
}

// View returns the buckets like Get, but never writes a repaired table back to
// the store.
func (t *Table) View() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	segs, _ := Parse(t.layout, t.store.String(t.layout.Key, ""))
	return segs
}

// ProfileFor returns the profile of the first bucket containing pkg, or
// Default.
func (t *Table) ProfileFor(pkg string) Profile {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, seg := range t.get() {
		if seg.Contains(pkg) {
			return Profile(i + 1)
		}
	}
	return Default
}

// Packages returns the packages assigned to p, or nil for Default.
func (t *Table) Packages(p Profile) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p <= Default || int(p) > t.layout.Len() {
		return nil
	}
	return t.get()[p-1].Packages
}

// Assign removes pkg from every bucket, then adds it to the bucket for p
// unless p is Default. The whole table is written at once.
func (t *Table) Assign(pkg string, p Profile) error {
	if p < Default || int(p) > t.layout.Len() {
		return fmt.Errorf("%w %d (table %s has %d)", ErrUnknownProfile, p, t.layout.Key, t.layout.Len())
	}
	if pkg == "" || strings.ContainsAny(pkg, ",:") {
		return fmt.Errorf("invalid package name %q", pkg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	segs := t.get()
	for i := range segs {
		segs[i].Packages = slices.DeleteFunc(segs[i].Packages, func(x string) bool {
			return x == pkg
		})
	}
	if p != Default {
		segs[p-1].Packages = append(segs[p-1].Packages, pkg)
	}
	if err := t.store.PutString(t.layout.Key, Format(segs)); err != nil {
		return fmt.Errorf("assign %s to profile %d: %w", pkg, p, err)
	}
	return nil
}
