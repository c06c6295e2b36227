package thermal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/partstest"
	"github.com/pgaskin/partsd/prefs"
	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNode creates a fake sconfig node. The node is reset to "x" after each
// read so missing writes can be detected.
type testNode struct {
	t    *testing.T
	path string
}

func newTestNode(t *testing.T) testNode {
	n := testNode{t, filepath.Join(t.TempDir(), "sconfig")}
	n.Reset()
	return n
}

func (n testNode) Node() sysfs.Node {
	return sysfs.Node(n.path)
}

func (n testNode) Reset() {
	require.NoError(n.t, os.WriteFile(n.path, []byte("x"), 0644))
}

func (n testNode) Take() string {
	b, err := os.ReadFile(n.path)
	require.NoError(n.t, err)
	n.Reset()
	return string(b)
}

func newTable(t *testing.T, assign map[string]profile.Profile) *profile.Table {
	tbl := profile.New(prefs.NewMemory(nil), Layout, zerolog.Nop())
	for pkg, p := range assign {
		require.NoError(t, tbl.Assign(pkg, p))
	}
	return tbl
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, Layout.Len()+1, len(profiles))
	for p, code := range map[profile.Profile]int{
		Default:    0,
		Benchmark:  10,
		Browser:    11,
		Camera:     12,
		Dialer:     8,
		Gaming:     9,
		Navigation: 19,
		Streaming:  14,
		Video:      21,
	} {
		assert.Equal(t, code, Code(p), Name(p))
		v, err := Parse(Name(p))
		require.NoError(t, err)
		assert.Equal(t, p, v)
	}
	assert.Equal(t, 0, Code(42))
	_, err := Parse("turbo")
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)
}

func TestController(t *testing.T) {
	node := newTestNode(t)
	c := NewController(newTable(t, map[string]profile.Profile{
		"com.game":    Gaming,
		"com.browser": Browser,
	}), node.Node(), zerolog.Nop())

	c.ForegroundChanged("com.game")
	assert.Equal(t, "9", node.Take())

	c.ForegroundChanged("com.game")
	assert.Equal(t, "x", node.Take(), "same app is not re-applied")

	c.ForegroundChanged("com.browser")
	assert.Equal(t, "11", node.Take())

	c.ForegroundChanged("com.other")
	assert.Equal(t, "0", node.Take())
}

func TestControllerScreen(t *testing.T) {
	node := newTestNode(t)
	c := NewController(newTable(t, map[string]profile.Profile{
		"com.game": Gaming,
		"com.nav":  Navigation,
	}), node.Node(), zerolog.Nop())

	c.ForegroundChanged("com.game")
	assert.Equal(t, "9", node.Take())

	c.ScreenChanged(false)
	assert.Equal(t, "0", node.Take(), "screen off always writes the default")

	c.ScreenChanged(true)
	assert.Equal(t, "9", node.Take(), "screen on re-applies the current app")

	c.ScreenChanged(false)
	node.Take()
	c.ForegroundChanged("com.nav")
	assert.Equal(t, "x", node.Take(), "not applied while the screen is off")
	c.ScreenChanged(true)
	assert.Equal(t, "19", node.Take())

	st := c.State()
	assert.Equal(t, State{Package: "com.nav", Profile: Navigation, ScreenOn: true}, st)
}

func TestControllerWriteError(t *testing.T) {
	node := sysfs.Node(filepath.Join(t.TempDir(), "missing"))
	c := NewController(newTable(t, nil), node, zerolog.Nop())
	c.ForegroundChanged("com.game")
	c.ScreenChanged(false)
	assert.False(t, sysfs.Exists(string(node)))
}

func TestService(t *testing.T) {
	node := newTestNode(t)
	tbl := newTable(t, map[string]profile.Profile{"com.cam": Camera})

	i := partstest.NewInstance(16)
	i.Send(
		partsproto.Event{Type: partsproto.Boot},
		partsproto.Event{Type: partsproto.Foreground, Package: "com.cam"},
		partsproto.Event{Type: partsproto.Orientation, Rotation: 1},
		partsproto.Event{Type: partsproto.Screen, On: false},
	)
	i.Close()

	require.NoError(t, Service{Table: tbl, Node: node.Node()}.Run(i))
	assert.Equal(t, "0", node.Take())
}

func TestTile(t *testing.T) {
	node := newTestNode(t)
	require.NoError(t, os.WriteFile(node.path, []byte("10\n"), 0644))

	tile := NewTile(node.Node(), zerolog.Nop())
	assert.Equal(t, ModePerformance, tile.Sync())

	for _, want := range []struct {
		mode Mode
		code string
	}{
		{ModeBatterySaver, "3"},
		{ModeGaming, "9"},
		{ModeDefault, "20"},
		{ModePerformance, "10"},
	} {
		m, err := tile.Toggle()
		require.NoError(t, err)
		assert.Equal(t, want.mode, m)
		assert.Equal(t, want.code, node.Take())
		require.NoError(t, os.WriteFile(node.path, []byte(want.code), 0644))
		assert.Equal(t, want.mode, tile.Sync(), "synced from the node")
	}
}

func TestTileSyncUnknown(t *testing.T) {
	node := newTestNode(t)
	require.NoError(t, os.WriteFile(node.path, []byte("42"), 0644))

	tile := NewTile(node.Node(), zerolog.Nop())
	assert.Equal(t, ModeDefault, tile.Sync())
	assert.Equal(t, "42", node.Take(), "unknown codes are not overwritten")
}

func TestTileSyncUnreadable(t *testing.T) {
	node := newTestNode(t)

	tile := NewTile(node.Node(), zerolog.Nop())
	tile.mode = ModeGaming
	assert.Equal(t, ModeDefault, tile.Sync())
	assert.Equal(t, "20", node.Take(), "default is written")

	missing := NewTile(sysfs.Node(filepath.Join(t.TempDir(), "missing")), zerolog.Nop())
	assert.Equal(t, ModeDefault, missing.Sync())
	_, err := missing.Toggle()
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	for m := range numModes {
		v, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, v)
	}
	_, err := ParseMode("turbo")
	assert.Error(t, err)
	assert.Equal(t, "mode(9)", Mode(9).String())
}
