package doze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/partstest"
	"github.com/pgaskin/partsd/prefs"
	"github.com/pgaskin/partsd/settings"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t        *testing.T
	node     string
	settings *settings.Memory
	prefs    *prefs.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	e := &testEnv{
		t:        t,
		node:     filepath.Join(t.TempDir(), "doze_mode"),
		settings: settings.NewMemory(),
		prefs:    prefs.NewMemory(nil),
	}
	e.reset()
	return e
}

func (e *testEnv) config() Config {
	return Config{
		Settings: e.settings,
		Prefs:    e.prefs,
		Node:     sysfs.Node(e.node),
	}
}

func (e *testEnv) reset() {
	require.NoError(e.t, os.WriteFile(e.node, []byte("x"), 0644))
}

func (e *testEnv) take() string {
	b, err := os.ReadFile(e.node)
	require.NoError(e.t, err)
	e.reset()
	return string(b)
}

func TestParseBrightness(t *testing.T) {
	for s, b := range map[string]Brightness{
		"low":  BrightnessLow,
		"0":    BrightnessLow,
		"HIGH": BrightnessHigh,
		"1":    BrightnessHigh,
		"auto": BrightnessAuto,
		"2":    BrightnessAuto,
	} {
		v, err := ParseBrightness(s)
		require.NoError(t, err, s)
		assert.Equal(t, b, v, s)
	}
	_, err := ParseBrightness("3")
	assert.Error(t, err)
	assert.Equal(t, "auto", BrightnessAuto.String())
}

func TestDefaults(t *testing.T) {
	e := newTestEnv(t)
	c := New(e.config(), zerolog.Nop())

	assert.True(t, c.Enabled(), "doze is enabled by default")
	assert.False(t, c.AlwaysOn())
	assert.Equal(t, BrightnessLow, c.Brightness())
	assert.False(t, c.Active())

	cfg := e.config()
	cfg.AlwaysOnDefault = true
	c = New(cfg, zerolog.Nop())
	assert.True(t, c.AlwaysOn())
	assert.True(t, c.Active())

	require.NoError(t, e.prefs.PutString(KeyBrightness, "garbage"))
	assert.Equal(t, BrightnessLow, c.Brightness())
}

func TestBoot(t *testing.T) {
	e := newTestEnv(t)
	c := New(e.config(), zerolog.Nop())

	c.Boot()
	assert.Equal(t, "x", e.take(), "nothing restored without always-on")

	require.NoError(t, settings.PutBool(e.settings, settings.Secure, KeyAlwaysOn, true))
	require.NoError(t, e.prefs.PutString(KeyBrightness, string(BrightnessHigh)))
	c.Boot()
	assert.Equal(t, ModeHigh, e.take(), "stored brightness restored")

	require.NoError(t, e.prefs.PutString(KeyBrightness, string(BrightnessAuto)))
	c.Boot()
	assert.Equal(t, "x", e.take(), "auto brightness is not restored")
}

func TestAutoBrightness(t *testing.T) {
	e := newTestEnv(t)
	c := New(e.config(), zerolog.Nop())
	require.NoError(t, c.SetBrightness(BrightnessAuto))
	assert.Equal(t, "x", e.take(), "auto is not written")
	assert.True(t, c.Active(), "auto brightness activates doze without always-on")

	c.SensorChanged(4)
	assert.Equal(t, "x", e.take(), "sensor disabled while the screen is on")

	c.ScreenChanged(false)
	assert.True(t, c.SensorEnabled())

	c.SensorChanged(4)
	assert.Equal(t, ModeHigh, e.take())
	c.SensorChanged(3)
	assert.Equal(t, ModeLow, e.take())
	c.SensorChanged(5)
	assert.Equal(t, ModeLow, e.take())
	c.SensorChanged(1)
	assert.Equal(t, "x", e.take(), "other values are ignored")

	c.ScreenChanged(true)
	assert.False(t, c.SensorEnabled())
	c.SensorChanged(4)
	assert.Equal(t, "x", e.take())
}

func TestManualBrightness(t *testing.T) {
	e := newTestEnv(t)
	c := New(e.config(), zerolog.Nop())
	require.NoError(t, c.SetAlwaysOn(true))
	e.take()

	require.NoError(t, c.SetBrightness(BrightnessHigh))
	assert.Equal(t, ModeHigh, e.take())
	assert.Equal(t, "1", e.prefs.String(KeyBrightness, ""))

	c.ScreenChanged(false)
	assert.False(t, c.SensorEnabled(), "sensor only used in auto mode")

	assert.Error(t, c.SetBrightness("7"))
}

func TestDisable(t *testing.T) {
	e := newTestEnv(t)
	c := New(e.config(), zerolog.Nop())
	require.NoError(t, c.SetAlwaysOn(true))
	require.NoError(t, c.SetBrightness(BrightnessAuto))
	c.ScreenChanged(false)
	require.True(t, c.SensorEnabled())
	e.take()

	require.NoError(t, c.SetAlwaysOn(false))
	assert.Equal(t, ModeLow, e.take(), "disabling always-on resets the mode")
	assert.Equal(t, BrightnessLow, c.Brightness())
	assert.False(t, c.Active())
	assert.False(t, c.SensorEnabled())

	require.NoError(t, c.SetAlwaysOn(true))
	require.NoError(t, c.SetEnabled(false))
	assert.False(t, c.Enabled())
	assert.False(t, c.AlwaysOn(), "disabling doze disables always-on")
	assert.False(t, c.Active())

	v, err := e.settings.Get(settings.Secure, KeyDozeEnabled)
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}

func TestService(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, settings.PutBool(e.settings, settings.Secure, KeyAlwaysOn, true))
	require.NoError(t, e.prefs.PutString(KeyBrightness, string(BrightnessAuto)))

	i := partstest.NewInstance(16)
	i.Send(
		partsproto.Event{Type: partsproto.Boot},
		partsproto.Event{Type: partsproto.Screen, On: false},
		partsproto.Event{Type: partsproto.Sensor, Sensor: "other", Value: 3},
		partsproto.Event{Type: partsproto.Sensor, Sensor: SensorAOD, Value: 4},
	)
	i.Close()

	require.NoError(t, Service{e.config()}.Run(i))
	assert.Equal(t, ModeHigh, e.take())
}
