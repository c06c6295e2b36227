package android

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/saturation"
	"github.com/pgaskin/partsd/settings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRunner struct {
	mu    sync.Mutex
	out   map[string]string
	err   map[string]error
	calls []string
}

func newTestRunner() *testRunner {
	return &testRunner{
		out: map[string]string{},
		err: map[string]error{},
	}
}

func (r *testRunner) Set(cmd, out string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out[cmd] = out
}

func (r *testRunner) Run(ctx context.Context, cmd string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmd)
	return r.out[cmd], r.err[cmd]
}

func (r *testRunner) Command(ctx context.Context, cmd string) *exec.Cmd {
	return Shell{}.Command(ctx, cmd)
}

func (r *testRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.calls
	r.calls = nil
	return c
}

func TestParseForeground(t *testing.T) {
	for _, c := range []struct {
		out string
		pkg string
	}{
		{"  mResumedActivity: ActivityRecord{2d3b0c6 u0 com.android.chrome/org.chromium.chrome.browser.ChromeTabbedActivity t1234}", "com.android.chrome"},
		{"    topResumedActivity=ActivityRecord{f00 u0 com.miHoYo.GenshinImpact/com.miHoYo.GetMobileInfo.MainActivity t88}\n    ResumedActivity: ActivityRecord{f00 u0 com.miHoYo.GenshinImpact/com.miHoYo.GetMobileInfo.MainActivity t88}", "com.miHoYo.GenshinImpact"},
		{"  mResumedActivity: ActivityRecord{abc u10 org.example.work/.Main t5}", "org.example.work"},
		{"  mLastPausedActivity: ActivityRecord{abc u0 com.android.chrome/.Main t5}", ""},
		{"", ""},
	} {
		pkg, ok := ParseForeground(c.out)
		assert.Equal(t, c.pkg != "", ok, c.out)
		assert.Equal(t, c.pkg, pkg, c.out)
	}
}

func TestParseOrientation(t *testing.T) {
	r, ok := ParseOrientation("      SurfaceOrientation: 1\n    mCurrentOrientation=0")
	assert.True(t, ok)
	assert.Equal(t, 1, r, "input takes priority")

	r, ok = ParseOrientation("    mCurrentOrientation=3")
	assert.True(t, ok)
	assert.Equal(t, 3, r)

	_, ok = ParseOrientation("nothing")
	assert.False(t, ok)
}

func TestParseScreen(t *testing.T) {
	for _, c := range []struct {
		out    string
		on, ok bool
	}{
		{"  mWakefulness=Awake\n  Display Power: state=OFF", true, true},
		{"  mWakefulness=Asleep", false, true},
		{"  mWakefulness=Dozing", false, true},
		{"Display Power: state=ON", true, true},
		{"mScreenOn=false", false, true},
		{"", false, false},
	} {
		on, ok := ParseScreen(c.out)
		assert.Equal(t, c.ok, ok, c.out)
		assert.Equal(t, c.on, on, c.out)
	}
}

func TestParseServices(t *testing.T) {
	services := ParseServices("Found 3 services:\n0\tsensorservice: [android.gui.SensorServer]\n24\tSurfaceFlinger: [android.ui.ISurfaceComposer]\n25\tmedia.audio_flinger: [android.media.IAudioFlingerService]\n")
	assert.Equal(t, map[string]string{
		"sensorservice":       "android.gui.SensorServer",
		"SurfaceFlinger":      "android.ui.ISurfaceComposer",
		"media.audio_flinger": "android.media.IAudioFlingerService",
	}, services)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "status_earpiece_clean=on", quote("status_earpiece_clean=on"))
	assert.Equal(t, "/sdcard/clean.wav", quote("/sdcard/clean.wav"))
	assert.Equal(t, "''", quote(""))
	assert.Equal(t, `'it'\''s here'`, quote("it's here"))
}

func TestShell(t *testing.T) {
	out, err := Shell{}.Run(context.Background(), "echo ' hello '")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = Shell{}.Run(context.Background(), "echo oops >&2; exit 3")
	assert.ErrorContains(t, err, "oops")

	out, err = Shell{Prefix: []string{"sh", "-c"}}.Run(context.Background(), "echo prefixed")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", out)

	_, err = Shell{Timeout: time.Millisecond * 50}.Run(context.Background(), "sleep 5")
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	r := newTestRunner()
	s := Settings{Runner: r}

	r.Set("settings get system min_refresh_rate", "null")
	_, err := s.Get(settings.System, "min_refresh_rate")
	assert.ErrorIs(t, err, settings.ErrNotFound)

	r.Set("settings get system min_refresh_rate", "60.0")
	assert.Equal(t, 60.0, settings.Float(s, settings.System, "min_refresh_rate", 120))

	require.NoError(t, settings.PutFloat(s, settings.System, "peak_refresh_rate", 90))
	assert.Equal(t, []string{
		"settings get system min_refresh_rate",
		"settings get system min_refresh_rate",
		"settings put system peak_refresh_rate 90.0",
	}, r.Calls())
}

func TestSurfaceFlinger(t *testing.T) {
	r := newTestRunner()
	sf := SurfaceFlinger{Runner: r}

	assert.ErrorIs(t, sf.SetSaturation(context.Background(), 1.001), saturation.ErrNoCompositor)

	r.Set("service list", "24\tSurfaceFlinger: [android.ui.ISurfaceComposer]")
	r.Set("service call SurfaceFlinger 1022 f 1.5", "Result: Parcel(NULL)")
	require.NoError(t, sf.SetSaturation(context.Background(), 1.5))

	r.Set("service call SurfaceFlinger 1022 f 0", "Result: Parcel(NULL)")
	require.NoError(t, sf.SetSaturation(context.Background(), 0))

	assert.Error(t, sf.SetSaturation(context.Background(), 0.5), "no result")
}

func TestAudio(t *testing.T) {
	r := newTestRunner()
	a := Audio{
		Runner: r,
		Player: "sleep 10 #",
		Log:    zerolog.Nop(),
	}

	require.NoError(t, a.SetParameters(context.Background(), "status_earpiece_clean=on"))
	assert.Equal(t, []string{"service call media.audio_flinger 20 i32 0 s16 status_earpiece_clean=on"}, r.Calls())

	stop, err := a.Play(context.Background(), "sound.wav")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- stop()
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second * 5):
		t.Fatal("player not stopped")
	}
}

func TestSource(t *testing.T) {
	r := newTestRunner()
	r.Set(cmdScreen, "mWakefulness=Awake")
	r.Set(cmdOrientation, "SurfaceOrientation: 0")
	r.Set(cmdForeground, "mResumedActivity: ActivityRecord{1 u0 com.android.chrome/.Main t1}")

	clock := clockwork.NewFakeClock()
	events := make(chan partsproto.Event, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Source{
			Runner:    r,
			Backlight: "-",
			Clock:     clock,
			Log:       zerolog.Nop(),
		}.Run(ctx, func(event partsproto.Event) {
			events <- event
		})
	}()

	next := func() partsproto.Event {
		t.Helper()
		select {
		case event := <-events:
			return event
		case <-time.After(time.Second):
			t.Fatal("no event")
			return partsproto.Event{}
		}
	}

	assert.Equal(t, partsproto.Event{Type: partsproto.Orientation, Rotation: 0}, next())
	assert.Equal(t, partsproto.Event{Type: partsproto.Foreground, Package: "com.android.chrome"}, next())

	r.Set(cmdOrientation, "SurfaceOrientation: 1")
	clock.Advance(DefaultInterval)
	assert.Equal(t, partsproto.Event{Type: partsproto.Orientation, Rotation: 1}, next())

	r.Set(cmdScreen, "mWakefulness=Asleep")
	r.Set(cmdForeground, "mResumedActivity: ActivityRecord{1 u0 com.android.launcher3/.Main t1}")
	clock.Advance(DefaultInterval)
	assert.Equal(t, partsproto.Event{Type: partsproto.Screen, On: false}, next())

	r.Set(cmdScreen, "mWakefulness=Awake")
	clock.Advance(DefaultInterval)
	assert.Equal(t, partsproto.Event{Type: partsproto.Screen, On: true}, next())
	assert.Equal(t, partsproto.Event{Type: partsproto.Foreground, Package: "com.android.launcher3"}, next())

	r.Set(cmdScreen, "mWakefulness=Asleep")
	clock.Advance(DefaultInterval)
	assert.Equal(t, partsproto.Event{Type: partsproto.Screen, On: false}, next())

	r.Set(cmdScreen, "mWakefulness=Awake")
	clock.Advance(DefaultInterval)
	assert.Equal(t, partsproto.Event{Type: partsproto.Screen, On: true}, next())
	assert.Equal(t, partsproto.Event{Type: partsproto.Foreground, Package: "com.android.launcher3"}, next(), "same app is sent again after the screen turns on")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("source didn't stop")
	}
	assert.Empty(t, events)
}

func TestSourcePollError(t *testing.T) {
	r := newTestRunner()
	r.err[cmdScreen] = errors.New("device offline")

	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Source{
			Runner:    r,
			Backlight: "-",
			Clock:     clock,
			Log:       zerolog.Nop(),
		}.Run(ctx, func(partsproto.Event) {
			t.Error("unexpected event")
		})
	}()

	require.Eventually(t, func() bool {
		return len(r.Calls()) != 0
	}, time.Second, time.Millisecond*10)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled, "poll errors don't stop the source")
	case <-time.After(time.Second):
		t.Fatal("source didn't stop")
	}
}

func TestSourceBacklight(t *testing.T) {
	node := filepath.Join(t.TempDir(), "brightness")
	require.NoError(t, os.WriteFile(node, []byte("512\n"), 0644))

	r := newTestRunner()
	events := make(chan partsproto.Event, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = Source{
			Runner:    r,
			Backlight: node,
			Interval:  time.Hour,
			Log:       zerolog.Nop(),
		}.Run(ctx, func(event partsproto.Event) {
			events <- event
		})
	}()

	require.Eventually(t, func() bool {
		return len(r.Calls()) != 0
	}, time.Second, time.Millisecond*10, "initial poll")

	require.NoError(t, os.WriteFile(node, []byte("0\n"), 0644))
	select {
	case event := <-events:
		assert.Equal(t, partsproto.Event{Type: partsproto.Screen, On: false}, event)
	case <-time.After(time.Second * 2):
		t.Fatal("no screen event")
	}

	r.mu.Lock()
	for _, cmd := range r.calls {
		assert.NotEqual(t, cmdScreen, cmd, "screen state isn't polled with a backlight")
	}
	r.mu.Unlock()
}
