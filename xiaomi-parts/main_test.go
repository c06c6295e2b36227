package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pgaskin/partsd/android"
	"github.com/pgaskin/partsd/saturation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	thermal := filepath.Join(dir, "sconfig")
	require.NoError(t, os.WriteFile(thermal, []byte("0\n"), 0644))
	config := filepath.Join(dir, "partsd.toml")
	require.NoError(t, os.WriteFile(config, []byte(`
[log]
level = "error"

[prefs]
path = "`+filepath.Join(dir, "prefs.json")+`"

[host]
backend = "logind"

[thermal]
node = "`+thermal+`"

[doze]
node = "`+filepath.Join(dir, "doze_mode")+`"
`+extra), 0644))
	return config, dir
}

func execute(t *testing.T, config string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetArgs(append([]string{"--config", config}, args...))
	root.SetOut(&out)
	root.SetErr(&out)
	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return strings.TrimSpace(out.String())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), true)
	require.NoError(t, err)
	def := defaultConfig()
	assert.Equal(t, def.Prefs, cfg.Prefs)
	assert.Equal(t, def.Thermal, cfg.Thermal)
	assert.Equal(t, def.Speaker, cfg.Speaker)
	assert.Equal(t, android.DefaultBacklight, cfg.Host.Backlight)
	assert.Equal(t, saturation.DefaultDelay, cfg.Saturation.Delay)
	assert.True(t, cfg.Android())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), false)
	assert.Error(t, err, "explicit config must exist")

	config, dir := writeConfig(t, `
[saturation]
delay = "2s"

[speaker]
duration = "10s"
`)
	cfg, err = LoadConfig(config, false)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "prefs.json"), cfg.Prefs.Path)
	assert.Equal(t, "file", cfg.Prefs.Backend, "defaults are kept")
	assert.Equal(t, []string{"logind"}, cfg.Backends())
	assert.False(t, cfg.Android())
	assert.Equal(t, time.Second*2, cfg.Saturation.Delay)
	assert.Equal(t, time.Second*10, cfg.Speaker.Duration)
	assert.Equal(t, time.Second, cfg.Host.PollInterval)
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, extra := range []string{
		"[prefs]\nbackend = \"redis\"\n",
		"[host]\nbackend = \"android,bogus\"\n",
		"[host]\nbackend = \" , \"\n",
		"[host]\npoll_interval = \"-1s\"\n",
	} {
		path := filepath.Join(t.TempDir(), "partsd.toml")
		require.NoError(t, os.WriteFile(path, []byte(extra), 0644))
		_, err := LoadConfig(path, false)
		assert.Error(t, err, extra)
	}
}

func TestBackends(t *testing.T) {
	cfg := defaultConfig()
	cfg.Host.Backend = "android, stdin,android,"
	assert.Equal(t, []string{"android", "stdin"}, cfg.Backends())
	assert.True(t, cfg.Android())

	cfg.Host.Backend = "logind,stdin"
	assert.True(t, cfg.Android(), "stdin events come from a companion app on the device")
}

func TestProfileCommands(t *testing.T) {
	config, _ := writeConfig(t, "")

	execute(t, config, "refresh", "assign", "com.android.chrome", "90")
	execute(t, config, "refresh", "assign", "com.miHoYo.GenshinImpact", "120land")
	assert.Equal(t, "90", execute(t, config, "refresh", "get", "com.android.chrome"))
	assert.Equal(t, "default", execute(t, config, "refresh", "get", "org.example"))
	assert.Equal(t, "60:\n90: com.android.chrome\n120:\n60land:\n90land:\n120land: com.miHoYo.GenshinImpact", execute(t, config, "refresh", "list"))

	execute(t, config, "thermal", "assign", "com.android.chrome", "browser")
	assert.Equal(t, "browser", execute(t, config, "thermal", "get", "com.android.chrome"))
	assert.Equal(t, "90", execute(t, config, "refresh", "get", "com.android.chrome"), "tables are separate")

	root := rootCmd()
	root.SetArgs([]string{"--config", config, "refresh", "assign", "com.android.chrome", "75"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	assert.Error(t, root.Execute())
}

func TestThermalTile(t *testing.T) {
	config, dir := writeConfig(t, "")

	assert.Equal(t, "default", execute(t, config, "thermal", "tile"), "unknown scenario")
	assert.Equal(t, "performance", execute(t, config, "thermal", "tile", "toggle"))

	buf, err := os.ReadFile(filepath.Join(dir, "sconfig"))
	require.NoError(t, err)
	assert.Equal(t, "10", strings.TrimSpace(string(buf)))

	execute(t, config, "thermal", "tile", "set", "gaming")
	assert.Equal(t, "gaming", execute(t, config, "thermal", "tile"))
}

func TestSaturationCommands(t *testing.T) {
	config, _ := writeConfig(t, "")

	assert.Equal(t, "Value: 100 (default)", execute(t, config, "saturation", "get"))
	assert.Equal(t, "Value: 150", execute(t, config, "saturation", "set", "150"), "saved without a compositor")
	assert.Equal(t, "Value: 151", execute(t, config, "saturation", "inc"))
	assert.Equal(t, "Value: 200", execute(t, config, "saturation", "set", "999"))
	assert.Equal(t, "Value: 200", execute(t, config, "saturation", "get"))
	assert.Equal(t, "Value: 100 (default)", execute(t, config, "saturation", "reset"))
}

func TestDozeCommands(t *testing.T) {
	config, _ := writeConfig(t, "")

	assert.Equal(t, "doze:       enabled, always-on off, brightness low (node unavailable)", execute(t, config, "doze", "status"))
	execute(t, config, "doze", "brightness", "auto")
	execute(t, config, "doze", "aod", "on")
	assert.Equal(t, "doze:       enabled, always-on on, brightness auto (node unavailable)", execute(t, config, "doze", "status"))
	execute(t, config, "doze", "disable")
	assert.Equal(t, "doze:       disabled, always-on off, brightness low (node unavailable)", execute(t, config, "doze", "status"))
}

func TestStatus(t *testing.T) {
	config, _ := writeConfig(t, "")
	execute(t, config, "refresh", "assign", "com.android.chrome", "60")

	out := execute(t, config, "status")
	assert.Contains(t, out, "host:       logind")
	assert.Contains(t, out, "refresh:    min 120 Hz, peak 120 Hz, 1 app assigned")
	assert.Contains(t, out, "thermal:    scenario 0, 0 apps assigned")
	assert.Contains(t, out, "saturation: Value: 100 (default)")
}

func TestStatusReadOnly(t *testing.T) {
	config, dir := writeConfig(t, "")
	prefsPath := filepath.Join(dir, "prefs.json")
	orig := []byte(`{"refresh_control":"refresh.60=com.a,"}` + "\n")
	require.NoError(t, os.WriteFile(prefsPath, orig, 0644))

	assert.Contains(t, execute(t, config, "status"), "1 app assigned")

	buf, err := os.ReadFile(prefsPath)
	require.NoError(t, err)
	assert.Equal(t, string(orig), string(buf), "malformed table is not repaired")
}

func TestSpeakerRequiresAndroid(t *testing.T) {
	config, _ := writeConfig(t, "")
	root := rootCmd()
	root.SetArgs([]string{"--config", config, "speaker", "clean"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	assert.ErrorContains(t, root.Execute(), "android")
}
