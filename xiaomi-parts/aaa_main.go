// Command xiaomi-parts is the device parts daemon and control tool for Xiaomi
// SM8450 (sm8450-common) devices.
//
// The daemon (xiaomi-parts run) applies per-app refresh rate and thermal
// profiles as the foreground app changes, restores the doze brightness and
// display saturation at boot, and drives the always-on display brightness
// from the ambient light sensor. The other commands edit the same preferences
// the daemon reads, and changes take effect immediately.
//
// Host events come from one or more backends:
//
//   - android polls dumpsys and watches the backlight (on-device, or over adb
//     with host.shell set)
//   - stdin reads JSON lines forwarded by a companion app
//   - logind follows the session lock and suspend state on mainline Linux
//
// The config file is TOML, for example:
//
//	[log]
//	level = "debug"
//
//	[host]
//	backend = "android,stdin"
//	poll_interval = "500ms"
//
//	[metrics]
//	listen = "127.0.0.1:9360"
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/android"
	"github.com/pgaskin/partsd/prefs"
	"github.com/pgaskin/partsd/saturation"
	"github.com/pgaskin/partsd/settings"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by all commands.
type app struct {
	cfg Config
	log zerolog.Logger
}

func rootCmd() *cobra.Command {
	var (
		a          app
		configPath string
		logLevel   string
	)
	root := &cobra.Command{
		Use:          "xiaomi-parts",
		Short:        "Device parts daemon and control tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			log, err := partsd.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Console)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", DefaultConfig, "config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level")

	root.AddCommand(
		runCmd(&a),
		statusCmd(&a),
		refreshCmd(&a),
		thermalCmd(&a),
		saturationCmd(&a),
		dozeCmd(&a),
		speakerCmd(&a),
	)
	return root
}

// openPrefs opens the preference store. The returned function closes it.
func (a *app) openPrefs(watch bool) (prefs.Store, func(), error) {
	log := a.log.With().Str("prefs", a.cfg.Prefs.Backend).Logger()
	switch a.cfg.Prefs.Backend {
	case "sqlite":
		s, err := prefs.OpenSQLite(a.cfg.Prefs.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close preferences")
			}
		}, nil
	default:
		f, err := prefs.OpenFile(a.cfg.Prefs.Path, log)
		if err != nil {
			return nil, nil, err
		}
		if watch {
			if err := f.Watch(); err != nil {
				log.Warn().Err(err).Msg("failed to watch preferences, external changes will be ignored")
			}
		}
		return f, func() {
			if err := f.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close preferences")
			}
		}, nil
	}
}

func (a *app) runner() android.Runner {
	return android.Shell{Prefix: a.cfg.Host.Shell}
}

// settings returns the framework settings provider, or one backed by store if
// there isn't a framework.
func (a *app) settings(store prefs.Store) settings.Provider {
	if a.cfg.Android() {
		return android.Settings{Runner: a.runner()}
	}
	return settings.Store{Prefs: store}
}

func (a *app) compositor() saturation.Compositor {
	if a.cfg.Android() {
		return android.SurfaceFlinger{Runner: a.runner()}
	}
	return noCompositor{}
}

type noCompositor struct{}

func (noCompositor) SetSaturation(context.Context, float32) error {
	return saturation.ErrNoCompositor
}

func (a *app) audio() (android.Audio, error) {
	if !a.cfg.Android() {
		return android.Audio{}, fmt.Errorf("audio control requires the android host backend")
	}
	return android.Audio{
		Runner:     a.runner(),
		Parameters: a.cfg.Speaker.Parameters,
		Player:     a.cfg.Speaker.Player,
		Log:        a.log.With().Str("component", "audio").Logger(),
	}, nil
}
