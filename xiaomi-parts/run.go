package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/android"
	"github.com/pgaskin/partsd/doze"
	"github.com/pgaskin/partsd/logind"
	"github.com/pgaskin/partsd/metrics"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/pgaskin/partsd/prefs"
	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/refreshrate"
	"github.com/pgaskin/partsd/saturation"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/pgaskin/partsd/thermal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context())
		},
	}
}

func (a *app) run(ctx context.Context) error {
	store, closePrefs, err := a.openPrefs(true)
	if err != nil {
		return err
	}
	defer closePrefs()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Metrics.Listen; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.log.Info().Str("addr", addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	if a.cfg.RestartOnUpdate {
		g.Go(func() error {
			partsd.WatchExecutable(ctx, a.log)
			return nil
		})
	}

	services := a.services(store)
	src := a.source()
	g.Go(func() error {
		defer cancel()
		a.log.Info().Strs("backends", a.cfg.Backends()).Int("services", len(services)).Msg("starting")
		return partsd.Run(ctx, a.log, src, services...)
	})

	err = g.Wait()
	a.log.Info().Err(err).Msg("stopped")
	return err
}

func (a *app) services(store prefs.Store) []partsd.Service {
	sp := a.settings(store)
	return []partsd.Service{
		refreshrate.Service{
			Table:    a.table(store, refreshrate.Layout),
			Settings: sp,
		},
		thermal.Service{
			Table: a.table(store, thermal.Layout),
			Node:  sysfs.Node(a.cfg.Thermal.Node),
		},
		doze.Service{
			Config: doze.Config{
				Settings:        sp,
				Prefs:           store,
				Node:            sysfs.Node(a.cfg.Doze.Node),
				AlwaysOnDefault: a.cfg.Doze.AlwaysOnDefault,
			},
		},
		saturation.Service{
			Prefs:      store,
			Compositor: a.compositor(),
			Delay:      a.cfg.Saturation.Delay,
		},
	}
}

func (a *app) table(store prefs.Store, layout profile.Layout) *profile.Table {
	return profile.New(store, layout, a.log)
}

func (a *app) source() partsd.Source {
	var srcs partsd.MultiSource
	for _, backend := range a.cfg.Backends() {
		log := a.log.With().Str("host", backend).Logger()
		switch backend {
		case "android":
			srcs = append(srcs, android.Source{
				Runner:    a.runner(),
				Interval:  a.cfg.Host.PollInterval,
				Backlight: a.cfg.Host.Backlight,
				Log:       log,
			})
		case "stdin":
			srcs = append(srcs, partsproto.Reader{
				Log: log,
			})
		case "logind":
			srcs = append(srcs, logind.Source{
				Log: log,
			})
		}
	}
	if len(srcs) == 1 {
		return srcs[0]
	}
	return srcs
}
