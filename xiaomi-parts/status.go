package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/pgaskin/partsd/doze"
	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/refreshrate"
	"github.com/pgaskin/partsd/saturation"
	"github.com/pgaskin/partsd/settings"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/pgaskin/partsd/thermal"
	"github.com/spf13/cobra"
)

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current settings and preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closePrefs, err := a.openPrefs(false)
			if err != nil {
				return err
			}
			defer closePrefs()

			out := cmd.OutOrStdout()
			sp := a.settings(store)

			fmt.Fprintf(out, "host:       %s\n", strings.Join(a.cfg.Backends(), ", "))

			fmt.Fprintf(out, "prefs:      %s %s", a.cfg.Prefs.Backend, a.cfg.Prefs.Path)
			if fi, err := os.Stat(a.cfg.Prefs.Path); err == nil {
				fmt.Fprintf(out, " (%s, updated %s)", humanize.Bytes(uint64(fi.Size())), humanize.Time(fi.ModTime()))
			} else {
				fmt.Fprint(out, " (not created yet)")
			}
			fmt.Fprintln(out)

			fmt.Fprintf(out, "refresh:    min %s Hz, peak %s Hz, %s\n",
				humanize.Ftoa(settings.Float(sp, settings.System, refreshrate.KeyMinRefreshRate, refreshrate.DefaultRate)),
				humanize.Ftoa(settings.Float(sp, settings.System, refreshrate.KeyPeakRefreshRate, refreshrate.DefaultRate)),
				assigned(a.table(store, refreshrate.Layout)))

			node := sysfs.Node(a.cfg.Thermal.Node)
			fmt.Fprint(out, "thermal:    ")
			if v, err := node.Int(); err == nil {
				tile := thermal.NewTile(node, a.log)
				fmt.Fprintf(out, "scenario %d", v)
				if m := tile.Sync(); m.Code() == v {
					fmt.Fprintf(out, " (%s mode)", m)
				}
			} else {
				fmt.Fprint(out, "node unavailable")
			}
			fmt.Fprintf(out, ", %s\n", assigned(a.table(store, thermal.Layout)))

			printDoze(cmd, doze.New(doze.Config{
				Settings:        sp,
				Prefs:           store,
				Node:            sysfs.Node(a.cfg.Doze.Node),
				AlwaysOnDefault: a.cfg.Doze.AlwaysOnDefault,
			}, a.log))

			b := saturation.New(store, a.compositor(), a.log).Bar(cmd.Context())
			fmt.Fprintf(out, "saturation: %s\n", b.Label())
			return nil
		},
	}
}

// assigned summarizes the number of apps with a non-default profile.
func assigned(t *profile.Table) string {
	var n int
	for _, seg := range t.View() {
		n += len(seg.Packages)
	}
	return english.Plural(n, "app", "") + " assigned"
}
