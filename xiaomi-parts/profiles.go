package main

import (
	"fmt"
	"strings"

	"github.com/pgaskin/partsd/profile"
	"github.com/pgaskin/partsd/refreshrate"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/pgaskin/partsd/thermal"
	"github.com/spf13/cobra"
)

// profileKind describes a per-app profile table for the CLI.
type profileKind struct {
	Layout profile.Layout
	Name   func(profile.Profile) string
	Parse  func(string) (profile.Profile, error)
}

var (
	refreshProfiles = profileKind{refreshrate.Layout, refreshrate.Name, refreshrate.Parse}
	thermalProfiles = profileKind{thermal.Layout, thermal.Name, thermal.Parse}
)

func (k profileKind) names() string {
	names := make([]string, k.Layout.Len()+1)
	for i := range names {
		names[i] = k.Name(profile.Profile(i))
	}
	return strings.Join(names, ", ")
}

// commands returns the list, get and assign commands for the table.
func (k profileKind) commands(a *app) []*cobra.Command {
	withTable := func(fn func(cmd *cobra.Command, t *profile.Table, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, closePrefs, err := a.openPrefs(false)
			if err != nil {
				return err
			}
			defer closePrefs()
			return fn(cmd, a.table(store, k.Layout), args)
		}
	}
	return []*cobra.Command{
		{
			Use:   "list",
			Short: "List the apps assigned to each profile",
			Args:  cobra.NoArgs,
			RunE: withTable(func(cmd *cobra.Command, t *profile.Table, args []string) error {
				out := cmd.OutOrStdout()
				for p := profile.Profile(1); int(p) <= k.Layout.Len(); p++ {
					fmt.Fprintf(out, "%s:", k.Name(p))
					for _, pkg := range t.Packages(p) {
						fmt.Fprintf(out, " %s", pkg)
					}
					fmt.Fprintln(out)
				}
				return nil
			}),
		},
		{
			Use:   "get <package>",
			Short: "Show the profile of an app",
			Args:  cobra.ExactArgs(1),
			RunE: withTable(func(cmd *cobra.Command, t *profile.Table, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), k.Name(t.ProfileFor(args[0])))
				return nil
			}),
		},
		{
			Use:   "assign <package> <profile>",
			Short: "Assign a profile to an app (" + k.names() + ")",
			Args:  cobra.ExactArgs(2),
			RunE: withTable(func(cmd *cobra.Command, t *profile.Table, args []string) error {
				p, err := k.Parse(args[1])
				if err != nil {
					return err
				}
				if err := t.Assign(args[0], p); err != nil {
					return err
				}
				a.log.Info().Str("package", args[0]).Str("profile", k.Name(p)).Msg("assigned profile")
				return nil
			}),
		},
	}
}

func refreshCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Per-app refresh rate profiles",
	}
	cmd.AddCommand(refreshProfiles.commands(a)...)
	return cmd
}

func thermalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thermal",
		Short: "Per-app thermal profiles and the global thermal mode",
	}
	cmd.AddCommand(thermalProfiles.commands(a)...)
	cmd.AddCommand(thermalTileCmd(a))
	return cmd
}

func thermalTileCmd(a *app) *cobra.Command {
	tile := func() *thermal.Tile {
		t := thermal.NewTile(sysfs.Node(a.cfg.Thermal.Node), a.log)
		t.Sync()
		return t
	}
	cmd := &cobra.Command{
		Use:   "tile",
		Short: "Show the global thermal mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), tile().Mode())
			return nil
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "toggle",
			Short: "Switch to the next global thermal mode",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := tile().Toggle()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), m)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <mode>",
			Short: "Set the global thermal mode (default, performance, battery-saver, gaming)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := thermal.ParseMode(args[0])
				if err != nil {
					return err
				}
				return tile().Set(m)
			},
		},
	)
	return cmd
}
