package main

import (
	"fmt"

	"github.com/pgaskin/partsd/doze"
	"github.com/pgaskin/partsd/sysfs"
	"github.com/spf13/cobra"
)

func dozeCmd(a *app) *cobra.Command {
	withDoze := func(fn func(cmd *cobra.Command, c *doze.Controller, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, closePrefs, err := a.openPrefs(false)
			if err != nil {
				return err
			}
			defer closePrefs()

			c := doze.New(doze.Config{
				Settings:        a.settings(store),
				Prefs:           store,
				Node:            sysfs.Node(a.cfg.Doze.Node),
				AlwaysOnDefault: a.cfg.Doze.AlwaysOnDefault,
			}, a.log)
			return fn(cmd, c, args)
		}
	}
	onOff := func(s string) (bool, error) {
		switch s {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("expected on or off, got %q", s)
	}

	cmd := &cobra.Command{
		Use:   "doze",
		Short: "Doze and always-on display",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the doze settings",
			Args:  cobra.NoArgs,
			RunE: withDoze(func(cmd *cobra.Command, c *doze.Controller, args []string) error {
				printDoze(cmd, c)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "enable",
			Short: "Enable doze",
			Args:  cobra.NoArgs,
			RunE: withDoze(func(cmd *cobra.Command, c *doze.Controller, args []string) error {
				return c.SetEnabled(true)
			}),
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable doze (and the always-on display)",
			Args:  cobra.NoArgs,
			RunE: withDoze(func(cmd *cobra.Command, c *doze.Controller, args []string) error {
				return c.SetEnabled(false)
			}),
		},
		&cobra.Command{
			Use:   "aod <on|off>",
			Short: "Enable or disable the always-on display",
			Args:  cobra.ExactArgs(1),
			RunE: withDoze(func(cmd *cobra.Command, c *doze.Controller, args []string) error {
				on, err := onOff(args[0])
				if err != nil {
					return err
				}
				return c.SetAlwaysOn(on)
			}),
		},
		&cobra.Command{
			Use:   "brightness <low|high|auto>",
			Short: "Set the always-on display brightness",
			Args:  cobra.ExactArgs(1),
			RunE: withDoze(func(cmd *cobra.Command, c *doze.Controller, args []string) error {
				b, err := doze.ParseBrightness(args[0])
				if err != nil {
					return err
				}
				return c.SetBrightness(b)
			}),
		},
	)
	return cmd
}

func printDoze(cmd *cobra.Command, c *doze.Controller) {
	out := cmd.OutOrStdout()
	enabled := "disabled"
	if c.Enabled() {
		enabled = "enabled"
	}
	aod := "off"
	if c.AlwaysOn() {
		aod = "on"
	}
	fmt.Fprintf(out, "doze:       %s, always-on %s, brightness %s", enabled, aod, c.Brightness())
	if !c.Available() {
		fmt.Fprint(out, " (node unavailable)")
	}
	fmt.Fprintln(out)
}
