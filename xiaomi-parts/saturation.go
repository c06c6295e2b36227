package main

import (
	"fmt"
	"strconv"

	"github.com/pgaskin/partsd/saturation"
	"github.com/pgaskin/partsd/seekbar"
	"github.com/spf13/cobra"
)

func saturationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saturation",
		Short: "Display color saturation",
	}

	// withBar runs fn on the saved value and prints the result.
	withBar := func(fn func(b *seekbar.Bar, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, closePrefs, err := a.openPrefs(false)
			if err != nil {
				return err
			}
			defer closePrefs()

			c := saturation.New(store, a.compositor(), a.log)
			b := c.Bar(cmd.Context())
			if err := fn(b, args); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.Label())
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the saved saturation",
			Args:  cobra.NoArgs,
			RunE: withBar(func(b *seekbar.Bar, args []string) error {
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set <percent>",
			Short: "Save and apply a saturation (0-200)",
			Args:  cobra.ExactArgs(1),
			RunE: withBar(func(b *seekbar.Bar, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid saturation %q: %w", args[0], err)
				}
				return b.SetValue(v)
			}),
		},
		&cobra.Command{
			Use:   "inc",
			Short: "Increase the saturation by one step",
			Args:  cobra.NoArgs,
			RunE: withBar(func(b *seekbar.Bar, args []string) error {
				return b.Increment()
			}),
		},
		&cobra.Command{
			Use:   "dec",
			Short: "Decrease the saturation by one step",
			Args:  cobra.NoArgs,
			RunE: withBar(func(b *seekbar.Bar, args []string) error {
				return b.Decrement()
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset the saturation to the default",
			Args:  cobra.NoArgs,
			RunE: withBar(func(b *seekbar.Bar, args []string) error {
				return b.Reset()
			}),
		},
		&cobra.Command{
			Use:   "apply",
			Short: "Apply the saved saturation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, closePrefs, err := a.openPrefs(false)
				if err != nil {
					return err
				}
				defer closePrefs()
				return saturation.New(store, a.compositor(), a.log).Apply(cmd.Context())
			},
		},
	)
	return cmd
}
