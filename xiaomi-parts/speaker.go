package main

import (
	"fmt"

	"github.com/pgaskin/partsd/speaker"
	"github.com/spf13/cobra"
)

func speakerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speaker",
		Short: "Earpiece speaker maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Play the cleaning sound through the earpiece",
		Long:  "Play a low-frequency sound through the earpiece to push out dust and water. It stops automatically, or when interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := a.audio()
			if err != nil {
				return err
			}
			c := speaker.NewCleaner(speaker.Config{
				Audio:    audio,
				Sound:    a.cfg.Speaker.Sound,
				Duration: a.cfg.Speaker.Duration,
				Log:      a.log,
			})
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			done := c.Done()
			fmt.Fprintf(cmd.OutOrStdout(), "cleaning for %s\n", a.cfg.Speaker.Duration)
			select {
			case <-done:
			case <-cmd.Context().Done():
				c.Stop()
			}
			return nil
		},
	})
	return cmd
}
