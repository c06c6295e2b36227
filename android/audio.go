package android

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgaskin/partsd/speaker"
	"github.com/rs/zerolog"
)

const (
	// DefaultParameters is the default command template for setting audio
	// parameters. The quoted key-value pairs replace %s.
	DefaultParameters = "service call media.audio_flinger 20 i32 0 s16 %s"

	// DefaultPlayer is the default command used to play a sound file once.
	DefaultPlayer = "tinyplay"
)

// Audio controls audio using shell commands. Sounds are played by running the
// player repeatedly until stopped.
type Audio struct {
	Runner     Runner
	Parameters string // DefaultParameters if empty
	Player     string // DefaultPlayer if empty
	Log        zerolog.Logger
}

var _ speaker.Audio = Audio{}

func (a Audio) SetParameters(ctx context.Context, kv string) error {
	tmpl := a.Parameters
	if tmpl == "" {
		tmpl = DefaultParameters
	}
	_, err := a.Runner.Run(ctx, strings.ReplaceAll(tmpl, "%s", quote(kv)))
	return err
}

func (a Audio) Play(ctx context.Context, sound string) (func() error, error) {
	player := a.Player
	if player == "" {
		player = DefaultPlayer
	}
	cmdline := player + " " + quote(sound)

	ctx, cancel := context.WithCancel(ctx)

	cmd := a.Runner.Command(ctx, cmdline)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %q: %w", cmdline, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			started := time.Now()
			err := cmd.Wait()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				a.Log.Warn().Err(err).Str("command", cmdline).Msg("player exited")
			}
			// don't spin if the player fails immediately
			if time.Since(started) < time.Second {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
			cmd = a.Runner.Command(ctx, cmdline)
			if err := cmd.Start(); err != nil {
				a.Log.Error().Err(err).Str("command", cmdline).Msg("failed to restart player")
				return
			}
		}
	}()

	return func() error {
		cancel()
		<-done
		return nil
	}, nil
}
