package partsproto

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Reader is an event source which reads JSON lines from R (os.Stdin if nil).
// It is used when a companion process on the host forwards framework
// callbacks instead of partsd polling for them.
type Reader struct {
	R   io.Reader
	Log zerolog.Logger
}

// Run reads events until EOF, a read error, or ctx is cancelled. Invalid
// lines are logged and skipped. R is read on a separate goroutine, and is
// closed on cancellation if it is an io.Closer.
func (r Reader) Run(ctx context.Context, emit func(Event)) error {
	in := r.R
	if in == nil {
		in = os.Stdin
	}

	done := make(chan struct{})
	defer close(done)

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- bytes.Clone(sc.Bytes()):
			case <-done:
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			if c, ok := in.(io.Closer); ok {
				c.Close()
			}
			return ctx.Err()
		case buf, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return fmt.Errorf("read events: %w", err)
				}
				return io.EOF
			}
			r.line(buf, emit)
		}
	}
}

func (r Reader) line(buf []byte, emit func(Event)) {
	if len(buf) == 0 {
		return
	}
	if buf[0] != '{' || buf[len(buf)-1] != '}' {
		r.Log.Warn().Bytes("line", buf).Msg("invalid event line")
		return
	}
	var event Event
	event.FromJSON(buf)
	if !event.Valid() {
		r.Log.Warn().Bytes("line", buf).Msg("ignoring unknown or incomplete event")
		return
	}
	emit(event)
}
