// Package logind implements a partsd host backend for mainline Linux devices,
// reporting the screen as off while the session is locked or the system is
// suspending.
package logind

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/pgaskin/partsd"
	"github.com/pgaskin/partsd/partsproto"
	"github.com/rs/zerolog"
)

const (
	login1      = "org.freedesktop.login1"
	login1Path  = dbus.ObjectPath("/org/freedesktop/login1")
	managerIntf = "org.freedesktop.login1.Manager"
	sessionIntf = "org.freedesktop.login1.Session"
)

// Source emits screen events from systemd-logind.
type Source struct {
	// Session is the session object path to follow. If empty, the session of
	// the current process is used, or all sessions if there isn't one.
	Session dbus.ObjectPath

	Log zerolog.Logger
}

var _ partsd.Source = Source{}

func (s Source) Run(ctx context.Context, emit func(partsproto.Event)) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}
	defer conn.Close()

	session := s.Session
	if session == "" {
		if err := conn.Object(login1, login1Path).CallWithContext(ctx, managerIntf+".GetSession", 0, "auto").Store(&session); err != nil {
			s.Log.Info().Err(err).Msg("no current session, following all sessions")
		}
	}

	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchSender(login1),
		dbus.WithMatchObjectPath(login1Path),
		dbus.WithMatchInterface(managerIntf),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return err
	}
	for _, member := range []string{"Lock", "Unlock"} {
		opts := []dbus.MatchOption{
			dbus.WithMatchSender(login1),
			dbus.WithMatchInterface(sessionIntf),
			dbus.WithMatchMember(member),
		}
		if session != "" {
			opts = append(opts, dbus.WithMatchObjectPath(session))
		}
		if err := conn.AddMatchSignalContext(ctx, opts...); err != nil {
			return err
		}
	}

	ch := make(chan *dbus.Signal, 6)
	conn.Signal(ch)
	defer conn.RemoveSignal(ch)

	s.Log.Info().Str("session", string(session)).Msg("watching logind")

	var state screenState
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return errors.New("system bus connection closed")
			}
			if on, changed := state.update(sig); changed {
				s.Log.Debug().Bool("locked", state.locked).Bool("sleeping", state.sleeping).Msg("screen state changed")
				emit(partsproto.Event{Type: partsproto.Screen, On: on})
			}
		}
	}
}

// screenState tracks whether the screen should be considered on. The zero
// value is on.
type screenState struct {
	locked   bool
	sleeping bool
}

func (s *screenState) on() bool {
	return !s.locked && !s.sleeping
}

// update applies a logind signal, returning the new state and whether it
// changed.
func (s *screenState) update(sig *dbus.Signal) (on, changed bool) {
	was := s.on()
	switch sig.Name {
	case managerIntf + ".PrepareForSleep":
		if len(sig.Body) == 1 {
			if v, ok := sig.Body[0].(bool); ok {
				s.sleeping = v
			}
		}
	case sessionIntf + ".Lock":
		s.locked = true
	case sessionIntf + ".Unlock":
		s.locked = false
	}
	return s.on(), s.on() != was
}
