package android

import (
	"context"

	"github.com/pgaskin/partsd/settings"
)

// Settings is a settings.Provider backed by the settings command.
type Settings struct {
	Runner Runner
}

var _ settings.Provider = Settings{}

func (s Settings) Get(ns settings.Namespace, key string) (string, error) {
	out, err := s.Runner.Run(context.Background(), "settings get "+quote(string(ns))+" "+quote(key))
	if err != nil {
		return "", err
	}
	if out == "" || out == "null" {
		return "", settings.ErrNotFound
	}
	return out, nil
}

func (s Settings) Put(ns settings.Namespace, key, value string) error {
	_, err := s.Runner.Run(context.Background(), "settings put "+quote(string(ns))+" "+quote(key)+" "+quote(value))
	return err
}
