package settings

import (
	"github.com/pgaskin/partsd/prefs"
)

// Store is a Provider which keeps settings in a preference store, for hosts
// without a framework settings provider. Keys are stored as
// "settings.<namespace>.<key>".
type Store struct {
	Prefs prefs.Store
}

var _ Provider = Store{}

func (s Store) Get(ns Namespace, key string) (string, error) {
	if v := s.Prefs.String(storeKey(ns, key), ""); v != "" {
		return v, nil
	}
	return "", ErrNotFound
}

func (s Store) Put(ns Namespace, key, value string) error {
	return s.Prefs.PutString(storeKey(ns, key), value)
}

func storeKey(ns Namespace, key string) string {
	return "settings." + string(ns) + "." + key
}
