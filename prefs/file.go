package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pgaskin/partsd/internal/jsonenc"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// File is a Store persisted as a flat JSON object. Writes replace the file
// atomically. If Watch is called, changes made by other processes (e.g., the
// CLI assigning a package while the daemon is running) are picked up.
type File struct {
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	values  map[string]any
	closed  bool
	watcher *fsnotify.Watcher
}

var _ Store = (*File)(nil)

// OpenFile opens the store at path. A missing file is treated as empty, and a
// corrupt one is logged and replaced on the next write.
func OpenFile(path string, log zerolog.Logger) (*File, error) {
	f := &File{
		path:   path,
		log:    log,
		values: map[string]any{},
	}
	values, err := f.load()
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return nil, err
		}
		log.Warn().Err(err).Str("path", path).Msg("discarding corrupt preferences")
	} else {
		f.values = values
	}
	return f, nil
}

var errCorrupt = errors.New("invalid json object")

func (f *File) load() (map[string]any, error) {
	buf, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if len(buf) == 0 {
		return map[string]any{}, nil
	}
	if !gjson.ValidBytes(buf) || !gjson.ParseBytes(buf).IsObject() {
		return nil, fmt.Errorf("load %s: %w", f.path, errCorrupt)
	}
	values := map[string]any{}
	gjson.ParseBytes(buf).ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String:
			values[key.Str] = value.Str
		case gjson.Number:
			values[key.Str] = value.Int()
		case gjson.True, gjson.False:
			values[key.Str] = value.Bool()
		}
		return true
	})
	return values, nil
}

// Watch starts watching the file for external changes until Close is called.
func (f *File) Watch() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// watch the directory since writes replace the file
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("update watcher: %w", err)
	}
	f.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(f.path) {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					f.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.log.Warn().Err(err).Msg("preferences watcher")
			}
		}
	}()
	return nil
}

func (f *File) reload() {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		f.log.Warn().Err(err).Msg("failed to reload preferences, keeping current values")
		return
	}
	f.values = values
	f.log.Debug().Str("path", f.path).Msg("reloaded preferences")
}

// Close stops watching the file. Further writes will fail.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.watcher != nil {
		err := f.watcher.Close()
		f.watcher = nil
		return err
	}
	return nil
}

func (f *File) get(key string) any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values[key]
}

func (f *File) put(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	old, had := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = old
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *File) flush() error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(appendJSON(nil, f.values)); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0660); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

func appendJSON(s []byte, values map[string]any) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	s = append(s, '{')
	for i, k := range keys {
		if i != 0 {
			s = append(s, ',')
		}
		s = append(s, "\n  "...)
		s = jsonenc.AppendString(s, k)
		s = append(s, ':', ' ')
		switch v := values[k].(type) {
		case string:
			s = jsonenc.AppendString(s, v)
		case int64:
			s = strconv.AppendInt(s, v, 10)
		case bool:
			s = strconv.AppendBool(s, v)
		default:
			s = append(s, "null"...)
		}
	}
	if len(keys) != 0 {
		s = append(s, '\n')
	}
	s = append(s, '}', '\n')
	return s
}


func (f *File) String(key, def string) string {
	return asString(f.get(key), def)
}

func (f *File) Int(key string, def int) int {
	return asInt(f.get(key), def)
}

func (f *File) Bool(key string, def bool) bool {
	return asBool(f.get(key), def)
}

func (f *File) PutString(key, value string) error {
	return f.put(key, value)
}

func (f *File) PutInt(key string, value int) error {
	return f.put(key, int64(value))
}

func (f *File) PutBool(key string, value bool) error {
	return f.put(key, value)
}
