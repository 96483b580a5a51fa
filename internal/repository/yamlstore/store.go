package yamlstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"privacyblur/internal/logger"
	"privacyblur/internal/model"
	"privacyblur/internal/repository"
)

const reloadDebounce = 100 * time.Millisecond

// Store serves profiles from a YAML file and reloads them when it changes.
// A reload takes effect for the next lookup; a file that fails to parse
// leaves the previous profiles in place.
type Store struct {
	path   string
	logger *logger.Logger

	mu       sync.RWMutex
	profiles map[string]model.Profile
	keywords map[string][]string

	watcher  *fsnotify.Watcher
	onChange []func()
}

// Open loads path. A missing file is created with the stock profiles.
func Open(path string, logger *logger.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := WriteDefaults(path); err != nil {
			return nil, err
		}
		logger.Info("Created profiles file %s with stock profiles", path)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteDefaults writes the stock profiles and keyword lists to path.
func WriteDefaults(path string) error {
	data, err := Encode(repository.DefaultProfiles(), repository.DefaultKeywordLists())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create profiles directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

// Reload reads the file again.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	profiles, keywords, err := Decode(data)
	if err != nil {
		return err
	}

	byName := make(map[string]model.Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
	}

	s.mu.Lock()
	s.profiles = byName
	s.keywords = keywords
	callbacks := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// OnChange registers fn to run after every successful reload.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Profile returns a copy of the named profile.
func (s *Store) Profile(name string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	if !ok {
		return model.Profile{}, fmt.Errorf("%q: %w", name, model.ErrProfileNotFound)
	}
	return p.Clone(), nil
}

// KeywordList returns a copy of the named list; unknown lists are empty.
func (s *Store) KeywordList(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keywords[name]...), nil
}

// ProfileNames lists the loaded profiles alphabetically.
func (s *Store) ProfileNames() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Profiles returns copies of every profile, sorted by name.
func (s *Store) Profiles() []model.Profile {
	names, _ := s.ProfileNames()
	out := make([]model.Profile, 0, len(names))
	for _, name := range names {
		if p, err := s.Profile(name); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// KeywordLists returns copies of every keyword list.
func (s *Store) KeywordLists() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.keywords))
	for name, words := range s.keywords {
		out[name] = append([]string(nil), words...)
	}
	return out
}

// Watch reloads the file on every change until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	s.watcher = watcher

	go s.watchLoop(ctx)
	return nil
}

func (s *Store) watchLoop(ctx context.Context) {
	defer s.watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Error("Failed to reload profiles from %s, keeping previous: %v", s.path, err)
					return
				}
				s.logger.Info("Reloaded profiles from %s", s.path)
			})
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warning("Profiles watcher error: %v", err)
		}
	}
}
