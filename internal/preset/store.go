package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store is the preset file: a JSON object mapping names to presets. Every
// change is written back immediately.
type Store struct {
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	presets map[string]Preset
}

// Open loads the preset file at path, creating it with the built-in presets
// if it does not exist. A file that does not parse is an error; it is left
// untouched.
func Open(path string, log *zap.Logger) (*Store, error) {
	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.presets = Defaults()
		if err := s.persist(); err != nil {
			return nil, err
		}
		log.Info("created preset file", zap.String("path", path), zap.Int("presets", len(s.presets)))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read presets: %w", err)
	}

	if err := json.Unmarshal(data, &s.presets); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	if s.presets == nil {
		s.presets = make(map[string]Preset)
	}
	for name, p := range s.presets {
		if err := p.Validate(); err != nil {
			log.Warn("preset will not load", zap.String("name", name), zap.Error(err))
		}
	}
	log.Info("loaded presets", zap.String("path", path), zap.Int("presets", len(s.presets)))
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get returns a preset ready to be applied.
func (s *Store) Get(name string) (Preset, error) {
	s.mu.RLock()
	p, ok := s.presets[name]
	s.mu.RUnlock()
	if !ok {
		return Preset{}, fmt.Errorf("%q: %w", name, ErrPresetNotFound)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, fmt.Errorf("%q: %w", name, err)
	}
	return p, nil
}

// Save stores p under name, replacing any preset with that name.
func (s *Store) Save(name string, p Preset) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.presets[name]
	s.presets[name] = p
	if err := s.persist(); err != nil {
		if had {
			s.presets[name] = prev
		} else {
			delete(s.presets, name)
		}
		return err
	}
	s.log.Info("saved preset", zap.String("name", name),
		zap.Float64("carrier", p.CarrierHz), zap.Float64("beat", p.BeatHz))
	return nil
}

// Delete removes a preset. Built-in presets can be deleted too; they come
// back only if the file is removed.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.presets[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrPresetNotFound)
	}
	delete(s.presets, name)
	if err := s.persist(); err != nil {
		s.presets[name] = prev
		return err
	}
	s.log.Info("deleted preset", zap.String("name", name))
	return nil
}

// Categories lists the stored presets grouped by band in built-in order,
// followed by a "Custom Sounds" group sorted by name. Empty groups are
// omitted.
func (s *Store) Categories() []Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Category
	for _, c := range builtins {
		cat := Category{Name: c.name, Band: c.band}
		for _, n := range c.presets {
			if p, ok := s.presets[n.Name]; ok {
				cat.Presets = append(cat.Presets, Named{Name: n.Name, Preset: p})
			}
		}
		if len(cat.Presets) > 0 {
			out = append(out, cat)
		}
	}

	var custom []Named
	for name, p := range s.presets {
		if !IsBuiltin(name) {
			custom = append(custom, Named{Name: name, Preset: p})
		}
	}
	if len(custom) > 0 {
		slices.SortFunc(custom, func(a, b Named) int { return strings.Compare(a.Name, b.Name) })
		out = append(out, Category{Name: CustomCategory, Presets: custom})
	}
	return out
}

// InBand returns the loadable built-in presets of a band that are still in
// the store, in display order.
func (s *Store) InBand(b Band) []Named {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Named
	for _, name := range BandNames(b) {
		if p, ok := s.presets[name]; ok && p.Validate() == nil {
			out = append(out, Named{Name: name, Preset: p})
		}
	}
	return out
}

// Len returns the number of stored presets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.presets)
}

// persist writes the file through a temp file and rename. Callers hold mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.presets, "", "    ")
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
