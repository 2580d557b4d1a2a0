// Package presets implements the preset store: named, file-backed
// records of (name, base_type, params_json) with CRUD, existence check,
// and manifest enumeration. An in-memory name index is kept in lockstep
// with a JSON-file-per-preset layout, reached through the
// storage.Storage collaborator rather than a database.
package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/meshnode/meshnode/internal/animation"
	"github.com/meshnode/meshnode/internal/storage"
)

var (
	ErrNotFound = errors.New("presets: not found")
	ErrDuplicate = errors.New("presets: name already exists")
)

const presetsDir = "/presets"

type record struct {
	Name     string          `json:"name"`
	BaseType string          `json:"base_type"`
	Params   json.RawMessage `json:"params"`
}

// Store is the file-backed preset index. The in-memory index is reloaded
// from disk after every mutating operation: no partial state is ever
// exposed to a reader.
type Store struct {
	mu       sync.RWMutex
	fs       storage.Storage
	registry *animation.Registry
	index    map[string]bool // name -> exists; mirrors what's on disk

	selected string // currently selected preset or base-animation name
}

func NewStore(fs storage.Storage, registry *animation.Registry) *Store {
	s := &Store{fs: fs, registry: registry, index: make(map[string]bool)}
	_ = fs.Mkdir(presetsDir)
	s.reload()
	return s
}

func pathFor(name string) string {
	return fmt.Sprintf("%s/%s.json", presetsDir, name)
}

func (s *Store) reload() {
	names, _ := s.fs.List(presetsDir)
	idx := make(map[string]bool, len(names))
	for _, n := range names {
		name := n
		if len(name) > 5 && name[len(name)-5:] == ".json" {
			name = name[:len(name)-5]
		}
		idx[name] = true
	}
	s.index = idx
}

// Exists is an index-only lookup.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[name]
}

// List returns every known preset name.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.index))
	for n := range s.index {
		out = append(out, n)
	}
	return out
}

// GetData returns the stored (base_type, params_json) for name.
func (s *Store) GetData(name string) (baseType string, params json.RawMessage, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.index[name] {
		return "", nil, ErrNotFound
	}
	rec, err := s.read(name)
	if err != nil {
		return "", nil, err
	}
	return rec.BaseType, rec.Params, nil
}

func (s *Store) read(name string) (*record, error) {
	data, err := s.fs.Read(pathFor(name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) write(rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.fs.Write(pathFor(rec.Name), data)
}

// Save serializes the currently-registered parameters of the live
// animation whose TypeName == baseType under name, overwriting any
// existing preset of that name.
func (s *Store) Save(name, baseType string) error {
	anim, ok := s.registry.Get(baseType)
	if !ok {
		return fmt.Errorf("presets: unknown base type %q", baseType)
	}
	params, err := animation.MarshalParams(anim)
	if err != nil {
		return err
	}
	return s.SaveFromData(name, baseType, params)
}

// SaveFromData is the variant used by the replication receive path: the
// caller already has serialized params_json.
func (s *Store) SaveFromData(name, baseType string, params json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &record{Name: name, BaseType: baseType, Params: params}
	if err := s.write(rec); err != nil {
		return err
	}
	s.reload()
	return nil
}

// Rename fails with ErrDuplicate if newName already exists, and with
// ErrNotFound if oldName doesn't. If the renamed preset was currently
// selected, the selection tracks the new name.
func (s *Store) Rename(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.index[oldName] {
		return ErrNotFound
	}
	if s.index[newName] {
		return ErrDuplicate
	}
	rec, err := s.read(oldName)
	if err != nil {
		return err
	}
	rec.Name = newName
	if err := s.write(rec); err != nil {
		return err
	}
	if err := s.fs.Remove(pathFor(oldName)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.reload()
	if s.selected == oldName {
		s.selected = newName
	}
	return nil
}

// Delete removes name, returning ErrNotFound if it doesn't exist.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.index[name] {
		return ErrNotFound
	}
	if err := s.fs.Remove(pathFor(name)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	s.reload()
	return nil
}

// ExportAll returns a concatenated JSON array of every preset record,
// for a control-plane UI.
func (s *Store) ExportAll() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*record, 0, len(s.index))
	for name := range s.index {
		rec, err := s.read(name)
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return json.Marshal(recs)
}

// SetAnimation implements the selection semantics: if name names a
// preset, load its params into the matching base animation and make it
// current; else if name names a base animation type, reset that
// animation's parameters to their defaults and make it current; else
// no-op.
func (s *Store) SetAnimation(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index[name] {
		rec, err := s.read(name)
		if err != nil {
			return err
		}
		anim, ok := s.registry.Get(rec.BaseType)
		if !ok {
			return fmt.Errorf("presets: preset %q references unknown base type %q", name, rec.BaseType)
		}
		if err := animation.UnmarshalParams(anim, rec.Params); err != nil {
			return err
		}
		s.registry.SetCurrent(rec.BaseType)
		s.selected = name
		return nil
	}

	if anim, ok := s.registry.Get(name); ok {
		animation.ResetParams(anim)
		s.registry.SetCurrent(name)
		s.selected = name
		return nil
	}

	return nil // no-op: name names neither a preset nor a base type
}

// Selected returns the currently selected preset or base-animation name.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}
