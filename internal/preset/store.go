// Package preset stores named settings snapshots per simulation kind.
//
// Built-in presets are embedded and read-only. User presets live in a
// writable directory as <root>/<kind>/<name>.json and are listed under the
// "user/" namespace, so they can never shadow a built-in. Names compare
// after Unicode case folding and NFC normalization.
package preset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/simviz"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// UserPrefix marks user presets in listings.
const UserPrefix = "user/"

// Ext is the preset file extension.
const Ext = ".json"

// Record is one preset file.
type Record struct {
	Name     string         `json:"name"`
	Settings map[string]any `json:"settings"`
}

// Key returns the comparison key of a preset name.
func Key(name string) string {
	return norm.NFC.String(cases.Fold().String(strings.TrimSpace(name)))
}

// Store holds built-in and user presets. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	root    string
	builtin map[string][]Record
	user    map[string]map[string]Record
}

// NewStore returns a store with the embedded built-ins. root is the user
// preset directory; an empty root keeps user presets in memory only.
func NewStore(root string) (*Store, error) {
	b, err := loadBuiltins()
	if err != nil {
		return nil, err
	}
	s := &Store{root: root, builtin: b, user: make(map[string]map[string]Record)}
	if root != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Root returns the user preset directory.
func (s *Store) Root() string { return s.root }

// List returns the built-in names in declaration order followed by the
// user names, sorted and prefixed with UserPrefix.
func (s *Store) List(kind string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, r := range s.builtin[kind] {
		out = append(out, r.Name)
	}
	var user []string
	for _, r := range s.user[kind] {
		user = append(user, UserPrefix+r.Name)
	}
	sort.Strings(user)
	return append(out, user...)
}

// Get returns a preset by name. A name without the user prefix matches a
// built-in first and then a user preset.
func (s *Store) Get(kind, name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rest, ok := strings.CutPrefix(name, UserPrefix); ok {
		if r, ok := s.user[kind][Key(rest)]; ok {
			return r, nil
		}
		return Record{}, simviz.PresetNotFound(name)
	}
	key := Key(name)
	for _, r := range s.builtin[kind] {
		if Key(r.Name) == key {
			return r, nil
		}
	}
	if r, ok := s.user[kind][key]; ok {
		return r, nil
	}
	return Record{}, simviz.PresetNotFound(name)
}

// Save stores a user preset, replacing one with the same key.
func (s *Store) Save(kind, name string, settings map[string]any) error {
	name = strings.TrimSpace(strings.TrimPrefix(name, UserPrefix))
	if name == "" || strings.ContainsAny(name, `/\`) {
		return simviz.InvalidSetting("name", "invalid preset name %q", name)
	}
	r := Record{Name: name, Settings: settings}
	if s.root != "" {
		if err := s.write(kind, r); err != nil {
			return err
		}
	}
	s.mu.Lock()
	if s.user[kind] == nil {
		s.user[kind] = make(map[string]Record)
	}
	s.user[kind][Key(name)] = r
	s.mu.Unlock()
	simviz.Logger().Info("preset: saved", "kind", kind, "name", name)
	return nil
}

// Delete removes a user preset. Built-ins are read-only.
func (s *Store) Delete(kind, name string) error {
	rest, prefixed := strings.CutPrefix(name, UserPrefix)
	key := Key(rest)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.user[kind][key]
	if !ok {
		if !prefixed {
			for _, b := range s.builtin[kind] {
				if Key(b.Name) == key {
					return simviz.InvalidSetting("name", "preset %q is built in", name)
				}
			}
		}
		return simviz.PresetNotFound(name)
	}
	if s.root != "" {
		err := os.Remove(s.path(kind, r.Name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("preset: delete %q: %w", name, err)
		}
	}
	delete(s.user[kind], key)
	return nil
}

func (s *Store) path(kind, name string) string {
	return filepath.Join(s.root, kind, name+Ext)
}

func (s *Store) write(kind string, r Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return simviz.Serialization("encode preset", err)
	}
	if err := os.MkdirAll(filepath.Join(s.root, kind), 0o755); err != nil {
		return fmt.Errorf("preset: %w", err)
	}
	if err := os.WriteFile(s.path(kind, r.Name), data, 0o644); err != nil {
		return fmt.Errorf("preset: %w", err)
	}
	return nil
}

// Reload rereads the user directory. A missing directory is empty.
func (s *Store) Reload() error {
	if s.root == "" {
		return nil
	}
	user, err := readUserDir(os.DirFS(s.root))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return nil
}

func readUserDir(fsys fs.FS) (map[string]map[string]Record, error) {
	out := make(map[string]map[string]Record)
	kinds, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	for _, k := range kinds {
		if !k.IsDir() {
			continue
		}
		files, err := fs.Glob(fsys, k.Name()+"/*"+Ext)
		if err != nil {
			return nil, fmt.Errorf("preset: %w", err)
		}
		for _, f := range files {
			r, err := readRecord(fsys, f)
			if err != nil {
				simviz.Logger().Warn("preset: skipping file", "path", f, "err", err)
				continue
			}
			if out[k.Name()] == nil {
				out[k.Name()] = make(map[string]Record)
			}
			out[k.Name()][Key(r.Name)] = r
		}
	}
	return out, nil
}

func readRecord(fsys fs.FS, name string) (Record, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, simviz.Serialization("decode "+name, err)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(name), Ext)
	}
	return r, nil
}
