package lut

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/gogpu/simviz"
)

// Ext is the file extension of color scheme assets.
const Ext = ".lut"

// Store holds the available color schemes by name. It is safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	schemes map[string]*ColorScheme
}

// NewStore returns a store holding the built-in schemes.
func NewStore() *Store {
	s := &Store{schemes: make(map[string]*ColorScheme)}
	for _, c := range builtins() {
		s.schemes[c.Name] = c
	}
	return s
}

// Get returns a copy of the named scheme.
func (s *Store) Get(name string) (*ColorScheme, error) {
	s.mu.RLock()
	c, ok := s.schemes[name]
	s.mu.RUnlock()
	if !ok {
		return nil, simviz.ColorSchemeNotFound(name)
	}
	cp := *c
	return &cp, nil
}

// Add registers or replaces a scheme.
func (s *Store) Add(c *ColorScheme) {
	cp := *c
	s.mu.Lock()
	s.schemes[c.Name] = &cp
	s.mu.Unlock()
}

// Len returns the number of schemes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schemes)
}

// Names returns the scheme names in case-insensitive collation order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.schemes))
	for n := range s.schemes {
		names = append(names, n)
	}
	s.mu.RUnlock()
	collate.New(language.English, collate.IgnoreCase).SortStrings(names)
	return names
}

// LoadDir adds every *.lut asset in the root of fsys. The scheme name is
// the file name without extension. It returns the number loaded.
func (s *Store) LoadDir(fsys fs.FS) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("lut: read dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != Ext {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return n, fmt.Errorf("lut: %w", err)
		}
		c, err := ParseAsset(strings.TrimSuffix(e.Name(), Ext), data)
		if err != nil {
			return n, err
		}
		s.Add(c)
		n++
	}
	simviz.Logger().Debug("lut: loaded assets", "count", n)
	return n, nil
}
