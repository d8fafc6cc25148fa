package preset

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// loadBuiltins reads builtin/<kind>.json, each a JSON array of records.
func loadBuiltins() (map[string][]Record, error) {
	out := make(map[string][]Record)
	files, err := fs.Glob(builtinFS, "builtin/*"+Ext)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := builtinFS.ReadFile(f)
		if err != nil {
			return nil, err
		}
		var recs []Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("preset: built-in %s: %w", f, err)
		}
		out[strings.TrimSuffix(path.Base(f), Ext)] = recs
	}
	return out, nil
}

// Kinds returns the simulation kinds that ship built-in presets.
func (s *Store) Kinds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.builtin))
	for k := range s.builtin {
		out = append(out, k)
	}
	return out
}
