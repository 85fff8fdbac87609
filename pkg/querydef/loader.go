package querydef

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func isDefinitionFile(p string) bool {
	l := strings.ToLower(p)
	return strings.HasSuffix(l, ".yml") || strings.HasSuffix(l, ".yaml") || strings.HasSuffix(l, ".json")
}

// LoadFile parses one definition file.
func LoadFile(path string) (Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	d, err := Parse(b)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if d.ID == "" {
		d.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}

// LoadDir parses every definition below root, in lexical order. IDs must be
// unique.
func LoadDir(root string) ([]Definition, error) {
	var out []Definition
	seen := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDefinitionFile(p) {
			return nil
		}
		def, err := LoadFile(p)
		if err != nil {
			return err
		}
		if prev, dup := seen[def.ID]; dup {
			return fmt.Errorf("%s: %w: id %q already defined in %s", p, ErrInvalidDefinition, def.ID, prev)
		}
		seen[def.ID] = p
		out = append(out, def)
		return nil
	})
	return out, err
}

// Load accepts a single file or a directory.
func Load(path string) ([]Definition, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return LoadDir(path)
	}
	d, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []Definition{d}, nil
}
