package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RunMigrations executes the .sql files below dir in lexical order, one
// ';'-separated statement at a time. It prepares the records table of the
// SQL backend.
func (s *AppServer) RunMigrations(ctx context.Context, dir string) (int, error) {
	if s.db == nil {
		return 0, errors.New("run migrations: no database configured")
	}
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	sort.Strings(files)
	n := 0
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return n, fmt.Errorf("read migration %s: %w", p, err)
		}
		for _, chunk := range strings.Split(string(b), ";") {
			stmt := strings.TrimSpace(chunk)
			if stmt == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return n, fmt.Errorf("exec migration %s: %w", p, err)
			}
			n++
		}
	}
	return n, nil
}
