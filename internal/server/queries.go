package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/PhucNguyen204/fluentsearch/pkg/querydef"
)

// LoadQueriesFromDir parses every definition below dir and replaces the
// stored queries. Returns the number of loaded definitions.
func (s *AppServer) LoadQueriesFromDir(dir string) (int, error) {
	defs, err := querydef.LoadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("load queries: %w", err)
	}
	s.SetQueries(defs)
	log.Printf("queries loaded from %s: count=%d", dir, len(defs))
	return len(defs), nil
}

// SetQueries replaces the stored queries; the order of defs is kept.
func (s *AppServer) SetQueries(defs []querydef.Definition) {
	m := make(map[string]querydef.Definition, len(defs))
	order := make([]string, 0, len(defs))
	for _, d := range defs {
		if _, dup := m[d.ID]; !dup {
			order = append(order, d.ID)
		}
		m[d.ID] = d
	}
	s.mu.Lock()
	s.queries, s.order = m, order
	s.mu.Unlock()
}

// handleQueries supports GET (list stored queries) and POST (replace them).
func (s *AppServer) handleQueries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		type item struct {
			ID     string `json:"id"`
			Title  string `json:"title,omitempty"`
			Stages int    `json:"stages"`
		}
		s.mu.RLock()
		out := make([]item, 0, len(s.order))
		for _, id := range s.order {
			d := s.queries[id]
			out = append(out, item{ID: d.ID, Title: d.Title, Stages: len(d.Stages)})
		}
		s.mu.RUnlock()
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		body, err := readBody(w, r)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		defs, err := querydef.ParseList(body)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		s.SetQueries(defs)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "queries": len(defs)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleRunQueries runs the stored queries named by ?id=, or all of them.
func (s *AppServer) handleRunQueries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ids := r.URL.Query()["id"]
	s.mu.RLock()
	if len(ids) == 0 {
		ids = append(ids, s.order...)
	}
	defs := make([]querydef.Definition, 0, len(ids))
	var missing string
	for _, id := range ids {
		d, ok := s.queries[id]
		if !ok {
			missing = id
			break
		}
		defs = append(defs, d)
	}
	s.mu.RUnlock()
	if missing != "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown query %q", missing))
		return
	}
	s.runBatch(w, r, defs)
}
