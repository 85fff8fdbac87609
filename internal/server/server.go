package server

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PhucNguyen204/fluentsearch/internal/records"
	"github.com/PhucNguyen204/fluentsearch/pkg/expr"
	"github.com/PhucNguyen204/fluentsearch/pkg/querydef"
	"github.com/PhucNguyen204/fluentsearch/pkg/search"
	"github.com/PhucNguyen204/fluentsearch/pkg/sqlsource"
)

const maxBodyBytes = 16 << 20

// ErrReadOnly is returned when the dataset lives in a database and the
// caller tries to replace it.
var ErrReadOnly = errors.New("dataset is backed by a database and cannot be replaced")

// Options configures an AppServer. When DB is set the dataset is read from
// Table through SQL; otherwise Records is served from memory.
type Options struct {
	Records []records.Record

	DB      *sql.DB
	Dialect sqlsource.Dialect
	Table   string
	// Columns are selected from Table and searched when a definition lists
	// no fields.
	Columns []string
	Mapping map[string]string

	Workers int
}

type AppServer struct {
	db      *sql.DB
	workers int

	mu      sync.RWMutex // protects dataset swap
	recs    []records.Record
	fields  []string
	src     search.Source[records.Record]
	queries map[string]querydef.Definition
	order   []string

	searches atomic.Int64
	batches  atomic.Int64
	matches  atomic.Int64
	lastNano atomic.Int64
}

func NewAppServer(opts Options) (*AppServer, error) {
	s := &AppServer{db: opts.DB, workers: opts.Workers, queries: map[string]querydef.Definition{}}
	if s.workers <= 0 {
		s.workers = 4
	}
	if opts.DB == nil {
		s.setRecords(opts.Records)
		return s, nil
	}
	src, err := sqlsource.New(sqlsource.Config[records.Record]{
		DB:      opts.DB,
		Table:   opts.Table,
		Columns: opts.Columns,
		Mapping: expr.NewFieldMapping(opts.Mapping),
		Dialect: opts.Dialect,
		Scan:    sqlsource.ScanMap,
	})
	if err != nil {
		return nil, err
	}
	s.src = src
	s.fields = append([]string(nil), opts.Columns...)
	return s, nil
}

// RegisterRoutes wires HTTP handlers.
func (s *AppServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/records", s.handleRecords)
	mux.HandleFunc("/api/v1/search", s.handleSearch)
	mux.HandleFunc("/api/v1/search/batch", s.handleBatch)
	mux.HandleFunc("/api/v1/queries", s.handleQueries)
	mux.HandleFunc("/api/v1/queries/run", s.handleRunQueries)
}

func (s *AppServer) Router() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *AppServer) setRecords(recs []records.Record) {
	src := search.FromSlice(recs)
	fields := records.StringKeys(recs)
	s.mu.Lock()
	s.recs, s.src, s.fields = recs, src, fields
	s.mu.Unlock()
}

// dataset returns a consistent snapshot of the source and its fields.
func (s *AppServer) dataset() (search.Source[records.Record], []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.src, s.fields
}

// ---- Handlers ----

func (s *AppServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *AppServer) handleStats(w http.ResponseWriter, r *http.Request) {
	type statsResp struct {
		Backend    string `json:"backend"`
		Records    int    `json:"records"`
		Fields     int    `json:"fields"`
		Queries    int    `json:"queries"`
		Searches   int64  `json:"searches"`
		Batches    int64  `json:"batches"`
		Matches    int64  `json:"matches"`
		LastTookMs int64  `json:"last_took_ms"`
	}
	s.mu.RLock()
	resp := statsResp{
		Backend: "memory",
		Records: len(s.recs),
		Fields:  len(s.fields),
		Queries: len(s.queries),
	}
	s.mu.RUnlock()
	if s.db != nil {
		resp.Backend = "sql"
		resp.Records = -1
	}
	resp.Searches = s.searches.Load()
	resp.Batches = s.batches.Load()
	resp.Matches = s.matches.Load()
	resp.LastTookMs = time.Duration(s.lastNano.Load()).Milliseconds()
	writeJSON(w, http.StatusOK, resp)
}

// handleRecords supports GET (count) and POST (replace the dataset). The
// POST body is JSON, NDJSON or YAML, chosen by Content-Type.
func (s *AppServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		n, fields := len(s.recs), s.fields
		s.mu.RUnlock()
		writeJSON(w, http.StatusOK, map[string]any{"records": n, "fields": fields})
	case http.MethodPost:
		if s.db != nil {
			writeErr(w, http.StatusConflict, ErrReadOnly)
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		f := records.ParseFormat(mediaType(r))
		if f == records.FormatUnknown {
			f = records.FormatJSON
		}
		recs, err := records.Decode(bytes.NewReader(body), f)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid %s records: %w", f, err))
			return
		}
		s.setRecords(recs)
		log.Printf("dataset replaced: records=%d format=%s", len(recs), f)
		writeJSON(w, http.StatusOK, map[string]any{"records": len(recs)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSearch runs one definition given in the body (YAML or JSON).
func (s *AppServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	def, err := querydef.Parse(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if def.ID == "" {
		def.ID = "adhoc"
	}
	start := time.Now()
	src, fields := s.dataset()
	q, err := querydef.Build(def, src, fields)
	if err != nil {
		writeErr(w, statusOf(err), err)
		return
	}
	res, err := q.Execute(r.Context())
	if err != nil {
		writeErr(w, statusOf(err), err)
		return
	}
	s.record(1, res.Count, time.Since(start))
	log.Printf("search id=%s matches=%d took=%s", res.ID, res.Count, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

// handleBatch runs a list of definitions concurrently.
func (s *AppServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
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
	s.runBatch(w, r, defs)
}

func (s *AppServer) runBatch(w http.ResponseWriter, r *http.Request, defs []querydef.Definition) {
	start := time.Now()
	src, fields := s.dataset()
	res, err := querydef.ExecuteBatch(r.Context(), defs, src, fields, s.workers)
	if err != nil {
		writeErr(w, statusOf(err), err)
		return
	}
	total := 0
	for _, x := range res {
		total += x.Count
	}
	s.batches.Add(1)
	s.record(len(res), total, time.Since(start))
	log.Printf("batch queries=%d matches=%d took=%s", len(res), total, time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{"results": res})
}

func (s *AppServer) record(searches, matches int, took time.Duration) {
	s.searches.Add(int64(searches))
	s.matches.Add(int64(matches))
	s.lastNano.Store(int64(took))
}

// ---- Helpers ----

func statusOf(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidArgument),
		errors.Is(err, querydef.ErrInvalidDefinition),
		errors.Is(err, querydef.ErrNoFields),
		errors.Is(err, sqlsource.ErrUntranslatable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// readBody reads the request body, gunzipping it when Content-Encoding says
// so.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	var rd io.Reader = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(rd)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		rd = io.LimitReader(zr, maxBodyBytes)
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("empty body")
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON error: %v", err)
	}
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
