// Package records loads datasets of loosely typed records from JSON, NDJSON
// and YAML files.
package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is one row of a dataset; nested objects stay map[string]any.
type Record = map[string]any

type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatNDJSON
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatNDJSON:
		return "ndjson"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf guesses the format of a file from its extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".ndjson", ".jsonl":
		return FormatNDJSON
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// ParseFormat maps a user supplied format name (or a content type) to a
// Format.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "json" || s == "application/json":
		return FormatJSON
	case s == "ndjson" || s == "jsonl" || s == "application/x-ndjson":
		return FormatNDJSON
	case s == "yaml" || s == "yml" || strings.HasSuffix(s, "/yaml") || strings.HasSuffix(s, "/x-yaml"):
		return FormatYAML
	default:
		return FormatUnknown
	}
}

var ErrUnknownFormat = errors.New("unknown record format")

// Load reads a single file, or every supported file below a directory in
// lexical order.
func Load(path string) ([]Record, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return LoadFile(path)
	}
	var out []Record
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || FormatOf(p) == FormatUnknown {
			return nil
		}
		recs, err := LoadFile(p)
		if err != nil {
			return err
		}
		out = append(out, recs...)
		return nil
	})
	return out, err
}

func LoadFile(path string) ([]Record, error) {
	f := FormatOf(path)
	if f == FormatUnknown {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := Decode(bytes.NewReader(b), f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Decode reads records in format f. A JSON or YAML document may hold either
// a list of objects or a single object.
func Decode(r io.Reader, f Format) ([]Record, error) {
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return fromAny(v)
	case FormatNDJSON:
		return decodeNDJSON(r)
	case FormatYAML:
		var v any
		if err := yaml.NewDecoder(r).Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		return fromAny(v)
	default:
		return nil, ErrUnknownFormat
	}
}

func decodeNDJSON(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

func fromAny(v any) ([]Record, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []Record{t}, nil
	case []any:
		out := make([]Record, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d is not an object", i)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected an object or a list of objects, got %T", v)
	}
}

// StringKeys returns, sorted, the top-level keys holding a string in at
// least one record.
func StringKeys(recs []Record) []string {
	seen := map[string]struct{}{}
	for _, r := range recs {
		for k, v := range r {
			if _, ok := v.(string); ok {
				seen[k] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
