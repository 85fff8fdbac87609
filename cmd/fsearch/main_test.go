package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhucNguyen204/fluentsearch/pkg/querydef"
)

var (
	recordsDir = filepath.Join("..", "..", "testdata", "records")
	queriesDir = filepath.Join("..", "..", "testdata", "queries")
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQuery_Definitions(t *testing.T) {
	out, err := run(t, "query", "--records", recordsDir, "--queries", queriesDir, "--workers", "2")
	require.NoError(t, err)

	var res []querydef.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 4)
	assert.Equal(t, "closest", res[1].ID)
	assert.Equal(t, 3, res[2].Count)
}

func TestQuery_Flags(t *testing.T) {
	out, err := run(t, "query", "--records", recordsDir,
		"--field", "stringOne", "--field", "stringTwo", "--contains", "c", "--starts-with", "A", "--starts-with", "c")
	require.NoError(t, err)

	var res []querydef.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 1)
	got := []string{}
	for _, m := range res[0].Matches {
		got = append(got, m.Record["id"].(string))
	}
	assert.Equal(t, []string{"1", "5", "6"}, got)
}

func TestQuery_FlagsWithDistance(t *testing.T) {
	out, err := run(t, "query", "--records", recordsDir,
		"--field", "stringOne", "--equals", "abcd", "--distance-of", "stringOne", "--distance-to", "abce", "--distance-to", "efgh")
	require.NoError(t, err)

	var res []querydef.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res[0].Matches, 1)
	assert.Equal(t, []int{1, 4}, res[0].Matches[0].Distances)
}

func TestQuery_TermFlagsKeepCommas(t *testing.T) {
	file := filepath.Join(t.TempDir(), "commas.ndjson")
	require.NoError(t, writeFile(file, `{"id":"1","stringOne":"Hanoi, Vietnam"}`+"\n"+`{"id":"2","stringOne":"Vietnam"}`+"\n"))

	out, err := run(t, "query", "--records", file, "--field", "stringOne", "--contains", "hanoi, viet")
	require.NoError(t, err)
	var res []querydef.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 1)
	assert.Equal(t, 1, res[0].Count)

	out, err = run(t, "query", "--records", file, "--field", "stringOne", "--equals", "vietnam", "--distance-of", "stringOne", "--distance-to", "a,b")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res[0].Matches, 1)
	assert.Len(t, res[0].Matches[0].Distances, 1)
}

func TestQuery_RecordsFromEnv(t *testing.T) {
	t.Setenv("FSEARCH_RECORDS", recordsDir)
	out, err := run(t, "query", "--equals", "CASE")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 1`)
}

func TestQuery_ConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "fsearch.yaml")
	require.NoError(t, writeFile(cfg, "records: "+recordsDir+"\nqueries: "+filepath.Join(queriesDir, "contains-cd.yml")+"\n"))
	out, err := run(t, "--config", cfg, "query")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "contains-cd"`)
}

func TestQuery_Errors(t *testing.T) {
	_, err := run(t, "query")
	assert.ErrorContains(t, err, "no records")

	_, err = run(t, "query", "--records", recordsDir)
	assert.ErrorContains(t, err, "nothing to run")

	_, err = run(t, "query", "--records", recordsDir, "--distance-to", "x")
	assert.ErrorContains(t, err, "invalid argument")
}

func TestDistanceCmd(t *testing.T) {
	out, err := run(t, "distance", "kitten", "sitting")
	require.NoError(t, err)
	assert.Equal(t, "distance=3 similarity=0.571\n", out)

	_, err = run(t, "distance", "one")
	assert.Error(t, err)
}

func TestBuildServer_Memory(t *testing.T) {
	v := viper.New()
	v.Set("records", recordsDir)
	v.Set("queries", queriesDir)
	s, closeDB, err := buildServer(context.Background(), v)
	require.NoError(t, err)
	defer closeDB()

	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	res, err := http.Get(ts.URL + "/api/v1/queries/run?id=contains-cd")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestBuildServer_SQLite(t *testing.T) {
	v := viper.New()
	v.Set("db-driver", "sqlite")
	v.Set("db-dsn", filepath.Join(t.TempDir(), "records.db"))
	v.Set("db-table", "records")
	v.Set("db-columns", []string{"id", "string_one", "string_two", "string_three"})
	v.Set("migrations", filepath.Join("..", "..", "testdata", "migrations"))
	s, closeDB, err := buildServer(context.Background(), v)
	require.NoError(t, err)
	defer closeDB()

	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	res, err := http.Post(ts.URL+"/api/v1/search", "application/yaml", strings.NewReader("stages:\n  - eq: IJKL\n"))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out querydef.Result
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	// ijkl: string_three của 1, string_two của 2, string_one của 3
	assert.Equal(t, 3, out.Count)
}

func TestBuildServer_UnknownDriver(t *testing.T) {
	v := viper.New()
	v.Set("db-driver", "oracle")
	v.Set("db-dsn", "x")
	_, _, err := buildServer(context.Background(), v)
	assert.ErrorContains(t, err, "unsupported db driver")
}

func writeFile(p, s string) error { return os.WriteFile(p, []byte(s), 0o644) }
