package querydef

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhucNguyen204/fluentsearch/internal/records"
)

func writeFile(p, s string) error { return os.WriteFile(p, []byte(s), 0o644) }

func dataset(t *testing.T) []Record {
	t.Helper()
	recs, err := records.Load(filepath.Join("..", "..", "testdata", "records"))
	require.NoError(t, err)
	return recs
}

func queries(t *testing.T) map[string]Definition {
	t.Helper()
	defs, err := LoadDir(filepath.Join("..", "..", "testdata", "queries"))
	require.NoError(t, err)
	out := map[string]Definition{}
	for _, d := range defs {
		out[d.ID] = d
	}
	return out
}

func matchIDs(r Result) []string {
	out := []string{}
	for _, m := range r.Matches {
		out = append(out, m.Record["id"].(string))
	}
	return out
}

func TestRun_Contains(t *testing.T) {
	res, err := Run(context.Background(), queries(t)["contains-cd"], dataset(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "5", "6"}, matchIDs(res))
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, "Either string field contains cd", res.Title)
	assert.Contains(t, res.Query, `x.stringOne.Contains("cd")`)
}

func TestRun_AllFields(t *testing.T) {
	res, err := Run(context.Background(), queries(t)["Any string field contains AB"], dataset(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "5", "6"}, matchIDs(res))
}

func TestRun_DistanceWithAliases(t *testing.T) {
	res, err := Run(context.Background(), queries(t)["near-abce"], dataset(t))
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "1", m.Record["id"])
	assert.Equal(t, []int{1, 4, 4}, m.Distances)
	assert.Equal(t, 1, *m.MinimumDistance)
	assert.Equal(t, 4, *m.MaximumDistance)
}

func TestRun_DistanceSortedWithLimit(t *testing.T) {
	res, err := Run(context.Background(), queries(t)["closest"], dataset(t))
	require.NoError(t, err)
	// ijkl gần ijkm nhất; các bản ghi còn lại cùng khoảng cách giữ thứ tự nạp
	assert.Equal(t, []string{"3", "7"}, matchIDs(res))
	assert.True(t, res.Truncated)
	assert.Equal(t, 2, res.Count)
}

func TestRun_DistanceMax(t *testing.T) {
	bound := 1
	def := Definition{ID: "max", Fields: []string{"stringOne"}, Distance: &DistanceSpec{
		Of: []string{"stringOne"}, To: []Target{{Text: strp("ijkm")}}, Max: &bound,
	}}
	res, err := Run(context.Background(), def, dataset(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, matchIDs(res))
}

func TestRun_Limit(t *testing.T) {
	def := Definition{ID: "limit", Fields: []string{"stringTwo"}, Limit: 2}
	res, err := Run(context.Background(), def, dataset(t))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Truncated)

	def.Limit = 7
	res, err = Run(context.Background(), def, dataset(t))
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)
	assert.False(t, res.Truncated)
}

func TestRun_NoFields(t *testing.T) {
	_, err := Run(context.Background(), Definition{ID: "x"}, nil)
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestRunBatch_KeepsOrder(t *testing.T) {
	qs := queries(t)
	defs := []Definition{qs["near-abce"], qs["contains-cd"], qs["closest"], qs["Any string field contains AB"]}
	res, err := RunBatch(context.Background(), defs, dataset(t), 3)
	require.NoError(t, err)
	require.Len(t, res, 4)
	for i, d := range defs {
		assert.Equal(t, d.ID, res[i].ID)
	}
	assert.Equal(t, []string{"1", "5", "6"}, matchIDs(res[1]))
}

func TestRunBatch_Error(t *testing.T) {
	defs := []Definition{{ID: "ok", Fields: []string{"id"}}, {ID: "bad", Fields: []string{""}}}
	_, err := RunBatch(context.Background(), defs, dataset(t), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query bad")
}

func strp(s string) *string { return &s }
