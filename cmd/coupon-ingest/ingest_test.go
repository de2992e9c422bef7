package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pickle-storefront/internal/domain/coupon"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

var testCfg = ingestConfig{MinSources: 2, BloomCapacity: 1000, BloomFPR: 0.0001}

func codes(rules []coupon.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Code
	}
	return out
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "# partner A", "SPICY15:15", "MANGO10:10", "ONLYA:30", "nopercent"),
		writeGz(t, dir, "b.gz", "spicy15:12", "", "MANGO10:10", "BADPCT:95"),
		writeGz(t, dir, "c.gz", "MANGO10:10", "BADPCT:95", "ONLYC:5"),
	}

	rules, err := collect(context.Background(), files, testCfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"MANGO10", "SPICY15"}, codes(rules))
	// First file wins on conflicting percents.
	assert.Equal(t, 15, rules[1].Percent)

	cfg := testCfg
	cfg.MinSources = 3
	rules, err = collect(context.Background(), files, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"MANGO10"}, codes(rules))

	cfg.MinSources = 1
	rules, err = collect(context.Background(), files, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"MANGO10", "ONLYA", "ONLYC", "SPICY15"}, codes(rules))
}

func TestCollect_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeGz(t, dir, "a.gz", "X1:10")

	_, err := collect(context.Background(), nil, testCfg)
	assert.Error(t, err)

	_, err = collect(context.Background(), []string{a}, testCfg)
	assert.ErrorContains(t, err, "min sources")

	_, err = collect(context.Background(), []string{a, filepath.Join(dir, "missing.gz")}, testCfg)
	assert.Error(t, err)
}

type recordingRepo struct {
	batches [][]coupon.Rule
}

func (r *recordingRepo) List(context.Context) ([]coupon.Rule, error) { return nil, nil }

func (r *recordingRepo) Upsert(_ context.Context, rules []coupon.Rule) (int64, error) {
	r.batches = append(r.batches, rules)
	return int64(len(rules)), nil
}

func TestUpsertBatched(t *testing.T) {
	rules := make([]coupon.Rule, 5)
	for i := range rules {
		rules[i] = coupon.Rule{Code: "C" + string(rune('A'+i)), Percent: 10}
	}
	repo := &recordingRepo{}

	n, err := upsertBatched(context.Background(), repo, rules, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.Len(t, repo.batches, 3)
	assert.Len(t, repo.batches[2], 1)
}
