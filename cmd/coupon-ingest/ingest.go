package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pickle-storefront/internal/domain/coupon"
)

const progressEvery = 1_000_000

// maxSources bounds the number of files because membership is tracked in a
// uint bitmask.
const maxSources = bits.UintSize

// ingestConfig controls a two-pass scan over partner code lists.
type ingestConfig struct {
	// MinSources is the number of distinct files a code must appear in.
	MinSources int
	// BloomCapacity is the expected number of codes per file.
	BloomCapacity uint
	BloomFPR      float64
}

// sighting is a code seen in a set of files. Percent comes from the first
// file, by argument order, that lists the code.
type sighting struct {
	mask      uint
	percent   string
	fileIndex int
}

// collect returns the coupon rules listed by at least cfg.MinSources files.
// Pass one builds a bloom filter per file; pass two keeps only lines that
// enough other filters may contain and then counts exact file membership.
func collect(ctx context.Context, files []string, cfg ingestConfig) ([]coupon.Rule, error) {
	switch {
	case len(files) == 0:
		return nil, errors.New("no input files")
	case len(files) > maxSources:
		return nil, errors.Errorf("at most %d input files are supported", maxSources)
	case cfg.MinSources < 1 || cfg.MinSources > len(files):
		return nil, errors.Errorf("min sources %d must be within [1, %d]", cfg.MinSources, len(files))
	}

	filters, err := buildFilters(ctx, files, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "pass 1")
	}
	found, err := findCandidates(ctx, files, filters, cfg.MinSources)
	if err != nil {
		return nil, errors.Wrap(err, "pass 2")
	}

	merged := make(map[string]sighting)
	for _, perFile := range found {
		for code, s := range perFile {
			cur, ok := merged[code]
			if !ok || s.fileIndex < cur.fileIndex {
				cur.percent, cur.fileIndex = s.percent, s.fileIndex
			}
			cur.mask |= s.mask
			merged[code] = cur
		}
	}

	var (
		rules    []coupon.Rule
		rejected int
	)
	for code, s := range merged {
		if bits.OnesCount(s.mask) < cfg.MinSources {
			continue
		}
		rule, err := coupon.ParseRule(code + ":" + s.percent)
		if err != nil {
			rejected++
			slog.Debug("skipping invalid code", slog.String("code", code), slog.String("error", err.Error()))
			continue
		}
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Code < rules[j].Code })

	slog.Info("codes collected", slog.Int("valid", len(rules)), slog.Int("rejected", rejected))
	return rules, nil
}

func buildFilters(ctx context.Context, files []string, cfg ingestConfig) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomFPR)
			var count uint64
			err := streamCodes(ctx, path, func(code, _ string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "index %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func findCandidates(ctx context.Context, files []string, filters []*bloom.BloomFilter, minSources int) ([]map[string]sighting, error) {
	results := make([]map[string]sighting, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]sighting)
			bit := uint(1) << uint(i)
			err := streamCodes(ctx, path, func(code, percent string) {
				if _, seen := candidates[code]; seen {
					return
				}
				others := 0
				for j, f := range filters {
					if j != i && f.TestString(code) {
						others++
					}
				}
				if others+1 >= minSources {
					candidates[code] = sighting{mask: bit, percent: percent, fileIndex: i}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			slog.Info("pass 2 complete", slog.String("file", path), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// streamCodes calls fn with the normalized code and raw percent of every
// CODE:PERCENT line in a gzip file. Blank lines, comments and lines without
// a percent are skipped.
func streamCodes(ctx context.Context, path string, fn func(code, percent string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for n := 0; scanner.Scan(); n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		code, percent, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fn(coupon.Normalize(code), strings.TrimSpace(percent))
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}

// upsertBatched writes rules in chunks so one huge list does not become a
// single statement.
func upsertBatched(ctx context.Context, repo coupon.Repository, rules []coupon.Rule, batch int) (int64, error) {
	var total int64
	for start := 0; start < len(rules); start += batch {
		end := min(start+batch, len(rules))
		n, err := repo.Upsert(ctx, rules[start:end])
		if err != nil {
			return total, errors.Wrapf(err, "upsert batch at %d", start)
		}
		total += n
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(rules)))
	}
	return total, nil
}
