package coupon

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
)

// Table is an immutable code → rule lookup built once at startup and shared
// read-only between requests.
type Table struct {
	rules map[string]Rule
}

// NewTable validates rules and builds a Table. Codes are normalized before
// insertion; duplicates after normalization are rejected. An empty rule set
// yields DefaultRules.
func NewTable(rules ...Rule) (*Table, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		r.Code = Normalize(r.Code)
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m[r.Code]; dup {
			return nil, &RuleError{Code: r.Code, Reason: "duplicate code"}
		}
		m[r.Code] = r
	}
	return &Table{rules: m}, nil
}

// LoadTable merges the configured base rules over persisted codes. A
// configured code replaces a stored one with the same name, and an empty
// configuration falls back to DefaultRules.
func LoadTable(ctx context.Context, base []Rule, repo Repository) (*Table, error) {
	if len(base) == 0 {
		base = DefaultRules()
	}
	stored, err := repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list stored coupons")
	}

	merged := make(map[string]Rule, len(base)+len(stored))
	for _, r := range stored {
		merged[Normalize(r.Code)] = r
	}
	for _, r := range base {
		merged[Normalize(r.Code)] = r
	}

	rules := make([]Rule, 0, len(merged))
	for code, r := range merged {
		r.Code = code
		rules = append(rules, r)
	}
	return NewTable(rules...)
}

// Lookup resolves a code case-insensitively. Unknown codes yield
// ErrInvalidCoupon.
func (t *Table) Lookup(code string) (Rule, error) {
	r, ok := t.rules[Normalize(code)]
	if !ok {
		return Rule{}, ErrInvalidCoupon
	}
	return r, nil
}

// Rules returns a copy of all rules sorted by code.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of codes in the table.
func (t *Table) Len() int { return len(t.rules) }
