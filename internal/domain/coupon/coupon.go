package coupon

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Percent bounds accepted for a coupon rule.
const (
	MinPercent = 1
	MaxPercent = 90
)

// ErrInvalidCoupon is returned when a code is not present in the coupon table.
var ErrInvalidCoupon = errors.New("enter valid coupon code")

// Rule maps a coupon code to the percentage it takes off the items price.
type Rule struct {
	Code        string
	Percent     int
	Description string
}

// Validate checks the code format and the percent range.
func (r Rule) Validate() error {
	if r.Code == "" {
		return &RuleError{Code: r.Code, Reason: "code is empty"}
	}
	for _, c := range r.Code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return &RuleError{Code: r.Code, Reason: "code must be uppercase alphanumeric"}
		}
	}
	if r.Percent < MinPercent || r.Percent > MaxPercent {
		return &RuleError{Code: r.Code, Reason: fmt.Sprintf("percent %d outside [%d, %d]", r.Percent, MinPercent, MaxPercent)}
	}
	return nil
}

// RuleError describes why a configured coupon rule was rejected.
type RuleError struct {
	Code   string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("coupon %q: %s", e.Code, e.Reason)
}

// Repository persists promotional codes managed outside of static config.
type Repository interface {
	List(ctx context.Context) ([]Rule, error)
	Upsert(ctx context.Context, rules []Rule) (int64, error)
}

// DefaultRules is the table used when no codes are configured.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "PICKLES10", Percent: 10, Description: "10% off"},
		{Code: "DEAL20", Percent: 20, Description: "20% off"},
		{Code: "WELCOME5", Percent: 5, Description: "5% off"},
	}
}

// Normalize trims and upper-cases a user supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ParseCodes parses a comma separated list of CODE:PERCENT pairs, e.g.
// "PICKLES10:10,DEAL20:20". Empty tokens are ignored; fractional percents
// are rounded half up. Any malformed token fails the whole list.
func ParseCodes(raw string) ([]Rule, error) {
	var rules []Rule
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		rule, err := ParseRule(token)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseRule parses a single CODE:PERCENT token.
func ParseRule(token string) (Rule, error) {
	code, pct, ok := strings.Cut(token, ":")
	if !ok {
		return Rule{}, &RuleError{Code: token, Reason: "expected CODE:PERCENT"}
	}
	code = Normalize(code)

	d, err := decimal.NewFromString(strings.TrimSpace(pct))
	if err != nil {
		return Rule{}, &RuleError{Code: code, Reason: fmt.Sprintf("percent %q is not a number", pct)}
	}
	rule := Rule{
		Code:        code,
		Percent:     int(d.Round(0).IntPart()),
		Description: fmt.Sprintf("%s%% off", d.Round(0).String()),
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}
