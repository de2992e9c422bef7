package order

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
)

// TrendRange selects the window of the revenue trend.
type TrendRange string

const (
	TrendMonthly  TrendRange = "monthly"
	TrendHalfYear TrendRange = "half-year"
	TrendYearly   TrendRange = "yearly"
)

// ErrInvalidTrendRange is returned for an unknown range name.
var ErrInvalidTrendRange = errors.New("range must be monthly, half-year or yearly")

// ParseTrendRange accepts the range names case-insensitively. An empty
// value selects TrendMonthly.
func ParseTrendRange(s string) (TrendRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TrendMonthly):
		return TrendMonthly, nil
	case string(TrendHalfYear), "halfyear":
		return TrendHalfYear, nil
	case string(TrendYearly):
		return TrendYearly, nil
	}
	return "", ErrInvalidTrendRange
}

// Granularity is the bucket width of a trend. Values are valid
// date_trunc units.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// Truncate returns the start of the bucket holding t, in UTC.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == GranularityMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Label formats a bucket start for display.
func (g Granularity) Label(t time.Time) string {
	if g == GranularityMonth {
		return t.UTC().Format("2006-01")
	}
	return t.UTC().Format("2006-01-02")
}

// Window returns where the trend starts and how it is bucketed. The monthly
// trend covers the current and two previous calendar months day by day;
// half-year and yearly cover six and twelve months month by month.
func (r TrendRange) Window(now time.Time) (time.Time, Granularity) {
	now = now.UTC()
	back, g := 2, GranularityDay
	switch r {
	case TrendHalfYear:
		back, g = 5, GranularityMonth
	case TrendYearly:
		back, g = 11, GranularityMonth
	}
	return time.Date(now.Year(), now.Month()-time.Month(back), 1, 0, 0, 0, 0, time.UTC), g
}

// RevenuePoint is the revenue of one bucket.
type RevenuePoint struct {
	Start   time.Time
	Revenue int64
	Orders  int
}

// Trend is the bucketed revenue of non-cancelled orders since Since.
type Trend struct {
	Range       TrendRange
	Granularity Granularity
	Since       time.Time
	Points      []RevenuePoint
}

// BucketRevenue sums TotalPrice of non-cancelled orders created at or after
// since into buckets of width g, oldest first. Empty buckets are omitted.
func BucketRevenue(orders []Order, since time.Time, g Granularity) []RevenuePoint {
	byStart := make(map[time.Time]*RevenuePoint)
	for _, o := range orders {
		if o.Status == StatusCancelled || o.CreatedAt.Before(since) {
			continue
		}
		start := g.Truncate(o.CreatedAt)
		p, ok := byStart[start]
		if !ok {
			p = &RevenuePoint{Start: start}
			byStart[start] = p
		}
		p.Revenue += o.TotalPrice
		p.Orders++
	}

	out := make([]RevenuePoint, 0, len(byStart))
	for _, p := range byStart {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// RevenueTrend reports revenue over the chosen range. Administrators only.
func (s *Service) RevenueTrend(ctx context.Context, id auth.Identity, r TrendRange) (*Trend, error) {
	if err := id.RequireAdmin(); err != nil {
		return nil, err
	}
	since, g := r.Window(s.now())
	points, err := s.orders.Revenue(ctx, since, g)
	if err != nil {
		return nil, errors.Wrap(err, "revenue trend")
	}
	return &Trend{Range: r, Granularity: g, Since: since, Points: points}, nil
}
