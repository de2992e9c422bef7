package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
)

func TestParseTrendRange(t *testing.T) {
	tests := []struct {
		in      string
		want    TrendRange
		wantErr bool
	}{
		{in: "", want: TrendMonthly},
		{in: "monthly", want: TrendMonthly},
		{in: " Half-Year ", want: TrendHalfYear},
		{in: "halfyear", want: TrendHalfYear},
		{in: "YEARLY", want: TrendYearly},
		{in: "weekly", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTrendRange(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTrendRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrendRange_Window(t *testing.T) {
	tests := []struct {
		r         TrendRange
		wantSince time.Time
		wantG     Granularity
	}{
		{TrendMonthly, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), GranularityDay},
		{TrendHalfYear, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), GranularityMonth},
		{TrendYearly, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), GranularityMonth},
	}
	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			since, g := tt.r.Window(fixedNow)
			assert.Equal(t, tt.wantSince, since)
			assert.Equal(t, tt.wantG, g)
		})
	}

	t.Run("crosses year start", func(t *testing.T) {
		since, _ := TrendMonthly.Window(time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), since)
	})
}

func TestBucketRevenue(t *testing.T) {
	since := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	orders := []Order{
		{Status: StatusPending, TotalPrice: 100, CreatedAt: time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)},
		{Status: StatusDelivered, TotalPrice: 250, CreatedAt: time.Date(2025, 6, 14, 23, 0, 0, 0, time.UTC)},
		{Status: StatusShipped, TotalPrice: 40, CreatedAt: time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)},
		{Status: StatusCancelled, TotalPrice: 999, CreatedAt: time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)},
		{Status: StatusDelivered, TotalPrice: 777, CreatedAt: time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC)},
	}

	t.Run("daily", func(t *testing.T) {
		got := BucketRevenue(orders, since, GranularityDay)
		assert.Equal(t, []RevenuePoint{
			{Start: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), Revenue: 40, Orders: 1},
			{Start: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), Revenue: 350, Orders: 2},
		}, got)
		assert.Equal(t, "2025-06-14", GranularityDay.Label(got[1].Start))
	})
	t.Run("monthly", func(t *testing.T) {
		got := BucketRevenue(orders, since, GranularityMonth)
		assert.Equal(t, []RevenuePoint{
			{Start: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), Revenue: 40, Orders: 1},
			{Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Revenue: 350, Orders: 2},
		}, got)
		assert.Equal(t, "2025-04", GranularityMonth.Label(got[0].Start))
	})
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, BucketRevenue(nil, since, GranularityDay))
	})
}

func TestService_RevenueTrend(t *testing.T) {
	ctx := context.Background()
	svc, orders, _ := newTestService(t, nil, Config{})
	orders.orders["a"] = &Order{ID: "a", Status: StatusPending, TotalPrice: 120, CreatedAt: fixedNow.Add(-48 * time.Hour)}
	orders.orders["b"] = &Order{ID: "b", Status: StatusCancelled, TotalPrice: 500, CreatedAt: fixedNow}
	orders.orders["c"] = &Order{ID: "c", Status: StatusDelivered, TotalPrice: 80, CreatedAt: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)}

	_, err := svc.RevenueTrend(ctx, customer, TrendMonthly)
	require.ErrorIs(t, err, auth.ErrForbidden)

	monthly, err := svc.RevenueTrend(ctx, admin, TrendMonthly)
	require.NoError(t, err)
	assert.Equal(t, GranularityDay, monthly.Granularity)
	require.Len(t, monthly.Points, 1)
	assert.Equal(t, int64(120), monthly.Points[0].Revenue)

	half, err := svc.RevenueTrend(ctx, admin, TrendHalfYear)
	require.NoError(t, err)
	assert.Equal(t, GranularityMonth, half.Granularity)
	require.Len(t, half.Points, 2)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), half.Points[0].Start)
	assert.Equal(t, int64(80), half.Points[0].Revenue)
}
