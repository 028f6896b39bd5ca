package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/dto"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
)

type counterStub struct {
	contacts    int
	memberships int
	bookings    int
	entries     int
	calls       int
}

func (s *counterStub) Count(ctx context.Context) (int, error) {
	s.calls++
	return s.contacts, nil
}

func (s *counterStub) CountActiveOn(ctx context.Context, day time.Time) (int, error) {
	return s.memberships, nil
}

func (s *counterStub) CountUpcoming(ctx context.Context, day time.Time) (int, error) {
	return s.bookings, nil
}

func (s *counterStub) CountEntriesSince(ctx context.Context, day time.Time) (int, error) {
	return s.entries, nil
}

type cacheStub struct {
	stored  map[string]interface{}
	hit     *dto.DashboardSummary
	sets    int
	deletes int
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.hit == nil {
		return appErrors.ErrCacheMiss
	}
	*dest.(*dto.DashboardSummary) = *s.hit
	return nil
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.stored == nil {
		s.stored = map[string]interface{}{}
	}
	s.stored[key] = value
	s.sets++
	return nil
}

func (s *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deletes++
	return nil
}

func TestSummaryComputesAndCaches(t *testing.T) {
	counts := &counterStub{contacts: 120, memberships: 34, bookings: 6, entries: 11}
	cache := &cacheStub{}
	svc := NewDashboardService(counts, counts, counts, counts, cache, time.Minute, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 120, summary.ContactCount)
	assert.Equal(t, 34, summary.ActiveMembershipCount)
	assert.Equal(t, 6, summary.UpcomingBookingCount)
	assert.Equal(t, 11, summary.EntriesThisMonth)
	assert.Equal(t, 1, cache.sets)
	assert.Contains(t, cache.stored, dashboardCacheKey)
}

func TestSummaryServedFromCache(t *testing.T) {
	counts := &counterStub{contacts: 999}
	cache := &cacheStub{hit: &dto.DashboardSummary{ContactCount: 42}}
	svc := NewDashboardService(counts, counts, counts, counts, cache, time.Minute, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 42, summary.ContactCount)
	assert.Zero(t, counts.calls)
	assert.Zero(t, cache.sets)
}

func TestInvalidateDropsCachedSummary(t *testing.T) {
	cache := &cacheStub{}
	counts := &counterStub{}
	svc := NewDashboardService(counts, counts, counts, counts, cache, time.Minute, nil)

	svc.Invalidate(context.Background())
	assert.Equal(t, 1, cache.deletes)
}
