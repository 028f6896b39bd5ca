package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/dto"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type contactCounter interface {
	Count(ctx context.Context) (int, error)
}

type membershipCounter interface {
	CountActiveOn(ctx context.Context, day time.Time) (int, error)
}

type bookingCounter interface {
	CountUpcoming(ctx context.Context, day time.Time) (int, error)
}

type entryCounter interface {
	CountEntriesSince(ctx context.Context, day time.Time) (int, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService aggregates landing-page counts with a short-lived
// cache in front of the database.
type DashboardService struct {
	contacts    contactCounter
	memberships membershipCounter
	bookings    bookingCounter
	entries     entryCounter
	cache       summaryCache
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardService builds a DashboardService.
func NewDashboardService(contacts contactCounter, memberships membershipCounter, bookings bookingCounter, entries entryCounter, cache summaryCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		contacts:    contacts,
		memberships: memberships,
		bookings:    bookings,
		entries:     entries,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the dashboard counts, served from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardSummary, error) {
	if s.cache != nil {
		var cached dto.DashboardSummary
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	contactCount, err := s.contacts.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count contacts")
	}
	activeMemberships, err := s.memberships.CountActiveOn(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count memberships")
	}
	upcomingBookings, err := s.bookings.CountUpcoming(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
	}
	entriesThisMonth, err := s.entries.CountEntriesSince(ctx, monthStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count program entries")
	}

	summary := &dto.DashboardSummary{
		ContactCount:          contactCount,
		ActiveMembershipCount: activeMemberships,
		UpcomingBookingCount:  upcomingBookings,
		EntriesThisMonth:      entriesThisMonth,
		GeneratedAt:           now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary so the next read recomputes it.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
