package dto

import "time"

// SystemMetrics is a point-in-time aggregate of process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	WebhookEventsTotal       uint64    `json:"webhook_events_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// DashboardSummary is the cached landing-page summary.
type DashboardSummary struct {
	ContactCount          int       `json:"contact_count"`
	ActiveMembershipCount int       `json:"active_membership_count"`
	UpcomingBookingCount  int       `json:"upcoming_booking_count"`
	EntriesThisMonth      int       `json:"entries_this_month"`
	GeneratedAt           time.Time `json:"generated_at"`
}
