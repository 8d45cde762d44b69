package models

import (
	"fmt"
	"time"
)

// Tier is a usage class determining quota limits.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierFree, TierPremium:
		return t, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Window is a rolling time bucket against which counters are tracked.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// Windows lists windows from shortest to longest.
var Windows = []Window{WindowDaily, WindowWeekly, WindowMonthly}

// ParseWindow validates a window name.
func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case WindowDaily, WindowWeekly, WindowMonthly:
		return w, nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// FeatureLimits maps window to the maximum count allowed in it.
// A missing window is not limited.
type FeatureLimits map[Window]int

// TierLimits maps feature to its window limits.
// A missing feature is not limited.
type TierLimits map[Feature]FeatureLimits

// UsageRecord is the persisted ledger state of one user or installation.
type UsageRecord struct {
	UserID      string                     `json:"user_id"`
	Tier        Tier                       `json:"tier"`
	Counters    map[Window]map[Feature]int `json:"counters"`
	WindowStart map[Window]time.Time       `json:"window_start"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// NewUsageRecord returns a free-tier record whose windows all start at now.
func NewUsageRecord(userID string, now time.Time) *UsageRecord {
	rec := &UsageRecord{
		UserID:      userID,
		Tier:        TierFree,
		Counters:    make(map[Window]map[Feature]int, len(Windows)),
		WindowStart: make(map[Window]time.Time, len(Windows)),
		UpdatedAt:   now,
	}
	for _, w := range Windows {
		rec.Counters[w] = make(map[Feature]int)
		rec.WindowStart[w] = now
	}
	return rec
}

// Count returns the counter for feature in window.
func (r *UsageRecord) Count(w Window, f Feature) int {
	return r.Counters[w][f]
}

// UsageStatus shows current usage of one feature against one window limit.
type UsageStatus struct {
	Feature   Feature   `json:"feature"`
	Window    Window    `json:"window"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
