package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
)

// SubscriptionPeriod is the entitlement one fulfilled payment buys.
const SubscriptionPeriod = 30 * 24 * time.Hour

// Subscription is the singleton entitlement of an organization.
type Subscription struct {
	OrganizationID string
	Plan           PlanTier
	Status         SubscriptionStatus
	StartDate      *time.Time
	ExpiryDate     *time.Time
}

// IsActiveAt reports whether the entitlement is still running at now.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s != nil && s.Status == SubscriptionStatusActive && s.ExpiryDate != nil && s.ExpiryDate.After(now)
}

// Extend returns the subscription after applying one paid period for plan.
// A running subscription is extended from its expiry; anything else restarts at now.
func (s Subscription) Extend(plan PlanTier, now time.Time) Subscription {
	out := s
	if s.IsActiveAt(now) {
		exp := s.ExpiryDate.Add(SubscriptionPeriod)
		out.ExpiryDate = &exp
	} else {
		start := now
		exp := now.Add(SubscriptionPeriod)
		out.StartDate = &start
		out.ExpiryDate = &exp
	}
	out.Plan = plan
	out.Status = SubscriptionStatusActive
	return out
}
