package model

import "time"

// Subscription is created once per completed payment and only ever mutated to
// flip Active off on expiry.
type Subscription struct {
	ID          string
	UserID      int64
	Tier        Tier
	Ceiling     Limit // granted at purchase
	StarsPaid   int64
	PurchasedAt time.Time
	ExpiresAt   *time.Time
	Active      bool
	PaymentID   string
}

// Effective reports whether s contributes to the user's ceiling at now.
func (s *Subscription) Effective(now time.Time) bool {
	if s == nil || !s.Active {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}

// Quota is the answer to "how many playlists may this user own".
type Quota struct {
	Owned     int   `json:"owned"`
	Limit     Limit `json:"limit"`
	CanCreate bool  `json:"can_create"`
	Tier      Tier  `json:"tier"`
}
