package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"telegram-playlist-bot/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentIntent binds a user and a tier to a unique payload token. The token is
// the idempotency key of the confirmation callback.
type PaymentIntent struct {
	ID             string
	Payload        string
	UserID         int64
	Tier           Tier
	PriceStars     int64
	Status         PaymentStatus
	AmountPaid     *int64
	ChargeID       *string
	FailureReason  *string
	SubscriptionID *string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func NewPaymentIntent(userID int64, spec TierSpec) (*PaymentIntent, error) {
	if userID <= 0 || !spec.Tier.Paid() || spec.PriceStars <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &PaymentIntent{
		ID:         uuid.NewString(),
		Payload:    NewPayload(userID, spec.Tier),
		UserID:     userID,
		Tier:       spec.Tier,
		PriceStars: spec.PriceStars,
		Status:     PaymentStatusPending,
		CreatedAt:  time.Now(),
	}, nil
}

// NewPayload returns "userID:tier:nonce".
func NewPayload(userID int64, t Tier) string {
	return fmt.Sprintf("%d:%s:%s", userID, t, uuid.NewString())
}

// ParsePayload splits a payload into its user and tier. The nonce is not
// interpreted.
func ParsePayload(payload string) (int64, Tier, error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return 0, TierBase, domain.ErrInvalidArgument
	}
	uid, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || uid <= 0 {
		return 0, TierBase, domain.ErrInvalidArgument
	}
	t, err := ParseTier(parts[1])
	if err != nil {
		return 0, TierBase, err
	}
	return uid, t, nil
}

// Invoice is handed to the payment rail.
type Invoice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceStars  int64  `json:"price_stars"`
	Payload     string `json:"payload"`
}

// PaymentConfirmation is a funds-confirmed event from the payment rail.
type PaymentConfirmation struct {
	Payload    string `json:"payload"`
	AmountPaid int64  `json:"amount_paid"`
	ChargeID   string `json:"charge_id,omitempty"`
}

// Activation is the result of a successful reconcile. It is derived from the
// stored subscription so replays return the same value.
type Activation struct {
	SubscriptionID string     `json:"subscription_id"`
	UserID         int64      `json:"user_id"`
	Tier           Tier       `json:"tier"`
	Ceiling        Limit      `json:"ceiling"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}
