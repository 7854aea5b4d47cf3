package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"telegram-playlist-bot/internal/domain"
)

// Tier is the closed, ordered set of entitlement levels.
type Tier uint8

const (
	TierBase Tier = iota
	Tier5
	Tier10
	TierUnlimited
)

var tierNames = [...]string{"base", "tier_5", "tier_10", "unlimited"}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "tier(" + strconv.Itoa(int(t)) + ")"
}

func (t Tier) Valid() bool { return t <= TierUnlimited }

// Paid reports whether t can be purchased.
func (t Tier) Paid() bool { return t > TierBase && t.Valid() }

func ParseTier(s string) (Tier, error) {
	for i, n := range tierNames {
		if n == s {
			return Tier(i), nil
		}
	}
	return TierBase, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidArgument, s)
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Limit is a playlist ceiling. The unlimited sentinel is distinct from every
// finite value and compares above all of them.
type Limit struct {
	n         int
	unlimited bool
}

var Unlimited = Limit{unlimited: true}

func Finite(n int) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

func (l Limit) IsUnlimited() bool { return l.unlimited }

// Value returns the finite ceiling, or -1 when unlimited.
func (l Limit) Value() int {
	if l.unlimited {
		return -1
	}
	return l.n
}

// LimitFromValue is the inverse of Value.
func LimitFromValue(v int) Limit {
	if v < 0 {
		return Unlimited
	}
	return Finite(v)
}

// Allows reports whether a user owning owned playlists may create one more.
func (l Limit) Allows(owned int) bool { return l.unlimited || owned < l.n }

func (l Limit) Less(o Limit) bool {
	switch {
	case l.unlimited:
		return false
	case o.unlimited:
		return true
	default:
		return l.n < o.n
	}
}

func MaxLimit(a, b Limit) Limit {
	if a.Less(b) {
		return b
	}
	return a
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.Itoa(l.n)
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.Itoa(l.n)), nil
}

func (l *Limit) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("%w: limit %q", domain.ErrInvalidArgument, s)
		}
		*l = Unlimited
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*l = Finite(n)
	return nil
}

// TierSpec is the configured offer for one paid tier. A zero Duration means
// the subscription never expires.
type TierSpec struct {
	Tier       Tier
	Ceiling    Limit
	PriceStars int64
	Duration   time.Duration
}

// TierCatalog maps tiers to ceilings and prices. Ceilings strictly increase
// with tier order.
type TierCatalog struct {
	base  Limit
	specs map[Tier]TierSpec
}

func NewTierCatalog(baseLimit int, specs ...TierSpec) (*TierCatalog, error) {
	if baseLimit < 0 {
		return nil, fmt.Errorf("%w: base limit %d", domain.ErrInvalidArgument, baseLimit)
	}
	c := &TierCatalog{base: Finite(baseLimit), specs: make(map[Tier]TierSpec, len(specs))}
	for _, s := range specs {
		if !s.Tier.Paid() {
			return nil, fmt.Errorf("%w: tier %s is not purchasable", domain.ErrInvalidArgument, s.Tier)
		}
		if s.PriceStars <= 0 {
			return nil, fmt.Errorf("%w: tier %s needs a positive price", domain.ErrInvalidArgument, s.Tier)
		}
		if (s.Tier == TierUnlimited) != s.Ceiling.IsUnlimited() {
			return nil, fmt.Errorf("%w: tier %s ceiling %s", domain.ErrInvalidArgument, s.Tier, s.Ceiling)
		}
		if _, dup := c.specs[s.Tier]; dup {
			return nil, fmt.Errorf("%w: tier %s configured twice", domain.ErrInvalidArgument, s.Tier)
		}
		c.specs[s.Tier] = s
	}
	prev := c.base
	for t := Tier5; t <= TierUnlimited; t++ {
		s, ok := c.specs[t]
		if !ok {
			continue
		}
		if !prev.Less(s.Ceiling) {
			return nil, fmt.Errorf("%w: tier %s ceiling %s must exceed %s", domain.ErrInvalidArgument, t, s.Ceiling, prev)
		}
		prev = s.Ceiling
	}
	return c, nil
}

// DefaultTierCatalog is the stock offer: 5, 10 and unlimited playlists for
// 100, 200 and 500 stars, without expiry.
func DefaultTierCatalog(baseLimit int) (*TierCatalog, error) {
	return NewTierCatalog(baseLimit,
		TierSpec{Tier: Tier5, Ceiling: Finite(5), PriceStars: 100},
		TierSpec{Tier: Tier10, Ceiling: Finite(10), PriceStars: 200},
		TierSpec{Tier: TierUnlimited, Ceiling: Unlimited, PriceStars: 500},
	)
}

func (c *TierCatalog) Base() Limit { return c.base }

func (c *TierCatalog) Spec(t Tier) (TierSpec, bool) {
	s, ok := c.specs[t]
	return s, ok
}

// Ceiling returns the ceiling granted by t. Unknown tiers fall back to base.
func (c *TierCatalog) Ceiling(t Tier) Limit {
	if s, ok := c.specs[t]; ok {
		return s.Ceiling
	}
	return c.base
}

// Offers lists purchasable tiers in ascending order.
func (c *TierCatalog) Offers() []TierSpec {
	out := make([]TierSpec, 0, len(c.specs))
	for t := Tier5; t <= TierUnlimited; t++ {
		if s, ok := c.specs[t]; ok {
			out = append(out, s)
		}
	}
	return out
}
