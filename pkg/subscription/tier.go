package subscription

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tier is a subscription level. Tiers are totally ordered: a higher value
// grants everything a lower one does.
type Tier int

const (
	TierFree Tier = iota
	TierPro
	TierEnterprise
)

var tierNames = map[Tier]string{
	TierFree:       "free",
	TierPro:        "pro",
	TierEnterprise: "enterprise",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return tierNames[TierFree]
}

// AtLeast reports whether t grants access to features that require other.
func (t Tier) AtLeast(other Tier) bool {
	return t >= other
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	*t = ParseTier(string(b))
	return nil
}

// NormalizeTierName is the canonical spelling of a stored tier name.
func NormalizeTierName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseTier maps a stored tier name to a Tier. Unknown names rank as free.
func ParseTier(s string) Tier {
	switch NormalizeTierName(s) {
	case "pro":
		return TierPro
	case "enterprise":
		return TierEnterprise
	default:
		return TierFree
	}
}

// ParseRequiredTier maps a gate's required tier name to a Tier. Unknown or
// empty names require pro.
func ParseRequiredTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return TierFree
	case "enterprise":
		return TierEnterprise
	default:
		return TierPro
	}
}

// Status is the billing status of a subscription as reported by the payment
// provider. Only StatusActive counts as paid-up.
type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusCanceled   Status = "canceled"
	StatusPastDue    Status = "past_due"
	StatusTrialing   Status = "trialing"
	StatusIncomplete Status = "incomplete"
	StatusUnpaid     Status = "unpaid"
)

// Snapshot is the subscription state used for gating a single request.
type Snapshot struct {
	Tier      Tier       `json:"tier"`
	Status    Status     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt"`

	// TierName is the stored tier name when it is one ParseTier does not
	// know. Such a tier ranks as free but is not the free plan.
	TierName string `json:"-"`
}

// NewSnapshot builds a snapshot from stored values, keeping unknown tier
// names.
func NewSnapshot(tierName string, status Status, expiresAt *time.Time) Snapshot {
	s := Snapshot{Tier: ParseTier(tierName), Status: status, ExpiresAt: expiresAt}
	if name := NormalizeTierName(tierName); name != s.Tier.String() {
		s.TierName = name
	}
	return s
}

// Name is the tier name to report: the stored name for unknown tiers.
func (s Snapshot) Name() string {
	if s.TierName != "" {
		return s.TierName
	}
	return s.Tier.String()
}

// Free reports whether the snapshot is on the free plan. Unknown tiers are
// not.
func (s Snapshot) Free() bool {
	return s.Tier == TierFree && s.TierName == ""
}

// Expired reports whether the snapshot's expiry lies before now.
func (s Snapshot) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Active reports whether the subscription is billed and current.
func (s Snapshot) Active() bool {
	return s.Status == StatusActive
}

// Usable reports whether the snapshot's tier may be used at all. Free is
// always usable; paid tiers must be actively billed.
func (s Snapshot) Usable() bool {
	return s.Free() || s.Active()
}

// snapshotJSON is the wire form of a Snapshot. Tier carries Name().
type snapshotJSON struct {
	Tier      string     `json:"tier"`
	Status    Status     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// MarshalJSON reports the stored name of unknown tiers.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{Tier: s.Name(), Status: s.Status, ExpiresAt: s.ExpiresAt})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var v snapshotJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = NewSnapshot(v.Tier, v.Status, v.ExpiresAt)
	return nil
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s/%s", s.Name(), s.Status)
}
