package model

import (
	"strings"

	"telegram-invoicing-bot/internal/domain"
)

// PlanTier is a subscription level of a tenant.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPremium    PlanTier = "premium"
	PlanEnterprise PlanTier = "enterprise"
)

// AllPlans is ordered from the lowest to the highest tier.
var AllPlans = []PlanTier{PlanFree, PlanPremium, PlanEnterprise}

// PlanLimits caps what a tenant may create. Zero means unlimited.
type PlanLimits struct {
	MaxClients        int
	MaxQuotesPerMonth int
}

func ParsePlanTier(s string) (PlanTier, error) {
	p := PlanTier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlans {
		if p == known {
			return p, nil
		}
	}
	return "", domain.ErrInvalidArgument
}

func (p PlanTier) IsValid() bool {
	_, err := ParsePlanTier(string(p))
	return err == nil
}

func (p PlanTier) IsPaid() bool { return p == PlanPremium || p == PlanEnterprise }

// Rank orders tiers; unknown tiers rank below free.
func (p PlanTier) Rank() int {
	for i, known := range AllPlans {
		if p == known {
			return i
		}
	}
	return -1
}

func (p PlanTier) Limits() PlanLimits {
	if p == PlanFree {
		return PlanLimits{MaxClients: 3, MaxQuotesPerMonth: 5}
	}
	return PlanLimits{}
}

// HigherTiers lists the tiers an upgrade from p may target.
func (p PlanTier) HigherTiers() []PlanTier {
	var out []PlanTier
	for _, known := range AllPlans {
		if known.Rank() > p.Rank() {
			out = append(out, known)
		}
	}
	return out
}

// AllowsClient reports whether one more client fits under the limit.
func (l PlanLimits) AllowsClient(current int) bool {
	return l.MaxClients == 0 || current < l.MaxClients
}
