// Package predictor scores open leads against the tenant's closed-lead
// history with a naive Bayes model. The historical distribution is the only
// piece of state; it is rebuilt from closed leads on demand and cached per
// tenant behind an injected store.
package predictor

import (
	"time"

	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/signals"

	"github.com/google/uuid"
)

const (
	// MinClosedLeads is the minimum closed-lead total before predictions
	// are offered at all.
	MinClosedLeads = 50
	// MinPerOutcome is the minimum count each outcome class must reach.
	MinPerOutcome = 10
)

// Distribution holds per-feature value counts split by outcome. The whole
// struct round-trips through JSON for the cache store.
type Distribution struct {
	TenantID  uuid.UUID `json:"tenantId"`
	TotalWon  int       `json:"totalWon"`
	TotalLost int       `json:"totalLost"`

	// WonCounts and LostCounts map feature name -> bucket value -> count.
	WonCounts  map[string]map[string]int `json:"wonCounts"`
	LostCounts map[string]map[string]int `json:"lostCounts"`

	// DistinctValues maps feature name -> number of distinct bucket values
	// observed across both outcomes. Used as the smoothing denominator for
	// open categorical features.
	DistinctValues map[string]int `json:"distinctValues"`

	BuiltAt time.Time `json:"builtAt"`
}

// BuildDistribution aggregates closed-lead bundles into outcome-split
// feature counts. Each lead's features are extracted relative to its close
// time, so recency and pipeline age reflect the lead as it was decided.
// Leads without a terminal status are skipped.
func BuildDistribution(tenantID uuid.UUID, bundles []domain.ClosedLeadBundle, builtAt time.Time) Distribution {
	dist := Distribution{
		TenantID:       tenantID,
		WonCounts:      make(map[string]map[string]int),
		LostCounts:     make(map[string]map[string]int),
		DistinctValues: make(map[string]int),
		BuiltAt:        builtAt,
	}

	seen := make(map[string]map[string]bool)

	for _, bundle := range bundles {
		if !bundle.Lead.Status.Closed() {
			continue
		}

		reference := builtAt
		if bundle.Lead.ClosedAt != nil {
			reference = *bundle.Lead.ClosedAt
		}
		vector := signals.Extract(bundle.Lead, bundle.Activities, reference)

		counts := dist.LostCounts
		if bundle.Lead.Status == domain.StatusWon {
			counts = dist.WonCounts
			dist.TotalWon++
		} else {
			dist.TotalLost++
		}

		for _, feature := range vector.Features() {
			if counts[feature.Name] == nil {
				counts[feature.Name] = make(map[string]int)
			}
			counts[feature.Name][feature.Value]++

			if seen[feature.Name] == nil {
				seen[feature.Name] = make(map[string]bool)
			}
			seen[feature.Name][feature.Value] = true
		}
	}

	for name, values := range seen {
		dist.DistinctValues[name] = len(values)
	}

	return dist
}

// SampleSize is the total number of closed leads backing the distribution.
func (d Distribution) SampleSize() int {
	return d.TotalWon + d.TotalLost
}

// Sufficient reports whether the distribution meets the minimum sample
// requirements for prediction.
func (d Distribution) Sufficient() bool {
	return d.SampleSize() >= MinClosedLeads &&
		d.TotalWon >= MinPerOutcome &&
		d.TotalLost >= MinPerOutcome
}

// smoothingDomain returns the Laplace denominator addend for a feature:
// the fixed bucket count for closed-domain features, the observed distinct
// value count for open categorical ones.
func (d Distribution) smoothingDomain(feature string) int {
	if k := signals.Cardinality(feature); k > 0 {
		return k
	}
	if k := d.DistinctValues[feature]; k > 0 {
		return k
	}
	return 1
}

// Likelihoods returns the Laplace-smoothed conditional probabilities of the
// given feature value under each outcome.
func (d Distribution) Likelihoods(feature, value string) (pWon, pLost float64) {
	k := d.smoothingDomain(feature)
	pWon = float64(d.WonCounts[feature][value]+1) / float64(d.TotalWon+k)
	pLost = float64(d.LostCounts[feature][value]+1) / float64(d.TotalLost+k)
	return pWon, pLost
}
