package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/signals"
	"realty_portal_backend/platform/cache"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Confidence labels, keyed off the distribution sample size.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// directionThreshold separates meaningful factor contributions from noise.
const directionThreshold = 0.05

// HistoryReader loads the closed leads the distribution is built from.
type HistoryReader interface {
	ListClosedLeadBundles(ctx context.Context, tenantID uuid.UUID) ([]domain.ClosedLeadBundle, error)
}

// Factor is one feature's contribution to the log-odds score.
type Factor struct {
	Feature      string  `json:"feature"`
	Value        string  `json:"value"`
	Contribution float64 `json:"contribution"`
	Direction    string  `json:"direction"` // positive | negative | neutral
}

// Prediction is the scoring result. When Available is false the tenant's
// history is too thin and the remaining fields are zero; that is a normal
// result shape, not an error.
type Prediction struct {
	Available             bool                `json:"available"`
	Reason                string              `json:"reason,omitempty"`
	Probability           int                 `json:"probability"`
	Confidence            string              `json:"confidence,omitempty"`
	SampleSize            int                 `json:"sampleSize"`
	Factors               []Factor            `json:"factors,omitempty"`
	Explanation           string              `json:"explanation,omitempty"`
	ExplanationProvenance aiassist.Provenance `json:"explanationProvenance"`
	GeneratedAt           time.Time           `json:"generatedAt"`
}

// Service computes win predictions for open leads.
type Service struct {
	history  HistoryReader
	store    cache.Store
	ttl      time.Duration
	enhancer *aiassist.Enhancer
	log      *logger.Logger
}

// NewService wires the predictor. ttl bounds how stale a cached
// distribution may get before it is rebuilt.
func NewService(history HistoryReader, store cache.Store, ttl time.Duration, enhancer *aiassist.Enhancer, log *logger.Logger) *Service {
	return &Service{history: history, store: store, ttl: ttl, enhancer: enhancer, log: log}
}

func distributionKey(tenantID uuid.UUID) string {
	return "intel:dist:" + tenantID.String()
}

// InvalidateDistribution drops the tenant's cached distribution. Called when
// the surrounding CRM closes a lead.
func (s *Service) InvalidateDistribution(ctx context.Context, tenantID uuid.UUID) error {
	return s.store.Delete(ctx, distributionKey(tenantID))
}

// distribution returns the tenant's cached distribution, rebuilding it from
// closed leads on a miss. Cache failures degrade to a rebuild, never to an
// error.
func (s *Service) distribution(ctx context.Context, tenantID uuid.UUID, now time.Time) (Distribution, error) {
	key := distributionKey(tenantID)

	if raw, ok, err := s.store.Get(ctx, key); err == nil && ok {
		var dist Distribution
		if err := json.Unmarshal(raw, &dist); err == nil {
			return dist, nil
		}
		// Unreadable entry; fall through to rebuild.
		_ = s.store.Delete(ctx, key)
	}

	start := time.Now()
	bundles, err := s.history.ListClosedLeadBundles(ctx, tenantID)
	if err != nil {
		return Distribution{}, err
	}

	dist := BuildDistribution(tenantID, bundles, now)
	s.log.CacheRebuild("distribution", tenantID.String(), float64(time.Since(start).Milliseconds()))

	if raw, err := json.Marshal(dist); err == nil {
		if err := s.store.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.DatabaseError("cache distribution", err)
		}
	}

	return dist, nil
}

// Predict scores an open lead's probability of closing won, relative to the
// reference time.
func (s *Service) Predict(ctx context.Context, lead domain.Lead, activities []domain.Activity, now time.Time, budget *aiassist.Budget) (Prediction, error) {
	dist, err := s.distribution(ctx, lead.TenantID, now)
	if err != nil {
		return Prediction{}, err
	}

	if !dist.Sufficient() {
		return Prediction{
			Available:             false,
			Reason:                "insufficient_data",
			Confidence:            ConfidenceLow,
			SampleSize:            dist.SampleSize(),
			Explanation:           insufficientExplanation(dist),
			ExplanationProvenance: aiassist.RuleProvenance(now),
			GeneratedAt:           now,
		}, nil
	}

	vector := signals.Extract(lead, activities, now)

	logOdds := math.Log(float64(dist.TotalWon) / float64(dist.TotalLost))
	factors := make([]Factor, 0, len(vector.Features()))

	for _, feature := range vector.Features() {
		pWon, pLost := dist.Likelihoods(feature.Name, feature.Value)
		contribution := math.Log(pWon / pLost)
		logOdds += contribution

		factors = append(factors, Factor{
			Feature:      feature.Name,
			Value:        feature.Value,
			Contribution: contribution,
			Direction:    direction(contribution),
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Contribution) > math.Abs(factors[j].Contribution)
	})
	if len(factors) > 5 {
		factors = factors[:5]
	}

	probability := int(math.Round(100 / (1 + math.Exp(-logOdds))))

	fallbackText := deterministicExplanation(probability, factors)
	prompt := explanationPrompt(lead, probability, dist.SampleSize(), factors)
	explanation, provenance := s.enhancer.Enhance(ctx, lead.TenantID, "predictor", prompt, fallbackText, budget)

	return Prediction{
		Available:             true,
		Probability:           probability,
		Confidence:            confidence(dist.SampleSize()),
		SampleSize:            dist.SampleSize(),
		Factors:               factors,
		Explanation:           explanation,
		ExplanationProvenance: provenance,
		GeneratedAt:           now,
	}, nil
}

// insufficientExplanation names the data deficit so the caller can show a
// useful message instead of a bare flag.
func insufficientExplanation(dist Distribution) string {
	return fmt.Sprintf(
		"Not enough closed-lead history to predict: %d closed leads on record (%d won, %d lost); at least %d closed with %d per outcome are required.",
		dist.SampleSize(), dist.TotalWon, dist.TotalLost, MinClosedLeads, MinPerOutcome)
}

func direction(contribution float64) string {
	switch {
	case contribution > directionThreshold:
		return "positive"
	case contribution < -directionThreshold:
		return "negative"
	default:
		return "neutral"
	}
}

func confidence(sampleSize int) string {
	switch {
	case sampleSize >= 200:
		return ConfidenceHigh
	case sampleSize >= 100:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func deterministicExplanation(probability int, factors []Factor) string {
	var helping, hurting []string
	for _, factor := range factors {
		label := fmt.Sprintf("%s (%s)", strings.ReplaceAll(factor.Feature, "_", " "), factor.Value)
		switch factor.Direction {
		case "positive":
			helping = append(helping, label)
		case "negative":
			hurting = append(hurting, label)
		}
	}

	parts := []string{fmt.Sprintf("Estimated %d%% chance of closing won.", probability)}
	if len(helping) > 0 {
		parts = append(parts, "Working in favor: "+strings.Join(helping, ", ")+".")
	}
	if len(hurting) > 0 {
		parts = append(parts, "Working against: "+strings.Join(hurting, ", ")+".")
	}
	return strings.Join(parts, " ")
}

func explanationPrompt(lead domain.Lead, probability, sampleSize int, factors []Factor) string {
	var sb strings.Builder
	sb.WriteString("You are helping a real-estate agent understand a lead score. ")
	sb.WriteString(fmt.Sprintf("A %s lead has a %d%% predicted chance of closing won, based on %d past closed leads. ", strings.TrimSpace(lead.LeadType), probability, sampleSize))
	sb.WriteString("The strongest factors were: ")
	for i, factor := range factors {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s=%s (%s)", factor.Feature, factor.Value, factor.Direction))
	}
	sb.WriteString(". Write two plain sentences for the agent explaining the score. No markdown, no advice beyond the factors.")
	return sb.String()
}
