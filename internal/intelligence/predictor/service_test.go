package predictor

import (
	"context"
	"strings"
	"testing"
	"time"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/platform/cache"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

var refTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubHistory struct {
	bundles []domain.ClosedLeadBundle
	calls   int
}

func (s *stubHistory) ListClosedLeadBundles(_ context.Context, _ uuid.UUID) ([]domain.ClosedLeadBundle, error) {
	s.calls++
	return s.bundles, nil
}

// closedLead builds a closed lead with a fixed, identical profile so tests
// can isolate the prior from per-feature likelihoods.
func closedLead(tenantID uuid.UUID, status domain.LeadStatus, closedAt time.Time) domain.ClosedLeadBundle {
	return domain.ClosedLeadBundle{
		Lead: domain.Lead{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Status:    status,
			LeadType:  "buyer",
			Source:    "website",
			CreatedAt: closedAt.Add(-10 * 24 * time.Hour),
			ClosedAt:  &closedAt,
		},
	}
}

func makeHistory(tenantID uuid.UUID, won, lost int) *stubHistory {
	history := &stubHistory{}
	closedAt := refTime.Add(-30 * 24 * time.Hour)
	for i := 0; i < won; i++ {
		history.bundles = append(history.bundles, closedLead(tenantID, domain.StatusWon, closedAt))
	}
	for i := 0; i < lost; i++ {
		history.bundles = append(history.bundles, closedLead(tenantID, domain.StatusLost, closedAt))
	}
	return history
}

func newService(history *stubHistory) *Service {
	log := logger.New("test")
	enhancer := aiassist.NewEnhancer(nil, nil, log, 0)
	return NewService(history, cache.NewMemoryStore(), time.Hour, enhancer, log)
}

func openLead(tenantID uuid.UUID) domain.Lead {
	return domain.Lead{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Status:    domain.StatusQualified,
		LeadType:  "buyer",
		Source:    "website",
		CreatedAt: refTime.Add(-10 * 24 * time.Hour),
	}
}

func TestPredict_InsufficientHistoryIsAResultNotAnError(t *testing.T) {
	tenantID := uuid.New()
	svc := newService(makeHistory(tenantID, 25, 15)) // 40 closed, under the 50 floor

	prediction, err := svc.Predict(context.Background(), openLead(tenantID), nil, refTime, aiassist.NewBudget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prediction.Available {
		t.Fatal("expected unavailable prediction with 40 closed leads")
	}
	if prediction.Reason != "insufficient_data" {
		t.Fatalf("reason = %q, want insufficient_data", prediction.Reason)
	}
	if prediction.SampleSize != 40 {
		t.Fatalf("sample size = %d, want 40", prediction.SampleSize)
	}
	if prediction.Confidence != ConfidenceLow {
		t.Fatalf("confidence = %q, want low on insufficient data", prediction.Confidence)
	}
	if !strings.Contains(prediction.Explanation, "40") || !strings.Contains(prediction.Explanation, "50") {
		t.Fatalf("explanation %q should name the deficit (40 of 50 required)", prediction.Explanation)
	}
}

func TestPredict_RequiresBothOutcomeClasses(t *testing.T) {
	tenantID := uuid.New()
	svc := newService(makeHistory(tenantID, 55, 5)) // 60 closed, but only 5 lost

	prediction, err := svc.Predict(context.Background(), openLead(tenantID), nil, refTime, aiassist.NewBudget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prediction.Available {
		t.Fatal("expected unavailable prediction with fewer than 10 lost leads")
	}
}

func TestPredict_IdenticalFeaturesYieldPriorDrivenScore(t *testing.T) {
	tenantID := uuid.New()
	// Every closed lead has the same feature vector as the open lead, so all
	// likelihood ratios are near 1 and the prior dominates.
	svc := newService(makeHistory(tenantID, 90, 30))

	prediction, err := svc.Predict(context.Background(), openLead(tenantID), nil, refTime, aiassist.NewBudget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !prediction.Available {
		t.Fatal("expected available prediction")
	}
	// Prior alone is 75%. Smoothing nudges per-feature ratios slightly, so
	// allow a band rather than an exact value.
	if prediction.Probability < 60 || prediction.Probability > 90 {
		t.Fatalf("probability = %d, want near the 75%% prior", prediction.Probability)
	}
	if len(prediction.Factors) == 0 || len(prediction.Factors) > 5 {
		t.Fatalf("factor count = %d, want 1..5", len(prediction.Factors))
	}
	if prediction.ExplanationProvenance.Source != aiassist.SourceRuleEngine {
		t.Fatalf("provenance = %q, want rule_engine without a completer", prediction.ExplanationProvenance.Source)
	}
	if prediction.Explanation == "" {
		t.Fatal("expected deterministic explanation text")
	}
}

func TestPredict_ConfidenceBands(t *testing.T) {
	tests := []struct {
		name      string
		won, lost int
		want      string
	}{
		{"low under 100", 60, 30, ConfidenceLow},
		{"medium at 100", 70, 30, ConfidenceMedium},
		{"medium at 199", 150, 49, ConfidenceMedium},
		{"high at 200", 150, 50, ConfidenceHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenantID := uuid.New()
			svc := newService(makeHistory(tenantID, tt.won, tt.lost))

			prediction, err := svc.Predict(context.Background(), openLead(tenantID), nil, refTime, aiassist.NewBudget())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if prediction.Confidence != tt.want {
				t.Fatalf("confidence = %q, want %q", prediction.Confidence, tt.want)
			}
		})
	}
}

func TestPredict_DistributionIsCachedPerTenant(t *testing.T) {
	tenantID := uuid.New()
	history := makeHistory(tenantID, 90, 30)
	svc := newService(history)

	for i := 0; i < 3; i++ {
		if _, err := svc.Predict(context.Background(), openLead(tenantID), nil, refTime, aiassist.NewBudget()); err != nil {
			t.Fatalf("predict %d: %v", i, err)
		}
	}

	if history.calls != 1 {
		t.Fatalf("history loaded %d times, want 1 (cached)", history.calls)
	}

	if err := svc.InvalidateDistribution(context.Background(), tenantID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := svc.Predict(context.Background(), openLead(tenantID), nil, refTime, aiassist.NewBudget()); err != nil {
		t.Fatalf("predict after invalidate: %v", err)
	}
	if history.calls != 2 {
		t.Fatalf("history loaded %d times after invalidation, want 2", history.calls)
	}
}

func TestBuildDistribution_SkipsOpenLeads(t *testing.T) {
	tenantID := uuid.New()
	closedAt := refTime.Add(-5 * 24 * time.Hour)

	bundles := []domain.ClosedLeadBundle{
		closedLead(tenantID, domain.StatusWon, closedAt),
		{Lead: domain.Lead{ID: uuid.New(), TenantID: tenantID, Status: domain.StatusNurturing, CreatedAt: refTime}},
	}

	dist := BuildDistribution(tenantID, bundles, refTime)
	if dist.SampleSize() != 1 {
		t.Fatalf("sample size = %d, want 1 (open lead skipped)", dist.SampleSize())
	}
	if dist.TotalWon != 1 || dist.TotalLost != 0 {
		t.Fatalf("won/lost = %d/%d, want 1/0", dist.TotalWon, dist.TotalLost)
	}
}
