package routing

import (
	"context"
	"testing"
	"time"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

var refTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newService() *Service {
	log := logger.New("test")
	return NewService(aiassist.NewEnhancer(nil, nil, log, 0), log)
}

func assignedLead(tenantID, actorID uuid.UUID, status domain.LeadStatus, area, propertyType string, closedDaysAgo int) domain.Lead {
	lead := domain.Lead{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Status:         status,
		LeadType:       "buyer",
		PropertyType:   propertyType,
		ListingAddress: "1 Main St, " + area + ", TX",
		AssignedTo:     &actorID,
		CreatedAt:      refTime.Add(-120 * 24 * time.Hour),
	}
	if status.Closed() {
		closedAt := refTime.Add(-time.Duration(closedDaysAgo) * 24 * time.Hour)
		lead.ClosedAt = &closedAt
	}
	return lead
}

func TestScore_GeographySpecialistOutranksGeneralist(t *testing.T) {
	tenantID := uuid.New()
	specialist := domain.Actor{ID: uuid.New(), DisplayName: "Ada"}
	generalist := domain.Actor{ID: uuid.New(), DisplayName: "Ben"}

	var leads []domain.Lead
	// Ada: 6 wins, all in Austin. Ben: 6 wins spread across other areas.
	for i := 0; i < 6; i++ {
		leads = append(leads, assignedLead(tenantID, specialist.ID, domain.StatusWon, "Austin", "house", 10))
		leads = append(leads, assignedLead(tenantID, generalist.ID, domain.StatusWon, "Dallas", "house", 10))
	}

	lead := domain.Lead{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Status:         domain.StatusNew,
		LeadType:       "buyer",
		ListingAddress: "500 Elm St, Austin, TX",
		CreatedAt:      refTime.Add(-24 * time.Hour),
	}

	rec := newService().Score(context.Background(), lead, []domain.Actor{specialist, generalist}, leads, nil, refTime, aiassist.NewBudget())

	if rec.Mode != "team" {
		t.Fatalf("mode = %q, want team", rec.Mode)
	}
	if rec.Ranked[0].ActorID != specialist.ID {
		t.Fatalf("top agent = %s, want the Austin specialist", rec.Ranked[0].DisplayName)
	}

	var geo FactorScore
	for _, factor := range rec.Ranked[0].Factors {
		if factor.Name == "geography" {
			geo = factor
		}
	}
	if geo.Score != 100 {
		t.Fatalf("specialist geography score = %.0f, want 100 (all wins in area)", geo.Score)
	}
}

func TestScore_PropertyTypeExpertiseTracksPropertyNotLeadType(t *testing.T) {
	tenantID := uuid.New()
	closer := domain.Actor{ID: uuid.New(), DisplayName: "Cora"}

	// Every win is a condo, but every winning lead was a seller.
	var leads []domain.Lead
	for i := 0; i < 6; i++ {
		won := assignedLead(tenantID, closer.ID, domain.StatusWon, "Austin", "condo", 10)
		won.LeadType = "seller"
		leads = append(leads, won)
	}

	// The candidate is a condo buyer: the expertise factor keys on the
	// property, so the seller-heavy history still counts in full.
	lead := domain.Lead{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Status:       domain.StatusNew,
		LeadType:     "buyer",
		PropertyType: "condo",
		CreatedAt:    refTime.Add(-24 * time.Hour),
	}

	rec := newService().Score(context.Background(), lead, []domain.Actor{closer}, leads, nil, refTime, aiassist.NewBudget())

	for _, factor := range rec.Ranked[0].Factors {
		if factor.Name == "property_type" {
			if factor.Score != 100 {
				t.Fatalf("property_type score = %.0f, want 100 (all wins on condos)", factor.Score)
			}
			return
		}
	}
	t.Fatal("property_type factor missing")
}

func TestScore_ZeroTeamAverageDefaultsWorkload(t *testing.T) {
	tenantID := uuid.New()
	actor := domain.Actor{ID: uuid.New(), DisplayName: "Idle"}

	lead := domain.Lead{ID: uuid.New(), TenantID: tenantID, Status: domain.StatusNew, CreatedAt: refTime}
	rec := newService().Score(context.Background(), lead, []domain.Actor{actor}, nil, nil, refTime, aiassist.NewBudget())

	if rec.Mode != "solo" {
		t.Fatalf("mode = %q, want solo", rec.Mode)
	}
	for _, factor := range rec.Ranked[0].Factors {
		if factor.Name == "workload" {
			if factor.Score != defaultLoadScore {
				t.Fatalf("workload score = %.0f, want default %.0f with a zero team average", factor.Score, defaultLoadScore)
			}
			return
		}
	}
	t.Fatal("workload factor missing")
}

func TestScore_WorkloadPenalizesOverloadedAgent(t *testing.T) {
	tenantID := uuid.New()
	busy := domain.Actor{ID: uuid.New(), DisplayName: "Busy"}
	free := domain.Actor{ID: uuid.New(), DisplayName: "Free"}

	var leads []domain.Lead
	// Busy carries 8 active leads, Free carries 0; team average is 4.
	for i := 0; i < 8; i++ {
		leads = append(leads, assignedLead(tenantID, busy.ID, domain.StatusNurturing, "Austin", "house", 0))
	}

	lead := domain.Lead{ID: uuid.New(), TenantID: tenantID, Status: domain.StatusNew, CreatedAt: refTime}
	rec := newService().Score(context.Background(), lead, []domain.Actor{busy, free}, leads, nil, refTime, aiassist.NewBudget())

	scores := map[string]float64{}
	for _, agent := range rec.Ranked {
		for _, factor := range agent.Factors {
			if factor.Name == "workload" {
				scores[agent.DisplayName] = factor.Score
			}
		}
	}

	// Busy: 100 - 50*(8/4 - 1) = 50. Free: 100 - 50*(0/4 - 1) = 100 clamped.
	if scores["Busy"] != 50 {
		t.Fatalf("busy workload score = %.0f, want 50", scores["Busy"])
	}
	if scores["Free"] != 100 {
		t.Fatalf("free workload score = %.0f, want 100", scores["Free"])
	}
}

func TestScore_ConversionNeedsFiveClosedLeads(t *testing.T) {
	tenantID := uuid.New()
	rookie := domain.Actor{ID: uuid.New(), DisplayName: "Rookie"}

	// Four closed leads, all won: still under the measurement floor.
	var leads []domain.Lead
	for i := 0; i < 4; i++ {
		leads = append(leads, assignedLead(tenantID, rookie.ID, domain.StatusWon, "Austin", "house", 5))
	}

	lead := domain.Lead{ID: uuid.New(), TenantID: tenantID, Status: domain.StatusNew, CreatedAt: refTime}
	rec := newService().Score(context.Background(), lead, []domain.Actor{rookie}, leads, nil, refTime, aiassist.NewBudget())

	if rec.Mode != "solo" {
		t.Fatalf("mode = %q, want solo with one agent", rec.Mode)
	}
	for _, factor := range rec.Ranked[0].Factors {
		if factor.Name == "conversion" && factor.Score != defaultConversionScore {
			t.Fatalf("conversion score = %.0f, want default %.0f under 5 closed", factor.Score, defaultConversionScore)
		}
	}
}

func TestScore_ResponseTimeLinearScale(t *testing.T) {
	tenantID := uuid.New()
	actorID := uuid.New()
	actor := domain.Actor{ID: actorID, DisplayName: "Quick"}

	assigned := assignedLead(tenantID, actorID, domain.StatusNurturing, "Austin", "house", 0)
	contact := domain.Activity{
		ID:           uuid.New(),
		LeadID:       assigned.ID,
		ActorID:      &actorID,
		ActivityType: domain.ActivityCallLogged,
		OccurredAt:   assigned.CreatedAt.Add(26 * time.Hour),
	}

	lead := domain.Lead{ID: uuid.New(), TenantID: tenantID, Status: domain.StatusNew, CreatedAt: refTime}
	rec := newService().Score(context.Background(), lead, []domain.Actor{actor},
		[]domain.Lead{assigned}, map[uuid.UUID][]domain.Activity{assigned.ID: {contact}}, refTime, aiassist.NewBudget())

	for _, factor := range rec.Ranked[0].Factors {
		if factor.Name == "responsiveness" {
			// 26h response: 100 * (48-26)/44 = 50.
			if factor.Score != 50 {
				t.Fatalf("responsiveness = %.2f, want 50 for a 26h average", factor.Score)
			}
			return
		}
	}
	t.Fatal("responsiveness factor missing")
}

func TestScore_MarksCurrentAssignee(t *testing.T) {
	tenantID := uuid.New()
	actor := domain.Actor{ID: uuid.New(), DisplayName: "Holder"}

	lead := domain.Lead{ID: uuid.New(), TenantID: tenantID, Status: domain.StatusQualified, AssignedTo: &actor.ID, CreatedAt: refTime}
	rec := newService().Score(context.Background(), lead, []domain.Actor{actor}, nil, nil, refTime, aiassist.NewBudget())

	if rec.Mode != "solo" {
		t.Fatalf("mode = %q, want solo for a single actor", rec.Mode)
	}
	if len(rec.Ranked) != 1 {
		t.Fatalf("ranked = %d recommendations, want 1", len(rec.Ranked))
	}
	if !rec.Ranked[0].IsCurrentAssignee {
		t.Fatal("expected current assignee to be flagged")
	}
	if rec.Explanation == "" {
		t.Fatal("expected deterministic explanation")
	}
	if rec.ExplanationProvenance.Source != aiassist.SourceRuleEngine {
		t.Fatalf("provenance = %q, want rule_engine", rec.ExplanationProvenance.Source)
	}
}
