package nextaction

import (
	"context"
	"strings"
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

func daysAgo(days int) time.Time {
	return refTime.Add(-time.Duration(days) * 24 * time.Hour)
}

func favoriteIn(leadID uuid.UUID, zip string, occurredAt time.Time) domain.Activity {
	return domain.Activity{
		ID:           uuid.New(),
		LeadID:       leadID,
		ActivityType: domain.ActivityListingFavorited,
		OccurredAt:   occurredAt,
		MetadataJSON: []byte(`{"zip": "` + zip + `"}`),
	}
}

func TestSuggest_IndependentPatternsBothFire(t *testing.T) {
	nextAction := daysAgo(2)
	lead := domain.Lead{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Status:       domain.StatusQualified,
		NextActionAt: &nextAction,
		CreatedAt:    daysAgo(30),
	}

	activities := []domain.Activity{
		favoriteIn(lead.ID, "78704", daysAgo(1)),
		favoriteIn(lead.ID, "78704", daysAgo(2)),
		favoriteIn(lead.ID, "78704", daysAgo(3)),
	}

	suggestions := newService().Suggest(context.Background(), lead, activities, refTime, aiassist.NewBudget())

	types := map[string]Action{}
	for _, action := range suggestions.Actions {
		types[action.Type] = action
	}

	overdue, ok := types["complete_follow_up"]
	if !ok {
		t.Fatal("expected complete_follow_up action")
	}
	cluster, ok := types["propose_showing"]
	if !ok {
		t.Fatal("expected propose_showing action from the favorite cluster")
	}

	// High urgency sorts ahead of medium.
	if suggestions.Actions[0].Type != "complete_follow_up" {
		t.Fatalf("first action = %q, want the high-urgency follow-up", suggestions.Actions[0].Type)
	}
	if overdue.Urgency != UrgencyHigh || cluster.Urgency != UrgencyMedium {
		t.Fatalf("urgencies = %q/%q, want high/medium", overdue.Urgency, cluster.Urgency)
	}
}

func TestSuggest_HotBrowsingRequiresNoRecentContact(t *testing.T) {
	lead := domain.Lead{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Status:    domain.StatusNurturing,
		CreatedAt: daysAgo(20),
	}

	// A handful of views two days ago; the agent last called six days ago.
	activities := []domain.Activity{
		{ID: uuid.New(), LeadID: lead.ID, ActivityType: domain.ActivityListingViewed, OccurredAt: daysAgo(2)},
		{ID: uuid.New(), LeadID: lead.ID, ActivityType: domain.ActivityListingViewed, OccurredAt: daysAgo(2)},
		{ID: uuid.New(), LeadID: lead.ID, ActivityType: domain.ActivityListingViewed, OccurredAt: daysAgo(3)},
		{ID: uuid.New(), LeadID: lead.ID, ActorID: &lead.ID, ActivityType: domain.ActivityCallLogged, OccurredAt: daysAgo(6)},
	}

	suggestions := newService().Suggest(context.Background(), lead, activities, refTime, aiassist.NewBudget())
	found := false
	for _, action := range suggestions.Actions {
		if action.Type == "reach_out" {
			found = true
			if action.Urgency != UrgencyHigh {
				t.Fatalf("reach_out urgency = %q, want high", action.Urgency)
			}
		}
	}
	if !found {
		t.Fatal("expected reach_out for recent browsing with a six-day contact gap")
	}

	// A call two days ago silences the pattern.
	activities = append(activities, domain.Activity{
		ID:           uuid.New(),
		LeadID:       lead.ID,
		ActorID:      &lead.ID,
		ActivityType: domain.ActivityCallLogged,
		OccurredAt:   daysAgo(2),
	})
	suggestions = newService().Suggest(context.Background(), lead, activities, refTime, aiassist.NewBudget())
	if hasAction(suggestions, "reach_out") {
		t.Fatal("reach_out must not fire when the agent called two days ago")
	}

	// Stale browsing does not qualify no matter how neglected the lead is.
	stale := []domain.Activity{
		{ID: uuid.New(), LeadID: lead.ID, ActivityType: domain.ActivityListingViewed, OccurredAt: daysAgo(6)},
	}
	suggestions = newService().Suggest(context.Background(), lead, stale, refTime, aiassist.NewBudget())
	if hasAction(suggestions, "reach_out") {
		t.Fatal("reach_out must not fire when the last activity is six days old")
	}
}

func TestSuggest_DecliningEngagementComparesWeeks(t *testing.T) {
	lead := domain.Lead{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Status:    domain.StatusNurturing,
		CreatedAt: daysAgo(30),
	}

	// Four activities last week, one this week.
	var activities []domain.Activity
	for i := 0; i < 4; i++ {
		activities = append(activities, domain.Activity{
			ID:           uuid.New(),
			LeadID:       lead.ID,
			ActivityType: domain.ActivityListingViewed,
			OccurredAt:   daysAgo(9 + i),
		})
	}
	activities = append(activities, domain.Activity{
		ID:           uuid.New(),
		LeadID:       lead.ID,
		ActivityType: domain.ActivityListingViewed,
		OccurredAt:   daysAgo(1),
	})

	suggestions := newService().Suggest(context.Background(), lead, activities, refTime, aiassist.NewBudget())
	if !hasAction(suggestions, "re_engage") {
		t.Fatal("expected re_engage when weekly activity drops by more than half")
	}

	// A shallow dip is not a decline.
	shallow := weekPair(lead.ID, 4, 3)
	suggestions = newService().Suggest(context.Background(), lead, shallow, refTime, aiassist.NewBudget())
	if hasAction(suggestions, "re_engage") {
		t.Fatal("re_engage must not fire on a 4-to-3 dip")
	}

	// Zero activity this week is dormancy, not decline.
	dormant := weekPair(lead.ID, 4, 0)
	suggestions = newService().Suggest(context.Background(), lead, dormant, refTime, aiassist.NewBudget())
	if hasAction(suggestions, "re_engage") {
		t.Fatal("re_engage must not fire with no activity this week")
	}
}

// weekPair builds prev activities 9-12 days old and last activities 1-4
// days old.
func weekPair(leadID uuid.UUID, prev, last int) []domain.Activity {
	var activities []domain.Activity
	for i := 0; i < prev; i++ {
		activities = append(activities, domain.Activity{
			ID:           uuid.New(),
			LeadID:       leadID,
			ActivityType: domain.ActivityListingViewed,
			OccurredAt:   daysAgo(9 + i%4),
		})
	}
	for i := 0; i < last; i++ {
		activities = append(activities, domain.Activity{
			ID:           uuid.New(),
			LeadID:       leadID,
			ActivityType: domain.ActivityListingViewed,
			OccurredAt:   daysAgo(1 + i%4),
		})
	}
	return activities
}

func TestSuggest_RepeatListingViewsSpotFixation(t *testing.T) {
	lead := domain.Lead{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Status:    domain.StatusNurturing,
		CreatedAt: daysAgo(20),
	}

	viewed := func(listingID string, occurredAt time.Time) domain.Activity {
		return domain.Activity{
			ID:           uuid.New(),
			LeadID:       lead.ID,
			ActivityType: domain.ActivityListingViewed,
			OccurredAt:   occurredAt,
			MetadataJSON: []byte(`{"listingId": "` + listingID + `"}`),
		}
	}

	activities := []domain.Activity{
		viewed("mls-881", daysAgo(1)),
		viewed("mls-552", daysAgo(2)),
		viewed("mls-881", daysAgo(3)),
		viewed("mls-881", daysAgo(4)),
	}

	suggestions := newService().Suggest(context.Background(), lead, activities, refTime, aiassist.NewBudget())

	for _, action := range suggestions.Actions {
		if action.Type == "discuss_listing" {
			if action.Urgency != UrgencyMedium {
				t.Fatalf("discuss_listing urgency = %q, want medium", action.Urgency)
			}
			if !strings.Contains(action.Reason, "mls-881") {
				t.Fatalf("reason %q does not name the repeated listing", action.Reason)
			}
			return
		}
	}
	t.Fatal("expected discuss_listing after three views of the same listing")
}

func TestSuggest_FavoriteClusterSkipsUnknownZip(t *testing.T) {
	lead := domain.Lead{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Status:    domain.StatusNurturing,
		CreatedAt: daysAgo(20),
	}

	activities := []domain.Activity{
		favoriteIn(lead.ID, "unknown", daysAgo(1)),
		favoriteIn(lead.ID, "unknown", daysAgo(1)),
		favoriteIn(lead.ID, "unknown", daysAgo(2)),
		favoriteIn(lead.ID, "78704", daysAgo(3)),
		favoriteIn(lead.ID, "78704", daysAgo(4)),
		favoriteIn(lead.ID, "78704", daysAgo(5)),
	}

	suggestions := newService().Suggest(context.Background(), lead, activities, refTime, aiassist.NewBudget())

	for _, action := range suggestions.Actions {
		if action.Type == "propose_showing" {
			if !strings.Contains(action.Reason, "78704") {
				t.Fatalf("reason %q should cite zip 78704, never the unknown placeholder", action.Reason)
			}
			return
		}
	}
	t.Fatal("expected propose_showing for the 78704 cluster")
}

func TestSuggest_QuietLeadStillGetsSchedulingNudge(t *testing.T) {
	lead := domain.Lead{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Status:    domain.StatusQualified,
		CreatedAt: daysAgo(10),
	}

	suggestions := newService().Suggest(context.Background(), lead, nil, refTime, aiassist.NewBudget())

	if !hasAction(suggestions, "schedule_follow_up") {
		t.Fatal("expected schedule_follow_up for a lead with nothing planned")
	}
	for _, action := range suggestions.Actions {
		if action.Reason == "" {
			t.Fatalf("action %q has no rule-authored reason", action.Type)
		}
		if action.Detail != "" {
			t.Fatalf("action %q has AI detail without a completer", action.Type)
		}
	}
}

func hasAction(s Suggestions, actionType string) bool {
	for _, action := range s.Actions {
		if action.Type == actionType {
			return true
		}
	}
	return false
}
