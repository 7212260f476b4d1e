package signals

import (
	"strconv"
	"testing"
	"time"

	"realty_portal_backend/internal/intelligence/domain"

	"github.com/google/uuid"
)

var refTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activityAt(activityType string, occurredAt time.Time) domain.Activity {
	return domain.Activity{
		ID:           uuid.New(),
		LeadID:       uuid.New(),
		ActivityType: activityType,
		OccurredAt:   occurredAt,
	}
}

func daysAgo(days int) time.Time {
	return refTime.Add(-time.Duration(days) * 24 * time.Hour)
}

func TestExtract_RecencyBucketBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		lastAt     time.Time
		wantBucket string
	}{
		{"two days ago", daysAgo(2), "0-2d"},
		{"exactly three days ago", daysAgo(3), "3-7d"},
		{"seven days ago", daysAgo(7), "3-7d"},
		{"eight days ago", daysAgo(8), "8-14d"},
		{"thirty one days ago", daysAgo(31), "30d+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := domain.Lead{CreatedAt: daysAgo(60)}
			vector := Extract(lead, []domain.Activity{
				activityAt(domain.ActivityListingViewed, tt.lastAt),
			}, refTime)

			if vector.Recency != tt.wantBucket {
				t.Fatalf("recency = %q, want %q", vector.Recency, tt.wantBucket)
			}
		})
	}
}

func TestExtract_NoActivitiesIsOwnRecencyBucket(t *testing.T) {
	vector := Extract(domain.Lead{CreatedAt: daysAgo(10)}, nil, refTime)

	if vector.Recency != "none" {
		t.Fatalf("recency = %q, want none", vector.Recency)
	}
	if vector.ActivityFrequency != "0" {
		t.Fatalf("frequency = %q, want 0", vector.ActivityFrequency)
	}
	if vector.FavoritesRatio != "0" {
		t.Fatalf("favorites ratio = %q, want 0", vector.FavoritesRatio)
	}
}

func TestExtract_FrequencyCountsTrailing30DaysOnly(t *testing.T) {
	var activities []domain.Activity
	for i := 0; i < 4; i++ {
		activities = append(activities, activityAt(domain.ActivityListingViewed, daysAgo(i+1)))
	}
	// Outside the window; must not count.
	activities = append(activities, activityAt(domain.ActivityListingViewed, daysAgo(45)))

	vector := Extract(domain.Lead{CreatedAt: daysAgo(90)}, activities, refTime)

	if vector.ActivityFrequency != "4-8" {
		t.Fatalf("frequency = %q, want 4-8", vector.ActivityFrequency)
	}
}

func TestExtract_FavoritesRatioBuckets(t *testing.T) {
	build := func(viewed, favorited int) []domain.Activity {
		var activities []domain.Activity
		for i := 0; i < viewed; i++ {
			activities = append(activities, activityAt(domain.ActivityListingViewed, daysAgo(1)))
		}
		for i := 0; i < favorited; i++ {
			activities = append(activities, activityAt(domain.ActivityListingFavorited, daysAgo(1)))
		}
		return activities
	}

	tests := []struct {
		name              string
		viewed, favorited int
		want              string
	}{
		{"no favorites", 10, 0, "0"},
		{"no views", 0, 3, "0"},
		{"one in twenty", 20, 2, "0.01-0.1"},
		{"one in five", 10, 2, "0.1-0.3"},
		{"one in two", 4, 2, "0.3+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vector := Extract(domain.Lead{CreatedAt: daysAgo(10)}, build(tt.viewed, tt.favorited), refTime)
			if vector.FavoritesRatio != tt.want {
				t.Fatalf("ratio = %q, want %q", vector.FavoritesRatio, tt.want)
			}
		})
	}
}

func TestExtract_CategoricalNormalizationAndCompleteness(t *testing.T) {
	priceMin, priceMax := int64(300000), int64(450000)
	contactID := uuid.New()

	lead := domain.Lead{
		LeadType:       " Buyer ",
		Source:         "Zillow",
		PropertyType:   "",
		ListingAddress: "12 Oak St, Springfield, IL",
		PriceMin:       &priceMin,
		PriceMax:       &priceMax,
		ContactID:      &contactID,
		ContactPhone:   "+14155552671",
		CreatedAt:      daysAgo(5),
	}

	vector := Extract(lead, nil, refTime)

	if vector.LeadType != "buyer" {
		t.Fatalf("lead type = %q, want buyer", vector.LeadType)
	}
	if vector.Source != "zillow" {
		t.Fatalf("source = %q, want zillow", vector.Source)
	}
	if vector.PropertyType != "unknown" {
		t.Fatalf("property type = %q, want unknown", vector.PropertyType)
	}
	if vector.HasContact != "yes" {
		t.Fatalf("has contact = %q, want yes", vector.HasContact)
	}
	// Six of seven fields filled (property type missing).
	if vector.ProfileCompleteness != "5+" {
		t.Fatalf("completeness = %q, want 5+", vector.ProfileCompleteness)
	}
}

func TestExtractActivity_PriceRangeShiftRequiresOverFifteenPercent(t *testing.T) {
	price := func(v float64) []byte {
		return []byte(`{"maxPrice": ` + strconv.FormatFloat(v, 'f', -1, 64) + `}`)
	}

	makeSearches := func(earliest, latest float64) []domain.Activity {
		older := activityAt(domain.ActivitySearchPerformed, daysAgo(20))
		older.MetadataJSON = price(earliest)
		newer := activityAt(domain.ActivitySearchPerformed, daysAgo(1))
		newer.MetadataJSON = price(latest)
		return []domain.Activity{older, newer}
	}

	shifted := ExtractActivity(makeSearches(400000, 480000), refTime)
	if !shifted.PriceRangeShift {
		t.Fatal("20% increase should flag a price range shift")
	}

	flat := ExtractActivity(makeSearches(400000, 440000), refTime)
	if flat.PriceRangeShift {
		t.Fatal("10% increase must not flag a shift")
	}

	if *shifted.EarliestSearchMax != 400000 || *shifted.LatestSearchMax != 480000 {
		t.Fatalf("search ceilings = %v/%v, want 400000/480000",
			*shifted.EarliestSearchMax, *shifted.LatestSearchMax)
	}
}

func TestExtractActivity_MalformedMetadataIsSkippedNotFatal(t *testing.T) {
	good := activityAt(domain.ActivityListingFavorited, daysAgo(1))
	good.MetadataJSON = []byte(`{"zip": "62704"}`)
	bad := activityAt(domain.ActivityListingFavorited, daysAgo(2))
	bad.MetadataJSON = []byte(`{zip: broken`)

	out := ExtractActivity([]domain.Activity{good, bad}, refTime)

	if out.MalformedMetadata != 1 {
		t.Fatalf("malformed count = %d, want 1", out.MalformedMetadata)
	}
	if out.FavoriteZips["62704"] != 1 {
		t.Fatalf("favorite zips = %v, want one 62704", out.FavoriteZips)
	}
	if out.Total != 2 {
		t.Fatalf("total = %d, want 2 (malformed still counts toward frequency)", out.Total)
	}
}

func TestExtractActivity_PreferredChannelTieBreak(t *testing.T) {
	activities := []domain.Activity{
		activityAt(domain.ActivityEmailSent, daysAgo(1)),
		activityAt(domain.ActivityCallLogged, daysAgo(2)),
		activityAt(domain.ActivityEmailSent, daysAgo(3)),
		activityAt(domain.ActivityCallLogged, daysAgo(4)),
	}

	out := ExtractActivity(activities, refTime)
	if out.PreferredChannel != "call" {
		t.Fatalf("preferred channel = %q, want call on tie", out.PreferredChannel)
	}

	if none := ExtractActivity(nil, refTime); none.PreferredChannel != "any" {
		t.Fatalf("preferred channel = %q, want any with no contacts", none.PreferredChannel)
	}
}

func TestLeadArea_SecondTokenWithFallback(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"12 Oak St, Springfield, IL", "springfield"},
		{"Downtown", "downtown"},
		{"", ""},
	}

	for _, tt := range tests {
		lead := domain.Lead{ListingAddress: tt.address}
		if got := lead.Area(); got != tt.want {
			t.Fatalf("Area(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}
