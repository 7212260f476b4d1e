// Package signals turns a lead and its raw activity timeline into bucketed,
// comparable features and aggregate activity signals. Extraction is a pure
// function of its inputs and the supplied reference time; it never reads
// the system clock.
package signals

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/platform/phone"
)

// Feature names, in the fixed order used by the predictor.
const (
	FeatureActivityFrequency   = "activity_frequency"
	FeatureRecency             = "recency"
	FeatureFavoritesRatio      = "favorites_ratio"
	FeaturePipelineAge         = "pipeline_age"
	FeatureSource              = "source"
	FeaturePropertyType        = "property_type"
	FeatureLeadType            = "lead_type"
	FeatureHasContact          = "has_contact"
	FeatureProfileCompleteness = "profile_completeness"
)

// Feature is a single bucketed categorical observation.
type Feature struct {
	Name  string
	Value string
}

// FeatureVector is the fixed, ordered set of bucketed features the
// predictor scores. Recomputed per call; never persisted.
type FeatureVector struct {
	ActivityFrequency   string
	Recency             string
	FavoritesRatio      string
	PipelineAge         string
	Source              string
	PropertyType        string
	LeadType            string
	HasContact          string
	ProfileCompleteness string
}

// Features returns the vector in its canonical order.
func (v FeatureVector) Features() []Feature {
	return []Feature{
		{FeatureActivityFrequency, v.ActivityFrequency},
		{FeatureRecency, v.Recency},
		{FeatureFavoritesRatio, v.FavoritesRatio},
		{FeaturePipelineAge, v.PipelineAge},
		{FeatureSource, v.Source},
		{FeaturePropertyType, v.PropertyType},
		{FeatureLeadType, v.LeadType},
		{FeatureHasContact, v.HasContact},
		{FeatureProfileCompleteness, v.ProfileCompleteness},
	}
}

// Cardinality returns the number of distinct buckets for a fixed-domain
// feature, used as the Laplace smoothing denominator addend. Open
// categorical features (source, property type, lead type) return 0; the
// distribution substitutes the observed distinct-value count for those.
func Cardinality(feature string) int {
	switch feature {
	case FeatureActivityFrequency:
		return 5 // 0, 1-3, 4-8, 9-15, 16+
	case FeatureRecency:
		return 6 // 0-2d, 3-7d, 8-14d, 15-30d, 30d+, none
	case FeatureFavoritesRatio:
		return 4 // 0, 0.01-0.1, 0.1-0.3, 0.3+
	case FeaturePipelineAge:
		return 4 // 0-7d, 8-30d, 31-90d, 90d+
	case FeatureHasContact:
		return 2
	case FeatureProfileCompleteness:
		return 3 // 0-2, 3-4, 5+
	default:
		return 0
	}
}

// activityMetadata is the recognized shape of Activity.MetadataJSON.
// Unknown fields are ignored; unparsable payloads count as absent.
type activityMetadata struct {
	Zip       string   `json:"zip"`
	ListingID string   `json:"listingId"`
	MaxPrice  *float64 `json:"maxPrice"`
}

// Extract produces the lead's feature vector relative to the reference time.
func Extract(lead domain.Lead, activities []domain.Activity, now time.Time) FeatureVector {
	sorted := sortNewestFirst(activities)

	return FeatureVector{
		ActivityFrequency:   frequencyBucket(countSince(sorted, now.Add(-30*24*time.Hour))),
		Recency:             recencyBucket(sorted, now),
		FavoritesRatio:      favoritesRatioBucket(sorted),
		PipelineAge:         pipelineAgeBucket(lead.CreatedAt, now),
		Source:              categorical(lead.Source),
		PropertyType:        categorical(lead.PropertyType),
		LeadType:            categorical(lead.LeadType),
		HasContact:          hasContactBucket(lead),
		ProfileCompleteness: completenessBucket(profileCompleteness(lead)),
	}
}

// ActivitySignals are the aggregate timeline signals shared by the
// next-action, reminder and escalation engines.
type ActivitySignals struct {
	Total              int
	LastActivityAt     *time.Time
	LastAgentContactAt *time.Time
	CountLast7d        int
	CountPrev7d        int
	Count30d           int
	FavoriteZips       map[string]int
	ListingViews       map[string]int
	// FavoriteZipOrder and ListingViewOrder record first-encounter order in
	// the newest-first scan, so callers can pick the first qualifying entry
	// deterministically.
	FavoriteZipOrder   []string
	ListingViewOrder   []string
	EarliestSearchMax  *float64
	LatestSearchMax    *float64
	PriceRangeShift    bool
	PreferredChannel   string
	MalformedMetadata  int
}

// ExtractActivity aggregates the activity timeline relative to the
// reference time. Activities are sorted newest-first once; malformed
// metadata is skipped and counted.
func ExtractActivity(activities []domain.Activity, now time.Time) ActivitySignals {
	sorted := sortNewestFirst(activities)

	out := ActivitySignals{
		Total:        len(sorted),
		FavoriteZips: make(map[string]int),
		ListingViews: make(map[string]int),
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	for _, activity := range sorted {
		occurred := activity.OccurredAt
		if out.LastActivityAt == nil {
			t := occurred
			out.LastActivityAt = &t
		}
		if out.LastAgentContactAt == nil && activity.IsAgentContact() {
			t := occurred
			out.LastAgentContactAt = &t
		}

		if !occurred.Before(weekAgo) {
			out.CountLast7d++
		} else if !occurred.Before(twoWeeksAgo) {
			out.CountPrev7d++
		}
		if !occurred.Before(monthAgo) {
			out.Count30d++
		}

		meta, ok := parseMetadata(activity.MetadataJSON, &out.MalformedMetadata)
		if !ok {
			continue
		}

		switch activity.ActivityType {
		case domain.ActivityListingFavorited:
			if zip := strings.TrimSpace(meta.Zip); zip != "" {
				if out.FavoriteZips[zip] == 0 {
					out.FavoriteZipOrder = append(out.FavoriteZipOrder, zip)
				}
				out.FavoriteZips[zip]++
			}
		case domain.ActivityListingViewed:
			if id := strings.TrimSpace(meta.ListingID); id != "" {
				if out.ListingViews[id] == 0 {
					out.ListingViewOrder = append(out.ListingViewOrder, id)
				}
				out.ListingViews[id]++
			}
		case domain.ActivitySearchPerformed:
			if meta.MaxPrice != nil && *meta.MaxPrice > 0 {
				// Newest-first scan: the first ceiling seen is the latest
				// search, the last one seen is the earliest.
				if out.LatestSearchMax == nil {
					v := *meta.MaxPrice
					out.LatestSearchMax = &v
				}
				v := *meta.MaxPrice
				out.EarliestSearchMax = &v
			}
		}
	}

	if out.EarliestSearchMax != nil && out.LatestSearchMax != nil {
		out.PriceRangeShift = *out.LatestSearchMax > *out.EarliestSearchMax*1.15
	}

	out.PreferredChannel = preferredChannel(sorted)

	return out
}

// preferredChannel returns the most frequent contact channel in the 20 most
// recent activities, or "any" when none are logged. Ties resolve in the
// order call, email, text.
func preferredChannel(newestFirst []domain.Activity) string {
	limit := len(newestFirst)
	if limit > 20 {
		limit = 20
	}

	counts := map[string]int{}
	for _, activity := range newestFirst[:limit] {
		switch activity.ActivityType {
		case domain.ActivityCallLogged:
			counts["call"]++
		case domain.ActivityEmailSent:
			counts["email"]++
		case domain.ActivityTextSent:
			counts["text"]++
		}
	}

	best, bestCount := "any", 0
	for _, channel := range []string{"call", "email", "text"} {
		if counts[channel] > bestCount {
			best, bestCount = channel, counts[channel]
		}
	}
	return best
}

func sortNewestFirst(activities []domain.Activity) []domain.Activity {
	sorted := make([]domain.Activity, len(activities))
	copy(sorted, activities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})
	return sorted
}

func parseMetadata(raw []byte, malformed *int) (activityMetadata, bool) {
	var meta activityMetadata
	if len(raw) == 0 {
		return meta, false
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		*malformed++
		return meta, false
	}
	return meta, true
}

func countSince(activities []domain.Activity, cutoff time.Time) int {
	count := 0
	for _, activity := range activities {
		if !activity.OccurredAt.Before(cutoff) {
			count++
		}
	}
	return count
}

func frequencyBucket(count int) string {
	switch {
	case count == 0:
		return "0"
	case count <= 3:
		return "1-3"
	case count <= 8:
		return "4-8"
	case count <= 15:
		return "9-15"
	default:
		return "16+"
	}
}

func recencyBucket(newestFirst []domain.Activity, now time.Time) string {
	if len(newestFirst) == 0 {
		return "none"
	}
	days := daysBetween(newestFirst[0].OccurredAt, now)
	switch {
	case days <= 2:
		return "0-2d"
	case days <= 7:
		return "3-7d"
	case days <= 14:
		return "8-14d"
	case days <= 30:
		return "15-30d"
	default:
		return "30d+"
	}
}

func favoritesRatioBucket(activities []domain.Activity) string {
	var viewed, favorited int
	for _, activity := range activities {
		switch activity.ActivityType {
		case domain.ActivityListingViewed:
			viewed++
		case domain.ActivityListingFavorited:
			favorited++
		}
	}
	if viewed == 0 || favorited == 0 {
		return "0"
	}
	ratio := float64(favorited) / float64(viewed)
	switch {
	case ratio <= 0.1:
		return "0.01-0.1"
	case ratio <= 0.3:
		return "0.1-0.3"
	default:
		return "0.3+"
	}
}

func pipelineAgeBucket(createdAt, now time.Time) string {
	days := daysBetween(createdAt, now)
	switch {
	case days <= 7:
		return "0-7d"
	case days <= 30:
		return "8-30d"
	case days <= 90:
		return "31-90d"
	default:
		return "90d+"
	}
}

func categorical(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func hasContactBucket(lead domain.Lead) string {
	if lead.ContactID != nil {
		return "yes"
	}
	return "no"
}

// profileCompleteness counts the filled profile fields. A phone number only
// counts when it parses as dialable.
func profileCompleteness(lead domain.Lead) int {
	count := 0
	if strings.TrimSpace(lead.LeadType) != "" {
		count++
	}
	if strings.TrimSpace(lead.Source) != "" {
		count++
	}
	if strings.TrimSpace(lead.PropertyType) != "" {
		count++
	}
	if strings.TrimSpace(lead.ListingAddress) != "" {
		count++
	}
	if lead.PriceMin != nil && lead.PriceMax != nil {
		count++
	}
	if lead.ContactID != nil {
		count++
	}
	if phone.IsValid(lead.ContactPhone) {
		count++
	}
	return count
}

func completenessBucket(count int) string {
	switch {
	case count <= 2:
		return "0-2"
	case count <= 4:
		return "3-4"
	default:
		return "5+"
	}
}

// daysBetween returns whole days from earlier to later, truncated.
func daysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}
