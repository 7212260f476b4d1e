// Package nextaction turns a lead's current state into concrete suggested
// actions. Patterns are an ordered list of independent predicate/builder
// pairs; adding a behavior means appending a pattern, not growing a
// conditional.
package nextaction

import (
	"fmt"
	"strings"
	"time"

	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/signals"
)

// Urgency levels, ordered for sorting.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

// favoriteClusterMin is how many favorites in one zip count as a cluster.
const favoriteClusterMin = 3

// repeatViewMin is how many views of one listing count as fixation.
const repeatViewMin = 3

// Active-browsing thresholds, in days: activity fresher than
// activeBrowsingDays with no agent contact inside contactGapDays.
const (
	activeBrowsingDays = 5
	contactGapDays     = 5
)

// Action is one suggested step. Reason is always authored by the rule
// engine; Detail optionally carries AI-enriched context on top.
type Action struct {
	Type    string `json:"type"`
	Urgency string `json:"urgency"`
	Channel string `json:"channel,omitempty"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// patternInput is everything a pattern may look at.
type patternInput struct {
	lead domain.Lead
	sig  signals.ActivitySignals
	now  time.Time
}

// pattern pairs a predicate with an action builder. Patterns are evaluated
// independently; several may fire for the same lead.
type pattern struct {
	name    string
	applies func(patternInput) bool
	build   func(patternInput) Action
}

// patterns is the ordered rule set. Order only matters as a tie-break
// within the same urgency.
var patterns = []pattern{
	{
		name: "overdue_follow_up",
		applies: func(in patternInput) bool {
			return in.lead.NextActionAt != nil && in.lead.NextActionAt.Before(in.now)
		},
		build: func(in patternInput) Action {
			days := int(in.now.Sub(*in.lead.NextActionAt).Hours() / 24)
			channel := "call"
			if in.lead.NextActionChannel != nil && *in.lead.NextActionChannel != "" {
				channel = *in.lead.NextActionChannel
			}
			return Action{
				Type:    "complete_follow_up",
				Urgency: UrgencyHigh,
				Channel: channel,
				Reason:  fmt.Sprintf("Scheduled follow-up is %d days overdue.", days),
			}
		},
	},
	{
		name: "hot_browsing_no_contact",
		applies: func(in patternInput) bool {
			if in.sig.LastActivityAt == nil {
				return false
			}
			if !in.sig.LastActivityAt.After(in.now.Add(-activeBrowsingDays * 24 * time.Hour)) {
				return false
			}
			if in.sig.LastAgentContactAt == nil {
				return true
			}
			return in.sig.LastAgentContactAt.Before(in.now.Add(-contactGapDays * 24 * time.Hour))
		},
		build: func(in patternInput) Action {
			days := int(in.now.Sub(*in.sig.LastActivityAt).Hours() / 24)
			return Action{
				Type:    "reach_out",
				Urgency: UrgencyHigh,
				Channel: in.sig.PreferredChannel,
				Reason:  fmt.Sprintf("Lead was active %d days ago with no recent agent contact.", days),
			}
		},
	},
	{
		name: "favorite_cluster",
		applies: func(in patternInput) bool {
			zip := clusterZip(in.sig)
			return zip != ""
		},
		build: func(in patternInput) Action {
			zip := clusterZip(in.sig)
			return Action{
				Type:    "propose_showing",
				Urgency: UrgencyMedium,
				Channel: in.sig.PreferredChannel,
				Reason:  fmt.Sprintf("Lead favorited %d listings in zip %s; offer a showing there.", in.sig.FavoriteZips[zip], zip),
			}
		},
	},
	{
		name: "repeat_listing_views",
		applies: func(in patternInput) bool {
			return repeatListing(in.sig) != ""
		},
		build: func(in patternInput) Action {
			listing := repeatListing(in.sig)
			return Action{
				Type:    "discuss_listing",
				Urgency: UrgencyMedium,
				Channel: in.sig.PreferredChannel,
				Reason:  fmt.Sprintf("Lead viewed listing %s %d times; ask what is holding them back.", listing, in.sig.ListingViews[listing]),
			}
		},
	},
	{
		name: "price_range_shift",
		applies: func(in patternInput) bool {
			return in.sig.PriceRangeShift
		},
		build: func(in patternInput) Action {
			return Action{
				Type:    "discuss_budget",
				Urgency: UrgencyMedium,
				Reason: fmt.Sprintf("Search price ceiling moved from %.0f to %.0f; the budget conversation is stale.",
					*in.sig.EarliestSearchMax, *in.sig.LatestSearchMax),
			}
		},
	},
	{
		name: "declining_engagement",
		applies: func(in patternInput) bool {
			// A drop of more than half, with some activity still happening. A
			// lead at zero this week is dormant, not declining.
			return in.sig.CountLast7d > 0 && in.sig.CountLast7d*2 < in.sig.CountPrev7d
		},
		build: func(in patternInput) Action {
			return Action{
				Type:    "re_engage",
				Urgency: UrgencyMedium,
				Channel: in.sig.PreferredChannel,
				Reason: fmt.Sprintf("Activity dropped from %d to %d week over week; send something worth replying to.",
					in.sig.CountPrev7d, in.sig.CountLast7d),
			}
		},
	},
	{
		name: "nothing_scheduled",
		applies: func(in patternInput) bool {
			return in.lead.NextActionAt == nil && !in.lead.Status.Closed()
		},
		build: func(in patternInput) Action {
			return Action{
				Type:    "schedule_follow_up",
				Urgency: UrgencyLow,
				Reason:  "No follow-up is on the calendar for this lead.",
			}
		},
	},
}

// clusterZip returns the first zip, in encounter order, with enough
// favorites to count as a cluster. A literal "unknown" zip never qualifies.
func clusterZip(sig signals.ActivitySignals) string {
	for _, zip := range sig.FavoriteZipOrder {
		if strings.EqualFold(zip, "unknown") {
			continue
		}
		if sig.FavoriteZips[zip] >= favoriteClusterMin {
			return zip
		}
	}
	return ""
}

// repeatListing returns the first listing, in encounter order, viewed often
// enough to suggest fixation.
func repeatListing(sig signals.ActivitySignals) string {
	for _, listing := range sig.ListingViewOrder {
		if sig.ListingViews[listing] >= repeatViewMin {
			return listing
		}
	}
	return ""
}
