// Package domain holds the read models the intelligence engine consumes.
// Leads, activities and actors are owned by the surrounding CRM; the engine
// only ever reads them.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the lead lifecycle state.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusQualified LeadStatus = "qualified"
	StatusNurturing LeadStatus = "nurturing"
	StatusWon       LeadStatus = "won"
	StatusLost      LeadStatus = "lost"
)

// Closed reports whether the lead has reached a terminal outcome.
func (s LeadStatus) Closed() bool {
	return s == StatusWon || s == StatusLost
}

// Activity type tags. ActivityType is free-form; these are the tags the
// engine assigns meaning to. Unknown tags still count toward frequency.
const (
	ActivityListingViewed    = "listing_viewed"
	ActivityListingFavorited = "listing_favorited"
	ActivitySearchPerformed  = "search_performed"
	ActivityCallLogged       = "call_logged"
	ActivityEmailSent        = "email_sent"
	ActivityTextSent         = "text_sent"
	ActivityMeetingHeld      = "meeting_held"
)

// Lead is the read model of a CRM lead.
// Invariant (owned by the CRM): ClosedAt is set iff Status is won or lost.
type Lead struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	Status               LeadStatus
	LeadType             string
	Source               string
	PropertyType         string
	ListingAddress       string
	PriceMin             *int64
	PriceMax             *int64
	ContactID            *uuid.UUID
	ContactPhone         string
	AssignedTo           *uuid.UUID
	CreatedAt            time.Time
	ClosedAt             *time.Time
	NextActionAt         *time.Time
	NextActionChannel    *string
	LastContactAt        *time.Time
	ReminderSnoozedUntil *time.Time
}

// Area returns the routing area of the lead's listing address: the second
// comma-delimited token (typically the city), falling back to the first
// token, or "" when no address is recorded.
func (l Lead) Area() string {
	parts := strings.Split(l.ListingAddress, ",")
	if len(parts) >= 2 {
		if area := strings.ToLower(strings.TrimSpace(parts[1])); area != "" {
			return area
		}
	}
	if len(parts) >= 1 {
		return strings.ToLower(strings.TrimSpace(parts[0]))
	}
	return ""
}

// Activity is one timeline entry on a lead. MetadataJSON is an optional
// structured payload (zip code, listing id, search price ceiling); malformed
// payloads are treated as absent, never as errors.
type Activity struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	ActorID      *uuid.UUID
	ActivityType string
	OccurredAt   time.Time
	MetadataJSON []byte
}

// IsAgentContact reports whether the activity represents an agent reaching
// out to the lead.
func (a Activity) IsAgentContact() bool {
	switch a.ActivityType {
	case ActivityCallLogged, ActivityEmailSent, ActivityTextSent, ActivityMeetingHeld:
		return true
	}
	return false
}

// Actor is an agent who can be assigned leads. Historical performance is
// derived from the leads assigned to the actor, never stored.
type Actor struct {
	ID          uuid.UUID
	DisplayName string
}

// ClosedLeadBundle pairs a closed lead with its activity timeline; the
// predictor builds its historical distribution from these.
type ClosedLeadBundle struct {
	Lead       Lead
	Activities []Activity
}
