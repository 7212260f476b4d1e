// Package routing ranks a tenant's agents for a lead with a five-factor
// weighted score. Agent performance is always derived on the fly from the
// tenant's leads; nothing about an agent's track record is stored.
package routing

import (
	"strings"
	"time"

	"realty_portal_backend/internal/intelligence/domain"

	"github.com/google/uuid"
)

// performanceWindow bounds how far back closed leads count toward an
// agent's conversion and specialty profile.
const performanceWindow = 90 * 24 * time.Hour

// AgentProfile is the derived routing profile of one agent.
type AgentProfile struct {
	Actor       domain.Actor
	ActiveLeads int

	// Closed-lead outcomes inside the performance window.
	Won  int
	Lost int

	// AreaWins and PropertyTypeWins count won leads by listing area and
	// property type.
	AreaWins         map[string]int
	PropertyTypeWins map[string]int

	// AvgFirstResponseHours is the mean hours from lead creation to the
	// agent's first contact activity. Nil when the agent has no measured
	// responses.
	AvgFirstResponseHours *float64
}

// ClosedTotal is the number of closed leads backing the win rate.
func (p AgentProfile) ClosedTotal() int {
	return p.Won + p.Lost
}

// WinRate is won / closed inside the window; zero when nothing closed.
func (p AgentProfile) WinRate() float64 {
	if p.ClosedTotal() == 0 {
		return 0
	}
	return float64(p.Won) / float64(p.ClosedTotal())
}

// BuildProfiles derives routing profiles for every actor from the tenant's
// leads and their activity timelines, relative to the reference time.
func BuildProfiles(actors []domain.Actor, leads []domain.Lead, activitiesByLead map[uuid.UUID][]domain.Activity, now time.Time) map[uuid.UUID]*AgentProfile {
	profiles := make(map[uuid.UUID]*AgentProfile, len(actors))
	for _, actor := range actors {
		profiles[actor.ID] = &AgentProfile{
			Actor:            actor,
			AreaWins:         make(map[string]int),
			PropertyTypeWins: make(map[string]int),
		}
	}

	windowStart := now.Add(-performanceWindow)
	responseTotals := make(map[uuid.UUID]float64)
	responseCounts := make(map[uuid.UUID]int)

	for _, lead := range leads {
		if lead.AssignedTo == nil {
			continue
		}
		profile, ok := profiles[*lead.AssignedTo]
		if !ok {
			continue
		}

		if !lead.Status.Closed() {
			profile.ActiveLeads++
		} else if lead.ClosedAt != nil && !lead.ClosedAt.Before(windowStart) {
			if lead.Status == domain.StatusWon {
				profile.Won++
				if area := lead.Area(); area != "" {
					profile.AreaWins[area]++
				}
				if propertyType := strings.ToLower(strings.TrimSpace(lead.PropertyType)); propertyType != "" {
					profile.PropertyTypeWins[propertyType]++
				}
			} else {
				profile.Lost++
			}
		}

		if hours, ok := firstResponseHours(lead, activitiesByLead[lead.ID]); ok {
			responseTotals[*lead.AssignedTo] += hours
			responseCounts[*lead.AssignedTo]++
		}
	}

	for actorID, profile := range profiles {
		if count := responseCounts[actorID]; count > 0 {
			avg := responseTotals[actorID] / float64(count)
			profile.AvgFirstResponseHours = &avg
		}
	}

	return profiles
}

// firstResponseHours finds the assigned agent's earliest contact activity on
// the lead and returns the hours elapsed since the lead was created.
func firstResponseHours(lead domain.Lead, activities []domain.Activity) (float64, bool) {
	var earliest *time.Time
	for _, activity := range activities {
		if activity.ActorID == nil || *activity.ActorID != *lead.AssignedTo {
			continue
		}
		if !activity.IsAgentContact() {
			continue
		}
		if activity.OccurredAt.Before(lead.CreatedAt) {
			continue
		}
		if earliest == nil || activity.OccurredAt.Before(*earliest) {
			t := activity.OccurredAt
			earliest = &t
		}
	}
	if earliest == nil {
		return 0, false
	}
	return earliest.Sub(lead.CreatedAt).Hours(), true
}
