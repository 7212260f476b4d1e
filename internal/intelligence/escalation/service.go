// Package escalation derives a lead's neglect level from its timeline. The
// level is never stored; it is recomputed from the lead and its activities
// every time, so it can only be wrong for as long as the data is.
package escalation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/signals"
	"realty_portal_backend/platform/logger"
)

// Trigger types, in the vocabulary shown to agents.
const (
	TriggerOverdueFollowUp   = "overdue_follow_up"
	TriggerNoAgentContact    = "no_agent_contact"
	TriggerDecliningActivity = "declining_activity"
	TriggerColdNewLead       = "cold_new_lead"
)

// Grace periods, in days. A trigger surfaces the moment its grace is fully
// used up (zero days overdue) and accrues from there.
const (
	noContactGraceDays    = 14
	neverContactGraceDays = 7
	decliningGraceDays    = 14
	coldNewGraceDays      = 3
)

// decayByLevel is the predicted-score penalty applied per escalation level.
var decayByLevel = [5]int{0, 10, 20, 35, 50}

// Trigger is one firing neglect condition.
type Trigger struct {
	Type        string `json:"type"`
	DaysOverdue int    `json:"daysOverdue"`
	Detail      string `json:"detail"`
}

// Assessment is the escalation result for a lead.
type Assessment struct {
	Level                    int                 `json:"level"`
	Triggers                 []Trigger           `json:"triggers"`
	ScoreDecayPercent        int                 `json:"scoreDecayPercent"`
	Recommendation           string              `json:"recommendation"`
	RecommendationProvenance aiassist.Provenance `json:"recommendationProvenance"`
	GeneratedAt              time.Time           `json:"generatedAt"`
}

// Service computes escalation assessments.
type Service struct {
	enhancer *aiassist.Enhancer
	log      *logger.Logger
}

// NewService wires the escalation engine.
func NewService(enhancer *aiassist.Enhancer, log *logger.Logger) *Service {
	return &Service{enhancer: enhancer, log: log}
}

// Assess evaluates every trigger against the lead relative to the reference
// time. Closed leads never escalate.
func (s *Service) Assess(ctx context.Context, lead domain.Lead, activities []domain.Activity, now time.Time, budget *aiassist.Budget) Assessment {
	if lead.Status.Closed() {
		return Assessment{
			Level:                    0,
			Recommendation:           "Lead is closed; no action needed.",
			RecommendationProvenance: aiassist.RuleProvenance(now),
			GeneratedAt:              now,
		}
	}

	sig := signals.ExtractActivity(activities, now)
	triggers := evaluateTriggers(lead, sig, now)

	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].DaysOverdue > triggers[j].DaysOverdue
	})

	level := levelFor(maxDaysOverdue(triggers))

	fallback := deterministicRecommendation(level, triggers)
	recommendation, provenance := fallback, aiassist.RuleProvenance(now)
	if level > 0 {
		prompt := recommendationPrompt(lead, level, triggers)
		recommendation, provenance = s.enhancer.Enhance(ctx, lead.TenantID, "escalation", prompt, fallback, budget)
	}

	return Assessment{
		Level:                    level,
		Triggers:                 triggers,
		ScoreDecayPercent:        decayByLevel[level],
		Recommendation:           recommendation,
		RecommendationProvenance: provenance,
		GeneratedAt:              now,
	}
}

func evaluateTriggers(lead domain.Lead, sig signals.ActivitySignals, now time.Time) []Trigger {
	var triggers []Trigger

	if lead.NextActionAt != nil {
		if overdue := wholeDays(now.Sub(*lead.NextActionAt)); overdue > 0 {
			triggers = append(triggers, Trigger{
				Type:        TriggerOverdueFollowUp,
				DaysOverdue: overdue,
				Detail:      fmt.Sprintf("Scheduled follow-up is %d days past due.", overdue),
			})
		}
	}

	ageDays := wholeDays(now.Sub(lead.CreatedAt))

	if sig.LastAgentContactAt != nil {
		sinceContact := wholeDays(now.Sub(*sig.LastAgentContactAt))
		if overdue := sinceContact - noContactGraceDays; overdue >= 0 {
			triggers = append(triggers, Trigger{
				Type:        TriggerNoAgentContact,
				DaysOverdue: overdue,
				Detail:      fmt.Sprintf("No agent contact for %d days.", sinceContact),
			})
		}
	} else if overdue := ageDays - neverContactGraceDays; overdue >= 0 {
		triggers = append(triggers, Trigger{
			Type:        TriggerNoAgentContact,
			DaysOverdue: overdue,
			Detail:      fmt.Sprintf("Lead is %d days old and has never been contacted.", ageDays),
		})
	}

	if sig.LastActivityAt != nil && lead.NextActionAt == nil {
		sinceActivity := wholeDays(now.Sub(*sig.LastActivityAt))
		if overdue := sinceActivity - decliningGraceDays; overdue >= 0 {
			triggers = append(triggers, Trigger{
				Type:        TriggerDecliningActivity,
				DaysOverdue: overdue,
				Detail:      fmt.Sprintf("Activity stopped %d days ago and no follow-up is scheduled.", sinceActivity),
			})
		}
	}

	if lead.Status == domain.StatusNew && sig.Total == 0 && lead.NextActionAt == nil {
		if overdue := ageDays - coldNewGraceDays; overdue >= 0 {
			triggers = append(triggers, Trigger{
				Type:        TriggerColdNewLead,
				DaysOverdue: overdue,
				Detail:      fmt.Sprintf("New lead has sat untouched for %d days.", ageDays),
			})
		}
	}

	return triggers
}

func maxDaysOverdue(triggers []Trigger) int {
	max := 0
	for _, trigger := range triggers {
		if trigger.DaysOverdue > max {
			max = trigger.DaysOverdue
		}
	}
	return max
}

// levelFor maps the worst overdue count onto the 0-4 scale.
func levelFor(daysOverdue int) int {
	switch {
	case daysOverdue <= 0:
		return 0
	case daysOverdue <= 3:
		return 1
	case daysOverdue <= 7:
		return 2
	case daysOverdue <= 14:
		return 3
	default:
		return 4
	}
}

// deterministicRecommendation escalates in tone with the level.
func deterministicRecommendation(level int, triggers []Trigger) string {
	if level == 0 {
		return "Lead is on track; no escalation needed."
	}

	worst := triggers[0]
	switch level {
	case 1:
		return fmt.Sprintf("Worth a check-in soon. %s", worst.Detail)
	case 2:
		return fmt.Sprintf("Follow up today. %s", worst.Detail)
	case 3:
		return fmt.Sprintf("This lead is going cold. Reach out now. %s", worst.Detail)
	default:
		return fmt.Sprintf("Critically neglected. Contact immediately or reassign. %s", worst.Detail)
	}
}

func recommendationPrompt(lead domain.Lead, level int, triggers []Trigger) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("A real-estate lead has reached escalation level %d of 4. Firing conditions: ", level))
	for i, trigger := range triggers {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(trigger.Detail)
	}
	if lead.NextActionChannel != nil {
		sb.WriteString(fmt.Sprintf(". The planned contact channel is %s", *lead.NextActionChannel))
	}
	sb.WriteString(". Write one or two sentences telling the agent what to do next, with urgency matching the level. No markdown.")
	return sb.String()
}

// wholeDays truncates a duration to whole days.
func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}
