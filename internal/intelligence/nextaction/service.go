package nextaction

import (
	"context"
	"sort"
	"strings"
	"time"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/signals"
	"realty_portal_backend/platform/logger"
)

// maxEnriched caps how many top actions get an AI detail pass.
const maxEnriched = 3

var urgencyRank = map[string]int{
	UrgencyHigh:   0,
	UrgencyMedium: 1,
	UrgencyLow:    2,
}

// Suggestions is the next-action result for a lead.
type Suggestions struct {
	Actions          []Action            `json:"actions"`
	DetailProvenance aiassist.Provenance `json:"detailProvenance"`
	GeneratedAt      time.Time           `json:"generatedAt"`
}

// Service evaluates the pattern list against leads.
type Service struct {
	enhancer *aiassist.Enhancer
	log      *logger.Logger
}

// NewService wires the next-action engine.
func NewService(enhancer *aiassist.Enhancer, log *logger.Logger) *Service {
	return &Service{enhancer: enhancer, log: log}
}

// Suggest evaluates every pattern and returns the firing actions sorted by
// urgency, pattern order preserved within a tier. The top actions get an
// optional AI detail; reasons are always rule-authored.
func (s *Service) Suggest(ctx context.Context, lead domain.Lead, activities []domain.Activity, now time.Time, budget *aiassist.Budget) Suggestions {
	in := patternInput{
		lead: lead,
		sig:  signals.ExtractActivity(activities, now),
		now:  now,
	}

	var actions []Action
	for _, pattern := range patterns {
		if pattern.applies(in) {
			actions = append(actions, pattern.build(in))
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return urgencyRank[actions[i].Urgency] < urgencyRank[actions[j].Urgency]
	})

	provenance := aiassist.RuleProvenance(now)
	for i := range actions {
		if i >= maxEnriched {
			break
		}
		detail, prov := s.enhancer.Enhance(ctx, lead.TenantID, "nextaction",
			detailPrompt(lead, actions[i]), "", budget)
		if prov.Source == aiassist.SourceAI && detail != "" {
			actions[i].Detail = detail
			provenance = prov
		}
	}

	return Suggestions{
		Actions:          actions,
		DetailProvenance: provenance,
		GeneratedAt:      now,
	}
}

func detailPrompt(lead domain.Lead, action Action) string {
	var sb strings.Builder
	sb.WriteString("A real-estate agent was told to take this action on a lead: ")
	sb.WriteString(action.Reason)
	if action.Channel != "" {
		sb.WriteString(" Preferred channel: " + action.Channel + ".")
	}
	if leadType := strings.TrimSpace(lead.LeadType); leadType != "" {
		sb.WriteString(" The lead is a " + strings.ToLower(leadType) + ".")
	}
	sb.WriteString(" Write one sentence of extra context or a conversation opener. No markdown.")
	return sb.String()
}
