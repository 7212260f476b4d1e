package routing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Factor weights. They sum to 1; the final score is the weighted blend on a
// 0-100 scale.
const (
	weightGeography    = 0.25
	weightPropertyType = 0.20
	weightLoad         = 0.20
	weightConversion   = 0.20
	weightResponse     = 0.15
)

// Defaults applied when a factor has no data to judge an agent on.
const (
	defaultGeographyScore    = 30.0
	defaultPropertyTypeScore = 40.0
	defaultLoadScore         = 80.0
	defaultConversionScore   = 50.0
	defaultResponseScore     = 50.0
)

// minClosedForConversion is the closed-lead floor below which an agent's
// win rate is considered unmeasured.
const minClosedForConversion = 5

// FactorScore is one factor's 0-100 score and its weight in the blend.
type FactorScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// AgentScore is one agent's overall fit for the lead.
type AgentScore struct {
	ActorID           uuid.UUID     `json:"actorId"`
	DisplayName       string        `json:"displayName"`
	Score             int           `json:"score"`
	Factors           []FactorScore `json:"factors"`
	IsCurrentAssignee bool          `json:"isCurrentAssignee"`
}

// Recommendation ranks every agent for the lead, best first.
type Recommendation struct {
	Mode                  string              `json:"mode"` // solo | team
	Ranked                []AgentScore        `json:"ranked"`
	Explanation           string              `json:"explanation"`
	ExplanationProvenance aiassist.Provenance `json:"explanationProvenance"`
	GeneratedAt           time.Time           `json:"generatedAt"`
}

// Service scores agents against leads.
type Service struct {
	enhancer *aiassist.Enhancer
	log      *logger.Logger
}

// NewService wires the routing scorer.
func NewService(enhancer *aiassist.Enhancer, log *logger.Logger) *Service {
	return &Service{enhancer: enhancer, log: log}
}

// Score ranks the tenant's agents for the lead relative to the reference
// time. With a single agent the result is tagged solo mode; the score is
// still computed so the caller can show the breakdown.
func (s *Service) Score(ctx context.Context, lead domain.Lead, actors []domain.Actor, leads []domain.Lead, activitiesByLead map[uuid.UUID][]domain.Activity, now time.Time, budget *aiassist.Budget) Recommendation {
	profiles := BuildProfiles(actors, leads, activitiesByLead, now)
	avgActive := averageActiveLeads(profiles)

	ranked := make([]AgentScore, 0, len(actors))
	for _, actor := range actors {
		profile := profiles[actor.ID]
		factors := []FactorScore{
			{Name: "geography", Score: geographyScore(lead, profile), Weight: weightGeography},
			{Name: "property_type", Score: propertyTypeScore(lead, profile), Weight: weightPropertyType},
			{Name: "workload", Score: loadScore(profile, avgActive), Weight: weightLoad},
			{Name: "conversion", Score: conversionScore(profile), Weight: weightConversion},
			{Name: "responsiveness", Score: responseScore(profile), Weight: weightResponse},
		}

		total := 0.0
		for _, factor := range factors {
			total += factor.Score * factor.Weight
		}

		ranked = append(ranked, AgentScore{
			ActorID:           actor.ID,
			DisplayName:       actor.DisplayName,
			Score:             int(math.Round(total)),
			Factors:           factors,
			IsCurrentAssignee: lead.AssignedTo != nil && *lead.AssignedTo == actor.ID,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DisplayName < ranked[j].DisplayName
	})

	mode := "team"
	if len(actors) <= 1 {
		mode = "solo"
	}

	explanation, provenance := s.explain(ctx, lead, mode, ranked, now, budget)

	return Recommendation{
		Mode:                  mode,
		Ranked:                ranked,
		Explanation:           explanation,
		ExplanationProvenance: provenance,
		GeneratedAt:           now,
	}
}

func (s *Service) explain(ctx context.Context, lead domain.Lead, mode string, ranked []AgentScore, now time.Time, budget *aiassist.Budget) (string, aiassist.Provenance) {
	if len(ranked) == 0 {
		return "No agents available to route this lead to.", aiassist.RuleProvenance(now)
	}

	top := ranked[0]
	fallback := deterministicRationale(top, mode)
	prompt := rationalePrompt(lead, top, mode)
	return s.enhancer.Enhance(ctx, lead.TenantID, "routing", prompt, fallback, budget)
}

// deterministicRationale cites the factors that carried the recommendation
// (70+) and the ones that drag it down (under 40).
func deterministicRationale(top AgentScore, mode string) string {
	var strengths, caveats []string
	for _, factor := range top.Factors {
		label := strings.ReplaceAll(factor.Name, "_", " ")
		if factor.Score >= 70 {
			strengths = append(strengths, label)
		} else if factor.Score < 40 {
			caveats = append(caveats, label)
		}
	}

	parts := []string{fmt.Sprintf("%s is the best fit with a score of %d.", top.DisplayName, top.Score)}
	if len(strengths) > 0 {
		parts = append(parts, "Strong on "+strings.Join(strengths, ", ")+".")
	}
	if len(caveats) > 0 {
		parts = append(parts, "Weaker on "+strings.Join(caveats, ", ")+".")
	}
	if mode == "solo" {
		parts = append(parts, "Only one agent is available.")
	}
	return strings.Join(parts, " ")
}

func rationalePrompt(lead domain.Lead, top AgentScore, mode string) string {
	var sb strings.Builder
	sb.WriteString("You are helping a real-estate team lead assign a lead to an agent. ")
	sb.WriteString(fmt.Sprintf("The recommended agent is %s with an overall fit score of %d out of 100 (%s mode). Factor scores: ", top.DisplayName, top.Score, mode))
	for i, factor := range top.Factors {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s %.0f", factor.Name, factor.Score))
	}
	if area := lead.Area(); area != "" {
		sb.WriteString(fmt.Sprintf(". The lead's area is %s", area))
	}
	sb.WriteString(". Write two plain sentences explaining why this agent fits, mentioning the strongest and weakest factors. No markdown.")
	return sb.String()
}

func averageActiveLeads(profiles map[uuid.UUID]*AgentProfile) float64 {
	if len(profiles) == 0 {
		return 0
	}
	total := 0
	for _, profile := range profiles {
		total += profile.ActiveLeads
	}
	return float64(total) / float64(len(profiles))
}

// geographyScore rewards agents whose recent wins concentrate in the lead's
// area: twice the agent's share of wins there, capped at 100.
func geographyScore(lead domain.Lead, profile *AgentProfile) float64 {
	area := lead.Area()
	if area == "" || profile.Won == 0 {
		return defaultGeographyScore
	}
	share := float64(profile.AreaWins[area]) / float64(profile.Won)
	return math.Min(100, share*200)
}

// propertyTypeScore rewards agents who win the lead's kind of property:
// twice the agent's share of wins on that property type, capped at 100.
func propertyTypeScore(lead domain.Lead, profile *AgentProfile) float64 {
	propertyType := strings.ToLower(strings.TrimSpace(lead.PropertyType))
	if propertyType == "" || profile.Won == 0 {
		return defaultPropertyTypeScore
	}
	share := float64(profile.PropertyTypeWins[propertyType]) / float64(profile.Won)
	return math.Min(100, share*200)
}

// loadScore penalizes agents carrying more than the team average: 100 at or
// below average, dropping 50 points per full average-multiple above it.
func loadScore(profile *AgentProfile, avgActive float64) float64 {
	if avgActive == 0 {
		return defaultLoadScore
	}
	score := 100 - 50*(float64(profile.ActiveLeads)/avgActive-1)
	return clamp(score, 0, 100)
}

func conversionScore(profile *AgentProfile) float64 {
	if profile.ClosedTotal() < minClosedForConversion {
		return defaultConversionScore
	}
	return math.Min(100, profile.WinRate()*150)
}

// responseScore maps average first-response hours linearly: 100 at four
// hours or faster, 0 at 48 hours or slower.
func responseScore(profile *AgentProfile) float64 {
	if profile.AvgFirstResponseHours == nil {
		return defaultResponseScore
	}
	hours := *profile.AvgFirstResponseHours
	switch {
	case hours <= 4:
		return 100
	case hours >= 48:
		return 0
	default:
		return 100 * (48 - hours) / 44
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
