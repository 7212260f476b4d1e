// Package service is the orchestration facade over the intelligence
// engines: it loads tenant data, fans the scorers out, and shapes combined
// results. All scoring itself lives in the engine packages.
package service

import (
	"context"
	"time"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/escalation"
	"realty_portal_backend/internal/intelligence/nextaction"
	"realty_portal_backend/internal/intelligence/predictor"
	"realty_portal_backend/internal/intelligence/reminders"
	"realty_portal_backend/internal/intelligence/repository"
	"realty_portal_backend/internal/intelligence/routing"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service coordinates data loading and the individual engines.
type Service struct {
	repo       repository.Reader
	predictor  *predictor.Service
	routing    *routing.Service
	escalation *escalation.Service
	nextaction *nextaction.Service
	reminders  *reminders.Service
	log        *logger.Logger
}

// New wires the facade.
func New(
	repo repository.Reader,
	predictorSvc *predictor.Service,
	routingSvc *routing.Service,
	escalationSvc *escalation.Service,
	nextactionSvc *nextaction.Service,
	remindersSvc *reminders.Service,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		predictor:  predictorSvc,
		routing:    routingSvc,
		escalation: escalationSvc,
		nextaction: nextactionSvc,
		reminders:  remindersSvc,
		log:        log,
	}
}

// Insights is the combined per-lead result.
type Insights struct {
	LeadID      uuid.UUID              `json:"leadId"`
	Prediction  predictor.Prediction   `json:"prediction"`
	Escalation  escalation.Assessment  `json:"escalation"`
	NextActions nextaction.Suggestions `json:"nextActions"`
	Reminder    *reminders.Suggestion  `json:"reminder"`
	GeneratedAt time.Time              `json:"generatedAt"`
}

// Prediction scores one lead's win probability.
func (s *Service) Prediction(ctx context.Context, tenantID, leadID uuid.UUID, now time.Time) (predictor.Prediction, error) {
	lead, activities, err := s.loadLead(ctx, tenantID, leadID)
	if err != nil {
		return predictor.Prediction{}, err
	}
	return s.predictor.Predict(ctx, lead, activities, now, aiassist.NewBudget())
}

// Routing ranks the tenant's agents for one lead.
func (s *Service) Routing(ctx context.Context, tenantID, leadID uuid.UUID, now time.Time) (routing.Recommendation, error) {
	var (
		lead       domain.Lead
		actors     []domain.Actor
		leads      []domain.Lead
		activities []domain.Activity
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		lead, err = s.repo.GetLead(groupCtx, tenantID, leadID)
		return err
	})
	group.Go(func() error {
		var err error
		actors, err = s.repo.ListActors(groupCtx, tenantID)
		return err
	})
	group.Go(func() error {
		var err error
		leads, err = s.repo.ListLeads(groupCtx, tenantID)
		return err
	})
	group.Go(func() error {
		var err error
		activities, err = s.repo.ListActivities(groupCtx, tenantID)
		return err
	})
	if err := group.Wait(); err != nil {
		return routing.Recommendation{}, err
	}

	return s.routing.Score(ctx, lead, actors, leads, groupByLead(activities), now, aiassist.NewBudget()), nil
}

// Escalation assesses one lead's neglect level.
func (s *Service) Escalation(ctx context.Context, tenantID, leadID uuid.UUID, now time.Time) (escalation.Assessment, error) {
	lead, activities, err := s.loadLead(ctx, tenantID, leadID)
	if err != nil {
		return escalation.Assessment{}, err
	}
	return s.escalation.Assess(ctx, lead, activities, now, aiassist.NewBudget()), nil
}

// NextActions suggests concrete steps for one lead.
func (s *Service) NextActions(ctx context.Context, tenantID, leadID uuid.UUID, now time.Time) (nextaction.Suggestions, error) {
	lead, activities, err := s.loadLead(ctx, tenantID, leadID)
	if err != nil {
		return nextaction.Suggestions{}, err
	}
	return s.nextaction.Suggest(ctx, lead, activities, now, aiassist.NewBudget()), nil
}

// Reminder evaluates the reminder rules for one lead. A nil suggestion is a
// valid result: the lead needs no nudge.
func (s *Service) Reminder(ctx context.Context, tenantID, leadID uuid.UUID, now time.Time) (*reminders.Suggestion, error) {
	lead, activities, err := s.loadLead(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	return s.reminders.Suggest(lead, activities, now), nil
}

// LeadInsights runs prediction, escalation, next actions and the reminder
// check over one shared data load. The engines share one AI budget, so a
// combined call never spends more completions than a single-engine call.
func (s *Service) LeadInsights(ctx context.Context, tenantID, leadID uuid.UUID, now time.Time) (Insights, error) {
	lead, activities, err := s.loadLead(ctx, tenantID, leadID)
	if err != nil {
		return Insights{}, err
	}

	budget := aiassist.NewBudget()

	prediction, err := s.predictor.Predict(ctx, lead, activities, now, budget)
	if err != nil {
		return Insights{}, err
	}

	return Insights{
		LeadID:      leadID,
		Prediction:  prediction,
		Escalation:  s.escalation.Assess(ctx, lead, activities, now, budget),
		NextActions: s.nextaction.Suggest(ctx, lead, activities, now, budget),
		Reminder:    s.reminders.Suggest(lead, activities, now),
		GeneratedAt: now,
	}, nil
}

// loadLead fetches a lead and its timeline in parallel.
func (s *Service) loadLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, []domain.Activity, error) {
	var (
		lead       domain.Lead
		activities []domain.Activity
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		lead, err = s.repo.GetLead(groupCtx, tenantID, leadID)
		return err
	})
	group.Go(func() error {
		var err error
		activities, err = s.repo.ListLeadActivities(groupCtx, tenantID, leadID)
		return err
	})
	if err := group.Wait(); err != nil {
		return domain.Lead{}, nil, err
	}
	return lead, activities, nil
}

func groupByLead(activities []domain.Activity) map[uuid.UUID][]domain.Activity {
	grouped := make(map[uuid.UUID][]domain.Activity)
	for _, activity := range activities {
		grouped[activity.LeadID] = append(grouped[activity.LeadID], activity)
	}
	return grouped
}
