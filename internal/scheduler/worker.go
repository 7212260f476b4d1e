package scheduler

import (
	"context"
	"fmt"
	"time"

	"realty_portal_backend/internal/events"
	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/internal/intelligence/escalation"
	"realty_portal_backend/internal/intelligence/reminders"
	"realty_portal_backend/internal/intelligence/repository"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// escalationEventLevel is the minimum level a scan escalation must reach
// before an event is published.
const escalationEventLevel = 3

// Worker processes scan tasks.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	repo       repository.Reader
	escalation *escalation.Service
	reminders  *reminders.Service
	bus        events.Bus
	log        *logger.Logger
}

// NewWorker builds the scan worker. Scans never call the AI backend; the
// escalation service runs with enhancement disabled.
func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		repo:       repository.New(pool),
		escalation: escalation.NewService(aiassist.NewEnhancer(nil, nil, log, 0), log),
		reminders:  reminders.NewService(log),
		bus:        bus,
		log:        log,
	}

	mux.HandleFunc(TaskEscalationScan, w.handleEscalationScan)
	mux.HandleFunc(TaskReminderScan, w.handleReminderScan)

	return w, nil
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEscalationScan(ctx context.Context, task *asynq.Task) error {
	tenantID, leads, activities, err := w.loadScan(ctx, task)
	if err != nil {
		return err
	}

	now := time.Now()
	escalated := 0
	for _, lead := range leads {
		if lead.Status.Closed() {
			continue
		}

		assessment := w.escalation.Assess(ctx, lead, activities[lead.ID], now, nil)
		if assessment.Level < escalationEventLevel {
			continue
		}
		escalated++

		if w.bus != nil {
			w.bus.Publish(ctx, events.NewLeadEscalated(tenantID, lead.ID, assessment.Level, assessment.Recommendation))
		}
	}

	w.log.WithTenantID(tenantID.String()).Info("escalation scan complete",
		"leads", len(leads), "escalated", escalated)
	return nil
}

func (w *Worker) handleReminderScan(ctx context.Context, task *asynq.Task) error {
	tenantID, leads, activities, err := w.loadScan(ctx, task)
	if err != nil {
		return err
	}

	now := time.Now()
	due := 0
	for _, lead := range leads {
		suggestion := w.reminders.Suggest(lead, activities[lead.ID], now)
		if suggestion == nil || suggestion.RemindAt.After(now) {
			continue
		}
		due++

		if w.bus != nil {
			w.bus.Publish(ctx, events.NewReminderDue(tenantID, lead.ID,
				suggestion.Kind, suggestion.Channel, suggestion.Message))
		}
	}

	w.log.WithTenantID(tenantID.String()).Info("reminder scan complete",
		"leads", len(leads), "due", due)
	return nil
}

func (w *Worker) loadScan(ctx context.Context, task *asynq.Task) (uuid.UUID, []domain.Lead, map[uuid.UUID][]domain.Activity, error) {
	payload, err := ParseScanPayload(task)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}

	leads, err := w.repo.ListLeads(ctx, tenantID)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}

	activities, err := w.repo.ListActivities(ctx, tenantID)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}

	grouped := make(map[uuid.UUID][]domain.Activity)
	for _, activity := range activities {
		grouped[activity.LeadID] = append(grouped[activity.LeadID], activity)
	}

	return tenantID, leads, grouped, nil
}
