package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realty_portal_backend/internal/events"
	"realty_portal_backend/internal/intelligence/repository"
	"realty_portal_backend/internal/scheduler"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/db"
	"realty_portal_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)
	subscribeLoggers(bus, log)

	worker, err := scheduler.NewWorker(cfg, pool, bus, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scan client", "error", err)
		panic("failed to initialize scan client: " + err.Error())
	}
	defer client.Close()

	dispatcher := scheduler.NewDispatcher(client, repository.New(pool), cfg.ScanInterval, log)

	go dispatcher.Run(ctx)
	worker.Run(ctx)

	// Give in-flight event handlers a moment to finish.
	time.Sleep(200 * time.Millisecond)
	log.Info("scheduler stopped")
}

// subscribeLoggers records emitted events. Notification fan-out belongs to
// the surrounding CRM; here the events are logged for operators.
func subscribeLoggers(bus *events.InMemoryBus, log *logger.Logger) {
	bus.Subscribe(events.LeadEscalatedName, events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.LeadEscalated); ok {
			log.WithTenantID(e.TenantID.String()).Warn("lead escalated",
				"leadId", e.LeadID, "level", e.Level)
		}
		return nil
	}))
	bus.Subscribe(events.ReminderDueName, events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.ReminderDue); ok {
			log.WithTenantID(e.TenantID.String()).Info("reminder due",
				"leadId", e.LeadID, "kind", e.Kind, "channel", e.Channel)
		}
		return nil
	}))
}
