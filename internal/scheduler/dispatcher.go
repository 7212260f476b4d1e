package scheduler

import (
	"context"
	"time"

	"realty_portal_backend/internal/intelligence/repository"
	"realty_portal_backend/platform/logger"
)

// Dispatcher enqueues a scan pair for every tenant on a fixed cadence.
type Dispatcher struct {
	client   *Client
	repo     repository.Reader
	interval time.Duration
	log      *logger.Logger
}

// NewDispatcher builds the periodic scan dispatcher.
func NewDispatcher(client *Client, repo repository.Reader, interval time.Duration, log *logger.Logger) *Dispatcher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Dispatcher{client: client, repo: repo, interval: interval, log: log}
}

// Run dispatches immediately, then on every tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.dispatch(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatch(ctx)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	tenantIDs, err := d.repo.ListTenantIDs(ctx)
	if err != nil {
		d.log.DatabaseError("list tenants for scan", err)
		return
	}

	for _, tenantID := range tenantIDs {
		id := tenantID.String()
		if err := d.client.EnqueueEscalationScan(ctx, id); err != nil {
			d.log.WithTenantID(id).Error("failed to enqueue escalation scan", "error", err)
		}
		if err := d.client.EnqueueReminderScan(ctx, id); err != nil {
			d.log.WithTenantID(id).Error("failed to enqueue reminder scan", "error", err)
		}
	}

	d.log.Info("scan tasks dispatched", "tenants", len(tenantIDs))
}
