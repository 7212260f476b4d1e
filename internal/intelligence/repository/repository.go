// Package repository loads the intelligence engine's read models from
// Postgres. Every query is tenant-scoped; cross-tenant reads are not
// expressible through this surface.
package repository

import (
	"context"
	"errors"
	"fmt"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"
	"realty_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadNotFoundMsg = "lead not found"

const leadColumns = `
	id, tenant_id, status, lead_type, source, property_type, listing_address,
	price_min, price_max, contact_id, contact_phone, assigned_to,
	created_at, closed_at, next_action_at, next_action_channel,
	last_contact_at, reminder_snoozed_until`

// Repository is the pgx-backed Reader.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates an intelligence repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Reader = (*Repository)(nil)

// GetLead loads a single lead within the tenant.
func (r *Repository) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND tenant_id = $2`

	rows, err := r.pool.Query(ctx, query, leadID, tenantID)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("failed to query lead: %w", err)
	}

	lead, err := pgx.CollectOneRow(rows, scanLead)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMsg)
		}
		return domain.Lead{}, fmt.Errorf("failed to scan lead: %w", err)
	}
	return lead, nil
}

// ListLeads loads every lead in the tenant, open and closed.
func (r *Repository) ListLeads(ctx context.Context, tenantID uuid.UUID) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	leads, err := pgx.CollectRows(rows, scanLead)
	if err != nil {
		return nil, fmt.Errorf("failed to scan leads: %w", err)
	}
	return leads, nil
}

// ListLeadActivities loads one lead's timeline, newest first.
func (r *Repository) ListLeadActivities(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.Activity, error) {
	query := `
		SELECT a.id, a.lead_id, a.actor_id, a.activity_type, a.occurred_at, a.metadata
		FROM activities a
		JOIN leads l ON l.id = a.lead_id
		WHERE a.lead_id = $1 AND l.tenant_id = $2
		ORDER BY a.occurred_at DESC`

	rows, err := r.pool.Query(ctx, query, leadID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}

	activities, err := pgx.CollectRows(rows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to scan activities: %w", err)
	}
	return activities, nil
}

// ListActivities loads every activity in the tenant. Used by the routing
// scorer to derive first-response times across all assigned leads.
func (r *Repository) ListActivities(ctx context.Context, tenantID uuid.UUID) ([]domain.Activity, error) {
	query := `
		SELECT a.id, a.lead_id, a.actor_id, a.activity_type, a.occurred_at, a.metadata
		FROM activities a
		JOIN leads l ON l.id = a.lead_id
		WHERE l.tenant_id = $1
		ORDER BY a.occurred_at DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant activities: %w", err)
	}

	activities, err := pgx.CollectRows(rows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant activities: %w", err)
	}
	return activities, nil
}

// ListActors loads the tenant's agents.
func (r *Repository) ListActors(ctx context.Context, tenantID uuid.UUID) ([]domain.Actor, error) {
	query := `SELECT id, display_name FROM actors WHERE tenant_id = $1 ORDER BY display_name`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actors: %w", err)
	}

	actors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Actor, error) {
		var actor domain.Actor
		err := row.Scan(&actor.ID, &actor.DisplayName)
		return actor, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan actors: %w", err)
	}
	return actors, nil
}

// ListClosedLeadBundles loads every closed lead with its activity timeline.
// The predictor rebuilds its historical distribution from these.
func (r *Repository) ListClosedLeadBundles(ctx context.Context, tenantID uuid.UUID) ([]domain.ClosedLeadBundle, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND status IN ('won', 'lost')`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed leads: %w", err)
	}

	leads, err := pgx.CollectRows(rows, scanLead)
	if err != nil {
		return nil, fmt.Errorf("failed to scan closed leads: %w", err)
	}
	if len(leads) == 0 {
		return nil, nil
	}

	byLead := make(map[uuid.UUID][]domain.Activity, len(leads))

	activityQuery := `
		SELECT a.id, a.lead_id, a.actor_id, a.activity_type, a.occurred_at, a.metadata
		FROM activities a
		JOIN leads l ON l.id = a.lead_id
		WHERE l.tenant_id = $1 AND l.status IN ('won', 'lost')`

	activityRows, err := r.pool.Query(ctx, activityQuery, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed-lead activities: %w", err)
	}
	activities, err := pgx.CollectRows(activityRows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to scan closed-lead activities: %w", err)
	}
	for _, activity := range activities {
		byLead[activity.LeadID] = append(byLead[activity.LeadID], activity)
	}

	bundles := make([]domain.ClosedLeadBundle, 0, len(leads))
	for _, lead := range leads {
		bundles = append(bundles, domain.ClosedLeadBundle{
			Lead:       lead,
			Activities: byLead[lead.ID],
		})
	}
	return bundles, nil
}

// GetTenantAISettings loads the tenant's AI toggles, falling back to
// defaults when the tenant has never saved any.
func (r *Repository) GetTenantAISettings(ctx context.Context, tenantID uuid.UUID) (aiassist.TenantAISettings, error) {
	query := `
		SELECT enabled, model, max_tokens, temperature, rate_limit_per_minute
		FROM tenant_ai_settings WHERE tenant_id = $1`

	settings := aiassist.DefaultTenantAISettings()
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&settings.Enabled, &settings.Model, &settings.MaxTokens,
		&settings.Temperature, &settings.RateLimitPerMinute,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return aiassist.DefaultTenantAISettings(), nil
		}
		return aiassist.TenantAISettings{}, fmt.Errorf("failed to query tenant ai settings: %w", err)
	}
	return settings, nil
}

// ListTenantIDs returns every tenant that owns at least one lead. The
// scheduler fans scans out across these.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM leads`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (uuid.UUID, error) {
		var id uuid.UUID
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant ids: %w", err)
	}
	return ids, nil
}

func scanLead(row pgx.CollectableRow) (domain.Lead, error) {
	var lead domain.Lead
	var status string
	err := row.Scan(
		&lead.ID, &lead.TenantID, &status, &lead.LeadType, &lead.Source,
		&lead.PropertyType, &lead.ListingAddress, &lead.PriceMin, &lead.PriceMax,
		&lead.ContactID, &lead.ContactPhone, &lead.AssignedTo,
		&lead.CreatedAt, &lead.ClosedAt, &lead.NextActionAt, &lead.NextActionChannel,
		&lead.LastContactAt, &lead.ReminderSnoozedUntil,
	)
	lead.Status = domain.LeadStatus(status)
	return lead, err
}

func scanActivity(row pgx.CollectableRow) (domain.Activity, error) {
	var activity domain.Activity
	err := row.Scan(
		&activity.ID, &activity.LeadID, &activity.ActorID,
		&activity.ActivityType, &activity.OccurredAt, &activity.MetadataJSON,
	)
	return activity, err
}
