package repository

import (
	"context"

	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/domain"

	"github.com/google/uuid"
)

// Reader is the read-only data surface the intelligence engine consumes.
// The engine never writes leads or activities; those belong to the CRM.
type Reader interface {
	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error)
	ListLeads(ctx context.Context, tenantID uuid.UUID) ([]domain.Lead, error)
	ListLeadActivities(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.Activity, error)
	ListActivities(ctx context.Context, tenantID uuid.UUID) ([]domain.Activity, error)
	ListActors(ctx context.Context, tenantID uuid.UUID) ([]domain.Actor, error)
	ListClosedLeadBundles(ctx context.Context, tenantID uuid.UUID) ([]domain.ClosedLeadBundle, error)
	GetTenantAISettings(ctx context.Context, tenantID uuid.UUID) (aiassist.TenantAISettings, error)
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}
