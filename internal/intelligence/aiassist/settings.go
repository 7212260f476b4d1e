package aiassist

import (
	"context"

	"github.com/google/uuid"
)

// TenantAISettings are per-tenant toggles for the completion backend.
// They are persisted by the surrounding application and consumed here.
type TenantAISettings struct {
	Enabled            bool
	Model              string
	MaxTokens          int32
	Temperature        float32
	RateLimitPerMinute int
}

// DefaultTenantAISettings are applied when a tenant has no stored settings.
func DefaultTenantAISettings() TenantAISettings {
	return TenantAISettings{
		Enabled:            true,
		Model:              "",
		MaxTokens:          320,
		Temperature:        0.4,
		RateLimitPerMinute: 30,
	}
}

// SettingsReader loads the latest AI settings for a tenant.
//
// Returning an error should be treated as "unknown settings" by callers;
// enhancement fails safe to the deterministic path when settings cannot be
// loaded.
type SettingsReader func(ctx context.Context, tenantID uuid.UUID) (TenantAISettings, error)
