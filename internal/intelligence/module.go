// Package intelligence provides the lead intelligence domain module:
// win prediction, agent routing, escalation, next actions and reminders.
package intelligence

import (
	apphttp "realty_portal_backend/internal/http"
	"realty_portal_backend/internal/intelligence/aiassist"
	"realty_portal_backend/internal/intelligence/escalation"
	"realty_portal_backend/internal/intelligence/handler"
	"realty_portal_backend/internal/intelligence/nextaction"
	"realty_portal_backend/internal/intelligence/predictor"
	"realty_portal_backend/internal/intelligence/reminders"
	"realty_portal_backend/internal/intelligence/repository"
	"realty_portal_backend/internal/intelligence/routing"
	"realty_portal_backend/internal/intelligence/service"
	"realty_portal_backend/platform/cache"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/logger"
	"realty_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the configuration slice this module needs.
type ModuleConfig interface {
	config.AIConfig
	config.CacheConfig
}

// Module is the intelligence domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule wires the intelligence module. completer may be nil, which
// disables AI enhancement entirely; every result then carries rule_engine
// provenance.
func NewModule(pool *pgxpool.Pool, store cache.Store, completer aiassist.Completer, cfg ModuleConfig, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)

	enhancer := aiassist.NewEnhancer(completer, repo.GetTenantAISettings, log, cfg.GetAITimeout())

	svc := service.New(
		repo,
		predictor.NewService(repo, store, cfg.GetDistributionTTL(), enhancer, log),
		routing.NewService(enhancer, log),
		escalation.NewService(enhancer, log),
		nextaction.NewService(enhancer, log),
		reminders.NewService(log),
		log,
	)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "intelligence"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
