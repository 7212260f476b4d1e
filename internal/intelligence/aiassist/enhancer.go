package aiassist

import (
	"context"
	"strings"
	"time"

	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// PromptVersion is stamped into provenance for every AI-authored field so
// downstream consumers can correlate output quality with prompt changes.
const PromptVersion = "v1"

// MaxEnhancementsPerRequest caps how many completion calls a single scoring
// request may spend, regardless of how many enhanceable fields it produces.
const MaxEnhancementsPerRequest = 3

// DefaultTimeout bounds a single completion attempt when the caller's
// context carries no tighter deadline.
const DefaultTimeout = 10 * time.Second

// CompletionOptions configure a single completion call.
type CompletionOptions struct {
	Model       string
	MaxTokens   int32
	Temperature float32
}

// Completer is the narrow surface the augmentation layer needs from an AI
// backend. One prompt in, one text out; any failure is just an error.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// Enhancer wraps deterministic text with an optional AI rewrite. It owns
// the per-tenant rate limiting and the single-attempt, fail-to-fallback
// policy; callers never see an error from it.
type Enhancer struct {
	completer Completer
	settings  SettingsReader
	limiter   *TenantRateLimiter
	log       *logger.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewEnhancer builds an Enhancer. A nil completer disables AI entirely;
// every call then returns the fallback with rule_engine provenance.
func NewEnhancer(completer Completer, settings SettingsReader, log *logger.Logger, timeout time.Duration) *Enhancer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enhancer{
		completer: completer,
		settings:  settings,
		limiter:   NewTenantRateLimiter(),
		log:       log,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Budget tracks the per-request enhancement allowance. Callers create one
// per scoring request and pass it to each Enhance call.
type Budget struct {
	remaining int
}

// NewBudget returns a fresh per-request budget.
func NewBudget() *Budget {
	return &Budget{remaining: MaxEnhancementsPerRequest}
}

func (b *Budget) take() bool {
	if b == nil {
		return true
	}
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Enhance attempts one AI rewrite of fallback using prompt. The returned
// text is always usable: the AI result on success, the fallback otherwise.
// Provenance records which path produced it.
//
// Exactly one completion attempt is made; there are no retries. Enhance
// never returns an error and never takes longer than the configured
// timeout plus scheduling overhead.
func (e *Enhancer) Enhance(ctx context.Context, tenantID uuid.UUID, component, prompt, fallback string, budget *Budget) (string, Provenance) {
	generatedAt := e.now()

	if e.completer == nil {
		return fallback, Provenance{Source: SourceRuleEngine, GeneratedAt: generatedAt}
	}

	settings, err := e.loadSettings(ctx, tenantID)
	if err != nil {
		e.log.AIFallback(component, "settings unavailable: "+err.Error(), 0)
		return fallback, Provenance{Source: SourceFallback, GeneratedAt: generatedAt}
	}
	if !settings.Enabled {
		return fallback, Provenance{Source: SourceRuleEngine, GeneratedAt: generatedAt}
	}

	if !budget.take() {
		return fallback, Provenance{Source: SourceRuleEngine, GeneratedAt: generatedAt}
	}

	if !e.limiter.Allow(tenantID.String(), settings.RateLimitPerMinute) {
		e.log.RateLimitExceeded(tenantID.String(), component)
		return fallback, Provenance{Source: SourceFallback, GeneratedAt: generatedAt}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := e.now()
	text, err := e.completer.Complete(callCtx, prompt, CompletionOptions{
		Model:       settings.Model,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
	})
	latency := e.now().Sub(start).Milliseconds()

	if err != nil {
		e.log.AIFallback(component, err.Error(), latency)
		return fallback, Provenance{Source: SourceFallback, GeneratedAt: generatedAt, LatencyMs: latency}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		e.log.AIFallback(component, "empty completion", latency)
		return fallback, Provenance{Source: SourceFallback, GeneratedAt: generatedAt, LatencyMs: latency}
	}

	model := settings.Model
	return text, Provenance{
		Source:        SourceAI,
		Model:         &model,
		PromptVersion: PromptVersion,
		GeneratedAt:   generatedAt,
		LatencyMs:     latency,
	}
}

func (e *Enhancer) loadSettings(ctx context.Context, tenantID uuid.UUID) (TenantAISettings, error) {
	if e.settings == nil {
		return DefaultTenantAISettings(), nil
	}
	return e.settings(ctx, tenantID)
}
