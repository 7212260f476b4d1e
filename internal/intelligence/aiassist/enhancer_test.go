package aiassist

import (
	"context"
	"errors"
	"testing"

	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type stubCompleter struct {
	text  string
	err   error
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, _ string, _ CompletionOptions) (string, error) {
	s.calls++
	return s.text, s.err
}

func settingsWith(s TenantAISettings) SettingsReader {
	return func(context.Context, uuid.UUID) (TenantAISettings, error) {
		return s, nil
	}
}

func TestEnhance_NoCompleterReturnsRuleEngine(t *testing.T) {
	e := NewEnhancer(nil, nil, logger.New("test"), 0)

	text, prov := e.Enhance(context.Background(), uuid.New(), "predictor", "prompt", "deterministic", NewBudget())

	if text != "deterministic" {
		t.Fatalf("expected fallback text, got %q", text)
	}
	if prov.Source != SourceRuleEngine {
		t.Fatalf("expected rule_engine provenance, got %q", prov.Source)
	}
}

func TestEnhance_DisabledTenantSkipsCompletion(t *testing.T) {
	completer := &stubCompleter{text: "ai text"}
	settings := DefaultTenantAISettings()
	settings.Enabled = false

	e := NewEnhancer(completer, settingsWith(settings), logger.New("test"), 0)

	text, prov := e.Enhance(context.Background(), uuid.New(), "predictor", "prompt", "deterministic", NewBudget())

	if completer.calls != 0 {
		t.Fatalf("expected no completion call, got %d", completer.calls)
	}
	if text != "deterministic" || prov.Source != SourceRuleEngine {
		t.Fatalf("expected deterministic/rule_engine, got %q/%q", text, prov.Source)
	}
}

func TestEnhance_CompletionErrorFallsBack(t *testing.T) {
	completer := &stubCompleter{err: errors.New("upstream 500")}
	e := NewEnhancer(completer, settingsWith(DefaultTenantAISettings()), logger.New("test"), 0)

	text, prov := e.Enhance(context.Background(), uuid.New(), "routing", "prompt", "deterministic", NewBudget())

	if completer.calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", completer.calls)
	}
	if text != "deterministic" {
		t.Fatalf("expected fallback text, got %q", text)
	}
	if prov.Source != SourceFallback {
		t.Fatalf("expected fallback provenance, got %q", prov.Source)
	}
}

func TestEnhance_SuccessTagsAIProvenance(t *testing.T) {
	completer := &stubCompleter{text: "  a better explanation  "}
	settings := DefaultTenantAISettings()
	settings.Model = "gemini-2.0-flash"

	e := NewEnhancer(completer, settingsWith(settings), logger.New("test"), 0)

	text, prov := e.Enhance(context.Background(), uuid.New(), "escalation", "prompt", "deterministic", NewBudget())

	if text != "a better explanation" {
		t.Fatalf("expected trimmed AI text, got %q", text)
	}
	if prov.Source != SourceAI {
		t.Fatalf("expected ai provenance, got %q", prov.Source)
	}
	if prov.Model == nil || *prov.Model != "gemini-2.0-flash" {
		t.Fatalf("expected model in provenance, got %v", prov.Model)
	}
	if prov.PromptVersion != PromptVersion {
		t.Fatalf("expected prompt version %q, got %q", PromptVersion, prov.PromptVersion)
	}
}

func TestEnhance_RateLimitedTenantFallsBack(t *testing.T) {
	completer := &stubCompleter{text: "ai text"}
	settings := DefaultTenantAISettings()
	settings.RateLimitPerMinute = 1

	e := NewEnhancer(completer, settingsWith(settings), logger.New("test"), 0)
	tenantID := uuid.New()

	if _, prov := e.Enhance(context.Background(), tenantID, "predictor", "p", "fb", NewBudget()); prov.Source != SourceAI {
		t.Fatalf("first call should succeed, got %q", prov.Source)
	}

	text, prov := e.Enhance(context.Background(), tenantID, "predictor", "p", "fb", NewBudget())
	if prov.Source != SourceFallback {
		t.Fatalf("expected fallback after limit exhausted, got %q", prov.Source)
	}
	if text != "fb" {
		t.Fatalf("expected deterministic text, got %q", text)
	}
	if completer.calls != 1 {
		t.Fatalf("rate-limited call must not reach completer, got %d calls", completer.calls)
	}
}

func TestEnhance_BudgetCapsCallsPerRequest(t *testing.T) {
	completer := &stubCompleter{text: "ai text"}
	e := NewEnhancer(completer, settingsWith(DefaultTenantAISettings()), logger.New("test"), 0)

	tenantID := uuid.New()
	budget := NewBudget()
	for i := 0; i < MaxEnhancementsPerRequest; i++ {
		if _, prov := e.Enhance(context.Background(), tenantID, "nextaction", "p", "fb", budget); prov.Source != SourceAI {
			t.Fatalf("call %d should be ai, got %q", i, prov.Source)
		}
	}

	_, prov := e.Enhance(context.Background(), tenantID, "nextaction", "p", "fb", budget)
	if prov.Source != SourceRuleEngine {
		t.Fatalf("over-budget call should use rule_engine path, got %q", prov.Source)
	}
	if completer.calls != MaxEnhancementsPerRequest {
		t.Fatalf("expected %d completer calls, got %d", MaxEnhancementsPerRequest, completer.calls)
	}
}

func TestTenantRateLimiter_LimitChangeReplacesBucket(t *testing.T) {
	l := NewTenantRateLimiter()

	if !l.Allow("tenant-a", 1) {
		t.Fatal("first token should be granted")
	}
	if l.Allow("tenant-a", 1) {
		t.Fatal("bucket of one should be empty")
	}
	// Raising the configured limit resets the bucket.
	if !l.Allow("tenant-a", 10) {
		t.Fatal("new bucket should grant a token")
	}
	if l.Allow("tenant-a", 0) {
		t.Fatal("non-positive limit must deny")
	}
}
