// Package aiassist implements the cross-cutting AI augmentation contract:
// every scorer computes its deterministic result first, then optionally asks
// this layer to enrich explanation text. Enhancement is additive only; on
// any failure the deterministic content stands, tagged with the path that
// produced it.
package aiassist

import "time"

// Source identifies which path authored a piece of result content.
type Source string

const (
	// SourceAI means the text came from a successful completion call.
	SourceAI Source = "ai"
	// SourceRuleEngine means AI was not attempted (disabled or not
	// configured) and the deterministic engine authored the text.
	SourceRuleEngine Source = "rule_engine"
	// SourceFallback means AI was attempted but failed (timeout, error,
	// rate limit) and the deterministic template was kept.
	SourceFallback Source = "fallback"
)

// Provenance is attached to every enhanced field of a result.
type Provenance struct {
	Source        Source    `json:"source"`
	Model         *string   `json:"model,omitempty"`
	PromptVersion string    `json:"promptVersion,omitempty"`
	GeneratedAt   time.Time `json:"generatedAt"`
	LatencyMs     int64     `json:"latencyMs"`
	Cached        bool      `json:"cached"`
}

// RuleProvenance tags content authored by the deterministic engine.
func RuleProvenance(generatedAt time.Time) Provenance {
	return Provenance{
		Source:      SourceRuleEngine,
		GeneratedAt: generatedAt,
	}
}
