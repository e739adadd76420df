package model

import "time"

// Warning records a recovered data-integrity problem: a dropped code id,
// a discarded quote, a mismatched speaker property. Warnings are data, not
// log lines - they travel with the result so callers can assess completeness.
type Warning struct {
	Stage      string `json:"stage"` // "apply", "aggregate", "persist"
	DocumentID string `json:"document_id,omitempty"`
	Message    string `json:"message"`
}

// DocumentResult is the Phase 4 output for one document. It is created
// exactly once and is append-only afterwards; corrections are expressed
// downstream as new graph edges plus retraction of stale ones.
type DocumentResult struct {
	DocumentID    string                  `json:"document_id"`
	Quotes        []EnhancedQuote         `json:"quotes"`
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
	Warnings      []Warning               `json:"warnings,omitempty"`

	// ReportedQuoteCount is the total the extraction backend claimed to
	// have produced, kept for the aggregation-time consistency check.
	ReportedQuoteCount int       `json:"reported_quote_count"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// DocumentFailure records a quarantined per-document failure. The failed
// document is excluded from results; siblings are unaffected.
type DocumentFailure struct {
	DocumentID string    `json:"document_id"`
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failed_at"`
}

// CodeStat is the per-code slice of the corpus aggregate
type CodeStat struct {
	CodeID       string `json:"code_id"`
	Applications int    `json:"applications"` // Total quote-code links
	QuoteCount   int    `json:"quote_count"`  // Distinct quotes carrying this code
	Documents    int    `json:"documents"`    // Distinct documents contributing
}

// EntityStat is the cross-document frequency of one entity name/type pair
type EntityStat struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Mentions  int    `json:"mentions"`
	Documents int    `json:"documents"`
}

// ThematicLink connects two quotes that carry the same code but come from
// different speakers - the cross-speaker idea-flow edge of the graph model.
type ThematicLink struct {
	FromQuoteID string `json:"from_quote_id"`
	ToQuoteID   string `json:"to_quote_id"`
	CodeID      string `json:"code_id"`
}

// Aggregate is the corpus-level derived view. It is recomputed from the
// per-document results and is never itself a source of truth.
type Aggregate struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Documents   int               `json:"documents"` // Successfully processed
	TotalQuotes int               `json:"total_quotes"`
	CodeStats   []CodeStat        `json:"code_stats"`
	EntityStats []EntityStat      `json:"entity_stats"`
	Links       []ThematicLink    `json:"thematic_links,omitempty"`
	Failures    []DocumentFailure `json:"failures,omitempty"`
	Warnings    []Warning         `json:"warnings,omitempty"`
}
