// Package apply implements Phase 4: applying the discovered taxonomy,
// speaker schema and entity schema to one document, producing validated
// quotes, speaker attributions and entity/relationship instances.
package apply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mzaremba/quotient/internal/corpus"
	"github.com/mzaremba/quotient/internal/extract"
	"github.com/mzaremba/quotient/internal/model"
)

const applySystem = "You are a qualitative research assistant coding one interview transcript against an already-discovered schema. Respond with a single JSON object matching the requested shape exactly. Do not include any text outside the JSON object."

// Applicator applies the immutable schema snapshot to documents. One
// Applicator is shared by all workers; it holds no per-document state.
type Applicator struct {
	client         *extract.Client
	policy         model.InvalidCodePolicy
	fuzzyThreshold float64
}

// NewApplicator creates a Phase 4 applicator
func NewApplicator(client *extract.Client, policy model.InvalidCodePolicy, fuzzyThreshold float64) *Applicator {
	if policy == "" {
		policy = model.InvalidCodeDrop
	}
	if fuzzyThreshold <= 0 || fuzzyThreshold > 1 {
		fuzzyThreshold = 0.8
	}
	return &Applicator{client: client, policy: policy, fuzzyThreshold: fuzzyThreshold}
}

// Apply codes one document against the schema snapshot. The returned
// result is fully validated: every code id exists in the taxonomy, every
// entity and relationship type name exists in the schema, and every quote
// carries at least one code.
func (a *Applicator) Apply(ctx context.Context, doc corpus.Document, schemas model.SchemaSet) (*model.DocumentResult, error) {
	var wire wireDocument
	req := extract.Request{
		System: applySystem,
		Prompt: buildApplyPrompt(doc, schemas),
	}

	if err := a.client.ExtractJSON(ctx, req, &wire); err != nil {
		return nil, fmt.Errorf("apply schemas to %s: %w", doc.ID, err)
	}

	result := a.validate(doc, schemas, &wire)
	result.ProcessedAt = time.Now().UTC()
	return result, nil
}

// buildApplyPrompt renders the schema snapshot for the backend. Each code
// is presented with its id so the backend returns ids directly; the
// applicator never reconstructs an id from a returned name.
func buildApplyPrompt(doc corpus.Document, schemas model.SchemaSet) string {
	var b strings.Builder

	b.WriteString(`Code the interview transcript below against the schemas that follow.

CODES (reference them by "id", exactly as written - never invent or rename an id):
`)
	for _, c := range schemas.Taxonomy.Codes {
		indent := strings.Repeat("  ", c.Level)
		fmt.Fprintf(&b, "%s- id: %s | name: %s | %s\n", indent, c.ID, c.Name, c.Description)
	}

	if len(schemas.Speakers.Properties) > 0 {
		b.WriteString("\nSPEAKER PROPERTIES (include in each quote's speaker.properties when inferable):\n")
		for _, p := range schemas.Speakers.Properties {
			fmt.Fprintf(&b, "- %s (%s)", p.Key, p.Type)
			if len(p.Values) > 0 {
				fmt.Fprintf(&b, " one of: %s", strings.Join(p.Values, ", "))
			}
			if p.Description != "" {
				fmt.Fprintf(&b, " - %s", p.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(schemas.Entities.EntityTypes) > 0 {
		b.WriteString("\nENTITY TYPES (use the type name exactly as written):\n")
		for _, t := range schemas.Entities.EntityTypes {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}
	if len(schemas.Entities.RelationshipTypes) > 0 {
		b.WriteString("\nRELATIONSHIP TYPES (use the type name exactly as written):\n")
		for _, t := range schemas.Entities.RelationshipTypes {
			fmt.Fprintf(&b, "- %s (%s -> %s): %s\n", t.Name, t.SourceType, t.TargetType, t.Description)
		}
	}

	b.WriteString(`
Rules:
- Extract a span as a quote ONLY if at least one code applies to it. Skip greetings, small talk and procedural chatter entirely; do not return them with empty code_ids.
- Quote "text" must be a verbatim span from the transcript. "context" is a one-sentence summary of the surrounding discussion.
- speaker.confidence is on a fixed scale: 1.0 only when the speaker is explicitly and unambiguously identified, 0.0 only for a total guess with no supporting evidence.
- "line_start"/"line_end" are 1-based line numbers of the span in the transcript as given.
- Entity "scope" is "quote", "document" or "corpus". "quote_indexes" are 0-based indexes into your quotes array.
- Relationship "source"/"target" are entity names from your entities array.
- "quote_count" is the number of quotes in your answer.

Respond with JSON of the shape:
{"quotes":[{"text":"...","context":"...","code_ids":["..."],"speaker":{"name":"...","confidence":0.9,"properties":{}},"line_start":1,"line_end":2}],"entities":[{"name":"...","type":"...","description":"...","scope":"document","quote_indexes":[0]}],"relationships":[{"type":"...","source":"...","target":"...","description":"...","scope":"document"}],"quote_count":1}

TRANSCRIPT (interview `)
	b.WriteString(doc.ID)
	b.WriteString("):\n\n")

	// Number the lines so returned locations are grounded in the text
	for i, line := range doc.Lines() {
		fmt.Fprintf(&b, "%4d| %s\n", i+1, line)
	}

	return b.String()
}
