package discover

import (
	"fmt"
	"strings"

	"github.com/mzaremba/quotient/internal/model"
)

const discoverySystem = "You are a qualitative research assistant performing thematic analysis of interview transcripts. Respond with a single JSON object matching the requested shape exactly. Do not include any text outside the JSON object."

// buildTaxonomyPrompt asks for a hierarchical code taxonomy over the whole corpus
func buildTaxonomyPrompt(corpusText, question string, maxDepth int, seed *model.Taxonomy) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Analyze the full interview corpus below and discover a hierarchical taxonomy of thematic codes answering this research question:

%s

Rules:
- Each code needs: "id" (SCREAMING_SNAKE_CASE token, stable and human-meaningful), "name", "description", "parent_id" (empty string for root codes), "level" (0 for roots, parent level + 1 for children), and "examples" (1-3 short verbatim spans).
- The hierarchy is at most %d levels deep.
- Codes must form a forest: every parent_id refers to another code in your answer.
- Return at least one code. Cover every substantive theme in the corpus.
`, question, maxDepth)

	if seed != nil && len(seed.Codes) > 0 {
		b.WriteString("\nThe following codes are already defined. Do not redefine or rename them; discover only additional codes, nesting under them where appropriate:\n")
		for _, c := range seed.Codes {
			fmt.Fprintf(&b, "- %s (%s): %s\n", c.ID, c.Name, c.Description)
		}
	}

	b.WriteString(`
Respond with JSON of the shape:
{"codes":[{"id":"...","name":"...","description":"...","parent_id":"","level":0,"examples":["..."]}]}

CORPUS:

`)
	b.WriteString(corpusText)
	return b.String()
}

// buildSpeakerPrompt asks for the speaker property schema
func buildSpeakerPrompt(corpusText, question string, seed *model.SpeakerSchema) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Analyze the full interview corpus below and discover the set of speaker properties worth tracking for this research question:

%s

Rules:
- Each property needs: "key" (snake_case), "type" (one of "string", "number", "boolean", "category"), "description", "required" (whether it can be determined for every speaker), and "values" (allowed values, only for "category").
- Declare a property only if the corpus actually supports inferring it.
`, question)

	if seed != nil && len(seed.Properties) > 0 {
		b.WriteString("\nThe following properties are already defined. Keep their keys and types; discover only additional properties:\n")
		for _, p := range seed.Properties {
			fmt.Fprintf(&b, "- %s (%s): %s\n", p.Key, p.Type, p.Description)
		}
	}

	b.WriteString(`
Respond with JSON of the shape:
{"properties":[{"key":"...","type":"string","description":"...","required":false,"values":[]}]}

CORPUS:

`)
	b.WriteString(corpusText)
	return b.String()
}

// buildEntityPrompt asks for entity and relationship type schemas
func buildEntityPrompt(corpusText, question string, seed *model.EntitySchema) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Analyze the full interview corpus below and discover the entity types and relationship types relevant to this research question:

%s

Rules:
- Each entity type needs: "name" (PascalCase), "description", and "examples" (1-3 entity names from the corpus).
- Each relationship type needs: "name" (SCREAMING_SNAKE_CASE), "description", "source_type" and "target_type" (entity type names from your answer).
- Declare only types that actually occur in the corpus.
`, question)

	if seed != nil && (len(seed.EntityTypes) > 0 || len(seed.RelationshipTypes) > 0) {
		b.WriteString("\nThe following types are already defined. Keep their names; discover only additional types:\n")
		for _, t := range seed.EntityTypes {
			fmt.Fprintf(&b, "- entity %s: %s\n", t.Name, t.Description)
		}
		for _, t := range seed.RelationshipTypes {
			fmt.Fprintf(&b, "- relationship %s (%s -> %s): %s\n", t.Name, t.SourceType, t.TargetType, t.Description)
		}
	}

	b.WriteString(`
Respond with JSON of the shape:
{"entity_types":[{"name":"...","description":"...","examples":["..."]}],"relationship_types":[{"name":"...","description":"...","source_type":"...","target_type":"..."}]}

CORPUS:

`)
	b.WriteString(corpusText)
	return b.String()
}
