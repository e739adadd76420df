package apply

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mzaremba/quotient/internal/corpus"
	"github.com/mzaremba/quotient/internal/model"
)

// validate turns the raw wire payload into a DocumentResult, enforcing
// every data-integrity contract locally: offending references are dropped
// with a recorded warning, containing records are kept while still valid,
// and nothing is ever silently fabricated.
func (a *Applicator) validate(doc corpus.Document, schemas model.SchemaSet, wire *wireDocument) *model.DocumentResult {
	result := &model.DocumentResult{
		DocumentID:         doc.ID,
		ReportedQuoteCount: wire.QuoteCount,
	}
	codeIDs := schemas.Taxonomy.IDSet()
	shape := schemas.Speakers.Shape()

	warn := func(format string, args ...any) {
		result.Warnings = append(result.Warnings, model.Warning{
			Stage:      "apply",
			DocumentID: doc.ID,
			Message:    fmt.Sprintf(format, args...),
		})
	}

	// Quotes: map original wire index -> retained quote id, for resolving
	// entity quote_indexes afterwards.
	retained := make(map[int]string, len(wire.Quotes))
	for i, wq := range wire.Quotes {
		valid := a.validateCodeIDs(wq.CodeIDs, codeIDs, schemas.Taxonomy, warn)
		if len(valid) == 0 {
			warn("quote %d dropped: no valid code ids remain (returned %v)", i, wq.CodeIDs)
			continue
		}

		speaker := validateSpeaker(wq.Speaker, shape, i, warn)

		start, end := wq.LineStart, wq.LineEnd
		if start <= 0 || end < start {
			start, end = doc.Locate(wq.Text)
			if start == 0 {
				warn("quote %d has no resolvable location", i)
			}
		}

		// Deterministic identity: document id + sequence among retained
		// quotes. Re-running on the same payload yields the same ids.
		id := fmt.Sprintf("%s:q%03d", doc.ID, len(result.Quotes))
		retained[i] = id

		result.Quotes = append(result.Quotes, model.EnhancedQuote{
			ID:          id,
			Text:        wq.Text,
			Context:     wq.Context,
			CodeIDs:     valid,
			Speaker:     speaker,
			InterviewID: doc.ID,
			LineStart:   start,
			LineEnd:     end,
		})
	}

	// Entities: instance type must exactly match a schema type name
	entityTypes := schemas.Entities.EntityTypeNames()
	entityIDs := make(map[string]string, len(wire.Entities)) // name -> arena id
	for _, we := range wire.Entities {
		if _, ok := entityTypes[we.Type]; !ok {
			warn("entity %q dropped: type %q not in schema", we.Name, we.Type)
			continue
		}
		if we.Name == "" {
			warn("entity with empty name dropped")
			continue
		}
		if _, dup := entityIDs[we.Name]; dup {
			continue
		}

		id := fmt.Sprintf("%s:e%03d", doc.ID, len(result.Entities))
		entityIDs[we.Name] = id

		var quoteIDs []string
		for _, qi := range we.QuoteIndex {
			if qid, ok := retained[qi]; ok {
				quoteIDs = append(quoteIDs, qid)
			}
		}

		result.Entities = append(result.Entities, model.ExtractedEntity{
			ID:          id,
			Name:        we.Name,
			Type:        we.Type,
			Description: we.Description,
			Scope:       parseScope(we.Scope),
			QuoteIDs:    quoteIDs,
		})

		for _, qid := range quoteIDs {
			for qi := range result.Quotes {
				if result.Quotes[qi].ID == qid {
					result.Quotes[qi].EntityIDs = append(result.Quotes[qi].EntityIDs, id)
				}
			}
		}
	}

	// Relationships: type and both endpoints must resolve
	relTypes := schemas.Entities.RelationshipTypeNames()
	for _, wr := range wire.Relationships {
		if _, ok := relTypes[wr.Type]; !ok {
			warn("relationship %q dropped: type not in schema", wr.Type)
			continue
		}
		src, okSrc := entityIDs[wr.Source]
		dst, okDst := entityIDs[wr.Target]
		if !okSrc || !okDst {
			warn("relationship %q dropped: endpoint %q or %q not among extracted entities", wr.Type, wr.Source, wr.Target)
			continue
		}

		result.Relationships = append(result.Relationships, model.ExtractedRelationship{
			ID:          fmt.Sprintf("%s:r%03d", doc.ID, len(result.Relationships)),
			Type:        wr.Type,
			SourceID:    src,
			TargetID:    dst,
			Description: wr.Description,
			Scope:       parseScope(wr.Scope),
		})
	}

	return result
}

// validateCodeIDs filters returned code ids against the taxonomy. Unknown
// ids are dropped with a warning, or fuzzy-matched to the nearest taxonomy
// id when that policy is configured. Ids are never fabricated from names.
func (a *Applicator) validateCodeIDs(ids []string, known map[string]struct{}, tax model.Taxonomy, warn func(string, ...any)) []string {
	var valid []string
	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}

		if _, ok := known[id]; ok {
			seen[id] = struct{}{}
			valid = append(valid, id)
			continue
		}

		if a.policy == model.InvalidCodeFuzzy {
			if match, score := nearestCodeID(id, tax); score >= a.fuzzyThreshold {
				warn("code id %q fuzzy-matched to %q (similarity %.2f)", id, match, score)
				if _, dup := seen[match]; !dup {
					seen[match] = struct{}{}
					valid = append(valid, match)
				}
				continue
			}
		}

		warn("code id %q dropped: not in taxonomy", id)
	}

	return valid
}

// validateSpeaker checks the property map against the declared Phase 2
// shape and clamps confidence to the documented [0,1] scale.
func validateSpeaker(ws wireSpeaker, shape map[string]model.SpeakerProperty, quoteIdx int, warn func(string, ...any)) model.SpeakerInfo {
	info := model.SpeakerInfo{
		Name:       strings.TrimSpace(ws.Name),
		Confidence: ws.Confidence,
	}
	if info.Name == "" {
		info.Name = "Unknown"
		warn("quote %d has no speaker name", quoteIdx)
	}
	if info.Confidence < 0 || info.Confidence > 1 {
		warn("quote %d speaker confidence %.2f outside [0,1], clamped", quoteIdx, info.Confidence)
		info.Confidence = min(max(info.Confidence, 0), 1)
	}

	for key, val := range ws.Properties {
		decl, ok := shape[key]
		if !ok {
			warn("quote %d speaker property %q dropped: not declared by schema", quoteIdx, key)
			continue
		}
		if !propertyTypeMatches(decl, val) {
			warn("quote %d speaker property %q dropped: value %v does not match declared type %s", quoteIdx, key, val, decl.Type)
			continue
		}
		if info.Properties == nil {
			info.Properties = make(map[string]any)
		}
		info.Properties[key] = val
	}

	for key, decl := range shape {
		if !decl.Required {
			continue
		}
		if _, ok := info.Properties[key]; !ok {
			warn("quote %d missing required speaker property %q", quoteIdx, key)
		}
	}

	return info
}

// propertyTypeMatches checks a JSON-decoded value against a declared type tag
func propertyTypeMatches(decl model.SpeakerProperty, val any) bool {
	switch decl.Type {
	case model.PropertyString:
		_, ok := val.(string)
		return ok
	case model.PropertyNumber:
		_, ok := val.(float64)
		return ok
	case model.PropertyBoolean:
		_, ok := val.(bool)
		return ok
	case model.PropertyCategory:
		s, ok := val.(string)
		if !ok {
			return false
		}
		for _, allowed := range decl.Values {
			if s == allowed {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func parseScope(s string) model.Scope {
	switch model.Scope(s) {
	case model.ScopeQuote, model.ScopeDocument, model.ScopeCorpus:
		return model.Scope(s)
	default:
		return model.ScopeDocument
	}
}

// nearestCodeID returns the taxonomy id with the highest normalized
// similarity to the returned id, matching case-insensitively on both id
// and name forms.
func nearestCodeID(id string, tax model.Taxonomy) (string, float64) {
	best, bestScore := "", 0.0
	needle := normalizeToken(id)

	ids := tax.IDs()
	sort.Strings(ids) // Stable tie-breaking
	for _, candidate := range ids {
		score := similarity(needle, normalizeToken(candidate))
		if c, ok := tax.Get(candidate); ok {
			if s := similarity(needle, normalizeToken(c.Name)); s > score {
				score = s
			}
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}

	return best, bestScore
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// similarity is 1 - normalized Levenshtein distance
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(min(cur[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	return prev[len(rb)]
}
