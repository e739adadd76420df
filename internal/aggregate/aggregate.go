// Package aggregate merges per-document results into corpus-level derived
// statistics. All inputs are treated as immutable; the aggregate is a
// recomputable view, never a source of truth.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mzaremba/quotient/internal/model"
	"github.com/mzaremba/quotient/internal/worker"
)

// Aggregator folds document outcomes into one corpus aggregate. It runs
// strictly after the Phase 4 barrier: every outcome passed in has already
// reached a terminal state.
type Aggregator struct{}

// New creates an aggregator
func New() *Aggregator {
	return &Aggregator{}
}

// Aggregate computes corpus statistics from the terminal outcomes of all
// dispatched document jobs. Failed documents contribute a quarantine entry
// and nothing else; successful siblings are unaffected.
func (a *Aggregator) Aggregate(outcomes []*worker.DocumentOutcome) *model.Aggregate {
	agg := &model.Aggregate{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
	}

	type codeAcc struct {
		applications int
		quotes       map[string]struct{}
		documents    map[string]struct{}
	}
	type entityAcc struct {
		mentions  int
		documents map[string]struct{}
	}

	codes := make(map[string]*codeAcc)
	entities := make(map[[2]string]*entityAcc) // (name, type) pair

	var results []*model.DocumentResult
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			agg.Failures = append(agg.Failures, model.DocumentFailure{
				DocumentID: outcome.DocumentID,
				Reason:     outcome.Err.Error(),
				FailedAt:   time.Now().UTC(),
			})
			continue
		}

		result := outcome.Result
		results = append(results, result)
		agg.Documents++
		agg.TotalQuotes += len(result.Quotes)
		agg.Warnings = append(agg.Warnings, result.Warnings...)

		// Consistency check: the backend-reported total should match the
		// validated quote list. Mismatches are reported, never corrected:
		// a gap here usually means validation dropped quotes, which the
		// apply-stage warnings already itemize. A zero report against a
		// non-empty quote list is a mismatch too, not an unreported count.
		if result.ReportedQuoteCount != len(result.Quotes) {
			agg.Warnings = append(agg.Warnings, model.Warning{
				Stage:      "aggregate",
				DocumentID: result.DocumentID,
				Message: fmt.Sprintf("reported quote_count %d does not match %d validated quotes",
					result.ReportedQuoteCount, len(result.Quotes)),
			})
		}

		for _, q := range result.Quotes {
			for _, codeID := range q.CodeIDs {
				acc, ok := codes[codeID]
				if !ok {
					acc = &codeAcc{quotes: map[string]struct{}{}, documents: map[string]struct{}{}}
					codes[codeID] = acc
				}
				acc.applications++
				acc.quotes[q.ID] = struct{}{}
				acc.documents[result.DocumentID] = struct{}{}
			}
		}

		for _, e := range result.Entities {
			key := [2]string{e.Name, e.Type}
			acc, ok := entities[key]
			if !ok {
				acc = &entityAcc{documents: map[string]struct{}{}}
				entities[key] = acc
			}
			acc.mentions++
			acc.documents[result.DocumentID] = struct{}{}
		}
	}

	for codeID, acc := range codes {
		agg.CodeStats = append(agg.CodeStats, model.CodeStat{
			CodeID:       codeID,
			Applications: acc.applications,
			QuoteCount:   len(acc.quotes),
			Documents:    len(acc.documents),
		})
	}
	sort.Slice(agg.CodeStats, func(i, j int) bool {
		a, b := agg.CodeStats[i], agg.CodeStats[j]
		if a.QuoteCount != b.QuoteCount {
			return a.QuoteCount > b.QuoteCount
		}
		return a.CodeID < b.CodeID
	})

	for key, acc := range entities {
		agg.EntityStats = append(agg.EntityStats, model.EntityStat{
			Name:      key[0],
			Type:      key[1],
			Mentions:  acc.mentions,
			Documents: len(acc.documents),
		})
	}
	sort.Slice(agg.EntityStats, func(i, j int) bool {
		a, b := agg.EntityStats[i], agg.EntityStats[j]
		if a.Mentions != b.Mentions {
			return a.Mentions > b.Mentions
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Type < b.Type
	})

	agg.Links = thematicLinks(results)

	return agg
}

// thematicLinks derives the cross-speaker idea-flow edges: for each code,
// quotes are ordered by (document, sequence) and consecutive quotes from
// different speakers are linked. Fully deterministic over the same inputs.
func thematicLinks(results []*model.DocumentResult) []model.ThematicLink {
	sorted := append([]*model.DocumentResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocumentID < sorted[j].DocumentID })

	byCode := make(map[string][]model.EnhancedQuote)
	for _, result := range sorted {
		for _, q := range result.Quotes {
			for _, codeID := range q.CodeIDs {
				byCode[codeID] = append(byCode[codeID], q)
			}
		}
	}

	codeIDs := make([]string, 0, len(byCode))
	for codeID := range byCode {
		codeIDs = append(codeIDs, codeID)
	}
	sort.Strings(codeIDs)

	var links []model.ThematicLink
	for _, codeID := range codeIDs {
		quotes := byCode[codeID]
		for i := 1; i < len(quotes); i++ {
			if quotes[i-1].Speaker.Name == quotes[i].Speaker.Name {
				continue
			}
			links = append(links, model.ThematicLink{
				FromQuoteID: quotes[i-1].ID,
				ToQuoteID:   quotes[i].ID,
				CodeID:      codeID,
			})
		}
	}

	return links
}
