// Package discover implements the three corpus-level schema discovery
// phases: the code taxonomy, the speaker property schema, and the
// entity/relationship schema. Each phase consumes the whole concatenated
// corpus in one logical backend call and produces an immutable artifact
// that Phase 4 applies per document.
package discover

import "fmt"

// Phase names used in fatal errors and artifacts
const (
	PhaseTaxonomy = "taxonomy"
	PhaseSpeakers = "speakers"
	PhaseEntities = "entities"
)

// FatalError is a corpus-level failure that must abort the run before any
// per-document work is dispatched. The canonical case is a Phase 1 result
// with zero codes: an empty taxonomy guarantees zero usable output from
// every downstream document, so the pipeline stops here instead.
type FatalError struct {
	Phase  string
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal failure in %s phase: %s", e.Phase, e.Reason)
}
