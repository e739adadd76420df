package worker

import (
	"context"
	"time"

	"github.com/mzaremba/quotient/internal/corpus"
	"github.com/mzaremba/quotient/internal/model"
)

// Applicator is the interface the pool needs from the Phase 4 engine
type Applicator interface {
	Apply(ctx context.Context, doc corpus.Document, schemas model.SchemaSet) (*model.DocumentResult, error)
}

// DocumentJob applies the schema snapshot to one document. The snapshot
// travels with the job by value: workers never share mutable schema state.
type DocumentJob struct {
	Doc        corpus.Document
	Schemas    model.SchemaSet
	Applicator Applicator
	Timeout    time.Duration
}

// Execute runs the job. A timeout cancels only this job's context; sibling
// jobs keep their own.
func (j *DocumentJob) Execute(ctx context.Context) Result {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	result, err := j.Applicator.Apply(ctx, j.Doc, j.Schemas)
	if err != nil {
		return &DocumentOutcome{DocumentID: j.Doc.ID, Err: err}
	}
	return &DocumentOutcome{DocumentID: j.Doc.ID, Result: result}
}

// DocumentOutcome is the terminal state of one document job: either a
// validated result or a quarantined error.
type DocumentOutcome struct {
	DocumentID string
	Result     *model.DocumentResult
	Err        error
}

// GetError returns the error from the outcome
func (o *DocumentOutcome) GetError() error {
	return o.Err
}

// DocumentProcessor runs Phase 4 across documents with bounded concurrency
type DocumentProcessor struct {
	applicator  Applicator
	concurrency int
	timeout     time.Duration
}

// NewDocumentProcessor creates a new processor. Concurrency defaults to 3;
// the sensible range against hosted backends is 2-5.
func NewDocumentProcessor(applicator Applicator, concurrency int, timeout time.Duration) *DocumentProcessor {
	if concurrency <= 0 {
		concurrency = 3
	}
	return &DocumentProcessor{
		applicator:  applicator,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// Process applies the schema snapshot to every document. It blocks until
// every dispatched job reaches a terminal state - success or quarantined
// failure - so its return is the aggregation barrier. Outcomes arrive in
// completion order, which carries no meaning.
func (p *DocumentProcessor) Process(ctx context.Context, docs []corpus.Document, schemas model.SchemaSet) []*DocumentOutcome {
	if len(docs) == 0 {
		return []*DocumentOutcome{}
	}

	pool := NewPool(p.concurrency)
	pool.Start()

	// Cancelling the batch context stops the pool; individual job
	// timeouts and failures never do.
	stop := context.AfterFunc(ctx, pool.Shutdown)
	defer stop()

	// Submission runs alongside the result drain below. The queue applies
	// backpressure once full, so submitting from this goroutine before
	// draining would deadlock on any corpus larger than the buffers.
	go func() {
		defer pool.Close()
		for _, doc := range docs {
			accepted := pool.Submit(&DocumentJob{
				Doc:        doc,
				Schemas:    schemas,
				Applicator: p.applicator,
				Timeout:    p.timeout,
			})
			if !accepted {
				// Batch cancelled; the remaining documents are
				// backfilled as cancelled outcomes below.
				return
			}
		}
	}()

	results := pool.Wait()

	outcomes := make([]*DocumentOutcome, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, result := range results {
		outcome := result.(*DocumentOutcome)
		outcomes = append(outcomes, outcome)
		seen[outcome.DocumentID] = struct{}{}
	}

	// A batch cancellation can strand documents without a result: rejected
	// at submit, or still queued at shutdown. Every document still gets a
	// terminal outcome so the quarantine list stays complete.
	if len(outcomes) < len(docs) {
		cancelErr := ctx.Err()
		if cancelErr == nil {
			cancelErr = context.Canceled
		}
		for _, doc := range docs {
			if _, ok := seen[doc.ID]; !ok {
				outcomes = append(outcomes, &DocumentOutcome{DocumentID: doc.ID, Err: cancelErr})
			}
		}
	}

	return outcomes
}
