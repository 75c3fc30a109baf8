package reconcile

import (
	"context"
	"errors"
	"log"
	"time"

	"libraryloans/internal/inventory"
)

const defaultBatchSize = 50

// Releaser puts a copy back on the shelf.
type Releaser interface {
	ReleaseCopy(ctx context.Context, bookID string) (inventory.Book, error)
}

// Worker drains the journal by re-applying pending releases.
type Worker struct {
	journal   Journal
	inventory Releaser
	batchSize int
}

func NewWorker(journal Journal, inv Releaser) *Worker {
	return &Worker{journal: journal, inventory: inv, batchSize: defaultBatchSize}
}

// RunResult summarises one pass over the journal.
type RunResult struct {
	Resolved int
	Failed   int
}

// RunOnce retries every pending task once. A release that hits the total
// copies cap means the copy is already back, so the task is resolved.
func (w *Worker) RunOnce(ctx context.Context) (RunResult, error) {
	var res RunResult

	tasks, err := w.journal.Pending(ctx, w.batchSize)
	if err != nil {
		return res, err
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		_, relErr := w.inventory.ReleaseCopy(ctx, task.BookID)
		switch {
		case relErr == nil:
			log.Printf("level=info msg=\"reconciled release\" task_id=%s book_id=%s reason=%s attempts=%d",
				task.ID, task.BookID, task.Reason, task.Attempts+1)
		case errors.Is(relErr, inventory.ErrReleaseOverflow):
			log.Printf("level=warn msg=\"release already applied\" task_id=%s book_id=%s reason=%s",
				task.ID, task.BookID, task.Reason)
		case errors.Is(relErr, inventory.ErrNotFound):
			log.Printf("level=error msg=\"reconcile target missing\" task_id=%s book_id=%s", task.ID, task.BookID)
		default:
			res.Failed++
			log.Printf("level=error msg=\"reconcile attempt failed\" task_id=%s book_id=%s attempts=%d err=%v",
				task.ID, task.BookID, task.Attempts+1, relErr)
			if err := w.journal.MarkAttempt(ctx, task.ID, relErr); err != nil {
				return res, err
			}
			continue
		}

		if err := w.journal.Resolve(ctx, task.ID); err != nil {
			return res, err
		}
		res.Resolved++
	}
	return res, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("level=error msg=\"reconcile pass failed\" err=%v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
