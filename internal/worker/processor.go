package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/cuongbtq/visit-metrics/internal/domain"
)

// processJob walks the visit list in order, one image at a time, then finalizes the job.
// Finalization is deferred so a fault mid-run still leaves the job terminal.
func (w *Worker) processJob(ctx context.Context, jobID string, visits []domain.Visit) {
	w.logger.Info("Processing job",
		slog.String("job_id", jobID),
		slog.Int("visits", len(visits)),
	)

	var (
		results []domain.ResultRecord
		errs    []domain.ErrorRecord
		current string
	)

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job processing panicked",
				slog.String("job_id", jobID),
				slog.String("store_id", current),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			errs = append(errs, domain.ErrorRecord{
				StoreID: current,
				Err:     domain.NewResolveError(domain.ResolveErrorInternal, "", fmt.Errorf("panic: %v", r)),
			})
		}

		w.finalizeJob(ctx, jobID, results, errs)
	}()

	for _, visit := range visits {
		current = visit.StoreID

		store, ok := w.directory.Lookup(visit.StoreID)
		if !ok {
			w.logger.Warn("Store not found, skipping visit",
				slog.String("job_id", jobID),
				slog.String("store_id", visit.StoreID),
				slog.Int("images_skipped", len(visit.ImageURLs)),
			)
			errs = append(errs, domain.ErrorRecord{
				StoreID: visit.StoreID,
				Err:     domain.ErrStoreNotFound,
			})
			continue
		}

		for _, imageURL := range visit.ImageURLs {
			perimeter, err := w.resolveImage(ctx, imageURL)
			if err != nil {
				w.logger.Warn("Image processing failed",
					slog.String("job_id", jobID),
					slog.String("store_id", visit.StoreID),
					slog.String("image_url", imageURL),
					slog.String("error", err.Error()),
				)
				errs = append(errs, domain.ErrorRecord{
					StoreID: visit.StoreID,
					Err:     err,
				})
				continue
			}

			results = append(results, domain.ResultRecord{
				StoreID:   visit.StoreID,
				StoreName: store.StoreName,
				ImageURL:  imageURL,
				Perimeter: perimeter,
			})

			w.logger.Info("Processed image",
				slog.String("job_id", jobID),
				slog.String("store_id", visit.StoreID),
				slog.Int("perimeter", perimeter),
			)
		}
	}
}

// resolveImage calls the resolver and converts a panic into a ResolveError
func (w *Worker) resolveImage(ctx context.Context, imageURL string) (perimeter int, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Image resolver panicked",
				slog.String("image_url", imageURL),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			perimeter = 0
			err = domain.NewResolveError(domain.ResolveErrorInternal, imageURL, fmt.Errorf("panic: %v", r))
		}
	}()

	return w.resolver.Resolve(ctx, imageURL)
}

// finalizeJob records the terminal state and announces it
func (w *Worker) finalizeJob(ctx context.Context, jobID string, results []domain.ResultRecord, errs []domain.ErrorRecord) {
	job, err := w.storage.FinalizeJob(ctx, jobID, results, errs)
	if err != nil {
		w.logger.Error("Failed to finalize job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("Job processed",
		slog.String("job_id", jobID),
		slog.String("status", string(job.Status)),
		slog.Int("results", len(job.Results)),
		slog.Int("errors", len(job.Errors)),
	)

	w.publishFinalized(ctx, job)
}
