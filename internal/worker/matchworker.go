package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"bloodlink/internal/matching"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/logger"
	"bloodlink/pkg/serrors"
)

// MatchWorker is a River worker that executes matching pipeline runs. Retries
// are safe: RunMatch is a no-op for runs that already reached a terminal
// state, so a job retried after a partial failure resumes from the last
// persisted state instead of duplicating work.
type MatchWorker struct {
	river.WorkerDefaults[matching.JobArgs]

	service matching.Service
}

// NewMatchWorker constructs a MatchWorker backed by the given service.
func NewMatchWorker(service matching.Service) *MatchWorker {
	return &MatchWorker{
		service: service,
	}
}

// Work executes a single matching job. Jobs referencing runs or requests that
// no longer exist are cancelled instead of retried.
func (w *MatchWorker) Work(ctx context.Context, job *river.Job[matching.JobArgs]) error {
	ctx = logger.WithFields(ctx,
		zap.Int64("jobID", job.ID),
		zap.String("requestId", job.Args.RequestID),
		zap.String("runId", job.Args.RunID))

	runID, err := uuid.Parse(job.Args.RunID)
	if err != nil {
		logger.Error(ctx, "malformed run id in job args", zap.Error(err))

		return river.JobCancel(fmt.Errorf("malformed run id: %w", err)) //nolint: wrapcheck
	}

	if err := w.service.RunMatch(ctx, domain.RunID(runID)); err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return river.JobCancel(err) //nolint: wrapcheck
		}

		logger.Error(ctx, "error executing matching run", zap.Error(err))

		return fmt.Errorf("could not execute matching run: %w", err)
	}

	logger.Info(ctx, "matching run executed")

	return nil
}
