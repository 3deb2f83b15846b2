package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zombor/expensomatic/internal/claim"
	"github.com/zombor/expensomatic/internal/receipt"
	"github.com/zombor/expensomatic/internal/report"
)

// Builder turns one batch into a claim
type Builder interface {
	Build(ctx context.Context, batch receipt.Batch) (*claim.Report, error)
}

// History looks up earlier outcomes for a receipt file name
type History interface {
	History(name string) ([]claim.ReceiptOutcome, error)
}

// Config controls a pipeline run
type Config struct {
	// RunID tags the run; a new uuid is used when empty. The claim builder
	// should be given the same id so ledger entries line up.
	RunID        string
	MaxBatchSize int
}

// Runner processes every pending receipt, one batch at a time
type Runner struct {
	cfg        Config
	repo       receipt.Repository
	builder    Builder
	history    History
	timeSource receipt.TimeSource
	logger     *slog.Logger
}

// NewRunner creates a Runner using the system clock. history may be nil.
func NewRunner(cfg Config, repo receipt.Repository, builder Builder, history History, logger *slog.Logger) *Runner {
	return NewRunnerWithTime(cfg, repo, builder, history, receipt.SystemTime{}, logger)
}

// NewRunnerWithTime creates a Runner with a custom time source for testing
func NewRunnerWithTime(cfg Config, repo receipt.Repository, builder Builder, history History, timeSource receipt.TimeSource, logger *slog.Logger) *Runner {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:        cfg,
		repo:       repo,
		builder:    builder,
		history:    history,
		timeSource: timeSource,
		logger:     logger,
	}
}

// Run snapshots the pending receipts, partitions them and builds each batch
// in order. A batch that fails remotely does not stop the run; a fatal error
// from the builder or a cancelled ctx does, and is returned alongside the
// partial Run.
func (r *Runner) Run(ctx context.Context) (*report.Run, error) {
	run := &report.Run{
		ID:        r.cfg.RunID,
		StartedAt: r.timeSource.Now(),
	}
	log := r.logger.With("run", run.ID)

	err := r.process(ctx, log, run)
	run.FinishedAt = r.timeSource.Now()
	run.Err = err

	if err != nil {
		log.Error("Run stopped", "error", err, "batches", len(run.Batches))
		return run, err
	}
	log.Info("Run finished",
		"claims", run.ClaimsSaved(),
		"archived", run.Count(claim.Archived),
		"quarantined", run.Count(claim.Quarantined),
		"pending", run.Count(claim.LeftPending),
	)
	return run, nil
}

func (r *Runner) process(ctx context.Context, log *slog.Logger, run *report.Run) error {
	pending, err := r.repo.ListPending()
	if err != nil {
		return fmt.Errorf("listing pending receipts: %w", err)
	}
	run.Pending = len(pending)
	if len(pending) == 0 {
		log.Info("No pending receipts")
		return nil
	}
	r.warnSeenBefore(log, pending)

	batches, err := receipt.MakeBatches(pending, r.cfg.MaxBatchSize)
	if err != nil {
		return err
	}
	log.Info("Found pending receipts", "receipts", len(pending), "batches", len(batches))

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep, err := r.builder.Build(ctx, batch)
		if rep != nil {
			run.Batches = append(run.Batches, rep)
		}
		if err != nil {
			return fmt.Errorf("batch %d of %d: %w", batch.Number, batch.Total, err)
		}
	}
	return nil
}

// warnSeenBefore flags receipts whose name already went through a claim.
// They are still processed; a rerun after an interruption can otherwise
// produce a second claim without anyone noticing.
func (r *Runner) warnSeenBefore(log *slog.Logger, pending []receipt.File) {
	if r.history == nil {
		return
	}
	for _, f := range pending {
		past, err := r.history.History(f.Name)
		if err != nil {
			log.Warn("Ledger lookup failed", "receipt", f.Name, "error", err)
			continue
		}
		for _, o := range past {
			if o.Status == claim.Archived {
				log.Warn("Receipt was already claimed", "receipt", f.Name, "draft", o.DraftID, "at", o.RecordedAt)
				break
			}
		}
	}
}
