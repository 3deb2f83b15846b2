package claim

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/expensomatic/internal/expense"
	"github.com/zombor/expensomatic/internal/receipt"
)

type analysis struct {
	file   receipt.File
	result expense.Result
	done   bool
}

// extractAll analyzes files on a bounded pool and waits for all of them.
// Each analysis carries its own file, so outcomes never depend on completion order.
func (b *Builder) extractAll(ctx context.Context, files []receipt.File) ([]analysis, error) {
	results := make([]analysis, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i, f := range files {
		results[i].file = f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := b.extractor.Analyze(gctx, f)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", f.Name, err)
			}
			results[i].result = res
			results[i].done = true
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (b *Builder) analyzeBatch(ctx context.Context, log *slog.Logger, run *batchRun) StepResult {
	results, fatal := b.extractAll(ctx, run.batch.Files)
	today := b.timeSource.Now()

	for _, a := range results {
		if !a.done {
			continue
		}
		if f := a.result.Failure; f != nil {
			b.quarantine(log, run, a.file, f)
			continue
		}

		item := expense.Normalize(*a.result.Success, today, b.cfg.DatePolicy)
		run.items = append(run.items, &lineItem{file: a.file, item: item})
		log.Info("Receipt analyzed",
			"file", a.file.Name,
			"amount", item.Display(),
			"category", item.Category,
			"date", item.EffectiveDate.Format(expense.DateLayout),
			"adjusted", item.WasDateAdjusted,
		)
	}

	if fatal != nil {
		run.fatal = fatal
		return StepResult{Err: fatal}
	}
	return StepResult{}
}

func (b *Builder) quarantine(log *slog.Logger, run *batchRun, file receipt.File, f *expense.Failure) {
	reason := string(f.Reason)
	if f.Detail != "" {
		reason = fmt.Sprintf("%s: %s", f.Reason, f.Detail)
	}

	dest, err := b.repo.Quarantine(file)
	if err != nil {
		log.Error("Could not quarantine receipt", "file", file.Name, "reason", f.Reason, "error", err)
		b.setOutcome(run, file, LeftPending, fmt.Sprintf("%s; quarantine failed: %v", reason, err), "")
		return
	}
	log.Warn("Analysis failed, moved receipt to failed folder", "file", file.Name, "reason", f.Reason, "detail", f.Detail)
	b.setOutcome(run, file, Quarantined, reason, dest)
}
