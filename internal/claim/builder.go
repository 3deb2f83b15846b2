package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/expensomatic/internal/expense"
	"github.com/zombor/expensomatic/internal/receipt"
)

// NameLayout formats the claim name from the processing time
const NameLayout = "January 2 15:04:05"

const screenshotLayout = "20060102_150405"

// Config controls how batches become claims
type Config struct {
	RunID       string
	DatePolicy  expense.DatePolicy
	CategoryIDs map[expense.Category]string
	ProjectID   string
	// Workers bounds concurrent extraction calls within a batch
	Workers int
	// ScreenshotDir receives the audit screenshot; empty disables it
	ScreenshotDir string
}

// ClaimName names the claim for batch started at start. The batch position
// is added when a run has several, so claims and archive folders stay
// distinct even when batches start within the same second.
func ClaimName(start time.Time, batch receipt.Batch) string {
	name := start.Format(NameLayout)
	if batch.Total > 1 {
		name += fmt.Sprintf(" (%d of %d)", batch.Number, batch.Total)
	}
	return name
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Builder drives one batch at a time through the claim lifecycle
type Builder struct {
	cfg         Config
	extractor   Extractor
	repo        receipt.Repository
	session     Session
	confirmer   Confirmer
	recorder    Recorder
	timeSource  receipt.TimeSource
	idGenerator IDGenerator
	logger      *slog.Logger
}

// NewBuilder creates a Builder with the system clock and uuid draft IDs
func NewBuilder(cfg Config, extractor Extractor, repo receipt.Repository, session Session, confirmer Confirmer, recorder Recorder, logger *slog.Logger) *Builder {
	return NewBuilderWithDeps(cfg, extractor, repo, session, confirmer, recorder, receipt.SystemTime{}, uuidGenerator{}, logger)
}

// NewBuilderWithDeps creates a Builder with custom dependencies for testing
func NewBuilderWithDeps(cfg Config, extractor Extractor, repo receipt.Repository, session Session, confirmer Confirmer, recorder Recorder, timeSource receipt.TimeSource, idGen IDGenerator, logger *slog.Logger) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		cfg:         cfg,
		extractor:   extractor,
		repo:        repo,
		session:     session,
		confirmer:   confirmer,
		recorder:    recorder,
		timeSource:  timeSource,
		idGenerator: idGen,
		logger:      logger,
	}
}

// Report is the outcome of one batch
type Report struct {
	Batch    receipt.Batch
	State    State
	Reason   error
	Draft    *Draft
	Outcomes []ReceiptOutcome
}

// Count returns how many receipts ended with status
func (r *Report) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

type lineItem struct {
	file receipt.File
	item expense.LineItem
	ref  LineItemRef
	rec  *Item
}

// batchRun is the working state of one batch
type batchRun struct {
	batch     receipt.Batch
	startedAt time.Time
	items     []*lineItem
	claim     ClaimRef
	draft     *Draft
	outcomes  map[string]ReceiptOutcome
	// fatal is set when the whole pipeline has to stop
	fatal error
}

// Build runs batch to a terminal state. The returned error is non-nil only
// when the extraction service is unusable or ctx was cancelled; remote
// failures are reported in the Report with State Failed.
func (b *Builder) Build(ctx context.Context, batch receipt.Batch) (*Report, error) {
	run := &batchRun{
		batch:     batch,
		startedAt: b.timeSource.Now(),
		outcomes:  make(map[string]ReceiptOutcome, len(batch.Files)),
	}
	log := b.logger.With("batch", batch.Number, "of", batch.Total)
	log.Info("Processing batch", "receipts", len(batch.Files))

	state := Analyzing
	var reason error
	for !state.Terminal() {
		result := b.step(ctx, log, state, run)
		next, err := Transition(state, result)
		if next == Failed {
			log.Error("Batch failed", "state", state, "error", err)
		} else {
			log.Debug("Batch transition", "from", state, "to", next)
		}
		state, reason = next, err
		b.saveDraft(run, state, reason)
	}

	report := b.finish(run, state, reason)
	log.Info("Batch finished",
		"state", state,
		"archived", report.Count(Archived),
		"quarantined", report.Count(Quarantined),
		"pending", report.Count(LeftPending),
	)
	return report, run.fatal
}

func (b *Builder) step(ctx context.Context, log *slog.Logger, state State, run *batchRun) StepResult {
	if err := ctx.Err(); err != nil && state != Archiving {
		run.fatal = err
		return StepResult{Err: err}
	}

	switch state {
	case Analyzing:
		return b.analyzeBatch(ctx, log, run)
	case Partitioned:
		log.Info("Receipts analyzed", "ready", len(run.items), "failed", len(run.batch.Files)-len(run.items))
		if len(run.items) == 0 {
			log.Warn("No valid expenses in batch, skipping claim")
		}
		return StepResult{Successes: len(run.items)}
	case CreatingClaim:
		return b.createClaim(ctx, log, run)
	case Populating:
		return b.populate(ctx, log, run)
	case Uploading:
		return b.upload(ctx, log, run)
	case Saving:
		return b.save(ctx, log, run)
	case AwaitingConfirmation:
		return b.awaitConfirmation(ctx, log, run)
	case Archiving:
		return b.archive(log, run)
	}
	return StepResult{Err: fmt.Errorf("no step for state %q", state)}
}

func (b *Builder) createClaim(ctx context.Context, log *slog.Logger, run *batchRun) StepResult {
	name := ClaimName(run.startedAt, run.batch)
	incurred := run.items[0].item.EffectiveDate
	for _, li := range run.items[1:] {
		if li.item.EffectiveDate.Before(incurred) {
			incurred = li.item.EffectiveDate
		}
	}

	now := b.timeSource.Now()
	run.draft = &Draft{
		ID:        b.idGenerator.Generate(),
		RunID:     b.cfg.RunID,
		Batch:     run.batch.Number,
		Name:      name,
		State:     CreatingClaim,
		Items:     make([]Item, len(run.items)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, li := range run.items {
		run.draft.Items[i] = Item{
			Receipt:       li.file.Name,
			Category:      li.item.Category,
			Amount:        li.item.Amount.StringFixed(2),
			Currency:      li.item.Currency,
			Date:          li.item.Date.Format(expense.DateLayout),
			EffectiveDate: li.item.EffectiveDate.Format(expense.DateLayout),
			DateAdjusted:  li.item.WasDateAdjusted,
		}
		li.rec = &run.draft.Items[i]
	}

	log.Info("Creating expense claim", "name", name, "expenses", len(run.items), "incurred", incurred.Format(expense.DateLayout))
	ref, err := b.session.CreateClaim(ctx, ClaimHeader{
		Name:         name,
		ProjectID:    b.cfg.ProjectID,
		IncurredDate: incurred,
	})
	if err != nil {
		return StepResult{Err: fmt.Errorf("creating claim: %w", err)}
	}
	if ref.Name == "" {
		ref.Name = name
	}
	run.claim = ref
	run.draft.RemoteID = ref.ID
	return StepResult{}
}

func (b *Builder) categoryID(c expense.Category) (string, error) {
	if id, ok := b.cfg.CategoryIDs[c]; ok && id != "" {
		return id, nil
	}
	if id, ok := b.cfg.CategoryIDs[expense.Other]; ok && id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no remote category id for %q", c)
}

func (b *Builder) populate(ctx context.Context, log *slog.Logger, run *batchRun) StepResult {
	for i, li := range run.items {
		if err := ctx.Err(); err != nil {
			run.fatal = err
			return StepResult{Err: err}
		}

		itemLog := log.With("item", i+1, "file", li.file.Name)
		categoryID, err := b.categoryID(li.item.Category)
		if err == nil {
			li.ref, err = b.session.AddLineItem(ctx, run.claim, LineItem{
				Category:    li.item.Category,
				CategoryID:  categoryID,
				Amount:      li.item.Amount,
				Currency:    li.item.Currency,
				Date:        li.item.EffectiveDate,
				Description: li.item.Description(),
			})
		}
		if err != nil {
			li.rec.Error = fmt.Sprintf("adding line item: %v", err)
			itemLog.Warn("Failed to add expense, leaving receipt for follow-up", "error", err)
			continue
		}
		li.rec.Added = true
		itemLog.Info("Added expense",
			"category", li.item.Category,
			"amount", li.item.Display(),
			"date", li.item.EffectiveDate.Format(expense.DateLayout),
		)
	}
	return StepResult{}
}

func (b *Builder) upload(ctx context.Context, log *slog.Logger, run *batchRun) StepResult {
	for _, li := range run.items {
		if !li.rec.Added {
			continue
		}
		if err := ctx.Err(); err != nil {
			run.fatal = err
			return StepResult{Err: err}
		}
		if err := b.session.UploadAttachment(ctx, li.ref, li.file.Path); err != nil {
			li.rec.Error = fmt.Sprintf("uploading receipt: %v", err)
			log.Warn("Failed to upload receipt, leaving it for follow-up", "file", li.file.Name, "error", err)
			continue
		}
		li.rec.Uploaded = true
		log.Info("Uploaded receipt", "file", li.file.Name)
	}
	return StepResult{}
}

func (b *Builder) save(ctx context.Context, log *slog.Logger, run *batchRun) StepResult {
	if b.cfg.ScreenshotDir != "" {
		path, err := b.captureScreenshot(ctx, run)
		if err != nil {
			log.Warn("Failed to capture screenshot", "error", err)
		} else {
			run.draft.Screenshot = path
			log.Info("Captured screenshot", "path", path)
		}
	}

	if err := b.session.Save(ctx, run.claim); err != nil {
		return StepResult{Err: fmt.Errorf("saving claim: %w", err)}
	}
	log.Info("Saved claim", "name", run.claim.Name, "expenses", completeItems(run))
	return StepResult{}
}

func (b *Builder) captureScreenshot(ctx context.Context, run *batchRun) (string, error) {
	img, err := b.session.CaptureScreenshot(ctx, run.claim)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.cfg.ScreenshotDir, 0755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	name := fmt.Sprintf("%s_final_expense_report.png", b.timeSource.Now().Format(screenshotLayout))
	path := filepath.Join(b.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, img, 0644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	return path, nil
}

func (b *Builder) awaitConfirmation(ctx context.Context, log *slog.Logger, run *batchRun) StepResult {
	complete := completeItems(run)
	log.Info("Waiting for operator confirmation", "claim", run.claim.Name)
	ok, err := b.confirmer.Confirm(ctx, Confirmation{
		ClaimName:    run.claim.Name,
		Batch:        run.batch.Number,
		TotalBatches: run.batch.Total,
		Items:        complete,
		ItemFailures: len(run.items) - complete,
	})
	if err != nil {
		err = fmt.Errorf("awaiting confirmation: %w", err)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			run.fatal = err
		}
		return StepResult{Err: err}
	}
	return StepResult{Confirmed: ok}
}

func (b *Builder) archive(log *slog.Logger, run *batchRun) StepResult {
	folder := receipt.ArchiveFolderName(run.claim.Name)
	for _, li := range run.items {
		if !li.rec.Complete() {
			continue
		}
		dest, err := b.repo.Archive(li.file, folder)
		if err != nil {
			log.Error("Failed to archive receipt", "file", li.file.Name, "error", err)
			b.setOutcome(run, li.file, LeftPending, err.Error(), "")
			continue
		}
		log.Info("Archived receipt", "file", li.file.Name, "folder", folder)
		b.setOutcome(run, li.file, Archived, "", dest)
	}
	return StepResult{}
}

func completeItems(run *batchRun) int {
	n := 0
	for _, li := range run.items {
		if li.rec != nil && li.rec.Complete() {
			n++
		}
	}
	return n
}

func (b *Builder) setOutcome(run *batchRun, file receipt.File, status OutcomeStatus, reason, dest string) {
	o := ReceiptOutcome{
		Receipt:     file.Name,
		Status:      status,
		Reason:      reason,
		Destination: dest,
		RunID:       b.cfg.RunID,
		Batch:       run.batch.Number,
		RecordedAt:  b.timeSource.Now(),
	}
	if run.draft != nil {
		o.DraftID = run.draft.ID
	}
	run.outcomes[file.Path] = o
}

func (b *Builder) saveDraft(run *batchRun, state State, reason error) {
	if run.draft == nil {
		return
	}
	run.draft.State = state
	if reason != nil {
		run.draft.Reason = reason.Error()
	}
	run.draft.UpdatedAt = b.timeSource.Now()
	if b.recorder == nil {
		return
	}
	if err := b.recorder.SaveDraft(run.draft); err != nil {
		b.logger.Warn("Failed to record draft", "draft", run.draft.ID, "error", err)
	}
}

// finish gives every file of the batch exactly one outcome. Files that were
// neither archived nor quarantined stay pending for a future run.
func (b *Builder) finish(run *batchRun, state State, reason error) *Report {
	pendingReason := ""
	if reason != nil {
		pendingReason = reason.Error()
	}
	items := make(map[string]*lineItem, len(run.items))
	for _, li := range run.items {
		items[li.file.Path] = li
	}

	report := &Report{Batch: run.batch, State: state, Reason: reason, Draft: run.draft}
	for _, f := range run.batch.Files {
		if _, ok := run.outcomes[f.Path]; !ok {
			why := pendingReason
			if li, ok := items[f.Path]; ok && li.rec != nil && li.rec.Error != "" {
				why = li.rec.Error
			}
			b.setOutcome(run, f, LeftPending, why, "")
		}
		o := run.outcomes[f.Path]
		report.Outcomes = append(report.Outcomes, o)
		if b.recorder != nil {
			if err := b.recorder.RecordOutcome(o); err != nil {
				b.logger.Warn("Failed to record receipt outcome", "file", f.Name, "error", err)
			}
		}
	}
	return report
}
