package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zombor/expensomatic/internal/expense"
	"github.com/zombor/expensomatic/internal/receipt"
)

// ExtractorConfig bounds calls to the vision service
type ExtractorConfig struct {
	// Attempts is the total number of tries for transient errors
	Attempts int
	// Timeout applies to each attempt
	Timeout time.Duration
	// RetryDelay is multiplied by the attempt number between tries
	RetryDelay time.Duration
}

// DefaultExtractorConfig returns two attempts with a one minute timeout
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{Attempts: 2, Timeout: 60 * time.Second, RetryDelay: time.Second}
}

// Extractor turns one receipt file into an expense.Result
type Extractor struct {
	scanner Scanner
	cfg     ExtractorConfig
	logger  *slog.Logger
}

// NewExtractor creates an Extractor around scanner
func NewExtractor(scanner Scanner, cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{scanner: scanner, cfg: cfg, logger: logger}
}

// Analyze extracts file. Problems with the receipt itself come back as a
// Failure result; an error means the service is unusable or ctx is done.
func (e *Extractor) Analyze(ctx context.Context, file receipt.File) (expense.Result, error) {
	log := e.logger.With("file", file.Name)

	raw, err := os.ReadFile(file.Path)
	if err != nil {
		return expense.Failed(file.Name, expense.UnreadableFile, err.Error()), nil
	}
	imageData, err := prepareImageData(raw, file.ContentType)
	if err != nil {
		return expense.Failed(file.Name, expense.UnreadableFile, err.Error()), nil
	}

	for attempt := 1; ; attempt++ {
		start := time.Now()
		log.Debug("extract.start", "attempt", attempt, "bytes", len(imageData))

		data, err := e.scan(ctx, imageData)
		if err == nil {
			success, known, convErr := toSuccess(data)
			if convErr != nil {
				log.Warn("extract.malformed", "error", convErr)
				return expense.Failed(file.Name, expense.MalformedResponse, convErr.Error()), nil
			}
			if !known {
				log.Warn("Unknown category, using Other", "category", data.Category)
			}
			log.Info("extract.ok",
				"amount", success.Amount.StringFixed(2),
				"currency", success.Currency,
				"category", success.Category,
				"date", success.Date.Format(expense.DateLayout),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return expense.Succeeded(success), nil
		}

		if ctx.Err() != nil {
			return expense.Result{}, ctx.Err()
		}

		switch {
		case errors.Is(err, ErrUnreadable):
			return expense.Failed(file.Name, expense.UnreadableFile, err.Error()), nil
		case errors.Is(err, ErrRefused):
			return expense.Failed(file.Name, expense.ModelRefused, err.Error()), nil
		case errors.Is(err, ErrMalformed):
			log.Warn("extract.malformed", "error", err)
			return expense.Failed(file.Name, expense.MalformedResponse, err.Error()), nil
		case isAuthError(err):
			return expense.Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		case !shouldRetry(err):
			return expense.Failed(file.Name, expense.ModelRefused, err.Error()), nil
		}

		log.Warn("extract.error", "attempt", attempt, "of", e.cfg.Attempts, "error", err)
		if attempt >= e.cfg.Attempts {
			if isUnreachable(err) {
				return expense.Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
			return expense.Failed(file.Name, expense.Timeout, err.Error()), nil
		}
		if err := sleepCtx(ctx, e.cfg.RetryDelay*time.Duration(attempt)); err != nil {
			return expense.Result{}, err
		}
	}
}

func (e *Extractor) scan(ctx context.Context, imageData []byte) (*ReceiptData, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	return e.scanner.ScanReceipt(ctx, imageData, "image/png")
}
