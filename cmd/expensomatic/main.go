package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/expensomatic/internal/claim"
	"github.com/zombor/expensomatic/internal/config"
	"github.com/zombor/expensomatic/internal/kantata"
	"github.com/zombor/expensomatic/internal/ledger"
	"github.com/zombor/expensomatic/internal/operator"
	"github.com/zombor/expensomatic/internal/pipeline"
	"github.com/zombor/expensomatic/internal/receipt"
	"github.com/zombor/expensomatic/internal/report"
	"github.com/zombor/expensomatic/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup happens before exit
func run(args []string) int {
	cfg, fs, err := config.Load(args)
	if err != nil {
		if fs != nil {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing ledger...", "path", cfg.LedgerPath)
	db, err := ledger.NewBoltDB(cfg.LedgerPath)
	if err != nil {
		slog.Error("Failed to initialize ledger", "error", err)
		return 1
	}
	defer db.Close()

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize scanner", "scanner", cfg.Scanner, "error", err)
		return 1
	}
	defer scanner.Close()
	extractor := scanning.NewExtractor(scanner, cfg.Extract, slog.Default())

	repo, err := receipt.NewLocalRepository(cfg.ReceiptsDir)
	if err != nil {
		slog.Error("Failed to open receipts folder", "path", cfg.ReceiptsDir, "error", err)
		return 1
	}

	session, err := kantata.Open(ctx, cfg.Browser, slog.Default())
	if err != nil {
		slog.Error("Failed to open Kantata session", "error", err)
		return 1
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Closing browser", "error", err)
		}
	}()

	runID := uuid.NewString()
	builder := claim.NewBuilder(claim.Config{
		RunID:         runID,
		DatePolicy:    cfg.DatePolicy,
		CategoryIDs:   cfg.CategoryIDs,
		ProjectID:     cfg.ProjectID,
		Workers:       cfg.ExtractWorkers,
		ScreenshotDir: cfg.ScreenshotDir,
	}, extractor, repo, session, operator.NewPrompt(), db, slog.Default())

	runner := pipeline.NewRunner(pipeline.Config{
		RunID:        runID,
		MaxBatchSize: cfg.MaxBatchSize,
	}, repo, builder, db, slog.Default())

	result, runErr := runner.Run(ctx)
	fmt.Println(report.Summary(result))

	if cfg.ReportDir != "" && len(result.Batches) > 0 {
		path, err := report.WriteWorkbook(cfg.ReportDir, result)
		if err != nil {
			slog.Error("Failed to write run report", "error", err)
		} else {
			slog.Info("Run report written", "path", path)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			slog.Warn("Interrupted; unprocessed receipts remain in the receipts folder")
		}
		return 1
	}
	return 0
}

func newScanner(ctx context.Context, cfg *config.Config) (scanning.Scanner, error) {
	switch cfg.Scanner {
	case config.ScannerOpenAI:
		slog.Info("Initializing OpenAI scanner...", "model", cfg.OpenAIModel)
		return scanning.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case config.ScannerGemini:
		slog.Info("Initializing Gemini scanner...", "model", cfg.GeminiModel)
		return scanning.NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
	case config.ScannerOllama:
		slog.Info("Initializing Ollama scanner...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return scanning.NewOllama(cfg.OllamaURL, cfg.OllamaModel)
	default:
		return nil, fmt.Errorf("invalid scanner type %q", cfg.Scanner)
	}
}
