package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffyaml"

	"github.com/zombor/expensomatic/internal/expense"
	"github.com/zombor/expensomatic/internal/kantata"
	"github.com/zombor/expensomatic/internal/receipt"
	"github.com/zombor/expensomatic/internal/scanning"
)

// EnvPrefix namespaces every flag as an environment variable,
// e.g. EXPENSOMATIC_PROJECT_ID
const EnvPrefix = "EXPENSOMATIC"

// Scanner names
const (
	ScannerOpenAI = "openai"
	ScannerGemini = "gemini"
	ScannerOllama = "ollama"
)

// defaultCategoryIDs are the Kantata expense category record ids
var defaultCategoryIDs = map[expense.Category]string{
	expense.Breakfast:      "a08Tl00000KnFXLIA3",
	expense.Lunch:          "a08Tl00000KnFXLIA3",
	expense.Dinner:         "a08Tl00000KnFX7IAN",
	expense.Parking:        "a08Tl00000KnFXTIA3",
	expense.Flights:        "a08Tl00000KnFXCIA3",
	expense.Taxi:           "a08Tl00000KnFXRIA3",
	expense.Train:          "a08Tl00000KnFXGIA3",
	expense.OfficeSupplies: "a08Tl00000KnFXAIA3",
	expense.ClientMeal:     "a08Tl00000KnFXJIA3",
	expense.Software:       "a08Tl00000KnFXAIA3",
	expense.Other:          "a08Tl00000KnFX6IAN",
}

// DefaultCategoryIDs returns a copy of the built-in category ids
func DefaultCategoryIDs() map[expense.Category]string {
	ids := make(map[expense.Category]string, len(defaultCategoryIDs))
	for c, id := range defaultCategoryIDs {
		ids[c] = id
	}
	return ids
}

// Config is the fully parsed and validated configuration
type Config struct {
	Scanner       string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiKey     string
	GeminiModel   string
	OllamaURL     string
	OllamaModel   string

	Extract        scanning.ExtractorConfig
	ExtractWorkers int

	DatePolicy   expense.DatePolicy
	MaxBatchSize int
	CategoryIDs  map[expense.Category]string
	ProjectID    string

	ReceiptsDir     string
	ScreenshotDir   string
	TakeScreenshots bool
	ReportDir       string
	LedgerPath      string

	Browser kantata.Config

	ShowVersion bool

	dateFallback string
	categoryIDs  string
}

// NewFlagSet declares every flag and binds it to cfg
func NewFlagSet(cfg *Config) *ff.FlagSet {
	fs := ff.NewFlagSet("expensomatic")
	fs.StringLong("config", "config.yaml", "YAML config file (missing file is allowed)")

	fs.StringVar(&cfg.Scanner, 0, "scanner", ScannerOpenAI, "Scanner type: 'openai', 'gemini' or 'ollama'")
	fs.StringVar(&cfg.OpenAIKey, 0, "openai-api-key", "", "OpenAI API key (or set OPENAI_API_KEY)")
	fs.StringVar(&cfg.OpenAIModel, 0, "openai-model", "gpt-4o", "OpenAI vision model")
	fs.StringVar(&cfg.OpenAIBaseURL, 0, "openai-base-url", "https://api.openai.com/v1", "OpenAI API base URL")
	fs.StringVar(&cfg.GeminiKey, 0, "gemini-api-key", "", "Google Gemini API key (or set GEMINI_API_KEY)")
	fs.StringVar(&cfg.GeminiModel, 0, "gemini-model", "gemini-2.5-pro", "Google Gemini model name")
	fs.StringVar(&cfg.OllamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.OllamaModel, 0, "ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")

	fs.IntVar(&cfg.Extract.Attempts, 0, "extract-attempts", 2, "Attempts per receipt on transient errors")
	fs.IntVar(&cfg.ExtractWorkers, 0, "extract-workers", 4, "Receipts analyzed concurrently within a batch")
	fs.DurationVar(&cfg.Extract.Timeout, 0, "extract-timeout", 60*time.Second, "Timeout for one extraction call")

	fs.BoolVarDefault(&cfg.DatePolicy.OverrideOldDates, 0, "override-old-dates", true, "Replace dates older than max-days-old")
	fs.IntVar(&cfg.DatePolicy.MaxDaysOld, 0, "max-days-old", 30, "Oldest receipt age in days the remote system accepts")
	fs.StringVar(&cfg.dateFallback, 0, "date-fallback", string(expense.FallbackToday), "Date used for stale receipts: 'today' or 'max-age'")
	fs.StringVar(&cfg.categoryIDs, 0, "category-ids", "", "Overrides as Name=recordId,... (e.g. 'Lunch=a08...,Taxi=a08...')")
	fs.IntVar(&cfg.MaxBatchSize, 0, "max-batch-size", receipt.DefaultMaxBatchSize, "Line items per claim")
	fs.StringVar(&cfg.ProjectID, 0, "project-id", "", "Kantata project record id for new claims")

	fs.StringVar(&cfg.ReceiptsDir, 0, "receipts-dir", "receipts", "Folder of pending receipts")
	fs.StringVar(&cfg.ScreenshotDir, 0, "screenshot-dir", "screenshots", "Folder for audit screenshots")
	fs.BoolVarDefault(&cfg.TakeScreenshots, 0, "take-screenshots", true, "Capture a screenshot of each claim before saving")
	fs.StringVar(&cfg.ReportDir, 0, "report-dir", "reports", "Folder for XLSX run reports (empty disables)")
	fs.StringVar(&cfg.LedgerPath, 0, "ledger", "expensomatic.db", "Ledger database file")

	fs.StringVar(&cfg.Browser.LoginURL, 0, "login-url", "", "Kantata login URL")
	fs.StringVar(&cfg.Browser.Channel, 0, "browser-channel", "msedge", "Installed browser channel")
	fs.StringVar(&cfg.Browser.UserDataDir, 0, "user-data-dir", kantata.DefaultUserDataDir(), "Browser profile directory holding the SSO session")
	fs.BoolVar(&cfg.Browser.Headless, 0, "headless", "Run the browser without a window")
	fs.DurationVar(&cfg.Browser.LoginTimeout, 0, "login-timeout", 60*time.Second, "How long to wait for SSO login")

	fs.BoolVar(&cfg.ShowVersion, 0, "version", "Show version information")
	return fs
}

// Load parses args, the environment and the config file. Flags win over
// environment variables, which win over the file. A .env file in the
// working directory is loaded first when present.
func Load(args []string) (*Config, *ff.FlagSet, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	fs := NewFlagSet(cfg)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix(EnvPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parse),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		return nil, fs, err
	}
	if cfg.ShowVersion {
		return cfg, fs, nil
	}

	var err error
	if cfg.DatePolicy.Fallback, err = expense.ParseDateFallback(cfg.dateFallback); err != nil {
		return nil, fs, err
	}
	if cfg.CategoryIDs, err = ParseCategoryIDs(cfg.categoryIDs, DefaultCategoryIDs()); err != nil {
		return nil, fs, err
	}
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if !cfg.TakeScreenshots {
		cfg.ScreenshotDir = ""
	}
	cfg.Extract.RetryDelay = time.Second

	if err := cfg.Validate(); err != nil {
		return nil, fs, err
	}
	return cfg, fs, nil
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	switch c.Scanner {
	case ScannerOpenAI:
		if c.OpenAIKey == "" {
			return errors.New("OpenAI API key is required. Set --openai-api-key or OPENAI_API_KEY")
		}
	case ScannerGemini:
		if c.GeminiKey == "" {
			return errors.New("Gemini API key is required. Set --gemini-api-key or GEMINI_API_KEY")
		}
	case ScannerOllama:
	default:
		return fmt.Errorf("invalid scanner type %q (valid: %s, %s, %s)", c.Scanner, ScannerOpenAI, ScannerGemini, ScannerOllama)
	}

	switch {
	case c.Browser.LoginURL == "":
		return errors.New("login-url is required")
	case c.ProjectID == "":
		return errors.New("project-id is required")
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("max-batch-size must be positive, got %d", c.MaxBatchSize)
	case c.DatePolicy.MaxDaysOld < 0:
		return fmt.Errorf("max-days-old must not be negative, got %d", c.DatePolicy.MaxDaysOld)
	case c.Extract.Attempts < 1:
		return fmt.Errorf("extract-attempts must be at least 1, got %d", c.Extract.Attempts)
	case c.ExtractWorkers < 1:
		return fmt.Errorf("extract-workers must be at least 1, got %d", c.ExtractWorkers)
	}
	if _, ok := c.CategoryIDs[expense.Other]; !ok {
		return errors.New("category-ids must include Other")
	}
	return nil
}

// ParseCategoryIDs applies "Name=id,..." overrides on top of base. Names go
// through the same synonyms as model output, so "Transport: Taxi" works.
func ParseCategoryIDs(s string, base map[expense.Category]string) (map[expense.Category]string, error) {
	ids := make(map[expense.Category]string, len(base))
	for c, id := range base {
		ids[c] = id
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, id, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("category id %q: want Name=recordId", pair)
		}
		category, known := expense.CanonicalizeCategory(name)
		if !known {
			return nil, fmt.Errorf("category id %q: unknown category %q (valid: %s)", pair, strings.TrimSpace(name), strings.Join(expense.CategoryNames(), ", "))
		}
		ids[category] = strings.TrimSpace(id)
	}
	return ids, nil
}

// FormatCategoryIDs renders ids in the flag syntax, sorted by name
func FormatCategoryIDs(ids map[expense.Category]string) string {
	pairs := make([]string, 0, len(ids))
	for c, id := range ids {
		pairs = append(pairs, string(c)+"="+id)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
