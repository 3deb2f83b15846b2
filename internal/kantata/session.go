package kantata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/zombor/expensomatic/internal/claim"
)

// Config controls the browser session
type Config struct {
	LoginURL string
	// Channel selects the installed browser, e.g. msedge or chrome
	Channel string
	// UserDataDir keeps the SSO cookies between runs
	UserDataDir  string
	Headless     bool
	LoginTimeout time.Duration
}

// DefaultUserDataDir is ~/.playwright-expense-automation
func DefaultUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".playwright-expense-automation"
	}
	return filepath.Join(home, ".playwright-expense-automation")
}

// Session drives the Kantata UI through one persistent browser context. It is
// not safe for concurrent use; batches run one at a time.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.BrowserContext
	page    playwright.Page
	logger  *slog.Logger

	// rows counts line items added to the open claim
	rows int
}

var _ claim.Session = (*Session)(nil)

// Open launches the browser and waits for the operator to finish SSO login
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LoginURL == "" {
		return nil, fmt.Errorf("login url is required")
	}
	if cfg.UserDataDir == "" {
		cfg.UserDataDir = DefaultUserDataDir()
	}
	if err := os.MkdirAll(cfg.UserDataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating browser profile directory: %w", err)
	}

	logger.Info("Initializing browser...", "channel", cfg.Channel, "profile", cfg.UserDataDir)
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright (install the driver with `go run github.com/playwright-community/playwright-go/cmd/playwright install`): %w", err)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(cfg.Headless),
		Viewport: &playwright.Size{Width: 1280, Height: 800},
		Args:     []string{"--window-size=1280,800"},
	}
	if cfg.Channel != "" {
		opts.Channel = playwright.String(cfg.Channel)
	}
	browser, err := pw.Chromium.LaunchPersistentContext(cfg.UserDataDir, opts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	s := &Session{pw: pw, browser: browser, logger: logger}
	if pages := browser.Pages(); len(pages) > 0 {
		s.page = pages[0]
	} else if s.page, err = browser.NewPage(); err != nil {
		s.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	if err := s.login(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) login(ctx context.Context, cfg Config) error {
	s.logger.Info("Navigating to Kantata...", "url", cfg.LoginURL)
	if _, err := s.page.Goto(cfg.LoginURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}
	s.page.WaitForTimeout(3000)

	header := s.page.Locator(loggedInSelector)
	if n, err := header.Count(); err == nil && n > 0 {
		s.logger.Info("Logged in via SSO")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := cfg.LoginTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	s.logger.Warn("Please complete SSO login in the browser", "timeout", timeout)
	if err := header.First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("waiting for SSO login: %w", err)
	}
	s.logger.Info("Logged in")
	return nil
}

func (s *Session) claimFrame() playwright.FrameLocator {
	return s.page.FrameLocator(claimFrameSelector).Last()
}

func (s *Session) openNewClaim() error {
	if err := s.page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name: "Expense Claims List",
	}).Click(); err != nil {
		return fmt.Errorf("opening claims list: %w", err)
	}
	s.page.WaitForTimeout(1000)

	if err := s.page.GetByRole(*playwright.AriaRoleMenuitem, playwright.PageGetByRoleOptions{
		Name: "New Expense Claim",
	}).Click(); err != nil {
		return fmt.Errorf("starting new claim: %w", err)
	}
	s.page.WaitForTimeout(2000)
	return nil
}

// CreateClaim opens a new claim and fills its header
func (s *Session) CreateClaim(ctx context.Context, header claim.ClaimHeader) (claim.ClaimRef, error) {
	if err := ctx.Err(); err != nil {
		return claim.ClaimRef{}, err
	}
	if err := s.openNewClaim(); err != nil {
		return claim.ClaimRef{}, err
	}
	s.rows = 0
	frame := s.claimFrame()

	if err := frame.Locator(claimNameSelector).Fill(header.Name); err != nil {
		return claim.ClaimRef{}, fmt.Errorf("filling claim name: %w", err)
	}
	if _, err := frame.GetByRole(*playwright.AriaRoleCombobox).First().SelectOption(playwright.SelectOptionValues{
		Values: &[]string{header.ProjectID},
	}); err != nil {
		return claim.ClaimRef{}, fmt.Errorf("selecting project %s: %w", header.ProjectID, err)
	}
	s.page.WaitForTimeout(1000)

	if !header.IncurredDate.IsZero() {
		if err := fillDate(frame.Locator(incurredDateSelector), header.IncurredDate); err != nil {
			return claim.ClaimRef{}, fmt.Errorf("filling incurred date: %w", err)
		}
	}
	s.page.WaitForTimeout(1000)

	if err := frame.Locator(actionButtonsSelector).Nth(proceedButtonIndex).Click(); err != nil {
		return claim.ClaimRef{}, fmt.Errorf("proceeding to items: %w", err)
	}
	s.page.WaitForTimeout(1500)

	s.logger.Debug("Claim header filled", "name", header.Name, "incurred", formatDate(header.IncurredDate))
	// Kantata assigns the record id only on save, so the name identifies the claim
	return claim.ClaimRef{ID: header.Name, Name: header.Name}, nil
}

func fillDate(field playwright.Locator, t time.Time) error {
	if err := field.Fill(formatDate(t)); err != nil {
		return err
	}
	return field.Press("Enter")
}

// AddLineItem appends a row to the open claim
func (s *Session) AddLineItem(ctx context.Context, ref claim.ClaimRef, item claim.LineItem) (claim.LineItemRef, error) {
	if err := ctx.Err(); err != nil {
		return claim.LineItemRef{}, err
	}
	frame := s.claimFrame()
	if err := frame.GetByText("Add Expense").Nth(addExpenseIndex).Click(); err != nil {
		return claim.LineItemRef{}, fmt.Errorf("adding row: %w", err)
	}
	row := s.rows
	s.rows++
	s.page.WaitForTimeout(1000)

	if _, err := frame.Locator(categorySelector).Nth(row).SelectOption(playwright.SelectOptionValues{
		Values: &[]string{item.CategoryID},
	}); err != nil {
		return claim.LineItemRef{}, fmt.Errorf("selecting category %s: %w", item.Category, err)
	}
	if _, err := frame.Locator(currencySelector).Nth(row).SelectOption(playwright.SelectOptionValues{
		Labels: &[]string{string(item.Currency)},
	}); err != nil {
		return claim.LineItemRef{}, fmt.Errorf("selecting currency %s: %w", item.Currency, err)
	}
	if err := frame.Locator(amountSelector).Nth(row).Fill(formatAmount(item.Amount)); err != nil {
		return claim.LineItemRef{}, fmt.Errorf("filling amount: %w", err)
	}
	if err := fillDate(frame.Locator(itemDateSelector).Nth(row), item.Date); err != nil {
		return claim.LineItemRef{}, fmt.Errorf("filling date: %w", err)
	}
	s.page.WaitForTimeout(500)

	if item.Description != "" {
		desc := frame.Locator(descriptionSelector).Nth(row)
		if n, err := frame.Locator(descriptionSelector).Count(); err == nil && n > row {
			if err := desc.Fill(item.Description); err != nil {
				s.logger.Warn("Could not fill description", "row", row, "error", err)
			}
		}
	}

	if err := frame.Locator(receiptCheckboxSelector(row)).Check(); err != nil {
		return claim.LineItemRef{}, fmt.Errorf("ticking receipt box: %w", err)
	}
	return claim.LineItemRef{Claim: ref, Index: row}, nil
}

// UploadAttachment attaches path to the row through the upload popup
func (s *Session) UploadAttachment(ctx context.Context, item claim.LineItemRef, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	if err := s.claimFrame().Locator(uploadButtonSelector(item.Index)).Click(); err != nil {
		return fmt.Errorf("opening upload popup: %w", err)
	}
	s.page.WaitForTimeout(2000)

	upload := s.uploadFrame()
	if upload == nil {
		return errors.New("upload popup not found")
	}
	input := upload.Locator(fileInputSelector)
	if err := input.WaitFor(playwright.LocatorWaitForOptions{Timeout: playwright.Float(5000)}); err != nil {
		return fmt.Errorf("waiting for file input: %w", err)
	}
	if err := input.SetInputFiles(abs); err != nil {
		return fmt.Errorf("choosing file: %w", err)
	}
	s.page.WaitForTimeout(1000)
	if err := upload.Locator(uploadSubmitSelector).Click(); err != nil {
		return fmt.Errorf("submitting upload: %w", err)
	}
	s.page.WaitForTimeout(2500)
	return nil
}

func (s *Session) uploadFrame() playwright.Frame {
	if f := s.page.Frame(playwright.PageFrameOptions{Name: playwright.String(uploadFrameName)}); f != nil {
		return f
	}
	for _, f := range s.page.Frames() {
		if strings.Contains(f.URL(), uploadFrameURLPart) {
			return f
		}
	}
	return nil
}

// Save stores the claim as saved, not submitted
func (s *Session) Save(ctx context.Context, ref claim.ClaimRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := s.claimFrame()
	if err := frame.Locator(saveDropdownSelector).Click(); err != nil {
		return fmt.Errorf("opening save menu: %w", err)
	}
	s.page.WaitForTimeout(500)
	if err := frame.Locator(saveButtonSelector).Click(); err != nil {
		return fmt.Errorf("clicking save: %w", err)
	}
	s.page.WaitForTimeout(3000)
	return nil
}

// CaptureScreenshot returns a full page PNG of the claim
func (s *Session) CaptureScreenshot(ctx context.Context, ref claim.ClaimRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := s.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}
	return img, nil
}

// Close closes the browser and stops the driver
func (s *Session) Close() error {
	var errs []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}
