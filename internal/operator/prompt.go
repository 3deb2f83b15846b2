package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/zombor/expensomatic/internal/claim"
)

// Prompt asks the operator on the terminal to confirm each saved claim.
// It waits without a timeout.
type Prompt struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

var _ claim.Confirmer = (*Prompt)(nil)

// NewPrompt creates a Prompt on stdin/stdout. A non-terminal stdin falls
// back to huh's line-based accessible mode.
func NewPrompt() *Prompt {
	return NewPromptWithIO(os.Stdin, os.Stdout, !isTerminal(os.Stdin))
}

// NewPromptWithIO creates a Prompt on custom streams
func NewPromptWithIO(in io.Reader, out io.Writer, accessible bool) *Prompt {
	return &Prompt{in: in, out: out, accessible: accessible}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Confirm shows the claim summary and returns the operator's answer.
// Aborting the prompt (ctrl+c) cancels the run.
func (p *Prompt) Confirm(ctx context.Context, c claim.Confirmation) (bool, error) {
	ok := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirmed").
				Title(Title(c)).
				Description(Description(c)).
				Affirmative("Archive receipts").
				Negative("Leave them").
				Value(&ok),
		),
	).
		WithShowHelp(false).
		WithAccessible(p.accessible).
		WithInput(p.in).
		WithOutput(p.out)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, fmt.Errorf("confirmation aborted: %w", context.Canceled)
		}
		return false, fmt.Errorf("running confirmation prompt: %w", err)
	}
	return ok, nil
}

// Title is the prompt headline
func Title(c claim.Confirmation) string {
	return fmt.Sprintf("Batch %d/%d saved as %q", c.Batch, c.TotalBatches, c.ClaimName)
}

// Description tells the operator what to check before answering
func Description(c claim.Confirmation) string {
	desc := fmt.Sprintf("%d expense(s) added with receipts.", c.Items)
	if c.ItemFailures > 0 {
		desc += fmt.Sprintf(" %d could not be completed and will stay in the receipts folder.", c.ItemFailures)
	}
	return desc + "\nVerify the claim in the browser, then confirm to archive its receipts."
}
