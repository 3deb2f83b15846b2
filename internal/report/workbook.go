package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	receiptsSheet = "Receipts"
	claimsSheet   = "Claims"
	fileLayout    = "20060102_150405"
)

type columnWidth struct {
	sheet    string
	from, to string
	width    float64
}

var columnWidths = []columnWidth{
	{receiptsSheet, "A", "A", 32}, // receipt
	{receiptsSheet, "D", "E", 48}, // reason, destination
	{claimsSheet, "A", "A", 18},   // claim
	{claimsSheet, "D", "D", 32},   // receipt
	{claimsSheet, "M", "N", 48},   // error, screenshot
}

// Workbook renders the run as an XLSX workbook with one sheet of receipt
// outcomes and one sheet of claim line items
func Workbook(run *Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1; rename it rather than leave it empty
	if err := f.SetSheetName(f.GetSheetName(0), receiptsSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(claimsSheet); err != nil {
		return nil, fmt.Errorf("adding sheet: %w", err)
	}

	if err := writeRows(f, receiptsSheet, []any{"Receipt", "Status", "Batch", "Reason", "Destination", "Draft ID", "Recorded At"}, receiptRows(run)); err != nil {
		return nil, err
	}
	if err := writeRows(f, claimsSheet, []any{"Claim", "Batch", "State", "Receipt", "Category", "Amount", "Currency", "Receipt Date", "Submitted Date", "Date Adjusted", "Added", "Uploaded", "Error", "Screenshot"}, claimRows(run)); err != nil {
		return nil, err
	}

	for _, w := range columnWidths {
		if err := f.SetColWidth(w.sheet, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("sizing %s columns %s:%s: %w", w.sheet, w.from, w.to, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func receiptRows(run *Run) [][]any {
	var rows [][]any
	for _, o := range run.Outcomes() {
		rows = append(rows, []any{
			o.Receipt,
			string(o.Status),
			o.Batch,
			o.Reason,
			o.Destination,
			o.DraftID,
			o.RecordedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

func claimRows(run *Run) [][]any {
	var rows [][]any
	for _, b := range run.Batches {
		d := b.Draft
		if d == nil {
			continue
		}
		for _, item := range d.Items {
			rows = append(rows, []any{
				d.Name,
				d.Batch,
				string(d.State),
				item.Receipt,
				string(item.Category),
				item.Amount,
				string(item.Currency),
				item.Date,
				item.EffectiveDate,
				item.DateAdjusted,
				item.Added,
				item.Uploaded,
				item.Error,
				d.Screenshot,
			})
		}
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// WriteWorkbook saves the workbook as <dir>/<start>_expense_run.xlsx and
// returns its path
func WriteWorkbook(dir string, run *Run) (string, error) {
	data, err := Workbook(run)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_expense_run.xlsx", run.StartedAt.Format(fileLayout)))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
