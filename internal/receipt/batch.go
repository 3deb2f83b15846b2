package receipt

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxBatchSize is the remote system's limit of line items per claim
const DefaultMaxBatchSize = 15

// Batch is an ordered group of receipts that becomes one claim
type Batch struct {
	Number int // 1-based
	Total  int
	Files  []File
}

// SortFiles orders files by case-insensitive name with the exact name as tie-break
func SortFiles(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := strings.ToLower(files[i].Name), strings.ToLower(files[j].Name)
		if a != b {
			return a < b
		}
		return files[i].Name < files[j].Name
	})
}

// MakeBatches partitions pending into consecutive batches of at most maxBatchSize
func MakeBatches(pending []File, maxBatchSize int) ([]Batch, error) {
	if maxBatchSize <= 0 {
		return nil, fmt.Errorf("max batch size must be positive, got %d", maxBatchSize)
	}

	files := make([]File, len(pending))
	copy(files, pending)
	SortFiles(files)

	total := (len(files) + maxBatchSize - 1) / maxBatchSize
	batches := make([]Batch, 0, total)
	for start := 0; start < len(files); start += maxBatchSize {
		end := min(start+maxBatchSize, len(files))
		batches = append(batches, Batch{
			Number: len(batches) + 1,
			Total:  total,
			Files:  files[start:end:end],
		})
	}
	return batches, nil
}
