package receipt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FailedDir is the quarantine folder inside the receipts directory
const FailedDir = "failed"

// maxNameAttempts bounds the disambiguation suffixes tried before a move fails
const maxNameAttempts = 100

// ErrDestinationTaken is returned when no free destination name could be found
var ErrDestinationTaken = errors.New("destination name already taken")

// Repository defines the filesystem operations on receipts
type Repository interface {
	// ListPending returns the receipts waiting to be processed
	ListPending() ([]File, error)

	// Quarantine moves a receipt that failed extraction to the failed folder
	Quarantine(file File) (string, error)

	// Archive moves a processed receipt into the named dated folder
	Archive(file File, folder string) (string, error)
}

// LocalRepository implements Repository on the local filesystem
type LocalRepository struct {
	basePath   string
	timeSource TimeSource
}

// NewLocalRepository creates a LocalRepository rooted at basePath
func NewLocalRepository(basePath string) (*LocalRepository, error) {
	return NewLocalRepositoryWithTime(basePath, SystemTime{})
}

// NewLocalRepositoryWithTime creates a LocalRepository with a custom time source for testing
func NewLocalRepositoryWithTime(basePath string, timeSource TimeSource) (*LocalRepository, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating receipts directory: %w", err)
	}
	return &LocalRepository{basePath: basePath, timeSource: timeSource}, nil
}

// BasePath returns the receipts directory
func (l *LocalRepository) BasePath() string {
	return l.basePath
}

// ListPending lists receipt files directly inside the receipts directory.
// Subfolders (failed and archive folders) are never descended into.
func (l *LocalRepository) ListPending() ([]File, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading receipts directory: %w", err)
	}

	now := l.timeSource.Now()
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !Supported(name) {
			continue
		}
		files = append(files, NewFile(filepath.Join(l.basePath, name), now))
	}
	SortFiles(files)
	return files, nil
}

// Quarantine moves file into the failed folder
func (l *LocalRepository) Quarantine(file File) (string, error) {
	dest, err := l.move(file, FailedDir)
	if err != nil {
		return "", fmt.Errorf("quarantining %s: %w", file.Name, err)
	}
	return dest, nil
}

// Archive moves file into folder, the terminal success marker for that receipt
func (l *LocalRepository) Archive(file File, folder string) (string, error) {
	folder = ArchiveFolderName(folder)
	if folder == "" || folder == FailedDir {
		return "", fmt.Errorf("archiving %s: invalid folder %q", file.Name, folder)
	}
	dest, err := l.move(file, folder)
	if err != nil {
		return "", fmt.Errorf("archiving %s: %w", file.Name, err)
	}
	return dest, nil
}

func (l *LocalRepository) move(file File, folder string) (string, error) {
	dir := filepath.Join(l.basePath, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating folder: %w", err)
	}

	ext := filepath.Ext(file.Name)
	base := strings.TrimSuffix(file.Name, ext)
	for i := 0; i < maxNameAttempts; i++ {
		name := file.Name
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		dest := filepath.Join(dir, name)
		err := moveNoClobber(file.Path, dest)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrDestinationTaken, file.Name, folder)
}

// moveNoClobber moves src to dest, failing with os.ErrExist if dest exists.
// A hard link gives an atomic no-overwrite; filesystems without links fall back to rename.
func moveNoClobber(src, dest string) error {
	if err := os.Link(src, dest); err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		if _, statErr := os.Lstat(dest); statErr == nil {
			return os.ErrExist
		}
		if err := os.Rename(src, dest); err != nil {
			return fmt.Errorf("moving file: %w", err)
		}
		return nil
	}
	if err := os.Remove(src); err != nil {
		// leave exactly one copy behind
		os.Remove(dest)
		return fmt.Errorf("removing source: %w", err)
	}
	return nil
}

// ArchiveFolderName makes a claim name safe for use as a folder name
func ArchiveFolderName(name string) string {
	name = strings.ReplaceAll(name, ":", "-")
	name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	return strings.TrimSpace(name)
}
