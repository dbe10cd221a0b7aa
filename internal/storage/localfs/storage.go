package localfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const timestampLayout = "20060102_150405"

var ErrInvalidName = errors.New("invalid file name")

// SavedFile describes a file written to the store.
type SavedFile struct {
	Name string
	Path string
	Size int64
	At   time.Time
}

// Storage keeps write-once files under a single directory.
type Storage struct {
	basePath string
	now      func() time.Time
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage dir is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath, now: time.Now}, nil
}

func (s *Storage) Dir() string {
	return s.basePath
}

// Save writes data as <prefix><YYYYMMDD_HHMMSS>_<base filename>.
func (s *Storage) Save(prefix, filename string, data []byte) (*SavedFile, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
	if base == "/" || base == "." || base == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	at := s.now()
	name := fmt.Sprintf("%s%s_%s", prefix, at.Format(timestampLayout), base)
	return s.write(name, data, at)
}

// SaveGenerated writes service-produced bytes as <prefix><YYYYMMDD_HHMMSS>_<id8><ext>.
func (s *Storage) SaveGenerated(prefix, ext string, data []byte) (*SavedFile, error) {
	at := s.now()
	name := fmt.Sprintf("%s%s_%s%s", prefix, at.Format(timestampLayout), ShortID(), ext)
	return s.write(name, data, at)
}

// SaveAs writes data under an exact name chosen by the caller.
func (s *Storage) SaveAs(name string, data []byte) (*SavedFile, error) {
	if _, err := s.Path(name); err != nil {
		return nil, err
	}
	return s.write(name, data, s.now())
}

func (s *Storage) write(name string, data []byte, at time.Time) (*SavedFile, error) {
	path := filepath.Join(s.basePath, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return &SavedFile{Name: name, Path: path, Size: int64(len(data)), At: at}, nil
}

// Path resolves a stored file name, rejecting anything that is not a plain
// name inside the store.
func (s *Storage) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.basePath, name), nil
}

// Exists reports whether name is a regular file in the store.
func (s *Storage) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CleanupOlderThan removes regular files ending in suffix whose modification
// time is older than maxAge. Newer files are left alone.
func (s *Storage) CleanupOlderThan(suffix string, maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	var removed []string
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(strings.ToLower(entry.Name()), strings.ToLower(suffix)) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, entry.Name())
	}
	return removed, errors.Join(errs...)
}

// ShortID returns the first eight hex characters of a random UUID.
func ShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
