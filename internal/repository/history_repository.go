package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopherai-insect/internal/model"
)

const (
	defaultHistoryMaxBytes = 16 << 20
	historyReadChunk       = 64 << 10
	historyMaxLine         = 4 << 20
)

// HistoryRepository appends classification records to a JSON-lines file. When
// the file would grow past maxBytes it is rotated to "<path>.1", replacing the
// previous rotation.
type HistoryRepository struct {
	mu        sync.Mutex
	path      string
	maxBytes  int64
	chunkSize int64
}

func NewHistoryRepository(path string) (*HistoryRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("history file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir failed: %w", err)
	}
	return &HistoryRepository{
		path:      path,
		maxBytes:  defaultHistoryMaxBytes,
		chunkSize: historyReadChunk,
	}, nil
}

func (r *HistoryRepository) Create(rec *model.ClassificationRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record failed: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotateIfFull(int64(len(line))); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history file failed: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append history record failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close history file failed: %w", err)
	}
	return nil
}

// rotateIfFull must be called with r.mu held.
func (r *HistoryRepository) rotateIfFull(incoming int64) error {
	info, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat history file failed: %w", err)
	}
	if info.Size() == 0 || info.Size()+incoming <= r.maxBytes {
		return nil
	}
	if err := os.Rename(r.path, r.path+".1"); err != nil {
		return fmt.Errorf("rotate history file failed: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first. The file is read
// backwards in chunks, so the cost depends on limit rather than file size.
// Lines that do not decode are skipped.
func (r *HistoryRepository) ListRecent(limit int) ([]model.ClassificationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := make([]model.ClassificationRecord, 0, limit)

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file failed: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat history file failed: %w", err)
	}

	var carry []byte
	pos := info.Size()
	for pos > 0 && len(out) < limit {
		n := r.chunkSize
		if pos < n {
			n = pos
		}
		pos -= n

		buf := make([]byte, n, n+int64(len(carry)))
		if _, err := f.ReadAt(buf, pos); err != nil {
			return nil, fmt.Errorf("read history file failed: %w", err)
		}
		buf = append(buf, carry...)

		lines := bytes.Split(buf, []byte{'\n'})
		first := 0
		carry = nil
		if pos > 0 {
			// The first piece may continue in the previous chunk.
			if len(lines[0]) <= historyMaxLine {
				carry = lines[0]
			}
			first = 1
		}
		for i := len(lines) - 1; i >= first && len(out) < limit; i-- {
			line := bytes.TrimSpace(lines[i])
			if len(line) == 0 {
				continue
			}
			var rec model.ClassificationRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
