package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps rows in memory and mirrors them to a JSON file.
// An empty path keeps the rows in memory only.
type FileStore struct {
	mu   sync.RWMutex
	rows [][]string
	file string
}

// NewFileStore creates a new file-backed store, loading existing rows if the file exists
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		rows: make([][]string, 0),
		file: filePath,
	}

	if filePath == "" {
		return s, nil
	}
	if _, err := os.Stat(filePath); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load storage: %w", err)
		}
	}

	return s, nil
}

// ListAll returns a copy of every row
func (s *FileStore) ListAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([][]string, len(s.rows))
	for i, r := range s.rows {
		rows[i] = append([]string(nil), r...)
	}
	return rows, nil
}

// AppendRow adds a row at the end
func (s *FileStore) AppendRow(ctx context.Context, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([][]string, 0, len(s.rows)+1)
	next = append(next, s.rows...)
	next = append(next, append([]string(nil), row...))
	return s.commit(next)
}

// ReplaceRow overwrites the row at position
func (s *FileStore) ReplaceRow(ctx context.Context, position int, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < 0 || position >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, position)
	}
	next := append([][]string(nil), s.rows...)
	next[position] = append([]string(nil), row...)
	return s.commit(next)
}

// DeleteRow removes the row at position, shifting later rows up
func (s *FileStore) DeleteRow(ctx context.Context, position int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < 0 || position >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, position)
	}
	next := make([][]string, 0, len(s.rows)-1)
	next = append(next, s.rows[:position]...)
	next = append(next, s.rows[position+1:]...)
	return s.commit(next)
}

// commit persists rows and only then makes them current, so a failed write
// leaves the store as it was.
func (s *FileStore) commit(rows [][]string) error {
	if err := s.save(rows); err != nil {
		return err
	}
	s.rows = rows
	return nil
}

func (s *FileStore) save(rows [][]string) error {
	if s.file == "" {
		return nil
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %w", ErrUnavailable, err)
	}

	if err := os.WriteFile(s.file, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		s.rows = make([][]string, 0)
		return nil
	}

	if err := json.Unmarshal(data, &s.rows); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return nil
}
