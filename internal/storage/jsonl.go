package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"propertyBank/internal/model"
)

var _ SettlementSink = (*JsonlStorage)(nil)

// JsonlStorage appends settlement records to a JSONL file. The file is
// opened on the first write and kept open until Close.
type JsonlStorage struct {
	path string

	mu   sync.Mutex
	file *os.File
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string {
	return s.path
}

// PutSettlements writes the batch and syncs it before returning, so a
// settlement is only reported as recorded once it is on disk.
func (s *JsonlStorage) PutSettlements(_ context.Context, records []model.SettlementRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}

	buf := bufio.NewWriter(s.file)
	enc := json.NewEncoder(buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode settlement %s: %w", records[i].ID, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("write settlements: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync settlements: %w", err)
	}
	return nil
}

func (s *JsonlStorage) open() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open settlements file: %w", err)
	}
	s.file = file
	return nil
}

func (s *JsonlStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ReadSettlements loads every record in a JSONL file.
func ReadSettlements(path string) ([]model.SettlementRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open settlements file: %w", err)
	}
	defer file.Close()

	var records []model.SettlementRecord
	dec := json.NewDecoder(bufio.NewReader(file))
	for {
		var record model.SettlementRecord
		err := dec.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode settlement record %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}
}
