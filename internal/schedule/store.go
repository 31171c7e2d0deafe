package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps last-run timestamps in a JSON file in the data
// directory, surviving both suspension and full power cycles.
type FileStore struct {
	path string
}

// NewFileStore returns a store rooted at the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) LoadLastRuns() (map[TaskID]time.Time, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[TaskID]time.Time{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	var last map[TaskID]time.Time
	if err := json.Unmarshal(data, &last); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return last, nil
}

func (f *FileStore) SaveLastRuns(last map[TaskID]time.Time) error {
	data, err := json.Marshal(last)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// MemStore is an in-memory Store for tests and -dry-run.
type MemStore struct {
	Last  map[TaskID]time.Time
	Saves int
	Err   error
}

func NewMemStore() *MemStore {
	return &MemStore{Last: map[TaskID]time.Time{}}
}

func (m *MemStore) LoadLastRuns() (map[TaskID]time.Time, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[TaskID]time.Time, len(m.Last))
	for k, v := range m.Last {
		out[k] = v
	}
	return out, nil
}

func (m *MemStore) SaveLastRuns(last map[TaskID]time.Time) error {
	if m.Err != nil {
		return m.Err
	}
	m.Saves++
	m.Last = make(map[TaskID]time.Time, len(last))
	for k, v := range last {
		m.Last[k] = v
	}
	return nil
}
