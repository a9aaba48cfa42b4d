package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

// Status is the persisted outcome of a work item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the durable completion state for one work item.
type Record struct {
	Status      Status
	Reason      string
	ProviderRef string
	UpdatedAt   time.Time
}

// Store owns the checkpoint sidecar for one batch. A run holds an exclusive
// file lock for its duration so two processes cannot work the same batch.
type Store struct {
	path    string
	lock    *flock.Flock
	records map[string]Record
	now     func() time.Time
}

type fileFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// fileFormat mirrors the progress sidecar on disk. Missing keys read as
// empty so older sidecars (completed list only) remain loadable.
type fileFormat struct {
	Completed []string          `json:"completed"`
	Failed    []fileFailure     `json:"failed,omitempty"`
	Refs      map[string]string `json:"refs,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Open loads the checkpoint at path, creating its directory when needed, and
// acquires the run lock. A missing sidecar is a first run and yields an empty
// store; an unreadable or malformed sidecar is an error, because discarding
// prior progress silently is worse than stopping.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure checkpoint directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire checkpoint lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("checkpoint %s is locked by another run", path)
	}

	records, err := readRecords(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &Store{path: path, lock: lock, records: records, now: time.Now}, nil
}

// Load reads the checkpoint at path without taking the run lock. Use it for
// read-only inspection alongside a live run.
func Load(path string) (map[string]Record, error) {
	return readRecords(path)
}

// Close releases the run lock. The sidecar itself is already durable; every
// Record call flushed it.
func (s *Store) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

// Path returns the sidecar location.
func (s *Store) Path() string {
	return s.path
}

// IsDone reports whether the item completed in this or a prior run.
func (s *Store) IsDone(id string) bool {
	return s.records[id].Status == StatusCompleted
}

// Get returns the record for id if one exists.
func (s *Store) Get(id string) (Record, bool) {
	record, ok := s.records[id]
	return record, ok
}

// Record upserts one outcome and immediately rewrites the sidecar. The
// write-through is the point of checkpointing: a crash between items must not
// lose the outcome of the item that just finished.
func (s *Store) Record(id string, status Status, providerRef, reason string) error {
	if s.records == nil {
		s.records = make(map[string]Record)
	}
	s.records[id] = Record{
		Status:      status,
		Reason:      reason,
		ProviderRef: providerRef,
		UpdatedAt:   s.now().UTC(),
	}
	return s.flush()
}

// Counts tallies records by status.
func (s *Store) Counts() (completed, failed int) {
	for _, record := range s.records {
		switch record.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return completed, failed
}

func (s *Store) flush() error {
	out := fileFormat{
		Completed: make([]string, 0),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	for id, record := range s.records {
		switch record.Status {
		case StatusCompleted:
			out.Completed = append(out.Completed, id)
		case StatusFailed:
			out.Failed = append(out.Failed, fileFailure{ID: id, Reason: record.Reason})
		}
		if record.ProviderRef != "" {
			if out.Refs == nil {
				out.Refs = make(map[string]string)
			}
			out.Refs[id] = record.ProviderRef
		}
	}
	sort.Strings(out.Completed)
	sort.Slice(out.Failed, func(i, j int) bool { return out.Failed[i].ID < out.Failed[j].ID })

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return writeAtomic(s.path, data)
}

func readRecords(path string) (map[string]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]Record), nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("checkpoint %s is malformed: %w", path, err)
	}

	records := make(map[string]Record, len(parsed.Completed)+len(parsed.Failed))
	loadedAt, _ := time.Parse(time.RFC3339, parsed.Timestamp)
	for _, id := range parsed.Completed {
		records[id] = Record{Status: StatusCompleted, ProviderRef: parsed.Refs[id], UpdatedAt: loadedAt}
	}
	for _, failure := range parsed.Failed {
		records[failure.ID] = Record{
			Status:      StatusFailed,
			Reason:      failure.Reason,
			ProviderRef: parsed.Refs[failure.ID],
			UpdatedAt:   loadedAt,
		}
	}
	return records, nil
}

// writeAtomic rewrites path through a temp file and rename so readers never
// observe a partially written sidecar.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
