// Package journal keeps a local history of submitted transactions.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vault-solver/config"
	"vault-solver/pkg/solver"
)

// Status is the outcome of one submission
type Status string

const (
	StatusConfirmed Status = "confirmed" // Receipt reported success
	StatusReverted  Status = "reverted"  // Mined but reverted
	StatusFailed    Status = "failed"    // Rejected or never mined
)

// Entry is one submitted transaction
type Entry struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Strategy  string    `json:"strategy"`
	Operation string    `json:"operation"`
	ChainID   uint64    `json:"chain_id"`
	Owner     string    `json:"owner"`
	Contract  string    `json:"contract"`
	Amount    string    `json:"amount,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

type fileFormat struct {
	Entries []*Entry `json:"entries"`
}

// Journal is a JSON file of entries
type Journal struct {
	filePath string
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries []*Entry
}

// Option configures a Journal
type Option func(*Journal)

// WithLogger sets the logger used when recording from an observer callback
func WithLogger(logger *zap.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// Open loads the journal at filePath, or the default location when empty.
// A missing file is an empty journal.
func Open(filePath string, opts ...Option) (*Journal, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, config.DefaultJournalName)
	}

	j := &Journal{
		filePath: filePath,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	if err := j.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	return j, nil
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.filePath)
	if err != nil {
		return err
	}

	var stored fileFormat
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	j.entries = stored.Entries
	return nil
}

// saveLocked writes the journal through a temp file and a rename. The caller
// holds the write lock.
func (j *Journal) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Entries: j.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := j.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tempFile, j.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Append stores a new entry, assigning its ID and time when unset
func (j *Journal) Append(e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = j.now().UTC()
	}
	j.entries = append(j.entries, e)
	return j.saveLocked()
}

// Get retrieves an entry by ID
func (j *Journal) Get(id string) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, e := range j.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("entry '%s' not found", id)
}

// List returns entries newest first
func (j *Journal) List() []*Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := make([]*Entry, len(j.entries))
	copy(entries, j.entries)
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Time.After(entries[b].Time)
	})
	return entries
}

// Count returns the number of entries
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// FilePath returns the journal location
func (j *Journal) FilePath() string {
	return j.filePath
}

// Submitted records a submission. It implements solver.Observer.
func (j *Journal) Submitted(_ context.Context, s solver.Submission) {
	entry := &Entry{
		Strategy:  s.Strategy.String(),
		Operation: s.Operation,
		ChainID:   s.Call.ChainID,
		Owner:     s.Request.Owner.Hex(),
		Contract:  s.Call.To.Hex(),
		Status:    StatusFailed,
	}
	if s.Request.Amount != nil {
		entry.Amount = s.Request.Amount.String()
	}

	switch {
	case s.Err != nil:
		entry.Error = s.Err.Error()
	case s.Receipt.Succeeded():
		entry.Status = StatusConfirmed
	default:
		entry.Status = StatusReverted
	}
	if s.Receipt != nil {
		entry.TxHash = s.Receipt.Hash.Hex()
	}

	if err := j.Append(entry); err != nil {
		j.logger.Warn("failed to record submission",
			zap.String("strategy", entry.Strategy),
			zap.String("tx_hash", entry.TxHash),
			zap.Error(err))
	}
}

var _ solver.Observer = (*Journal)(nil)
