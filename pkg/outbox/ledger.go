package outbox

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const ledgerFileName = "outbox.json"

// Status is the delivery state of one file.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Entry records the last known outcome for a file version.
type Entry struct {
	Size          int64     `json:"size"`
	ModTime       time.Time `json:"mod_time"`
	Status        Status    `json:"status"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	Retryable     bool      `json:"retryable,omitempty"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	DeliveredAt   time.Time `json:"delivered_at,omitempty"`
	Response      string    `json:"response,omitempty"`
}

// Matches reports whether the entry describes the given file version.
func (e Entry) Matches(info os.FileInfo) bool {
	return e.Size == info.Size() && e.ModTime.Equal(info.ModTime())
}

// Ledger maps file base names to their entries.
type Ledger struct {
	Files map[string]Entry `json:"files"`
}

// LedgerRepository persists the ledger.
type LedgerRepository interface {
	// Load returns an empty ledger when nothing was saved yet.
	Load(ctx context.Context) (Ledger, error)
	Save(ctx context.Context, l Ledger) error
}

// FileLedgerRepository stores the ledger as JSON in a directory.
type FileLedgerRepository struct {
	dir string
}

func NewFileLedgerRepository(dir string) *FileLedgerRepository {
	return &FileLedgerRepository{dir: dir}
}

func (r *FileLedgerRepository) Load(ctx context.Context) (Ledger, error) {
	l := Ledger{Files: map[string]Entry{}}

	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return l, err
	}
	if err := json.Unmarshal(data, &l); err != nil {
		return Ledger{Files: map[string]Entry{}}, err
	}
	if l.Files == nil {
		l.Files = map[string]Entry{}
	}
	return l, nil
}

// Save writes to a temp file and renames it over the ledger.
func (r *FileLedgerRepository) Save(ctx context.Context, l Ledger) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the ledger file.
func (r *FileLedgerRepository) Path() string {
	return filepath.Join(r.dir, ledgerFileName)
}
