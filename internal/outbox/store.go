package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix    = "queue_"
	fileSuffix    = ".json"
	corruptSuffix = ".corrupt"

	dirPerm  = 0o700
	filePerm = 0o600
)

// Entry is one undelivered relay frame. Message is the complete frame as it
// will be written to the socket.
type Entry struct {
	TenantID  string          `json:"tenant_id"`
	Event     string          `json:"event"`
	DataType  string          `json:"data_type"`
	Message   json.RawMessage `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// Logger is the logging surface the store needs; *logging.Logger satisfies it.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store manages queue files in one directory. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger Logger
}

// Open prepares a store rooted at dir, creating it if needed.
func Open(dir string, logger Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Path returns the queue file for tenantID.
func (s *Store) Path(tenantID string) string {
	return filepath.Join(s.dir, filePrefix+fileName(tenantID)+fileSuffix)
}

// Enqueue appends e to the tenant's queue.
func (s *Store) Enqueue(tenantID string, e Entry) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if len(e.Message) == 0 {
		return ErrEmptyMessage
	}
	if e.TenantID == "" {
		e.TenantID = tenantID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(tenantID)
	if err != nil {
		return err
	}
	entries = append(entries, e)
	return s.write(tenantID, entries)
}

// Drain returns the tenant's queued entries in order without removing them.
func (s *Store) Drain(tenantID string) ([]Entry, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(tenantID)
}

// Len returns the number of queued entries for tenantID.
func (s *Store) Len(tenantID string) (int, error) {
	entries, err := s.Drain(tenantID)
	return len(entries), err
}

// Clear deletes the tenant's queue file.
func (s *Store) Clear(tenantID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(tenantID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing queue file: %w", err)
	}
	return nil
}

// Tenants lists tenants that have a queue file, sorted by tenant id.
func (s *Store) Tenants() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing queue directory: %w", err)
	}
	var tenants []string
	for _, d := range dirEntries {
		name := d.Name()
		if d.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		tenantID, err := url.QueryUnescape(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			s.logger.Warn("skipping unrecognised queue file", "file", name, "error", err)
			continue
		}
		tenants = append(tenants, tenantID)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// read loads the queue. A file that does not parse is moved aside and an
// empty queue is returned so new messages can still be accepted.
func (s *Store) read(tenantID string) ([]Entry, error) {
	path := s.Path(tenantID)
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the queue directory
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading queue file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		aside := path + corruptSuffix
		if renameErr := os.Rename(path, aside); renameErr != nil {
			return nil, fmt.Errorf("queue file unreadable (%v) and could not be moved aside: %w", err, renameErr)
		}
		s.logger.Error("queue file unreadable, moved aside",
			"tenant_id", tenantID, "path", aside, "error", err, "risk", "message_loss")
		return nil, nil
	}
	return entries, nil
}

func (s *Store) write(tenantID string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}

	path := s.Path(tenantID)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating queue temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing queue file: %w", err)
	}
	if err := os.Chmod(name, filePerm); err != nil {
		return fmt.Errorf("writing queue file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replacing queue file: %w", err)
	}
	return nil
}

// fileName maps a tenant id to a safe file name component. Ids made of
// [A-Za-z0-9_.~-] are kept as-is; anything else, path separators included,
// is percent-encoded so the mapping can be reversed.
func fileName(tenantID string) string {
	return url.QueryEscape(tenantID)
}
