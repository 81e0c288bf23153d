package hubauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// storedToken is the on-disk form of the last bearer token.
type storedToken struct {
	UserID  string    `json:"user_id"`
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// tokenFile persists one bearer token. An empty path disables persistence.
type tokenFile struct {
	mu   sync.Mutex
	path string
}

func (f *tokenFile) save(userID, token string) error {
	if f.path == "" {
		return nil
	}
	data, err := json.Marshal(storedToken{UserID: userID, Token: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *tokenFile) load(userID string) (string, bool) {
	if f.path == "" {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", false
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil || st.Token == "" || st.UserID != userID {
		return "", false
	}
	return st.Token, true
}

func (f *tokenFile) remove() error {
	if f.path == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
