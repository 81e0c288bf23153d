package vault

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
)

const (
	credentialsFile = "auth.dat"
	keyFile         = "key.dat"
	backupSuffix    = ".backup"

	// keyPassphrase is stretched with a per-installation random salt.
	keyPassphrase = "dealer_desk_secret_key"

	// recordAD binds sealed records to their purpose and format version.
	recordAD = "dealerdesk/credentials/v1"

	dirPerm  = 0o700
	filePerm = 0o600
)

// Logger is the logging surface the vault needs; *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Credentials is the decrypted cache record.
type Credentials struct {
	UserID     string            `json:"user_id"`
	SecretHash string            `json:"secret_hash"`
	Tenants    []cardroom.Tenant `json:"tenants"`
	SavedAt    time.Time         `json:"saved_at"`
}

// Matches reports whether userID and secret are the cached pair.
func (c *Credentials) Matches(userID, secret string) bool {
	if c == nil || c.UserID != userID {
		return false
	}
	return verifySecret(secret, c.SecretHash)
}

// SameTenants reports whether tenants equals the cached list, in order.
func (c *Credentials) SameTenants(tenants []cardroom.Tenant) bool {
	if c == nil || len(c.Tenants) != len(tenants) {
		return false
	}
	for i := range tenants {
		if c.Tenants[i] != tenants[i] {
			return false
		}
	}
	return true
}

// Vault is the encrypted credential cache. It is safe for concurrent use.
type Vault struct {
	mu         sync.Mutex
	path       string
	backupPath string
	aead       cipher.AEAD
	params     argonParams
	logger     Logger
}

// Open prepares the vault in dir, creating the directory and key file on
// first use. A nil logger discards output.
func Open(dir string, logger Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}

	v := &Vault{
		path:       filepath.Join(dir, credentialsFile),
		backupPath: filepath.Join(dir, credentialsFile+backupSuffix),
		params:     defaultParams,
		logger:     logger,
	}

	key, err := v.loadOrCreateKey(filepath.Join(dir, keyFile))
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initialising cipher: %w", err)
	}
	v.aead = aead
	return v, nil
}

func (v *Vault) loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the data directory
	if err == nil {
		key, decErr := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(key) != chacha20poly1305.KeySize {
			return nil, ErrInvalidKey
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	salt, err := randomBytes(saltLen)
	if err != nil {
		return nil, err
	}
	key := v.params.derive([]byte(keyPassphrase), salt)
	if err := writeFileAtomic(path, []byte(base64.RawURLEncoding.EncodeToString(key))); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	v.logger.Info("created credential key", "path", path)
	return key, nil
}

// Save seals userID, a hash of secret and tenants into auth.dat, copying the
// previous file to auth.dat.backup first.
func (v *Vault) Save(userID, secret string, tenants []cardroom.Tenant) error {
	hash, err := hashSecret(secret, v.params)
	if err != nil {
		return err
	}
	record, err := json.Marshal(Credentials{
		UserID:     userID,
		SecretHash: hash,
		Tenants:    tenants,
		SavedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	nonce, err := randomBytes(v.aead.NonceSize())
	if err != nil {
		return err
	}
	sealed := v.aead.Seal(nonce, nonce, record, []byte(recordAD))

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := copyFile(v.path, v.backupPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// A missing backup only weakens recovery; the save still proceeds.
		v.logger.Warn("credential backup failed", "error", err)
	}
	if err := writeFileAtomic(v.path, []byte(base64.RawURLEncoding.EncodeToString(sealed))); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	v.logger.Info("cached credentials saved", "user_id", userID, "tenants", len(tenants))
	return nil
}

// Load returns the cached credentials. It restores from the backup at most
// once per call and deletes an unrecoverable primary file.
func (v *Vault) Load() (*Credentials, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	creds, err := v.read()
	if err == nil {
		return creds, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		if !v.restore() {
			return nil, ErrNoCredentials
		}
	} else {
		v.logger.Warn("cached credentials unreadable, trying backup", "error", err)
		if !v.restore() {
			v.discard()
			return nil, ErrNoCredentials
		}
	}

	creds, err = v.read()
	if err == nil {
		v.logger.Info("cached credentials restored from backup", "user_id", creds.UserID)
		return creds, nil
	}
	v.logger.Error("credential backup unreadable", "error", err)
	v.discard()
	return nil, ErrNoCredentials
}

// Clear deletes auth.dat. The backup and key file are kept.
func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	v.logger.Info("cached credentials cleared")
	return nil
}

// Reset deletes auth.dat and auth.dat.backup, so no later Load can bring
// back earlier credentials. The key file is kept.
func (v *Vault) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, path := range []string{v.path, v.backupPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing credentials: %w", err)
		}
	}
	v.logger.Info("cached credentials reset")
	return nil
}

func (v *Vault) read() (*Credentials, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return nil, err
	}
	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errSealed
	}
	ns := v.aead.NonceSize()
	if len(sealed) < ns+v.aead.Overhead() {
		return nil, errSealed
	}
	record, err := v.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(recordAD))
	if err != nil {
		return nil, errSealed
	}

	var creds Credentials
	if err := json.Unmarshal(record, &creds); err != nil || creds.UserID == "" {
		return nil, errSealed
	}
	return &creds, nil
}

func (v *Vault) restore() bool {
	if err := copyFile(v.backupPath, v.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			v.logger.Error("credential restore failed", "error", err)
		}
		return false
	}
	return true
}

func (v *Vault) discard() {
	if err := os.Remove(v.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		v.logger.Error("removing damaged credentials failed", "error", err)
		return
	}
	v.logger.Warn("damaged credentials removed", "path", v.path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // paths are inside the data directory
	if err != nil {
		return err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}

// writeFileAtomic replaces path with data via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, filePerm); err != nil {
		return err
	}
	return os.Rename(name, path)
}
