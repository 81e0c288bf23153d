package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/outbox"
	"github.com/nerrad567/dealerdesk-core/internal/vault"
)

const testJWTSecret = "test-secret-key-at-least-32-chars!"

// writeConfig writes an offline-only config rooted at a temp dir and returns
// the config path and data dir.
func writeConfig(t *testing.T, apiPort int) (string, string) {
	t.Helper()
	dataDir := t.TempDir()
	content := fmt.Sprintf(`
storage:
  data_dir: %q
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
  output: stdout
security:
  jwt:
    secret: %q
`, dataDir, apiPort, testJWTSecret)

	path := filepath.Join(dataDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path, dataDir
}

// execute runs the command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DEALERDESK_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("DEALERDESK_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "dealerdesk "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestCommands_InvalidConfig(t *testing.T) {
	for _, args := range [][]string{
		{"serve"},
		{"queue", "list"},
		{"credentials", "reset"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			full := append([]string{"--config", "/nonexistent/path/config.yaml"}, args...)
			if _, err := execute(t, full...); err == nil {
				t.Fatal("expected error for missing config file")
			}
		})
	}
}

func TestQueueList(t *testing.T) {
	configPath, dataDir := writeConfig(t, 8080)

	out, err := execute(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list error = %v", err)
	}
	if strings.TrimSpace(out) != "no queued events" {
		t.Errorf("empty queue output = %q", out)
	}

	store, err := outbox.Open(filepath.Join(dataDir, "message_queue"), nil)
	if err != nil {
		t.Fatalf("outbox.Open() error = %v", err)
	}
	for tenant, n := range map[string]int{"t-1": 2, "store_7": 1} {
		for i := 0; i < n; i++ {
			if err := store.Enqueue(tenant, outbox.Entry{
				TenantID:  tenant,
				Event:     "client-message",
				DataType:  "GameData",
				Message:   []byte(`{}`),
				Timestamp: time.Now(),
			}); err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
		}
	}

	out, err = execute(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list error = %v", err)
	}
	if want := "store_7\t1\nt-1\t2"; strings.TrimSpace(out) != want {
		t.Errorf("queue output = %q, want %q", out, want)
	}
}

func TestCredentialsReset(t *testing.T) {
	configPath, dataDir := writeConfig(t, 8080)
	t.Setenv("DEALERDESK_CONFIG", configPath)

	v, err := vault.Open(dataDir, nil)
	if err != nil {
		t.Fatalf("vault.Open() error = %v", err)
	}
	for _, pw := range []string{"old-pw", "new-pw"} {
		if err := v.Save("dealer", pw, nil); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	tokenPath := filepath.Join(dataDir, "token.json")
	if err := os.WriteFile(tokenPath, []byte(`{"user_id":"dealer","token":"tok"}`), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	out, err := execute(t, "credentials", "reset")
	if err != nil {
		t.Fatalf("credentials reset error = %v", err)
	}
	if !strings.Contains(out, "credentials cleared") {
		t.Errorf("output = %q", out)
	}
	if _, err := v.Load(); !errors.Is(err, vault.ErrNoCredentials) {
		t.Errorf("Load() after reset error = %v, want ErrNoCredentials", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "auth.dat.backup")); !os.IsNotExist(err) {
		t.Errorf("credential backup still present, stat error = %v", err)
	}
	if _, err := os.Stat(tokenPath); !os.IsNotExist(err) {
		t.Errorf("token file still present, stat error = %v", err)
	}

	// Resetting twice is not an error.
	if _, err := execute(t, "credentials", "reset"); err != nil {
		t.Errorf("second reset error = %v", err)
	}
}

func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	port := freePort(t)
	configPath, _ := writeConfig(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, configPath) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url) //nolint:gosec,noctx // test loopback
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("health status = %d, want 200", resp.StatusCode)
			}
			break
		}
		select {
		case err := <-done:
			cancel()
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}
