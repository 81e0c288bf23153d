package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "message_queue"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func entry(n int) Entry {
	return Entry{
		Event:    `App\Events\WebSocketMessageListener`,
		DataType: "GameData",
		Message:  json.RawMessage(fmt.Sprintf(`{"seq":%d}`, n)),
	}
}

func TestStore_EnqueuePreservesOrder(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 5; i++ {
		if err := s.Enqueue("tenant-a", entry(i)); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}

	entries, err := s.Drain("tenant-a")
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Drain() len = %d, want 5", len(entries))
	}
	for i, e := range entries {
		if want := fmt.Sprintf(`{"seq":%d}`, i+1); string(e.Message) != want {
			t.Errorf("entry %d message = %s, want %s", i, e.Message, want)
		}
		if e.TenantID != "tenant-a" || e.Timestamp.IsZero() {
			t.Errorf("entry %d = %+v, want tenant and timestamp filled", i, e)
		}
	}

	again, err := s.Drain("tenant-a")
	if err != nil || len(again) != 5 {
		t.Errorf("second Drain() = %d entries, %v; drain must not delete", len(again), err)
	}
}

func TestStore_FileFormat(t *testing.T) {
	s := openTestStore(t)

	if err := s.Enqueue("tenant-a", entry(1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	data, err := os.ReadFile(s.Path("tenant-a"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("queue file is not a JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("queue file has %d entries, want 1", len(raw))
	}
	for _, key := range []string{"message", "timestamp"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("queue entry missing %q", key)
		}
	}
	if filepath.Base(s.Path("tenant-a")) != "queue_tenant-a.json" {
		t.Errorf("Path() = %s", s.Path("tenant-a"))
	}
}

func TestStore_TenantsAreIsolated(t *testing.T) {
	s := openTestStore(t)

	if err := s.Enqueue("tenant-a", entry(1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := s.Enqueue("tenant-b", entry(2)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := s.Clear("tenant-a"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if n, _ := s.Len("tenant-a"); n != 0 {
		t.Errorf("Len(tenant-a) = %d, want 0", n)
	}
	if n, _ := s.Len("tenant-b"); n != 1 {
		t.Errorf("Len(tenant-b) = %d, want 1", n)
	}

	tenants, err := s.Tenants()
	if err != nil {
		t.Fatalf("Tenants() error = %v", err)
	}
	if len(tenants) != 1 || tenants[0] != "tenant-b" {
		t.Errorf("Tenants() = %v, want [tenant-b]", tenants)
	}
}

func TestStore_ClearMissingIsNoop(t *testing.T) {
	s := openTestStore(t)

	if err := s.Clear("nobody"); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
}

func TestStore_Validation(t *testing.T) {
	s := openTestStore(t)

	if err := s.Enqueue("", entry(1)); !errors.Is(err, ErrTenantRequired) {
		t.Errorf("Enqueue(\"\") error = %v, want ErrTenantRequired", err)
	}
	if err := s.Enqueue("tenant-a", Entry{}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Enqueue(empty) error = %v, want ErrEmptyMessage", err)
	}
	if _, err := s.Drain(""); !errors.Is(err, ErrTenantRequired) {
		t.Errorf("Drain(\"\") error = %v, want ErrTenantRequired", err)
	}
}

func TestStore_CorruptFileMovedAside(t *testing.T) {
	s := openTestStore(t)

	path := s.Path("tenant-a")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := s.Enqueue("tenant-a", entry(1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if n, _ := s.Len("tenant-a"); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
	if _, err := os.Stat(path + corruptSuffix); err != nil {
		t.Errorf("corrupt file not preserved: %v", err)
	}
}

func TestStore_ConcurrentEnqueue(t *testing.T) {
	s := openTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.Enqueue("tenant-a", entry(n)); err != nil {
				t.Errorf("Enqueue(%d) error = %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := s.Len("tenant-a"); n != 20 {
		t.Errorf("Len() = %d, want 20", n)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tenant-a", "tenant-a"},
		{"ABC123", "ABC123"},
		{"store_7", "store_7"},
		{"a/b", "a%2Fb"},
		{"../x", "..%2Fx"},
		{`a\b`, "a%5Cb"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := fileName(tt.in); got != tt.want {
				t.Errorf("fileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStore_TenantsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	ids := []string{"store_7", "a/b", "tenant 9", "tenant-a"}
	for i, id := range ids {
		for n := 0; n <= i; n++ {
			if err := s.Enqueue(id, entry(n)); err != nil {
				t.Fatalf("Enqueue(%q) error = %v", id, err)
			}
		}
	}
	if _, err := os.Stat(filepath.Join(s.dir, "queue_store_7.json")); err != nil {
		t.Errorf("queue_store_7.json not written: %v", err)
	}

	tenants, err := s.Tenants()
	if err != nil {
		t.Fatalf("Tenants() error = %v", err)
	}
	want := []string{"a/b", "store_7", "tenant 9", "tenant-a"}
	if len(tenants) != len(want) {
		t.Fatalf("Tenants() = %q, want %q", tenants, want)
	}
	for i := range want {
		if tenants[i] != want[i] {
			t.Errorf("Tenants()[%d] = %q, want %q", i, tenants[i], want[i])
		}
	}

	for i, id := range ids {
		n, err := s.Len(id)
		if err != nil {
			t.Fatalf("Len(%q) error = %v", id, err)
		}
		if n != i+1 {
			t.Errorf("Len(%q) = %d, want %d", id, n, i+1)
		}
	}
}
