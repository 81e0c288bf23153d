package cardroom

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/infrastructure/database"
	"github.com/nerrad567/dealerdesk-core/migrations"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "ledger.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewRepository(db.DB)
}

func int64Ptr(v int64) *int64 { return &v }

func TestRepository_SavePurchase_Upsert(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	purchasedAt := NewTime(time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC))
	p := &Purchase{
		UUID:          "p-1",
		PurchaseType:  "GAME",
		GameID:        int64Ptr(7),
		CustomerID:    int64Ptr(42),
		PurchasedAt:   purchasedAt,
		Item:          "CHIP",
		PaymentStatus: "WAITING",
		Status:        "WAITING",
		Price:         50000,
	}
	if err := repo.SavePurchase(ctx, "tenant-a", p); err != nil {
		t.Fatalf("SavePurchase() error = %v", err)
	}

	p.PaymentStatus = "COMPLETED"
	if err := repo.SavePurchase(ctx, "tenant-a", p); err != nil {
		t.Fatalf("SavePurchase() second error = %v", err)
	}

	got, err := repo.GetPurchase(ctx, "tenant-a", "p-1")
	if err != nil {
		t.Fatalf("GetPurchase() error = %v", err)
	}
	if got.PaymentStatus != "COMPLETED" {
		t.Errorf("PaymentStatus = %q, want COMPLETED", got.PaymentStatus)
	}
	if got.GameID == nil || *got.GameID != 7 {
		t.Errorf("GameID = %v, want 7", got.GameID)
	}
	if !got.PurchasedAt.Equal(purchasedAt.Time) {
		t.Errorf("PurchasedAt = %v, want %v", got.PurchasedAt, purchasedAt)
	}

	if _, err := repo.GetPurchase(ctx, "tenant-b", "p-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPurchase() other tenant error = %v, want ErrNotFound", err)
	}
}

func TestRepository_RejectsMissingKeys(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"purchase without uuid", func() error { return repo.SavePurchase(ctx, "t", &Purchase{}) }, ErrMissingUUID},
		{"purchase without tenant", func() error { return repo.SavePurchase(ctx, "", &Purchase{UUID: "x"}) }, ErrMissingTenant},
		{"customer without uuid", func() error { return repo.SaveCustomer(ctx, "t", &Customer{}) }, ErrMissingUUID},
		{"point entry without uuid", func() error { return repo.SavePointEntry(ctx, "t", &PointEntry{}) }, ErrMissingUUID},
		{"exit without tenant", func() error { return repo.RecordPlayerExit(ctx, "", &PlayerExit{}) }, ErrMissingTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRepository_SaveCustomerWithPointHistory(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	c := &Customer{
		UUID:        "c-1",
		Name:        "Kim",
		PhoneNumber: "010-0000-0000",
		Point:       300,
		TotalPoint:  500,
		PointHistory: []PointEntry{
			{UUID: "ph-1", CustomerID: int64Ptr(42), Reason: "signup", Amount: 500, IsIncrease: true,
				CreatedAt: NewTime(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))},
			{UUID: "ph-2", CustomerID: int64Ptr(42), Reason: "buy-in", Amount: 200,
				CreatedAt: NewTime(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))},
		},
	}
	if err := repo.SaveCustomer(ctx, "tenant-a", c); err != nil {
		t.Fatalf("SaveCustomer() error = %v", err)
	}

	got, err := repo.GetCustomer(ctx, "tenant-a", "c-1")
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if got.Name != "Kim" || got.Point != 300 {
		t.Errorf("GetCustomer() = %+v", got)
	}

	entries, err := repo.ListPointEntries(ctx, "tenant-a", 42)
	if err != nil {
		t.Fatalf("ListPointEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListPointEntries() len = %d, want 2", len(entries))
	}
	if entries[0].UUID != "ph-1" || !entries[0].IsIncrease || entries[1].IsIncrease {
		t.Errorf("ListPointEntries() = %+v", entries)
	}
}

func TestRepository_SavePointEntry(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	e := &PointEntry{UUID: "ph-9", CustomerID: int64Ptr(5), Reason: "item", Amount: 100, AvailableAmount: 0}
	if err := repo.SavePointEntry(ctx, "tenant-a", e); err != nil {
		t.Fatalf("SavePointEntry() error = %v", err)
	}
	e.IsExpired = true
	if err := repo.SavePointEntry(ctx, "tenant-a", e); err != nil {
		t.Fatalf("SavePointEntry() second error = %v", err)
	}

	entries, err := repo.ListPointEntries(ctx, "tenant-a", 5)
	if err != nil {
		t.Fatalf("ListPointEntries() error = %v", err)
	}
	if len(entries) != 1 || !entries[0].IsExpired {
		t.Errorf("ListPointEntries() = %+v, want one expired entry", entries)
	}
}

func TestRepository_RecordPlayerExit_Idempotent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	seat := 3
	exit := &PlayerExit{
		GameID:     7,
		CustomerID: 42,
		Seat:       &seat,
		ExitedAt:   NewTime(time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)),
	}
	for i := 0; i < 2; i++ {
		if err := repo.RecordPlayerExit(ctx, "tenant-a", exit); err != nil {
			t.Fatalf("RecordPlayerExit() #%d error = %v", i, err)
		}
	}

	exits, err := repo.ListPlayerExits(ctx, "tenant-a", 7)
	if err != nil {
		t.Fatalf("ListPlayerExits() error = %v", err)
	}
	if len(exits) != 1 {
		t.Fatalf("ListPlayerExits() len = %d, want 1", len(exits))
	}
	if exits[0].Seat == nil || *exits[0].Seat != 3 {
		t.Errorf("Seat = %v, want 3", exits[0].Seat)
	}
}
