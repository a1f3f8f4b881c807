package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkraev/registrar-bot/internal/domain"
)

// test DB helper
func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func strptr(s string) *string { return &s }

func TestUpsertUser_InsertThenReplace(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()

	u, err := UpsertUser(ctx, db, 100, "Alice", strptr("+1"))
	if err != nil {
		t.Fatalf("UpsertUser insert: %v", err)
	}
	if u.DisplayName != "Alice" || u.Phone == nil || *u.Phone != "+1" {
		t.Fatalf("unexpected user: %+v", u)
	}

	got, err := GetUser(ctx, db, 100)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got == nil || got.DisplayName != "Alice" {
		t.Fatalf("roundtrip: %+v", got)
	}

	// Second upsert replaces the whole record, including clearing the phone.
	u2, err := UpsertUser(ctx, db, 100, "Alice2", nil)
	if err != nil {
		t.Fatalf("UpsertUser replace: %v", err)
	}
	if u2.DisplayName != "Alice2" || u2.Phone != nil {
		t.Fatalf("replace result: %+v", u2)
	}

	var count int64
	if err := db.Model(&domain.User{}).Where("external_id = ?", int64(100)).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows for external_id 100 = %d, want exactly 1", count)
	}
}

func TestGetUser_AbsenceIsNotAnError(t *testing.T) {
	db := newRepoDB(t, &domain.User{})

	got, err := GetUser(context.Background(), db, 404)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil user, got %+v", got)
	}
}

func TestDeleteUser_Idempotent(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 1, "Bob", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	removed, err := DeleteUser(ctx, db, 1)
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	// Absence is not an error.
	removed, err = DeleteUser(ctx, db, 1)
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
	got, err := GetUser(ctx, db, 1)
	if err != nil || got != nil {
		t.Fatalf("after delete: user=%+v err=%v", got, err)
	}
}

func TestDeleteUser_CascadesNotes(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Note{})
	// Production opens the DB with foreign_keys=ON (OpenSQLite); mirror it so
	// the cascade actually fires. The pragma is per-connection, so pin the
	// pool to one.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 1, "Bob", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := CreateNote(ctx, db, 1, "keepsake", time.Time{}); err != nil {
		t.Fatalf("seed note: %v", err)
	}

	removed, err := DeleteUser(ctx, db, 1)
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}

	// Account deletion takes the user's notes with it; none are orphaned.
	var count int64
	if err := db.Model(&domain.Note{}).Count(&count).Error; err != nil {
		t.Fatalf("count notes: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cascade to remove notes, %d left", count)
	}
}

func TestUpsertUser_ConcurrentSameID(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("Writer%d", i)
			if _, err := UpsertUser(ctx, db, 55, name, strptr("+7")); err != nil {
				t.Errorf("concurrent upsert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// Last writer wins, and there is exactly one row.
	var count int64
	if err := db.Model(&domain.User{}).Where("external_id = ?", int64(55)).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}

func TestListUsers_Order(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if _, err := UpsertUser(ctx, db, i, fmt.Sprintf("U%d", i), nil); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	users, err := ListUsers(ctx, db)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 || users[0].ExternalID != 1 || users[2].ExternalID != 3 {
		t.Fatalf("listing: %+v", users)
	}
}

func TestCountUsers_MissingTableSurfaces(t *testing.T) {
	db := newRepoDB(t) // no migration on purpose
	if _, err := CountUsers(context.Background(), db); err == nil {
		t.Fatal("expected error for missing table")
	}
}
