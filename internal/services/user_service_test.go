package services

import (
	"context"
	"testing"

	"github.com/mkraev/registrar-bot/internal/domain"
)

func TestUserService_RegisterGetDelete(t *testing.T) {
	db := newServiceDB(t)
	svc := &UserService{DB: db}
	ctx := context.Background()

	p := "+1"
	u, err := svc.Register(ctx, 10, "Alice", &p)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.DisplayName != "Alice" || u.Phone == nil || *u.Phone != "+1" {
		t.Fatalf("registered user: %+v", u)
	}

	got, err := svc.Get(ctx, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.DisplayName != "Alice" {
		t.Fatalf("lookup: %+v", got)
	}

	// Re-registration replaces in place: still exactly one row.
	if _, err := svc.Register(ctx, 10, "Alice2", nil); err != nil {
		t.Fatalf("Register again: %v", err)
	}
	var count int64
	if err := db.Model(&domain.User{}).Where("external_id = ?", int64(10)).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}

	removed, err := svc.Delete(ctx, 10)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	got, err = svc.Get(ctx, 10)
	if err != nil || got != nil {
		t.Fatalf("after delete: user=%+v err=%v", got, err)
	}
}

func TestUserService_BlankNameFallsBack(t *testing.T) {
	db := newServiceDB(t)
	svc := &UserService{DB: db}

	u, err := svc.Register(context.Background(), 11, "   ", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.DisplayName != "Unknown" {
		t.Fatalf("display name fallback: %q", u.DisplayName)
	}
}
