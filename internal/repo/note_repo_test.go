package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mkraev/registrar-bot/internal/domain"
)

func TestCreateNote_AssignsIDAndTime(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Note{})
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 1, "Alice", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	n, err := CreateNote(ctx, db, 1, "hello", time.Time{})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if n.ID == 0 {
		t.Fatal("id not assigned by store")
	}
	if n.CreatedAt.IsZero() || time.Since(n.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", n.CreatedAt)
	}
}

func TestListRecentNotes_OrderAndLimit(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Note{})
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 2, "Bob", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		if _, err := CreateNote(ctx, db, 2, fmt.Sprintf("note %d", i), t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("seed note %d: %v", i, err)
		}
	}

	notes, err := ListRecentNotes(ctx, db, 2, 10)
	if err != nil {
		t.Fatalf("ListRecentNotes: %v", err)
	}
	if len(notes) != 10 {
		t.Fatalf("len = %d, want the cap of 10", len(notes))
	}
	for i := 1; i < len(notes); i++ {
		if notes[i].CreatedAt.After(notes[i-1].CreatedAt) {
			t.Fatalf("not descending at %d: %v then %v", i, notes[i-1].CreatedAt, notes[i].CreatedAt)
		}
	}
	if notes[0].Text != "note 14" {
		t.Fatalf("newest first, got %q", notes[0].Text)
	}
}

func TestListRecentNotes_ScopedToOwner(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Note{})
	ctx := context.Background()

	for _, id := range []int64{3, 4} {
		if _, err := UpsertUser(ctx, db, id, fmt.Sprintf("U%d", id), nil); err != nil {
			t.Fatalf("seed user %d: %v", id, err)
		}
	}
	if _, err := CreateNote(ctx, db, 3, "mine", time.Time{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := CreateNote(ctx, db, 4, "theirs", time.Time{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	notes, err := ListRecentNotes(ctx, db, 3, 10)
	if err != nil {
		t.Fatalf("ListRecentNotes: %v", err)
	}
	if len(notes) != 1 || notes[0].Text != "mine" {
		t.Fatalf("owner scoping broken: %+v", notes)
	}
}

func TestListAllNotes_JoinsOwnerName(t *testing.T) {
	db := newRepoDB(t, &domain.User{}, &domain.Note{})
	ctx := context.Background()

	if _, err := UpsertUser(ctx, db, 5, "Carol", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := UpsertUser(ctx, db, 6, "Dan", nil); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if _, err := CreateNote(ctx, db, 5, "older", t0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := CreateNote(ctx, db, 6, "newer", t0.Add(time.Minute)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	all, err := ListAllNotes(ctx, db)
	if err != nil {
		t.Fatalf("ListAllNotes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].OwnerName != "Dan" || all[0].Note.Text != "newer" {
		t.Fatalf("newest first with owner name: %+v", all[0])
	}
	if all[1].OwnerName != "Carol" {
		t.Fatalf("owner join: %+v", all[1])
	}
}

func TestCountNotes_MissingTableSurfaces(t *testing.T) {
	db := newRepoDB(t) // no migration on purpose
	if _, err := CountNotes(context.Background(), db, 1); err == nil {
		t.Fatal("expected error for missing table")
	}
}
