// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Note model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mkraev/registrar-bot/internal/domain"
)

// OwnedNote pairs a note with its owner's display name for cross-user
// listings. Truncation of long listings is the consumer's concern.
type OwnedNote struct {
	OwnerName string      `json:"owner_name"`
	Note      domain.Note `json:"note"`
}

// CreateNote appends a note row for the given owner. The id is assigned by
// the store; createdAt falls back to the current time when zero.
func CreateNote(ctx context.Context, db *gorm.DB, ownerExternalID int64, text string, createdAt time.Time) (*domain.Note, error) {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	n := &domain.Note{
		OwnerExternalID: ownerExternalID,
		Text:            text,
		CreatedAt:       createdAt,
	}
	return n, db.WithContext(ctx).Create(n).Error
}

// ListRecentNotes returns the owner's notes ordered deterministically
// (CreatedAt DESC, ID DESC), capped at limit entries.
func ListRecentNotes(ctx context.Context, db *gorm.DB, ownerExternalID int64, limit int) ([]domain.Note, error) {
	var out []domain.Note
	q := db.WithContext(ctx).
		Where("owner_external_id = ?", ownerExternalID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListAllNotes returns every note across all owners, newest first, each
// joined with its owner's display name.
func ListAllNotes(ctx context.Context, db *gorm.DB) ([]OwnedNote, error) {
	type row struct {
		domain.Note
		DisplayName string
	}
	var rows []row
	err := db.WithContext(ctx).
		Table("notes").
		Select("notes.*, users.display_name").
		Joins("JOIN users ON users.external_id = notes.owner_external_id").
		Order("notes.created_at DESC, notes.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]OwnedNote, 0, len(rows))
	for _, r := range rows {
		out = append(out, OwnedNote{OwnerName: r.DisplayName, Note: r.Note})
	}
	return out, nil
}

// CountNotes uses a raw COUNT so a missing table surfaces as an error.
func CountNotes(ctx context.Context, db *gorm.DB, ownerExternalID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM notes WHERE owner_external_id = ?", ownerExternalID).
		Scan(&total).Error
	return total, err
}
