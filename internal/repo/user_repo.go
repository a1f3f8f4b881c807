// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkraev/registrar-bot/internal/domain"
)

// GetUser fetches a user by external id. Absence is not an error: the
// returned user is nil when no row exists.
func GetUser(ctx context.Context, db *gorm.DB, externalID int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser inserts a user row, or replaces display_name and phone on the
// existing row for the same external id. The write is a single SQLite
// ON CONFLICT DO UPDATE statement against the unique external_id index, so
// concurrent upserts for the same id cannot produce two rows.
func UpsertUser(ctx context.Context, db *gorm.DB, externalID int64, displayName string, phone *string) (*domain.User, error) {
	u := &domain.User{
		ExternalID:  externalID,
		DisplayName: displayName,
		Phone:       phone,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "phone", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	// Re-read so ID and CreatedAt reflect the stored row after a conflict update.
	return GetUser(ctx, db, externalID)
}

// DeleteUser removes the user row for externalID. It reports whether a row
// was actually removed; deleting an absent user is not an error.
func DeleteUser(ctx context.Context, db *gorm.DB, externalID int64) (bool, error) {
	res := db.WithContext(ctx).Where("external_id = ?", externalID).Delete(&domain.User{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListUsers returns all registered users ordered by registration time.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// CountUsers uses a raw COUNT so a missing table surfaces as an error.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM users").Scan(&total).Error
	return total, err
}
