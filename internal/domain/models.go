// Package domain defines the persistence models for registered users and
// their archived notes. These types are mapped with GORM and form the core
// data layer of the registrar bot.
package domain

import "time"

// User represents a registered chat user. A user is keyed by the stable
// identifier assigned by the messaging platform; at most one row exists per
// such identifier (enforced by a unique index).
//
// Fields:
//   - ID: autoincrement surrogate primary key.
//   - ExternalID: platform-assigned user identifier (unique).
//   - DisplayName: human-readable name captured at registration time.
//   - Phone: canonical phone number, nil when the user registered without one.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID          uint      `json:"-"               gorm:"primaryKey"`
	ExternalID  int64     `json:"external_id"     gorm:"uniqueIndex:ux_users_external_id;not null"`
	DisplayName string    `json:"display_name"    gorm:"type:varchar(255);not null"`
	Phone       *string   `json:"phone,omitempty" gorm:"type:varchar(32)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Note represents a single archived free-text entry owned by a registered
// user. Notes are append-only: no update or delete path exists.
//
// Fields:
//   - ID: autoincrement primary key assigned by the store.
//   - OwnerExternalID: external identifier of the owning user (indexed).
//   - Text: full text content of the note.
//   - CreatedAt: capture time (indexed for descending retrieval).
type Note struct {
	ID              uint      `json:"id"                gorm:"primaryKey"`
	OwnerExternalID int64     `json:"owner_external_id" gorm:"not null;index:idx_owner_notes,priority:1"`
	Text            string    `json:"text"              gorm:"type:text;not null"`
	CreatedAt       time.Time `json:"created_at"        gorm:"index:idx_owner_notes,priority:2"`

	// Owner is the registered user the note belongs to. Notes reference
	// users by external id, not by the surrogate key. Deleting an account
	// removes its notes: no orphaned rows, and a later registration under
	// the same external id starts with an empty archive.
	Owner User `json:"-" gorm:"foreignKey:OwnerExternalID;references:ExternalID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Note.
func (Note) TableName() string { return "notes" }
