// Package services – UserService
//
// This file implements UserService, the application-level component that owns
// the registration lifecycle: profile lookup, insert-or-replace registration
// writes, and user-initiated account deletion.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the external user identifier.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mkraev/registrar-bot/internal/domain"
	"github.com/mkraev/registrar-bot/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserService coordinates user profile persistence.
type UserService struct {
	DB *gorm.DB
}

// Get returns the stored profile for externalID, or nil when none exists.
func (s *UserService) Get(ctx context.Context, externalID int64) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("user.external_id", externalID)),
	)
	defer span.End()

	return repo.GetUser(ctx, s.DB, externalID)
}

// Register inserts or fully replaces the profile for externalID. Re-entering
// the registration flow while already registered is resolved as last write
// wins; the unique index on external_id guarantees a single row either way.
func (s *UserService) Register(ctx context.Context, externalID int64, displayName string, phone *string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Register",
		trace.WithAttributes(attribute.Int64("user.external_id", externalID)),
	)
	defer span.End()

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Unknown"
	}
	return repo.UpsertUser(ctx, s.DB, externalID, displayName, phone)
}

// Delete removes the profile for externalID. Deleting an absent profile is
// not an error; the return value reports whether a row was removed.
func (s *UserService) Delete(ctx context.Context, externalID int64) (bool, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("user.external_id", externalID)),
	)
	defer span.End()

	return repo.DeleteUser(ctx, s.DB, externalID)
}

// List returns every registered user in registration order.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListUsers(ctx, s.DB)
}
