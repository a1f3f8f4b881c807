// Package services – ArchiveService
//
// This file implements ArchiveService, the application-level component that
// owns the append-only note archive. Appending verifies the owner holds a
// stored profile; retrieval is a point query ordered newest first. Notes are
// immutable and never deleted, so the archive grows without bound.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mkraev/registrar-bot/internal/domain"
	"github.com/mkraev/registrar-bot/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRecentLimit caps Recent listings when the caller passes no limit.
const DefaultRecentLimit = 10

// ArchiveService coordinates note persistence and retrieval.
type ArchiveService struct {
	DB *gorm.DB

	// RecentLimit overrides DefaultRecentLimit when positive.
	RecentLimit int
}

// Append archives a note for ownerExternalID. It fails with ErrNotRegistered
// when the owner has no stored profile and creates no row in that case.
func (s *ArchiveService) Append(ctx context.Context, ownerExternalID int64, text string) (*domain.Note, error) {
	tr := otel.Tracer("services/ArchiveService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(attribute.Int64("user.external_id", ownerExternalID)),
	)
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyNote
	}

	owner, err := repo.GetUser(ctx, s.DB, ownerExternalID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrNotRegistered
	}

	return repo.CreateNote(ctx, s.DB, ownerExternalID, text, time.Now().UTC())
}

// Recent returns the owner's newest notes, capped at limit (or the service
// default when limit is not positive).
func (s *ArchiveService) Recent(ctx context.Context, ownerExternalID int64, limit int) ([]domain.Note, error) {
	tr := otel.Tracer("services/ArchiveService")
	ctx, span := tr.Start(ctx, "Recent",
		trace.WithAttributes(
			attribute.Int64("user.external_id", ownerExternalID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = s.RecentLimit
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return repo.ListRecentNotes(ctx, s.DB, ownerExternalID, limit)
}

// All returns every archived note across all owners, newest first, paired
// with the owner's display name. The result is unbounded; rendering limits
// are the caller's concern.
func (s *ArchiveService) All(ctx context.Context) ([]repo.OwnedNote, error) {
	tr := otel.Tracer("services/ArchiveService")
	ctx, span := tr.Start(ctx, "All")
	defer span.End()

	return repo.ListAllNotes(ctx, s.DB)
}
