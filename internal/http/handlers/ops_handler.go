// Ops endpoints.
//
// The bot's primary surface is the chat transport; this package exposes a
// small read-only HTTP view of the same data for operators and dashboards:
//   - GET /api/v1/users    (registered users, paginated)
//   - GET /api/v1/notes    (archived notes with owner names, paginated)
//
// Handlers are transport-thin: they parse query parameters, call application
// services, and shape the result into JSON.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkraev/registrar-bot/internal/domain"
	"github.com/mkraev/registrar-bot/internal/repo"
	"github.com/mkraev/registrar-bot/internal/utils"
)

// UserDirectory lists registered users. Implementations must honor the
// provided context and be safe for concurrent use.
type UserDirectory interface {
	List(ctx context.Context) ([]domain.User, error)
}

// NoteArchive lists archived notes together with their owners' names.
type NoteArchive interface {
	All(ctx context.Context) ([]repo.OwnedNote, error)
}

// Handlers groups the ops API endpoints.
type Handlers struct {
	users UserDirectory
	notes NoteArchive
}

// New constructs a Handlers bound to the given services.
func New(users UserDirectory, notes NoteArchive) *Handlers {
	return &Handlers{users: users, notes: notes}
}

//
// DTOs
//

// UserView is the JSON shape of a registered user.
type UserView struct {
	ID          uint      `json:"id"`
	ExternalID  int64     `json:"external_id"`
	DisplayName string    `json:"display_name"`
	Phone       *string   `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NoteView is the JSON shape of an archived note with its owner's name.
type NoteView struct {
	ID              uint      `json:"id"`
	OwnerExternalID int64     `json:"owner_external_id"`
	OwnerName       string    `json:"owner_name"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"created_at"`
}

// Pagination carries paging metadata for list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// ListUsersResponse wraps a page of users.
type ListUsersResponse struct {
	Users      []UserView `json:"users"`
	Pagination Pagination `json:"pagination"`
}

// ListNotesResponse wraps a page of notes.
type ListNotesResponse struct {
	Notes      []NoteView `json:"notes"`
	Pagination Pagination `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// pageBounds returns the [lo, hi) slice bounds for a page over total items
// and the pagination metadata describing it.
func pageBounds(page, pageSize, total int) (lo, hi int, p Pagination) {
	totalPages := (total + pageSize - 1) / pageSize
	lo = (page - 1) * pageSize
	if lo > total {
		lo = total
	}
	hi = lo + pageSize
	if hi > total {
		hi = total
	}
	p = Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
	return
}

//
// Handlers
//

// ListUsers returns a page of registered users in registration order.
func (h *Handlers) ListUsers(c *gin.Context) {
	page, pageSize := clampPagination(c)

	users, err := h.users.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	lo, hi, pg := pageBounds(page, pageSize, len(users))
	views := make([]UserView, 0, hi-lo)
	for _, u := range users[lo:hi] {
		views = append(views, UserView{
			ID:          u.ID,
			ExternalID:  u.ExternalID,
			DisplayName: u.DisplayName,
			Phone:       u.Phone,
			CreatedAt:   u.CreatedAt,
		})
	}

	ok(c, http.StatusOK, ListUsersResponse{Users: views, Pagination: pg})
}

// ListNotes returns a page of archived notes, newest first, each carrying
// its owner's display name.
func (h *Handlers) ListNotes(c *gin.Context) {
	page, pageSize := clampPagination(c)

	notes, err := h.notes.All(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	lo, hi, pg := pageBounds(page, pageSize, len(notes))
	views := make([]NoteView, 0, hi-lo)
	for _, n := range notes[lo:hi] {
		views = append(views, NoteView{
			ID:              n.Note.ID,
			OwnerExternalID: n.Note.OwnerExternalID,
			OwnerName:       n.OwnerName,
			Text:            n.Note.Text,
			CreatedAt:       n.Note.CreatedAt,
		})
	}

	ok(c, http.StatusOK, ListNotesResponse{Notes: views, Pagination: pg})
}
