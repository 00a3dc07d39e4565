package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"yanote/internal/db"
	"yanote/internal/errs"
	"yanote/internal/slug"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service implements note operations. Every method takes the acting
// user's ID explicitly; an empty actor means the caller is anonymous and
// is always rejected before touching storage.
type Service struct {
	db    *db.DB
	clock Clock
}

// NewService creates a note service.
func NewService(database *db.DB) *Service {
	return &Service{
		db:    database,
		clock: realClock{},
	}
}

// SetClock replaces the clock. Used by tests.
func (s *Service) SetClock(c Clock) {
	s.clock = c
}

// Create stores a new note owned by actorID. If params.Slug is empty a
// slug is derived from the title. Returns *DuplicateSlugError when the
// slug is already taken by any note.
func (s *Service) Create(ctx context.Context, actorID string, params CreateParams) (*Note, error) {
	if actorID == "" {
		return nil, errs.New(errs.Unauthenticated, "login required")
	}

	noteSlug, err := resolveSlug(params.Title, params.Slug)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	row := db.Note{
		ID:        uuid.NewString(),
		Slug:      noteSlug,
		Title:     strings.TrimSpace(params.Title),
		Body:      params.Body,
		AuthorID:  actorID,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}
	if err := s.db.InsertNote(ctx, row); err != nil {
		if errors.Is(err, db.ErrUniqueConstraint) {
			return nil, &DuplicateSlugError{Slug: noteSlug}
		}
		return nil, fmt.Errorf("insert note: %w", err)
	}

	return noteFromRow(row), nil
}

// List returns all notes owned by actorID, oldest first. Notes of other
// users never appear.
func (s *Service) List(ctx context.Context, actorID string) ([]Note, error) {
	if actorID == "" {
		return nil, errs.New(errs.Unauthenticated, "login required")
	}

	rows, err := s.db.ListNotesByAuthor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	result := make([]Note, 0, len(rows))
	for _, row := range rows {
		result = append(result, *noteFromRow(row))
	}
	return result, nil
}

// Get returns the note with the given slug if actorID owns it. A note
// owned by someone else reports not found, exactly like a missing note.
func (s *Service) Get(ctx context.Context, actorID, noteSlug string) (*Note, error) {
	if actorID == "" {
		return nil, errs.New(errs.Unauthenticated, "login required")
	}

	row, err := s.db.GetNoteBySlugForAuthor(ctx, noteSlug, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.NotFound, "note not found")
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return noteFromRow(row), nil
}

// Update edits the note with the given slug when actorID owns it. The
// slug may change; an empty params.Slug re-derives it from the new
// title. Returns *DuplicateSlugError when the new slug collides.
func (s *Service) Update(ctx context.Context, actorID, noteSlug string, params UpdateParams) (*Note, error) {
	existing, err := s.Get(ctx, actorID, noteSlug)
	if err != nil {
		return nil, err
	}

	newSlug, err := resolveSlug(params.Title, params.Slug)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	row := db.Note{
		ID:        existing.ID,
		Slug:      newSlug,
		Title:     strings.TrimSpace(params.Title),
		Body:      params.Body,
		AuthorID:  actorID,
		CreatedAt: existing.CreatedAt.Unix(),
		UpdatedAt: now.Unix(),
	}
	if err := s.db.UpdateNote(ctx, row); err != nil {
		switch {
		case errors.Is(err, db.ErrUniqueConstraint):
			return nil, &DuplicateSlugError{Slug: newSlug}
		case errors.Is(err, sql.ErrNoRows):
			return nil, errs.New(errs.NotFound, "note not found")
		default:
			return nil, fmt.Errorf("update note: %w", err)
		}
	}

	return noteFromRow(row), nil
}

// Delete removes the note with the given slug when actorID owns it.
func (s *Service) Delete(ctx context.Context, actorID, noteSlug string) error {
	existing, err := s.Get(ctx, actorID, noteSlug)
	if err != nil {
		return err
	}

	if err := s.db.DeleteNote(ctx, existing.ID, actorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.New(errs.NotFound, "note not found")
		}
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}

// resolveSlug validates an explicit slug or derives one from the title.
func resolveSlug(title, explicit string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", errs.New(errs.InvalidArgument, "title is required")
	}

	if explicit != "" {
		if !slug.IsValid(explicit) {
			reason := fmt.Sprintf("slug must be 1-%d letters, digits, hyphens, or underscores", slug.MaxLength)
			return "", errs.Wrap(errs.InvalidArgument, reason, &InvalidSlugError{Reason: reason})
		}
		return explicit, nil
	}

	derived := slug.Make(title)
	if derived == "" {
		return "", errs.New(errs.InvalidArgument, "cannot derive a slug from this title, please provide one")
	}
	return derived, nil
}

func noteFromRow(row db.Note) *Note {
	return &Note{
		ID:        row.ID,
		Slug:      row.Slug,
		Title:     row.Title,
		Body:      row.Body,
		AuthorID:  row.AuthorID,
		CreatedAt: time.Unix(row.CreatedAt, 0),
		UpdatedAt: time.Unix(row.UpdatedAt, 0),
	}
}
