// Package notes implements note creation, listing, and owner-gated access.
package notes

import (
	"fmt"
	"time"
)

// Note is a single note owned by one author.
type Note struct {
	ID        string
	Slug      string
	Title     string
	Body      string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateParams are the fields accepted when creating a note.
// An empty Slug means one is derived from the title.
type CreateParams struct {
	Title string
	Body  string
	Slug  string
}

// UpdateParams are the fields accepted when editing a note.
type UpdateParams struct {
	Title string
	Body  string
	Slug  string
}

// DuplicateSlugError is returned when the requested slug is already in
// use by any note in the system. The form layer shows Error() next to
// the slug field.
type DuplicateSlugError struct {
	Slug string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("%s - such slug already exists, you must come up with a unique value!", e.Slug)
}

// InvalidSlugError is returned when an explicitly supplied slug fails
// validation. The form layer shows Reason next to the slug field.
type InvalidSlugError struct {
	Reason string
}

func (e *InvalidSlugError) Error() string {
	return e.Reason
}
