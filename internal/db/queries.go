package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUniqueConstraint is returned when an insert or update violates a
// UNIQUE constraint (username or slug already taken).
var ErrUniqueConstraint = errors.New("unique constraint violation")

// User is a row in the users table.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    int64
}

// Session is a row in the sessions table.
type Session struct {
	SessionID string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

// Note is a row in the notes table.
type Note struct {
	ID        string
	Slug      string
	Title     string
	Body      string
	AuthorID  string
	CreatedAt int64
	UpdatedAt int64
}

// CreateUser inserts a new user. Returns ErrUniqueConstraint if the
// username is already taken.
func (d *DB) CreateUser(ctx context.Context, u User) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrUniqueConstraint
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByUsername returns the user with the given username, or
// sql.ErrNoRows if none exists.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := d.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// GetUserByID returns the user with the given ID, or sql.ErrNoRows.
func (d *DB) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := d.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// CreateSession inserts a new session row.
func (d *DB) CreateSession(ctx context.Context, s Session) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.SessionID, s.UserID, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session if it exists and has not expired as of
// now (unix seconds). Expired or missing sessions yield sql.ErrNoRows.
func (d *DB) GetSession(ctx context.Context, sessionID string, now int64) (Session, error) {
	var s Session
	err := d.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, expires_at, created_at FROM sessions
		 WHERE session_id = ? AND expires_at > ?`,
		sessionID, now,
	).Scan(&s.SessionID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

// DeleteSession removes a session row. Deleting a missing session is not
// an error.
func (d *DB) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions that expired before now.
// Returns the number of rows deleted.
func (d *DB) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

// InsertNote inserts a new note. Returns ErrUniqueConstraint if the slug
// is already in use by any author.
func (d *DB) InsertNote(ctx context.Context, n Note) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO notes (id, slug, title, body, author_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Slug, n.Title, n.Body, n.AuthorID, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrUniqueConstraint
		}
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetNoteBySlugForAuthor returns the note with the given slug owned by
// authorID. A note owned by someone else is indistinguishable from a
// missing note: both yield sql.ErrNoRows.
func (d *DB) GetNoteBySlugForAuthor(ctx context.Context, slug, authorID string) (Note, error) {
	var n Note
	err := d.db.QueryRowContext(ctx,
		`SELECT id, slug, title, body, author_id, created_at, updated_at FROM notes
		 WHERE slug = ? AND author_id = ?`,
		slug, authorID,
	).Scan(&n.ID, &n.Slug, &n.Title, &n.Body, &n.AuthorID, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// ListNotesByAuthor returns all notes owned by authorID, oldest first.
func (d *DB) ListNotesByAuthor(ctx context.Context, authorID string) ([]Note, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, slug, title, body, author_id, created_at, updated_at FROM notes
		 WHERE author_id = ? ORDER BY created_at ASC, id ASC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Slug, &n.Title, &n.Body, &n.AuthorID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// UpdateNote updates title, body, slug, and updated_at of the note with
// the given ID, but only when it is owned by authorID. Returns
// sql.ErrNoRows when no matching row exists and ErrUniqueConstraint when
// the new slug collides with another note.
func (d *DB) UpdateNote(ctx context.Context, n Note) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE notes SET slug = ?, title = ?, body = ?, updated_at = ?
		 WHERE id = ? AND author_id = ?`,
		n.Slug, n.Title, n.Body, n.UpdatedAt, n.ID, n.AuthorID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrUniqueConstraint
		}
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteNote removes the note with the given ID when owned by authorID.
// Returns sql.ErrNoRows when no matching row exists.
func (d *DB) DeleteNote(ctx context.Context, id, authorID string) error {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND author_id = ?`,
		id, authorID,
	)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountNotes returns the total number of notes in the database.
func (d *DB) CountNotes(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return n, nil
}
