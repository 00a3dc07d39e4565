package notes

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"yanote/internal/auth"
	"yanote/internal/db"
	"yanote/internal/errs"
	"yanote/internal/slug"
)

func newTestService(t *testing.T) (*Service, *db.DB) {
	t.Helper()
	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewService(database), database
}

func registerUser(t *testing.T, database *db.DB, username string) string {
	t.Helper()
	u, err := auth.NewUserService(database).Register(context.Background(), username, "correct-horse")
	require.NoError(t, err)
	return u.ID
}

func TestCreateWithExplicitSlug(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	author := registerUser(t, database, "alice")

	n, err := svc.Create(ctx, author, CreateParams{Title: "New note", Body: "text", Slug: "new-note"})
	require.NoError(t, err)
	assert.Equal(t, "new-note", n.Slug)
	assert.Equal(t, "New note", n.Title)
	assert.Equal(t, author, n.AuthorID)
}

func TestCreateDerivesSlugFromTitle(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	author := registerUser(t, database, "alice")

	n, err := svc.Create(ctx, author, CreateParams{Title: "Тестовая заметка", Body: "text"})
	require.NoError(t, err)
	assert.Equal(t, "testovaya-zametka", n.Slug)
	assert.Equal(t, slug.Make("Тестовая заметка"), n.Slug)
}

func TestCreateAnonymousRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", CreateParams{Title: "t"})
	assert.Equal(t, errs.Unauthenticated, errs.CodeOf(err))

	_, err = svc.List(ctx, "")
	assert.Equal(t, errs.Unauthenticated, errs.CodeOf(err))

	_, err = svc.Get(ctx, "", "any")
	assert.Equal(t, errs.Unauthenticated, errs.CodeOf(err))
}

func TestCreateDuplicateSlugLeavesCountUnchanged(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	alice := registerUser(t, database, "alice")
	bob := registerUser(t, database, "bob")

	_, err := svc.Create(ctx, alice, CreateParams{Title: "First", Slug: "taken"})
	require.NoError(t, err)

	// Same slug, different author: uniqueness is system wide.
	_, err = svc.Create(ctx, bob, CreateParams{Title: "Second", Slug: "taken"})
	var dup *DuplicateSlugError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "taken", dup.Slug)
	assert.Contains(t, dup.Error(), "taken - ")

	count, err := database.CountNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateConcurrentSameSlug(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	author := registerUser(t, database, "alice")

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, author, CreateParams{Title: "Same Title", Slug: "same"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// Exactly one writer wins; every loser sees the duplicate error.
	created := 0
	duplicates := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		var dup *DuplicateSlugError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "same", dup.Slug)
		duplicates++
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicates)

	count, err := database.CountNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateValidation(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	author := registerUser(t, database, "alice")

	_, err := svc.Create(ctx, author, CreateParams{Title: "   "})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	_, err = svc.Create(ctx, author, CreateParams{Title: "ok", Slug: "has spaces"})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
	var badSlug *InvalidSlugError
	require.ErrorAs(t, err, &badSlug)

	_, err = svc.Create(ctx, author, CreateParams{Title: "ok", Slug: strings.Repeat("a", slug.MaxLength+1)})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	// Title with no slug material cannot derive one.
	_, err = svc.Create(ctx, author, CreateParams{Title: "!!!"})
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestListIsolatedPerAuthor(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	alice := registerUser(t, database, "alice")
	bob := registerUser(t, database, "bob")

	_, err := svc.Create(ctx, alice, CreateParams{Title: "Alice one", Slug: "alice-one"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, CreateParams{Title: "Alice two", Slug: "alice-two"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, CreateParams{Title: "Bob one", Slug: "bob-one"})
	require.NoError(t, err)

	aliceNotes, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 2)
	for _, n := range aliceNotes {
		assert.Equal(t, alice, n.AuthorID)
	}

	bobNotes, err := svc.List(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobNotes, 1)
	assert.Equal(t, "bob-one", bobNotes[0].Slug)
}

func TestGetHidesOtherOwnersAsNotFound(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	alice := registerUser(t, database, "alice")
	bob := registerUser(t, database, "bob")

	_, err := svc.Create(ctx, alice, CreateParams{Title: "Mine", Slug: "mine"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, alice, "mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)

	// Someone else's note and a nonexistent note are the same error.
	_, err = svc.Get(ctx, bob, "mine")
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
	_, err = svc.Get(ctx, bob, "no-such-slug")
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestUpdateOwnerOnly(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	alice := registerUser(t, database, "alice")
	bob := registerUser(t, database, "bob")

	_, err := svc.Create(ctx, alice, CreateParams{Title: "Original", Slug: "original"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, "original", UpdateParams{Title: "Hijacked"})
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))

	// The failed attempt left the note untouched.
	unchanged, err := svc.Get(ctx, alice, "original")
	require.NoError(t, err)
	assert.Equal(t, "Original", unchanged.Title)

	updated, err := svc.Update(ctx, alice, "original", UpdateParams{Title: "Renamed", Body: "new body", Slug: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Slug)
	assert.Equal(t, "Renamed", updated.Title)

	// Old slug is gone, new one resolves.
	_, err = svc.Get(ctx, alice, "original")
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
	got, err := svc.Get(ctx, alice, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "new body", got.Body)
}

func TestUpdateRederivesSlugWhenEmpty(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	alice := registerUser(t, database, "alice")

	_, err := svc.Create(ctx, alice, CreateParams{Title: "Old title", Slug: "old-title"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, alice, "old-title", UpdateParams{Title: "Fresh title"})
	require.NoError(t, err)
	assert.Equal(t, "fresh-title", updated.Slug)
}

func TestUpdateSlugCollision(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	alice := registerUser(t, database, "alice")
	bob := registerUser(t, database, "bob")

	_, err := svc.Create(ctx, alice, CreateParams{Title: "Mine", Slug: "mine"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, CreateParams{Title: "Taken", Slug: "taken"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice, "mine", UpdateParams{Title: "Mine", Slug: "taken"})
	var dup *DuplicateSlugError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "taken", dup.Slug)

	// The original note is untouched.
	got, err := svc.Get(ctx, alice, "mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
}

func TestDeleteOwnerOnly(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	alice := registerUser(t, database, "alice")
	bob := registerUser(t, database, "bob")

	_, err := svc.Create(ctx, alice, CreateParams{Title: "Mine", Slug: "mine"})
	require.NoError(t, err)

	err = svc.Delete(ctx, bob, "mine")
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))

	require.NoError(t, svc.Delete(ctx, alice, "mine"))
	_, err = svc.Get(ctx, alice, "mine")
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))

	// Slug is free again after deletion.
	_, err = svc.Create(ctx, bob, CreateParams{Title: "Reused", Slug: "mine"})
	assert.NoError(t, err)
}

func TestResolveSlugDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		title := rapid.StringOfN(rapid.RuneFrom([]rune("abcdefgh АБВГДЕабвгде0123!?")), 1, 40, -1).Draw(t, "title")

		first, err1 := resolveSlug(title, "")
		second, err2 := resolveSlug(title, "")

		if err1 != nil {
			// Only titles with no slug material may fail.
			require.Error(t, err2)
			assert.Equal(t, "", slug.Make(title))
			return
		}
		require.NoError(t, err2)
		assert.Equal(t, first, second)
		assert.Equal(t, slug.Make(title), first)
		assert.True(t, slug.IsValid(first))
	})
}

func TestResolveSlugExplicitWins(t *testing.T) {
	got, err := resolveSlug("Some title", "explicit-slug")
	require.NoError(t, err)
	assert.Equal(t, "explicit-slug", got)
}

func TestCreatedAtUsesClock(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()
	author := registerUser(t, database, "alice")

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(fixedClock{fixed})

	n, err := svc.Create(ctx, author, CreateParams{Title: "Timed", Slug: "timed"})
	require.NoError(t, err)
	assert.Equal(t, fixed.Unix(), n.CreatedAt.Unix())
}

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }
