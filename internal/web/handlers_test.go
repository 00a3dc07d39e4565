package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yanote/internal/auth"
	"yanote/internal/db"
	"yanote/internal/notes"
)

func testTemplatesDir(t *testing.T) string {
	t.Helper()
	candidates := []string{
		"../../web/templates",
		"../web/templates",
		"./web/templates",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Fatalf("unable to locate templates directory from test working directory")
	return ""
}

type harness struct {
	mux      *http.ServeMux
	database *db.DB
	users    *auth.UserService
	sessions *auth.SessionService
	notes    *notes.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	auth.SetSecureCookies(false)
	t.Cleanup(func() { auth.SetSecureCookies(true) })

	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	userService := auth.NewUserService(database)
	sessionService := auth.NewSessionService(database, time.Hour)
	notesService := notes.NewService(database)

	renderer, err := NewRenderer(testTemplatesDir(t))
	require.NoError(t, err)

	handler := NewWebHandler(renderer, notesService, userService, sessionService, "http://example.test")
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth.NewMiddleware(sessionService, userService))

	return &harness{
		mux:      mux,
		database: database,
		users:    userService,
		sessions: sessionService,
		notes:    notesService,
	}
}

func (h *harness) signup(t *testing.T, username string) (*auth.User, *http.Cookie) {
	t.Helper()
	ctx := context.Background()
	u, err := h.users.Register(ctx, username, "correct-horse")
	require.NoError(t, err)
	sessionID, err := h.sessions.Create(ctx, u.ID)
	require.NoError(t, err)
	return u, &http.Cookie{Name: auth.SessionCookieName, Value: sessionID}
}

func (h *harness) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func (h *harness) postForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func TestPublicPagesAvailableToAnonymous(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/", "/login", "/signup", "/logout"} {
		rec := h.get(path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "GET %s", path)
	}
}

func TestAuthPagesRedirectAnonymousWithNext(t *testing.T) {
	h := newHarness(t)

	paths := []string{
		"/notes",
		"/notes/add",
		"/done",
		"/notes/some-slug",
		"/notes/some-slug/edit",
		"/notes/some-slug/delete",
	}
	for _, path := range paths {
		rec := h.get(path, nil)
		require.Equal(t, http.StatusFound, rec.Code, "GET %s", path)

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", loc.Path, "GET %s", path)
		assert.Equal(t, path, loc.Query().Get("next"), "GET %s", path)
	}
}

func TestNonOwnerGets404NotForbidden(t *testing.T) {
	h := newHarness(t)
	alice, aliceCookie := h.signup(t, "alice")
	_, bobCookie := h.signup(t, "bob")

	_, err := h.notes.Create(context.Background(), alice.ID, notes.CreateParams{Title: "Mine", Slug: "mine"})
	require.NoError(t, err)

	for _, path := range []string{"/notes/mine", "/notes/mine/edit", "/notes/mine/delete"} {
		rec := h.get(path, bobCookie)
		assert.Equal(t, http.StatusNotFound, rec.Code, "GET %s", path)
	}

	// The owner sees all three pages.
	for _, path := range []string{"/notes/mine", "/notes/mine/edit", "/notes/mine/delete"} {
		rec := h.get(path, aliceCookie)
		assert.Equal(t, http.StatusOK, rec.Code, "GET %s", path)
	}
}

func TestNotesListShowsOnlyOwnNotes(t *testing.T) {
	h := newHarness(t)
	alice, aliceCookie := h.signup(t, "alice")
	bob, _ := h.signup(t, "bob")

	ctx := context.Background()
	_, err := h.notes.Create(ctx, alice.ID, notes.CreateParams{Title: "Alice note", Slug: "alice-note"})
	require.NoError(t, err)
	_, err = h.notes.Create(ctx, bob.ID, notes.CreateParams{Title: "Bob note", Slug: "bob-note"})
	require.NoError(t, err)

	rec := h.get("/notes", aliceCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "alice-note")
	assert.NotContains(t, body, "bob-note")
}

func TestCreateNoteRedirectsToDone(t *testing.T) {
	h := newHarness(t)
	_, cookie := h.signup(t, "alice")

	rec := h.postForm("/notes/add", url.Values{
		"title": {"Fresh note"},
		"text":  {"body text"},
	}, cookie)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/done", rec.Header().Get("Location"))

	done := h.get("/done", cookie)
	assert.Equal(t, http.StatusOK, done.Code)
}

func TestCreateNoteDerivedSlugVisibleInList(t *testing.T) {
	h := newHarness(t)
	_, cookie := h.signup(t, "alice")

	rec := h.postForm("/notes/add", url.Values{
		"title": {"Тестовая заметка"},
		"text":  {"body"},
	}, cookie)
	require.Equal(t, http.StatusFound, rec.Code)

	list := h.get("/notes", cookie)
	assert.Contains(t, list.Body.String(), "testovaya-zametka")
}

func TestCreateDuplicateSlugRerendersForm(t *testing.T) {
	h := newHarness(t)
	_, cookie := h.signup(t, "alice")

	first := h.postForm("/notes/add", url.Values{
		"title": {"First"},
		"slug":  {"taken"},
	}, cookie)
	require.Equal(t, http.StatusFound, first.Code)

	second := h.postForm("/notes/add", url.Values{
		"title": {"Second"},
		"slug":  {"taken"},
	}, cookie)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "taken - such slug already exists")

	count, err := h.database.CountNotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateInvalidSlugErrorShownOnSlugField(t *testing.T) {
	h := newHarness(t)
	_, cookie := h.signup(t, "alice")

	rec := h.postForm("/notes/add", url.Values{
		"title": {"Fine title"},
		"slug":  {"has spaces"},
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "slug must be 1-100 letters")
	// The message belongs to the slug field, not the title field.
	slugLabel := strings.Index(body, `for="slug"`)
	message := strings.Index(body, "slug must be 1-100 letters")
	titleInput := strings.Index(body, `id="title"`)
	require.True(t, slugLabel >= 0 && message >= 0 && titleInput >= 0)
	assert.Greater(t, message, slugLabel)
	assert.Greater(t, message, titleInput)

	count, err := h.database.CountNotes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestEditNoteChangesSlug(t *testing.T) {
	h := newHarness(t)
	alice, cookie := h.signup(t, "alice")

	_, err := h.notes.Create(context.Background(), alice.ID, notes.CreateParams{Title: "Old", Slug: "old"})
	require.NoError(t, err)

	rec := h.postForm("/notes/old/edit", url.Values{
		"title": {"New title"},
		"slug":  {"new-slug"},
		"text":  {"updated"},
	}, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/done", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, h.get("/notes/old", cookie).Code)
	assert.Equal(t, http.StatusOK, h.get("/notes/new-slug", cookie).Code)
}

func TestDeleteNoteThenSlugFree(t *testing.T) {
	h := newHarness(t)
	alice, cookie := h.signup(t, "alice")

	_, err := h.notes.Create(context.Background(), alice.ID, notes.CreateParams{Title: "Mine", Slug: "mine"})
	require.NoError(t, err)

	rec := h.postForm("/notes/mine/delete", nil, cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/done", rec.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, h.get("/notes/mine", cookie).Code)
}

func TestLoginRedirectsToNext(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice")

	rec := h.postForm("/login", url.Values{
		"username": {"alice"},
		"password": {"correct-horse"},
		"next":     {"/notes/some-note/edit"},
	}, nil)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/notes/some-note/edit", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestLoginRejectsExternalNext(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice")

	rec := h.postForm("/login", url.Values{
		"username": {"alice"},
		"password": {"correct-horse"},
		"next":     {"https://evil.example/phish"},
	}, nil)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/notes", rec.Header().Get("Location"))
}

func TestLoginAcceptsOwnOriginNext(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice")

	// httptest requests carry the example.com host; an absolute next URL
	// on that origin is reduced to its local path.
	rec := h.postForm("/login", url.Values{
		"username": {"alice"},
		"password": {"correct-horse"},
		"next":     {"http://example.com/notes/add"},
	}, nil)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/notes/add", rec.Header().Get("Location"))
}

func TestLoginBadCredentialsRerenders(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice")

	rec := h.postForm("/login", url.Values{
		"username": {"alice"},
		"password": {"wrong-password"},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "correct username and password")
}

func TestSignupDuplicateUsernameRerenders(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "alice")

	rec := h.postForm("/signup", url.Values{
		"username": {"alice"},
		"password": {"another-password"},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already taken")
}

func TestSignupThenAccessNotes(t *testing.T) {
	h := newHarness(t)

	rec := h.postForm("/signup", url.Values{
		"username": {"carol"},
		"password": {"long-enough-pw"},
	}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/notes", rec.Header().Get("Location"))

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	assert.Equal(t, http.StatusOK, h.get("/notes", cookie).Code)
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	_, cookie := h.signup(t, "alice")

	rec := h.postForm("/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed Out")

	// The old session no longer works.
	after := h.get("/notes", cookie)
	assert.Equal(t, http.StatusFound, after.Code)
}
