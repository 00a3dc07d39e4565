package web

import (
	"errors"
	"net/http"
	"strings"

	"yanote/internal/auth"
	"yanote/internal/errs"
	"yanote/internal/notes"
	"yanote/internal/obs"
	"yanote/internal/urlutil"
)

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer       *Renderer
	notesService   *notes.Service
	userService    *auth.UserService
	sessionService *auth.SessionService
	baseURL        string
}

// NewWebHandler creates a new web handler.
func NewWebHandler(
	renderer *Renderer,
	notesService *notes.Service,
	userService *auth.UserService,
	sessionService *auth.SessionService,
	baseURL string,
) *WebHandler {
	return &WebHandler{
		renderer:       renderer,
		notesService:   notesService,
		userService:    userService,
		sessionService: sessionService,
		baseURL:        baseURL,
	}
}

// RegisterRoutes registers all web UI routes on the given mux.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	// Public pages
	mux.Handle("GET /{$}", authMiddleware.OptionalAuth(http.HandlerFunc(h.HandleHome)))
	mux.HandleFunc("GET /login", h.HandleLoginPage)
	mux.HandleFunc("POST /login", h.HandleLogin)
	mux.HandleFunc("GET /signup", h.HandleSignupPage)
	mux.HandleFunc("POST /signup", h.HandleSignup)
	mux.HandleFunc("GET /logout", h.HandleLogout)
	mux.HandleFunc("POST /logout", h.HandleLogout)

	// Notes (auth required - anonymous users are redirected to login)
	mux.Handle("GET /notes", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleNotesList)))
	mux.Handle("GET /notes/add", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleAddNotePage)))
	mux.Handle("POST /notes/add", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleCreateNote)))
	mux.Handle("GET /done", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleDonePage)))
	mux.Handle("GET /notes/{slug}", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleViewNote)))
	mux.Handle("GET /notes/{slug}/edit", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleEditNotePage)))
	mux.Handle("POST /notes/{slug}/edit", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleUpdateNote)))
	mux.Handle("GET /notes/{slug}/delete", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleDeleteNotePage)))
	mux.Handle("POST /notes/{slug}/delete", authMiddleware.RequireAuth(http.HandlerFunc(h.HandleDeleteNote)))
}

// PageData contains fields shared by all pages.
type PageData struct {
	Title        string
	Username     string
	FlashMessage string
	FlashType    string // "success", "error", "info"
	Error        string
}

// LoginPageData contains data for the login page.
type LoginPageData struct {
	PageData
	Next     string
	Username string
}

// SignupPageData contains data for the signup page.
type SignupPageData struct {
	PageData
	Username string
}

// NotesListData contains data for the notes list page.
type NotesListData struct {
	PageData
	Notes []notes.Note
}

// NoteViewData contains data for the note detail and delete pages.
type NoteViewData struct {
	PageData
	Note *notes.Note
}

// NoteFormData contains data for the note add/edit form.
type NoteFormData struct {
	PageData
	Note       *notes.Note
	FormTitle  string
	FormBody   string
	FormSlug   string
	SlugError  string
	TitleError string
	Action     string
}

func pageData(r *http.Request, title string) PageData {
	return PageData{
		Title:    title,
		Username: auth.GetUsername(r.Context()),
	}
}

// HandleHome handles GET / - the public landing page.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "Notes")
	if err := h.renderer.Render(w, "home.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLoginPage handles GET /login - shows the login form.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := LoginPageData{
		PageData: pageData(r, "Sign In"),
		Next:     r.URL.Query().Get("next"),
	}
	if err := h.renderer.Render(w, "auth/login.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleLogin handles POST /login - verifies credentials and starts a session.
// On failure the form is re-rendered with the error; on success the browser
// is sent to the next URL (validated as a local path) or the notes list.
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	next := r.FormValue("next")

	user, err := h.userService.VerifyLogin(r.Context(), username, password)
	if err != nil {
		data := LoginPageData{
			PageData: pageData(r, "Sign In"),
			Next:     next,
			Username: username,
		}
		data.Error = "Please enter a correct username and password."
		if rerr := h.renderer.Render(w, "auth/login.html", data); rerr != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
		return
	}

	sessionID, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		obs.From(r.Context()).Error("create session", "error", err)
		h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	auth.SetCookie(w, sessionID, h.sessionService.Duration())

	http.Redirect(w, r, h.safeNext(r, next), http.StatusFound)
}

// safeNext resolves the post-login redirect target. An absolute URL is
// accepted only when it points at this site's own origin, in which case
// it is reduced to its local path; everything else goes through the
// local-path check with the notes list as the fallback.
func (h *WebHandler) safeNext(r *http.Request, next string) string {
	next = strings.TrimSpace(next)
	origin := urlutil.OriginFromRequest(r, h.baseURL)
	if origin != "" && strings.HasPrefix(next, origin+"/") {
		next = strings.TrimPrefix(next, origin)
	}
	return urlutil.SafeNextPath(next, "/notes")
}

// HandleSignupPage handles GET /signup - shows the registration form.
func (h *WebHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	data := SignupPageData{
		PageData: pageData(r, "Sign Up"),
	}
	if err := h.renderer.Render(w, "auth/signup.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleSignup handles POST /signup - creates an account and signs it in.
func (h *WebHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.userService.Register(r.Context(), username, password)
	if err != nil {
		data := SignupPageData{
			PageData: pageData(r, "Sign Up"),
			Username: username,
		}
		switch {
		case errors.Is(err, auth.ErrUsernameTaken),
			errors.Is(err, auth.ErrWeakPassword),
			errors.Is(err, auth.ErrInvalidUsername):
			data.Error = err.Error()
		default:
			obs.From(r.Context()).Error("register user", "error", err)
			data.Error = "Failed to create account"
		}
		if rerr := h.renderer.Render(w, "auth/signup.html", data); rerr != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
		return
	}

	sessionID, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		obs.From(r.Context()).Error("create session", "error", err)
		h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	auth.SetCookie(w, sessionID, h.sessionService.Duration())

	http.Redirect(w, r, "/notes", http.StatusFound)
}

// HandleLogout handles GET and POST /logout - ends the session and renders
// a logged-out page. Available to anonymous users too.
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := auth.GetFromRequest(r)
	if err == nil {
		_ = h.sessionService.Delete(r.Context(), sessionID)
	}
	auth.ClearCookie(w)

	data := pageData(r, "Signed Out")
	data.Username = ""
	if err := h.renderer.Render(w, "auth/logged_out.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleNotesList handles GET /notes - lists the current user's notes only.
func (h *WebHandler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	list, err := h.notesService.List(r.Context(), userID)
	if err != nil {
		obs.From(r.Context()).Error("list notes", "error", err)
		h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to load notes")
		return
	}

	data := NotesListData{
		PageData: pageData(r, "My Notes"),
		Notes:    list,
	}
	if err := h.renderer.Render(w, "notes/list.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleAddNotePage handles GET /notes/add - shows the new note form.
func (h *WebHandler) HandleAddNotePage(w http.ResponseWriter, r *http.Request) {
	data := NoteFormData{
		PageData: pageData(r, "Add Note"),
		Action:   "/notes/add",
	}
	if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleCreateNote handles POST /notes/add - creates a note. A duplicate
// slug re-renders the form with the error next to the slug field; nothing
// is stored in that case.
func (h *WebHandler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	params := notes.CreateParams{
		Title: r.FormValue("title"),
		Body:  r.FormValue("text"),
		Slug:  strings.TrimSpace(r.FormValue("slug")),
	}

	_, err := h.notesService.Create(r.Context(), auth.GetUserID(r.Context()), params)
	if err != nil {
		data := NoteFormData{
			PageData:  pageData(r, "Add Note"),
			FormTitle: params.Title,
			FormBody:  params.Body,
			FormSlug:  params.Slug,
			Action:    "/notes/add",
		}
		if !h.fillFormErrors(&data, err) {
			obs.From(r.Context()).Error("create note", "error", err)
			h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to create note")
			return
		}
		if rerr := h.renderer.Render(w, "notes/form.html", data); rerr != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/done", http.StatusFound)
}

// fillFormErrors maps a service error onto form fields. Returns false for
// errors the form cannot express.
func (h *WebHandler) fillFormErrors(data *NoteFormData, err error) bool {
	var dup *notes.DuplicateSlugError
	if errors.As(err, &dup) {
		data.SlugError = dup.Error()
		return true
	}
	var badSlug *notes.InvalidSlugError
	if errors.As(err, &badSlug) {
		data.SlugError = badSlug.Reason
		return true
	}
	if errs.CodeOf(err) == errs.InvalidArgument {
		data.TitleError = errs.MessageOf(err)
		return true
	}
	return false
}

// HandleDonePage handles GET /done - the post-save confirmation page.
func (h *WebHandler) HandleDonePage(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "Saved")
	if err := h.renderer.Render(w, "notes/success.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleViewNote handles GET /notes/{slug} - shows a note. Notes owned by
// someone else render the not-found page, never a permission error.
func (h *WebHandler) HandleViewNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnNote(w, r)
	if !ok {
		return
	}

	data := NoteViewData{
		PageData: pageData(r, note.Title),
		Note:     note,
	}
	if err := h.renderer.Render(w, "notes/detail.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleEditNotePage handles GET /notes/{slug}/edit - shows the edit form.
func (h *WebHandler) HandleEditNotePage(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnNote(w, r)
	if !ok {
		return
	}

	data := NoteFormData{
		PageData:  pageData(r, "Edit "+note.Title),
		Note:      note,
		FormTitle: note.Title,
		FormBody:  note.Body,
		FormSlug:  note.Slug,
		Action:    "/notes/" + note.Slug + "/edit",
	}
	if err := h.renderer.Render(w, "notes/form.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleUpdateNote handles POST /notes/{slug}/edit - saves edits.
func (h *WebHandler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	noteSlug := r.PathValue("slug")
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	params := notes.UpdateParams{
		Title: r.FormValue("title"),
		Body:  r.FormValue("text"),
		Slug:  strings.TrimSpace(r.FormValue("slug")),
	}

	_, err := h.notesService.Update(r.Context(), auth.GetUserID(r.Context()), noteSlug, params)
	if err != nil {
		if errs.CodeOf(err) == errs.NotFound {
			h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
			return
		}
		data := NoteFormData{
			PageData:  pageData(r, "Edit Note"),
			FormTitle: params.Title,
			FormBody:  params.Body,
			FormSlug:  params.Slug,
			Action:    "/notes/" + noteSlug + "/edit",
		}
		if !h.fillFormErrors(&data, err) {
			obs.From(r.Context()).Error("update note", "error", err)
			h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to update note")
			return
		}
		if rerr := h.renderer.Render(w, "notes/form.html", data); rerr != nil {
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/done", http.StatusFound)
}

// HandleDeleteNotePage handles GET /notes/{slug}/delete - confirmation page.
func (h *WebHandler) HandleDeleteNotePage(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwnNote(w, r)
	if !ok {
		return
	}

	data := NoteViewData{
		PageData: pageData(r, "Delete "+note.Title),
		Note:     note,
	}
	if err := h.renderer.Render(w, "notes/delete.html", data); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// HandleDeleteNote handles POST /notes/{slug}/delete - deletes the note.
func (h *WebHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteSlug := r.PathValue("slug")

	err := h.notesService.Delete(r.Context(), auth.GetUserID(r.Context()), noteSlug)
	if err != nil {
		if errs.CodeOf(err) == errs.NotFound {
			h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
			return
		}
		obs.From(r.Context()).Error("delete note", "error", err)
		h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to delete note")
		return
	}

	http.Redirect(w, r, "/done", http.StatusFound)
}

// loadOwnNote resolves the slug path value to a note owned by the current
// user, rendering the not-found page otherwise.
func (h *WebHandler) loadOwnNote(w http.ResponseWriter, r *http.Request) (*notes.Note, bool) {
	noteSlug := r.PathValue("slug")
	if noteSlug == "" {
		http.Redirect(w, r, "/notes", http.StatusFound)
		return nil, false
	}

	note, err := h.notesService.Get(r.Context(), auth.GetUserID(r.Context()), noteSlug)
	if err != nil {
		code := errs.CodeOf(err)
		if code == errs.NotFound {
			h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
			return nil, false
		}
		obs.From(r.Context()).Error("get note", "error", err)
		h.renderer.RenderError(w, errs.HTTPStatus(code), "Failed to load note")
		return nil, false
	}
	return note, true
}
