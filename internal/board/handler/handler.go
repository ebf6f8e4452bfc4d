// Package handler exposes the board's account and post endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"corkboard/internal/board/models"
	"corkboard/internal/board/service"
	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/httputil"
	authmw "corkboard/pkg/platform/middleware/auth"
	"corkboard/pkg/platform/validation"
)

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, req models.ChangePasswordRequest) error
	DeleteAccount(ctx context.Context, token, password string) (int, error)
	Me(ctx context.Context) (*models.User, error)
}

type PostService interface {
	List(ctx context.Context, limit, offset int) ([]*models.Post, int, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Post, error)
	Create(ctx context.Context, req models.CreatePostRequest) (*models.Post, error)
	Update(ctx context.Context, id uuid.UUID, req models.UpdatePostRequest) (*models.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	users        UserService
	posts        PostService
	logger       *slog.Logger
	secureCookie bool
}

type Option func(*Handler)

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

func New(users UserService, posts PostService, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{users: users, posts: posts, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes. requireAuth guards everything that needs a
// signed-in user.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/api/auth/register", h.HandleRegister)
	r.Post("/api/auth/login", h.HandleLogin)
	r.Post("/api/auth/verify-email", h.HandleVerifyEmail)
	r.Post("/api/auth/resend-verification", h.HandleResendVerification)
	r.Get("/api/posts", h.HandleListPosts)
	r.Get("/api/posts/{id}", h.HandleGetPost)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/api/auth/logout", h.HandleLogout)
		r.Get("/api/account", h.HandleMe)
		r.Post("/api/account/password", h.HandleChangePassword)
		r.Delete("/api/account", h.HandleDeleteAccount)
		r.Post("/api/posts", h.HandleCreatePost)
		r.Patch("/api/posts/{id}", h.HandleUpdatePost)
		r.Delete("/api/posts/{id}", h.HandleDeletePost)
	})
}

// decode reads and validates a JSON body, writing the error response on
// failure.
func decode[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if msg, ok := validation.Struct(req); !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, msg))
		return nil, false
	}
	return &req, true
}

func (h *Handler) fail(r *http.Request, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.RegisterRequest](w, r)
	if !ok {
		return
	}
	user, err := h.users.Register(r.Context(), *req)
	if err != nil {
		h.fail(r, w, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewUserResponse(user))
}

func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.VerifyEmailRequest](w, r)
	if !ok {
		return
	}
	user, err := h.users.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		h.fail(r, w, "verify email", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUserResponse(user))
}

// HandleResendVerification always answers 202 so it cannot be used to test
// for registered addresses.
func (h *Handler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.ResendVerificationRequest](w, r)
	if !ok {
		return
	}
	if err := h.users.ResendVerification(r.Context(), req.Email); err != nil {
		h.fail(r, w, "resend verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the address is registered and unverified, a new link has been sent",
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.LoginRequest](w, r)
	if !ok {
		return
	}
	res, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(r, w, "login", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		MaxAge:   int(time.Until(res.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      models.NewUserResponse(res.User),
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), authmw.TokenFromRequest(r)); err != nil {
		h.fail(r, w, "logout", err)
		return
	}
	h.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context())
	if err != nil {
		h.fail(r, w, "load account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUserResponse(user))
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.ChangePasswordRequest](w, r)
	if !ok {
		return
	}
	if err := h.users.ChangePassword(r.Context(), *req); err != nil {
		h.fail(r, w, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.DeleteAccountRequest](w, r)
	if !ok {
		return
	}
	deleted, err := h.users.DeleteAccount(r.Context(), authmw.TokenFromRequest(r), req.Password)
	if err != nil {
		h.fail(r, w, "delete account", err)
		return
	}
	h.clearSession(w)
	httputil.WriteJSON(w, http.StatusOK, models.DeleteAccountResponse{PostsDeleted: deleted})
}

func (h *Handler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	posts, total, limit, err := h.posts.List(r.Context(), limit, offset)
	if err != nil {
		h.fail(r, w, "list posts", err)
		return
	}
	resp := models.PostListResponse{
		Posts:  make([]models.PostResponse, 0, len(posts)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, models.NewPostResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	p, err := h.posts.Get(r.Context(), id)
	if err != nil {
		h.fail(r, w, "get post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewPostResponse(p))
}

func (h *Handler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[models.CreatePostRequest](w, r)
	if !ok {
		return
	}
	p, err := h.posts.Create(r.Context(), *req)
	if err != nil {
		h.fail(r, w, "create post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewPostResponse(p))
}

func (h *Handler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	req, ok := decode[models.UpdatePostRequest](w, r)
	if !ok {
		return
	}
	p, err := h.posts.Update(r.Context(), id, *req)
	if err != nil {
		h.fail(r, w, "update post", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewPostResponse(p))
}

func (h *Handler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(w, r)
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), id); err != nil {
		h.fail(r, w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func postID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "post id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return n, nil
}
