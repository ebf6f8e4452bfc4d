// Package handler exposes the rate limiter's admin endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"corkboard/internal/ratelimit/models"
	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/httputil"
	"corkboard/pkg/platform/privacy"
	"corkboard/pkg/platform/validation"
)

// Service is the subset of the rate limit service used by the admin API.
type Service interface {
	Reset(ctx context.Context, bucket models.Bucket, ip, userID string) error
	CurrentCount(ctx context.Context, bucket models.Bucket, ip, userID string) (int, error)
	Stats() *models.StatsResponse
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the admin routes. Callers wrap r with admin
// authentication.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/rate-limit/stats", h.HandleStats)
	r.Get("/admin/rate-limit/count", h.HandleCount)
	r.Post("/admin/rate-limit/reset", h.HandleReset)
}

// HandleStats lists every bucket's policy and occupancy.
func (h *Handler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Stats())
}

type countResponse struct {
	Bucket models.Bucket `json:"bucket"`
	Key    string        `json:"key"`
	Count  int           `json:"count"`
}

// HandleCount reports one identity's usage: ?bucket=&ip=&user_id=.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bucket, err := models.ParseBucket(q.Get("bucket"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ip := q.Get("ip")
	if ip == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "ip is required"))
		return
	}
	userID := q.Get("user_id")

	count, err := h.service.CurrentCount(r.Context(), bucket, ip, userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read rate limit count", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, countResponse{
		Bucket: bucket,
		Key:    models.NewKey(ip, userID),
		Count:  count,
	})
}

// HandleReset clears one identity's counter in one bucket.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req models.ResetRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if msg, ok := validation.Struct(req); !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, msg))
		return
	}
	bucket, err := models.ParseBucket(req.Bucket)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Reset(r.Context(), bucket, req.IP, req.UserID); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to reset rate limit",
			"error", err, "bucket", bucket.String(), "ip_prefix", privacy.AnonymizeIP(req.IP))
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
