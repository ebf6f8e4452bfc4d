// Package handler exposes the audit log's admin endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "corkboard/pkg/domain-errors"
	audit "corkboard/pkg/platform/audit"
	"corkboard/pkg/platform/httputil"
)

// Service is the read side of the audit recorder.
type Service interface {
	Search(ctx context.Context, filter audit.Filter) ([]audit.Entry, int, error)
	Stats(ctx context.Context, userID string, days int) (*audit.Stats, error)
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
	r.Get("/admin/audit", h.HandleSearch)
	r.Get("/admin/audit/stats", h.HandleStats)
}

type searchResponse struct {
	Entries []audit.Entry `json:"entries"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// HandleSearch lists entries newest first. Query parameters: user_id,
// action, resource, resource_id, success, since, until (RFC 3339), limit
// and offset.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, total, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to search audit log", "error", err)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	filter = filter.Normalize()
	httputil.WriteJSON(w, http.StatusOK, searchResponse{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// HandleStats summarizes recent activity: ?user_id=&days=.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := optionalInt(q, "days")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), q.Get("user_id"), days)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to compute audit stats", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func parseFilter(q url.Values) (audit.Filter, error) {
	filter := audit.Filter{
		UserID:     q.Get("user_id"),
		Resource:   q.Get("resource"),
		ResourceID: q.Get("resource_id"),
	}
	if v := q.Get("action"); v != "" {
		action, err := audit.ParseAction(v)
		if err != nil {
			return filter, err
		}
		filter.Action = action
	}
	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeInvalidInput, "success must be true or false")
		}
		filter.Success = &success
	}

	var err error
	if filter.Since, err = optionalTime(q, "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = optionalTime(q, "until"); err != nil {
		return filter, err
	}
	if filter.Limit, err = optionalInt(q, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = optionalInt(q, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func optionalTime(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, name+" must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

func optionalInt(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
	}
	return n, nil
}
