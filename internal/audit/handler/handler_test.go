package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"corkboard/internal/platform/logger"
	audit "corkboard/pkg/platform/audit"
	"corkboard/pkg/platform/audit/store/memory"
	"corkboard/pkg/requestcontext"
	"corkboard/pkg/testutil"
)

// HandlerSuite drives a real recorder over the in-memory store.
type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	recorder *audit.Recorder
	now      time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.recorder = audit.NewRecorder(memory.NewInMemoryStore(),
		audit.WithLogger(logger.Discard()),
		audit.WithClock(func() time.Time { return s.now }),
	)

	r := chi.NewRouter()
	New(s.recorder, logger.Discard()).RegisterAdmin(r)
	s.router = r
}

func (s *HandlerSuite) seed() {
	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.9", "test")
	s.recorder.LogRegistration(ctx, "user-1", "alice@example.com")
	s.recorder.LogLogin(ctx, "user-1", "alice@example.com", true, "")
	s.recorder.LogLogin(ctx, "", "alice@example.com", false, "invalid credentials")
	s.recorder.LogPostCreated(ctx, "user-2", "post-1")
}

func (s *HandlerSuite) TestSearch() {
	s.seed()

	s.Run("no filters returns everything", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[searchResponse](s.T(), rr)
		s.Equal(4, resp.Total)
		s.Len(resp.Entries, 4)
		s.Equal(audit.DefaultSearchLimit, resp.Limit)
	})

	s.Run("filters by user and outcome", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit?success=false"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[searchResponse](s.T(), rr)
		s.Require().Len(resp.Entries, 1)
		s.Equal(audit.ActionLoginFailed, resp.Entries[0].Action)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit?user_id=user-2&limit=1"))
		resp = testutil.UnmarshalResponse[searchResponse](s.T(), rr)
		s.Equal(1, resp.Total)
		s.Equal("post-1", resp.Entries[0].ResourceID)
	})

	s.Run("empty result is an empty array", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit?user_id=nobody"))
		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Body.String(), `"entries":[]`)
	})

	s.Run("invalid parameters", func() {
		for _, query := range []string{
			"action=drop_table",
			"success=maybe",
			"since=yesterday",
			"limit=-1",
			"since=2026-05-02T00:00:00Z&until=2026-05-01T00:00:00Z",
		} {
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit?"+query))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
		}
	})
}

func (s *HandlerSuite) TestStats() {
	s.seed()

	s.Run("all users", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit/stats"))
		testutil.AssertStatusOK(s.T(), rr)
		stats := testutil.UnmarshalResponse[audit.Stats](s.T(), rr)
		s.Equal(4, stats.Total)
		s.Equal(1, stats.Failed)
		s.Equal(audit.DefaultStatsDays, stats.Days)
	})

	s.Run("one user with a custom window", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit/stats?user_id=user-1&days=30"))
		testutil.AssertStatusOK(s.T(), rr)
		stats := testutil.UnmarshalResponse[audit.Stats](s.T(), rr)
		s.Equal(2, stats.Total)
		s.Equal(30, stats.Days)
		s.Equal(1, stats.ByAction[audit.ActionLogin])
	})

	s.Run("bad days", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit/stats?days=ten"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}
