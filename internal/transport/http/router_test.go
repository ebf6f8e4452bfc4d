package httptransport_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	audithandler "corkboard/internal/audit/handler"
	boardhandler "corkboard/internal/board/handler"
	"corkboard/internal/board/models"
	"corkboard/internal/board/password"
	boardservice "corkboard/internal/board/service"
	"corkboard/internal/board/store/post"
	"corkboard/internal/board/store/user"
	"corkboard/internal/csrf"
	"corkboard/internal/platform/logger"
	"corkboard/internal/platform/metrics"
	rlconfig "corkboard/internal/ratelimit/config"
	rlhandler "corkboard/internal/ratelimit/handler"
	rlmiddleware "corkboard/internal/ratelimit/middleware"
	rlservice "corkboard/internal/ratelimit/service"
	"corkboard/internal/ratelimit/store/bucket"
	"corkboard/internal/securityheaders"
	"corkboard/internal/session"
	httptransport "corkboard/internal/transport/http"
	"corkboard/pkg/platform/audit"
	auditmemory "corkboard/pkg/platform/audit/store/memory"
	adminmw "corkboard/pkg/platform/middleware/admin"
	authmw "corkboard/pkg/platform/middleware/auth"
	"corkboard/pkg/testutil"
)

const adminToken = "router-test-admin-token"

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	recorder *audit.Recorder
	healthy  error
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	log := logger.Discard()
	reg := metrics.NewRegistry()
	s.healthy = nil
	s.recorder = audit.NewRecorder(auditmemory.NewInMemoryStore(), audit.WithLogger(log))

	limiter, err := rlservice.New(bucket.NewInMemoryBucketStore(),
		rlservice.WithLogger(log),
		rlservice.WithConfig(rlconfig.Development()),
		rlservice.WithAuditRecorder(s.recorder),
	)
	s.Require().NoError(err)

	guard := csrf.New(
		csrf.WithLogger(log),
		csrf.WithMetrics(csrf.NewMetrics(prometheus.NewRegistry())),
		csrf.WithAuditRecorder(s.recorder),
	)
	tokens := session.NewService("router-test-secret-0123456789abcdefgh", "corkboard-test")
	trl := session.NewInMemoryTRL()
	posts := post.NewInMemoryPostStore()
	users := boardservice.NewUserService(user.NewInMemoryUserStore(), posts, password.NewHasher(bcrypt.MinCost),
		tokens, trl, s.recorder, boardservice.WithLogger(log))

	s.router = httptransport.NewRouter(httptransport.Deps{
		Logger:          log,
		HTTPMetrics:     metrics.NewHTTP(reg).Middleware,
		SecurityHeaders: securityheaders.New(false, securityheaders.DefaultCSP()).Middleware,
		Authenticate:    authmw.Authenticate(tokens, trl, log),
		RequireAuth:     authmw.RequireAuth(s.recorder, log),
		RateLimit:       rlmiddleware.New(limiter, log).Handler,
		CSRF:            guard.Middleware,
		CSRFToken:       guard.HandleToken,
		Metrics:         metrics.Handler(reg),
		Health:          func(context.Context) error { return s.healthy },
		Board:           boardhandler.New(users, boardservice.NewPostService(posts, s.recorder), log),
		Admin: []httptransport.AdminRoutes{
			rlhandler.New(limiter, log),
			audithandler.New(s.recorder, log),
		},
		AdminToken: adminToken,
	})
}

func (s *RouterSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

// csrfPair fetches a token and returns it with its cookie value.
func (s *RouterSuite) csrfPair() string {
	t := s.T()
	rr := s.do(testutil.NewRequest(t, http.MethodGet, "/api/csrf-token"))
	testutil.AssertStatusOK(t, rr)
	body := testutil.UnmarshalResponse[csrf.TokenResponse](t, rr)
	cookie := testutil.CookieFrom(rr, csrf.CookieName)
	s.Require().NotNil(cookie)
	s.Equal(cookie.Value, body.CSRFToken)
	return body.CSRFToken
}

func (s *RouterSuite) withCSRF(req *http.Request, token string) *http.Request {
	req.Header.Set(csrf.HeaderName, token)
	return testutil.WithCookie(req, csrf.CookieName, token)
}

func (s *RouterSuite) TestHealthAndHeaders() {
	t := s.T()
	rr := s.do(testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
	for _, name := range securityheaders.StaticHeaderNames() {
		s.NotEmpty(rr.Header().Get(name), name)
	}
	s.Empty(rr.Header().Get("Strict-Transport-Security"), "development omits HSTS")
	s.Empty(rr.Header().Get(rlmiddleware.HeaderLimit), "health is not rate limited")

	s.healthy = errors.New("database unreachable")
	testutil.AssertStatus(t, s.do(testutil.NewRequest(t, http.MethodGet, "/healthz")), http.StatusServiceUnavailable)
}

func (s *RouterSuite) TestMetricsBypassesCSRFAndLimits() {
	t := s.T()
	rr := s.do(testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	s.Empty(rr.Header().Get(rlmiddleware.HeaderLimit))
	s.Nil(testutil.CookieFrom(rr, csrf.CookieName))
}

func (s *RouterSuite) TestStateChangesNeedCSRF() {
	t := s.T()
	register := models.RegisterRequest{Email: "alice@example.com", Password: "Passw0rd!"}

	rr := s.do(testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/register", register))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	token := s.csrfPair()
	rr = s.do(s.withCSRF(testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/register", register), token))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	s.NotEmpty(rr.Header().Get(rlmiddleware.HeaderRemaining))

	denied, _, err := s.recorder.Search(context.Background(), audit.Filter{Action: audit.ActionUnauthorizedAccess})
	s.Require().NoError(err)
	s.Require().Len(denied, 1)
	s.Contains(denied[0].ErrorMessage, "missing_cookie")
}

func (s *RouterSuite) TestLoginBucketLimitsAttempts() {
	t := s.T()
	token := s.csrfPair()
	login := models.LoginRequest{Email: "nobody@example.com", Password: "whatever"}

	for i := range 5 {
		rr := s.do(s.withCSRF(testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/login", login), token))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		s.Equal("5", rr.Header().Get(rlmiddleware.HeaderLimit), "attempt %d", i+1)
	}

	rr := s.do(s.withCSRF(testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/login", login), token))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	s.NotEmpty(rr.Header().Get(rlmiddleware.HeaderRetryAfter))
	s.Equal("0", rr.Header().Get(rlmiddleware.HeaderRemaining))

	exceeded, _, err := s.recorder.Search(context.Background(), audit.Filter{Action: audit.ActionRateLimitExceeded})
	s.Require().NoError(err)
	s.Len(exceeded, 1)
}

func (s *RouterSuite) TestAdminRoutesNeedToken() {
	t := s.T()
	testutil.AssertStatus(t, s.do(testutil.NewRequest(t, http.MethodGet, "/admin/audit")), http.StatusUnauthorized)

	req := testutil.NewRequest(t, http.MethodGet, "/admin/audit")
	req.Header.Set(adminmw.Header, adminToken)
	testutil.AssertStatusOK(t, s.do(req))

	req = testutil.NewRequest(t, http.MethodGet, "/admin/rate-limit/stats")
	req.Header.Set(adminmw.Header, adminToken)
	testutil.AssertStatusOK(t, s.do(req))
}

func (s *RouterSuite) TestAdminResetNeedsNoCSRFCookie() {
	t := s.T()
	token := s.csrfPair()
	login := func() *httptest.ResponseRecorder {
		req := s.withCSRF(testutil.NewJSONRequest(t, http.MethodPost, "/api/auth/login",
			models.LoginRequest{Email: "nobody@example.com", Password: "whatever"}), token)
		req.Header.Set("X-Forwarded-For", "1.2.3.4")
		return s.do(req)
	}
	for range 5 {
		login()
	}
	testutil.AssertStatus(t, login(), http.StatusTooManyRequests)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/rate-limit/reset",
		map[string]string{"bucket": "login", "ip": "1.2.3.4"})
	req.Header.Set(adminmw.Header, adminToken)
	rr := s.do(req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)
	s.NotEmpty(rr.Header().Get(rlmiddleware.HeaderLimit), "admin routes stay rate limited")

	testutil.AssertStatus(t, login(), http.StatusUnauthorized)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/admin/rate-limit/reset",
		map[string]string{"bucket": "login", "ip": "1.2.3.4"})
	testutil.AssertStatus(t, s.do(req), http.StatusUnauthorized)
}

func (s *RouterSuite) TestUnknownRoute() {
	t := s.T()
	testutil.AssertStatusAndError(t, s.do(testutil.NewRequest(t, http.MethodGet, "/nope")), http.StatusNotFound, "not_found")
}
