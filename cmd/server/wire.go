package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	audithandler "corkboard/internal/audit/handler"
	boardhandler "corkboard/internal/board/handler"
	"corkboard/internal/board/mail"
	"corkboard/internal/board/password"
	boardservice "corkboard/internal/board/service"
	"corkboard/internal/board/store/post"
	"corkboard/internal/board/store/user"
	"corkboard/internal/csrf"
	"corkboard/internal/platform/config"
	"corkboard/internal/platform/metrics"
	"corkboard/internal/platform/postgres"
	redisclient "corkboard/internal/platform/redis"
	rlconfig "corkboard/internal/ratelimit/config"
	rlhandler "corkboard/internal/ratelimit/handler"
	rlmetrics "corkboard/internal/ratelimit/metrics"
	rlmiddleware "corkboard/internal/ratelimit/middleware"
	rlservice "corkboard/internal/ratelimit/service"
	"corkboard/internal/ratelimit/store/bucket"
	"corkboard/internal/securityheaders"
	"corkboard/internal/session"
	httptransport "corkboard/internal/transport/http"
	"corkboard/pkg/platform/audit"
	kafkasink "corkboard/pkg/platform/audit/publishers/kafka"
	auditmemory "corkboard/pkg/platform/audit/store/memory"
	auditpostgres "corkboard/pkg/platform/audit/store/postgres"
	"corkboard/pkg/platform/circuit"
	authmw "corkboard/pkg/platform/middleware/auth"
	platformstrings "corkboard/pkg/platform/strings"
)

const (
	auditTopicPartitions  = 3
	auditTopicReplication = 1
)

// app holds the long-lived dependencies of a running server.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	db       *sql.DB
	redis    *redisclient.Client
	kafka    *kgo.Client
	sink     *kafkasink.Sink
	recorder *audit.Recorder
	limiter  *rlservice.Service
	router   http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) (err error) {
	cfg, log := a.cfg, a.log

	reg := metrics.NewRegistry()
	production := cfg.IsProduction()

	if a.db, err = postgres.Open(ctx, cfg.Database); err != nil {
		return err
	}
	if a.db != nil {
		if err = postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
	}
	if a.redis, err = redisclient.New(ctx, cfg.Redis); err != nil {
		return err
	}

	if err = a.buildAudit(ctx, reg); err != nil {
		return err
	}
	if a.limiter, err = a.buildLimiter(reg); err != nil {
		return err
	}

	guard := csrf.New(
		csrf.WithSecureCookie(production),
		csrf.WithExemptPaths(platformstrings.SplitList(cfg.CSRF.ExemptPaths)...),
		csrf.WithLogger(log),
		csrf.WithMetrics(csrf.NewMetrics(reg)),
		csrf.WithAuditRecorder(a.recorder),
	)

	tokens := session.NewService(cfg.Session.JWTSecret, cfg.Session.Issuer)
	var revocations session.RevocationList = session.NewInMemoryTRL()
	if a.redis != nil {
		revocations = session.NewRedisTRL(a.redis.Client)
	}

	users, posts, tx := a.boardStores()
	opts := []boardservice.Option{
		boardservice.WithLogger(log),
		boardservice.WithMailer(a.mailer()),
		boardservice.WithPublicURL(cfg.Server.PublicURL),
		boardservice.WithSessionTTL(cfg.Session.TokenTTL),
		boardservice.WithVerificationTTL(cfg.Session.VerificationTTL),
	}
	if tx != nil {
		opts = append(opts, boardservice.WithTxRunner(tx))
	}
	userSvc := boardservice.NewUserService(users, posts, password.NewHasher(0), tokens, revocations, a.recorder, opts...)
	postSvc := boardservice.NewPostService(posts, a.recorder, opts...)

	deps := httptransport.Deps{
		Logger:          log,
		HTTPMetrics:     metrics.NewHTTP(reg).Middleware,
		SecurityHeaders: securityheaders.New(production, securityheaders.DefaultCSP()).Middleware,
		Authenticate:    authmw.Authenticate(tokens, revocations, log),
		RequireAuth:     authmw.RequireAuth(a.recorder, log),
		RateLimit:       rlmiddleware.New(a.limiter, log, rlmiddleware.WithDisabled(cfg.RateLimit.Disabled)).Handler,
		CSRF:            guard.Middleware,
		CSRFToken:       guard.HandleToken,
		Health:          a.health,
		Board:           boardhandler.New(userSvc, postSvc, log, boardhandler.WithSecureCookie(production)),
		Admin: []httptransport.AdminRoutes{
			rlhandler.New(a.limiter, log),
			audithandler.New(a.recorder, log),
		},
		AdminToken: cfg.Admin.Token,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.Handler(reg)
		deps.MetricsPath = cfg.Metrics.Path
	}
	a.router = httptransport.NewRouter(deps)
	return nil
}

func (a *app) auditStore() audit.Store {
	if a.db != nil {
		return auditpostgres.New(a.db)
	}
	return auditmemory.NewInMemoryStore()
}

// buildAudit creates the recorder and, when brokers are configured, the
// Kafka sink it mirrors entries to.
func (a *app) buildAudit(ctx context.Context, reg prometheus.Registerer) error {
	opts := []audit.Option{
		audit.WithLogger(a.log),
		audit.WithMetrics(audit.NewMetrics(reg)),
		audit.WithRetention(a.cfg.Audit.Retention),
	}
	if brokers := platformstrings.SplitList(a.cfg.Audit.KafkaBrokers); len(brokers) > 0 {
		topic := a.cfg.Audit.KafkaTopic
		client, err := kafkasink.NewClient(brokers, topic)
		if err != nil {
			return err
		}
		a.kafka = client
		if err := kafkasink.EnsureTopic(ctx, client, topic, auditTopicPartitions, auditTopicReplication); err != nil {
			a.log.WarnContext(ctx, "could not ensure audit topic", "topic", topic, "error", err)
		}
		a.sink = kafkasink.New(client, topic, kafkasink.WithLogger(a.log))
		opts = append(opts, audit.WithSink(a.sink))
	}
	a.recorder = audit.NewRecorder(a.auditStore(), opts...)
	return nil
}

// buildLimiter uses the in-memory bucket store unless Redis is selected, in
// which case an in-memory fallback takes over while Redis keeps failing.
func (a *app) buildLimiter(reg prometheus.Registerer) (*rlservice.Service, error) {
	rl := a.cfg.RateLimit
	limits := rlconfig.ForEnvironment(a.cfg.IsProduction())
	limits.Capacity = rl.Capacity

	memory := bucket.NewInMemoryBucketStore(bucket.WithCapacity(rl.Capacity), bucket.WithLogger(a.log))
	opts := []rlservice.Option{
		rlservice.WithLogger(a.log),
		rlservice.WithConfig(limits),
		rlservice.WithMetrics(rlmetrics.New(reg)),
		rlservice.WithAuditRecorder(a.recorder),
	}
	if rl.Store != "redis" {
		return rlservice.New(memory, opts...)
	}
	if a.redis == nil {
		return nil, errors.New("ratelimit.store=redis requires a reachable redis")
	}
	breaker := circuit.New("ratelimit-redis",
		circuit.WithFailureThreshold(rl.FailureThreshold),
		circuit.WithSuccessThreshold(rl.SuccessThreshold),
	)
	opts = append(opts, rlservice.WithFallback(memory, breaker), rlservice.WithStoreName("redis"))
	return rlservice.New(bucket.NewRedisBucketStore(a.redis.Client), opts...)
}

func (a *app) boardStores() (boardservice.UserStore, boardservice.PostStore, boardservice.TxRunner) {
	if a.db != nil {
		return user.NewPostgresUserStore(a.db), post.NewPostgresPostStore(a.db), postgres.NewTxRunner(a.db)
	}
	return user.NewInMemoryUserStore(), post.NewInMemoryPostStore(), nil
}

func (a *app) mailer() mail.Mailer {
	m := a.cfg.Mail
	if m.SMTPHost == "" {
		return mail.NewLogMailer(a.log)
	}
	return mail.NewSMTPMailer(m.SMTPHost, m.SMTPPort, m.From,
		mail.WithAuth(m.Username, m.Password),
		mail.WithRetry(m.MaxAttempts, m.Backoff),
		mail.WithLogger(a.log),
	)
}

func (a *app) health(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases connections. The Kafka sink must have stopped first.
func (a *app) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
