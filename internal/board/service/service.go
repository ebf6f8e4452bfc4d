// Package service holds the board's account and post use cases. Every state
// change is recorded through the audit wrappers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"corkboard/internal/board/mail"
	"corkboard/internal/board/models"
	"corkboard/internal/session"
	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/sentinel"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PostStore interface {
	Create(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, int, error)
	Update(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByAuthor(ctx context.Context, authorID uuid.UUID) (int, error)
}

// TxRunner provides a transactional boundary for multi-store mutations.
// Implementations may wrap a database transaction or, in-memory, a coarse lock.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditRecorder interface {
	LogRegistration(ctx context.Context, userID, email string)
	LogEmailVerified(ctx context.Context, userID string)
	LogLogin(ctx context.Context, userID, email string, success bool, reason string)
	LogLogout(ctx context.Context, userID, sessionID string)
	LogPasswordChange(ctx context.Context, userID string, success bool, reason string)
	LogAccountDeleted(ctx context.Context, userID string, postsDeleted int)
	LogPostCreated(ctx context.Context, userID, postID string)
	LogPostUpdated(ctx context.Context, userID, postID string, fields []string)
	LogPostDeleted(ctx context.Context, userID, postID string)
	LogUnauthorizedAccess(ctx context.Context, resource, reason string)
}

type Tokens interface {
	Issue(userID string, purpose session.Purpose, ttl time.Duration) (*session.Issued, error)
	Validate(token string, purpose session.Purpose) (*session.Claims, error)
}

type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

const (
	DefaultSessionTTL      = 24 * time.Hour
	DefaultVerificationTTL = 48 * time.Hour
	DefaultPageSize        = 20
	MaxPageSize            = 100
)

type serviceConfig struct {
	logger          *slog.Logger
	tx              TxRunner
	mailer          mail.Mailer
	publicURL       string
	sessionTTL      time.Duration
	verificationTTL time.Duration
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(c *serviceConfig) {
		c.tx = tx
	}
}

func WithMailer(m mail.Mailer) Option {
	return func(c *serviceConfig) {
		c.mailer = m
	}
}

// WithPublicURL sets the base URL used in verification links.
func WithPublicURL(url string) Option {
	return func(c *serviceConfig) {
		c.publicURL = url
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(c *serviceConfig) {
		if ttl > 0 {
			c.sessionTTL = ttl
		}
	}
}

func WithVerificationTTL(ttl time.Duration) Option {
	return func(c *serviceConfig) {
		if ttl > 0 {
			c.verificationTTL = ttl
		}
	}
}

func newConfig(opts []Option) *serviceConfig {
	cfg := &serviceConfig{
		logger:          slog.Default(),
		sessionTTL:      DefaultSessionTTL,
		verificationTTL: DefaultVerificationTTL,
		publicURL:       "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = &inMemoryTx{}
	}
	if cfg.mailer == nil {
		cfg.mailer = mail.NewLogMailer(cfg.logger)
	}
	return cfg
}

// wrapStoreErr maps store sentinels onto domain errors for the given
// resource name.
func wrapStoreErr(err error, resource string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, resource+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, resource+" already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+resource)
	}
}

// invariantToValidation turns model invariant failures into 400s.
func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}
