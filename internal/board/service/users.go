package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"corkboard/internal/board/mail"
	"corkboard/internal/board/models"
	"corkboard/internal/board/password"
	"corkboard/internal/session"
	"corkboard/pkg/email"
	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/privacy"
	"corkboard/pkg/platform/sentinel"
	"corkboard/pkg/requestcontext"
)

const errInvalidCredentials = "invalid email or password"

// LoginResult is a signed-in session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// UserService manages board accounts and their sessions.
type UserService struct {
	users      UserStore
	posts      PostStore
	hasher     PasswordHasher
	tokens     Tokens
	revocation RevocationList
	audit      AuditRecorder
	cfg        *serviceConfig

	decoyOnce sync.Once
	decoyHash string
}

func NewUserService(users UserStore, posts PostStore, hasher PasswordHasher, tokens Tokens,
	revocation RevocationList, auditor AuditRecorder, opts ...Option,
) *UserService {
	return &UserService{
		users:      users,
		posts:      posts,
		hasher:     hasher,
		tokens:     tokens,
		revocation: revocation,
		audit:      auditor,
		cfg:        newConfig(opts),
	}
}

// Register creates an unverified account and mails a verification link.
// A mail failure does not fail the registration; the user can ask for the
// link again.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	displayName := req.DisplayName
	if displayName == "" {
		displayName = email.DisplayName(req.Email)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	user, err := models.NewUser(uuid.New(), req.Email, displayName, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, wrapStoreErr(err, "user")
	}
	s.audit.LogRegistration(ctx, user.ID.String(), user.Email)
	s.sendVerification(ctx, user)
	return user, nil
}

// VerifyEmail marks the token's account as verified. Verifying twice is
// not an error.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Validate(token, session.PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}
	id, err := parseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
		}
		return nil, wrapStoreErr(err, "user")
	}
	if user.EmailVerified {
		return user, nil
	}
	user.EmailVerified = true
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, wrapStoreErr(err, "user")
	}
	s.audit.LogEmailVerified(ctx, user.ID.String())
	return user, nil
}

// ResendVerification mails a new link to an unverified account. The result
// is the same whether or not the address is registered.
func (s *UserService) ResendVerification(ctx context.Context, address string) error {
	user, err := s.users.FindByEmail(ctx, email.Normalize(address))
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.cfg.logger.ErrorContext(ctx, "resend verification lookup failed",
				"email", privacy.MaskEmail(address), "error", err)
		}
		return nil
	}
	if !user.EmailVerified {
		s.sendVerification(ctx, user)
	}
	return nil
}

func (s *UserService) sendVerification(ctx context.Context, user *models.User) {
	issued, err := s.tokens.Issue(user.ID.String(), session.PurposeVerifyEmail, s.cfg.verificationTTL)
	if err != nil {
		s.cfg.logger.ErrorContext(ctx, "failed to issue verification token", "user_id", user.ID, "error", err)
		return
	}
	msg := mail.VerificationMessage(user.Email, user.DisplayName, s.cfg.publicURL, issued.Token)
	if err := s.cfg.mailer.Send(ctx, msg); err != nil {
		s.cfg.logger.ErrorContext(ctx, "failed to send verification email", "user_id", user.ID, "error", err)
	}
}

// burnVerify spends one hash comparison so an unknown address costs as much
// as a wrong password.
func (s *UserService) burnVerify(pw string) {
	s.decoyOnce.Do(func() {
		s.decoyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	if s.decoyHash != "" {
		_ = s.hasher.Verify(pw, s.decoyHash)
	}
}

// Login checks credentials and issues a session token. Unknown addresses and
// wrong passwords produce the same error.
func (s *UserService) Login(ctx context.Context, address, pw string) (*LoginResult, error) {
	address = email.Normalize(address)
	user, err := s.users.FindByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.burnVerify(pw)
			s.audit.LogLogin(ctx, "", address, false, "unknown_email")
			return nil, dErrors.New(dErrors.CodeUnauthorized, errInvalidCredentials)
		}
		return nil, wrapStoreErr(err, "user")
	}
	if err := s.hasher.Verify(pw, user.PasswordHash); err != nil {
		s.audit.LogLogin(ctx, user.ID.String(), address, false, "invalid_password")
		if errors.Is(err, password.ErrMismatch) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, errInvalidCredentials)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	issued, err := s.tokens.Issue(user.ID.String(), session.PurposeSession, s.cfg.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}
	s.audit.LogLogin(ctx, user.ID.String(), address, true, "")
	return &LoginResult{Token: issued.Token, ExpiresAt: issued.ExpiresAt, User: user}, nil
}

// Logout revokes the session token for the rest of its lifetime.
func (s *UserService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token, session.PurposeSession)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	s.audit.LogLogout(ctx, claims.UserID, claims.ID)
	return nil
}

func (s *UserService) revoke(ctx context.Context, claims *session.Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.revocation.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	return nil
}

// ChangePassword replaces the password of the signed-in user after checking
// the current one.
func (s *UserService) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) error {
	user, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	userID := user.ID.String()
	if err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash); err != nil {
		s.audit.LogPasswordChange(ctx, userID, false, "invalid_current_password")
		if errors.Is(err, password.ErrMismatch) {
			return dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return wrapStoreErr(err, "user")
	}
	s.audit.LogPasswordChange(ctx, userID, true, "")
	if err := s.cfg.mailer.Send(ctx, mail.PasswordChangedMessage(user.Email, user.DisplayName)); err != nil {
		s.cfg.logger.WarnContext(ctx, "failed to send password change notice", "user_id", userID, "error", err)
	}
	return nil
}

// DeleteAccount removes the signed-in user and all of their posts in one
// transaction, then revokes the session it was called with.
func (s *UserService) DeleteAccount(ctx context.Context, token, pw string) (int, error) {
	user, err := s.currentUser(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.hasher.Verify(pw, user.PasswordHash); err != nil {
		s.audit.LogUnauthorizedAccess(ctx, "account:"+user.ID.String(), "invalid_password")
		if errors.Is(err, password.ErrMismatch) {
			return 0, dErrors.New(dErrors.CodeUnauthorized, "password is incorrect")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}

	var deleted int
	err = s.cfg.tx.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.posts.DeleteByAuthor(txCtx, user.ID)
		if err != nil {
			return wrapStoreErr(err, "posts")
		}
		if err := s.users.Delete(txCtx, user.ID); err != nil {
			return wrapStoreErr(err, "user")
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.audit.LogAccountDeleted(ctx, user.ID.String(), deleted)

	if token != "" {
		if claims, err := s.tokens.Validate(token, session.PurposeSession); err == nil {
			if err := s.revoke(ctx, claims); err != nil {
				s.cfg.logger.WarnContext(ctx, "failed to revoke session of deleted account",
					"user_id", user.ID, "error", err)
			}
		}
	}
	return deleted, nil
}

// Me returns the signed-in user.
func (s *UserService) Me(ctx context.Context) (*models.User, error) {
	return s.currentUser(ctx)
}

func (s *UserService) currentUser(ctx context.Context) (*models.User, error) {
	id, err := parseUserID(requestcontext.UserID(ctx))
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
		}
		return nil, wrapStoreErr(err, "user")
	}
	return user, nil
}
