// Package session issues and validates the HS256 tokens that identify a
// signed-in user, plus single-purpose email verification tokens.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "corkboard/pkg/domain-errors"
	authmw "corkboard/pkg/platform/middleware/auth"
)

// Purpose stops a token minted for one flow being replayed in another.
type Purpose string

const (
	PurposeSession     Purpose = "session"
	PurposeVerifyEmail Purpose = "verify_email"
)

// Claims are the JWT claims carried by every corkboard token.
type Claims struct {
	UserID  string  `json:"uid"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token and the metadata needed to revoke it.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Service signs and verifies tokens with a shared HMAC secret.
type Service struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(signingKey, issuer string, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue signs a token for userID valid for ttl.
func (s *Service) Issue(userID string, purpose Purpose, ttl time.Duration) (*Issued, error) {
	now := s.now()
	jti := uuid.NewString()
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return &Issued{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// Validate verifies signature, issuer, expiry and purpose.
func (s *Service) Validate(tokenString string, purpose Purpose) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Purpose != purpose {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token not valid for this purpose")
	}
	if claims.UserID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return claims, nil
}

// ValidateToken adapts session tokens to the auth middleware.
func (s *Service) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := s.Validate(tokenString, PurposeSession)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{UserID: claims.UserID, JTI: claims.ID}, nil
}
