// Package models holds the board's users and posts.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/email"
)

const (
	MaxTitleLength       = 200
	MaxBodyLength        = 10000
	MaxDisplayNameLength = 64
)

type User struct {
	ID            uuid.UUID
	Email         string
	DisplayName   string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser normalizes the email and checks the invariants a stored user
// must satisfy.
func NewUser(id uuid.UUID, address, displayName, passwordHash string, now time.Time) (*User, error) {
	address = email.Normalize(address)
	displayName = strings.TrimSpace(displayName)
	switch {
	case address == "":
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	case displayName == "":
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "display name is required")
	case len(displayName) > MaxDisplayNameLength:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "display name is too long")
	case passwordHash == "":
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &User{
		ID:           id,
		Email:        address,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

type Post struct {
	ID        uuid.UUID
	AuthorID  uuid.UUID
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPost(id, authorID uuid.UUID, title, body string, now time.Time) (*Post, error) {
	p := &Post{ID: id, AuthorID: authorID, CreatedAt: now, UpdatedAt: now}
	if err := p.Edit(&title, &body, now); err != nil {
		return nil, err
	}
	return p, nil
}

// Edit applies the non-nil fields. The post is unchanged when the result
// would be invalid.
func (p *Post) Edit(title, body *string, now time.Time) error {
	newTitle, newBody := p.Title, p.Body
	if title != nil {
		newTitle = strings.TrimSpace(*title)
	}
	if body != nil {
		newBody = strings.TrimSpace(*body)
	}
	switch {
	case newTitle == "":
		return dErrors.New(dErrors.CodeInvariantViolation, "title is required")
	case len(newTitle) > MaxTitleLength:
		return dErrors.New(dErrors.CodeInvariantViolation, "title is too long")
	case newBody == "":
		return dErrors.New(dErrors.CodeInvariantViolation, "body is required")
	case len(newBody) > MaxBodyLength:
		return dErrors.New(dErrors.CodeInvariantViolation, "body is too long")
	}
	p.Title, p.Body, p.UpdatedAt = newTitle, newBody, now
	return nil
}

// IsAuthor reports whether userID may modify the post.
func (p *Post) IsAuthor(userID uuid.UUID) bool {
	return p.AuthorID == userID
}
