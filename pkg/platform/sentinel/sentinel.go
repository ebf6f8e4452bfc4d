package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: row or key does not exist
//   - ErrConflict: unique constraint hit (duplicate email, duplicate id)
//   - ErrExpired: verification link or session past its expiry
//   - ErrUnavailable: backing store unreachable
//   - ErrInvalidState: caller passed a value the store cannot honour (zero TTL)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
