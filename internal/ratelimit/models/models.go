package models

import (
	"time"

	dErrors "corkboard/pkg/domain-errors"
)

// Bucket names a rate-limit policy. Every bucket keeps its own counters, so a
// burst of logins never eats into a user's post quota.
type Bucket string

const (
	// BucketLogin guards credential checks: login and registration.
	BucketLogin Bucket = "login"
	// BucketCreatePost guards new posts.
	BucketCreatePost Bucket = "createPost"
	// BucketUpdatePost guards edits and deletes of existing posts.
	BucketUpdatePost Bucket = "updatePost"
	// BucketSendEmail guards anything that makes the server send mail.
	BucketSendEmail Bucket = "sendEmail"
	// BucketGeneral is the catch-all for every other API route.
	BucketGeneral Bucket = "general"
)

// AllBuckets lists every bucket in a stable order.
var AllBuckets = []Bucket{BucketLogin, BucketCreatePost, BucketUpdatePost, BucketSendEmail, BucketGeneral}

// IsValid checks if the bucket is one of the supported enum values.
func (b Bucket) IsValid() bool {
	switch b {
	case BucketLogin, BucketCreatePost, BucketUpdatePost, BucketSendEmail, BucketGeneral:
		return true
	}
	return false
}

func (b Bucket) String() string {
	return string(b)
}

// ParseBucket validates a bucket name taken from user input.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown rate limit bucket: "+s)
	}
	return b, nil
}

// Limit is a fixed-window policy: at most Max requests per Window.
type Limit struct {
	Window time.Duration
	Max    int
}

// Record is the counter kept for one identity in one bucket. WindowStart is
// the first request of the window; the window never slides.
type Record struct {
	Key         string
	Count       int
	WindowStart time.Time
}

// ExpiresAt is when the record's window closes.
func (r Record) ExpiresAt(window time.Duration) time.Time {
	return r.WindowStart.Add(window)
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded is set when the check was answered by the in-memory fallback.
	Degraded bool `json:"-"`
}

// BucketStats summarizes in-memory occupancy for one bucket.
type BucketStats struct {
	Bucket   Bucket `json:"bucket"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Max      int    `json:"max"`
	Window   string `json:"window"`
}
