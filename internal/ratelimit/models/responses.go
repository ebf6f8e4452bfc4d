package models

import "time"

// RateLimitExceededResponse is the API response when rate limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	Bucket     Bucket    `json:"bucket"`
	RetryAfter int       `json:"retry_after"` // seconds
	ResetAt    time.Time `json:"reset_at"`
}

// ResetRequest is the admin request to clear one identity's counter.
type ResetRequest struct {
	Bucket string `json:"bucket" validate:"required"`
	IP     string `json:"ip" validate:"required"`
	UserID string `json:"user_id"`
}

// StatsResponse lists occupancy for every bucket.
type StatsResponse struct {
	Store   string        `json:"store"`
	Buckets []BucketStats `json:"buckets"`
}
