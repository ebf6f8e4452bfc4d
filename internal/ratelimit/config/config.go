// Package config holds the per-bucket rate limit policies.
package config

import (
	"time"

	"corkboard/internal/ratelimit/models"
)

// DefaultCapacity bounds how many identities each bucket tracks in memory.
const DefaultCapacity = 10000

// Config maps every bucket to its fixed-window limit.
type Config struct {
	Limits   map[models.Bucket]models.Limit
	Capacity int
}

// Production returns the limits enforced on the public deployment.
func Production() *Config {
	return &Config{
		Capacity: DefaultCapacity,
		Limits: map[models.Bucket]models.Limit{
			models.BucketLogin:      {Window: 15 * time.Minute, Max: 5},
			models.BucketCreatePost: {Window: time.Hour, Max: 10},
			models.BucketUpdatePost: {Window: time.Hour, Max: 30},
			models.BucketSendEmail:  {Window: time.Hour, Max: 3},
			models.BucketGeneral:    {Window: time.Minute, Max: 100},
		},
	}
}

// Development keeps login strict but relaxes everything else so a local
// session isn't locked out after a handful of test posts.
func Development() *Config {
	return &Config{
		Capacity: DefaultCapacity,
		Limits: map[models.Bucket]models.Limit{
			models.BucketLogin:      {Window: 15 * time.Minute, Max: 5},
			models.BucketCreatePost: {Window: time.Minute, Max: 5},
			models.BucketUpdatePost: {Window: time.Minute, Max: 20},
			models.BucketSendEmail:  {Window: time.Minute, Max: 10},
			models.BucketGeneral:    {Window: time.Minute, Max: 1000},
		},
	}
}

// ForEnvironment picks the table for a config environment name.
func ForEnvironment(production bool) *Config {
	if production {
		return Production()
	}
	return Development()
}

// LimitFor returns the bucket's limit, falling back to the general bucket.
func (c *Config) LimitFor(bucket models.Bucket) models.Limit {
	if l, ok := c.Limits[bucket]; ok {
		return l
	}
	return c.Limits[models.BucketGeneral]
}
