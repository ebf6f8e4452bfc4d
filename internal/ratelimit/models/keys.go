package models

import "strings"

const anonymousUser = "anonymous"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
//
// Example: a forwarded address "1.2.3.4:evil" becomes "1.2.3.4_evil".
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewKey builds the identity key "<ip>:<userID>". An empty user ID is
// "anonymous", so signed-out visitors behind one address share a counter.
// IPv6 addresses keep their colons escaped like any other segment.
func NewKey(ip, userID string) string {
	if userID == "" {
		userID = anonymousUser
	}
	return SanitizeKeySegment(ip) + ":" + SanitizeKeySegment(userID)
}
