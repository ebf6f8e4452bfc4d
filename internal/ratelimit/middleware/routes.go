package middleware

import (
	"net/http"
	"strings"

	"corkboard/internal/ratelimit/models"
)

// Route prefixes the classifier recognises.
const (
	authPrefix  = "/api/auth/"
	postsPath   = "/api/posts"
	accountPath = "/api/account"
)

// BucketForRequest picks the bucket for a request from its method and path.
// Credential checks share the login bucket; endpoints that send mail share
// sendEmail; everything unrecognised is general.
func BucketForRequest(r *http.Request) models.Bucket {
	path := strings.TrimSuffix(r.URL.Path, "/")
	method := r.Method

	switch {
	case strings.HasPrefix(path, authPrefix):
		if method != http.MethodPost {
			return models.BucketGeneral
		}
		switch strings.TrimPrefix(path, authPrefix) {
		case "login", "register":
			return models.BucketLogin
		case "resend-verification":
			return models.BucketSendEmail
		}
	case path == accountPath+"/password" && method == http.MethodPost:
		return models.BucketLogin
	case path == postsPath && method == http.MethodPost:
		return models.BucketCreatePost
	case strings.HasPrefix(path, postsPath+"/"):
		switch method {
		case http.MethodPut, http.MethodPatch, http.MethodDelete:
			return models.BucketUpdatePost
		}
	}
	return models.BucketGeneral
}
