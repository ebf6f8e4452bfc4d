package audit

import (
	"context"

	"corkboard/pkg/platform/privacy"
	"corkboard/pkg/requestcontext"
)

const (
	resourceUser    = "user"
	resourcePost    = "post"
	resourceSession = "session"
)

// LogRegistration records a new account.
func (r *Recorder) LogRegistration(ctx context.Context, userID, email string) {
	r.Record(ctx, Entry{
		UserID:     userID,
		Action:     ActionRegister,
		Resource:   resourceUser,
		ResourceID: userID,
		Success:    true,
		Metadata:   map[string]any{"email": privacy.MaskEmail(email)},
	})
}

// LogEmailVerified records a completed email verification.
func (r *Recorder) LogEmailVerified(ctx context.Context, userID string) {
	r.Record(ctx, Entry{
		UserID:     userID,
		Action:     ActionEmailVerified,
		Resource:   resourceUser,
		ResourceID: userID,
		Success:    true,
	})
}

// LogLogin records a login attempt. Failed attempts are recorded as
// login_failed with the reason; userID may be empty when the account is
// unknown.
func (r *Recorder) LogLogin(ctx context.Context, userID, email string, success bool, reason string) {
	action := ActionLogin
	if !success {
		action = ActionLoginFailed
	}
	r.Record(ctx, Entry{
		UserID:       userID,
		Action:       action,
		Resource:     resourceSession,
		Success:      success,
		ErrorMessage: reason,
		Metadata:     map[string]any{"email": privacy.MaskEmail(email)},
	})
}

// LogLogout records the end of a session.
func (r *Recorder) LogLogout(ctx context.Context, userID, sessionID string) {
	r.Record(ctx, Entry{
		UserID:     userID,
		Action:     ActionLogout,
		Resource:   resourceSession,
		ResourceID: sessionID,
		Success:    true,
	})
}

// LogPasswordChange records a password change attempt.
func (r *Recorder) LogPasswordChange(ctx context.Context, userID string, success bool, reason string) {
	r.Record(ctx, Entry{
		UserID:       userID,
		Action:       ActionPasswordChange,
		Resource:     resourceUser,
		ResourceID:   userID,
		Success:      success,
		ErrorMessage: reason,
	})
}

// LogAccountDeleted records an account deletion and how many posts went
// with it.
func (r *Recorder) LogAccountDeleted(ctx context.Context, userID string, postsDeleted int) {
	r.Record(ctx, Entry{
		UserID:     userID,
		Action:     ActionAccountDelete,
		Resource:   resourceUser,
		ResourceID: userID,
		Success:    true,
		Metadata:   map[string]any{"posts_deleted": postsDeleted},
	})
}

func (r *Recorder) LogPostCreated(ctx context.Context, userID, postID string) {
	r.logPost(ctx, ActionPostCreate, userID, postID, nil)
}

// LogPostUpdated records an edit and the names of the changed fields.
func (r *Recorder) LogPostUpdated(ctx context.Context, userID, postID string, fields []string) {
	r.logPost(ctx, ActionPostUpdate, userID, postID, map[string]any{"fields": fields})
}

func (r *Recorder) LogPostDeleted(ctx context.Context, userID, postID string) {
	r.logPost(ctx, ActionPostDelete, userID, postID, nil)
}

func (r *Recorder) logPost(ctx context.Context, action Action, userID, postID string, metadata map[string]any) {
	r.Record(ctx, Entry{
		UserID:     userID,
		Action:     action,
		Resource:   resourcePost,
		ResourceID: postID,
		Success:    true,
		Metadata:   metadata,
	})
}

// LogRateLimitExceeded records a rate limit denial. The signed-in user, if
// any, is taken from ctx.
func (r *Recorder) LogRateLimitExceeded(ctx context.Context, bucket, key string) {
	r.Record(ctx, Entry{
		UserID:       requestcontext.UserID(ctx),
		Action:       ActionRateLimitExceeded,
		Resource:     bucket,
		Success:      false,
		ErrorMessage: "rate limit exceeded",
		Metadata:     map[string]any{"bucket": bucket, "key": key},
	})
}

// LogUnauthorizedAccess records a denied request: missing session, CSRF
// failure, or an action on someone else's resource.
func (r *Recorder) LogUnauthorizedAccess(ctx context.Context, resource, reason string) {
	r.Record(ctx, Entry{
		UserID:       requestcontext.UserID(ctx),
		Action:       ActionUnauthorizedAccess,
		Resource:     resource,
		Success:      false,
		ErrorMessage: reason,
	})
}
