package audit

import (
	"time"

	dErrors "corkboard/pkg/domain-errors"
)

// RetentionPeriod is how long entries are kept before the retention worker
// purges them.
const RetentionPeriod = 90 * 24 * time.Hour

// Category classifies audit events by their primary purpose.
type Category string

const (
	// CategoryCompliance covers account lifecycle events that must be kept
	// for the full retention window.
	CategoryCompliance Category = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// failed logins, denials, rate limit hits.
	CategorySecurity Category = "security"

	// CategoryOperations covers routine activity such as post edits.
	CategoryOperations Category = "operations"
)

// Action is the fixed vocabulary of audited events.
type Action string

const (
	// Account events
	ActionRegister       Action = "register"
	ActionEmailVerified  Action = "email_verified"
	ActionLogin          Action = "login"
	ActionLoginFailed    Action = "login_failed"
	ActionLogout         Action = "logout"
	ActionPasswordChange Action = "password_change"
	ActionAccountDelete  Action = "account_delete"

	// Post events
	ActionPostCreate Action = "post_create"
	ActionPostUpdate Action = "post_update"
	ActionPostDelete Action = "post_delete"

	// Security middleware events
	ActionRateLimitExceeded  Action = "rate_limit_exceeded"
	ActionUnauthorizedAccess Action = "unauthorized_access"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]Category{
	ActionRegister:      CategoryCompliance,
	ActionEmailVerified: CategoryCompliance,
	ActionAccountDelete: CategoryCompliance,

	ActionLoginFailed:        CategorySecurity,
	ActionPasswordChange:     CategorySecurity,
	ActionRateLimitExceeded:  CategorySecurity,
	ActionUnauthorizedAccess: CategorySecurity,

	ActionLogin:      CategoryOperations,
	ActionLogout:     CategoryOperations,
	ActionPostCreate: CategoryOperations,
	ActionPostUpdate: CategoryOperations,
	ActionPostDelete: CategoryOperations,
}

// AllActions lists every action in a stable order.
var AllActions = []Action{
	ActionRegister, ActionEmailVerified, ActionLogin, ActionLoginFailed,
	ActionLogout, ActionPasswordChange, ActionAccountDelete,
	ActionPostCreate, ActionPostUpdate, ActionPostDelete,
	ActionRateLimitExceeded, ActionUnauthorizedAccess,
}

func (a Action) IsValid() bool {
	_, ok := actionCategories[a]
	return ok
}

func (a Action) String() string {
	return string(a)
}

// Category returns the Category for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() Category {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// ParseAction validates an action name taken from user input.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown audit action: "+s)
	}
	return a, nil
}

// Entry is one append-only audit record. UserID is empty for events that
// happen before authentication.
type Entry struct {
	ID           string         `json:"id"`
	Category     Category       `json:"category"`
	UserID       string         `json:"user_id,omitempty"`
	Action       Action         `json:"action"`
	Resource     string         `json:"resource,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ExpiresAt is when the retention worker may purge the entry.
func (e Entry) ExpiresAt() time.Time {
	return e.Timestamp.Add(RetentionPeriod)
}

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// Filter selects entries for Search. Zero fields match everything.
type Filter struct {
	UserID     string
	Action     Action
	Resource   string
	ResourceID string
	Success    *bool
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// Normalize clamps paging to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether e satisfies every set field of f. Since is
// inclusive, Until exclusive.
func (f Filter) Matches(e Entry) bool {
	switch {
	case f.UserID != "" && e.UserID != f.UserID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.Resource != "" && e.Resource != f.Resource:
		return false
	case f.ResourceID != "" && e.ResourceID != f.ResourceID:
		return false
	case f.Success != nil && e.Success != *f.Success:
		return false
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && !e.Timestamp.Before(f.Until):
		return false
	}
	return true
}

// Stats aggregates entries recorded since Since, optionally for one user.
type Stats struct {
	UserID     string           `json:"user_id,omitempty"`
	Since      time.Time        `json:"since"`
	Days       int              `json:"days"`
	Total      int              `json:"total"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	ByAction   map[Action]int   `json:"by_action"`
	ByCategory map[Category]int `json:"by_category"`
}

// NewStats returns zeroed stats ready for accumulation.
func NewStats(userID string, since time.Time) *Stats {
	return &Stats{
		UserID:     userID,
		Since:      since,
		ByAction:   make(map[Action]int),
		ByCategory: make(map[Category]int),
	}
}

// Add folds n entries with the given action and outcome into s.
func (s *Stats) Add(action Action, success bool, n int) {
	s.Total += n
	if success {
		s.Successful += n
	} else {
		s.Failed += n
	}
	s.ByAction[action] += n
	s.ByCategory[action.Category()] += n
}
