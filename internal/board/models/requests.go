package models

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72,password"`
	DisplayName string `json:"display_name" validate:"omitempty,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,password"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

type CreatePostRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required,max=10000"`
}

// UpdatePostRequest is a partial update; absent fields are left alone.
type UpdatePostRequest struct {
	Title *string `json:"title" validate:"omitempty,max=200"`
	Body  *string `json:"body" validate:"omitempty,max=10000"`
}

// ChangedFields lists the fields present in the request.
func (r UpdatePostRequest) ChangedFields() []string {
	var fields []string
	if r.Title != nil {
		fields = append(fields, "title")
	}
	if r.Body != nil {
		fields = append(fields, "body")
	}
	return fields
}
