package models

// LoginRequest is the credential payload for the HTTP login endpoint.
type LoginRequest struct {
	Login    string `json:"login" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResponse carries a freshly issued token.
type AuthResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// ErrorResponse is the uniform error body for the HTTP API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
