package auth

import (
	"time"
)

// User is the profile returned by the auth service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// UserClaims are the JWT claims carried in access tokens issued by the
// auth service.
type UserClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// LoginRequest is a user login request.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is a user registration request.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Username string `json:"username" binding:"required,min=2"`
}

// Session is a successful login or registration response.
type Session struct {
	User        User   `json:"user"`
	AccessToken string `json:"token"`
}

// AuthError is an error with an HTTP-status-like code from the auth service.
type AuthError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrInvalidCredentials = AuthError{Status: 401, Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
	ErrInvalidToken       = AuthError{Status: 401, Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired       = AuthError{Status: 401, Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized       = AuthError{Status: 401, Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrEmailExists        = AuthError{Status: 409, Code: "EMAIL_EXISTS", Message: "email already registered"}
	ErrUpstreamDown       = AuthError{Status: 502, Code: "AUTH_UNAVAILABLE", Message: "authentication service unavailable"}
)
