package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest accepts either an email address or a student matricule as the
// login identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// RegisterRequest is the public self-registration payload; it always creates
// a student account. The binding tags run at the handler, the validate tags
// cover callers that skip gin binding (seeding, tests).
type RegisterRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=120" validate:"required,min=2,max=120"`
	Email     string `json:"email" binding:"required,email" validate:"required,email"`
	Matricule string `json:"matricule" binding:"required,min=4,max=32" validate:"required,min=4,max=32"`
	Faculty   string `json:"faculty" binding:"required" validate:"required"`
	Program   string `json:"program" binding:"required" validate:"required"`
	Password  string `json:"password" binding:"required,min=8" validate:"required,min=8"`
	Phone     string `json:"phone,omitempty"`
}

// AdminCreateUserRequest is the admin-only payload for provisioning accounts
// of any role. Role-conditional field rules are enforced in the service.
type AdminCreateUserRequest struct {
	Name      string   `json:"name" binding:"required,min=2,max=120" validate:"required,min=2,max=120"`
	Email     string   `json:"email" binding:"required,email" validate:"required,email"`
	Role      UserRole `json:"role" binding:"required" validate:"required"`
	Matricule string   `json:"matricule,omitempty"`
	Faculty   string   `json:"faculty,omitempty"`
	Program   string   `json:"program,omitempty"`
	Programs  []string `json:"programs,omitempty"`
	Password  string   `json:"password" binding:"required,min=8" validate:"required,min=8"`
	Phone     string   `json:"phone,omitempty"`
}

// AuthResponse is returned on successful login or registration.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// JWTClaims is the token payload. The scoping fields ride along so the
// middleware can build a Scope without a user lookup per request.
type JWTClaims struct {
	UserID    string   `json:"uid"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	Matricule string   `json:"matricule,omitempty"`
	Faculty   string   `json:"faculty,omitempty"`
	Program   string   `json:"program,omitempty"`
	Programs  []string `json:"programs,omitempty"`
	jwt.RegisteredClaims
}
