package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// UserType distinguishes the three kinds of accounts
type UserType string

const (
	UserRegular UserType = "regular"
	UserCompany UserType = "company"
	UserAdmin   UserType = "admin"
)

// Valid reports whether t is a known account type
func (t UserType) Valid() bool {
	return t == UserRegular || t == UserCompany || t == UserAdmin
}

// User is an account. Profile fields are populated according to Type.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	Type         UserType  `json:"userType"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	CompanyName  string    `json:"companyName,omitempty"`
	LogoURL      string    `json:"logoUrl,omitempty"`
	Department   string    `json:"department,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasRole checks whether the user is one of the given account types
func (u *User) HasRole(types ...UserType) bool {
	if u == nil {
		return false
	}
	for _, t := range types {
		if u.Type == t {
			return true
		}
	}
	return false
}

// Roles returns the role names exposed to clients
func (u *User) Roles() []string {
	if u == nil {
		return nil
	}
	return []string{string(u.Type)}
}

// AuthToken is an opaque bearer token issued at login
type AuthToken struct {
	Token      string     `json:"-"`
	UserID     string     `json:"userId"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// IsExpired checks if the token lifetime has elapsed
func (t *AuthToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// Masked returns the first 8 characters of the token for logging
func (t *AuthToken) Masked() string {
	if len(t.Token) < 8 {
		return "***"
	}
	return t.Token[:8] + "..."
}

// GenerateToken creates a cryptographically random 48-char hex token
func GenerateToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// RegisterRequest is the payload of the public registration endpoint
type RegisterRequest struct {
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	UserType    UserType `json:"userType"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	CompanyName string   `json:"companyName,omitempty"`
	LogoURL     string   `json:"-"`
}

// LoginRequest carries credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after a successful login
type AuthResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	UserType  UserType  `json:"userType"`
	Roles     []string  `json:"roles"`
	LogoURL   string    `json:"logoUrl,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateAdminRequest is used by admins to add another admin
type CreateAdminRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
}
