package models

import (
	"strings"
	"time"
)

// User represents an account in the system
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Not serialized
	Gender       string    `json:"gender"`
	IsVerified   bool      `json:"isVerified"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FirstName returns the first word of the full name, used in email greetings
func (u *User) FirstName() string {
	if first, _, ok := strings.Cut(u.FullName, " "); ok {
		return first
	}
	return u.FullName
}
