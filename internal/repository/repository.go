package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/olatech/account-service/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when an insert violates the case-folded
	// unique indexes on email or username. Uniqueness is enforced by the
	// database, not by application-level checks, so the check-then-insert
	// race resolves here.
	ErrDuplicate = errors.New("email or username already exists")
)

const uniqueViolation = "23505"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO users (id, full_name, email, username, password_hash, gender, is_verified, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(query, user.ID, user.FullName, user.Email, user.Username,
		user.PasswordHash, user.Gender, user.IsVerified, user.IsAdmin).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email, case-insensitively
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	return r.findUser(`LOWER(email) = LOWER($1)`, email)
}

// FindUserByUsername retrieves a user by username, case-insensitively
func (r *Repository) FindUserByUsername(username string) (*models.User, error) {
	return r.findUser(`LOWER(username) = LOWER($1)`, username)
}

// FindUserByID retrieves a user by its identifier
func (r *Repository) FindUserByID(id string) (*models.User, error) {
	return r.findUser(`id = $1`, id)
}

func (r *Repository) findUser(where string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, full_name, email, username, password_hash, gender, is_verified, is_admin, created_at, updated_at
		FROM users
		WHERE ` + where
	err := r.db.QueryRow(query, arg).
		Scan(&user.ID, &user.FullName, &user.Email, &user.Username, &user.PasswordHash,
			&user.Gender, &user.IsVerified, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// SetVerified marks the user as verified
func (r *Repository) SetVerified(id string) error {
	return r.update(`UPDATE users SET is_verified = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
}

// SetPasswordHash replaces the stored password hash
func (r *Repository) SetPasswordHash(id, hash string) error {
	return r.update(`UPDATE users SET password_hash = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id, hash)
}

// SetAdmin grants the user the admin flag
func (r *Repository) SetAdmin(id string) error {
	return r.update(`UPDATE users SET is_admin = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
}

func (r *Repository) update(query string, args ...interface{}) error {
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
