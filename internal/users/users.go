package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrBadToken           = errors.New("token is invalid or expired")
)

const tokenTTL = 24 * time.Hour

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// InsertUser creates an account with a hashed password and an email
// verification token. The token is returned so the caller can mail it.
func (c *Conf) InsertUser(ctx context.Context, nu NewUser) (User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	verifyToken := uuid.NewString()
	query := `
		INSERT INTO users (id, name, email, password_hash, verify_token, verify_token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, name, email, role, email_verified, created_at, updated_at
	`
	var u User
	err = c.db.QueryRowContext(ctx, query,
		uuid.NewString(), nu.Name, nu.Email, string(hash), verifyToken, time.Now().Add(tokenTTL)).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, "", ErrDuplicateEmail
		}
		return User{}, "", fmt.Errorf("failed to insert user: %w", err)
	}
	return u, verifyToken, nil
}

// Authenticate checks the credentials and returns the user. The same error
// comes back for a missing account and a wrong password.
func (c *Conf) Authenticate(ctx context.Context, l Login) (User, error) {
	query := `
		SELECT id, name, email, password_hash, role, email_verified, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var u User
	var hash string
	err := c.db.QueryRowContext(ctx, query, l.Email).
		Scan(&u.ID, &u.Name, &u.Email, &hash, &u.Role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(l.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// VerifyEmail redeems a verification token. Expired or unknown tokens fail with
// ErrBadToken; the token is cleared on success so it cannot be replayed.
func (c *Conf) VerifyEmail(ctx context.Context, token string) error {
	query := `
		UPDATE users
		SET email_verified = TRUE, verify_token = NULL, verify_token_expires_at = NULL,
		    updated_at = NOW()
		WHERE verify_token = $1 AND verify_token_expires_at > NOW()
	`
	res, err := c.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrBadToken
	}
	return nil
}

// ResetVerifyToken issues a fresh verification token for an unverified account.
func (c *Conf) ResetVerifyToken(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	query := `
		UPDATE users
		SET verify_token = $1, verify_token_expires_at = $2, updated_at = NOW()
		WHERE email = $3 AND email_verified = FALSE
	`
	res, err := c.db.ExecContext(ctx, query, token, time.Now().Add(tokenTTL), email)
	if err != nil {
		return "", fmt.Errorf("failed to reset verify token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return "", ErrNotFound
	}
	return token, nil
}

// IssueResetToken creates a password-reset token for the account.
func (c *Conf) IssueResetToken(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	query := `
		UPDATE users
		SET reset_token = $1, reset_token_expires_at = $2, updated_at = NOW()
		WHERE email = $3
	`
	res, err := c.db.ExecContext(ctx, query, token, time.Now().Add(tokenTTL), email)
	if err != nil {
		return "", fmt.Errorf("failed to issue reset token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return "", ErrNotFound
	}
	return token, nil
}

// ResetPassword redeems a reset token and overwrites the password.
func (c *Conf) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		UPDATE users
		SET password_hash = $1, reset_token = NULL, reset_token_expires_at = NULL,
		    updated_at = NOW()
		WHERE reset_token = $2 AND reset_token_expires_at > NOW()
	`
	res, err := c.db.ExecContext(ctx, query, string(hash), token)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrBadToken
	}
	return nil
}

// GetByID fetches one user.
func (c *Conf) GetByID(ctx context.Context, userID string) (User, error) {
	query := `
		SELECT id, name, email, role, email_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u User
	err := c.db.QueryRowContext(ctx, query, userID).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}
