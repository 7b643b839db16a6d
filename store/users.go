package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TierFree      = "free"
	TierUnlimited = "unlimited"

	// DefaultCredits is what new users get, and what a reset falls back to
	// for tiers without a plan.
	DefaultCredits = 3
)

// User is an account.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	APIKey           string    `json:"-"`
	Tier             string    `json:"tier"`
	CreditsRemaining int       `json:"credits_remaining"`
	CreditsUsedTotal int       `json:"credits_used_total"`
	CreatedAt        time.Time `json:"created_at"`
	LastReset        time.Time `json:"last_reset"`
}

// Unlimited reports whether the user's credits are never decremented.
func (u *User) Unlimited() bool {
	return u.Tier == TierUnlimited
}

// NewUser is the input to CreateUser.
type NewUser struct {
	Email        string
	PasswordHash string
	APIKey       string
}

const userColumns = `id, email, password_hash, api_key, tier, credits_remaining, credits_used_total, created_at, last_reset`

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a free-tier user with the default credits.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	now := s.now()
	u := &User{
		ID:               uuid.NewString(),
		Email:            NormalizeEmail(in.Email),
		PasswordHash:     in.PasswordHash,
		APIKey:           in.APIKey,
		Tier:             TierFree,
		CreditsRemaining: DefaultCredits,
		CreatedAt:        now,
		LastReset:        now,
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.PasswordHash, u.APIKey, u.Tier, u.CreditsRemaining, u.CreditsUsedTotal, u.CreatedAt, u.LastReset)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
}

func (s *Store) UserByAPIKey(ctx context.Context, key string) (*User, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE api_key = $1`, key)
}

func (s *Store) queryUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.conn.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.APIKey, &u.Tier,
		&u.CreditsRemaining, &u.CreditsUsedTotal, &u.CreatedAt, &u.LastReset,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// SetTier changes a user's tier.
func (s *Store) SetTier(ctx context.Context, userID, tier string) error {
	res, err := s.conn.ExecContext(ctx, `UPDATE users SET tier = $1 WHERE id = $2`, tier, userID)
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeCredit spends one credit and returns what is left. The decrement is
// a single conditional update, so concurrent calls never overspend. Users on
// the unlimited tier keep their balance; their usage total still grows.
func (s *Store) ConsumeCredit(ctx context.Context, userID string) (int, error) {
	var remaining int
	err := s.conn.QueryRowContext(ctx, `
		UPDATE users SET
			credits_remaining = CASE WHEN tier = 'unlimited' THEN credits_remaining ELSE credits_remaining - 1 END,
			credits_used_total = credits_used_total + 1
		WHERE id = $1 AND (tier = 'unlimited' OR credits_remaining > 0)
		RETURNING credits_remaining
	`, userID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		if _, lookupErr := s.UserByID(ctx, userID); lookupErr != nil {
			return 0, lookupErr
		}
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume credit: %w", err)
	}
	return remaining, nil
}

// ResetCredits sets every user's balance to their plan's monthly credits and
// returns how many users were reset.
func (s *Store) ResetCredits(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE users SET
			credits_remaining = COALESCE((SELECT monthly_credits FROM plans WHERE plans.id = users.tier), 3),
			last_reset = $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset users: %w", err)
	}
	return n, nil
}
