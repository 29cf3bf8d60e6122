// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// Repository defines the interface for persisting users, datasets and attempts.
// Lookups that find nothing return a nil record and a nil error.
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetDataset retrieves the custom dataset uploaded by a user.
	GetDataset(ctx context.Context, userID string) (*domain.Dataset, error)

	// UpsertDataset stores a user's dataset, replacing any previous upload.
	UpsertDataset(ctx context.Context, ds *domain.Dataset) error

	// DeleteDataset removes a user's dataset and reports whether one existed.
	DeleteDataset(ctx context.Context, userID string) (bool, error)

	// GetAttempt retrieves the attempt stored in a slot.
	GetAttempt(ctx context.Context, userID string, attemptNumber int) (*domain.Attempt, error)

	// UpsertAttempt replaces the attempt stored in (UserID, AttemptNumber).
	// The slot keeps its original id and creation time.
	UpsertAttempt(ctx context.Context, a *domain.Attempt) error

	// ListAttempts returns a user's attempts ordered by attempt number.
	ListAttempts(ctx context.Context, userID string) ([]*domain.Attempt, error)

	// PurgeInactiveUsers deletes users idle longer than ttl together with
	// their datasets and attempts.
	PurgeInactiveUsers(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
