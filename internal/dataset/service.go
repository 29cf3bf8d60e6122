// Package dataset loads the samples an attempt is scored against: a user's
// uploaded CSV when present, otherwise the bundled dataset for the task.
package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// Repository is the storage the Service needs.
type Repository interface {
	GetDataset(ctx context.Context, userID string) (*domain.Dataset, error)
	UpsertDataset(ctx context.Context, ds *domain.Dataset) error
	DeleteDataset(ctx context.Context, userID string) (bool, error)
}

// Service manages per-user datasets.
type Service struct {
	repo Repository
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Load returns the samples to classify for userID. A custom dataset takes
// precedence over the built-in one for taskType.
func (s *Service) Load(ctx context.Context, userID, taskType string) ([]domain.Sample, error) {
	ds, err := s.repo.GetDataset(ctx, userID)
	if err != nil {
		return nil, &domain.ServiceError{Op: "load dataset", Err: err}
	}
	if ds != nil && len(ds.Samples) > 0 {
		slog.Debug("Using custom dataset", "user_id", userID, "rows", len(ds.Samples))
		return ds.Samples, nil
	}
	return BuiltIn(taskType)
}

// Import parses a CSV upload and stores it as the user's dataset.
func (s *Service) Import(ctx context.Context, userID, filename string, r io.Reader) (*domain.Dataset, error) {
	samples, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ds := &domain.Dataset{
		UserID:  userID,
		Samples: samples,
		Metadata: domain.DatasetMetadata{
			RowCount:         len(samples),
			OriginalFilename: filename,
			Labels:           domain.Labels(samples),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.UpsertDataset(ctx, ds); err != nil {
		return nil, &domain.ServiceError{Op: "store dataset", Err: err}
	}

	slog.Info("Dataset imported",
		"user_id", userID,
		"rows", ds.Metadata.RowCount,
		"labels", len(ds.Metadata.Labels),
	)
	return ds, nil
}

// Get returns the user's uploaded dataset.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Dataset, error) {
	ds, err := s.repo.GetDataset(ctx, userID)
	if err != nil {
		return nil, &domain.ServiceError{Op: "load dataset", Err: err}
	}
	if ds == nil {
		return nil, &domain.NotFoundError{Resource: "dataset", Key: userID}
	}
	return ds, nil
}

// Delete removes the user's uploaded dataset.
func (s *Service) Delete(ctx context.Context, userID string) error {
	deleted, err := s.repo.DeleteDataset(ctx, userID)
	if err != nil {
		return &domain.ServiceError{Op: "delete dataset", Err: fmt.Errorf("user %s: %w", userID, err)}
	}
	if !deleted {
		return &domain.NotFoundError{Resource: "dataset", Key: userID}
	}
	return nil
}
