// Package storage defines the persistence interface for compression runs.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/rankpress/internal/models"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Storage defines run history persistence operations.
type Storage interface {
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error)
	ListRunsByImage(ctx context.Context, imageID string) ([]*models.Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Stats
	CountRuns(ctx context.Context) (int64, error)

	Close() error
}
