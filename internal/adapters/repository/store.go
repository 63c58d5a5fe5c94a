// Package repository stores evaluation results for later retrieval.
package repository

import (
	"context"

	"github.com/rebooked/apsmatch/internal/domain/model"
)

// Store provides read/write access to evaluation results.
type Store interface {
	// Put inserts or replaces the evaluation with e.ID.
	Put(ctx context.Context, e model.Evaluation) error

	// Get returns the evaluation with the given id.
	// Returns ErrNotFound if the id is unknown or expired.
	Get(ctx context.Context, id string) (model.Evaluation, error)

	// Delete removes the evaluation with id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored evaluations.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
