// Package records is the system of record for resolved entities. It
// defines the store contract plus a throttled, retrying decorator that
// every caller is expected to go through.
package records

import (
	"context"
	"errors"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

// ErrRecordNotFound indicates an update addressed a ref that does not
// exist.
var ErrRecordNotFound = errors.New("record not found")

// Store persists resolved entity records.
type Store interface {
	// Search returns up to limit records whose name matches the query.
	Search(ctx context.Context, query string, limit int) ([]models.Record, error)
	// Create inserts a new record for the entity and returns its ref.
	Create(ctx context.Context, entity models.Entity) (models.RecordRef, error)
	// Update merges the entity's fields into an existing record.
	Update(ctx context.Context, ref models.RecordRef, entity models.Entity) error
}
