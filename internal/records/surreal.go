package records

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/scribe-go/internal/db"
	"github.com/raphaelgruber/scribe-go/internal/models"
)

// SurrealStore keeps records in the SurrealDB record table.
type SurrealStore struct {
	client *db.Client
}

// NewSurrealStore creates a record store on an established client.
func NewSurrealStore(client *db.Client) *SurrealStore {
	return &SurrealStore{client: client}
}

type recordRow struct {
	ID    surrealmodels.RecordID `json:"id"`
	Name  string                 `json:"name"`
	Class string                 `json:"class"`
	Props map[string]string      `json:"props,omitempty"`
}

func (r recordRow) toRecord() (models.Record, error) {
	id, ok := r.ID.ID.(string)
	if !ok {
		return models.Record{}, fmt.Errorf("unexpected record id type: %T", r.ID.ID)
	}
	return models.Record{
		Ref:   models.RecordRef(id),
		Name:  r.Name,
		Class: r.Class,
		Props: r.Props,
	}, nil
}

// Search matches records by case-insensitive name substring.
func (s *SurrealStore) Search(ctx context.Context, query string, limit int) ([]models.Record, error) {
	results, err := surrealdb.Query[[]recordRow](ctx, s.client.DB(), `
		SELECT id, name, class, props FROM record
		WHERE string::lowercase(name) CONTAINS string::lowercase($q)
		LIMIT $limit
	`, map[string]any{"q": query, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("search records %q: %w", query, err)
	}

	var rows []recordRow
	if results != nil && len(*results) > 0 {
		rows = (*results)[0].Result
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Create inserts a new record and returns the generated ref.
func (s *SurrealStore) Create(ctx context.Context, entity models.Entity) (models.RecordRef, error) {
	results, err := surrealdb.Query[[]recordRow](ctx, s.client.DB(), `
		CREATE record SET name = $name, class = $class, props = $props
	`, map[string]any{
		"name":  entity.Name,
		"class": entity.Class,
		"props": entity.Props,
	})
	if err != nil {
		return "", fmt.Errorf("create record %q: %w", entity.Name, err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", fmt.Errorf("create record %q: no row returned", entity.Name)
	}
	rec, err := (*results)[0].Result[0].toRecord()
	if err != nil {
		return "", err
	}
	return rec.Ref, nil
}

// Update merges the entity's properties into an existing record. Known
// props are overwritten, unknown ones are preserved.
func (s *SurrealStore) Update(ctx context.Context, ref models.RecordRef, entity models.Entity) error {
	_, err := surrealdb.Query[any](ctx, s.client.DB(), `
		UPDATE type::record("record", $id) MERGE {
			props: $props,
			updated: time::now()
		}
	`, map[string]any{
		"id":    string(ref),
		"props": entity.Props,
	})
	if err != nil {
		return fmt.Errorf("update record %s: %w", ref, err)
	}
	return nil
}
