package records

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/raphaelgruber/scribe-go/internal/models"
)

// MemoryStore is an in-process record store. It backs tests and the
// degraded mode used when the database is unreachable.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[models.RecordRef]models.Record
	seq  []models.RecordRef
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[models.RecordRef]models.Record)}
}

// Search matches records by case-insensitive name substring, in
// insertion order.
func (s *MemoryStore) Search(_ context.Context, query string, limit int) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var out []models.Record
	for _, ref := range s.seq {
		rec := s.recs[ref]
		if strings.Contains(strings.ToLower(rec.Name), q) {
			out = append(out, cloneRecord(rec))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Create inserts a new record and returns its generated ref.
func (s *MemoryStore) Create(_ context.Context, entity models.Entity) (models.RecordRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := models.RecordRef(uuid.New().String()[:8])
	s.recs[ref] = models.Record{
		Ref:   ref,
		Name:  entity.Name,
		Class: entity.Class,
		Props: cloneProps(entity.Props),
	}
	s.seq = append(s.seq, ref)
	return ref, nil
}

// Update merges the entity's properties into an existing record.
func (s *MemoryStore) Update(_ context.Context, ref models.RecordRef, entity models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[ref]
	if !ok {
		return ErrRecordNotFound
	}
	if rec.Props == nil {
		rec.Props = make(map[string]string, len(entity.Props))
	} else {
		rec.Props = cloneProps(rec.Props)
	}
	for k, v := range entity.Props {
		rec.Props[k] = v
	}
	s.recs[ref] = rec
	return nil
}

// Len reports how many records the store holds.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func cloneRecord(r models.Record) models.Record {
	r.Props = cloneProps(r.Props)
	return r
}

func cloneProps(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	c := make(map[string]string, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
