package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type recordRepoMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*MedicalRecord
	now     func() time.Time
}

// NewRecordRepoMemory returns a process-local store used when no database is
// configured.
func NewRecordRepoMemory() RecordRepository {
	return &recordRepoMemory{
		records: make(map[uuid.UUID]*MedicalRecord),
		now:     time.Now,
	}
}

func (r *recordRepoMemory) Create(_ context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	if rec.FHIRID == "" {
		rec.FHIRID = rec.ID.String()
	}
	now := r.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.VersionID == 0 {
		rec.VersionID = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *rec
	r.records[rec.ID] = &stored
	return nil
}

func (r *recordRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (r *recordRepoMemory) GetByFHIRID(_ context.Context, fhirID string) (*MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.FHIRID == fhirID {
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *recordRepoMemory) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *recordRepoMemory) List(_ context.Context, f ListFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	r.mu.RLock()
	var matched []*MedicalRecord
	for _, rec := range r.records {
		if f.PatientID != nil && (rec.PatientID == nil || *rec.PatientID != *f.PatientID) {
			continue
		}
		if f.Category != "" && string(rec.Category) != f.Category {
			continue
		}
		out := *rec
		matched = append(matched, &out)
	}
	r.mu.RUnlock()

	// Newest first, matching the Postgres ordering.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []*MedicalRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
