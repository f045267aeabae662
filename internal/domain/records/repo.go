package records

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a record listing. Zero values match everything.
type ListFilter struct {
	PatientID *uuid.UUID
	Category  string
}

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	GetByFHIRID(ctx context.Context, fhirID string) (*MedicalRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicalRecord, int, error)
}
