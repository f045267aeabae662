package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medscan/medscan/internal/extract"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type recordRepoPG struct{ db queryable }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{db: pool}
}

const recordCols = `id, fhir_id, patient_id, source, ocr_confidence, raw_text,
	title, record_date, category, provider, lab_values, findings,
	version_id, created_at, updated_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	var date, category, provider *string
	var values, findings []byte
	err := row.Scan(&rec.ID, &rec.FHIRID, &rec.PatientID, &rec.Source, &rec.OCRConfidence, &rec.RawText,
		&rec.Title, &date, &category, &provider, &values, &findings,
		&rec.VersionID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Date = deref(date)
	rec.Category = extract.Category(deref(category))
	rec.Provider = deref(provider)
	if err := json.Unmarshal(values, &rec.Values); err != nil {
		return nil, fmt.Errorf("unmarshal lab values: %w", err)
	}
	if err := json.Unmarshal(findings, &rec.Findings); err != nil {
		return nil, fmt.Errorf("unmarshal findings: %w", err)
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	if rec.FHIRID == "" {
		rec.FHIRID = rec.ID.String()
	}
	values, err := json.Marshal(rec.Data().Values)
	if err != nil {
		return fmt.Errorf("marshal lab values: %w", err)
	}
	findings, err := json.Marshal(rec.Data().Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO medical_record (id, fhir_id, patient_id, source, ocr_confidence, raw_text,
			title, record_date, category, provider, lab_values, findings)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING version_id, created_at, updated_at`,
		rec.ID, rec.FHIRID, rec.PatientID, rec.Source, rec.OCRConfidence, rec.RawText,
		rec.Title, nullable(rec.Date), nullable(string(rec.Category)), nullable(rec.Provider), values, findings,
	).Scan(&rec.VersionID, &rec.CreatedAt, &rec.UpdatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return r.scanRecord(r.db.QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
}

func (r *recordRepoPG) GetByFHIRID(ctx context.Context, fhirID string) (*MedicalRecord, error) {
	return r.scanRecord(r.db.QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE fhir_id = $1`, fhirID))
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM medical_record WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Category != "" {
		where += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, f.Category)
		idx++
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM medical_record`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordCols + ` FROM medical_record` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*MedicalRecord{}
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
