package storage

import (
	"context"
	"fmt"
)

// ModelCallRecord is one audited call to the model gateway.
type ModelCallRecord struct {
	CallID     string
	JobID      string
	VideoID    string
	Capability string
	Model      string
	Region     string
	Status     string
	ErrorClass string
}

type ModelCallRepo struct {
	db *DB
}

func NewModelCallRepo(db *DB) *ModelCallRepo {
	return &ModelCallRepo{db: db}
}

func (r *ModelCallRepo) Insert(ctx context.Context, rec ModelCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO model_calls(call_id, job_id, video_id, capability, model, region, status, error_class)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), NULLIF($2,''), $3, $4, NULLIF($5,''), NULLIF($6,''), $7, NULLIF($8,''))`,
		rec.CallID, rec.JobID, rec.VideoID, rec.Capability, rec.Model, rec.Region, rec.Status, rec.ErrorClass)
	if err != nil {
		return fmt.Errorf("insert model call: %w", err)
	}
	return nil
}
