package postgres

import (
	"context"
	"database/sql"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/app/storage"
	"github.com/Sebdysart/hustlexp-ai-backend-sub002/internal/domain/proof"
	"github.com/google/uuid"
)

const proofSelect = `
	SELECT id, task_id, submitter_id, state, reviewer_id, rejection_reason, manual_review, created_at, updated_at
	FROM proofs`

func (s *Store) CreateProof(ctx context.Context, q storage.Queryer, p proof.Proof) (proof.Proof, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	n := now()
	p.CreatedAt, p.UpdatedAt = n, n
	_, err := q.ExecContext(ctx, `
		INSERT INTO proofs (id, task_id, submitter_id, state, reviewer_id, rejection_reason, manual_review, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.TaskID, p.SubmitterID, p.State, toNullString(p.ReviewerID), toNullString(p.RejectionReason), p.ManualReview, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return proof.Proof{}, apperrors.DatabaseError("create_proof", err)
	}
	return p, nil
}

func (s *Store) GetProof(ctx context.Context, q storage.Queryer, id string) (proof.Proof, error) {
	row := q.QueryRowContext(ctx, proofSelect+` WHERE id = $1`, id)
	return scanProofOrNotFound(row, id)
}

func (s *Store) GetProofByTask(ctx context.Context, q storage.Queryer, taskID string) (proof.Proof, error) {
	row := q.QueryRowContext(ctx, proofSelect+` WHERE task_id = $1 ORDER BY created_at DESC LIMIT 1`, taskID)
	return scanProofOrNotFound(row, taskID)
}

func (s *Store) UpdateProof(ctx context.Context, q storage.Queryer, p proof.Proof) (proof.Proof, error) {
	p.UpdatedAt = now()
	res, err := q.ExecContext(ctx, `
		UPDATE proofs SET state=$2, reviewer_id=$3, rejection_reason=$4, manual_review=$5, updated_at=$6
		WHERE id = $1
	`, p.ID, p.State, toNullString(p.ReviewerID), toNullString(p.RejectionReason), p.ManualReview, p.UpdatedAt)
	if err != nil {
		return proof.Proof{}, apperrors.DatabaseError("update_proof", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return proof.Proof{}, apperrors.NotFound("proof", p.ID)
	}
	return p, nil
}

func (s *Store) AddPhoto(ctx context.Context, q storage.Queryer, ph proof.Photo) (proof.Photo, error) {
	if ph.ID == "" {
		ph.ID = uuid.NewString()
	}
	row := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) + 1 FROM proof_photos WHERE proof_id = $1
	`, ph.ProofID)
	if err := row.Scan(&ph.Sequence); err != nil {
		return proof.Photo{}, apperrors.DatabaseError("add_photo_sequence", err)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO proof_photos (id, proof_id, storage_key, checksum, has_biometric, has_gps, captured_at, sequence)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ph.ID, ph.ProofID, ph.StorageKey, ph.Checksum, ph.HasBiometic, ph.HasGPS, ph.CapturedAt, ph.Sequence)
	if err != nil {
		return proof.Photo{}, apperrors.DatabaseError("add_photo", err)
	}
	return ph, nil
}

func (s *Store) ListPhotos(ctx context.Context, q storage.Queryer, proofID string) ([]proof.Photo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, proof_id, storage_key, checksum, has_biometric, has_gps, captured_at, sequence
		FROM proof_photos WHERE proof_id = $1 ORDER BY sequence
	`, proofID)
	if err != nil {
		return nil, apperrors.DatabaseError("list_photos", err)
	}
	defer rows.Close()
	var out []proof.Photo
	for rows.Next() {
		var ph proof.Photo
		if err := rows.Scan(&ph.ID, &ph.ProofID, &ph.StorageKey, &ph.Checksum, &ph.HasBiometic, &ph.HasGPS, &ph.CapturedAt, &ph.Sequence); err != nil {
			return nil, apperrors.DatabaseError("scan_photo", err)
		}
		out = append(out, ph)
	}
	return out, rows.Err()
}

func scanProofOrNotFound(sc rowScanner, key string) (proof.Proof, error) {
	var (
		p               proof.Proof
		reviewerID      sql.NullString
		rejectionReason sql.NullString
	)
	err := sc.Scan(&p.ID, &p.TaskID, &p.SubmitterID, &p.State, &reviewerID, &rejectionReason, &p.ManualReview, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return proof.Proof{}, apperrors.NotFound("proof", key)
	}
	if err != nil {
		return proof.Proof{}, apperrors.DatabaseError("scan_proof", err)
	}
	if reviewerID.Valid {
		p.ReviewerID = reviewerID.String
	}
	if rejectionReason.Valid {
		p.RejectionReason = rejectionReason.String
	}
	return p, nil
}
