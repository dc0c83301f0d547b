package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

// ScoreRepository persists uploaded score rows and per-question responses.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs the repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// ListRecords returns the raw payloads of a batch ordered by test number.
func (r *ScoreRepository) ListRecords(ctx context.Context, batchID string) ([]models.ScoreRecord, error) {
	query := r.db.Rebind(`SELECT id, batch_id, student_id, test_num, payload, created_at
FROM score_records WHERE batch_id = ? ORDER BY test_num ASC, created_at ASC`)
	var rows []models.StoredScoreRecord
	if err := r.db.SelectContext(ctx, &rows, query, batchID); err != nil {
		return nil, fmt.Errorf("list score records: %w", err)
	}

	records := make([]models.ScoreRecord, 0, len(rows))
	for _, row := range rows {
		record, err := decodePayload(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode score record %s: %w", row.ID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// decodePayload keeps numbers as json.Number so integer test numbers survive unchanged.
func decodePayload(payload []byte) (models.ScoreRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	record := models.ScoreRecord{}
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	return record, nil
}

// InsertRecords stores rows in a single transaction.
func (r *ScoreRepository) InsertRecords(ctx context.Context, rows []models.StoredScoreRecord) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert score records: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO score_records (id, batch_id, student_id, test_num, payload, created_at)
VALUES (:id, :batch_id, :student_id, :test_num, :payload, :created_at)`
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, rows[i]); err != nil {
			return fmt.Errorf("insert score record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit score records: %w", err)
	}
	return nil
}

// DeleteBatch removes every record of a batch and returns the number of rows deleted.
func (r *ScoreRepository) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM score_records WHERE batch_id = ?`), batchID)
	if err != nil {
		return 0, fmt.Errorf("delete score batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete score batch: %w", err)
	}
	return affected, nil
}

// ListQuestionResponses returns responses recorded for testNum. A testNum of zero selects the
// most recent test of the batch.
func (r *ScoreRepository) ListQuestionResponses(ctx context.Context, batchID string, testNum int) ([]models.QuestionResponse, error) {
	var (
		query string
		args  []interface{}
	)
	if testNum > 0 {
		query = `SELECT batch_id, test_num, question_number, subject, student_id, outcome
FROM question_responses WHERE batch_id = ? AND test_num = ? ORDER BY question_number ASC, subject ASC`
		args = []interface{}{batchID, testNum}
	} else {
		query = `SELECT batch_id, test_num, question_number, subject, student_id, outcome
FROM question_responses WHERE batch_id = ? AND test_num = (SELECT MAX(test_num) FROM question_responses WHERE batch_id = ?)
ORDER BY question_number ASC, subject ASC`
		args = []interface{}{batchID, batchID}
	}

	var responses []models.QuestionResponse
	if err := r.db.SelectContext(ctx, &responses, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list question responses: %w", err)
	}
	return responses, nil
}

// ReplaceResponses overwrites the responses of one test of a batch.
func (r *ScoreRepository) ReplaceResponses(ctx context.Context, batchID string, testNum int, responses []models.QuestionResponse) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace responses: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM question_responses WHERE batch_id = ? AND test_num = ?`), batchID, testNum); err != nil {
		return fmt.Errorf("clear question responses: %w", err)
	}

	const insert = `INSERT INTO question_responses (batch_id, test_num, question_number, subject, student_id, outcome)
VALUES (:batch_id, :test_num, :question_number, :subject, :student_id, :outcome)`
	for _, resp := range responses {
		resp.BatchID = batchID
		resp.TestNum = testNum
		if _, err := tx.NamedExecContext(ctx, insert, resp); err != nil {
			return fmt.Errorf("insert question response: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit question responses: %w", err)
	}
	return nil
}

// Ping verifies database connectivity for the readiness probe.
func (r *ScoreRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
