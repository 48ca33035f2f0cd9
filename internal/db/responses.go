package db

import (
	"context"
	"fmt"
	"time"

	"github.com/soaringjerry/maat/internal/models"
)

func (s *SQLiteStore) CreateRun(ctx context.Context, r *models.Run) error {
	if _, err := s.db.NamedExecContext(ctx, `INSERT INTO runs (id, participant_id, experiment_id, seed, trial_order, started_at)
		VALUES (:id, :participant_id, :experiment_id, :seed, :trial_order, :started_at)`, r); err != nil {
		return wrapWrite("insert run", err)
	}
	return nil
}

// CompleteRun stamps completed_at once; later calls keep the first stamp.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE runs SET completed_at = ? WHERE id = ? AND completed_at IS NULL`, at, id); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// InsertResponse writes one response row. A second row for the same
// (run_id, position) fails with models.ErrConflict.
func (s *SQLiteStore) InsertResponse(ctx context.Context, r *models.Response) error {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO responses (
		participant_id, trial_id, run_id, position, response_key, response_time, accuracy, created_at
	) VALUES (
		:participant_id, :trial_id, :run_id, :position, :response_key, :response_time, :accuracy, :created_at
	)`, r)
	if err != nil {
		return wrapWrite("insert response", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	r.ID = id
	return nil
}

const responseColumns = `id, participant_id, trial_id, run_id, position, response_key, response_time, accuracy, created_at`

func (s *SQLiteStore) ListResponsesByParticipant(ctx context.Context, participantID int64) ([]*models.Response, error) {
	out := []*models.Response{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+responseColumns+` FROM responses WHERE participant_id = ?`, participantID); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListResponsesByExperiment(ctx context.Context, experimentID int64) ([]*models.Response, error) {
	out := []*models.Response{}
	if err := s.db.SelectContext(ctx, &out, `SELECT r.id, r.participant_id, r.trial_id, r.run_id, r.position,
		r.response_key, r.response_time, r.accuracy, r.created_at
		FROM responses r JOIN trials t ON t.id = r.trial_id
		WHERE t.experiment_id = ?`, experimentID); err != nil {
		return nil, fmt.Errorf("list experiment responses: %w", err)
	}
	return out, nil
}

const resultRowQuery = `SELECT p.subject_id, r.trial_id, t.stimuli, t.valence, t.block_name,
	r.response_time, r.accuracy, e.experiment_id AS experiment_external_id, r.run_id, r.response_key
	FROM responses r
	JOIN participants p ON p.id = r.participant_id
	JOIN trials t ON t.id = r.trial_id
	JOIN experiments e ON e.id = t.experiment_id`

// ListResultRowsByParticipant returns the participant's responses joined for
// export, in storage order.
func (s *SQLiteStore) ListResultRowsByParticipant(ctx context.Context, participantID int64) ([]models.ResultRow, error) {
	out := []models.ResultRow{}
	if err := s.db.SelectContext(ctx, &out, resultRowQuery+` WHERE r.participant_id = ? ORDER BY r.id`, participantID); err != nil {
		return nil, fmt.Errorf("list result rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListResultRows(ctx context.Context) ([]models.ResultRow, error) {
	out := []models.ResultRow{}
	if err := s.db.SelectContext(ctx, &out, resultRowQuery+` ORDER BY e.experiment_id, p.subject_id, r.id`); err != nil {
		return nil, fmt.Errorf("list result rows: %w", err)
	}
	return out, nil
}

// UpsertExportFile records a generated file in the manifest; regenerating the
// same filename refreshes its row count and timestamp.
func (s *SQLiteStore) UpsertExportFile(ctx context.Context, f *models.ExportFile) error {
	if _, err := s.db.NamedExecContext(ctx, `INSERT INTO export_files (filename, participant_id, run_id, row_count, created_at)
		VALUES (:filename, :participant_id, :run_id, :row_count, :created_at)
		ON CONFLICT (filename) DO UPDATE SET
			participant_id = excluded.participant_id,
			run_id = excluded.run_id,
			row_count = excluded.row_count,
			created_at = excluded.created_at`, f); err != nil {
		return fmt.Errorf("upsert export file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListExportFiles(ctx context.Context) ([]*models.ExportFile, error) {
	out := []*models.ExportFile{}
	if err := s.db.SelectContext(ctx, &out, `SELECT id, filename, participant_id, run_id, row_count, created_at
		FROM export_files ORDER BY filename`); err != nil {
		return nil, fmt.Errorf("list export files: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteExportFile(ctx context.Context, filename string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM export_files WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("delete export file: %w", err)
	}
	return nil
}
