package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soaringjerry/maat/internal/models"
)

const experimentColumns = `id, experiment_id, name, description, instructions, num_trials,
	text_size, text_increase_size, text_decrease_size, created_at`

const trialColumns = `id, experiment_id, block_order, block_name, stimuli, valence, random_fixation, movement`

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*models.Experiment, error) {
	out := []*models.Experiment{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+experimentColumns+` FROM experiments ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, id int64) (*models.Experiment, error) {
	return s.getExperiment(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE id = ?`, id)
}

func (s *SQLiteStore) GetExperimentByExternalID(ctx context.Context, externalID string) (*models.Experiment, error) {
	return s.getExperiment(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE experiment_id = ?`, externalID)
}

func (s *SQLiteStore) getExperiment(ctx context.Context, query string, arg any) (*models.Experiment, error) {
	var e models.Experiment
	if err := s.db.GetContext(ctx, &e, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get experiment: %w", err)
	}
	return &e, nil
}

func (s *SQLiteStore) InsertExperiment(ctx context.Context, e *models.Experiment) error {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO experiments (
		experiment_id, name, description, instructions, num_trials,
		text_size, text_increase_size, text_decrease_size, created_at
	) VALUES (
		:experiment_id, :name, :description, :instructions, :num_trials,
		:text_size, :text_increase_size, :text_decrease_size, :created_at
	)`, e)
	if err != nil {
		return wrapWrite("insert experiment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}
	e.ID = id
	return nil
}

func (s *SQLiteStore) UpdateExperiment(ctx context.Context, e *models.Experiment) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `UPDATE experiments SET
		experiment_id = :experiment_id,
		name = :name,
		description = :description,
		instructions = :instructions,
		num_trials = :num_trials,
		text_size = :text_size,
		text_increase_size = :text_increase_size,
		text_decrease_size = :text_decrease_size
	WHERE id = :id`, e)
	if err != nil {
		return false, wrapWrite("update experiment", err)
	}
	return affected("update experiment", res)
}

// DeleteExperiment removes the experiment; trials, enrollments, runs and the
// trials' responses go with it through ON DELETE CASCADE.
func (s *SQLiteStore) DeleteExperiment(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete experiment: %w", err)
	}
	return affected("delete experiment", res)
}

func (s *SQLiteStore) ListTrials(ctx context.Context, experimentID int64) ([]*models.Trial, error) {
	out := []*models.Trial{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+trialColumns+` FROM trials WHERE experiment_id = ? ORDER BY block_order, id`, experimentID); err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetTrial(ctx context.Context, id int64) (*models.Trial, error) {
	var t models.Trial
	if err := s.db.GetContext(ctx, &t, `SELECT `+trialColumns+` FROM trials WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trial: %w", err)
	}
	return &t, nil
}

func (s *SQLiteStore) InsertTrial(ctx context.Context, t *models.Trial) error {
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO trials (
		experiment_id, block_order, block_name, stimuli, valence, random_fixation, movement
	) VALUES (
		:experiment_id, :block_order, :block_name, :stimuli, :valence, :random_fixation, :movement
	)`, t)
	if err != nil {
		return wrapWrite("insert trial", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert trial: %w", err)
	}
	t.ID = id
	return nil
}

func (s *SQLiteStore) UpdateTrial(ctx context.Context, t *models.Trial) (bool, error) {
	res, err := s.db.NamedExecContext(ctx, `UPDATE trials SET
		experiment_id = :experiment_id,
		block_order = :block_order,
		block_name = :block_name,
		stimuli = :stimuli,
		valence = :valence,
		random_fixation = :random_fixation,
		movement = :movement
	WHERE id = :id`, t)
	if err != nil {
		return false, wrapWrite("update trial", err)
	}
	return affected("update trial", res)
}

func (s *SQLiteStore) DeleteTrial(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trials WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete trial: %w", err)
	}
	return affected("delete trial", res)
}
