package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soaringjerry/maat/internal/models"
)

const participantColumns = `id, user_id, subject_id, created_at`

func (s *SQLiteStore) ListParticipants(ctx context.Context) ([]*models.Participant, error) {
	out := []*models.Participant{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+participantColumns+` FROM participants ORDER BY subject_id`); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetParticipant(ctx context.Context, id int64) (*models.Participant, error) {
	return s.getParticipant(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = ?`, id)
}

func (s *SQLiteStore) GetParticipantBySubjectID(ctx context.Context, subjectID string) (*models.Participant, error) {
	return s.getParticipant(ctx, `SELECT `+participantColumns+` FROM participants WHERE subject_id = ?`, subjectID)
}

func (s *SQLiteStore) getParticipant(ctx context.Context, query string, arg any) (*models.Participant, error) {
	var p models.Participant
	if err := s.db.GetContext(ctx, &p, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &p, nil
}

// CreateParticipant inserts the participant account and the participant row
// in one transaction.
func (s *SQLiteStore) CreateParticipant(ctx context.Context, u *models.User, p *models.Participant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create participant: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, email, pass_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, nullString(u.Email), u.PassHash, u.Role, u.CreatedAt); err != nil {
		return wrapWrite("insert participant account", err)
	}
	p.UserID = u.ID
	res, err := tx.ExecContext(ctx, `INSERT INTO participants (user_id, subject_id, created_at) VALUES (?, ?, ?)`,
		p.UserID, p.SubjectID, p.CreatedAt)
	if err != nil {
		return wrapWrite("insert participant", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create participant: %w", err)
	}
	p.ID = id
	return nil
}

func (s *SQLiteStore) UpdateParticipant(ctx context.Context, p *models.Participant) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE participants SET subject_id = ? WHERE id = ?`, p.SubjectID, p.ID)
	if err != nil {
		return false, wrapWrite("update participant", err)
	}
	return affected("update participant", res)
}

// DeleteParticipant removes the participant and its account. Responses,
// enrollments and runs cascade.
func (s *SQLiteStore) DeleteParticipant(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete participant: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	if err := tx.GetContext(ctx, &userID, `SELECT user_id FROM participants WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("delete participant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete participant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ? AND role = ?`, userID, models.RoleParticipant); err != nil {
		return false, fmt.Errorf("delete participant account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete participant: %w", err)
	}
	return true, nil
}

// Enroll records the participant joining the experiment; repeated joins keep
// the first timestamp.
func (s *SQLiteStore) Enroll(ctx context.Context, participantID, experimentID int64, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO participations (participant_id, experiment_id, joined_at)
		VALUES (?, ?, ?) ON CONFLICT (participant_id, experiment_id) DO NOTHING`, participantID, experimentID, at); err != nil {
		return fmt.Errorf("enroll participant: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListParticipations(ctx context.Context, participantID int64) ([]models.Participation, error) {
	out := []models.Participation{}
	if err := s.db.SelectContext(ctx, &out, `SELECT participant_id, experiment_id, joined_at FROM participations
		WHERE participant_id = ? ORDER BY joined_at`, participantID); err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) AddUser(ctx context.Context, u *models.User) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, pass_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, nullString(strings.ToLower(u.Email)), u.PassHash, u.Role, u.CreatedAt); err != nil {
		return wrapWrite("insert user", err)
	}
	return nil
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT id, COALESCE(email, '') AS email, pass_hash, role, created_at
		FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func nullString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
