package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/maat/internal/models"
)

type ParticipantStore interface {
	ListParticipants(ctx context.Context) ([]*models.Participant, error)
	GetParticipant(ctx context.Context, id int64) (*models.Participant, error)
	GetParticipantBySubjectID(ctx context.Context, subjectID string) (*models.Participant, error)
	CreateParticipant(ctx context.Context, u *models.User, p *models.Participant) error
	UpdateParticipant(ctx context.Context, p *models.Participant) (bool, error)
	DeleteParticipant(ctx context.Context, id int64) (bool, error)
	GetExperiment(ctx context.Context, id int64) (*models.Experiment, error)
	GetExperimentByExternalID(ctx context.Context, externalID string) (*models.Experiment, error)
}

// Login message keys; the api layer localizes them.
const (
	MsgInvalidParticipant = "invalid_participant_id"
	MsgInvalidExperiment  = "invalid_experiment_id"
)

// LoginResult identifies the pair a participant logged in for.
type LoginResult struct {
	ParticipantID int64  `json:"participant_id"`
	SubjectID     string `json:"subject_id"`
	ExperimentID  int64  `json:"experiment_id"`
}

type Instructions struct {
	ParticipantID  int64  `json:"participant_id"`
	SubjectID      string `json:"subject_id"`
	ExperimentID   int64  `json:"experiment_id"`
	ExperimentName string `json:"experiment_name"`
	Instructions   string `json:"instructions"`
}

type ParticipantService struct {
	store ParticipantStore
	now   func() time.Time
	idGen func() string
}

func NewParticipantService(store ParticipantStore) *ParticipantService {
	return &ParticipantService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
	}
}

// Login resolves a subject id and an experiment external id.
func (s *ParticipantService) Login(ctx context.Context, subjectID, experimentExternalID string) (*LoginResult, error) {
	subjectID = strings.TrimSpace(subjectID)
	experimentExternalID = strings.TrimSpace(experimentExternalID)
	var p *models.Participant
	if subjectID != "" {
		var err error
		if p, err = s.store.GetParticipantBySubjectID(ctx, subjectID); err != nil {
			return nil, err
		}
	}
	if p == nil {
		return nil, NewInvalidCredentialError(MsgInvalidParticipant)
	}
	var e *models.Experiment
	if experimentExternalID != "" {
		var err error
		if e, err = s.store.GetExperimentByExternalID(ctx, experimentExternalID); err != nil {
			return nil, err
		}
	}
	if e == nil {
		return nil, NewInvalidCredentialError(MsgInvalidExperiment)
	}
	return &LoginResult{ParticipantID: p.ID, SubjectID: p.SubjectID, ExperimentID: e.ID}, nil
}

func (s *ParticipantService) Instructions(ctx context.Context, participantID, experimentID int64) (*Instructions, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("participant not found")
	}
	e, err := s.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewNotFoundError("experiment not found")
	}
	return &Instructions{
		ParticipantID:  p.ID,
		SubjectID:      p.SubjectID,
		ExperimentID:   e.ID,
		ExperimentName: e.Name,
		Instructions:   e.Instructions,
	}, nil
}

func (s *ParticipantService) List(ctx context.Context) ([]*models.Participant, error) {
	return s.store.ListParticipants(ctx)
}

func validSubjectID(subjectID string) (string, error) {
	subjectID = strings.TrimSpace(subjectID)
	fields := map[string]string{}
	checkLen(fields, "subject_id", subjectID, 100)
	if _, bad := fields["subject_id"]; !bad && !safeFilenamePart(subjectID) {
		fields["subject_id"] = "must not contain path separators or control characters"
	}
	return subjectID, NewValidationError(fields)
}

// Register creates a participant together with its account.
func (s *ParticipantService) Register(ctx context.Context, subjectID string) (*models.Participant, error) {
	subjectID, err := validSubjectID(subjectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &models.User{ID: s.idGen(), Role: models.RoleParticipant, CreatedAt: now}
	p := &models.Participant{UserID: u.ID, SubjectID: subjectID, CreatedAt: now}
	if err := s.store.CreateParticipant(ctx, u, p); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, NewConflictError("subject id already exists")
		}
		return nil, err
	}
	return p, nil
}

func (s *ParticipantService) Update(ctx context.Context, id int64, subjectID string) (*models.Participant, error) {
	subjectID, err := validSubjectID(subjectID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("participant not found")
	}
	p.SubjectID = subjectID
	ok, err := s.store.UpdateParticipant(ctx, p)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, NewConflictError("subject id already exists")
		}
		return nil, err
	}
	if !ok {
		return nil, NewNotFoundError("participant not found")
	}
	return p, nil
}

// Delete removes the participant, its responses and its account.
func (s *ParticipantService) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.DeleteParticipant(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("participant not found")
	}
	return nil
}
