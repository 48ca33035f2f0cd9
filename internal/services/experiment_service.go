package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soaringjerry/maat/internal/models"
)

type ExperimentStore interface {
	ListExperiments(ctx context.Context) ([]*models.Experiment, error)
	GetExperiment(ctx context.Context, id int64) (*models.Experiment, error)
	InsertExperiment(ctx context.Context, e *models.Experiment) error
	UpdateExperiment(ctx context.Context, e *models.Experiment) (bool, error)
	DeleteExperiment(ctx context.Context, id int64) (bool, error)
	ListTrials(ctx context.Context, experimentID int64) ([]*models.Trial, error)
	GetTrial(ctx context.Context, id int64) (*models.Trial, error)
	InsertTrial(ctx context.Context, t *models.Trial) error
	UpdateTrial(ctx context.Context, t *models.Trial) (bool, error)
	DeleteTrial(ctx context.Context, id int64) (bool, error)
}

// ExperimentInput is the editable part of an experiment. Zero sizes take the
// defaults.
type ExperimentInput struct {
	ExperimentID     string `json:"experiment_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Instructions     string `json:"instructions"`
	NumTrials        int    `json:"num_trials"`
	TextSize         int    `json:"text_size"`
	TextIncreaseSize int    `json:"text_increase_size"`
	TextDecreaseSize int    `json:"text_decrease_size"`
}

type TrialInput struct {
	ExperimentID   int64  `json:"experiment"`
	BlockOrder     int    `json:"block_order"`
	BlockName      string `json:"block_name"`
	Stimuli        string `json:"stimuli"`
	Valence        int    `json:"valence"`
	RandomFixation int    `json:"random_fixation"`
	Movement       int    `json:"movement"`
}

// ExperimentConfig is an experiment with its trials in block order.
type ExperimentConfig struct {
	Experiment *models.Experiment `json:"experiment"`
	Trials     []*models.Trial    `json:"trials"`
}

type ExperimentService struct {
	store ExperimentStore
	now   func() time.Time
}

func NewExperimentService(store ExperimentStore) *ExperimentService {
	return &ExperimentService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func checkLen(fields map[string]string, name, v string, max int) {
	switch {
	case v == "":
		fields[name] = "required"
	case utf8.RuneCountInString(v) > max:
		fields[name] = "too long"
	}
}

func (in *ExperimentInput) normalize() map[string]string {
	in.ExperimentID = strings.TrimSpace(in.ExperimentID)
	in.Name = strings.TrimSpace(in.Name)
	fields := map[string]string{}
	checkLen(fields, "experiment_id", in.ExperimentID, 100)
	checkLen(fields, "name", in.Name, 255)
	if in.NumTrials < 0 {
		fields["num_trials"] = "must be zero or more"
	}
	sizes := []struct {
		name string
		v    *int
		def  int
	}{
		{"text_size", &in.TextSize, models.DefaultTextSize},
		{"text_increase_size", &in.TextIncreaseSize, models.DefaultTextIncreaseSize},
		{"text_decrease_size", &in.TextDecreaseSize, models.DefaultTextDecreaseSize},
	}
	for _, sz := range sizes {
		switch {
		case *sz.v < 0:
			fields[sz.name] = "must be positive"
		case *sz.v == 0:
			*sz.v = sz.def
		}
	}
	return fields
}

func (in *ExperimentInput) apply(e *models.Experiment) {
	e.ExperimentID = in.ExperimentID
	e.Name = in.Name
	e.Description = in.Description
	e.Instructions = in.Instructions
	e.NumTrials = in.NumTrials
	e.TextSize = in.TextSize
	e.TextIncreaseSize = in.TextIncreaseSize
	e.TextDecreaseSize = in.TextDecreaseSize
}

func (s *ExperimentService) List(ctx context.Context) ([]*models.Experiment, error) {
	return s.store.ListExperiments(ctx)
}

// Configure returns the experiment and its trials.
func (s *ExperimentService) Configure(ctx context.Context, id int64) (*ExperimentConfig, error) {
	e, err := s.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewNotFoundError("experiment not found")
	}
	trials, err := s.store.ListTrials(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ExperimentConfig{Experiment: e, Trials: trials}, nil
}

func (s *ExperimentService) Create(ctx context.Context, in ExperimentInput) (*models.Experiment, error) {
	if err := NewValidationError(in.normalize()); err != nil {
		return nil, err
	}
	e := &models.Experiment{CreatedAt: s.now()}
	in.apply(e)
	if err := s.store.InsertExperiment(ctx, e); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, NewConflictError("experiment id already exists")
		}
		return nil, err
	}
	return e, nil
}

func (s *ExperimentService) Update(ctx context.Context, id int64, in ExperimentInput) (*models.Experiment, error) {
	if err := NewValidationError(in.normalize()); err != nil {
		return nil, err
	}
	e, err := s.store.GetExperiment(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewNotFoundError("experiment not found")
	}
	in.apply(e)
	ok, err := s.store.UpdateExperiment(ctx, e)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, NewConflictError("experiment id already exists")
		}
		return nil, err
	}
	if !ok {
		return nil, NewNotFoundError("experiment not found")
	}
	return e, nil
}

// Delete removes the experiment; trials, runs and responses go with it.
func (s *ExperimentService) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.DeleteExperiment(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("experiment not found")
	}
	return nil
}

func (in *TrialInput) normalize() map[string]string {
	in.BlockName = strings.TrimSpace(in.BlockName)
	in.Stimuli = strings.TrimSpace(in.Stimuli)
	fields := map[string]string{}
	if in.ExperimentID <= 0 {
		fields["experiment"] = "required"
	}
	checkLen(fields, "block_name", in.BlockName, 50)
	checkLen(fields, "stimuli", in.Stimuli, 255)
	for name, v := range map[string]int{"valence": in.Valence, "random_fixation": in.RandomFixation, "movement": in.Movement} {
		if v != 0 && v != 1 {
			fields[name] = "must be 0 or 1"
		}
	}
	return fields
}

func (in *TrialInput) apply(t *models.Trial) {
	t.ExperimentID = in.ExperimentID
	t.BlockOrder = in.BlockOrder
	t.BlockName = in.BlockName
	t.Stimuli = in.Stimuli
	t.Valence = in.Valence
	t.RandomFixation = in.RandomFixation
	t.Movement = in.Movement
}

func (s *ExperimentService) requireExperiment(ctx context.Context, id int64) error {
	e, err := s.store.GetExperiment(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return NewValidationError(map[string]string{"experiment": "unknown experiment"})
	}
	return nil
}

func (s *ExperimentService) CreateTrial(ctx context.Context, in TrialInput) (*models.Trial, error) {
	if err := NewValidationError(in.normalize()); err != nil {
		return nil, err
	}
	if err := s.requireExperiment(ctx, in.ExperimentID); err != nil {
		return nil, err
	}
	t := &models.Trial{}
	in.apply(t)
	if err := s.store.InsertTrial(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *ExperimentService) UpdateTrial(ctx context.Context, id int64, in TrialInput) (*models.Trial, error) {
	if err := NewValidationError(in.normalize()); err != nil {
		return nil, err
	}
	t, err := s.store.GetTrial(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewNotFoundError("trial not found")
	}
	if err := s.requireExperiment(ctx, in.ExperimentID); err != nil {
		return nil, err
	}
	in.apply(t)
	ok, err := s.store.UpdateTrial(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewNotFoundError("trial not found")
	}
	return t, nil
}

func (s *ExperimentService) DeleteTrial(ctx context.Context, id int64) error {
	ok, err := s.store.DeleteTrial(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("trial not found")
	}
	return nil
}
