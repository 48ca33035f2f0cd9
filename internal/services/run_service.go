package services

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/maat/internal/logging"
	"github.com/soaringjerry/maat/internal/metrics"
	"github.com/soaringjerry/maat/internal/models"
	"github.com/soaringjerry/maat/internal/session"
)

// RunStore is the persistence RunService needs.
type RunStore interface {
	GetParticipant(ctx context.Context, id int64) (*models.Participant, error)
	GetExperiment(ctx context.Context, id int64) (*models.Experiment, error)
	ListTrials(ctx context.Context, experimentID int64) ([]*models.Trial, error)
	Enroll(ctx context.Context, participantID, experimentID int64, at time.Time) error
	CreateRun(ctx context.Context, r *models.Run) error
	CompleteRun(ctx context.Context, id string, at time.Time) error
}

// ParticipantExporter writes the per-participant results file on completion.
type ParticipantExporter interface {
	ExportParticipantCSV(ctx context.Context, participantID int64, runID string) (*ExportResult, error)
}

// RunService drives a run session from start to completion.
type RunService struct {
	store    RunStore
	sessions *session.Manager
	exporter ParticipantExporter
	logger   *slog.Logger
	metrics  *metrics.Metrics

	now     func() time.Time
	idGen   func() string
	seedGen func() int64
}

func NewRunService(store RunStore, sessions *session.Manager, exporter ParticipantExporter) *RunService {
	return &RunService{
		store:    store,
		sessions: sessions,
		exporter: exporter,
		logger:   logging.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		idGen:    uuid.NewString,
		seedGen:  newSeed,
	}
}

func (s *RunService) WithLogger(logger *slog.Logger) *RunService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *RunService) WithMetrics(m *metrics.Metrics) *RunService {
	s.metrics = m
	return s
}

func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// ShuffleTrialIDs returns a permutation of ids determined by seed.
func ShuffleTrialIDs(ids []int64, seed int64) []int64 {
	out := append([]int64(nil), ids...)
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Start begins a run for the pair and stores it under token, replacing any
// previous state for that token.
func (s *RunService) Start(ctx context.Context, token string, participantID, experimentID int64) (*session.RunState, error) {
	if token == "" {
		return nil, errors.New("run token required")
	}
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewNotFoundError("participant not found")
	}
	exp, err := s.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, NewNotFoundError("experiment not found")
	}
	trials, err := s.store.ListTrials(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.Enroll(ctx, p.ID, exp.ID, now); err != nil {
		return nil, fmt.Errorf("enroll participant: %w", err)
	}

	ids := make([]int64, 0, len(trials))
	for _, t := range trials {
		ids = append(ids, t.ID)
	}
	seed := s.seedGen()
	order := ShuffleTrialIDs(ids, seed)
	orderJSON, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	run := &models.Run{
		ID:            s.idGen(),
		ParticipantID: p.ID,
		ExperimentID:  exp.ID,
		Seed:          seed,
		TrialOrder:    string(orderJSON),
		StartedAt:     now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	params := session.DisplayParams{
		TextSize:         exp.TextSize,
		TextIncreaseSize: exp.TextIncreaseSize,
		TextDecreaseSize: exp.TextDecreaseSize,
	}
	st, err := s.sessions.Update(ctx, token, func(context.Context, *session.RunState) (*session.RunState, error) {
		return session.NewRunning(run.ID, p.ID, exp.ID, order, params, seed, now), nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RunStarted()
	s.logger.Info("run started",
		"run_id", run.ID,
		"participant", p.SubjectID,
		"experiment", exp.ExperimentID,
		"trials", len(order),
	)
	return st, nil
}

// Completion describes the export produced when a run finishes.
type Completion struct {
	RunID         string `json:"run_id"`
	ParticipantID int64  `json:"participant_id"`
	ExperimentID  int64  `json:"experiment_id"`
	Filename      string `json:"filename"`
	Responses     int    `json:"responses"`
	Total         int    `json:"total"`
	AlreadyDone   bool   `json:"already_exported"`
}

// Complete exports the participant's results once per run and marks the run
// finished. Reloading the completion page returns the earlier file name.
func (s *RunService) Complete(ctx context.Context, token string) (*Completion, error) {
	var out *Completion
	_, err := s.sessions.Update(ctx, token, func(ctx context.Context, st *session.RunState) (*session.RunState, error) {
		if st == nil {
			return nil, ErrSessionMissing
		}
		if !st.Done() {
			return nil, ErrRunIncomplete
		}
		out = &Completion{
			RunID:         st.RunID,
			ParticipantID: st.ParticipantID,
			ExperimentID:  st.ExperimentID,
			Total:         st.Total(),
		}
		if st.Exported {
			out.Filename = st.ExportFile
			out.AlreadyDone = true
			return nil, nil
		}

		res, err := s.exporter.ExportParticipantCSV(ctx, st.ParticipantID, st.RunID)
		if err != nil {
			return nil, fmt.Errorf("export participant results: %w", err)
		}
		if st.RunID != "" {
			if err := s.store.CompleteRun(ctx, st.RunID, s.now()); err != nil {
				return nil, fmt.Errorf("complete run: %w", err)
			}
		}
		out.Filename = res.Filename
		out.Responses = res.Rows

		next := st.Clone()
		next.Status = session.StatusComplete
		next.Exported = true
		next.ExportFile = res.Filename
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if !out.AlreadyDone {
		s.metrics.RunCompleted()
		s.logger.Info("run completed", "run_id", out.RunID, "file", out.Filename, "responses", out.Responses)
	}
	return out, nil
}

// State returns the current run state for token.
func (s *RunService) State(ctx context.Context, token string) (*session.RunState, error) {
	st, err := s.sessions.Get(ctx, token)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionMissing
	}
	return st, err
}
