package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soaringjerry/maat/internal/logging"
	"github.com/soaringjerry/maat/internal/metrics"
	"github.com/soaringjerry/maat/internal/models"
	"github.com/soaringjerry/maat/internal/session"
)

// ResponseStore abstracts persistence operations required by ResponseService.
type ResponseStore interface {
	GetTrial(ctx context.Context, id int64) (*models.Trial, error)
	InsertResponse(ctx context.Context, r *models.Response) error
}

// CaptureRequest carries the raw form values of a trial response.
//
// TrialID is optional. When non-zero it must name the current trial, so a
// repeated submission of an answered trial fails with ErrStaleSubmission or
// ErrDuplicateSubmission. When zero the response is recorded against whatever
// trial is current, and a repeated submission answers the next trial.
// Clients that can resubmit (double clicks, retries) must send TrialID.
type CaptureRequest struct {
	TrialID      int64
	ResponseTime string
	ResponseKey  string
}

// CaptureResult reports the stored response and where the run now stands.
type CaptureResult struct {
	ResponseID int64 `json:"response_id"`
	TrialID    int64 `json:"trial_id"`
	Accuracy   int   `json:"accuracy"`
	Position   int   `json:"position"`
	Total      int   `json:"total"`
	Complete   bool  `json:"complete"`
}

// ResponseService records one response per trial presentation and advances
// the run.
type ResponseService struct {
	store    ResponseStore
	sessions *session.Manager
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewResponseService constructs a service bound to the provided persistence interface.
func NewResponseService(store ResponseStore, sessions *session.Manager) *ResponseService {
	return &ResponseService{
		store:    store,
		sessions: sessions,
		logger:   logging.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ResponseService) WithLogger(logger *slog.Logger) *ResponseService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *ResponseService) WithMetrics(m *metrics.Metrics) *ResponseService {
	s.metrics = m
	return s
}

// Capture validates the submission, stores it and advances the index by one,
// all under the token's session lock.
func (s *ResponseService) Capture(ctx context.Context, token string, req CaptureRequest) (*CaptureResult, error) {
	fields := map[string]string{}
	rt, ok := ParseResponseTime(req.ResponseTime)
	if !ok {
		fields["response_time"] = "must be a non-negative number of milliseconds"
	}
	key, ok := NormalizeKey(req.ResponseKey)
	if !ok {
		fields["response_key"] = "must be Y or N"
	}
	if err := NewValidationError(fields); err != nil {
		s.metrics.ResponseRejected("invalid")
		return nil, err
	}

	var (
		out       *CaptureResult
		duplicate bool
	)
	_, err := s.sessions.Update(ctx, token, func(ctx context.Context, st *session.RunState) (*session.RunState, error) {
		if st == nil {
			return nil, ErrSessionMissing
		}
		if st.Done() {
			return nil, ErrRunComplete
		}
		trialID, ok := st.CurrentTrialID()
		if !ok {
			return nil, ErrSessionMissing
		}
		if req.TrialID != 0 && req.TrialID != trialID {
			return nil, ErrStaleSubmission
		}
		trial, err := s.store.GetTrial(ctx, trialID)
		if err != nil {
			return nil, err
		}
		if trial == nil {
			return nil, fmt.Errorf("%w: id %d", ErrTrialNotFound, trialID)
		}

		resp := &models.Response{
			ParticipantID: st.ParticipantID,
			TrialID:       trial.ID,
			ResponseKey:   key,
			ResponseTime:  rt,
			Accuracy:      Accuracy(trial.Valence, key),
			CreatedAt:     s.now(),
		}
		if st.RunID != "" {
			resp.RunID = sql.NullString{String: st.RunID, Valid: true}
			resp.Position = sql.NullInt64{Int64: int64(st.Index), Valid: true}
		}

		next := st.Clone()
		if err := s.store.InsertResponse(ctx, resp); err != nil {
			if !errors.Is(err, models.ErrConflict) {
				return nil, err
			}
			// The position is already stored; move the session past it.
			if advErr := next.Advance(); advErr != nil {
				return nil, ErrDuplicateSubmission
			}
			duplicate = true
			return next, nil
		}
		if err := next.Advance(); err != nil {
			return nil, err
		}
		out = &CaptureResult{
			ResponseID: resp.ID,
			TrialID:    trial.ID,
			Accuracy:   resp.Accuracy,
			Position:   next.Index,
			Total:      next.Total(),
			Complete:   next.Done(),
		}
		return next, nil
	})
	if err == nil && duplicate {
		err = ErrDuplicateSubmission
	}
	if err != nil {
		s.reject(err)
		return nil, err
	}
	s.metrics.ResponseRecorded(out.Accuracy, rt)
	return out, nil
}

func (s *ResponseService) reject(err error) {
	switch {
	case errors.Is(err, ErrDuplicateSubmission):
		s.metrics.ResponseRejected("duplicate")
		s.logger.Warn("duplicate response ignored", "err", err)
	case errors.Is(err, ErrStaleSubmission):
		s.metrics.ResponseRejected("stale")
	case errors.Is(err, ErrRunComplete):
		s.metrics.ResponseRejected("complete")
	case errors.Is(err, ErrSessionMissing):
		s.metrics.ResponseRejected("session_missing")
	}
}
