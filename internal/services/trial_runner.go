package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/soaringjerry/maat/internal/models"
	"github.com/soaringjerry/maat/internal/session"
)

type TrialStore interface {
	GetTrial(ctx context.Context, id int64) (*models.Trial, error)
}

// TrialView is what the trial page renders for the current index.
type TrialView struct {
	TrialID        int64                 `json:"trial_id"`
	Stimuli        string                `json:"stimuli"`
	BlockName      string                `json:"block_name"`
	RandomFixation int                   `json:"random_fixation"`
	Movement       int                   `json:"movement"`
	Position       int                   `json:"position"`
	Total          int                   `json:"total"`
	Params         session.DisplayParams `json:"params"`
}

// TrialRunner resolves the trial a run session currently points at.
type TrialRunner struct {
	store    TrialStore
	sessions *session.Manager
}

func NewTrialRunner(store TrialStore, sessions *session.Manager) *TrialRunner {
	return &TrialRunner{store: store, sessions: sessions}
}

// Present returns the current trial without touching the session. Repeated
// calls return the same trial until a response is captured.
func (r *TrialRunner) Present(ctx context.Context, token string) (*TrialView, error) {
	st, err := r.sessions.Get(ctx, token)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionMissing
	}
	if err != nil {
		return nil, err
	}
	if st.Done() {
		return nil, ErrRunComplete
	}
	id, ok := st.CurrentTrialID()
	if !ok {
		return nil, ErrSessionMissing
	}
	t, err := r.store.GetTrial(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: id %d", ErrTrialNotFound, id)
	}
	return &TrialView{
		TrialID:        t.ID,
		Stimuli:        t.Stimuli,
		BlockName:      t.BlockName,
		RandomFixation: t.RandomFixation,
		Movement:       t.Movement,
		Position:       st.Index + 1,
		Total:          st.Total(),
		Params:         st.Params,
	}, nil
}
