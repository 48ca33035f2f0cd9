// Package session holds the per-participant Run Session: an explicit
// NotStarted | Running | Complete state keyed by an opaque browser token.
package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no state exists for a token.
var ErrNotFound = errors.New("run session not found")

// ErrNotRunning is returned by Advance outside the Running state.
var ErrNotRunning = errors.New("run session is not running")

// Status tags the run state.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
)

// DisplayParams is the text-size snapshot copied from the experiment at start.
type DisplayParams struct {
	TextSize         int `json:"text_size"`
	TextIncreaseSize int `json:"text_increase_size"`
	TextDecreaseSize int `json:"text_decrease_size"`
}

// RunState is the stored session. Index stays within [0, len(TrialIDs)].
type RunState struct {
	Status        Status        `json:"status"`
	RunID         string        `json:"run_id,omitempty"`
	ParticipantID int64         `json:"participant_id"`
	ExperimentID  int64         `json:"experiment_id"`
	TrialIDs      []int64       `json:"trial_ids"`
	Index         int           `json:"index"`
	Params        DisplayParams `json:"params"`
	Seed          int64         `json:"seed"`
	Exported      bool          `json:"exported,omitempty"`
	ExportFile    string        `json:"export_file,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
}

// NewRunning builds a Running state at index 0, or a Complete one when there
// are no trials.
func NewRunning(runID string, participantID, experimentID int64, trialIDs []int64, params DisplayParams, seed int64, now time.Time) *RunState {
	st := &RunState{
		Status:        StatusRunning,
		RunID:         runID,
		ParticipantID: participantID,
		ExperimentID:  experimentID,
		TrialIDs:      append([]int64(nil), trialIDs...),
		Params:        params,
		Seed:          seed,
		StartedAt:     now,
	}
	if len(st.TrialIDs) == 0 {
		st.Status = StatusComplete
	}
	return st
}

// Done reports whether every trial has been answered.
func (s *RunState) Done() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusComplete || s.Index >= len(s.TrialIDs)
}

// Total is the number of trials in the run.
func (s *RunState) Total() int { return len(s.TrialIDs) }

// CurrentTrialID returns the trial at the current index.
func (s *RunState) CurrentTrialID() (int64, bool) {
	if s == nil || s.Status != StatusRunning || s.Index < 0 || s.Index >= len(s.TrialIDs) {
		return 0, false
	}
	return s.TrialIDs[s.Index], true
}

// Advance moves to the next index, switching to Complete at the end.
func (s *RunState) Advance() error {
	if s == nil || s.Status != StatusRunning || s.Index >= len(s.TrialIDs) {
		return ErrNotRunning
	}
	s.Index++
	if s.Index >= len(s.TrialIDs) {
		s.Status = StatusComplete
	}
	return nil
}

// Clone returns a deep copy.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.TrialIDs = append([]int64(nil), s.TrialIDs...)
	return &cp
}
