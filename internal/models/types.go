package models

import (
	"database/sql"
	"errors"
	"time"
)

// ErrConflict is wrapped by stores when a write violates a uniqueness rule.
var ErrConflict = errors.New("record conflict")

// Role names for accounts.
const (
	RoleResearcher  = "researcher"
	RoleParticipant = "participant"
)

// Default display sizes applied when an experiment leaves them unset.
const (
	DefaultTextSize         = 100
	DefaultTextIncreaseSize = 120
	DefaultTextDecreaseSize = 80
)

// Experiment is a researcher-defined study with its display parameters.
type Experiment struct {
	ID               int64     `db:"id" json:"id"`
	ExperimentID     string    `db:"experiment_id" json:"experiment_id"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	Instructions     string    `db:"instructions" json:"instructions"`
	NumTrials        int       `db:"num_trials" json:"num_trials"`
	TextSize         int       `db:"text_size" json:"text_size"`
	TextIncreaseSize int       `db:"text_increase_size" json:"text_increase_size"`
	TextDecreaseSize int       `db:"text_decrease_size" json:"text_decrease_size"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// User is an account. Researchers carry credentials; participant accounts
// exist only to anchor the one-to-one participant link.
type User struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	PassHash  []byte    `db:"pass_hash"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// Participant is a study subject identified externally by SubjectID.
type Participant struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Participation records a participant joining an experiment.
type Participation struct {
	ParticipantID int64     `db:"participant_id" json:"participant_id"`
	ExperimentID  int64     `db:"experiment_id" json:"experiment_id"`
	JoinedAt      time.Time `db:"joined_at" json:"joined_at"`
}

// Trial is one stimulus presentation belonging to an experiment.
type Trial struct {
	ID             int64  `db:"id" json:"id"`
	ExperimentID   int64  `db:"experiment_id" json:"experiment_id"`
	BlockOrder     int    `db:"block_order" json:"block_order"`
	BlockName      string `db:"block_name" json:"block_name"`
	Stimuli        string `db:"stimuli" json:"stimuli"`
	Valence        int    `db:"valence" json:"valence"`
	RandomFixation int    `db:"random_fixation" json:"random_fixation"`
	Movement       int    `db:"movement" json:"movement"`
}

// Run is the durable record of one participant run through an experiment.
type Run struct {
	ID            string       `db:"id" json:"id"`
	ParticipantID int64        `db:"participant_id" json:"participant_id"`
	ExperimentID  int64        `db:"experiment_id" json:"experiment_id"`
	Seed          int64        `db:"seed" json:"seed"`
	TrialOrder    string       `db:"trial_order" json:"trial_order"`
	StartedAt     time.Time    `db:"started_at" json:"started_at"`
	CompletedAt   sql.NullTime `db:"completed_at" json:"-"`
}

// Response is a single captured key press for a trial.
type Response struct {
	ID            int64          `db:"id" json:"id"`
	ParticipantID int64          `db:"participant_id" json:"participant_id"`
	TrialID       int64          `db:"trial_id" json:"trial_id"`
	RunID         sql.NullString `db:"run_id" json:"-"`
	Position      sql.NullInt64  `db:"position" json:"-"`
	ResponseKey   string         `db:"response_key" json:"response_key"`
	ResponseTime  float64        `db:"response_time" json:"response_time"`
	Accuracy      int            `db:"accuracy" json:"accuracy"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// ResultRow is a response joined to its trial and experiment for export.
type ResultRow struct {
	SubjectID    string         `db:"subject_id"`
	TrialID      int64          `db:"trial_id"`
	Stimuli      string         `db:"stimuli"`
	Valence      int            `db:"valence"`
	BlockName    string         `db:"block_name"`
	ResponseTime float64        `db:"response_time"`
	Accuracy     int            `db:"accuracy"`
	ExperimentID string         `db:"experiment_external_id"`
	RunID        sql.NullString `db:"run_id"`
	ResponseKey  string         `db:"response_key"`
}

// ExportFile is a manifest entry for a generated per-run CSV.
type ExportFile struct {
	ID            int64          `db:"id" json:"id"`
	Filename      string         `db:"filename" json:"filename"`
	ParticipantID sql.NullInt64  `db:"participant_id" json:"-"`
	RunID         sql.NullString `db:"run_id" json:"-"`
	Rows          int            `db:"row_count" json:"rows"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Counts summarizes table sizes for the researcher dashboard.
type Counts struct {
	Experiments  int `db:"experiments" json:"experiments"`
	Participants int `db:"participants" json:"participants"`
	Trials       int `db:"trials" json:"trials"`
	Responses    int `db:"responses" json:"responses"`
	ExportFiles  int `db:"export_files" json:"export_files"`
}
