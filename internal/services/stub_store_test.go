package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soaringjerry/maat/internal/models"
	"github.com/soaringjerry/maat/internal/session"
)

// stubStore is an in-memory implementation of the service store interfaces.
type stubStore struct {
	mu           sync.Mutex
	nextID       int64
	experiments  map[int64]*models.Experiment
	trials       map[int64]*models.Trial
	participants map[int64]*models.Participant
	users        map[string]*models.User
	runs         map[string]*models.Run
	responses    []*models.Response
	exportFiles  []*models.ExportFile
	enrolled     map[[2]int64]time.Time
	insertErr    error
}

func newStubStore() *stubStore {
	return &stubStore{
		experiments:  map[int64]*models.Experiment{},
		trials:       map[int64]*models.Trial{},
		participants: map[int64]*models.Participant{},
		users:        map[string]*models.User{},
		runs:         map[string]*models.Run{},
		enrolled:     map[[2]int64]time.Time{},
	}
}

func (s *stubStore) id() int64 {
	s.nextID++
	return s.nextID
}

// seedExperiment adds an experiment with one trial per valence.
func (s *stubStore) seedExperiment(external string, valences ...int) (*models.Experiment, []*models.Trial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &models.Experiment{
		ID: s.id(), ExperimentID: external, Name: "Exp " + external,
		Instructions: "Press Y for positive words.",
		TextSize:     100, TextIncreaseSize: 120, TextDecreaseSize: 80,
	}
	s.experiments[e.ID] = e
	trials := make([]*models.Trial, 0, len(valences))
	for i, v := range valences {
		t := &models.Trial{ID: s.id(), ExperimentID: e.ID, BlockOrder: 1 + i/2, BlockName: fmt.Sprintf("block%d", 1+i/2), Stimuli: fmt.Sprintf("word%d.png", i), Valence: v}
		s.trials[t.ID] = t
		trials = append(trials, t)
	}
	return e, trials
}

func (s *stubStore) seedParticipant(subject string) *models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Participant{ID: s.id(), UserID: "u-" + subject, SubjectID: subject}
	s.participants[p.ID] = p
	return p
}

func (s *stubStore) responseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *stubStore) GetExperiment(_ context.Context, id int64) (*models.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.experiments[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) GetExperimentByExternalID(_ context.Context, external string) (*models.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.experiments {
		if e.ExperimentID == external {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListExperiments(_ context.Context) ([]*models.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Experiment{}
	for _, e := range s.experiments {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) InsertExperiment(_ context.Context, e *models.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.experiments {
		if other.ExperimentID == e.ExperimentID {
			return fmt.Errorf("insert experiment: %w", models.ErrConflict)
		}
	}
	e.ID = s.id()
	cp := *e
	s.experiments[e.ID] = &cp
	return nil
}

func (s *stubStore) UpdateExperiment(_ context.Context, e *models.Experiment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[e.ID]; !ok {
		return false, nil
	}
	for _, other := range s.experiments {
		if other.ID != e.ID && other.ExperimentID == e.ExperimentID {
			return false, fmt.Errorf("update experiment: %w", models.ErrConflict)
		}
	}
	cp := *e
	s.experiments[e.ID] = &cp
	return true, nil
}

func (s *stubStore) DeleteExperiment(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[id]; !ok {
		return false, nil
	}
	delete(s.experiments, id)
	for tid, t := range s.trials {
		if t.ExperimentID == id {
			delete(s.trials, tid)
		}
	}
	return true, nil
}

func (s *stubStore) ListTrials(_ context.Context, experimentID int64) ([]*models.Trial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Trial{}
	for _, t := range s.trials {
		if t.ExperimentID == experimentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) GetTrial(_ context.Context, id int64) (*models.Trial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trials[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) InsertTrial(_ context.Context, t *models.Trial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	cp := *t
	s.trials[t.ID] = &cp
	return nil
}

func (s *stubStore) UpdateTrial(_ context.Context, t *models.Trial) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trials[t.ID]; !ok {
		return false, nil
	}
	cp := *t
	s.trials[t.ID] = &cp
	return true, nil
}

func (s *stubStore) DeleteTrial(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trials[id]; !ok {
		return false, nil
	}
	delete(s.trials, id)
	return true, nil
}

func (s *stubStore) ListParticipants(_ context.Context) ([]*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Participant{}
	for _, p := range s.participants {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) GetParticipant(_ context.Context, id int64) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.participants[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) GetParticipantBySubjectID(_ context.Context, subject string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.SubjectID == subject {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) CreateParticipant(_ context.Context, u *models.User, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.participants {
		if other.SubjectID == p.SubjectID {
			return fmt.Errorf("insert participant: %w", models.ErrConflict)
		}
	}
	s.users[u.ID] = u
	p.ID = s.id()
	cp := *p
	s.participants[p.ID] = &cp
	return nil
}

func (s *stubStore) UpdateParticipant(_ context.Context, p *models.Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return false, nil
	}
	for _, other := range s.participants {
		if other.ID != p.ID && other.SubjectID == p.SubjectID {
			return false, fmt.Errorf("update participant: %w", models.ErrConflict)
		}
	}
	cp := *p
	s.participants[p.ID] = &cp
	return true, nil
}

func (s *stubStore) DeleteParticipant(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return false, nil
	}
	delete(s.participants, id)
	delete(s.users, p.UserID)
	kept := s.responses[:0]
	for _, r := range s.responses {
		if r.ParticipantID != id {
			kept = append(kept, r)
		}
	}
	s.responses = kept
	return true, nil
}

func (s *stubStore) Enroll(_ context.Context, participantID, experimentID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]int64{participantID, experimentID}
	if _, ok := s.enrolled[k]; !ok {
		s.enrolled[k] = at
	}
	return nil
}

func (s *stubStore) CreateRun(_ context.Context, r *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}

func (s *stubStore) CompleteRun(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[id]; ok && !r.CompletedAt.Valid {
		r.CompletedAt.Time = at
		r.CompletedAt.Valid = true
	}
	return nil
}

func (s *stubStore) InsertResponse(_ context.Context, r *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if r.RunID.Valid && r.Position.Valid {
		for _, other := range s.responses {
			if other.RunID == r.RunID && other.Position == r.Position {
				return fmt.Errorf("insert response: %w", models.ErrConflict)
			}
		}
	}
	r.ID = s.id()
	cp := *r
	s.responses = append(s.responses, &cp)
	return nil
}

func (s *stubStore) ListResponsesByExperiment(_ context.Context, experimentID int64) ([]*models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Response{}
	for _, r := range s.responses {
		if t, ok := s.trials[r.TrialID]; ok && t.ExperimentID == experimentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubStore) resultRow(r *models.Response) (models.ResultRow, bool) {
	t, ok := s.trials[r.TrialID]
	if !ok {
		return models.ResultRow{}, false
	}
	p := s.participants[r.ParticipantID]
	e := s.experiments[t.ExperimentID]
	if p == nil || e == nil {
		return models.ResultRow{}, false
	}
	return models.ResultRow{
		SubjectID: p.SubjectID, TrialID: t.ID, Stimuli: t.Stimuli, Valence: t.Valence,
		BlockName: t.BlockName, ResponseTime: r.ResponseTime, Accuracy: r.Accuracy,
		ExperimentID: e.ExperimentID, RunID: r.RunID, ResponseKey: r.ResponseKey,
	}, true
}

func (s *stubStore) ListResultRowsByParticipant(_ context.Context, participantID int64) ([]models.ResultRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ResultRow{}
	for _, r := range s.responses {
		if r.ParticipantID != participantID {
			continue
		}
		if row, ok := s.resultRow(r); ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubStore) ListResultRows(_ context.Context) ([]models.ResultRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ResultRow{}
	for _, r := range s.responses {
		if row, ok := s.resultRow(r); ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubStore) UpsertExportFile(_ context.Context, f *models.ExportFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.exportFiles {
		if other.Filename == f.Filename {
			cp := *f
			cp.ID = other.ID
			s.exportFiles[i] = &cp
			return nil
		}
	}
	f.ID = s.id()
	cp := *f
	s.exportFiles = append(s.exportFiles, &cp)
	return nil
}

func (s *stubStore) ListExportFiles(_ context.Context) ([]*models.ExportFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ExportFile, 0, len(s.exportFiles))
	for _, f := range s.exportFiles {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubStore) DeleteExportFile(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.exportFiles[:0]
	for _, f := range s.exportFiles {
		if f.Filename != filename {
			kept = append(kept, f)
		}
	}
	s.exportFiles = kept
	return nil
}

func (s *stubStore) Counts(_ context.Context) (*models.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.Counts{
		Experiments:  len(s.experiments),
		Participants: len(s.participants),
		Trials:       len(s.trials),
		Responses:    len(s.responses),
		ExportFiles:  len(s.exportFiles),
	}, nil
}

// runHarness wires the run services over one stub store and a memory session store.
type runHarness struct {
	store     *stubStore
	sessions  *session.Manager
	runs      *RunService
	trials    *TrialRunner
	responses *ResponseService
	exports   *ExportService
}

func newRunHarness(dir string) *runHarness {
	store := newStubStore()
	mgr := session.NewManager(session.NewMemoryStore(0))
	exports := NewExportService(store, dir)
	exports.now = func() time.Time { return time.Date(2025, 3, 4, 10, 11, 12, 0, time.UTC) }
	runs := NewRunService(store, mgr, exports)
	runs.seedGen = func() int64 { return 42 }
	return &runHarness{
		store:     store,
		sessions:  mgr,
		runs:      runs,
		trials:    NewTrialRunner(store, mgr),
		responses: NewResponseService(store, mgr),
		exports:   exports,
	}
}
