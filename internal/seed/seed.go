// Package seed loads experiment and participant definitions from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/maat/internal/services"
)

type Trial struct {
	BlockOrder     int    `yaml:"block_order"`
	BlockName      string `yaml:"block_name"`
	Stimuli        string `yaml:"stimuli"`
	Valence        int    `yaml:"valence"`
	RandomFixation int    `yaml:"random_fixation"`
	Movement       int    `yaml:"movement"`
}

type Experiment struct {
	ExperimentID     string  `yaml:"experiment_id"`
	Name             string  `yaml:"name"`
	Description      string  `yaml:"description"`
	Instructions     string  `yaml:"instructions"`
	NumTrials        int     `yaml:"num_trials"`
	TextSize         int     `yaml:"text_size"`
	TextIncreaseSize int     `yaml:"text_increase_size"`
	TextDecreaseSize int     `yaml:"text_decrease_size"`
	Trials           []Trial `yaml:"trials"`
}

// File is the top-level document.
type File struct {
	Experiments  []Experiment `yaml:"experiments"`
	Participants []string     `yaml:"participants"`
}

// Result counts what Apply created and skipped.
type Result struct {
	Experiments  int `json:"experiments"`
	Trials       int `json:"trials"`
	Participants int `json:"participants"`
	Skipped      int `json:"skipped"`
}

func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Decode(fh)
}

// Apply creates every experiment with its trials and every participant.
// Entries that already exist are counted as skipped; trials of a skipped
// experiment are not touched.
func Apply(ctx context.Context, f *File, experiments *services.ExperimentService, participants *services.ParticipantService) (*Result, error) {
	res := &Result{}
	for _, e := range f.Experiments {
		created, err := experiments.Create(ctx, services.ExperimentInput{
			ExperimentID:     e.ExperimentID,
			Name:             e.Name,
			Description:      e.Description,
			Instructions:     e.Instructions,
			NumTrials:        e.NumTrials,
			TextSize:         e.TextSize,
			TextIncreaseSize: e.TextIncreaseSize,
			TextDecreaseSize: e.TextDecreaseSize,
		})
		if isConflict(err) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("experiment %q: %w", e.ExperimentID, err)
		}
		res.Experiments++
		for i, t := range e.Trials {
			_, err := experiments.CreateTrial(ctx, services.TrialInput{
				ExperimentID:   created.ID,
				BlockOrder:     t.BlockOrder,
				BlockName:      t.BlockName,
				Stimuli:        t.Stimuli,
				Valence:        t.Valence,
				RandomFixation: t.RandomFixation,
				Movement:       t.Movement,
			})
			if err != nil {
				return res, fmt.Errorf("experiment %q trial %d: %w", e.ExperimentID, i+1, err)
			}
			res.Trials++
		}
	}
	for _, subject := range f.Participants {
		_, err := participants.Register(ctx, subject)
		if isConflict(err) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("participant %q: %w", subject, err)
		}
		res.Participants++
	}
	return res, nil
}

func isConflict(err error) bool {
	se, ok := services.AsServiceError(err)
	return ok && se.Code == services.ErrorConflict
}
