package services

import (
	"context"
	"sort"

	"github.com/soaringjerry/maat/internal/models"
)

type AnalyticsStore interface {
	GetExperiment(ctx context.Context, id int64) (*models.Experiment, error)
	ListTrials(ctx context.Context, experimentID int64) ([]*models.Trial, error)
	ListResponsesByExperiment(ctx context.Context, experimentID int64) ([]*models.Response, error)
	Counts(ctx context.Context) (*models.Counts, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

type BlockSummary struct {
	BlockOrder       int     `json:"block_order"`
	BlockName        string  `json:"block_name"`
	Trials           int     `json:"trials"`
	Responses        int     `json:"responses"`
	AccuracyRate     float64 `json:"accuracy_rate"`
	MeanResponseTime float64 `json:"mean_response_time"`
}

type AnalyticsTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type ExperimentSummary struct {
	ExperimentID     string                `json:"experiment_id"`
	Name             string                `json:"name"`
	Trials           int                   `json:"trials"`
	Participants     int                   `json:"participants"`
	TotalResponses   int                   `json:"total_responses"`
	AccuracyRate     float64               `json:"accuracy_rate"`
	MeanResponseTime float64               `json:"mean_response_time"`
	Blocks           []BlockSummary        `json:"blocks"`
	Timeseries       []AnalyticsTimeseries `json:"timeseries"`
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Dashboard returns the record counts shown to researchers.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*models.Counts, error) {
	return s.store.Counts(ctx)
}

type blockKey struct {
	order int
	name  string
}

type tally struct {
	n       int
	correct int
	rt      float64
}

func (t tally) rates() (float64, float64) {
	if t.n == 0 {
		return 0, 0
	}
	return float64(t.correct) / float64(t.n), t.rt / float64(t.n)
}

// Summary aggregates accuracy and response time per block of an experiment.
func (s *AnalyticsService) Summary(ctx context.Context, experimentID int64) (*ExperimentSummary, error) {
	e, err := s.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewNotFoundError("experiment not found")
	}
	trials, err := s.store.ListTrials(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponsesByExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	trialBlock := make(map[int64]blockKey, len(trials))
	trialCount := map[blockKey]int{}
	for _, t := range trials {
		k := blockKey{order: t.BlockOrder, name: t.BlockName}
		trialBlock[t.ID] = k
		trialCount[k]++
	}

	perBlock := map[blockKey]*tally{}
	var total tally
	participants := map[int64]struct{}{}
	countsByDay := map[string]int{}
	for _, r := range responses {
		k, ok := trialBlock[r.TrialID]
		if !ok {
			continue
		}
		b := perBlock[k]
		if b == nil {
			b = &tally{}
			perBlock[k] = b
		}
		for _, t := range []*tally{b, &total} {
			t.n++
			t.correct += r.Accuracy
			t.rt += r.ResponseTime
		}
		participants[r.ParticipantID] = struct{}{}
		countsByDay[r.CreatedAt.UTC().Format("2006-01-02")]++
	}

	keys := make([]blockKey, 0, len(trialCount))
	for k := range trialCount {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].order != keys[j].order {
			return keys[i].order < keys[j].order
		}
		return keys[i].name < keys[j].name
	})
	blocks := make([]BlockSummary, 0, len(keys))
	for _, k := range keys {
		var t tally
		if b := perBlock[k]; b != nil {
			t = *b
		}
		acc, rt := t.rates()
		blocks = append(blocks, BlockSummary{
			BlockOrder:       k.order,
			BlockName:        k.name,
			Trials:           trialCount[k],
			Responses:        t.n,
			AccuracyRate:     acc,
			MeanResponseTime: rt,
		})
	}
	acc, rt := total.rates()
	return &ExperimentSummary{
		ExperimentID:     e.ExperimentID,
		Name:             e.Name,
		Trials:           len(trials),
		Participants:     len(participants),
		TotalResponses:   total.n,
		AccuracyRate:     acc,
		MeanResponseTime: rt,
		Blocks:           blocks,
		Timeseries:       buildTimeseries(countsByDay),
	}, nil
}

func buildTimeseries(counts map[string]int) []AnalyticsTimeseries {
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]AnalyticsTimeseries, 0, len(days))
	for _, d := range days {
		out = append(out, AnalyticsTimeseries{Date: d, Count: counts[d]})
	}
	return out
}
