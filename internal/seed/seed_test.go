package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/maat/internal/db"
	"github.com/soaringjerry/maat/internal/services"
)

const doc = `
experiments:
  - experiment_id: E1
    name: First
    instructions: Press Y for positive words.
    trials:
      - {block_order: 1, block_name: b1, stimuli: good, valence: 1}
      - {block_order: 1, block_name: b1, stimuli: bad, valence: 0}
participants: [S01, S02]
`

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("experiments:\n  - experiment_id: E\n    colour: red\n"))
	assert.Error(t, err)

	f, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Experiments)
}

func TestApplyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(ctx, "file:seedtest?mode=memory&cache=shared", "")
	require.NoError(t, err)
	defer store.Close()

	f, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	exps := services.NewExperimentService(store)
	parts := services.NewParticipantService(store)

	res, err := Apply(ctx, f, exps, parts)
	require.NoError(t, err)
	assert.Equal(t, &Result{Experiments: 1, Trials: 2, Participants: 2}, res)

	again, err := Apply(ctx, f, exps, parts)
	require.NoError(t, err)
	assert.Equal(t, &Result{Skipped: 3}, again)

	e, err := store.GetExperimentByExternalID(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 100, e.TextSize)
	trials, err := store.ListTrials(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, trials, 2)
}

func TestApplyReportsInvalidTrial(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(ctx, "file:seedbad?mode=memory&cache=shared", "")
	require.NoError(t, err)
	defer store.Close()

	f := &File{Experiments: []Experiment{{ExperimentID: "E", Name: "E", Trials: []Trial{{BlockName: "b", Stimuli: "x", Valence: 3}}}}}
	_, err = Apply(ctx, f, services.NewExperimentService(store), services.NewParticipantService(store))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trial 1")
}
