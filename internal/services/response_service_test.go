package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soaringjerry/maat/internal/models"
)

func startedHarness(t *testing.T, valences ...int) (*runHarness, string) {
	t.Helper()
	h := newRunHarness(t.TempDir())
	e, _ := h.store.seedExperiment("E", valences...)
	p := h.store.seedParticipant("S01")
	if _, err := h.runs.Start(context.Background(), "tok", p.ID, e.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h, "tok"
}

func TestCaptureValidation(t *testing.T) {
	h, tok := startedHarness(t, 1)
	ctx := context.Background()
	cases := []struct {
		rt, key string
		field   string
	}{
		{"", "Y", "response_time"},
		{"-5", "Y", "response_time"},
		{"abc", "Y", "response_time"},
		{"100", "", "response_key"},
		{"100", "maybe", "response_key"},
	}
	for _, c := range cases {
		_, err := h.responses.Capture(ctx, tok, CaptureRequest{ResponseTime: c.rt, ResponseKey: c.key})
		se, ok := AsServiceError(err)
		if !ok || se.Code != ErrorInvalid || se.Fields[c.field] == "" {
			t.Fatalf("Capture(%q,%q) err = %v", c.rt, c.key, err)
		}
	}
	if n := h.store.responseCount(); n != 0 {
		t.Fatalf("responses stored = %d", n)
	}
	st, _ := h.sessions.Get(ctx, tok)
	if st.Index != 0 {
		t.Fatalf("index moved to %d", st.Index)
	}
}

func TestCaptureNormalizesKeyAndStoresPosition(t *testing.T) {
	h, tok := startedHarness(t, 1, 1)
	ctx := context.Background()
	res, err := h.responses.Capture(ctx, tok, CaptureRequest{ResponseTime: " 250 ", ResponseKey: " y "})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Accuracy != 1 || res.Position != 1 || res.Total != 2 || res.Complete {
		t.Fatalf("result = %+v", res)
	}
	r := h.store.responses[0]
	if r.ResponseKey != "Y" || r.ResponseTime != 250 || !r.Position.Valid || r.Position.Int64 != 0 || !r.RunID.Valid {
		t.Fatalf("stored response = %+v", r)
	}
}

func TestCaptureStaleTrialRejected(t *testing.T) {
	h, tok := startedHarness(t, 1, 0)
	ctx := context.Background()
	view, err := h.trials.Present(ctx, tok)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	_, err = h.responses.Capture(ctx, tok, CaptureRequest{TrialID: view.TrialID + 1000, ResponseTime: "1", ResponseKey: "Y"})
	if !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("err = %v", err)
	}
	if h.store.responseCount() != 0 {
		t.Fatalf("stale submission stored")
	}
}

func TestCaptureAfterCompleteRejected(t *testing.T) {
	h, tok := startedHarness(t, 0)
	ctx := context.Background()
	if _, err := h.responses.Capture(ctx, tok, CaptureRequest{ResponseTime: "1", ResponseKey: "N"}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := h.responses.Capture(ctx, tok, CaptureRequest{ResponseTime: "1", ResponseKey: "N"}); !errors.Is(err, ErrRunComplete) {
		t.Fatalf("err = %v", err)
	}
	if h.store.responseCount() != 1 {
		t.Fatalf("responses = %d", h.store.responseCount())
	}
}

// Two submissions for the same trial race; only one row may exist and the
// index advances once.
func TestCaptureDoubleSubmitSameTrial(t *testing.T) {
	h, tok := startedHarness(t, 1, 0, 1)
	ctx := context.Background()
	view, err := h.trials.Present(ctx, tok)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.responses.Capture(ctx, tok, CaptureRequest{TrialID: view.TrialID, ResponseTime: "300", ResponseKey: "Y"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrStaleSubmission):
		default:
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("accepted = %d, want 1", ok)
	}
	if n := h.store.responseCount(); n != 1 {
		t.Fatalf("responses = %d, want 1", n)
	}
	st, _ := h.sessions.Get(ctx, tok)
	if st.Index != 1 {
		t.Fatalf("index = %d, want 1", st.Index)
	}
}

// A session that lost its last save still points at a stored position; the
// unique constraint catches it and the session catches up.
func TestCaptureStorageConflictAdvancesSession(t *testing.T) {
	h, tok := startedHarness(t, 1, 0)
	ctx := context.Background()
	st, _ := h.sessions.Get(ctx, tok)
	first, _ := st.CurrentTrialID()
	h.store.responses = append(h.store.responses, &models.Response{
		ID: 900, ParticipantID: st.ParticipantID, TrialID: first,
		RunID:       sql.NullString{String: st.RunID, Valid: true},
		Position:    sql.NullInt64{Int64: 0, Valid: true},
		ResponseKey: "Y", Accuracy: 1, CreatedAt: time.Now(),
	})

	_, err := h.responses.Capture(ctx, tok, CaptureRequest{ResponseTime: "5", ResponseKey: "Y"})
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("err = %v", err)
	}
	if n := h.store.responseCount(); n != 1 {
		t.Fatalf("responses = %d", n)
	}
	after, _ := h.sessions.Get(ctx, tok)
	if after.Index != 1 {
		t.Fatalf("index = %d, want 1", after.Index)
	}
	res, err := h.responses.Capture(ctx, tok, CaptureRequest{ResponseTime: "5", ResponseKey: "N"})
	if err != nil || !res.Complete {
		t.Fatalf("next capture = %+v, %v", res, err)
	}
}

func TestCaptureStoreErrorKeepsIndex(t *testing.T) {
	h, tok := startedHarness(t, 1)
	ctx := context.Background()
	h.store.insertErr = fmt.Errorf("disk full")
	if _, err := h.responses.Capture(ctx, tok, CaptureRequest{ResponseTime: "5", ResponseKey: "Y"}); err == nil {
		t.Fatalf("expected error")
	}
	st, _ := h.sessions.Get(ctx, tok)
	if st.Index != 0 {
		t.Fatalf("index = %d", st.Index)
	}
}

func TestCaptureResubmissionDependsOnTrialID(t *testing.T) {
	h, tok := startedHarness(t, 1, 0, 1)
	ctx := context.Background()
	first, err := h.trials.Present(ctx, tok)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	req := CaptureRequest{TrialID: first.TrialID, ResponseTime: "300", ResponseKey: "Y"}
	if _, err := h.responses.Capture(ctx, tok, req); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := h.responses.Capture(ctx, tok, req); !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("resubmission with trial id err = %v", err)
	}
	if h.store.responseCount() != 1 {
		t.Fatalf("responses = %d", h.store.responseCount())
	}

	req.TrialID = 0
	res, err := h.responses.Capture(ctx, tok, req)
	if err != nil {
		t.Fatalf("resubmission without trial id: %v", err)
	}
	if res.TrialID == first.TrialID || res.Position != 2 {
		t.Fatalf("result = %+v, want next trial", res)
	}
}
