package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/soaringjerry/maat/internal/middleware"
	"github.com/soaringjerry/maat/internal/services"
	"github.com/soaringjerry/maat/internal/session"
)

// RunCookie holds the opaque run session token.
const RunCookie = "maat_run"

func runToken(r *http.Request) string {
	c, err := r.Cookie(RunCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func (h *handlers) setRunCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RunCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken returns the caller's run token or ErrSessionMissing.
func sessionToken(r *http.Request) (string, error) {
	tok := runToken(r)
	if tok == "" {
		return "", services.ErrSessionMissing
	}
	return tok, nil
}

func instructionsPath(participantID, experimentID int64) string {
	return fmt.Sprintf("/instructions/%d/%d/", participantID, experimentID)
}

func startPath(participantID, experimentID int64) string {
	return fmt.Sprintf("/start-experiment/%d/%d/", participantID, experimentID)
}

// GET /participant-login/
func (h *handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"locale": middleware.LocaleFromContext(r.Context()),
		"fields": []string{"participant_id", "experiment_id"},
		"action": pathLogin,
	})
}

// POST /participant-login/ with participant_id (subject id) and experiment_id
// (external experiment id).
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	in, err := formValues(w, r, "participant_id", "experiment_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.Participants.Login(r.Context(), in["participant_id"], in["experiment_id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	next := instructionsPath(res.ParticipantID, res.ExperimentID)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"login": res, "next": next})
		return
	}
	redirect(w, r, next)
}

func flowIDs(r *http.Request) (int64, int64, error) {
	pid, err := pathID(r, "participant_id")
	if err != nil {
		return 0, 0, err
	}
	eid, err := pathID(r, "experiment_id")
	if err != nil {
		return 0, 0, err
	}
	return pid, eid, nil
}

// GET /instructions/{participant_id}/{experiment_id}/
func (h *handlers) instructions(w http.ResponseWriter, r *http.Request) {
	pid, eid, err := flowIDs(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ins, err := h.svc.Participants.Instructions(r.Context(), pid, eid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instructions": ins, "next": startPath(pid, eid)})
}

// POST /instructions/{participant_id}/{experiment_id}/
func (h *handlers) acceptInstructions(w http.ResponseWriter, r *http.Request) {
	pid, eid, err := flowIDs(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if _, err := h.svc.Participants.Instructions(r.Context(), pid, eid); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	redirect(w, r, startPath(pid, eid))
}

// GET /start-experiment/{participant_id}/{experiment_id}/
func (h *handlers) startExperiment(w http.ResponseWriter, r *http.Request) {
	pid, eid, err := flowIDs(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	token := runToken(r)
	if token == "" {
		token = uuid.NewString()
	}
	st, err := h.svc.Runs.Start(r.Context(), token, pid, eid)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.setRunCookie(w, token)
	next := pathRunTrial
	if st.Status == session.StatusComplete {
		next = pathComplete
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"run_id": st.RunID, "total": st.Total(), "next": next})
		return
	}
	redirect(w, r, next)
}

// GET /run-trial/
func (h *handlers) runTrial(w http.ResponseWriter, r *http.Request) {
	token, err := sessionToken(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	view, err := h.svc.Trials.Present(r.Context(), token)
	switch {
	case errors.Is(err, services.ErrRunComplete):
		redirect(w, r, pathComplete)
		return
	case err != nil:
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /save-response/ with response_time, response_key and optional trial_id.
func (h *handlers) saveResponse(w http.ResponseWriter, r *http.Request) {
	token, err := sessionToken(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	in, err := formValues(w, r, "response_time", "response_key", "trial_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	req := services.CaptureRequest{ResponseTime: in["response_time"], ResponseKey: in["response_key"]}
	if raw := strings.TrimSpace(in["trial_id"]); raw != "" {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || id <= 0 {
			h.writeServiceError(w, r, services.NewValidationError(map[string]string{"trial_id": "must be a positive integer"}))
			return
		}
		req.TrialID = id
	}
	res, err := h.svc.Responses.Capture(r.Context(), token, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	next := pathRunTrial
	if res.Complete {
		next = pathComplete
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"response": res, "next": next})
		return
	}
	redirect(w, r, next)
}

// GET /experiment-complete/
func (h *handlers) experimentComplete(w http.ResponseWriter, r *http.Request) {
	token, err := sessionToken(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	done, err := h.svc.Runs.Complete(r.Context(), token)
	switch {
	case errors.Is(err, services.ErrRunIncomplete):
		redirect(w, r, pathRunTrial)
		return
	case err != nil:
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, done)
}
