package api

import (
	"net/http"

	"github.com/soaringjerry/maat/internal/services"
)

type participantInput struct {
	SubjectID string `json:"subject_id"`
}

// GET /researcher-dashboard/
func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Analytics.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *handlers) listExperiments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Experiments.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": list})
}

func (h *handlers) createExperiment(w http.ResponseWriter, r *http.Request) {
	var in services.ExperimentInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	e, err := h.svc.Experiments.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handlers) configureExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	cfg, err := h.svc.Experiments.Configure(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handlers) editExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in services.ExperimentInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	e, err := h.svc.Experiments.Update(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handlers) deleteExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.Experiments.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": id})
}

func (h *handlers) experimentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sum, err := h.svc.Analytics.Summary(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *handlers) listParticipants(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Participants.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": list})
}

func (h *handlers) registerParticipant(w http.ResponseWriter, r *http.Request) {
	var in participantInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Participants.Register(r.Context(), in.SubjectID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handlers) editParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in participantInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Participants.Update(r.Context(), id, in.SubjectID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) deleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.Participants.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": id})
}

func (h *handlers) createTrial(w http.ResponseWriter, r *http.Request) {
	var in services.TrialInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	t, err := h.svc.Experiments.CreateTrial(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handlers) editTrial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in services.TrialInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	t, err := h.svc.Experiments.UpdateTrial(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) deleteTrial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.Experiments.DeleteTrial(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": id})
}
