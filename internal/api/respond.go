package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soaringjerry/maat/internal/middleware"
	"github.com/soaringjerry/maat/internal/services"
	"github.com/soaringjerry/maat/internal/utils"
)

const maxBodyBytes = 1 << 20

// Participant flow locations.
const (
	pathLogin    = "/participant-login/"
	pathRunTrial = "/run-trial/"
	pathComplete = "/experiment-complete/"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorInvalidCredential, services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageKey maps sentinel errors onto translation keys; other service
// messages are already keys or plain text.
func messageKey(err error, se *services.ServiceError) string {
	switch {
	case errors.Is(err, services.ErrRunComplete):
		return "run_complete"
	case errors.Is(err, services.ErrStaleSubmission):
		return "stale_submission"
	case errors.Is(err, services.ErrDuplicateSubmission):
		return "duplicate_submission"
	}
	return se.Message
}

// writeServiceError maps err onto an HTTP answer. A missing run session
// sends the participant back to login; anything that is not a ServiceError
// is logged and reported as 500.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"})
		return
	}
	if se.Code == services.ErrorSessionMissing {
		redirect(w, r, pathLogin)
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, statusFor(se.Code), errorBody{
		Code:    string(se.Code),
		Message: utils.T(locale, messageKey(err, se)),
		Fields:  se.Fields,
	})
}

// pathID parses a positive int64 URL parameter. A malformed id answers 404
// since no such resource can exist.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewNotFoundError(fmt.Sprintf("%s %q not found", name, raw))
	}
	return id, nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// wantsJSON reports whether the client asked for a JSON answer instead of a
// redirect.
func wantsJSON(r *http.Request) bool {
	return isJSON(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.NewInvalidError("request body required")
		}
		return services.NewInvalidError("invalid JSON: " + err.Error())
	}
	return nil
}

// formValues reads the named fields from a JSON object body or a form.
func formValues(w http.ResponseWriter, r *http.Request, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	if isJSON(r) {
		raw := map[string]any{}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
			return nil, services.NewInvalidError("invalid JSON: " + err.Error())
		}
		for _, n := range names {
			switch v := raw[n].(type) {
			case nil:
			case string:
				out[n] = v
			case float64:
				out[n] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				out[n] = fmt.Sprint(v)
			}
		}
		return out, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, services.NewInvalidError("invalid form: " + err.Error())
	}
	for _, n := range names {
		out[n] = r.PostFormValue(n)
	}
	return out, nil
}
