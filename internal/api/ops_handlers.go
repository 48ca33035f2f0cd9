package api

import (
	"net/http"

	"github.com/soaringjerry/maat/internal/middleware"
	"github.com/soaringjerry/maat/internal/utils"
)

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	body := map[string]any{
		"ok":         true,
		"name":       "MAAT",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     h.opts.Commit,
		"build_time": h.opts.BuildTime,
	}
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			body["ok"] = false
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"commit":     h.opts.Commit,
		"build_time": h.opts.BuildTime,
	})
}
