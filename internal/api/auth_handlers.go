package api

import (
	"net/http"

	"github.com/soaringjerry/maat/internal/middleware"
)

// POST /auth/login/ with email and password, as JSON or a form.
func (h *handlers) researcherLogin(w http.ResponseWriter, r *http.Request) {
	in, err := formValues(w, r, "email", "password")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.Auth.Login(r.Context(), in["email"], in["password"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ResearcherCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.svc.Auth.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, res)
}
