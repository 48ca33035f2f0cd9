package middleware

import (
	"context"
	"net/http"

	"github.com/soaringjerry/maat/internal/utils"
)

type ctxKey int

const localeKey ctxKey = 1

// DefaultLocale is used when nothing in the request matches.
const DefaultLocale = "en"

// SupportedLocales are the languages the API translates its messages into.
var SupportedLocales = []string{DefaultLocale, "zh"}

// Locale picks the response language from ?lang= or Accept-Language,
// stores it in the request context and echoes it as Content-Language.
// With no arguments it negotiates over SupportedLocales.
func Locale(supported ...string) func(http.Handler) http.Handler {
	if len(supported) == 0 {
		supported = SupportedLocales
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := utils.DetermineLocale(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), supported, DefaultLocale)
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
		})
	}
}

// WithLocale returns a copy of ctx carrying locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey, locale)
}

// LocaleFromContext returns the negotiated locale, or DefaultLocale.
func LocaleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(localeKey).(string); ok && s != "" {
		return s
	}
	return DefaultLocale
}
