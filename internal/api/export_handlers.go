package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/soaringjerry/maat/internal/services"
)

func writeAttachment(w http.ResponseWriter, res *services.ExportResult) {
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// GET /download-responses/
func (h *handlers) downloadResponses(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Exports.ExportAllZip(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, res)
}

// GET /download-responses/workbook/
func (h *handlers) downloadWorkbook(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Exports.ExportWorkbook(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, res)
}
