package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kawayiYokami/HentaiReader-sub000/admin"
	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

type handler struct {
	svc *admin.Service
	log *slog.Logger
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/groups", h.listGroups)
	mux.HandleFunc("GET /v1/entries", h.listEntries)
	mux.HandleFunc("GET /v1/stats", h.stats)
	mux.HandleFunc("GET /v1/substitutions", h.listSubstitutions)
	mux.HandleFunc("PUT /v1/substitutions", h.putSubstitution)
	mux.HandleFunc("DELETE /v1/substitutions", h.deleteSubstitution)
	mux.HandleFunc("DELETE /v1/groups", h.deleteGroup)
	mux.HandleFunc("DELETE /v1/tiers/{tier}", h.clearTier)
	mux.HandleFunc("POST /v1/cleanup/orphaned", h.cleanupOrphaned)
	mux.HandleFunc("POST /v1/cleanup/stale", h.cleanupStale)
	return mux
}

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *handler) respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}

func (h *handler) fail(w http.ResponseWriter, status int, err error) {
	h.log.Error("admin request failed", "status", status, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: err.Error()})
}

func pagination(r *http.Request) (pageIndex, pageSize int) {
	pageIndex, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 50
	}
	return pageIndex, pageSize
}

func filterFrom(r *http.Request) models.Filter {
	q := r.URL.Query()
	return models.Filter{
		Document: q.Get("document"),
		Language: q.Get("language"),
		Status:   models.EntryStatus(q.Get("status")),
		Search:   q.Get("q"),
	}
}

func (h *handler) listGroups(w http.ResponseWriter, r *http.Request) {
	pageIndex, pageSize := pagination(r)
	page, err := h.svc.ListGrouped(r.Context(), filterFrom(r), pageIndex, pageSize)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, page)
}

func (h *handler) listEntries(w http.ResponseWriter, r *http.Request) {
	pageIndex, pageSize := pagination(r)
	page, err := h.svc.ListEntries(r.Context(), filterFrom(r), pageIndex, pageSize)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, page)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, stats)
}

func (h *handler) listSubstitutions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.ListSubstitutions(r.Context())
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, subs)
}

type substitutionBody struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

func (h *handler) putSubstitution(w http.ResponseWriter, r *http.Request) {
	var body substitutionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.EditSubstitution(r.Context(), body.Original, body.Replacement); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	h.respond(w, http.StatusOK, body)
}

func (h *handler) deleteSubstitution(w http.ResponseWriter, r *http.Request) {
	original := r.URL.Query().Get("original")
	if original == "" {
		h.fail(w, http.StatusBadRequest, errMissingParam("original"))
		return
	}
	if err := h.svc.DeleteSubstitution(r.Context(), original); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.fail(w, status, err)
		return
	}
	h.respond(w, http.StatusOK, nil)
}

func (h *handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	document := q.Get("document")
	if document == "" {
		h.fail(w, http.StatusBadRequest, errMissingParam("document"))
		return
	}

	removed, err := h.svc.DeleteGroup(r.Context(), document, q.Get("language"))
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *handler) clearTier(w http.ResponseWriter, r *http.Request) {
	t, err := models.ParseTier(r.PathValue("tier"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.ClearTier(r.Context(), t); err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, nil)
}

func (h *handler) cleanupOrphaned(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.CleanupOrphaned(r.Context())
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *handler) cleanupStale(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.CleanupStale(r.Context())
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]int{"removed": removed})
}

type errMissingParam string

func (e errMissingParam) Error() string {
	return "missing required parameter: " + string(e)
}
