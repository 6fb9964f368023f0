// internal/admin/handler.go
package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eternalflame/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the admin console under /admin. Every route needs an
// elevated identity.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(httpx.RequireElevated)
		r.Get("/stats", h.HandleStats)
		r.Get("/users", h.HandleUsers)
		r.Get("/calculate-logs", h.HandleCalculateLogs)
		r.Get("/settings", h.HandleSettings)
		r.Post("/settings", h.HandlePutSetting)
	})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListUsers(r.Context(), pageQuery(r))
	if err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleCalculateLogs(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListCalculateLogs(r.Context(), pageQuery(r))
	if err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settings)
}

func (h *Handler) HandlePutSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return
	}

	if err := h.service.PutSetting(r.Context(), req.Key, req.Value); err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// pageQuery reads page, per_page and search; malformed numbers fall back to
// defaults.
func pageQuery(r *http.Request) PageQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return PageQuery{Page: page, PerPage: perPage, Search: q.Get("search")}
}
