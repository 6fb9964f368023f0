// internal/membership/handler.go
package membership

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eternalflame/internal/httpx"
	"eternalflame/internal/locale"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the account endpoints. Identity middleware must already be
// installed on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.With(httpx.RequireAuth).Get("/auth/me", h.HandleMe)
	r.Post("/admin/login", h.HandleAdminLogin)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Locale   string `json:"locale"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, string, bool) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return req, "", false
	}
	return req, locale.Negotiate(req.Locale, r.Header.Get("Accept-Language")), true
}

// clientContext tags the request context with the caller's address for
// per-client rate limiting.
func clientContext(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return WithClient(r.Context(), host)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, loc, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := h.service.Register(clientContext(r), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, r, loc, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, session)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, loc, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := h.service.Authenticate(clientContext(r), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, r, loc, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	req, loc, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := h.service.AuthenticateAdmin(clientContext(r), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, r, loc, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := httpx.IdentityFrom(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":       strconv.FormatInt(id.SubjectID, 10),
			"username": id.SubjectName,
			"is_admin": id.Elevated,
		},
	})
}
