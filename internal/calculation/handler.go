// internal/calculation/handler.go
package calculation

import (
	"net/http"

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

func (h *Handler) Routes(r chi.Router) {
	r.Post("/calculate", h.HandleCalculate)
}

type calculateRequest struct {
	EventDate string `json:"eventDate"`
	Label     string `json:"label"`
	PetName   string `json:"petName"`
	Locale    string `json:"locale"`
}

func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, httpx.RequestLocale(r), err)
		return
	}

	if req.Label == "" {
		req.Label = req.PetName
	}

	acceptLanguage := r.Header.Get("Accept-Language")
	result, err := h.service.Calculate(r.Context(), Request{
		EventDate:      req.EventDate,
		Label:          req.Label,
		Locale:         req.Locale,
		AcceptLanguage: acceptLanguage,
		Token:          httpx.BearerToken(r),
	})
	if err != nil {
		httpx.WriteError(w, r, locale.Negotiate(req.Locale, acceptLanguage), err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}
