package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/linkpass/internal/http"
	"github.com/dropDatabas3/linkpass/internal/provider"
	"github.com/dropDatabas3/linkpass/internal/store/core"
)

// fingerprintDTO es la vista JSON del fingerprint. El secret solo viaja
// completo en la respuesta del create.
type fingerprintDTO struct {
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	Secret    string    `json:"secret,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDTO(fp core.Fingerprint, withSecret bool) fingerprintDTO {
	d := fingerprintDTO{Name: fp.Name, Domain: fp.Domain, UpdatedAt: fp.UpdatedTime}
	if withSecret {
		d.Secret = fp.Secret
	}
	return d
}

// FingerprintHandler es la superficie admin del registro de fingerprints.
// Toda la ruta va detrás de X-Admin-API-Key.
type FingerprintHandler struct {
	svc    *provider.Service
	apiKey string
}

func NewFingerprintHandler(svc *provider.Service, apiKey string) *FingerprintHandler {
	return &FingerprintHandler{svc: svc, apiKey: apiKey}
}

func (h *FingerprintHandler) Register(r chi.Router) {
	r.Route("/v1/fingerprint", func(r chi.Router) {
		r.Use(h.requireAdminKey)
		r.Get("/{id}", h.list)
		r.Post("/{id}", h.create)
		r.Delete("/{id}/{name}", h.remove)
	})
}

func (h *FingerprintHandler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-Admin-API-Key"))
		if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "admin api key requerida", 1701)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GET /v1/fingerprint/{id}
func (h *FingerprintHandler) list(w http.ResponseWriter, r *http.Request) {
	fps, err := h.svc.ListFingerprints(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "error inesperado", 1500)
		return
	}
	out := make([]fingerprintDTO, 0, len(fps))
	for _, fp := range fps {
		out = append(out, toDTO(fp, false))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"fingerprints": out})
}

// POST /v1/fingerprint/{id}
// El secreto lo genera el server; la respuesta es la única vez que se
// devuelve completo.
func (h *FingerprintHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
	}
	if !readStrictJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "name es requerido", 1104)
		return
	}

	fp, err := h.svc.CreateFingerprint(r.Context(), chi.URLParam(r, "id"), req.Name, req.Domain)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusCreated, toDTO(*fp, true))
	case errors.Is(err, provider.ErrNameExists):
		httpx.WriteError(w, http.StatusConflict, "name_exists", "ya existe un fingerprint con ese nombre", 1702)
	case errors.Is(err, provider.ErrProviderNotFound):
		httpx.WriteError(w, http.StatusNotFound, "provider_not_found", "provider inexistente", 1604)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "error inesperado", 1500)
	}
}

// DELETE /v1/fingerprint/{id}/{name}
func (h *FingerprintHandler) remove(w http.ResponseWriter, r *http.Request) {
	affected, err := h.svc.DeleteFingerprint(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "error inesperado", 1500)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"removed": affected})
}
