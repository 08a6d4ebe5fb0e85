// Package handlers expone los endpoints HTTP del broker: login con handoff
// hacia providers, sesión del broker y administración de fingerprints.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/linkpass/internal/http"
	"github.com/dropDatabas3/linkpass/internal/login"
	"github.com/dropDatabas3/linkpass/internal/store/core"
	"github.com/dropDatabas3/linkpass/internal/token"
)

// LoginHandler sirve las tres patas del handoff: email, instant y approve.
type LoginHandler struct {
	svc      *login.Service
	sessions *token.Sessions
}

func NewLoginHandler(svc *login.Service, sessions *token.Sessions) *LoginHandler {
	return &LoginHandler{svc: svc, sessions: sessions}
}

func (h *LoginHandler) Register(r chi.Router) {
	r.Post("/v1/login/provider/email", h.email)
	r.Post("/v1/login/provider/instant/{id}", h.instant)
	r.Put("/v1/login/provider/approve", h.approve)
}

// POST /v1/login/provider/email
func (h *LoginHandler) email(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		ProviderID string `json:"provider_id"`
	}
	if !readStrictJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.ProviderID) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email, password y provider_id son requeridos", 1104)
		return
	}

	resp, err := h.svc.EmailLogin(r.Context(), req.Email, req.Password, req.ProviderID)
	if err != nil {
		writeLoginError(w, "email", err)
		return
	}
	httpx.RecordHandoff("email", "ok")
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// POST /v1/login/provider/instant/{id}
// Requiere sesión del broker por Bearer.
func (h *LoginHandler) instant(w http.ResponseWriter, r *http.Request) {
	userID := h.bearerUserID(r)

	resp, err := h.svc.InstantLogin(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeLoginError(w, "instant", err)
		return
	}
	httpx.RecordHandoff("instant", "ok")
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// PUT /v1/login/provider/approve
// Lo llama el backend del provider con el token del redirect y su fingerprint,
// por query string o por body JSON.
func (h *LoginHandler) approve(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Token       string `json:"token"`
		Fingerprint string `json:"fingerprint"`
	}{
		Token:       strings.TrimSpace(r.URL.Query().Get("token")),
		Fingerprint: strings.TrimSpace(r.URL.Query().Get("fingerprint")),
	}
	if req.Token == "" && req.Fingerprint == "" {
		if !readStrictJSON(w, r, &req) {
			return
		}
	}
	if strings.TrimSpace(req.Token) == "" || strings.TrimSpace(req.Fingerprint) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token y fingerprint son requeridos", 1104)
		return
	}

	ua := strings.TrimSpace(r.UserAgent())
	if ua == "" {
		ua = "Unknown agent"
	}
	meta := core.ConnectionMeta{
		IP:        httpx.ClientIP(r),
		UserAgent: ua,
	}

	res, err := h.svc.ApproveLogin(r.Context(), req.Token, req.Fingerprint, meta)
	if err != nil {
		writeLoginError(w, "approve", err)
		return
	}
	httpx.RecordHandoff("approve", "ok")
	httpx.WriteJSON(w, http.StatusOK, res)
}

// bearerUserID resuelve el usuario de la sesión del broker; "" si no hay.
func (h *LoginHandler) bearerUserID(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return ""
	}
	raw := strings.TrimSpace(auth[len("bearer "):])
	if raw == "" || h.sessions == nil {
		return ""
	}
	uid, err := h.sessions.Parse(raw)
	if err != nil {
		return ""
	}
	return uid
}

// loginErrorMap traduce los errores del orquestador a respuestas HTTP.
// Las descripciones son deliberadamente genéricas: el cliente no debe poder
// distinguir "usuario no existe" de "password mal".
var loginErrorMap = []struct {
	sentinel error
	status   int
	code     string
	desc     string
	errCode  int
}{
	{login.ErrNotAuthorized, http.StatusUnauthorized, "not_authorized", "sesión requerida", 1601},
	{login.ErrUserNotFound, http.StatusUnauthorized, "user_not_found", "credenciales inválidas", 1602},
	{login.ErrUserBlocked, http.StatusForbidden, "user_blocked", "usuario bloqueado", 1603},
	{login.ErrProviderNotFound, http.StatusNotFound, "provider_not_found", "provider inexistente", 1604},
	{login.ErrProviderUnavailable, http.StatusForbidden, "provider_unavailable", "provider no disponible", 1605},
	{login.ErrTokenProviderNotFound, http.StatusUnauthorized, "token_provider_not_found", "fingerprint desconocido", 1606},
	{login.ErrTokenProviderNotAllowed, http.StatusForbidden, "token_provider_not_allowed", "provider no disponible", 1607},
	{login.ErrTokenChallengeFailed, http.StatusUnauthorized, "token_challenge_failed", "token inválido", 1608},
	{login.ErrAccessDenied, http.StatusForbidden, "access_denied", "acceso denegado", 1609},
	{login.ErrUndefined, http.StatusInternalServerError, "undefined_error", "error inesperado", 1610},
}

func writeLoginError(w http.ResponseWriter, op string, err error) {
	for _, e := range loginErrorMap {
		if errors.Is(err, e.sentinel) {
			httpx.RecordHandoff(op, e.code)
			httpx.WriteError(w, e.status, e.code, e.desc, e.errCode)
			return
		}
	}
	httpx.RecordHandoff(op, "internal_error")
	httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "error inesperado", 1500)
}
