package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/linkpass/internal/http"
	"github.com/dropDatabas3/linkpass/internal/login"
	"github.com/dropDatabas3/linkpass/internal/token"
)

// SessionHandler emite la sesión del broker con la que después se puede usar
// el instant login sin volver a tipear el password.
type SessionHandler struct {
	creds    login.CredentialVerifier
	sessions *token.Sessions
}

func NewSessionHandler(creds login.CredentialVerifier, sessions *token.Sessions) *SessionHandler {
	return &SessionHandler{creds: creds, sessions: sessions}
}

func (h *SessionHandler) Register(r chi.Router) {
	r.Post("/v1/session/login", h.login)
}

// POST /v1/session/login
func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !readStrictJSON(w, r, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email y password son requeridos", 1104)
		return
	}

	u, err := h.creds.Verify(r.Context(), email, req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "error inesperado", 1500)
		return
	}
	if u == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "user_not_found", "credenciales inválidas", 1602)
		return
	}

	signed, exp, err := h.sessions.Issue(u.ID)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "error inesperado", 1500)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_at":   exp.UTC().Format(time.RFC3339),
	})
}
