// Package login implementa el orquestador del handoff federado: emisión del
// token corto, challenge del callback del provider y el upsert de la
// conexión user↔provider.
//
// El orquestador es stateless y request-scoped: cada llamada es una
// transición fresca Unauthenticated → TokenIssued → {Approved | Rejected},
// sin instancia persistida de la máquina de estados.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/linkpass/internal/cache"
	"github.com/dropDatabas3/linkpass/internal/observability/logger"
	"github.com/dropDatabas3/linkpass/internal/store/core"
	"github.com/dropDatabas3/linkpass/internal/token"
	"github.com/dropDatabas3/linkpass/internal/util"
	"go.uber.org/zap"
)

// TokenResponse es la pata de salida: token firmado + URL de retorno.
type TokenResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Result es la proyección que recibe el provider tras un approve exitoso.
type Result struct {
	UserID    string   `json:"id"`
	Email     string   `json:"email"`
	AvatarURL string   `json:"avatar_src,omitempty"`
	Phone     string   `json:"tel,omitempty"`
	Roles     []string `json:"roles"`
}

// challengeResult es el resultado interno de validar token + fingerprint.
type challengeResult struct {
	UserID     string
	Email      string
	ProviderID string
	Provider   *core.Provider
}

type Service struct {
	users     core.UserRepository
	providers core.ProviderRepository
	creds     CredentialVerifier
	issuer    *token.Issuer
	verifier  *token.Verifier
	cache     cache.Cache
	cacheTTL  time.Duration
	paramName string
	log       *zap.Logger
}

type Options struct {
	Users     core.UserRepository
	Providers core.ProviderRepository
	Creds     CredentialVerifier
	Issuer    *token.Issuer
	Verifier  *token.Verifier

	// Cache opcional para el lookup provider-por-fingerprint.
	Cache    cache.Cache
	CacheTTL time.Duration

	// ParamName es el nombre del query param del token en la redirect URL.
	ParamName string
}

func New(opts Options) *Service {
	if opts.ParamName == "" {
		opts.ParamName = "redirect_token"
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 30 * time.Second
	}
	return &Service{
		users:     opts.Users,
		providers: opts.Providers,
		creds:     opts.Creds,
		issuer:    opts.Issuer,
		verifier:  opts.Verifier,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		paramName: opts.ParamName,
		log:       logger.Named("login"),
	}
}

// EmailLogin verifica credenciales y emite el token de handoff para el
// provider pedido.
func (s *Service) EmailLogin(ctx context.Context, email, plain, providerID string) (*TokenResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.creds.Verify(ctx, email, plain)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.log.Info("email login rejected", logger.Email(util.MaskEmail(email)))
		return nil, ErrUserNotFound
	}
	return s.issueFor(ctx, u, providerID)
}

// InstantLogin emite el token para un usuario ya autenticado en el broker.
func (s *Service) InstantLogin(ctx context.Context, currentUserID, providerID string) (*TokenResponse, error) {
	if strings.TrimSpace(currentUserID) == "" {
		return nil, ErrNotAuthorized
	}
	u, err := s.users.GetByID(ctx, currentUserID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrNotAuthorized
		}
		return nil, err
	}
	return s.issueFor(ctx, u, providerID)
}

func (s *Service) issueFor(ctx context.Context, u *core.User, providerID string) (*TokenResponse, error) {
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	if !provider.IsLoginEnabled {
		return nil, ErrProviderUnavailable
	}

	signed, err := s.issuer.Issue(u.ID, u.Email, provider.ID)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		Token:       signed,
		RedirectURL: BuildRedirectURL(provider.LoginRedirectURL, s.paramName, signed),
	}, nil
}

// ApproveLogin es la pata de entrada: el provider presenta el token y su
// fingerprint, y si el challenge pasa se crea o extiende la conexión.
//
// Llamar dos veces con tokens vigentes para el mismo par (user, provider)
// es idempotente a nivel conexión: una sola fila, un Meta por approve.
func (s *Service) ApproveLogin(ctx context.Context, tokenStr, fingerprint string, meta core.ConnectionMeta) (*Result, error) {
	ch, err := s.challenge(ctx, tokenStr, fingerprint)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, ch.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.Status == core.UserBlocked {
		return nil, ErrUserBlocked
	}

	conn, created, err := s.users.CreateOrGetConnection(ctx, core.Connection{
		UserID:       u.ID,
		ProviderID:   ch.Provider.ID,
		ProviderName: ch.Provider.Name,
		Roles:        ch.Provider.DefaultRoles,
	})
	if err != nil {
		return nil, err
	}

	if meta.CreatedTime.IsZero() {
		meta.CreatedTime = time.Now().UTC()
	}
	affected, err := s.users.AppendConnectionMeta(ctx, u.ID, ch.Provider.ID, meta)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// El upsert debía tocar exactamente una conexión. Logueamos ids,
		// nunca el token ni el fingerprint.
		s.log.Error("connection upsert affected zero rows",
			logger.UserID(u.ID), logger.ProviderID(ch.Provider.ID))
		return nil, ErrUndefined
	}

	s.log.Info("login approved",
		logger.UserID(u.ID), logger.ProviderID(ch.Provider.ID), zap.Bool("new_connection", created))

	return &Result{
		UserID:    u.ID,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Phone:     u.Phone,
		Roles:     conn.Roles,
	}, nil
}

// challenge valida el token contra el fingerprint presentado.
//
// El binding check del paso final es el invariante anti-phishing: un token
// emitido para el provider A, presentado con el fingerprint del provider B,
// se rechaza aunque la firma sea válida. El fingerprint liga el canal; la
// firma liga el payload; ambos tienen que coincidir.
func (s *Service) challenge(ctx context.Context, tokenStr, fingerprint string) (*challengeResult, error) {
	provider, err := s.providerByFingerprint(ctx, fingerprint)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrTokenProviderNotFound
		}
		return nil, err
	}
	if !provider.IsLoginEnabled {
		return nil, ErrTokenProviderNotAllowed
	}

	claims, err := s.verifier.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrInvalid) {
			return nil, ErrTokenChallengeFailed
		}
		return nil, err
	}

	if claims.ProviderID != provider.ID {
		s.log.Warn("handoff binding mismatch",
			logger.ProviderID(provider.ID), zap.String("token_provider_id", claims.ProviderID))
		return nil, ErrAccessDenied
	}

	return &challengeResult{
		UserID:     claims.UserID,
		Email:      claims.Email,
		ProviderID: claims.ProviderID,
		Provider:   provider,
	}, nil
}

// providerByFingerprint resuelve el provider dueño del secreto, con un cache
// corto por delante del store. El TTL acota cuánto tarda en propagarse un
// disable del provider.
func (s *Service) providerByFingerprint(ctx context.Context, secret string) (*core.Provider, error) {
	key := cache.FingerprintKey(secret)
	if s.cache != nil {
		if b, ok := s.cache.Get(key); ok {
			var p core.Provider
			if err := json.Unmarshal(b, &p); err == nil {
				return &p, nil
			}
			s.cache.Delete(key)
		}
	}

	p, err := s.providers.GetByFingerprint(ctx, secret)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(p); err == nil {
			s.cache.Set(key, b, s.cacheTTL)
		}
	}
	return p, nil
}
