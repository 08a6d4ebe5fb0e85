// Package provider contiene las operaciones de administración del registro
// de fingerprints de un provider: el secreto opaco con el que cada
// integración del partner se identifica en el callback del handoff.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/linkpass/internal/cache"
	"github.com/dropDatabas3/linkpass/internal/observability/logger"
	tokens "github.com/dropDatabas3/linkpass/internal/security/token"
	"github.com/dropDatabas3/linkpass/internal/store/core"
	"github.com/dropDatabas3/linkpass/internal/util"
	"go.uber.org/zap"
)

// Reintentos de generación ante una colisión global de secreto. Con 32 bytes
// de entropía una colisión real es señal de un RNG roto, no de mala suerte.
const maxSecretAttempts = 5

var (
	// ErrNameExists: ya hay un fingerprint con ese nombre en el provider
	// (match exacto, case-sensitive).
	ErrNameExists = errors.New("fingerprint name already exists")

	// ErrProviderNotFound: el provider no existe o está inactivo.
	ErrProviderNotFound = errors.New("provider not found")
)

type Service struct {
	repo  core.ProviderRepository
	cache cache.Cache
	log   *zap.Logger
}

func New(repo core.ProviderRepository, c cache.Cache) *Service {
	return &Service{repo: repo, cache: c, log: logger.Named("provider")}
}

// CreateFingerprint genera el secreto y lo inserta bajo (providerID, name).
// El caller nunca aporta el secreto. Una colisión de nombre dentro del
// provider falla con ErrNameExists; una colisión global del secreto
// regenera y reintenta, jamás se persiste un duplicado.
func (s *Service) CreateFingerprint(ctx context.Context, providerID, name, domain string) (*core.Fingerprint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("fingerprint name empty")
	}

	for attempt := 0; attempt < maxSecretAttempts; attempt++ {
		secret, err := tokens.GenerateFingerprint()
		if err != nil {
			return nil, err
		}

		fp := core.Fingerprint{
			Name:        name,
			Domain:      domain,
			Secret:      secret,
			UpdatedTime: time.Now().UTC(),
		}
		err = s.repo.InsertFingerprint(ctx, providerID, fp)
		switch {
		case err == nil:
			s.log.Info("fingerprint created",
				logger.ProviderID(providerID), zap.String("name", name),
				zap.String("secret", util.MaskSecret(secret)))
			return &fp, nil
		case errors.Is(err, core.ErrDuplicateSecret):
			s.log.Warn("fingerprint secret collision, regenerating",
				logger.ProviderID(providerID), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, core.ErrConflict):
			return nil, ErrNameExists
		case core.IsNotFound(err):
			return nil, ErrProviderNotFound
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("fingerprint generation: exhausted %d attempts", maxSecretAttempts)
}

// DeleteFingerprint borra por nombre. Ausente → no-op (affected 0).
// Invalidar el cache corta los challenges futuros con ese secreto; los
// tokens ya emitidos y todavía vigentes no se revocan retroactivamente.
func (s *Service) DeleteFingerprint(ctx context.Context, providerID, name string) (int64, error) {
	var secret string
	if s.cache != nil {
		fps, err := s.repo.ListFingerprints(ctx, providerID)
		if err != nil {
			return 0, err
		}
		for _, fp := range fps {
			if fp.Name == name {
				secret = fp.Secret
				break
			}
		}
	}

	affected, err := s.repo.RemoveFingerprint(ctx, providerID, name)
	if err != nil {
		return 0, err
	}

	if affected > 0 && secret != "" && s.cache != nil {
		s.cache.Delete(cache.FingerprintKey(secret))
	}
	if affected > 0 {
		s.log.Info("fingerprint removed",
			logger.ProviderID(providerID), zap.String("name", name))
	}
	return affected, nil
}

// ListFingerprints devuelve los fingerprints del provider.
func (s *Service) ListFingerprints(ctx context.Context, providerID string) ([]core.Fingerprint, error) {
	return s.repo.ListFingerprints(ctx, providerID)
}
