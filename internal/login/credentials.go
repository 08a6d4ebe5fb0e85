package login

import (
	"context"

	"github.com/dropDatabas3/linkpass/internal/security/password"
	"github.com/dropDatabas3/linkpass/internal/store/core"
)

// CredentialVerifier es el colaborador externo que resuelve (email, password)
// a un usuario. El orquestador no conoce el algoritmo de hashing.
type CredentialVerifier interface {
	// Verify retorna el usuario si las credenciales son válidas,
	// o nil si no lo son. error solo para fallas de infraestructura.
	Verify(ctx context.Context, email, plain string) (*core.User, error)
}

// StoreVerifier verifica contra el hash argon2id guardado en el user store.
type StoreVerifier struct {
	Users core.UserRepository
}

func (v *StoreVerifier) Verify(ctx context.Context, email, plain string) (*core.User, error) {
	u, err := v.Users.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if u.PasswordHash == "" || !password.Verify(plain, u.PasswordHash) {
		return nil, nil
	}
	return u, nil
}
