package core

import "context"

// UserRepository es el contrato de persistencia de usuarios y conexiones.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetConnection retorna la conexión (user, provider) o ErrNotFound.
	GetConnection(ctx context.Context, userID, providerID string) (*Connection, error)

	// CreateOrGetConnection crea la conexión si no existe, en una única
	// mutación condicional del store. Retorna created=false si ya existía.
	// Dos approves concurrentes para un par nuevo nunca producen dos filas.
	CreateOrGetConnection(ctx context.Context, conn Connection) (*Connection, bool, error)

	// AppendConnectionMeta agrega un registro de auditoría y bumpea
	// updated_time de la conexión. Retorna la cantidad de filas afectadas.
	AppendConnectionMeta(ctx context.Context, userID, providerID string, meta ConnectionMeta) (int64, error)
}

// ProviderRepository es el contrato de persistencia de providers y su
// registro de fingerprints.
type ProviderRepository interface {
	// GetByID retorna el provider activo (state=true) o ErrNotFound.
	GetByID(ctx context.Context, id string) (*Provider, error)

	// GetByFingerprint resuelve el provider activo dueño del secreto
	// presentado. Es un point lookup por el valor opaco, no un scan.
	GetByFingerprint(ctx context.Context, secret string) (*Provider, error)

	// InsertFingerprint agrega un fingerprint al provider.
	// ErrConflict si ya existe uno con el mismo nombre en ese provider;
	// ErrDuplicateSecret si el secreto colisiona a nivel global.
	InsertFingerprint(ctx context.Context, providerID string, fp Fingerprint) error

	// RemoveFingerprint borra por nombre. Retorna filas afectadas
	// (0 si no existía; no es error).
	RemoveFingerprint(ctx context.Context, providerID, name string) (int64, error)

	ListFingerprints(ctx context.Context, providerID string) ([]Fingerprint, error)
}
