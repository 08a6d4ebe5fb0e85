package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/linkpass/internal/store/core"
)

type UserStore struct{ pool *pgxpool.Pool }

const userCols = `id, email, status, password_hash, first_name, last_name, avatar_url, phone, created_at, updated_at`

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	var hash *string
	err := row.Scan(&u.ID, &u.Email, &u.Status, &hash, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.Phone, &u.CreatedTime, &u.UpdatedTime)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.PasswordHash = deref(hash)
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id)
	return scanUser(row)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE email = $1`, email)
	return scanUser(row)
}

func (s *UserStore) GetConnection(ctx context.Context, userID, providerID string) (*core.Connection, error) {
	var c core.Connection
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, provider_id, provider_name, roles, created_at, updated_at
		FROM user_provider
		WHERE user_id = $1 AND provider_id = $2`,
		userID, providerID,
	).Scan(&c.UserID, &c.ProviderID, &c.ProviderName, &c.Roles, &c.CreatedTime, &c.UpdatedTime)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateOrGetConnection inserta la conexión con ON CONFLICT DO NOTHING.
// La primary key (user_id, provider_id) garantiza que dos approves
// concurrentes para un par nuevo no dupliquen la fila: uno gana el insert
// y el otro ve created=false.
func (s *UserStore) CreateOrGetConnection(ctx context.Context, conn core.Connection) (*core.Connection, bool, error) {
	roles := conn.Roles
	if roles == nil {
		roles = []string{}
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_provider (user_id, provider_id, provider_name, roles)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider_id) DO NOTHING`,
		conn.UserID, conn.ProviderID, conn.ProviderName, roles,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, false, core.ErrNotFound
		}
		return nil, false, err
	}
	created := tag.RowsAffected() > 0

	got, err := s.GetConnection(ctx, conn.UserID, conn.ProviderID)
	if err != nil {
		return nil, false, err
	}
	return got, created, nil
}

// AppendConnectionMeta agrega la fila de auditoría y bumpea updated_at de la
// conexión en una transacción. Retorna cuántas conexiones se tocaron
// (0 cuando el par (user, provider) no existe).
func (s *UserStore) AppendConnectionMeta(ctx context.Context, userID, providerID string, meta core.ConnectionMeta) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_provider_meta (user_id, provider_id, ip, user_agent)
		VALUES ($1, $2, $3, $4)`,
		userID, providerID, meta.IP, meta.UserAgent,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, nil
		}
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE user_provider SET updated_at = now()
		WHERE user_id = $1 AND provider_id = $2`,
		userID, providerID,
	)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateUser inserta un usuario (seed/bootstrap).
func (s *UserStore) CreateUser(ctx context.Context, u core.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_user (id, email, status, password_hash, first_name, last_name, avatar_url, phone)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		u.ID, u.Email, u.Status, u.PasswordHash, u.FirstName, u.LastName, u.AvatarURL, u.Phone,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return core.ErrConflict
		}
		return err
	}
	return nil
}
