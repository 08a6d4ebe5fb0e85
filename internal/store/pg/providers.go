package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/linkpass/internal/store/core"
)

type ProviderStore struct{ pool *pgxpool.Pool }

const providerCols = `id, name, slug, owner_id, owner_name, owner_email,
	state, is_login_enabled, login_redirect_url, default_roles, created_at, updated_at`

func scanProvider(row pgx.Row) (*core.Provider, error) {
	var p core.Provider
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Owner.ID, &p.Owner.Name, &p.Owner.Email,
		&p.State, &p.IsLoginEnabled, &p.LoginRedirectURL, &p.DefaultRoles,
		&p.CreatedTime, &p.UpdatedTime)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProviderStore) GetByID(ctx context.Context, id string) (*core.Provider, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+providerCols+` FROM provider WHERE id = $1 AND state`, id)
	return scanProvider(row)
}

// GetByFingerprint resuelve el provider activo por el valor del secreto.
// Point lookup contra el índice único de secret, nunca un scan por nombres.
func (s *ProviderStore) GetByFingerprint(ctx context.Context, secret string) (*core.Provider, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.slug, p.owner_id, p.owner_name, p.owner_email,
		       p.state, p.is_login_enabled, p.login_redirect_url, p.default_roles,
		       p.created_at, p.updated_at
		FROM provider_fingerprint f
		JOIN provider p ON p.id = f.provider_id
		WHERE f.secret = $1 AND p.state`,
		secret)
	return scanProvider(row)
}

func (s *ProviderStore) InsertFingerprint(ctx context.Context, providerID string, fp core.Fingerprint) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO provider_fingerprint (provider_id, name, domain, secret)
		VALUES ($1, $2, $3, $4)`,
		providerID, fp.Name, fp.Domain, fp.Secret,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505" && pgErr.ConstraintName == "provider_fingerprint_secret_key":
				return core.ErrDuplicateSecret
			case pgErr.Code == "23505":
				return core.ErrConflict
			case pgErr.Code == "23503":
				return core.ErrNotFound
			}
		}
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE provider SET updated_at = now() WHERE id = $1`, providerID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *ProviderStore) RemoveFingerprint(ctx context.Context, providerID, name string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM provider_fingerprint WHERE provider_id = $1 AND name = $2`,
		providerID, name,
	)
	if err != nil {
		return 0, err
	}
	affected := tag.RowsAffected()

	if affected > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE provider SET updated_at = now() WHERE id = $1`, providerID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *ProviderStore) ListFingerprints(ctx context.Context, providerID string) ([]core.Fingerprint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, domain, secret, updated_at
		FROM provider_fingerprint
		WHERE provider_id = $1
		ORDER BY name`,
		providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Fingerprint
	for rows.Next() {
		var fp core.Fingerprint
		if err := rows.Scan(&fp.Name, &fp.Domain, &fp.Secret, &fp.UpdatedTime); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// CreateProvider inserta un provider (seed/bootstrap).
func (s *ProviderStore) CreateProvider(ctx context.Context, p core.Provider) error {
	roles := p.DefaultRoles
	if roles == nil {
		roles = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provider (id, name, slug, owner_id, owner_name, owner_email,
			state, is_login_enabled, login_redirect_url, default_roles)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Slug, p.Owner.ID, p.Owner.Name, p.Owner.Email,
		p.State, p.IsLoginEnabled, p.LoginRedirectURL, roles,
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
