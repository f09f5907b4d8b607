package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/Vasu1712/bookmate-backend/internal/errors"
)

// UserDirectory reads display names from the users table owned by the
// account service.
type UserDirectory struct {
	db *sqlx.DB
}

func NewUserDirectory(db *sqlx.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []struct {
		ID       string `db:"id"`
		UserName string `db:"user_name"`
	}
	err := d.db.SelectContext(ctx, &rows, `SELECT id, user_name FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, apperrors.NewTransportError("failed to resolve user names", err)
	}
	for _, r := range rows {
		result[r.ID] = r.UserName
	}
	return result, nil
}

// PutUser inserts or renames a user. The account service owns this table in
// production; the helper exists for seeding and tests.
func (d *UserDirectory) PutUser(ctx context.Context, id, name string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO users (id, user_name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET user_name = EXCLUDED.user_name
	`, id, name)
	if err != nil {
		return apperrors.NewTransportError("failed to store user", err)
	}
	return nil
}
