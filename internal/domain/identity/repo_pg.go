package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SamuelFortes/plataforma-virtual/internal/platform/db"
)

const uniqueViolation = "23505"

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, nome, email, senha_hash, tipo_usuario, cpf, ativo, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Nome, &u.Email, &u.PasswordHash, &u.TipoUsuario, &u.CPF, &u.Ativo, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO usuarios (nome, email, senha_hash, tipo_usuario, cpf, ativo)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		u.Nome, u.Email, u.PasswordHash, u.TipoUsuario, u.CPF, u.Ativo,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM usuarios WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM usuarios WHERE LOWER(email) = LOWER($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}
