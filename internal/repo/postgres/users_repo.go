package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/artify/contesthub/internal/domain/user"
	"github.com/artify/contesthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const userColumns = `id, email, password_hash, name, photo_url, bio, role, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.PhotoURL,
		&u.Bio,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var scanErr error
		u, scanErr = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var scanErr error
		u, scanErr = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// RoleByEmail is the per-request role lookup used by the authorization policy.
// Deliberately uncached: a role change must take effect on the next request.
func (r *UsersRepo) RoleByEmail(ctx context.Context, email string) (string, error) {
	var role string

	err := r.observe("users.role_by_email", func() error {
		return r.pool.QueryRow(ctx, `SELECT role FROM users WHERE email = $1`, email).Scan(&role)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", user.ErrNotFound
		}

		return "", err
	}

	return role, nil
}

// CreateIfAbsent inserts a profile record keyed by email. When the email is
// already present nothing is written and created reports false.
func (r *UsersRepo) CreateIfAbsent(ctx context.Context, req user.CreateUserRequest) (u user.User, created bool, err error) {
	now := time.Now().UTC()

	err = r.observe("users.create_if_absent", func() error {
		insertErr := scanInsertedUser(r.pool.QueryRow(ctx, `
			INSERT INTO users (id, email, name, photo_url, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (email) DO NOTHING
			RETURNING `+userColumns,
			uuid.NewString(), req.Email, req.Name, req.PhotoURL, user.RoleUser, now,
		), &u)
		return insertErr
	})

	if err == nil {
		created = true
		return
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return
	}

	// conflict: the record already exists, return it untouched
	u, err = r.GetByEmail(ctx, req.Email)
	return
}

func scanInsertedUser(row pgx.Row, u *user.User) error {
	got, err := scanUser(row)

	if err != nil {
		return err
	}

	*u = got
	return nil
}

// Create inserts a credentialed account (signup path).
func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error) {
	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.observe("users.create", func() error {
		_, execErr := r.pool.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.CreatedAt, u.UpdatedAt,
		)
		return execErr
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, email string, req user.UpdateProfileRequest) (user.User, error) {
	var u user.User

	err := r.observe("users.update_profile", func() error {
		var scanErr error
		u, scanErr = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET name = $2,
			    photo_url = $3,
			    bio = $4,
			    updated_at = NOW()
			WHERE email = $1
			RETURNING `+userColumns,
			email, req.Name, req.PhotoURL, req.Bio,
		))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) SetRole(ctx context.Context, id, role string) (user.User, error) {
	var u user.User

	err := r.observe("users.set_role", func() error {
		var scanErr error
		u, scanErr = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET role = $2,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, role,
		))
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var rows pgx.Rows
	var err error

	err = r.observe("users.list", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id ASC`)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]user.User, 0)

	for rows.Next() {
		u, scanErr := scanUser(rows)

		if scanErr != nil {
			return nil, scanErr
		}

		out = append(out, u)
	}

	return out, rows.Err()
}
