// Package store is the credential store adapter: typed operations
// against the hauth_user and hauth_role relations backed by PostgreSQL.
// It is the sole owner of persisted account state; the engine holds
// only transient request-scoped copies.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/horanet/hauth/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const credentialQuery = `
SELECT u.id, u.login, COALESCE(u.name, ''), r.name, u.password, u.next_password
FROM hauth_user u
LEFT JOIN hauth_role r ON u.role_id = r.id
WHERE u.login = $1`

// GetCredential fetches the authentication view of a user by login,
// or shared.ErrNotFound when the login does not exist.
func (r *Repository) GetCredential(ctx context.Context, login string) (*Credential, error) {
	var (
		cred Credential
		role *string
	)
	err := r.pool.QueryRow(ctx, credentialQuery, login).Scan(
		&cred.User.ID, &cred.User.Login, &cred.User.Name, &role,
		&cred.PasswordHash, &cred.NextPassword,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if role != nil {
		cred.User.Role = *role
	}
	return &cred, nil
}

// GetUser fetches a user profile by login, without password material.
// Embedding applications use it for profile lookups outside the login
// flow; the engine itself only reads full credentials.
func (r *Repository) GetUser(ctx context.Context, login string) (*User, error) {
	cred, err := r.GetCredential(ctx, login)
	if err != nil {
		return nil, err
	}
	return &cred.User, nil
}

const addUserQuery = `
WITH ins AS (
	INSERT INTO hauth_user (login, name, role_id, password, next_password)
	VALUES ($1, $2, (SELECT id FROM hauth_role WHERE name = $3), $4, $5)
	ON CONFLICT (login) DO NOTHING
	RETURNING id, login, name, role_id
)
SELECT ins.id, ins.login, COALESCE(ins.name, ''), r.name
FROM ins LEFT JOIN hauth_role r ON ins.role_id = r.id`

// AddUser inserts a user, hashing any supplied password. The insert is
// conflict-tolerant: an existing login yields (nil, nil), never an
// error, matching the idempotent CRUD contract of the engine facade.
func (r *Repository) AddUser(ctx context.Context, u NewUser) (*User, error) {
	password := u.Password
	if password != nil && *password != "" {
		hashed, err := shared.HashPassword(*password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		password = &hashed
	}
	var (
		user User
		role *string
	)
	err := r.pool.QueryRow(ctx, addUserQuery,
		u.Login, u.Name, u.Role, password, u.NextPassword,
	).Scan(&user.ID, &user.Login, &user.Name, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("add user: %w", err)
	}
	if role != nil {
		user.Role = *role
	}
	return &user, nil
}

// ModUser applies a partial update to the named login and returns the
// updated profile, or (nil, nil) when no row matched or the patch was
// empty.
func (r *Repository) ModUser(ctx context.Context, login string, patch UserPatch) (*User, error) {
	sets, args, err := patch.assignments()
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, nil
	}
	args = append(args, login)
	query := fmt.Sprintf(`
WITH upd AS (
	UPDATE hauth_user SET %s
	WHERE login = $%d
	RETURNING id, login, name, role_id
)
SELECT upd.id, upd.login, COALESCE(upd.name, ''), r.name
FROM upd LEFT JOIN hauth_role r ON upd.role_id = r.id`,
		strings.Join(sets, ", "), len(args))

	var (
		user User
		role *string
	)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&user.ID, &user.Login, &user.Name, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("mod user: %w", err)
	}
	if role != nil {
		user.Role = *role
	}
	return &user, nil
}

// assignments renders the patch as SQL SET clauses with positional
// arguments, hashing a supplied password. An empty-string role clears
// the reference; any other role name is resolved by subselect and
// resolves to NULL when unknown.
func (p UserPatch) assignments() ([]string, []any, error) {
	var (
		sets []string
		args []any
	)
	next := func(value any) int {
		args = append(args, value)
		return len(args)
	}
	if p.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", next(*p.Name)))
	}
	if p.Role != nil {
		if *p.Role == "" {
			sets = append(sets, "role_id = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("role_id = (SELECT id FROM hauth_role WHERE name = $%d)", next(*p.Role)))
		}
	}
	if p.Password != nil {
		hashed, err := shared.HashPassword(*p.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("hash password: %w", err)
		}
		sets = append(sets, fmt.Sprintf("password = $%d", next(hashed)))
	}
	if p.NextPassword != nil {
		if *p.NextPassword == "" {
			sets = append(sets, "next_password = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("next_password = $%d", next(*p.NextPassword)))
		}
	}
	return sets, args, nil
}

const delUserQuery = `
WITH del AS (
	DELETE FROM hauth_user WHERE login = $1
	RETURNING id, login, name, role_id
)
SELECT del.id, del.login, COALESCE(del.name, ''), r.name
FROM del LEFT JOIN hauth_role r ON del.role_id = r.id`

// DelUser removes a user and returns the deleted profile, or (nil, nil)
// when the login did not exist.
func (r *Repository) DelUser(ctx context.Context, login string) (*User, error) {
	var (
		user User
		role *string
	)
	if err := r.pool.QueryRow(ctx, delUserQuery, login).Scan(&user.ID, &user.Login, &user.Name, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("del user: %w", err)
	}
	if role != nil {
		user.Role = *role
	}
	return &user, nil
}

// AddRoles provisions role names idempotently: existing roles are never
// duplicated or deleted.
func (r *Repository) AddRoles(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hauth_role (name)
		SELECT unnest($1::text[])
		ON CONFLICT (name) DO NOTHING`, names)
	if err != nil {
		return fmt.Errorf("add roles: %w", err)
	}
	return nil
}

// ConsumeNextPassword promotes the pending one-shot password in a single
// conditional update: the candidate is hashed into the password column
// and next_password cleared only if next_password still equals the
// candidate. Exactly one of two racing logins can win; the loser
// observes zero rows and falls through to the regular hash check.
func (r *Repository) ConsumeNextPassword(ctx context.Context, login, candidate string) (bool, error) {
	hashed, err := shared.HashPassword(candidate)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE hauth_user SET password = $3, next_password = NULL
		WHERE login = $1 AND next_password = $2`, login, candidate, hashed)
	if err != nil {
		return false, fmt.Errorf("consume next password: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
