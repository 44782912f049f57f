package store

import (
	"context"
	"fmt"
	"log/slog"
)

const roleTableDDL = `
CREATE TABLE hauth_role (
	id SERIAL PRIMARY KEY,
	name VARCHAR(20) NOT NULL,
	UNIQUE (name)
)`

const userTableDDL = `
CREATE TABLE hauth_user (
	id SERIAL PRIMARY KEY,
	login VARCHAR(50) NOT NULL,
	name VARCHAR(100),
	role_id INTEGER REFERENCES hauth_role (id) ON DELETE SET NULL ON UPDATE CASCADE,
	password VARCHAR(100),
	next_password VARCHAR(100),
	UNIQUE (login)
)`

// BootstrapParams configures schema and seed provisioning.
type BootstrapParams struct {
	// Roles to provision at startup, in order. Idempotent.
	Roles []string
	// DefaultUsers are inserted only when the user table was freshly
	// created, so redeployments never resurrect removed accounts.
	DefaultUsers []NewUser
	Logger       *slog.Logger
}

// Bootstrap creates the hauth_role and hauth_user tables when missing,
// provisions the configured roles, and seeds default users on a fresh
// user table.
func (r *Repository) Bootstrap(ctx context.Context, params BootstrapParams) error {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	missing, err := r.tableMissing(ctx, "hauth_role")
	if err != nil {
		return err
	}
	if missing {
		logger.Info("creating table hauth_role")
		if _, err := r.pool.Exec(ctx, roleTableDDL); err != nil {
			return fmt.Errorf("create hauth_role: %w", err)
		}
	}

	if err := r.AddRoles(ctx, params.Roles); err != nil {
		return err
	}

	missing, err = r.tableMissing(ctx, "hauth_user")
	if err != nil {
		return err
	}
	if missing {
		logger.Info("creating table hauth_user")
		if _, err := r.pool.Exec(ctx, userTableDDL); err != nil {
			return fmt.Errorf("create hauth_user: %w", err)
		}
		for _, u := range params.DefaultUsers {
			if _, err := r.AddUser(ctx, u); err != nil {
				return fmt.Errorf("seed user %s: %w", u.Login, err)
			}
		}
	}
	return nil
}

func (r *Repository) tableMissing(ctx context.Context, name string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM pg_catalog.pg_tables WHERE tablename = $1`, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return count == 0, nil
}
