package engine

import (
	"context"

	"github.com/horanet/hauth/internal/store"
)

// Store defines the credential store operations the engine depends on.
// *store.Repository satisfies it; tests substitute map-backed mocks.
type Store interface {
	GetCredential(ctx context.Context, login string) (*store.Credential, error)
	AddUser(ctx context.Context, u store.NewUser) (*store.User, error)
	ModUser(ctx context.Context, login string, patch store.UserPatch) (*store.User, error)
	DelUser(ctx context.Context, login string) (*store.User, error)
	AddRoles(ctx context.Context, names []string) error
	ConsumeNextPassword(ctx context.Context, login, candidate string) (bool, error)
}

// Provisioner creates an account for an unknown login presenting valid
// out-of-band credentials (for example a device certificate check). A
// (nil, nil) return means the login was not provisioned and the attempt
// fails as unauthenticated.
type Provisioner interface {
	Provision(ctx context.Context, login, password string) (*store.NewUser, error)
}
