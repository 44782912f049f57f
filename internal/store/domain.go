package store

import "github.com/horanet/hauth/internal/shared"

// User is the persisted profile of an account, without any password
// material. Role is the resolved role name, empty for unassigned users.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Principal projects the profile into a request-scoped identity.
func (u User) Principal() shared.Principal {
	return shared.Principal{Login: u.Login, Name: u.Name, Role: u.Role}
}

// Credential is the authentication view of a user row. PasswordHash and
// NextPassword are nil when the column is NULL; NextPassword is stored
// in clear because it must be recoverable for out-of-band delivery, a
// deliberate tradeoff for a machine-generated one-shot token.
type Credential struct {
	User         User
	PasswordHash *string
	NextPassword *string
}

// NewUser carries the fields of an account to create. Nil optional
// fields are stored as NULL; Password is hashed before insertion while
// NextPassword is kept in clear (see Credential).
type NewUser struct {
	Login        string  `json:"login"`
	Name         *string `json:"name,omitempty"`
	Role         *string `json:"role,omitempty"`
	Password     *string `json:"password,omitempty"`
	NextPassword *string `json:"next_password,omitempty"`
}

// UserPatch is a partial update; only non-nil fields are written.
type UserPatch struct {
	Name         *string `json:"name,omitempty"`
	Role         *string `json:"role,omitempty"`
	Password     *string `json:"password,omitempty"`
	NextPassword *string `json:"next_password,omitempty"`
}
