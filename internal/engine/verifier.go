package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/horanet/hauth/internal/shared"
)

// NextPasswordHeader carries a pending one-shot password to the client,
// either freshly generated during auto-provisioning or surfaced on a
// regular login while a rotation is pending.
const NextPasswordHeader = "X-Next-Password"

// Verifier turns submitted credentials into an authenticated principal.
type Verifier struct {
	logger      *slog.Logger
	store       Store
	provisioner Provisioner
}

// NewVerifier constructs a Verifier. provisioner may be nil, in which
// case unknown logins always fail.
func NewVerifier(logger *slog.Logger, st Store, provisioner Provisioner) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger, store: st, provisioner: provisioner}
}

// Verify extracts credentials from the request and verifies them against
// the store. It returns (nil, nil) for any authentication failure; the
// rejection carries no hint of whether the login exists. A non-nil error
// is a store failure, never a bad credential.
//
// The response writer only receives the X-Next-Password header; the
// caller owns status and body.
func (v *Verifier) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) (*shared.Principal, error) {
	login, password, ok := credentialsFrom(r)
	if !ok || login == "" {
		return nil, nil
	}

	cred, err := v.store.GetCredential(ctx, login)
	if errors.Is(err, shared.ErrNotFound) {
		return v.provision(ctx, w, login, password)
	}
	if err != nil {
		return nil, err
	}

	// The pending one-shot password takes priority over the stored hash.
	// Consumption is a compare-and-clear in a single statement, so two
	// concurrent logins with the same value race to exactly one winner.
	if cred.NextPassword != nil && password == *cred.NextPassword {
		won, err := v.store.ConsumeNextPassword(ctx, login, password)
		if err != nil {
			return nil, err
		}
		if won {
			p := cred.User.Principal()
			return &p, nil
		}
		// Lost the race: the row now holds the rotated hash. Reload and
		// let the hash check below decide.
		cred, err = v.store.GetCredential(ctx, login)
		if err != nil {
			return nil, err
		}
	}

	if cred.PasswordHash != nil {
		// Exact string equality covers unmigrated plaintext rows.
		if password == *cred.PasswordHash || shared.VerifyPassword(*cred.PasswordHash, password) {
			if cred.NextPassword != nil {
				w.Header().Set(NextPasswordHeader, *cred.NextPassword)
			}
			p := cred.User.Principal()
			return &p, nil
		}
	}

	v.logger.Warn("login attempt with bad password", slog.String("login", login))
	return nil, nil
}

// provision handles an unknown login. The rejection log wording matches
// the bad-password path in what it reveals to the caller: nothing.
func (v *Verifier) provision(ctx context.Context, w http.ResponseWriter, login, password string) (*shared.Principal, error) {
	if v.provisioner == nil {
		v.logger.Warn("login attempt with unknown login", slog.String("login", login))
		return nil, nil
	}
	profile, err := v.provisioner.Provision(ctx, login, password)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		v.logger.Warn("login attempt with unknown login", slog.String("login", login))
		return nil, nil
	}

	profile.Login = login
	next := shared.GeneratePassword()
	profile.NextPassword = &next
	created, err := v.store.AddUser(ctx, *profile)
	if err != nil {
		return nil, err
	}
	if created == nil {
		// Another request inserted the login concurrently; this attempt
		// fails and the client retries against the now-existing row.
		v.logger.Warn("auto-provisioning lost insert race", slog.String("login", login))
		return nil, nil
	}

	w.Header().Set(NextPasswordHeader, next)
	v.logger.Info("auto-provisioned user", slog.String("login", login))
	p := created.Principal()
	return &p, nil
}

type loginBody struct {
	Login    string  `json:"login"`
	Password *string `json:"password"`
}

// credentialsFrom extracts login and password from the Basic-Auth header
// when present (malformed values yield no credentials, with no body
// fallback), otherwise from a JSON body. An empty-string password is
// valid input; an absent password is not.
func credentialsFrom(r *http.Request) (login, password string, ok bool) {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Basic ") {
		return r.BasicAuth()
	}
	if r.Body == nil {
		return "", "", false
	}
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", "", false
	}
	if body.Login == "" || body.Password == nil {
		return "", "", false
	}
	return body.Login, *body.Password, true
}
