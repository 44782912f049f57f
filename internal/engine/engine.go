// Package engine composes policy resolution, credential verification
// and session lifecycle into the request-gating decision procedure, and
// exposes account management to the owning application.
package engine

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/horanet/hauth/internal/policy"
	"github.com/horanet/hauth/internal/shared"
	"github.com/horanet/hauth/internal/store"
	"github.com/horanet/hauth/internal/token"
)

// Config carries the engine's process-wide configuration. It is read
// once at construction and never mutated afterwards.
type Config struct {
	// CookieName of the session cookie. Default "hauth".
	CookieName string
	// SigningKey for session tokens. Empty means a random per-process
	// key: sessions then do not survive a restart.
	SigningKey []byte
	// SigningAlg is the token signing algorithm. Default HS256.
	SigningAlg string
	// TokenExpiry bounds session lifetime. Default 2h.
	TokenExpiry time.Duration
	// Rules is the ordered access rule table.
	Rules []policy.Entry
	// DefaultRule applies to paths matching no rule. Zero value means
	// policy.Deny.
	DefaultRule policy.Rule
	// Provisioner enables auto-provisioning of unknown logins. Optional.
	Provisioner Provisioner
	// Responder customizes terminal responses. Default StatusResponder.
	Responder Responder
	// Logger for engine decisions. Default slog.Default().
	Logger *slog.Logger
}

// Engine is the facade over the gating pipeline. Construct it with New;
// all dependencies are injected, there is no package-level state.
type Engine struct {
	logger    *slog.Logger
	store     Store
	rules     *policy.Table
	tokens    *token.Manager
	verifier  *Verifier
	responder Responder
}

// New constructs an Engine from its store and configuration.
// Configuration errors (malformed rule table, unsupported algorithm)
// abort construction.
func New(st Store, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rules, err := policy.NewTable(cfg.Rules, cfg.DefaultRule, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(cfg.SigningKey, cfg.SigningAlg, cfg.TokenExpiry, cfg.CookieName)
	if err != nil {
		return nil, err
	}
	responder := cfg.Responder
	if responder == nil {
		responder = StatusResponder{}
	}
	return &Engine{
		logger:    logger,
		store:     st,
		rules:     rules,
		tokens:    tokens,
		verifier:  NewVerifier(logger, st, cfg.Provisioner),
		responder: responder,
	}, nil
}

// Control is the gating middleware. Per request it resolves the access
// rule, skips or authenticates, then authorizes:
//
//	skip          -> downstream untouched
//	no principal  -> 401 via Responder, downstream not invoked
//	role denied   -> 403 via Responder, downstream not invoked
//	authorized    -> downstream with the principal in context
func (e *Engine) Control(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := e.rules.Resolve(r.URL.Path)
		if rule.Kind == policy.KindSkip {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := e.authenticate(w, r)
		if err != nil {
			e.logger.Error("credential store failure", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if principal == nil {
			e.responder.Unauthenticated(w, r)
			return
		}
		if !e.rules.AuthorizeRule(rule, principal.Role) {
			e.responder.Forbidden(w, r)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate tries the session cookie, then submitted credentials.
// Token failures are silent by design: an expired or tampered cookie is
// indistinguishable from no cookie.
func (e *Engine) authenticate(w http.ResponseWriter, r *http.Request) (*shared.Principal, error) {
	if principal, ok := e.tokens.ReadCookie(r); ok {
		return principal, nil
	}
	return e.verifier.Verify(r.Context(), w, r)
}

// AddUser inserts a user. (nil, nil) means the login already existed.
func (e *Engine) AddUser(ctx context.Context, u store.NewUser) (*store.User, error) {
	return e.store.AddUser(ctx, u)
}

// ModUser partially updates a user. (nil, nil) means no row matched.
func (e *Engine) ModUser(ctx context.Context, login string, patch store.UserPatch) (*store.User, error) {
	return e.store.ModUser(ctx, login, patch)
}

// DelUser removes a user. (nil, nil) means the login did not exist.
func (e *Engine) DelUser(ctx context.Context, login string) (*store.User, error) {
	return e.store.DelUser(ctx, login)
}

// AddRoles provisions role names idempotently.
func (e *Engine) AddRoles(ctx context.Context, names []string) error {
	return e.store.AddRoles(ctx, names)
}
