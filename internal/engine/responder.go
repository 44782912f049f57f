package engine

import "net/http"

// Responder customizes the engine's terminal responses. Implementations
// own the full response, status code included; the engine never writes
// before delegating. Custom responders must not leak whether a login
// exists or echo password material.
type Responder interface {
	// Unauthenticated responds to a request with no verifiable identity.
	Unauthenticated(w http.ResponseWriter, r *http.Request)
	// Forbidden responds to an authenticated principal whose role is not
	// permitted on the path.
	Forbidden(w http.ResponseWriter, r *http.Request)
	// LoggedOut responds after the session cookie has been cleared.
	LoggedOut(w http.ResponseWriter, r *http.Request)
}

// StatusResponder is the default Responder: bare status codes, no body.
type StatusResponder struct{}

func (StatusResponder) Unauthenticated(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusUnauthorized)
}

func (StatusResponder) Forbidden(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusForbidden)
}

func (StatusResponder) LoggedOut(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
