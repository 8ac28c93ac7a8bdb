package auth

import "context"

// AppVerifier is a host-application-supplied credential check, per
// §4.5's "app" store: the embedding application owns its own user
// model and hands back an Identity directly.
type AppVerifier func(ctx context.Context, username, password string) (Identity, bool, error)

// AppLookup resolves a username to an Identity without checking a
// password, used for digest's post-response-match role lookup.
type AppLookup func(ctx context.Context, username string) (Identity, bool, error)

// AppStore is the auth store backed entirely by application-supplied
// callbacks.
type AppStore struct {
	Verifier AppVerifier
	Lookuper AppLookup
}

// NewAppStore wraps v and l; either may be nil, in which case the
// corresponding method always reports "not found".
func NewAppStore(v AppVerifier, l AppLookup) *AppStore {
	return &AppStore{Verifier: v, Lookuper: l}
}

func (s *AppStore) Name() string { return "app" }

func (s *AppStore) Verify(ctx context.Context, username, password string) (Identity, bool, error) {
	if s.Verifier == nil {
		return Identity{}, false, nil
	}
	return s.Verifier(ctx, username, password)
}

// HA1 is unsupported: an app store authenticates via its own Verifier,
// never via a precomputed digest hash.
func (s *AppStore) HA1(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (s *AppStore) Lookup(ctx context.Context, username string) (Identity, bool, error) {
	if s.Lookuper == nil {
		return Identity{}, false, nil
	}
	return s.Lookuper(ctx, username)
}
