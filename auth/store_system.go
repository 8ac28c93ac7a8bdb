package auth

import "context"

// SystemVerifier is implemented by the embedding process to check
// credentials against an OS-level mechanism (PAM, shadow, a directory
// service). This module ships only the plug point and a stub that
// always rejects: individual system backends are out of scope (§1).
type SystemVerifier func(ctx context.Context, username, password string) (Identity, bool, error)

// SystemStore is the auth store that defers to the host process, per
// §4.5's "system" store.
type SystemStore struct {
	Verifier SystemVerifier
}

// NewSystemStore wraps v; a nil v always rejects.
func NewSystemStore(v SystemVerifier) *SystemStore {
	return &SystemStore{Verifier: v}
}

func (s *SystemStore) Name() string { return "system" }

func (s *SystemStore) Verify(ctx context.Context, username, password string) (Identity, bool, error) {
	if s.Verifier == nil {
		return Identity{}, false, nil
	}
	return s.Verifier(ctx, username, password)
}

// HA1 is unsupported: a system backend has no way to hand back a
// digest hash without itself storing one, which defeats the point of
// delegating to the OS mechanism.
func (s *SystemStore) HA1(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

// Lookup has no role information to offer beyond the bare username:
// the system backend owns authentication, not role assignment.
func (s *SystemStore) Lookup(_ context.Context, username string) (Identity, bool, error) {
	return Identity{Username: username}, true, nil
}
