package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// ConfigUser is one entry of a ConfigStore's user table (§4.5: "users
// (user->password-hash + roles)"). PasswordHash backs Basic/Form;
// DigestHA1 backs Digest, since a bcrypt hash can't be reversed back
// into the MD5(username:realm:password) digest auth needs.
type ConfigUser struct {
	PasswordHash string
	DigestHA1    string
	Roles        []string
}

// ConfigStore is the auth store driven entirely by static configuration,
// per §4.5's "config" store.
type ConfigStore struct {
	Realm string
	Users map[string]ConfigUser
}

// NewConfigStore builds an empty ConfigStore for realm.
func NewConfigStore(realm string) *ConfigStore {
	return &ConfigStore{Realm: realm, Users: make(map[string]ConfigUser)}
}

func (s *ConfigStore) Name() string { return "config" }

// Verify compares password against the user's bcrypt hash.
func (s *ConfigStore) Verify(_ context.Context, username, password string) (Identity, bool, error) {
	u, ok := s.Users[username]
	if !ok || u.PasswordHash == "" {
		return Identity{}, false, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, false, nil
	}

	return Identity{Username: username, Roles: u.Roles}, true, nil
}

// HA1 returns the user's precomputed digest hash, if configured.
func (s *ConfigStore) HA1(_ context.Context, username, realm string) (string, bool, error) {
	u, ok := s.Users[username]
	if !ok || u.DigestHA1 == "" {
		return "", false, nil
	}
	_ = realm
	return u.DigestHA1, true, nil
}

func (s *ConfigStore) Lookup(_ context.Context, username string) (Identity, bool, error) {
	u, ok := s.Users[username]
	if !ok {
		return Identity{}, false, nil
	}
	return Identity{Username: username, Roles: u.Roles}, true, nil
}

// HashPassword is an operator-facing helper for populating
// ConfigUser.PasswordHash from a plaintext password at config-load time.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(h), err
}

// ComputeDigestHA1 is an operator-facing helper for populating
// ConfigUser.DigestHA1 from a plaintext password at config-load time.
func ComputeDigestHA1(username, realm, password string) string {
	return md5Hex(username + ":" + realm + ":" + password)
}
