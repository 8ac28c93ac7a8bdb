/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package auth implements the pluggable authentication types (basic,
// digest, form) and stores (config, system, app) of §4.5, plus the
// ability expansion used by the route matcher's auth condition.
package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	liberr "github.com/sabouaram/httpcore/errors"
	"github.com/sabouaram/httpcore/route"
)

// Identity is an authenticated user plus the roles granted to them.
// Abilities are derived from Roles via ExpandAbilities, never stored
// directly: a role's ability set can change without touching every
// identity that holds it.
type Identity struct {
	Username string
	Roles    []string
}

// Credentials is the union of every field an auth Type's ParseAuth may
// populate. Basic/Form only ever set Username/Password; Digest sets
// the RFC 2617 challenge-response fields instead and, client-side,
// both Password (to compute a response) and the challenge it answers.
type Credentials struct {
	Username string
	Password string

	Method string
	URI    string

	Realm    string
	Nonce    string
	NC       string
	CNonce   string
	QOP      string
	Response string
}

// Challenge is what AskLogin produces: how the caller should prompt an
// unauthenticated client for credentials (a 401 challenge header, or a
// redirect to a login page).
type Challenge struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Type is one pluggable authentication scheme. ParseAuth only extracts
// Credentials from the request; Verify decides whether they're valid
// against a Store, since what counts as correct depends on the scheme
// (digest needs HA1 and the original nonce, basic/form just need a
// password).
type Type interface {
	Name() string
	AskLogin(realm string) Challenge
	ParseAuth(ctx route.MatchContext) (Credentials, error)
	Verify(ctx context.Context, store Store, cred Credentials) (Identity, bool, error)
	// SetAuth is the client-side callback: it returns the header(s) an
	// outgoing request should carry to authenticate with cred.
	SetAuth(cred Credentials) map[string]string
}

// Store resolves credentials against a backend. HA1 exists only for
// digest auth, which never sees a plaintext password to compare: the
// store must hand back the precomputed MD5(username:realm:password)
// instead. A store that can't support digest returns ok=false, and
// Digest.Verify then reports authentication failure rather than
// crashing on a backend that plainly doesn't speak this scheme.
type Store interface {
	Name() string
	Verify(ctx context.Context, username, password string) (Identity, bool, error)
	HA1(ctx context.Context, username, realm string) (string, bool, error)
	Lookup(ctx context.Context, username string) (Identity, bool, error)
}

// ExpandAbilities walks roles (and the roles they expand to,
// recursively) against roleAbilities and returns the full granted set.
// Role names are abilities in their own right, per §4.5.
func ExpandAbilities(roles []string, roleAbilities map[string][]string) map[string]bool {
	granted := make(map[string]bool, len(roles))
	seen := make(map[string]bool, len(roles))

	var walk func(name string)
	walk = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		granted[name] = true
		for _, next := range roleAbilities[name] {
			walk(next)
		}
	}

	for _, r := range roles {
		walk(r)
	}

	return granted
}

// splitAuthHeader splits a raw "Authorization" (or "WWW-Authenticate")
// header value into its scheme token and the remainder, mirroring
// rx.Rx's own Authorization-splitting effect so Basic/Digest need not
// depend on the rx package to re-derive it.
func splitAuthHeader(value string) (scheme, rest string, ok bool) {
	sp := strings.IndexByte(value, ' ')
	if sp <= 0 {
		return "", "", false
	}
	return value[:sp], strings.TrimSpace(value[sp+1:]), true
}

// parseDigestFields parses the comma-separated key=value (optionally
// quoted) pairs of a Digest Authorization/WWW-Authenticate payload.
func parseDigestFields(details string) map[string]string {
	fields := make(map[string]string)

	for _, part := range strings.Split(details, ",") {
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		val = strings.Trim(val, `"`)
		fields[strings.ToLower(key)] = val
	}

	return fields
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// missingCredentials is a small helper so every Type reports the same
// registered code for "no Authorization/form data at all".
func missingCredentials(detail string) error {
	return liberr.CodeAuthMissing.Error(fmt.Errorf("%s", detail))
}

func invalidCredentials(detail string) error {
	return liberr.CodeAuthInvalid.Error(fmt.Errorf("%s", detail))
}

func liberrNonceExpired(username string) error {
	return liberr.CodeAuthNonceExpired.Error(fmt.Errorf("nonce expired or invalid for %q", username))
}
