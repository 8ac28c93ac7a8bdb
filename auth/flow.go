package auth

import (
	"context"
	"fmt"
	"strings"

	libctx "github.com/sabouaram/httpcore/context"
	liberr "github.com/sabouaram/httpcore/errors"
)

// Session keys used to persist the authenticated identity, scoped to
// the caller's per-request/per-connection libctx.Config[string]
// (rx.Rx.Session). Storing Roles alongside Username avoids a second
// Store.Lookup on every cache hit.
const (
	SessionUsernameKey = "USERNAME"
	SessionIPKey       = "IP"
	SessionRolesKey    = "ROLES"
)

// Authenticator wires together one auth Type, one Store, the role ->
// abilities table, and the per-route auto-login table into the
// httpAuthenticate / httpLogin / httpCanUser flow of §4.5.
type Authenticator struct {
	Realm string
	Type  Type
	Store Store

	// NoSession disables session caching of the authenticated
	// identity (HTTP_AUTH_NO_SESSION).
	NoSession bool

	// RoleAbilities expands a role name to the abilities it grants;
	// see ExpandAbilities.
	RoleAbilities map[string][]string

	// AutoLogin maps a route name to the username that route should
	// log in as without a password (§4.5 "auto-login username").
	AutoLogin map[string]string
}

// Authenticate implements httpAuthenticate: it checks the session for
// a cached identity bound to remoteAddr, then the route's auto-login
// entry, and otherwise reports no identity so the caller's auth
// condition can reject (triggering AskLogin).
func (a *Authenticator) Authenticate(ctx context.Context, session libctx.Config[string], remoteAddr, routeName string) (Identity, bool) {
	if id, ok := a.cachedIdentity(session, remoteAddr); ok {
		return id, true
	}

	if user, ok := a.AutoLogin[routeName]; ok && user != "" {
		id, found, err := a.Store.Lookup(ctx, user)
		if err != nil || !found {
			return Identity{}, false
		}
		a.remember(session, id, remoteAddr)
		return id, true
	}

	return Identity{}, false
}

func (a *Authenticator) cachedIdentity(session libctx.Config[string], remoteAddr string) (Identity, bool) {
	if a.NoSession || session == nil {
		return Identity{}, false
	}

	rawUser, ok := session.Load(SessionUsernameKey)
	if !ok {
		return Identity{}, false
	}

	rawIP, ok := session.Load(SessionIPKey)
	if !ok || rawIP != remoteAddr {
		return Identity{}, false
	}

	username, _ := rawUser.(string)
	var roles []string
	if rawRoles, ok := session.Load(SessionRolesKey); ok {
		if s, ok := rawRoles.(string); ok && s != "" {
			roles = strings.Split(s, ",")
		}
	}

	return Identity{Username: username, Roles: roles}, true
}

func (a *Authenticator) remember(session libctx.Config[string], id Identity, remoteAddr string) {
	if a.NoSession || session == nil {
		return
	}
	session.Store(SessionUsernameKey, id.Username)
	session.Store(SessionIPKey, remoteAddr)
	session.Store(SessionRolesKey, strings.Join(id.Roles, ","))
}

// Login implements httpLogin: it runs cred through the configured
// Type's Verify against the Store, and on success remembers the
// identity in session (unless NoSession).
func (a *Authenticator) Login(ctx context.Context, cred Credentials, session libctx.Config[string], remoteAddr string) (Identity, error) {
	id, ok, err := a.Type.Verify(ctx, a.Store, cred)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, invalidCredentials("login rejected")
	}

	a.remember(session, id, remoteAddr)
	return id, nil
}

// Logout clears the cached identity.
func (a *Authenticator) Logout(session libctx.Config[string]) {
	if session == nil {
		return
	}
	session.Delete(SessionUsernameKey)
	session.Delete(SessionIPKey)
	session.Delete(SessionRolesKey)
}

// CanUser implements httpCanUser: every required ability must be in
// id's expanded ability set.
func (a *Authenticator) CanUser(id Identity, required []string) bool {
	granted := ExpandAbilities(id.Roles, a.RoleAbilities)
	for _, r := range required {
		if !granted[r] {
			return false
		}
	}
	return true
}

// AskLogin delegates to the configured Type, for the auth condition's
// reject path.
func (a *Authenticator) AskLogin() Challenge {
	return a.Type.AskLogin(a.Realm)
}

// ForbiddenError is what the caller should turn into a 403 when
// CanUser fails for an otherwise-authenticated identity.
func ForbiddenError(username string) error {
	return liberr.CodeAuthForbidden.Error(fmt.Errorf("user %q lacks a required ability", username))
}
