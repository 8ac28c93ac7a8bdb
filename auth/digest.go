package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/sabouaram/httpcore/route"
)

// DigestType implements RFC 2617 Digest authentication, qop="auth"
// only (the auth-int body-hash variant is not supported: nothing in
// this module computes a request-body digest).
type DigestType struct {
	Nonce *NonceManager
}

// NewDigestType builds a DigestType with its own NonceManager.
func NewDigestType(secret string) *DigestType {
	return &DigestType{Nonce: NewNonceManager(secret)}
}

func (d *DigestType) Name() string { return "Digest" }

func (d *DigestType) AskLogin(realm string) Challenge {
	nonce := d.Nonce.Generate(realm)
	return Challenge{
		Status: http.StatusUnauthorized,
		Headers: map[string]string{
			"WWW-Authenticate": fmt.Sprintf(`Digest realm="%s", qop="auth", nonce="%s"`, realm, nonce),
		},
	}
}

func (d *DigestType) ParseAuth(ctx route.MatchContext) (Credentials, error) {
	scheme, payload, ok := splitAuthHeader(ctx.Header("Authorization"))
	if !ok || !strings.EqualFold(scheme, "Digest") {
		return Credentials{}, missingCredentials("missing Digest credentials")
	}

	f := parseDigestFields(payload)
	cred := Credentials{
		Username: f["username"],
		Realm:    f["realm"],
		Nonce:    f["nonce"],
		NC:       f["nc"],
		CNonce:   f["cnonce"],
		QOP:      f["qop"],
		Response: f["response"],
		URI:      f["uri"],
		Method:   ctx.Method(),
	}

	if cred.Username == "" || cred.Nonce == "" || cred.Response == "" {
		return Credentials{}, invalidCredentials("incomplete Digest credentials")
	}

	return cred, nil
}

func (d *DigestType) Verify(ctx context.Context, store Store, cred Credentials) (Identity, bool, error) {
	if cred.QOP != "" && cred.QOP != "auth" {
		return Identity{}, false, invalidCredentials(fmt.Sprintf("unsupported qop %q", cred.QOP))
	}

	if !d.Nonce.Validate(cred.Nonce, cred.Realm) {
		return Identity{}, false, liberrNonceExpired(cred.Username)
	}

	ha1, ok, err := store.HA1(ctx, cred.Username, cred.Realm)
	if err != nil {
		return Identity{}, false, err
	}
	if !ok {
		return Identity{}, false, nil
	}

	expected := digestResponse(ha1, cred)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(cred.Response))) != 1 {
		return Identity{}, false, nil
	}

	return store.Lookup(ctx, cred.Username)
}

// SetAuth computes the client-side response hash. cred must carry
// Username, Password, Realm, Nonce, URI, Method and (if the server
// requires qop) QOP/NC/CNonce, copied from a prior challenge.
func (d *DigestType) SetAuth(cred Credentials) map[string]string {
	ha1 := md5Hex(cred.Username + ":" + cred.Realm + ":" + cred.Password)
	response := digestResponse(ha1, cred)

	value := fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		cred.Username, cred.Realm, cred.Nonce, cred.URI, response)

	if cred.QOP != "" {
		value += fmt.Sprintf(`, qop=%s, nc=%s, cnonce="%s"`, cred.QOP, cred.NC, cred.CNonce)
	}

	return map[string]string{"Authorization": value}
}

// ParseChallenge extracts realm/nonce/qop from a WWW-Authenticate
// response header, for client-mode code to fill into the next
// request's Credentials before calling SetAuth.
func ParseChallenge(wwwAuthenticate string) (Credentials, error) {
	scheme, payload, ok := splitAuthHeader(wwwAuthenticate)
	if !ok || !strings.EqualFold(scheme, "Digest") {
		return Credentials{}, invalidCredentials("not a Digest challenge")
	}

	f := parseDigestFields(payload)
	return Credentials{Realm: f["realm"], Nonce: f["nonce"], QOP: f["qop"]}, nil
}

// digestResponse computes MD5(HA1:nonce:nc:cnonce:qop:HA2), or the
// legacy MD5(HA1:nonce:HA2) form when no qop was negotiated.
func digestResponse(ha1 string, cred Credentials) string {
	ha2 := md5Hex(cred.Method + ":" + cred.URI)

	if cred.QOP == "auth" {
		return md5Hex(strings.Join([]string{ha1, cred.Nonce, cred.NC, cred.CNonce, cred.QOP, ha2}, ":"))
	}

	return md5Hex(strings.Join([]string{ha1, cred.Nonce, ha2}, ":"))
}
