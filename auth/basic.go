package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/sabouaram/httpcore/route"
)

// BasicType implements RFC 7617 Basic authentication.
type BasicType struct{}

func (BasicType) Name() string { return "Basic" }

func (BasicType) AskLogin(realm string) Challenge {
	return Challenge{
		Status: http.StatusUnauthorized,
		Headers: map[string]string{
			"WWW-Authenticate": fmt.Sprintf(`Basic realm="%s"`, realm),
		},
	}
}

func (BasicType) ParseAuth(ctx route.MatchContext) (Credentials, error) {
	scheme, payload, ok := splitAuthHeader(ctx.Header("Authorization"))
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return Credentials{}, missingCredentials("missing Basic credentials")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Credentials{}, invalidCredentials("malformed Basic payload")
	}

	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Credentials{}, invalidCredentials("malformed Basic payload")
	}

	return Credentials{Username: user, Password: pass}, nil
}

func (BasicType) Verify(ctx context.Context, store Store, cred Credentials) (Identity, bool, error) {
	return store.Verify(ctx, cred.Username, cred.Password)
}

func (BasicType) SetAuth(cred Credentials) map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(cred.Username + ":" + cred.Password))
	return map[string]string{"Authorization": "Basic " + token}
}
