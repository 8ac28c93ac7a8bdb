package auth

import (
	"context"
	"net/http"

	"github.com/sabouaram/httpcore/route"
)

// FormType implements form-based login, per §4.5's "form" type:
// AskLogin redirects to the login page instead of issuing a 401
// challenge, and ParseAuth reads credentials from posted form fields
// instead of the Authorization header.
type FormType struct {
	LoginPath     string
	UsernameField string
	PasswordField string
}

func (f FormType) Name() string { return "Form" }

func (f FormType) fieldNames() (user, pass string) {
	user, pass = f.UsernameField, f.PasswordField
	if user == "" {
		user = "username"
	}
	if pass == "" {
		pass = "password"
	}
	return
}

func (f FormType) AskLogin(string) Challenge {
	return Challenge{
		Status:  http.StatusFound,
		Headers: map[string]string{"Location": f.LoginPath},
	}
}

func (f FormType) ParseAuth(ctx route.MatchContext) (Credentials, error) {
	userField, passField := f.fieldNames()

	user := ctx.FormParam(userField)
	if user == "" {
		return Credentials{}, missingCredentials("missing form credentials")
	}

	return Credentials{Username: user, Password: ctx.FormParam(passField)}, nil
}

func (f FormType) Verify(ctx context.Context, store Store, cred Credentials) (Identity, bool, error) {
	return store.Verify(ctx, cred.Username, cred.Password)
}

// SetAuth is a no-op for form login: a client submits credentials as a
// normal POST body, not as a header the connector can attach.
func (f FormType) SetAuth(Credentials) map[string]string {
	return nil
}
