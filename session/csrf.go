package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/sabouaram/httpcore/trace"
)

// XSRFTokenKey is both the session data key the token is stored under
// and the cookie/header name it's mirrored into, per §4.6.
const XSRFTokenKey = "XSRF-TOKEN"

// AddSecurityToken implements httpAddSecurityToken: it writes a fresh
// token into sess and returns it so the caller can also set it as the
// XSRF-TOKEN cookie and mirror it into a response header.
func (m *Manager) AddSecurityToken(sess *Session) string {
	token := randomToken()
	sess.Set(XSRFTokenKey, token)
	return token
}

// CheckSecurityToken implements httpCheckSecurityToken: it compares
// sess's stored token against headerToken (the XSRF-TOKEN request
// header) or, if empty, formToken (a form param of the same name). On
// mismatch it logs request.xsrf.error and re-issues a fresh token, per
// §4.6.
func (m *Manager) CheckSecurityToken(sess *Session, headerToken, formToken string) bool {
	want, ok := sess.Get(XSRFTokenKey)
	if !ok {
		m.reportXSRFMismatch(sess)
		return false
	}

	got := headerToken
	if got == "" {
		got = formToken
	}

	wantStr, _ := want.(string)
	if subtle.ConstantTimeCompare([]byte(wantStr), []byte(got)) != 1 {
		m.reportXSRFMismatch(sess)
		return false
	}

	return true
}

func (m *Manager) reportXSRFMismatch(sess *Session) {
	if m.logger != nil {
		m.logger.Warning("request.xsrf.error", "csrf token mismatch", trace.NewFields().Add("session_id", sess.ID))
	}
	m.AddSecurityToken(sess)
}

func randomToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "httpcore-csrf-fallback-token"
	}
	return hex.EncodeToString(buf)
}
