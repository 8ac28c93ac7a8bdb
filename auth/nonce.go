package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// nonceTTL is the acceptance window of §4.5's "age <= 5 minutes".
const nonceTTL = 5 * time.Minute

// NonceManager generates and validates digest nonces of the form
// base64(secret:realm:time-hex:counter-hex) (§4.5). The secret is
// mutable (RotateSecret) so an operator can invalidate every
// outstanding nonce at once; Validate always compares against the
// current secret, not the one embedded in the nonce itself.
type NonceManager struct {
	mu      sync.RWMutex
	secret  string
	ttl     time.Duration
	counter uint64
}

// NewNonceManager builds a manager with a random secret if secret is
// empty.
func NewNonceManager(secret string) *NonceManager {
	if secret == "" {
		secret = randomSecret()
	}
	return &NonceManager{secret: secret, ttl: nonceTTL}
}

// RotateSecret replaces the live secret, invalidating every nonce
// issued under the previous one.
func (n *NonceManager) RotateSecret(secret string) {
	n.mu.Lock()
	n.secret = secret
	n.mu.Unlock()
}

func (n *NonceManager) currentSecret() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.secret
}

// Generate issues a fresh nonce for realm.
func (n *NonceManager) Generate(realm string) string {
	ctr := atomic.AddUint64(&n.counter, 1)
	raw := fmt.Sprintf("%s:%s:%x:%x", n.currentSecret(), realm, time.Now().Unix(), ctr)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Validate reports whether nonce was issued for realm, under the
// current secret, and within the acceptance window. This is the fixed
// form of the check: the original compared the embedded secret
// against itself (always true); here it's compared against the
// manager's current live secret, so RotateSecret actually invalidates
// prior nonces.
func (n *NonceManager) Validate(nonce, realm string) bool {
	decoded, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return false
	}

	parts := strings.SplitN(string(decoded), ":", 4)
	if len(parts) != 4 {
		return false
	}

	secret, r, timeHex := parts[0], parts[1], parts[2]

	if subtle.ConstantTimeCompare([]byte(secret), []byte(n.currentSecret())) != 1 {
		return false
	}

	if r != realm {
		return false
	}

	ts, err := strconv.ParseInt(timeHex, 16, 64)
	if err != nil {
		return false
	}

	return time.Since(time.Unix(ts, 0)) <= n.ttl
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform's entropy source is
		// broken; a fixed fallback still yields a usable (if
		// predictable) secret rather than panicking the server.
		return "httpcore-digest-fallback-secret"
	}
	return base64.RawStdEncoding.EncodeToString(buf)
}
