package session

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/sabouaram/httpcore/trace"
)

// Manager is the shared, host-wide session cache of §4.6/§5: a bounded
// LRU (sized by config, never persisted) with an eviction callback
// that surfaces (rather than silently drops) a still-live session
// pushed out by cache pressure.
type Manager struct {
	cache      *lru.Cache
	ttl        time.Duration
	cookieName string
	logger     trace.Logger
	seq        uint64
}

// DefaultSize is the session cache capacity used when NewManager is
// given size <= 0 (the underlying LRU rejects a non-positive size).
const DefaultSize = 4096

// NewManager builds a Manager holding up to size sessions, each valid
// for ttl from its last renewal. size falls back to DefaultSize when
// <= 0; cookieName falls back to DefaultCookieName when empty; logger
// may be nil.
func NewManager(size int, ttl time.Duration, cookieName string, logger trace.Logger) (*Manager, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	m := &Manager{ttl: ttl, cookieName: cookieName, logger: logger}

	cache, err := lru.NewWithEvict(size, m.onEvict)
	if err != nil {
		return nil, err
	}
	m.cache = cache

	return m, nil
}

func (m *Manager) CookieName() string { return m.cookieName }

// onEvict is the LRU's eviction callback: it runs both when cache
// pressure pushes a session out and when Remove drops one. It skips
// expired sessions (Load removes only expired ones, and Delete marks
// its session expired first), so the event only logs when a live
// session was dropped early by cache pressure, per §4.6: "surfaced,
// not hidden, since the spec requires TTL".
func (m *Manager) onEvict(key, value interface{}) {
	sess, ok := value.(*Session)
	if !ok || sess.Expired() {
		return
	}

	if m.logger != nil {
		m.logger.Warning("session.evict", "session evicted under cache pressure before its lifespan ended",
			trace.NewFields().Add("session_id", sess.ID))
	}
}

// New allocates a fresh session and adds it to the cache.
func (m *Manager) New() *Session {
	sess := newSession(m.nextID(), m.ttl)
	m.cache.Add(sess.ID, sess)
	return sess
}

// Load returns the session for id if present and not expired; an
// expired entry is removed and reported as a miss.
func (m *Manager) Load(id string) (*Session, bool) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}

	sess := v.(*Session)
	if sess.Expired() {
		m.cache.Remove(id)
		return nil, false
	}

	return sess, true
}

// Save renews sess's lifespan and writes it back to the cache (the
// "serialized form written back to the shared cache on finalization"
// of §4.6; here the in-process Session itself is the serialized form,
// since there is no external backend to encode it for).
func (m *Manager) Save(sess *Session) {
	sess.Renew(m.ttl)
	m.cache.Add(sess.ID, sess)
	sess.ClearDirty()
}

// Delete removes a session, e.g. on logout. The session is marked
// expired first so onEvict does not report it as a pressure eviction.
func (m *Manager) Delete(id string) {
	if v, ok := m.cache.Peek(id); ok {
		if sess, ok := v.(*Session); ok {
			sess.ExpiresAt = time.Time{}
		}
	}
	m.cache.Remove(id)
}

// Len reports the number of live entries, for monitoring.
func (m *Manager) Len() int { return m.cache.Len() }

// nextID generates "SEQNO + hex(md5(random 16 bytes))", per §4.6's
// "prefix SEQNO + md5(randomness)".
func (m *Manager) nextID() string {
	seq := atomic.AddUint64(&m.seq, 1)

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the entropy source is broken; fall
		// back to a fixed buffer so session creation still succeeds
		// (ids stay unique via seq even if less unpredictable).
		buf = []byte(fmt.Sprintf("httpcore-session-%d", seq))
		for len(buf) < 16 {
			buf = append(buf, 0)
		}
		buf = buf[:16]
	}

	sum := md5.Sum(buf)
	return strconv.FormatUint(seq, 10) + hex.EncodeToString(sum[:])
}
