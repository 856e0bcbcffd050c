package session

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"medboard-server-go/internal/domain/session/model"
)

// Storage is the browser-session-scoped key/value surface the cache writes
// to (sessionStorage in the dashboard, an in-memory map in tests and on
// the server side).
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// NewMemoryStorage returns a process-local Storage implementation.
func NewMemoryStorage() Storage {
	return &memoryStorage{values: make(map[string]string)}
}

type memoryStorage struct {
	values map[string]string
	mutex  sync.RWMutex
}

func (s *memoryStorage) Get(key string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *memoryStorage) Set(key, value string) {
	s.mutex.Lock()
	s.values[key] = value
	s.mutex.Unlock()
}

func (s *memoryStorage) Delete(key string) {
	s.mutex.Lock()
	delete(s.values, key)
	s.mutex.Unlock()
}

const (
	cacheSessionKey  = "medboard_session"
	cacheActivityKey = "medboard_last_activity"
)

// Cache is the encrypted local mirror of the current session. It is a
// tamper deterrent and a performance cache, never an authority: every read
// path degrades to "no session" on corruption or expiry, and the validator
// reconciles it against the server record.
type Cache struct {
	storage Storage
	secret  []byte
	timeout time.Duration
	logger  Logger
	mutex   sync.Mutex
}

// NewCache builds a cache keyed by the fixed application secret. The
// obfuscation transform is a keyed XOR keystream: deliberately casual, see
// the trust note above.
func NewCache(storage Storage, secret string, timeout time.Duration, logger Logger) *Cache {
	if timeout <= 0 {
		timeout = time.Duration(defaultTimeoutMinutes) * time.Minute
	}
	return &Cache{
		storage: storage,
		secret:  []byte(secret),
		timeout: timeout,
		logger:  logger,
	}
}

// keystream expands the secret into n bytes via counter-mode SHA-256.
func (c *Cache) keystream(n int) []byte {
	out := make([]byte, 0, n)
	var counter uint64
	block := make([]byte, len(c.secret)+8)
	copy(block, c.secret)
	for len(out) < n {
		binary.BigEndian.PutUint64(block[len(c.secret):], counter)
		sum := sha256.Sum256(block)
		out = append(out, sum[:]...)
		counter++
	}
	return out[:n]
}

func (c *Cache) obfuscate(plain []byte) string {
	ks := c.keystream(len(plain))
	buf := make([]byte, len(plain))
	for i := range plain {
		buf[i] = plain[i] ^ ks[i]
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func (c *Cache) deobfuscate(encoded string) ([]byte, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	ks := c.keystream(len(buf))
	for i := range buf {
		buf[i] ^= ks[i]
	}
	return buf, nil
}

// Store writes the reduced session view plus the last-activity marker.
func (c *Cache) Store(rec Record) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored := model.StoredSession{
		SessionID:    rec.SessionID,
		UserID:       rec.UserID,
		UserEmail:    rec.UserEmail,
		UserRole:     rec.UserRole,
		ExpiresAt:    rec.ExpiresAt,
		LastActivity: rec.LastActivity,
	}
	data, err := json.Marshal(stored)
	if err != nil {
		c.logger.Warn("failed to serialize session cache: %v", err)
		return
	}
	c.storage.Set(cacheSessionKey, c.obfuscate(data))
	c.storage.Set(cacheActivityKey, strconv.FormatInt(rec.LastActivity.UnixMilli(), 10))
}

// StoreReduced overwrites the cache from an already reduced view, used when
// reconciling with server-confirmed values.
func (c *Cache) StoreReduced(stored model.StoredSession) {
	c.Store(Record{
		SessionID:    stored.SessionID,
		UserID:       stored.UserID,
		UserEmail:    stored.UserEmail,
		UserRole:     stored.UserRole,
		ExpiresAt:    stored.ExpiresAt,
		LastActivity: stored.LastActivity,
	})
}

// Get reads the cached session. Expired or unparseable state is cleared
// and reported as absent; this method never fails outward.
func (c *Cache) Get() *model.StoredSession {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored := c.readLocked()
	if stored == nil {
		return nil
	}
	if time.Now().After(stored.ExpiresAt) {
		c.clearLocked()
		return nil
	}
	return stored
}

// read returns the cached view without the expiry check, so the validator
// can tell "nothing cached" apart from "cached but expired". Corrupt state
// is still cleared and reported as absent.
func (c *Cache) read() *model.StoredSession {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.readLocked()
}

func (c *Cache) readLocked() *model.StoredSession {
	raw, ok := c.storage.Get(cacheSessionKey)
	if !ok {
		return nil
	}
	plain, err := c.deobfuscate(raw)
	if err != nil {
		c.logger.Warn("session cache unreadable, clearing: %v", err)
		c.clearLocked()
		return nil
	}
	var stored model.StoredSession
	if err := json.Unmarshal(plain, &stored); err != nil {
		c.logger.Warn("session cache corrupt, clearing: %v", err)
		c.clearLocked()
		return nil
	}
	if stored.SessionID == "" {
		c.clearLocked()
		return nil
	}
	return &stored
}

// UpdateActivity re-stamps the activity marker and optimistically extends
// the local expiry by the timeout window. The server remains authoritative;
// the activity tracker reconciles on its next successful ping.
func (c *Cache) UpdateActivity() {
	stored := c.Get()
	if stored == nil {
		return
	}

	now := time.Now()
	stored.LastActivity = now
	stored.ExpiresAt = now.Add(c.timeout)
	c.StoreReduced(*stored)
}

// Clear removes all cached session state.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	c.storage.Delete(cacheSessionKey)
	c.storage.Delete(cacheActivityKey)
}

// IsSessionActive reports whether a non-expired session is cached.
func (c *Cache) IsSessionActive() bool {
	return c.Get() != nil
}

// LastActivity returns the cached activity marker, zero when absent or
// unparseable.
func (c *Cache) LastActivity() time.Time {
	raw, ok := c.storage.Get(cacheActivityKey)
	if !ok {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// IsInactive reports whether the cached activity marker is older than the
// threshold. An absent marker counts as inactive.
func (c *Cache) IsInactive(threshold time.Duration) bool {
	last := c.LastActivity()
	if last.IsZero() {
		return true
	}
	return time.Since(last) > threshold
}
