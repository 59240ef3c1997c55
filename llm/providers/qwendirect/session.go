package qwendirect

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultTTL             = 30 * time.Minute
	defaultCleanupInterval = 10 * time.Minute
	shardCount             = 16
)

// Session is a single conversation's Qwen-native thread state (spec §3).
type Session struct {
	SessionID     string
	NativeChatID  string
	ParentID      string // empty until the first upstream response.created arrives
	CreatedAt     time.Time
	LastAccessed  int64 // unix milliseconds
	MessageCount  int
}

// GenerateSessionID returns the 32-character hex MD5 digest of the UTF-8
// bytes of content (spec §4.2). An empty content is a caller error, not a
// degenerate digest, since an empty-string session id would silently alias
// every conversation with no first message.
func GenerateSessionID(content string) (string, error) {
	if content == "" {
		return "", errors.New("qwendirect: cannot derive session id from empty content")
	}
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:]), nil
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// SessionManager is a sharded, TTL-swept in-memory map of Session, keyed by
// the 32-char hex session id (spec §9 "natural shape is hex32→Session").
// Sharding by the id's first byte (mod 16) spreads lock contention across
// concurrent requests touching unrelated conversations.
type SessionManager struct {
	shards          [shardCount]*shard
	ttl             time.Duration
	cleanupInterval time.Duration

	totalCreated int64
	totalCleaned int64

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// SessionManagerOption configures a SessionManager at construction time.
type SessionManagerOption func(*SessionManager)

// WithTTL overrides the default 30-minute session TTL.
func WithTTL(ttl time.Duration) SessionManagerOption {
	return func(m *SessionManager) { m.ttl = ttl }
}

// WithCleanupInterval overrides the default 10-minute sweep interval.
func WithCleanupInterval(interval time.Duration) SessionManagerOption {
	return func(m *SessionManager) { m.cleanupInterval = interval }
}

// NewSessionManager constructs a SessionManager. Call StartCleanup to begin
// the periodic sweep goroutine; the manager is otherwise fully usable
// without it (Get simply won't proactively evict expired entries between calls).
func NewSessionManager(opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		ttl:             defaultTTL,
		cleanupInterval: defaultCleanupInterval,
	}
	for i := range m.shards {
		m.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SessionManager) shardFor(sessionID string) *shard {
	if len(sessionID) == 0 {
		return m.shards[0]
	}
	return m.shards[int(sessionID[0])%shardCount]
}

// Create registers a new session, returning it. If one already exists under
// the same id it is overwritten.
func (m *SessionManager) Create(sessionID, nativeChatID string) *Session {
	s := &Session{
		SessionID:    sessionID,
		NativeChatID: nativeChatID,
		CreatedAt:    time.Now(),
		LastAccessed: time.Now().UnixMilli(),
	}
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	sh.sessions[sessionID] = s
	sh.mu.Unlock()
	atomic.AddInt64(&m.totalCreated, 1)
	return s
}

// Get returns the session for sessionID, or (nil, false) if absent or
// expired. An expired entry found here is evicted immediately and treated
// as absent, without waiting for the next sweep (spec §8 "expired session
// get() = none").
func (m *SessionManager) Get(sessionID string) (*Session, bool) {
	sh := m.shardFor(sessionID)
	sh.mu.RLock()
	s, ok := sh.sessions[sessionID]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.expired(s) {
		sh.mu.Lock()
		delete(sh.sessions, sessionID)
		sh.mu.Unlock()
		atomic.AddInt64(&m.totalCleaned, 1)
		return nil, false
	}

	sh.mu.Lock()
	s.LastAccessed = time.Now().UnixMilli()
	sh.mu.Unlock()
	return s, true
}

func (m *SessionManager) expired(s *Session) bool {
	if m.ttl <= 0 {
		return false
	}
	return time.Since(time.UnixMilli(s.LastAccessed)) > m.ttl
}

// UpdateParentID records the parent_id to thread the next turn from. Races
// between concurrent updates for the same session are last-writer-wins by
// design (spec §5 "explicit known design choice").
func (m *SessionManager) UpdateParentID(sessionID, parentID string) bool {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.sessions[sessionID]
	if !ok {
		return false
	}
	s.ParentID = parentID
	s.MessageCount++
	s.LastAccessed = time.Now().UnixMilli()
	return true
}

// SetChatID records the native Qwen chat id once create_chat succeeds.
func (m *SessionManager) SetChatID(sessionID, chatID string) bool {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.sessions[sessionID]
	if !ok {
		return false
	}
	s.NativeChatID = chatID
	return true
}

// Delete removes a single session.
func (m *SessionManager) Delete(sessionID string) {
	sh := m.shardFor(sessionID)
	sh.mu.Lock()
	delete(sh.sessions, sessionID)
	sh.mu.Unlock()
}

// Metrics reports session counts (spec §4.2): Active live sessions right
// now, plus the running totals since the manager was constructed.
type Metrics struct {
	Active       int
	TotalCreated int64
	TotalCleaned int64
}

// Metrics returns current session counts, sweeping out expired entries
// found along the way.
func (m *SessionManager) Metrics() Metrics {
	active := 0
	evicted := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if m.expired(s) {
				delete(sh.sessions, id)
				evicted++
				continue
			}
			active++
		}
		sh.mu.Unlock()
	}
	if evicted > 0 {
		atomic.AddInt64(&m.totalCleaned, int64(evicted))
	}
	return Metrics{
		Active:       active,
		TotalCreated: atomic.LoadInt64(&m.totalCreated),
		TotalCleaned: atomic.LoadInt64(&m.totalCleaned),
	}
}

// cleanup performs a single full-scan sweep, evicting every expired session
// and returning the number removed (spec §4.2 "cleanup() -> count").
func (m *SessionManager) cleanup() int {
	removed := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if m.expired(s) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		atomic.AddInt64(&m.totalCleaned, int64(removed))
	}
	return removed
}

// StartCleanup launches the periodic sweep goroutine (spec §9 "cleanup is a
// single scan task"). Safe to call at most once per manager.
func (m *SessionManager) StartCleanup() {
	m.once.Do(func() {
		m.stopCh = make(chan struct{})
		m.doneCh = make(chan struct{})
		go func() {
			defer close(m.doneCh)
			ticker := time.NewTicker(m.cleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.cleanup()
				case <-m.stopCh:
					return
				}
			}
		}()
	})
}

// StopCleanup stops the sweep goroutine and waits for it to exit. Safe to
// call even if StartCleanup was never called.
func (m *SessionManager) StopCleanup() {
	if m.stopCh == nil {
		return
	}
	select {
	case <-m.stopCh:
		// already stopped
	default:
		close(m.stopCh)
	}
	<-m.doneCh
}

// Shutdown stops the sweep goroutine and drops every session (spec §5
// "session-sweep coupled to provider lifetime").
func (m *SessionManager) Shutdown() {
	m.StopCleanup()
	for _, sh := range m.shards {
		sh.mu.Lock()
		sh.sessions = make(map[string]*Session)
		sh.mu.Unlock()
	}
}
