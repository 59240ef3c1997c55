package qwendirect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionID_Deterministic(t *testing.T) {
	id1, err := GenerateSessionID("hello world")
	require.NoError(t, err)
	id2, err := GenerateSessionID("hello world")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 32)
}

func TestGenerateSessionID_EmptyErrors(t *testing.T) {
	_, err := GenerateSessionID("")
	assert.Error(t, err)
}

func TestSessionManager_CreateGet(t *testing.T) {
	m := NewSessionManager()
	s := m.Create("abc123", "chat-1")
	assert.Equal(t, "chat-1", s.NativeChatID)

	got, ok := m.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, "chat-1", got.NativeChatID)
}

func TestSessionManager_GetExpired(t *testing.T) {
	m := NewSessionManager(WithTTL(50 * time.Millisecond))
	m.Create("abc123", "chat-1")

	time.Sleep(80 * time.Millisecond)
	_, ok := m.Get("abc123")
	assert.False(t, ok)

	// absent on the next call too
	_, ok = m.Get("abc123")
	assert.False(t, ok)
}

func TestSessionManager_UpdateParentID(t *testing.T) {
	m := NewSessionManager()
	m.Create("abc123", "chat-1")

	ok := m.UpdateParentID("abc123", "parent-1")
	assert.True(t, ok)

	s, _ := m.Get("abc123")
	assert.Equal(t, "parent-1", s.ParentID)
	assert.Equal(t, 1, s.MessageCount)
}

func TestSessionManager_UpdateParentID_UnknownSession(t *testing.T) {
	m := NewSessionManager()
	assert.False(t, m.UpdateParentID("nope", "parent-1"))
}

func TestSessionManager_CleanupSweep(t *testing.T) {
	m := NewSessionManager(WithTTL(30*time.Millisecond), WithCleanupInterval(20*time.Millisecond))
	m.Create("abc123", "chat-1")
	m.StartCleanup()
	defer m.StopCleanup()

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, m.Metrics().Active)
}

func TestSessionManager_Shutdown(t *testing.T) {
	m := NewSessionManager()
	m.Create("abc123", "chat-1")
	m.StartCleanup()
	m.Shutdown()
	assert.Equal(t, 0, m.Metrics().Active)
}

func TestSessionManager_Metrics_TracksTotals(t *testing.T) {
	m := NewSessionManager(WithTTL(30 * time.Millisecond))
	m.Create("abc123", "chat-1")
	m.Create("def456", "chat-2")

	metrics := m.Metrics()
	assert.Equal(t, 2, metrics.Active)
	assert.EqualValues(t, 2, metrics.TotalCreated)
	assert.EqualValues(t, 0, metrics.TotalCleaned)

	time.Sleep(50 * time.Millisecond)
	metrics = m.Metrics()
	assert.Equal(t, 0, metrics.Active)
	assert.EqualValues(t, 2, metrics.TotalCreated)
	assert.EqualValues(t, 2, metrics.TotalCleaned)
}

func TestSessionManager_Cleanup_ReturnsRemovedCount(t *testing.T) {
	m := NewSessionManager(WithTTL(30 * time.Millisecond))
	m.Create("abc123", "chat-1")
	m.Create("def456", "chat-2")

	time.Sleep(50 * time.Millisecond)
	removed := m.cleanup()
	assert.GreaterOrEqual(t, removed, 1)
	assert.Equal(t, 0, m.Metrics().Active)
}
