package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionManager_OneSessionPerOperator(t *testing.T) {
	sm := NewSessionManager()

	first := sm.Start("op-1", KindDailyLog)
	assert.Equal(t, 1, sm.Len())

	second := sm.Start("op-1", KindSale)
	assert.Equal(t, 1, sm.Len())
	assert.NotSame(t, first, second)

	got, ok := sm.Get("op-1")
	assert.True(t, ok)
	assert.Equal(t, KindSale, got.Kind)

	sm.Clear("op-1")
	_, ok = sm.Get("op-1")
	assert.False(t, ok)
}

func TestSessionManager_ExpireIdle(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sm := NewSessionManager()
	sm.now = func() time.Time { return now }

	stale := sm.Start("op-stale", KindDailyLog)
	stale.UpdatedAt = now.Add(-time.Hour)
	fresh := sm.Start("op-fresh", KindSale)
	fresh.Touch(now)

	expired := sm.ExpireIdle(30 * time.Minute)
	assert.Equal(t, 1, expired)

	_, ok := sm.Get("op-stale")
	assert.False(t, ok)
	_, ok = sm.Get("op-fresh")
	assert.True(t, ok)
}

func TestSessionManager_ZeroMaxIdleDisablesExpiry(t *testing.T) {
	sm := NewSessionManager()
	sess := sm.Start("op-1", KindDailyLog)
	sess.UpdatedAt = time.Time{}

	assert.Equal(t, 0, sm.ExpireIdle(0))
	assert.Equal(t, 1, sm.Len())
}
