package resolver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/FcLinkcrack/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPoll_ImmediateSuccess(t *testing.T) {
	start := time.Now()
	ok := Poll(context.Background(), time.Second, 10*time.Second, func() bool { return true })

	assert.True(t, ok)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "条件满足时不应等待")
}

func TestPoll_BoundedWait(t *testing.T) {
	interval := 30 * time.Millisecond
	timeout := 100 * time.Millisecond

	start := time.Now()
	ok := Poll(context.Background(), interval, timeout, func() bool { return false })
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+interval+50*time.Millisecond, "等待不应超过 timeout + interval")
}

func TestPoll_EventuallyDone(t *testing.T) {
	var calls int32
	ok := Poll(context.Background(), 5*time.Millisecond, time.Second, func() bool {
		return atomic.AddInt32(&calls, 1) >= 3
	})

	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	ok := Poll(ctx, time.Second, 10*time.Second, func() bool { return false })

	assert.False(t, ok)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGateResolver_Clear(t *testing.T) {
	cfg := testConfig()

	t.Run("无验证立即通过", func(t *testing.T) {
		page := newContainerPage("C1", "My Container", nil)
		gates := NewGateResolver(page, cfg)

		start := time.Now()
		assert.True(t, gates.Clear(context.Background(), models.GatePassword))
		assert.True(t, gates.Clear(context.Background(), models.GateCaptcha))
		assert.Less(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("验证码在等待期间解除", func(t *testing.T) {
		var checks int32
		page := newContainerPage("C1", "My Container", nil)
		page.headings = func() []string {
			if atomic.AddInt32(&checks, 1) <= 3 {
				return []string{"Security prompt"}
			}
			return []string{"My Container"}
		}

		assert.True(t, NewGateResolver(page, cfg).Clear(context.Background(), models.GateCaptcha))
	})

	t.Run("密码一直存在则超时", func(t *testing.T) {
		page := newContainerPage("C1", "Password required", nil)
		gates := NewGateResolver(page, cfg)

		start := time.Now()
		ok := gates.Clear(context.Background(), models.GatePassword)
		elapsed := time.Since(start)

		assert.False(t, ok)
		assert.Less(t, elapsed, cfg.PasswordTimeout+cfg.PasswordInterval+50*time.Millisecond)
	})

	t.Run("密码页不触发验证码等待", func(t *testing.T) {
		page := newContainerPage("C1", "Password required", nil)
		assert.True(t, NewGateResolver(page, cfg).Clear(context.Background(), models.GateCaptcha))
	})
}
