package storageopt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSlowQueryInfo struct {
	Operation  string
	Collection string
}

func TestNewSlowQueryDetector_NegativeThreshold(t *testing.T) {
	d, err := NewSlowQueryDetector(SlowQueryOptions[testSlowQueryInfo]{Threshold: -time.Millisecond})
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrNegativeThreshold)
}

func TestSlowQueryDetector_Disabled(t *testing.T) {
	d, err := NewSlowQueryDetector(SlowQueryOptions[testSlowQueryInfo]{})
	require.NoError(t, err)

	assert.False(t, d.MaybeSlowQuery(context.Background(), testSlowQueryInfo{}, time.Hour))
	assert.Zero(t, d.Count())
}

func TestSlowQueryDetector_Boundary(t *testing.T) {
	var calls int
	d, err := NewSlowQueryDetector(SlowQueryOptions[testSlowQueryInfo]{
		Threshold: 100 * time.Millisecond,
		Hook: func(_ context.Context, _ testSlowQueryInfo, _ time.Duration) {
			calls++
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, d.MaybeSlowQuery(ctx, testSlowQueryInfo{}, 99*time.Millisecond))
	// 恰好等于阈值也算慢查询
	assert.True(t, d.MaybeSlowQuery(ctx, testSlowQueryInfo{}, 100*time.Millisecond))
	assert.True(t, d.MaybeSlowQuery(ctx, testSlowQueryInfo{}, time.Second))

	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(2), d.Count())
}

func TestSlowQueryDetector_HookReceivesInfo(t *testing.T) {
	var captured testSlowQueryInfo
	var capturedDur time.Duration
	d, err := NewSlowQueryDetector(SlowQueryOptions[testSlowQueryInfo]{
		Threshold: 10 * time.Millisecond,
		Hook: func(_ context.Context, info testSlowQueryInfo, duration time.Duration) {
			captured = info
			capturedDur = duration
		},
	})
	require.NoError(t, err)

	d.MaybeSlowQuery(context.Background(), testSlowQueryInfo{Operation: "find", Collection: "users"}, 20*time.Millisecond)
	assert.Equal(t, "find", captured.Operation)
	assert.Equal(t, "users", captured.Collection)
	assert.Equal(t, 20*time.Millisecond, capturedDur)
}

func TestSlowQueryDetector_SetThreshold(t *testing.T) {
	d, err := NewSlowQueryDetector(SlowQueryOptions[testSlowQueryInfo]{Threshold: time.Second})
	require.NoError(t, err)

	assert.False(t, d.IsSlow(200*time.Millisecond))
	d.SetThreshold(100 * time.Millisecond)
	assert.True(t, d.IsSlow(200*time.Millisecond))

	d.SetThreshold(-1)
	assert.Equal(t, 100*time.Millisecond, d.Threshold())
}

func TestSlowQueryDetector_Concurrent(t *testing.T) {
	d, err := NewSlowQueryDetector(SlowQueryOptions[testSlowQueryInfo]{Threshold: time.Millisecond})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%10 == 0 {
				d.SetThreshold(time.Millisecond)
			}
			d.MaybeSlowQuery(context.Background(), testSlowQueryInfo{}, 5*time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), d.Count())
}
