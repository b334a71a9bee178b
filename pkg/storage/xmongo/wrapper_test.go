package xmongo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

func newTestWrapper(t *testing.T, opts ...Option) (*mongoWrapper, *mockClientOps) {
	t.Helper()
	ops := &mockClientOps{}
	return newWrapper(nil, ops, opts...), ops
}

func TestNew_NilClient(t *testing.T) {
	m, err := New(nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestWrapper_Health(t *testing.T) {
	w, ops := newTestWrapper(t)

	require.NoError(t, w.Health(context.Background()))

	ops.pingErr = errBoom
	err := w.Health(context.Background())
	assert.ErrorIs(t, err, errBoom)

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.PingCount)
	assert.Equal(t, int64(1), stats.PingErrors)
}

func TestWrapper_Health_Timeout(t *testing.T) {
	w, _ := newTestWrapper(t, WithHealthTimeout(time.Nanosecond))
	time.Sleep(time.Millisecond)

	err := w.Health(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

//nolint:staticcheck // 显式验证 nil context
func TestWrapper_NilContext(t *testing.T) {
	w, _ := newTestWrapper(t)
	coll := &mongo.Collection{}

	assert.ErrorIs(t, w.Health(nil), ErrNilContext)
	_, err := w.OffsetPage(nil, coll, nil, OffsetOptions{Page: 1, Limit: 10})
	assert.ErrorIs(t, err, ErrNilContext)
	_, err = w.KeyPage(nil, coll, nil, KeyOptions{SortField: "_id", Limit: 10})
	assert.ErrorIs(t, err, ErrNilContext)
	_, err = w.BatchFind(nil, coll, []any{1}, BatchOptions{})
	assert.ErrorIs(t, err, ErrNilContext)
	assert.ErrorIs(t, w.Explain(nil, coll, nil).Reason, ErrNilContext)
}

func TestWrapper_NilCollection(t *testing.T) {
	w, _ := newTestWrapper(t)
	ctx := context.Background()

	_, err := w.OffsetPage(ctx, nil, nil, OffsetOptions{Page: 1, Limit: 10})
	assert.ErrorIs(t, err, ErrNilCollection)
	_, err = w.KeyPage(ctx, nil, nil, KeyOptions{SortField: "_id", Limit: 10})
	assert.ErrorIs(t, err, ErrNilCollection)
	_, err = w.BatchFind(ctx, nil, []any{1}, BatchOptions{})
	assert.ErrorIs(t, err, ErrNilCollection)

	result := w.Explain(ctx, nil, nil)
	assert.False(t, result.Available)
	assert.ErrorIs(t, result.Reason, ErrNilCollection)
}

func TestWrapper_Close(t *testing.T) {
	w, ops := newTestWrapper(t)

	//nolint:staticcheck // nil context 被替换为 Background
	require.NoError(t, w.Close(nil))
	assert.True(t, ops.disconnected)
	assert.ErrorIs(t, w.Close(context.Background()), ErrClosed)

	ctx := context.Background()
	assert.ErrorIs(t, w.Health(ctx), ErrClosed)
	_, err := w.OffsetPage(ctx, &mongo.Collection{}, nil, OffsetOptions{Page: 1, Limit: 1})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, w.Explain(ctx, &mongo.Collection{}, nil).Reason, ErrClosed)

	// Stats 在关闭后仍可用
	assert.Equal(t, int64(0), w.Stats().PingCount)
}

func TestWrapper_Close_DisconnectError(t *testing.T) {
	w, ops := newTestWrapper(t)
	ops.disconnectErr = errBoom

	assert.ErrorIs(t, w.Close(context.Background()), errBoom)
	// 不回滚 closed 状态
	assert.ErrorIs(t, w.Close(context.Background()), ErrClosed)
}

func TestWrapper_Close_Concurrent(t *testing.T) {
	w, _ := newTestWrapper(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 20 {
		wg.Go(func() {
			if w.Close(context.Background()) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestWrapper_Stats_PoolAndQueries(t *testing.T) {
	pool := NewPoolTracker()
	tracker, err := xquery.NewTracker()
	require.NoError(t, err)

	w, ops := newTestWrapper(t, WithPoolTracker(pool), WithTracker(tracker))
	ops.sessionsInProgress = 3

	monitor := pool.Monitor()
	monitor.Event(&event.PoolEvent{Type: event.ConnectionCreated})
	monitor.Event(&event.PoolEvent{Type: event.ConnectionCheckedOut})
	require.NoError(t, tracker.Do(context.Background(), "find", "c", func(context.Context) error { return nil }))

	stats := w.Stats()
	assert.Equal(t, 3, stats.Sessions)
	assert.Equal(t, int64(1), stats.Pool.Open)
	assert.Equal(t, int64(1), stats.Queries.Queries)
}
