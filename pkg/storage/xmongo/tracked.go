package xmongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// trackedCollection 埋点装饰器，与 collectionAdapter 实现同一接口，
// 每次驱动调用经 xquery.Tracker 记录一条指标。
//
// Find 只计到游标返回为止，不含后续取批的耗时。
type trackedCollection struct {
	next    collectionOperations
	tracker *xquery.Tracker
}

// withTracking 在 tracker 非 nil 时为集合套上埋点装饰器。
func withTracking(coll collectionOperations, tracker *xquery.Tracker) collectionOperations {
	if tracker == nil || coll == nil {
		return coll
	}
	return &trackedCollection{next: coll, tracker: tracker}
}

func (c *trackedCollection) call(operation string, filter any) xquery.Call {
	call := xquery.Call{Operation: operation, Collection: c.next.Name()}
	if m, ok := filter.(bson.M); ok {
		call.Filter = m
	}
	return call
}

func (c *trackedCollection) CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error) {
	var n int64
	err := c.tracker.Observe(ctx, c.call("count", filter), func(ctx context.Context) error {
		var err error
		n, err = c.next.CountDocuments(ctx, filter, opts...)
		return err
	})
	return n, err
}

func (c *trackedCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	var cursor *mongo.Cursor
	err := c.tracker.Observe(ctx, c.call("find", filter), func(ctx context.Context) error {
		var err error
		cursor, err = c.next.Find(ctx, filter, opts...)
		return err
	})
	return cursor, err
}

func (c *trackedCollection) Explain(ctx context.Context, filter any) (bson.Raw, error) {
	var raw bson.Raw
	err := c.tracker.Observe(ctx, c.call("explain", filter), func(ctx context.Context) error {
		var err error
		raw, err = c.next.Explain(ctx, filter)
		return err
	})
	return raw, err
}

func (c *trackedCollection) DatabaseName() string { return c.next.DatabaseName() }

func (c *trackedCollection) Name() string { return c.next.Name() }
