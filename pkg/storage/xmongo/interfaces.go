package xmongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// =============================================================================
// 内部接口定义 - 用于依赖注入和测试
// =============================================================================

// clientOperations 定义客户端级别操作接口。
// *mongo.Client 实现此接口。
type clientOperations interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
	NumberSessionsInProgress() int
}

// collectionOperations 定义集合级别操作接口。
// collectionAdapter 与 trackedCollection 实现此接口。
type collectionOperations interface {
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	Explain(ctx context.Context, filter any) (bson.Raw, error)
	DatabaseName() string
	Name() string
}

// =============================================================================
// 集合适配器 - 将 *mongo.Collection 适配为 collectionOperations
// =============================================================================

type collectionAdapter struct {
	coll *mongo.Collection
}

func (a *collectionAdapter) CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error) {
	return a.coll.CountDocuments(ctx, filter, opts...)
}

func (a *collectionAdapter) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	return a.coll.Find(ctx, filter, opts...)
}

// Explain 以 executionStats 级别执行 explain{find}。
func (a *collectionAdapter) Explain(ctx context.Context, filter any) (bson.Raw, error) {
	if filter == nil {
		filter = bson.D{}
	}
	cmd := bson.D{
		{Key: "explain", Value: bson.D{
			{Key: "find", Value: a.coll.Name()},
			{Key: "filter", Value: filter},
		}},
		{Key: "verbosity", Value: "executionStats"},
	}
	return a.coll.Database().RunCommand(ctx, cmd).Raw()
}

func (a *collectionAdapter) DatabaseName() string {
	return a.coll.Database().Name()
}

func (a *collectionAdapter) Name() string {
	return a.coll.Name()
}

// adaptCollection 将 *mongo.Collection 适配为 collectionOperations 接口。
func adaptCollection(coll *mongo.Collection) collectionOperations {
	if coll == nil {
		return nil
	}
	return &collectionAdapter{coll: coll}
}
