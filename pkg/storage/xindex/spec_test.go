package xindex_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xdbtune/pkg/storage/xindex"
)

func TestSingleField(t *testing.T) {
	s, err := xindex.SingleField(xindex.Asc("email"), xindex.Unique(), xindex.Sparse())
	require.NoError(t, err)

	d := s.Descriptor()
	assert.Equal(t, xindex.KindSingle, d.Kind)
	assert.Equal(t, bson.D{{Key: "email", Value: int32(1)}}, d.Keys)
	assert.True(t, d.Unique)
	assert.True(t, d.Sparse)
	assert.Equal(t, "email_1", d.IndexName())
}

func TestSingleField_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  xindex.Key
	}{
		{"empty field", xindex.Asc("")},
		{"blank field", xindex.Asc("  ")},
		{"zero direction", xindex.Key{Field: "a"}},
		{"bad direction", xindex.Key{Field: "a", Direction: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xindex.SingleField(tt.key)
			assert.ErrorIs(t, err, xindex.ErrInvalidSpec)
		})
	}
}

func TestCompound(t *testing.T) {
	s, err := xindex.Compound([]xindex.Key{xindex.Asc("user_id"), xindex.Desc("created_at")})
	require.NoError(t, err)

	d := s.Descriptor()
	assert.Equal(t, xindex.KindCompound, d.Kind)
	assert.Equal(t, bson.D{
		{Key: "user_id", Value: int32(1)},
		{Key: "created_at", Value: int32(-1)},
	}, d.Keys)
	assert.Equal(t, "user_id_1_created_at_-1", d.IndexName())
}

func TestCompound_Invalid(t *testing.T) {
	_, err := xindex.Compound([]xindex.Key{xindex.Asc("a")})
	require.ErrorIs(t, err, xindex.ErrInvalidSpec)

	_, err = xindex.Compound([]xindex.Key{xindex.Asc("a"), xindex.Desc("a")})
	require.ErrorIs(t, err, xindex.ErrInvalidSpec)
}

func TestText(t *testing.T) {
	s, err := xindex.Text([]string{"title", "body"},
		xindex.Weights(map[string]int32{"title": 10, "body": 1}),
		xindex.Named("content_text"),
	)
	require.NoError(t, err)

	d := s.Descriptor()
	assert.Equal(t, xindex.KindText, d.Kind)
	assert.Equal(t, bson.D{{Key: "title", Value: "text"}, {Key: "body", Value: "text"}}, d.Keys)
	// 权重按字段名排序
	assert.Equal(t, bson.D{{Key: "body", Value: int32(1)}, {Key: "title", Value: int32(10)}}, d.Weights)
	assert.Equal(t, "content_text", d.IndexName())

	_, err = xindex.Text(nil)
	require.ErrorIs(t, err, xindex.ErrInvalidSpec)
	_, err = xindex.Text([]string{"a", "a"})
	require.ErrorIs(t, err, xindex.ErrInvalidSpec)
}

func TestWeights_OnlyForText(t *testing.T) {
	_, err := xindex.SingleField(xindex.Asc("a"), xindex.Weights(map[string]int32{"a": 2}))
	assert.ErrorIs(t, err, xindex.ErrInvalidSpec)
}

func TestTTL(t *testing.T) {
	expiresAt := xindex.FieldOf[time.Time]("expires_at")

	s, err := xindex.TTL(expiresAt, 90*time.Second)
	require.NoError(t, err)
	d := s.Descriptor()
	assert.Equal(t, xindex.KindTTL, d.Kind)
	require.NotNil(t, d.ExpireAfterSeconds)
	assert.Equal(t, int32(90), *d.ExpireAfterSeconds)

	// 按秒截断
	s, err = xindex.TTL(expiresAt, 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int32(1), *s.Descriptor().ExpireAfterSeconds)

	// 0 表示到达字段时间即过期
	s, err = xindex.TTL(expiresAt, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), *s.Descriptor().ExpireAfterSeconds)
}

func TestTTL_RejectsNegativeExpiry(t *testing.T) {
	_, err := xindex.TTL(xindex.FieldOf[time.Time]("expires_at"), -time.Second)
	assert.ErrorIs(t, err, xindex.ErrNegativeExpiry)
}

func TestTTL_RejectsOverflow(t *testing.T) {
	_, err := xindex.TTL(xindex.FieldOf[time.Time]("expires_at"), 100*365*24*time.Hour)
	assert.ErrorIs(t, err, xindex.ErrInvalidSpec)
}

func TestDescriptor_IsCopy(t *testing.T) {
	s, err := xindex.TTL(xindex.FieldOf[time.Time]("expires_at"), time.Minute)
	require.NoError(t, err)

	d := s.Descriptor()
	d.Keys[0].Key = "mutated"
	*d.ExpireAfterSeconds = 1

	again := s.Descriptor()
	assert.Equal(t, "expires_at", again.Keys[0].Key)
	assert.Equal(t, int32(60), *again.ExpireAfterSeconds)
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "a_1_b_-1", xindex.DefaultName(bson.D{{Key: "a", Value: int64(1)}, {Key: "b", Value: -1.0}}))
	assert.Equal(t, "loc_2dsphere", xindex.DefaultName(bson.D{{Key: "loc", Value: "2dsphere"}}))
}
