package xindex_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdbtune/pkg/storage/xindex"
)

func repeat(pattern []string, n int) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = pattern
	}
	return out
}

func TestSuggestIndexes_Thresholds(t *testing.T) {
	var patterns [][]string
	patterns = append(patterns, repeat([]string{"status"}, 4)...)
	patterns = append(patterns, repeat([]string{"email"}, 5)...)
	patterns = append(patterns, repeat([]string{"user_id", "created_at"}, 10)...)

	got := xindex.SuggestIndexes("orders", patterns)
	require.Len(t, got, 3)

	// 计数降序，同计数按字段名
	assert.Equal(t, "created_at", got[0].Field)
	assert.Equal(t, xindex.PriorityHigh, got[0].Priority)
	assert.Equal(t, "user_id", got[1].Field)
	assert.Equal(t, xindex.PriorityHigh, got[1].Priority)
	assert.Equal(t, "email", got[2].Field)
	assert.Equal(t, xindex.PriorityMedium, got[2].Priority)
	assert.Equal(t, int64(5), got[2].Uses)

	for _, s := range got {
		assert.Equal(t, "orders", s.Collection)
		assert.Equal(t, xindex.KindSingle, s.Kind)
		assert.NotEmpty(t, s.Reason)
	}
}

func TestSuggestIndexes_CountsPatternsNotOccurrences(t *testing.T) {
	// 同一模式中的重复字段只计一次
	got := xindex.SuggestIndexes("orders", repeat([]string{"a", "a", "a"}, 4))
	assert.Empty(t, got)
}

func TestSuggestIndexes_SkipsID(t *testing.T) {
	got := xindex.SuggestIndexes("orders", repeat([]string{"_id"}, 20))
	assert.Empty(t, got)
}

func TestNewUsageRecorder_InvalidCapacity(t *testing.T) {
	_, err := xindex.NewUsageRecorder(0)
	assert.ErrorIs(t, err, xindex.ErrInvalidCapacity)
}

func TestUsageRecorder_RecordPattern(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	r, err := xindex.NewUsageRecorder(16, xindex.WithUsageClock(func() time.Time { return now }))
	require.NoError(t, err)

	r.RecordPattern("orders", []string{"user_id", "status"})
	now = now.Add(time.Minute)
	r.RecordPattern("orders", []string{"user_id", "user_id", ""})
	r.RecordPattern("users", []string{"email"})
	r.RecordPattern("users", nil)

	records := r.Records("orders")
	require.Len(t, records, 2)
	assert.Equal(t, "user_id", records[0].Field)
	assert.Equal(t, int64(2), records[0].UsageCount)
	assert.Equal(t, now, records[0].LastAccessed)
	assert.Equal(t, "status", records[1].Field)
	assert.Equal(t, int64(1), records[1].UsageCount)

	assert.Equal(t, 3, r.Len())
	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "users", all[2].Collection)
}

func TestUsageRecorder_BoundedByLRU(t *testing.T) {
	r, err := xindex.NewUsageRecorder(3)
	require.NoError(t, err)

	for i := range 10 {
		r.RecordPattern("orders", []string{fmt.Sprintf("f%d", i)})
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, int64(7), r.Evicted())

	// 最近使用的保留
	fields := make([]string, 0, 3)
	for _, rec := range r.Records("orders") {
		fields = append(fields, rec.Field)
	}
	assert.ElementsMatch(t, []string{"f7", "f8", "f9"}, fields)
}

func TestUsageRecorder_SuggestFromUsage(t *testing.T) {
	r, err := xindex.NewUsageRecorder(16)
	require.NoError(t, err)

	for range 12 {
		r.RecordPattern("orders", []string{"user_id", "_id"})
	}
	for range 6 {
		r.RecordPattern("orders", []string{"status"})
	}
	r.RecordPattern("orders", []string{"note"})

	got := r.SuggestFromUsage("orders")
	require.Len(t, got, 2)
	assert.Equal(t, "user_id", got[0].Field)
	assert.Equal(t, xindex.PriorityHigh, got[0].Priority)
	assert.Equal(t, "status", got[1].Field)
	assert.Equal(t, xindex.PriorityMedium, got[1].Priority)
}

func TestUsageRecorder_Concurrent(t *testing.T) {
	r, err := xindex.NewUsageRecorder(16)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			r.RecordPattern("orders", []string{"user_id"})
		})
	}
	wg.Wait()

	records := r.Records("orders")
	require.Len(t, records, 1)
	assert.Equal(t, int64(50), records[0].UsageCount)
}

func TestUsageRecorder_Report(t *testing.T) {
	r, err := xindex.NewUsageRecorder(16)
	require.NoError(t, err)
	assert.Contains(t, r.Report(), "No usage recorded.")

	r.RecordPattern("orders", []string{"user_id"})
	report := r.Report()
	assert.Contains(t, report, "Index Usage Report")
	assert.Contains(t, report, "user_id")
	assert.Contains(t, report, "LAST ACCESSED")
}
