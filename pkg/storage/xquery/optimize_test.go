package xquery_test

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xdbtune/pkg/observability/xlog"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

func TestAnalyze_DropsNullValues(t *testing.T) {
	in := bson.M{"a": 1, "b": nil, "c": bson.Undefined{}, "d": bson.Null{}}

	out, advisories := xquery.Analyze(in)

	assert.Equal(t, bson.M{"a": 1}, out)
	assert.Empty(t, advisories)
	assert.Len(t, in, 4, "input must not be mutated")
}

func TestAnalyze_Nil(t *testing.T) {
	out, advisories := xquery.Analyze(nil)
	assert.Nil(t, out)
	assert.Nil(t, advisories)
}

func TestAnalyze_ReordersOr(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{
			name: "bson.A",
			in:   bson.A{bson.M{"a": 1}, bson.M{"a": 1, "b": 2, "c": 3}},
			want: bson.A{bson.M{"a": 1, "b": 2, "c": 3}, bson.M{"a": 1}},
		},
		{
			name: "[]bson.M",
			in:   []bson.M{{"a": 1}, {"a": 1, "b": 2, "c": 3}},
			want: []bson.M{{"a": 1, "b": 2, "c": 3}, {"a": 1}},
		},
		{
			name: "[]bson.D",
			in:   []bson.D{{{Key: "a", Value: 1}}, {{Key: "a", Value: 1}, {Key: "b", Value: 2}}},
			want: []bson.D{{{Key: "a", Value: 1}, {Key: "b", Value: 2}}, {{Key: "a", Value: 1}}},
		},
		{
			name: "stable for equal counts",
			in:   bson.A{bson.M{"x": 1}, bson.M{"a": 1, "b": 2}, bson.M{"y": 1}},
			want: bson.A{bson.M{"a": 1, "b": 2}, bson.M{"x": 1}, bson.M{"y": 1}},
		},
		{
			name: "unknown type untouched",
			in:   "not-a-list",
			want: "not-a-list",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := xquery.Analyze(bson.M{"$or": tt.in})
			assert.Equal(t, tt.want, out["$or"])
		})
	}
}

func TestAnalyze_DoesNotMutateOrSlice(t *testing.T) {
	alts := bson.A{bson.M{"a": 1}, bson.M{"a": 1, "b": 2}}
	_, _ = xquery.Analyze(bson.M{"$or": alts})
	assert.Equal(t, bson.M{"a": 1}, alts[0])
}

func TestAnalyze_PrefixRegexAdvisory(t *testing.T) {
	tests := []struct {
		name   string
		filter bson.M
		want   []string
	}{
		{"bson regex anchored", bson.M{"name": bson.Regex{Pattern: "^abc"}}, []string{"name"}},
		{"case insensitive", bson.M{"name": bson.Regex{Pattern: "^abc", Options: "i"}}, nil},
		{"multiline", bson.M{"name": bson.Regex{Pattern: "^abc", Options: "m"}}, nil},
		{"not anchored", bson.M{"name": bson.Regex{Pattern: "abc"}}, nil},
		{"go regexp", bson.M{"sku": regexp.MustCompile("^A-")}, []string{"sku"}},
		{"go regexp inline flag", bson.M{"sku": regexp.MustCompile("(?i)^a-")}, nil},
		{"operator form", bson.M{"title": bson.M{"$regex": "^Intro"}}, []string{"title"}},
		{"operator with options", bson.M{"title": bson.M{"$regex": "^Intro", "$options": "i"}}, nil},
		{"bson.D operator", bson.M{"title": bson.D{{Key: "$regex", Value: "^x"}, {Key: "$options", Value: "s"}}}, []string{"title"}},
		{
			"inside $or",
			bson.M{"$or": bson.A{bson.M{"a": bson.Regex{Pattern: "^p"}}, bson.M{"b": 1}}},
			[]string{"a"},
		},
		{"plain string", bson.M{"name": "^abc"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, advisories := xquery.Analyze(tt.filter)
			var fields []string
			for _, a := range advisories {
				assert.Equal(t, xquery.AdvisoryPrefixRange, a.Kind)
				fields = append(fields, a.Field)
			}
			assert.Equal(t, tt.want, fields)
		})
	}
}

func TestOptimizer_LogsAdvisories(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	o := xquery.NewOptimizer(xquery.WithOptimizerLogger(logger))
	out := o.Optimize(context.Background(), bson.M{"name": bson.Regex{Pattern: "^abc"}, "gone": nil})

	assert.Equal(t, bson.M{"name": bson.Regex{Pattern: "^abc"}}, out)
	assert.Contains(t, buf.String(), `"msg":"query advisory"`)
	assert.Contains(t, buf.String(), `"kind":"prefix_range"`)
}

func TestOptimizer_DefaultDiscardsLogs(t *testing.T) {
	o := xquery.NewOptimizer(nil)
	assert.Equal(t, bson.M{"a": 1}, o.Optimize(context.Background(), bson.M{"a": 1}))
}

func TestPredicateFields(t *testing.T) {
	filter := bson.M{
		"tenant_id": "t1",
		"$or": bson.A{
			bson.M{"status": "active"},
			bson.D{{Key: "deleted", Value: false}},
		},
		"$and":  []bson.M{{"created_at": bson.M{"$gt": 1}}},
		"$text": bson.M{"$search": "x"},
	}
	assert.Equal(t, []string{"created_at", "deleted", "status", "tenant_id"}, xquery.PredicateFields(filter))
	assert.Empty(t, xquery.PredicateFields(nil))
}

func TestShape(t *testing.T) {
	a := xquery.Shape(bson.M{"a": 1, "b": "x"})
	b := xquery.Shape(bson.M{"b": "y", "a": 2})
	c := xquery.Shape(bson.M{"a": 1})

	assert.Equal(t, a, b, "shape ignores values and key order")
	assert.NotEqual(t, a, c)
	assert.Zero(t, xquery.Shape(bson.M{}))
}
