package xquery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Report 生成人类可读的性能报告：汇总统计加慢查询列表。
func (t *Tracker) Report() string {
	metrics := t.Metrics()
	stats := computeStats(metrics)

	var b strings.Builder
	b.WriteString("Query Performance Report\n")
	fmt.Fprintf(&b, "Total queries:      %d\n", stats.TotalQueries)
	fmt.Fprintf(&b, "Slow queries:       %d (threshold %s)\n", stats.SlowQueries, t.SlowThreshold())
	fmt.Fprintf(&b, "Failed queries:     %d\n", stats.FailedQueries)
	fmt.Fprintf(&b, "Average time:       %dms\n", stats.AverageExecutionTimeMs)
	fmt.Fprintf(&b, "Collections:        %s\n", joinOrDash(stats.Collections))

	if stats.SlowQueries == 0 {
		b.WriteString("\nNo slow queries recorded.\n")
		return b.String()
	}

	b.WriteString("\nSlow queries:\n")
	table := tablewriter.NewWriter(&b)
	table.SetHeader([]string{"Time", "Operation", "Collection", "Duration (ms)", "Shape", "Failed"})
	table.SetAutoWrapText(false)
	for _, m := range metrics {
		if !m.Slow {
			continue
		}
		table.Append([]string{
			m.Timestamp.UTC().Format(time.RFC3339),
			m.Operation,
			m.Collection,
			strconv.FormatInt(m.ExecutionTimeMs(), 10),
			formatShape(m.Shape),
			strconv.FormatBool(m.Failed),
		})
	}
	table.Render()
	return b.String()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
