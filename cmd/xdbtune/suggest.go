package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xdbtune/pkg/storage/xindex"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// maxPatternLine 单行查询模式的最大字节数。
const maxPatternLine = 1 << 20

// patternLine suggest 输入文件的一行。filter 与 fields 二选一，都给出时合并。
//
//	{"collection": "orders", "filter": {"user_id": "u1", "is_paid": true}}
//	{"collection": "orders", "fields": ["user_id", "created_at"]}
type patternLine struct {
	Collection string   `bson:"collection"`
	Filter     bson.M   `bson:"filter"`
	Fields     []string `bson:"fields"`
}

func createSuggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "按查询模式（JSON Lines，- 表示标准输入）建议单字段索引",
		ArgsUsage: "<file|->",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return usagef("suggest 需要一个输入文件")
			}
			return cmdSuggest(cmd, cmd.Args().First())
		},
	}
}

func cmdSuggest(cmd *cli.Command, path string) error {
	var r io.Reader
	if path == "-" {
		r = cmd.Root().Reader
	} else {
		f, err := os.Open(path)
		if err != nil {
			return usagef("打开输入文件失败: %v", err)
		}
		defer f.Close()
		r = f
	}

	patterns, err := readPatterns(r)
	if err != nil {
		return err
	}

	var suggestions []xindex.Suggestion
	for _, coll := range slices.Sorted(maps.Keys(patterns)) {
		suggestions = append(suggestions, xindex.SuggestIndexes(coll, patterns[coll])...)
	}
	renderSuggestions(cmd.Root().Writer, suggestions)
	return nil
}

// readPatterns 按集合汇总每行的谓词字段，空行与 # 开头的行被忽略。
func readPatterns(r io.Reader) (map[string][][]string, error) {
	out := make(map[string][][]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPatternLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var p patternLine
		if err := bson.UnmarshalExtJSON([]byte(line), false, &p); err != nil {
			return nil, usagef("第 %d 行不是合法的扩展 JSON: %v", lineNo, err)
		}
		if p.Collection == "" {
			return nil, usagef("第 %d 行缺少 collection", lineNo)
		}
		fields := append(xquery.PredicateFields(p.Filter), p.Fields...)
		if len(fields) == 0 {
			continue
		}
		out[p.Collection] = append(out[p.Collection], fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read patterns: %w", err)
	}
	return out, nil
}

func renderSuggestions(w io.Writer, suggestions []xindex.Suggestion) {
	fmt.Fprintln(w, "Index Suggestions")
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Collection", "Field", "Kind", "Priority", "Uses", "Reason"})
	table.SetAutoWrapText(false)
	for _, s := range suggestions {
		table.Append([]string{
			s.Collection,
			s.Field,
			string(s.Kind),
			string(s.Priority),
			strconv.FormatInt(s.Uses, 10),
			s.Reason,
		})
	}
	table.Render()
}
