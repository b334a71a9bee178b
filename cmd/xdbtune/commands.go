package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xdbtune/pkg/storage/xmongo"
	"github.com/omeyang/xdbtune/pkg/storage/xquery"
)

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createPoolCommand(),
		createEnsureIndexesCommand(),
		createIndexStatsCommand(),
		createExplainCommand(),
		createHealthCommand(),
		createSuggestCommand(),
	}
}

// withSession 加载配置后执行 fn，结束时释放日志器。
func withSession(fn func(ctx context.Context, cmd *cli.Command, s *session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(ctx, cmd, s)
	}
}

// commandContext 为单次命令加上 --timeout 截止时间。
func commandContext(ctx context.Context, cmd *cli.Command) (context.Context, context.CancelFunc) {
	if d := cmd.Duration("timeout"); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// =============================================================================
// pool
// =============================================================================

func createPoolCommand() *cli.Command {
	return &cli.Command{
		Name:   "pool",
		Usage:  "打印按部署层级计算的连接池配置与脱敏连接串（不连接数据库）",
		Action: withSession(cmdPool),
	}
}

func cmdPool(_ context.Context, cmd *cli.Command, s *session) error {
	w := cmd.Root().Writer
	fmt.Fprintf(w, "Tier: %s\n", s.tier)
	fmt.Fprintf(w, "URI:  %s\n", s.uri)
	renderPool(w, s.pool)
	return nil
}

func renderPool(w io.Writer, cfg xmongo.PoolConfig) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Setting", "Value"})
	table.SetAutoWrapText(false)
	table.AppendBulk([][]string{
		{"maxPoolSize", strconv.FormatUint(cfg.MaxPoolSize, 10)},
		{"minPoolSize", strconv.FormatUint(cfg.MinPoolSize, 10)},
		{"maxIdleTime", cfg.MaxIdleTime.String()},
		{"waitQueueTimeout", cfg.WaitQueueTimeout.String()},
		{"socketTimeout", cfg.SocketTimeout.String()},
		{"connectTimeout", cfg.ConnectTimeout.String()},
		{"serverSelectionTimeout", cfg.ServerSelectionTimeout.String()},
		{"retryWrites", strconv.FormatBool(cfg.RetryWrites)},
		{"retryReads", strconv.FormatBool(cfg.RetryReads)},
		{"compressors", strings.Join(cfg.Compressors, ",")},
	})
	table.Render()
}

// =============================================================================
// ensure-indexes / index-stats
// =============================================================================

func createEnsureIndexesCommand() *cli.Command {
	return &cli.Command{
		Name:      "ensure-indexes",
		Usage:     "按集合角色建立常用索引（幂等），未指定集合时处理全部已配置集合",
		ArgsUsage: "[collection...]",
		Action:    withSession(cmdEnsureIndexes),
	}
}

func cmdEnsureIndexes(ctx context.Context, cmd *cli.Command, s *session) error {
	manager, err := s.newManager()
	if err != nil {
		return err
	}
	collections := cmd.Args().Slice()
	if len(collections) == 0 {
		collections = slices.Sorted(maps.Keys(manager.Provisioning()))
	}

	ctx, cancel := commandContext(ctx, cmd)
	defer cancel()
	client, _, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, client)

	db := s.database(client)
	w := cmd.Root().Writer
	for _, name := range collections {
		names, err := manager.EnsureCommon(ctx, db.Collection(name))
		if err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", name, err)
		}
		fmt.Fprintf(w, "%s: %s\n", name, strings.Join(names, ", "))
	}
	return nil
}

func createIndexStatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "index-stats",
		Usage:     "列出集合的索引与大小",
		ArgsUsage: "<collection...>",
		Action:    withSession(cmdIndexStats),
	}
}

func cmdIndexStats(ctx context.Context, cmd *cli.Command, s *session) error {
	collections := cmd.Args().Slice()
	if len(collections) == 0 {
		return usagef("index-stats 需要至少一个集合名")
	}
	manager, err := s.newManager()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(ctx, cmd)
	defer cancel()
	client, _, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, client)

	db := s.database(client)
	w := cmd.Root().Writer
	for _, name := range collections {
		stats, err := manager.Stats(ctx, db.Collection(name))
		if err != nil {
			return fmt.Errorf("index stats of %s: %w", name, err)
		}
		fmt.Fprint(w, stats.Report())
	}
	return nil
}

// =============================================================================
// explain
// =============================================================================

func createExplainCommand() *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "分析查询计划（过滤条件为扩展 JSON，缺省为 {}）",
		ArgsUsage: "<collection> [filter]",
		Action:    withSession(cmdExplain),
	}
}

func cmdExplain(ctx context.Context, cmd *cli.Command, s *session) error {
	args := cmd.Args().Slice()
	if len(args) < 1 || len(args) > 2 {
		return usagef("explain 需要 <collection> [filter]")
	}
	filter := bson.M{}
	if len(args) == 2 {
		parsed, err := parseFilter(args[1])
		if err != nil {
			return err
		}
		filter = parsed
	}

	tracker, err := s.newTracker()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(ctx, cmd)
	defer cancel()
	client, poolTracker, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer disconnect(ctx, client)

	m, err := xmongo.New(client,
		xmongo.WithLogger(s.logger),
		xmongo.WithObserver(s.observer),
		xmongo.WithTracker(tracker),
		xmongo.WithOptimizer(xquery.NewOptimizer(xquery.WithOptimizerLogger(s.logger))),
		xmongo.WithPoolTracker(poolTracker),
	)
	if err != nil {
		return err
	}

	result := m.Explain(ctx, s.database(client).Collection(args[0]), filter)
	w := cmd.Root().Writer
	if !result.Available {
		fmt.Fprintf(w, "查询计划不可用: %v\n", result.Reason)
		return &exitError{code: exitFailure}
	}
	renderPlan(w, result.Stats)
	return nil
}

// parseFilter 解析扩展 JSON 过滤条件。
func parseFilter(s string) (bson.M, error) {
	var filter bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), false, &filter); err != nil {
		return nil, usagef("过滤条件不是合法的扩展 JSON: %v", err)
	}
	if filter == nil {
		filter = bson.M{}
	}
	return filter, nil
}

func renderPlan(w io.Writer, st xmongo.PlanStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAutoWrapText(false)
	index := st.IndexName
	if index == "" {
		index = "-"
	}
	table.AppendBulk([][]string{
		{"stage", st.Stage},
		{"index", index},
		{"usesIndex", strconv.FormatBool(st.UsesIndex())},
		{"executionTimeMs", strconv.FormatInt(st.ExecutionTimeMs, 10)},
		{"docsExamined", strconv.FormatInt(st.DocsExamined, 10)},
		{"keysExamined", strconv.FormatInt(st.KeysExamined, 10)},
		{"returned", strconv.FormatInt(st.Returned, 10)},
	})
	table.Render()
}
