package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/wat2watch/internal/config"
	"github.com/John-Robertt/wat2watch/internal/logging"
)

// cli 保存全局参数与加载后的配置，供各子命令共享。
type cli struct {
	streams

	configPath string
	source     string
	dataPath   string
	logLevel   string
	addr       string

	cfg config.Config
}

func newRootCmd(s streams) *cobra.Command {
	c := &cli{streams: s}

	root := &cobra.Command{
		Use:   "wat2watch",
		Short: "Find something to watch: movie recommendations, a watchlist and a local web UI",
		Long: `wat2watch 根据筛选条件（关键词、类型、年份、评分、排序）推荐电影，
数据来自 OMDb 或兼容的推荐服务；watchlist 与登录状态保存在本地存储中。

stdout 不是终端时，search/watchlist list 只输出一个 JSON 文档（摘要与日志走 stderr）。`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(s.out)
	root.SetErr(s.err)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "配置文件路径（默认 $WAT2WATCH_CONFIG 或 ./"+config.FileName+"）")
	pf.StringVar(&c.source, "source", "", "数据来源：omdb|backend")
	pf.StringVar(&c.dataPath, "data", "", "本地数据目录（watchlist、登录状态、详情缓存）")
	pf.StringVar(&c.logLevel, "log-level", "", "日志级别：debug|info|warn|error")

	root.AddCommand(
		newSearchCmd(c),
		newServeCmd(c),
		newWatchlistCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
	)
	return root
}

// setup 合并配置并初始化日志；所有子命令运行前调用。
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	if flags.Changed("source") {
		switch c.source {
		case config.SourceOMDb, config.SourceBackend:
		case "":
			return usagef("--source 不能为空")
		default:
			return usagef("--source 只能是 omdb 或 backend，实际是 %q", c.source)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}
	cfg, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath:  c.configPath,
		Source:      c.source,
		SourceSet:   flags.Changed("source"),
		DataPath:    c.dataPath,
		DataPathSet: flags.Changed("data"),
		LogLevel:    c.logLevel,
		LogLevelSet: flags.Changed("log-level"),
		Addr:        c.addr,
		AddrSet:     flags.Lookup("addr") != nil && flags.Changed("addr"),
	})
	if err != nil {
		if cmd.Name() == "search" {
			c.emitSearchError(err)
		}
		return &exitError{code: exitFailure, err: err}
	}
	c.cfg = cfg

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: c.err,
	})
	logging.Debug().Str("config", cfg.Path).Str("source", cfg.Source).Str("store", cfg.Store.Driver).Msg("配置已加载")
	return nil
}

// exactArgs/noArgs 把参数个数错误归为用法错误（退出码 2）。
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err: err}
	}
	return nil
}
