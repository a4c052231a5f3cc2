package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/John-Robertt/opcgdb/internal/app/run"
)

func main() {
	app := &cliApp{stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(app.execute(context.Background(), os.Args[1:]))
}

// cliApp 持有命令共享的输出流与依赖；测试里替换为 buffer / httptest client。
type cliApp struct {
	stdout io.Writer
	stderr io.Writer
	deps   run.Deps

	configPath string
	targetDir  string
	verbose    bool
}

// exitError 让子命令在不打印额外错误信息的情况下指定退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func exitWith(code int) error { return &exitError{code: code} }

func (a *cliApp) execute(ctx context.Context, args []string) int {
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(a.stderr, "错误：%v\n", err)
		return 2
	}
	return 0
}

func (a *cliApp) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "opcgdb",
		Short: "One Piece 卡牌目录抓取与检索工具",
		Long: `opcgdb 从官方卡表页面抓取卡牌，按 (lang, set) 写出卡组 JSON 与卡图，
并可把卡组 JSON 导入统一目录后进行检索。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "配置文件路径（默认在当前目录查找 configuration.json/.json5/.toml）")
	pf.StringVar(&a.targetDir, "target-dir", "", "输出目录（覆盖配置中的 target_dir，相对当前目录）")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "输出 debug 日志")

	root.AddCommand(
		a.newRunCmd(),
		a.newExtractCmd(),
		a.newImportCmd(),
		a.newSearchCmd(),
	)
	return root
}

// logger 返回写到 stderr 的结构化日志；stdout 只留给命令的结果输出。
func (a *cliApp) logger() *slog.Logger {
	if a.deps.Log != nil {
		return a.deps.Log
	}
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
