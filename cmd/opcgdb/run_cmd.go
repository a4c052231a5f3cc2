package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/opcgdb/internal/app/run"
	"github.com/John-Robertt/opcgdb/internal/config"
	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/infra/cache"
)

func (a *cliApp) newRunCmd() *cobra.Command {
	var saveHTML, strict bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "按配置顺序抓取所有来源，写出卡组 JSON 与卡图",
		Long: `run 依次处理配置中的每个来源：抓取卡表 -> 解析 -> 写出 one_piece_cards_<lang>_<set>.json -> 下载卡图。

单个来源抓取失败不会中断流程：该来源写出空数组并在 report 中标记为 failed。
stdout 不是终端时，stdout 只输出一个 RunReport JSON；进度与日志写到 stderr。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			log := a.logger()

			eff, err := config.LoadEffective(cwd, config.CLIArgs{
				ConfigPath:  a.configPath,
				TargetDir:   a.targetDir,
				SaveHTML:    saveHTML,
				SaveHTMLSet: cmd.Flags().Changed("save-html"),
			})
			if err != nil {
				a.emitReport(reportForConfigError(cwd, err))
				return exitWith(1)
			}
			for _, sk := range eff.Skipped {
				log.Warn("跳过来源", "index", sk.Index, "reason", sk.Reason)
			}

			var obs run.Observer
			var ui *progressUI
			if w, ok := a.pickProgressWriter(); ok {
				ui = newProgressUI(w, isTTY(w))
				obs = ui
			}

			deps := a.deps
			deps.Log = log
			rr := run.ExecuteWithObserver(cmd.Context(), eff, deps, obs)
			if ui != nil {
				ui.Close()
			}

			a.emitReport(rr)
			if ui != nil {
				emitLocations(ui.w, eff)
			}

			if strict && (rr.Summary.Failed > 0 || rr.Summary.ImagesFailed > 0) {
				return exitWith(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&saveHTML, "save-html", false, "保存抓取到的页面快照到 <target>/cache/pages/")
	cmd.Flags().BoolVar(&strict, "strict", false, "任一来源或图片失败时以退出码 1 结束")
	return cmd
}

// emitReport：stdout 是终端时打印摘要；否则 stdout 只输出一个 RunReport JSON，摘要走 stderr。
func (a *cliApp) emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：sources=%d failed=%d cards=%d images(downloaded=%d skipped=%d failed=%d)\n",
		rr.Summary.Sources, rr.Summary.Failed, rr.Summary.Cards,
		rr.Summary.ImagesDownloaded, rr.Summary.ImagesSkipped, rr.Summary.ImagesFailed,
	)

	if isTTY(a.stdout) {
		fmt.Fprint(a.stdout, summary)
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Lang + "_" + it.Set
			if it.Lang == "" && it.Set == "" {
				key = "<config>"
			}
			fmt.Fprintf(a.stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(a.stdout)
	_ = enc.Encode(rr)
	fmt.Fprint(a.stderr, summary)
}

func reportForConfigError(cwd string, err error) domain.RunReport {
	now := time.Now().UTC()
	path := ""
	var ce *config.Error
	if errors.As(err, &ce) {
		path = ce.Path
	}
	rr := domain.RunReport{
		Config:     path,
		TargetDir:  cwd,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.SourceResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Images:    []domain.ImageResult{},
		}},
	}
	rr.Finalize()
	return rr
}

func (a *cliApp) pickProgressWriter() (io.Writer, bool) {
	// 进度只在交互终端启用，默认走 stderr。
	if isTTY(a.stderr) {
		return a.stderr, true
	}
	if isTTY(a.stdout) {
		return a.stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "output: %s\n", eff.TargetDir)
	fmt.Fprintf(w, "report: %s\n", cache.New(eff.TargetDir).ReportPath())
}
