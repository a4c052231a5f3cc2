package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/opcgdb/internal/config"
	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/extract"
	"github.com/John-Robertt/opcgdb/internal/fetch"
	"github.com/John-Robertt/opcgdb/internal/infra/cache"
	"github.com/John-Robertt/opcgdb/internal/infra/httpx"
	"github.com/John-Robertt/opcgdb/internal/persist"
)

func (a *cliApp) newExtractCmd() *cobra.Command {
	var (
		lang, set string
		rawURL    string
		proxy     string
		cached    bool
		write     bool
	)

	cmd := &cobra.Command{
		Use:   "extract [page.html]",
		Short: "把一个卡表页面解析为卡牌记录 JSON（不下载图片）",
		Long: `extract 的输入三选一：
  - 本地 HTML 文件（例如 save_html 保存的快照）
  - --url：按 run 相同的方式抓取一次（失败时得到空数组）
  - --cached：读取 <target>/cache/pages/<lang>_<set>.html

结果写到 stdout；加 --write 时同时写出 <target>/one_piece_cards_<lang>_<set>.json。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := 0
			if len(args) == 1 {
				inputs++
			}
			if rawURL != "" {
				inputs++
			}
			if cached {
				inputs++
			}
			if inputs != 1 {
				return errors.New("需要且只能指定一个输入：文件、--url 或 --cached")
			}
			if strings.TrimSpace(lang) == "" || strings.TrimSpace(set) == "" {
				return errors.New("--lang 与 --set 必填")
			}

			var (
				markup []byte
				err    error
			)
			switch {
			case len(args) == 1:
				markup, err = os.ReadFile(args[0])
				if err != nil {
					return err
				}
			case rawURL != "":
				client := a.deps.PageClient
				if client == nil {
					if client, err = httpx.NewPageClient(proxy); err != nil {
						return fmt.Errorf("--proxy 无效：%w", err)
					}
				}
				src := domain.SourceConfig{URL: rawURL, Lang: lang, Set: set}
				markup = fetch.New(client).FetchOrEmpty(cmd.Context(), a.logger(), src)
			default:
				target, err := a.resolveTargetDir()
				if err != nil {
					return err
				}
				b, ok, err := cache.New(target).ReadPage(lang, set)
				if err != nil {
					return err
				}
				if !ok {
					p, _ := cache.New(target).PagePath(lang, set)
					return fmt.Errorf("没有页面快照：%s", p)
				}
				markup = b
			}

			records := extract.Cards(markup, lang, set)
			b, err := persist.MarshalSet(records)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(b))

			if write {
				target, err := a.resolveTargetDir()
				if err != nil {
					return err
				}
				name, err := persist.WriteSet(target, lang, set, records)
				if err != nil {
					return err
				}
				a.logger().Info("卡组 JSON 已写出", "file", filepath.Join(target, name), "cards", len(records))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&lang, "lang", "", "记录的 lang 字段")
	f.StringVar(&set, "set", "", "记录的 set 字段")
	f.StringVar(&rawURL, "url", "", "直接抓取该卡表 URL")
	f.StringVar(&proxy, "proxy", "", "抓取时使用的代理（仅 --url）")
	f.BoolVar(&cached, "cached", false, "读取 target 目录中的页面快照")
	f.BoolVar(&write, "write", false, "同时写出卡组 JSON 到 target 目录")
	return cmd
}

// resolveTargetDir：--target-dir 优先（相对 cwd）；否则取配置中的 target_dir。
func (a *cliApp) resolveTargetDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(a.targetDir) != "" {
		p := a.targetDir
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
		return filepath.Clean(p), nil
	}
	eff, err := config.LoadEffective(cwd, config.CLIArgs{ConfigPath: a.configPath})
	if err != nil {
		return "", err
	}
	return eff.TargetDir, nil
}
