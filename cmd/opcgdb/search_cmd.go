package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/opcgdb/internal/app"
	"github.com/John-Robertt/opcgdb/internal/catalog"
	"github.com/John-Robertt/opcgdb/internal/catalog/query"
	"github.com/John-Robertt/opcgdb/internal/code"
)

func (a *cliApp) newSearchCmd() *cobra.Command {
	var (
		dbPath    string
		printings string
		unique    bool
		asJSON    bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "在统一目录中检索卡牌",
		Long: `查询语法：
  field:value  field=value   忽略大小写的相等
  field~value                忽略大小写的包含
  AND / OR / NOT / -clause / (...)，相邻子句隐式 AND；含空格的值用双引号

字段：g|game r|rarity s|set number language foil n|name text t|type artist
不带字段的词：形如卡号（OP01-001）时按卡号匹配，否则对名字做模糊匹配。

示例：
  opcgdb search 's:op-09 r:SR'
  opcgdb search 'n~shanks OR n~"monkey d"'
  opcgdb search OP04-119 --unique
  opcgdb search --db cards.db --printings OP04-119 'language:fr'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if printings != "" {
				ref = code.BaseNumber(printings)
			}

			var cards []catalog.Card
			if dbPath != "" {
				store, err := catalog.OpenSQLite(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				defer store.Close()
				if ref != "" {
					cards, err = store.ByReference(cmd.Context(), ref)
				} else {
					cards, err = store.Load(cmd.Context())
				}
				if err != nil {
					return err
				}
			} else {
				target, err := a.resolveTargetDir()
				if err != nil {
					return err
				}
				if cards, err = catalog.LoadJSON(filepath.Join(target, catalog.ImportedFileName)); err != nil {
					return fmt.Errorf("读取目录失败（先运行 opcgdb import）：%w", err)
				}
				if ref != "" {
					cards = slices.DeleteFunc(cards, func(c catalog.Card) bool { return c.ReferenceID != ref })
				}
			}

			found, err := query.Search(cards, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if unique {
				if found, err = app.UniquePrintings(found); err != nil {
					return err
				}
			}
			if limit > 0 && len(found) > limit {
				found = found[:limit]
			}

			if asJSON {
				if found == nil {
					found = []catalog.Card{}
				}
				enc := json.NewEncoder(a.stdout)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(found)
			}
			a.printCards(found)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dbPath, "db", "", "从 SQLite 数据库读取目录（默认读取 target 目录的 cards-imported.json）")
	f.StringVar(&printings, "printings", "", "只在该卡号的全部版本中检索（如 OP04-119 或 OP04-119_p1）")
	f.BoolVar(&unique, "unique", false, "同一基础卡号只保留一个版本")
	f.BoolVar(&asJSON, "json", false, "以 JSON 输出完整条目")
	f.IntVar(&limit, "limit", 0, "最多输出条数（0 表示不限）")
	return cmd
}

func (a *cliApp) printCards(cards []catalog.Card) {
	idColor := color.New(color.FgCyan)
	nameColor := color.New(color.FgHiWhite, color.Bold)
	if isTTY(a.stdout) {
		idColor.EnableColor()
		nameColor.EnableColor()
	} else {
		idColor.DisableColor()
		nameColor.DisableColor()
	}

	for _, c := range cards {
		meta := make([]string, 0, 3)
		for _, s := range []string{c.Rarity, c.Language, c.SetName} {
			if s != "" {
				meta = append(meta, s)
			}
		}
		fmt.Fprintf(a.stdout, "%s  %s  [%s]\n", idColor.Sprint(c.ID), nameColor.Sprint(c.DisplayName()), strings.Join(meta, " "))
	}
	fmt.Fprintf(a.stderr, "共 %d 条\n", len(cards))
}
