package main

import (
	"github.com/spf13/cobra"

	"github.com/John-Robertt/opcgdb/internal/app"
	"github.com/John-Robertt/opcgdb/internal/catalog"
	"github.com/John-Robertt/opcgdb/internal/scan"
)

func (a *cliApp) newImportCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "把 target 目录下的卡组 JSON 合并为统一目录 cards-imported.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := a.logger()
			target, err := a.resolveTargetDir()
			if err != nil {
				return err
			}

			files, err := scan.ScanSetFiles(target)
			if err != nil {
				return err
			}
			res, err := catalog.Import(files)
			if err != nil {
				return err
			}
			for _, name := range res.Skipped {
				log.Warn("跳过顶层不是数组的文件", "file", name)
			}

			path, err := catalog.WriteJSON(target, res.Cards)
			if err != nil {
				return err
			}

			groups, unmatched, err := app.GroupPrintings(res.Cards)
			if err != nil {
				return err
			}
			log.Info("导入完成",
				"files", res.Files,
				"cards", len(res.Cards),
				"base_numbers", len(groups),
				"unmatched_ids", len(unmatched),
				"output", path,
			)

			if dbPath != "" {
				store, err := catalog.OpenSQLite(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Replace(cmd.Context(), res.Cards); err != nil {
					return err
				}
				log.Info("SQLite 目录已更新", "db", dbPath, "cards", len(res.Cards))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "同时写入该 SQLite 数据库（整体替换）")
	return cmd
}
