package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/infra/fsx"
	"github.com/John-Robertt/opcgdb/internal/scan"
)

// ImportedFileName 是统一目录的 JSON 输出文件名（位于 target 目录下）。
const ImportedFileName = "cards-imported.json"

// ImportResult 汇总一次导入。
type ImportResult struct {
	Cards   []Card
	Files   int
	Skipped []string // 顶层不是数组的文件
}

// Import 依次读取卡组文件并转换为目录条目，顺序为文件顺序 + 文件内记录顺序。
// 顶层不是 JSON 数组的文件会被跳过；数组内容无法解码则返回错误。
func Import(files []scan.SetFile) (ImportResult, error) {
	res := ImportResult{Cards: make([]Card, 0, 256)}
	for _, f := range files {
		b, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return ImportResult{}, err
		}
		trimmed := bytes.TrimSpace(b)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}

		var records []domain.CardRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return ImportResult{}, fmt.Errorf("%s: %w", f.Name, err)
		}
		for _, rec := range records {
			res.Cards = append(res.Cards, FromRecord(rec))
		}
		res.Files++
	}
	return res, nil
}

// MarshalCards 以缩进格式输出目录；nil 输出为 []。
func MarshalCards(cards []Card) ([]byte, error) {
	if cards == nil {
		cards = []Card{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cards); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteJSON 把目录原子写入 dir/cards-imported.json，返回完整路径。
func WriteJSON(dir string, cards []Card) (string, error) {
	b, err := MarshalCards(cards)
	if err != nil {
		return "", err
	}
	if err := fsx.WriteFileAtomic(dir, ImportedFileName, b); err != nil {
		return "", err
	}
	return filepath.Join(dir, ImportedFileName), nil
}

// LoadJSON 读取 WriteJSON 写出的目录文件。
func LoadJSON(path string) ([]Card, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cards []Card
	if err := json.Unmarshal(b, &cards); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if cards == nil {
		cards = []Card{}
	}
	return cards, nil
}
