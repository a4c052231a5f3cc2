package scan

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	setFilePrefix = "one_piece_cards_"
	setFileExt    = ".json"
)

// SetFile 是 target 目录下的一个卡组 JSON 文件。
type SetFile struct {
	AbsPath string
	Name    string
	Size    int64
}

// ScanSetFiles 列出 dir 下（不递归）的 one_piece_cards_*.json。
//
// 规则：
// - 只看 dir 自身，cache/ 等子目录不参与
// - 目录不存在 => 空结果，不视为错误（还没有 run 过）
// - 输出按文件名字典序，保证导入顺序稳定
func ScanSetFiles(dir string) ([]SetFile, error) {
	dir = filepath.Clean(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []SetFile{}, nil
		}
		return nil, err
	}

	files := make([]SetFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !IsSetFileName(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, SetFile{
			AbsPath: filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// IsSetFileName 判断 name 是否为卡组文件名（扩展名大小写不敏感）。
func IsSetFileName(name string) bool {
	if !strings.HasPrefix(name, setFilePrefix) {
		return false
	}
	if !strings.EqualFold(filepath.Ext(name), setFileExt) {
		return false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return len(stem) > len(setFilePrefix)
}
