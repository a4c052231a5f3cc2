package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/opcgdb/internal/infra/fsx"
)

// Store 管理 <target>/cache/ 下的内部文件：页面快照与运行报告。
type Store struct {
	Root string // <target>
}

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

func (s Store) Dir() string { return filepath.Join(s.Root, "cache") }

func (s Store) pagesDir() string { return filepath.Join(s.Dir(), "pages") }

// PagePath 返回来源页面快照路径：cache/pages/<lang>_<set>.html
func (s Store) PagePath(lang, set string) (string, error) {
	name, err := pageName(lang, set)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.pagesDir(), name), nil
}

func (s Store) WritePage(lang, set string, markup []byte) error {
	name, err := pageName(lang, set)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(s.pagesDir(), name, markup)
}

// ReadPage 读取快照；不存在时 ok=false 且 err=nil。
func (s Store) ReadPage(lang, set string) ([]byte, bool, error) {
	path, err := s.PagePath(lang, set)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) ReportPath() string { return filepath.Join(s.Dir(), "report.json") }

func (s Store) WriteReport(b []byte) error {
	return fsx.WriteFileAtomic(s.Dir(), "report.json", b)
}

var segmentRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func pageName(lang, set string) (string, error) {
	lang = strings.TrimSpace(lang)
	set = strings.TrimSpace(set)
	// 拒绝路径分隔符与以点开头的片段，避免写出 cache/pages 之外。
	if !segmentRE.MatchString(lang) {
		return "", fmt.Errorf("非法 lang：%q", lang)
	}
	if !segmentRE.MatchString(set) {
		return "", fmt.Errorf("非法 set：%q", set)
	}
	return lang + "_" + set + ".html", nil
}
