package planner

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/opcgdb/internal/code"
	"github.com/John-Robertt/opcgdb/internal/domain"
	"github.com/John-Robertt/opcgdb/internal/infra/imgx"
)

// DirState 是目标目录的现状（只做 ReadDir，不读文件内容）。
type DirState struct {
	Dir           string
	ExistingNames map[string]struct{}
}

func (s DirState) Has(name string) bool {
	_, ok := s.ExistingNames[name]
	return ok
}

// ReadDirState 读取图片目录现状。目录不存在时返回空状态且不报错。
func ReadDirState(dir string) (DirState, error) {
	st := DirState{
		Dir:           filepath.Clean(dir),
		ExistingNames: map[string]struct{}{},
	}
	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return DirState{}, err
	}
	for _, e := range entries {
		st.ExistingNames[e.Name()] = struct{}{}
	}
	return st, nil
}

// PlanImages 为带 image 的记录生成下载计划，顺序与 records 一致。
//
// 规则：
//   - image 为空：不产生计划
//   - URL 以来源 URL 为基准解析为绝对地址
//   - 文件名 <id>.<ext>，ext 由 URL 推断（默认 jpg）
//   - 目标已存在，或同一批次前面已计划过同名文件：Skip=true
//   - id 不能安全地作为文件名：Err 非空（调用方记为失败，不发请求）
func PlanImages(baseURL string, records []domain.CardRecord, st DirState) []domain.ImagePlan {
	plans := make([]domain.ImagePlan, 0, len(records))
	planned := make(map[string]struct{}, len(records))

	for _, r := range records {
		if !r.HasImage() {
			continue
		}
		abs := ResolveURL(baseURL, domain.Value(r.Image))
		p := domain.ImagePlan{ID: r.ID, URL: abs}

		if err := code.SafeFileStem(r.ID); err != nil {
			p.Err = fmt.Errorf("无法规划图片文件名：%w", err)
			plans = append(plans, p)
			continue
		}

		p.File = r.ID + "." + imgx.ExtFromURL(abs)
		_, dup := planned[p.File]
		p.Skip = st.Has(p.File) || dup
		planned[p.File] = struct{}{}
		plans = append(plans, p)
	}
	return plans
}

// ResolveURL 以 base 为基准解析 href（相对路径、协议相对 URL 都会被补全）。
// 解析失败时原样返回 href。
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ru.IsAbs() {
		return ru.String()
	}
	bu, err := url.Parse(strings.TrimSpace(base))
	if err != nil || !bu.IsAbs() {
		return href
	}
	return bu.ResolveReference(ru).String()
}
