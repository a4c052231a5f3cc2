package domain

import "fmt"

// SourceConfig 是配置中的一个抓取来源（url, lang, set 三元组）。
// 加载后只读。
type SourceConfig struct {
	URL  string `json:"url" toml:"url"`
	Lang string `json:"lang" toml:"lang"`
	Set  string `json:"set" toml:"set"`
}

// Key 是来源在日志/报告/快照文件名中的稳定标识。
func (s SourceConfig) Key() string {
	return fmt.Sprintf("%s_%s", s.Lang, s.Set)
}
