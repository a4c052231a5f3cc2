package imgx

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// DefaultExt 是 URL 推断不出扩展名时使用的后缀。
const DefaultExt = "jpg"

// 扩展名紧跟在 query 起始或字符串结尾之前：/card/OP01-001.png?250214 => png
var extRE = regexp.MustCompile(`\.(\w+)(?:\?|$)`)

// ExtFromURL 从图片 URL 推断扩展名（不含点）。
//
// 只在 path + query 部分查找，主机名（例如 .com）不参与匹配；fragment 忽略。
// 结果保持 URL 中的原始大小写。
func ExtFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	target := raw
	if u, err := url.Parse(raw); err == nil {
		target = u.EscapedPath()
		if u.RawQuery != "" || u.ForceQuery {
			target += "?" + u.RawQuery
		}
	}
	m := extRE.FindStringSubmatch(target)
	if m == nil {
		return DefaultExt
	}
	return m[1]
}

var sniffExt = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// Sniff 按内容魔数识别图片类型，返回惯用扩展名。
// 站点在图片缺失时可能返回 200 + HTML 页面，调用方据此拒绝落盘。
func Sniff(head []byte) (ext string, ok bool) {
	if len(head) == 0 {
		return "", false
	}
	ct := http.DetectContentType(head)
	ext, ok = sniffExt[ct]
	return ext, ok
}
