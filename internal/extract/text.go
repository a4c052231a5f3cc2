package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LabelStrippedText 返回 n 的可见文本，但跳过 n 内第一个 <h3>（标签/标题）子树。
//
// 规则：
//   - 只处理文本节点；每段文本先 TrimSpace，空段丢弃
//   - 剩余段落以单个空格拼接（元素之间的空白被折叠）
//   - 纯函数：不修改节点树（不做 “先删除 h3 再取文本”）
//
// 只依赖 x/net/html 的节点模型，可直接用于 goquery 的 Selection.Get(i)。
func LabelStrippedText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return joinText(n, firstDescendant(n, atom.H3), " ")
}

// StrippedText 返回 n 的文本：每段 TrimSpace 后直接拼接（不加分隔符）。
// 用于 span/name/<i> 这类“单值”节点。
func StrippedText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return joinText(n, nil, "")
}

func joinText(n, skip *html.Node, sep string) string {
	parts := make([]string, 0, 4)

	var walk func(c *html.Node)
	walk = func(c *html.Node) {
		if c == skip {
			return
		}
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)

	return strings.Join(parts, sep)
}

// firstDescendant 按文档顺序返回 n 的第一个 a 元素后代（不含 n 本身）。
func firstDescendant(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if f := firstDescendant(c, a); f != nil {
			return f
		}
	}
	return nil
}
