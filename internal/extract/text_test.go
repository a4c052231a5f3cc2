package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parseFragmentRoot(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader("<div id=\"root\">" + markup + "</div>"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var find func(n *html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == "root" {
					return n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if f := find(c); f != nil {
				return f
			}
		}
		return nil
	}
	root := find(doc)
	if root == nil {
		t.Fatalf("找不到 root 节点")
	}
	return root
}

func TestLabelStrippedText(t *testing.T) {
	cases := []struct {
		name   string
		markup string
		want   string
	}{
		{name: "label and value", markup: `<h3>Couleur</h3>Rouge`, want: "Rouge"},
		{name: "label only", markup: `<h3>Contre</h3>`, want: ""},
		{name: "no label", markup: ` 5000 `, want: "5000"},
		{name: "line break joins with space", markup: `<h3>Effet</h3>[Jouée]<br>Piochez 1 carte.`, want: "[Jouée] Piochez 1 carte."},
		{name: "only first h3 skipped", markup: `<h3>A</h3>x<h3>B</h3>`, want: "x B"},
		{name: "nested label", markup: `<div><h3>Type</h3></div>Marine`, want: "Marine"},
		{name: "comment ignored", markup: `<h3>T</h3><!-- c -->v`, want: "v"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LabelStrippedText(parseFragmentRoot(t, tc.markup))
			if got != tc.want {
				t.Fatalf("期望 %q，实际 %q", tc.want, got)
			}
		})
	}
}

func TestLabelStrippedText_DoesNotMutateTree(t *testing.T) {
	root := parseFragmentRoot(t, `<h3>Couleur</h3>Rouge`)

	_ = LabelStrippedText(root)

	if got := StrippedText(root); got != "CouleurRouge" {
		t.Fatalf("节点树被修改：%q", got)
	}
}

func TestStrippedText(t *testing.T) {
	if got := StrippedText(parseFragmentRoot(t, ` <b>OP01</b>-<i>001</i> `)); got != "OP01-001" {
		t.Fatalf("期望 %q，实际 %q", "OP01-001", got)
	}
	if got := StrippedText(nil); got != "" {
		t.Fatalf("nil 节点应返回空串，实际 %q", got)
	}
	if got := LabelStrippedText(nil); got != "" {
		t.Fatalf("nil 节点应返回空串，实际 %q", got)
	}
}
