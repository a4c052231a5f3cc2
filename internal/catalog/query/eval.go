package query

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/John-Robertt/opcgdb/internal/catalog"
	"github.com/John-Robertt/opcgdb/internal/code"
)

// Expr 是编译后的查询谓词。
type Expr interface {
	Match(c *catalog.Card) bool
}

type matchAll struct{}

func (matchAll) Match(*catalog.Card) bool { return true }

type andExpr struct{ l, r Expr }

func (e andExpr) Match(c *catalog.Card) bool { return e.l.Match(c) && e.r.Match(c) }

type orExpr struct{ l, r Expr }

func (e orExpr) Match(c *catalog.Card) bool { return e.l.Match(c) || e.r.Match(c) }

type notExpr struct{ inner Expr }

func (e notExpr) Match(c *catalog.Card) bool { return !e.inner.Match(c) }

type matchMode int

const (
	matchEqual matchMode = iota
	matchContains
)

func (m matchMode) test(have, want string) bool {
	if m == matchContains {
		return strings.Contains(strings.ToLower(have), strings.ToLower(want))
	}
	return strings.EqualFold(have, want)
}

// field 取出卡牌（或 part）上的字符串值。part 级字段只要任一 part 命中即可。
type field struct {
	card func(c *catalog.Card) string
	part func(p *catalog.CardPart) string
}

var cardFields = map[string]func(c *catalog.Card) string{
	"game":     func(c *catalog.Card) string { return c.Game },
	"rarity":   func(c *catalog.Card) string { return c.Rarity },
	"set":      func(c *catalog.Card) string { return c.SetName },
	"number":   func(c *catalog.Card) string { return deref(c.Number) },
	"language": func(c *catalog.Card) string { return c.Language },
	"foil":     func(c *catalog.Card) string { return strconv.FormatBool(c.IsFoil) },
}

var partFields = map[string]func(p *catalog.CardPart) string{
	"name":   func(p *catalog.CardPart) string { return p.Name },
	"text":   func(p *catalog.CardPart) string { return p.Text },
	"type":   func(p *catalog.CardPart) string { return p.Type },
	"artist": func(p *catalog.CardPart) string { return p.Artist },
}

var fieldAliases = map[string]string{
	"g": "game",
	"r": "rarity",
	"s": "set",
	"n": "name",
	"t": "type",
}

func lookupField(name string) (field, bool) {
	if full, ok := fieldAliases[name]; ok {
		name = full
	}
	if f, ok := cardFields[name]; ok {
		return field{card: f}, true
	}
	if f, ok := partFields[name]; ok {
		return field{part: f}, true
	}
	return field{}, false
}

type fieldExpr struct {
	field field
	mode  matchMode
	value string
}

func (e fieldExpr) Match(c *catalog.Card) bool {
	if e.field.card != nil {
		return e.mode.test(e.field.card(c), e.value)
	}
	for fi := range c.Faces {
		for pi := range c.Faces[fi].Parts {
			if e.mode.test(e.field.part(&c.Faces[fi].Parts[pi]), e.value) {
				return true
			}
		}
	}
	return false
}

// numberTerm 匹配卡号：站点 id、印刷卡号或基础卡号任一相同即可。
type numberTerm struct{ value string }

func (e numberTerm) Match(c *catalog.Card) bool {
	return strings.EqualFold(c.ID, e.value) ||
		strings.EqualFold(deref(c.Number), e.value) ||
		strings.EqualFold(c.ReferenceID, e.value)
}

// nameTerm 对所有 part 名字做模糊（子序列）匹配。
type nameTerm struct{ value string }

func (e nameTerm) Match(c *catalog.Card) bool {
	return len(fuzzy.FindFrom(e.value, partNames(c.Parts()))) > 0
}

func newTerm(v string) Expr {
	if code.LooksLikeCardNumber(v) {
		return numberTerm{value: strings.TrimSpace(v)}
	}
	return nameTerm{value: v}
}

type partNames []catalog.CardPart

func (p partNames) String(i int) string { return p[i].Name }
func (p partNames) Len() int            { return len(p) }

// cardNames 让 fuzzy 直接在卡牌列表上按展示名打分。
type cardNames []catalog.Card

func (c cardNames) String(i int) string { return c[i].DisplayName() }
func (c cardNames) Len() int            { return len(c) }

// Filter 返回满足 e 的条目，保持输入顺序。
func Filter(cards []catalog.Card, e Expr) []catalog.Card {
	out := make([]catalog.Card, 0, len(cards))
	for i := range cards {
		if e.Match(&cards[i]) {
			out = append(out, cards[i])
		}
	}
	return out
}

// Search 解析并执行查询。
//
// 查询只有一个名字词时，结果按模糊匹配得分排序（得分相同保持输入顺序）；
// 其余情况保持输入顺序。
func Search(cards []catalog.Card, q string) ([]catalog.Card, error) {
	e, err := Parse(q)
	if err != nil {
		return nil, err
	}
	out := Filter(cards, e)

	if nt, ok := e.(nameTerm); ok {
		rank(out, nt.value)
	}
	return out, nil
}

func rank(cards []catalog.Card, pattern string) {
	score := make(map[int]int, len(cards))
	for _, m := range fuzzy.FindFrom(pattern, cardNames(cards)) {
		score[m.Index] = m.Score
	}

	idx := make([]int, len(cards))
	for i := range idx {
		idx[i] = i
	}
	get := func(i int) int {
		if v, ok := score[i]; ok {
			return v
		}
		return math.MinInt
	}
	sort.SliceStable(idx, func(a, b int) bool { return get(idx[a]) > get(idx[b]) })

	sorted := make([]catalog.Card, len(cards))
	for i, j := range idx {
		sorted[i] = cards[j]
	}
	copy(cards, sorted)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
