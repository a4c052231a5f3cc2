package app

import (
	"errors"
	"sort"

	"github.com/John-Robertt/opcgdb/internal/catalog"
	"github.com/John-Robertt/opcgdb/internal/code"
)

// Printings 是同一基础卡号（同语言）下的全部版本（普通版 + 异画/平行卡）。
type Printings struct {
	Language string
	Base     string
	CardIdx  []int // 指向输入切片
}

// GroupPrintings 按 (language, 基础卡号) 分组。
//
// - 分组稳定排序：先 Language，再 Base
// - 组内 CardIdx 稳定排序：普通版在前，其余按 ID 字典序
// - ID 无法解析为卡号的条目进入 unmatched（保持输入顺序）
func GroupPrintings(cards []catalog.Card) (groups []Printings, unmatched []int, err error) {
	type key struct{ lang, base string }
	index := make(map[key]int, len(cards))
	groups = make([]Printings, 0, len(cards))
	unmatched = make([]int, 0)

	for i := range cards {
		id, e := code.Parse(cards[i].ID)
		if e != nil {
			var ue *code.UnmatchedError
			if errors.As(e, &ue) {
				unmatched = append(unmatched, i)
				continue
			}
			return nil, nil, e
		}

		k := key{lang: cards[i].Language, base: id.Base()}
		if gi, ok := index[k]; ok {
			groups[gi].CardIdx = append(groups[gi].CardIdx, i)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, Printings{
			Language: k.lang,
			Base:     k.base,
			CardIdx:  []int{i},
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Language != groups[j].Language {
			return groups[i].Language < groups[j].Language
		}
		return groups[i].Base < groups[j].Base
	})
	for gi := range groups {
		idx := groups[gi].CardIdx
		sort.SliceStable(idx, func(a, b int) bool {
			ca, cb := cards[idx[a]], cards[idx[b]]
			va, vb := isVariant(ca.ID), isVariant(cb.ID)
			if va != vb {
				return !va
			}
			return ca.ID < cb.ID
		})
	}
	return groups, unmatched, nil
}

// UniquePrintings 每组只保留排序后的第一张（通常是普通版），无法分组的条目原样保留。
// 输出顺序与输入顺序一致。
func UniquePrintings(cards []catalog.Card) ([]catalog.Card, error) {
	groups, unmatched, err := GroupPrintings(cards)
	if err != nil {
		return nil, err
	}

	keep := make([]bool, len(cards))
	for _, g := range groups {
		keep[g.CardIdx[0]] = true
	}
	for _, i := range unmatched {
		keep[i] = true
	}

	out := make([]catalog.Card, 0, len(groups)+len(unmatched))
	for i := range cards {
		if keep[i] {
			out = append(out, cards[i])
		}
	}
	return out, nil
}

func isVariant(id string) bool {
	c, err := code.Parse(id)
	return err == nil && c.IsVariant()
}
