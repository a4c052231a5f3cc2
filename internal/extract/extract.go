package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/opcgdb/internal/domain"
)

// 站点结构标记（稳定的 class），装饰性嵌套（h3/图标）不做深度假设。
const (
	blockSelector = "dl.modalCol"

	headerSelector   = "dt"
	infoSelector     = "div.infoCol"
	infoValueSel     = "span"
	cardNameSelector = "div.cardName"

	detailSelector = "dd"
	frontSelector  = "div.frontCol"
	imageSelector  = "img.lazy"
	backSelector   = "div.backCol"
)

// 站点把真实图片放在 data-src，src 通常是占位图。
const (
	lazySrcAttr = "data-src"
	srcAttr     = "src"
)

// Cards 把卡表 HTML 解析为 CardRecord 序列。
//
// 约束：
//   - 纯函数：相同输入 => 相同输出
//   - 顺序即 modalCol 块的文档顺序
//   - 不返回错误：空输入/无匹配块 => 空序列（非 nil，序列化为 []）
//   - 字段缺失逐字段降级，不会中断整页解析
func Cards(markup []byte, lang, set string) []domain.CardRecord {
	out := make([]domain.CardRecord, 0)
	if len(bytes.TrimSpace(markup)) == 0 {
		return out
	}

	// x/net/html 对截断/不规范的 HTML 会尽力恢复，这里几乎不会出错。
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return out
	}

	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, ParseBlock(s, lang, set))
	})
	return out
}

// ParseBlock 解析单个卡牌块。id 取自块自身的 id 属性；lang/set 由调用方注入。
func ParseBlock(block *goquery.Selection, lang, set string) domain.CardRecord {
	rec := domain.CardRecord{
		ID:   strings.TrimSpace(block.AttrOr("id", "")),
		Lang: lang,
		Set:  set,
	}

	if dt := block.Find(headerSelector).First(); dt.Length() > 0 {
		parseHeader(dt, &rec)
	}
	if dd := block.Find(detailSelector).First(); dd.Length() > 0 {
		parseDetail(dd, &rec)
	}
	return rec
}

func parseHeader(dt *goquery.Selection, rec *domain.CardRecord) {
	// code/rarity/role 只按位置取值，且必须三者同时存在：
	// 少于 3 个 span 时宁可全部缺失，也不把值放错槽位。
	if info := dt.Find(infoSelector).First(); info.Length() > 0 {
		spans := info.Find(infoValueSel)
		if spans.Length() >= 3 {
			rec.Code = domain.Str(StrippedText(spans.Get(0)))
			rec.Rarity = domain.Str(StrippedText(spans.Get(1)))
			rec.Role = domain.Str(StrippedText(spans.Get(2)))
		}
	}

	if name := dt.Find(cardNameSelector).First(); name.Length() > 0 {
		rec.Name = domain.Str(StrippedText(name.Get(0)))
	}
}

func parseDetail(dd *goquery.Selection, rec *domain.CardRecord) {
	if front := dd.Find(frontSelector).First(); front.Length() > 0 {
		if img := front.Find(imageSelector).First(); img.Length() > 0 {
			if src, ok := imageSource(img); ok {
				rec.Image = domain.Str(src)
			}
			rec.ImageAlt = domain.Str(strings.TrimSpace(img.AttrOr("alt", "")))
		}
	}

	back := dd.Find(backSelector).First()
	if back.Length() == 0 {
		return
	}

	rec.Cost = domain.Str(detailText(back, "div.cost"))
	rec.Attribute = domain.Str(attributeText(back))
	rec.Power = domain.Str(detailText(back, "div.power"))
	rec.Counter = domain.Str(detailText(back, "div.counter"))
	rec.Color = domain.Str(detailText(back, "div.color"))
	rec.Feature = domain.Str(detailText(back, "div.feature"))
	rec.Effect = domain.Str(detailText(back, "div.text"))
	rec.Extension = domain.Str(detailText(back, "div.getInfo"))
}

// imageSource 只要存在 data-src 属性就以它为准（即使为空，src 此时多为占位图）；
// 没有 data-src 时回退 src。两者都没有时 ok=false。
func imageSource(img *goquery.Selection) (string, bool) {
	if v, ok := img.Attr(lazySrcAttr); ok {
		return strings.TrimSpace(v), true
	}
	if v, ok := img.Attr(srcAttr); ok {
		return strings.TrimSpace(v), true
	}
	return "", false
}

// detailText 返回 back 内第一个 sel 的去标签文本；不存在时返回 ""（而不是缺失）。
func detailText(back *goquery.Selection, sel string) string {
	div := back.Find(sel).First()
	if div.Length() == 0 {
		return ""
	}
	return LabelStrippedText(div.Get(0))
}

// attributeText 优先取 <i>（属性标记）文本，没有时回退到去标签文本。
func attributeText(back *goquery.Selection) string {
	div := back.Find("div.attribute").First()
	if div.Length() == 0 {
		return ""
	}
	if i := div.Find("i").First(); i.Length() > 0 {
		return StrippedText(i.Get(0))
	}
	return LabelStrippedText(div.Get(0))
}
