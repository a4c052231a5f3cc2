package code

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// 卡号形如 OP04-119、ST01-012、EB01-001、P-001；
// 站点 id 可能额外带平行/异画后缀：OP04-119_p1、OP01-120_r1。
var cardIDRE = regexp.MustCompile(`(?i)^([a-z]{1,4}[0-9]{0,3})-([0-9]{3})(?:_([a-z0-9]+))?$`)

// CardID 是解析后的卡牌 id。
type CardID struct {
	Raw     string
	Prefix  string // 系列前缀（大写）：OP04 / ST01 / P
	Number  string // 三位编号
	Variant string // 变体后缀（小写），普通版为空
}

// Base 返回不含变体后缀的卡号（同一张卡的所有版本共享）。
func (c CardID) Base() string { return c.Prefix + "-" + c.Number }

func (c CardID) IsVariant() bool { return c.Variant != "" }

type UnmatchedError struct {
	Input string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("无法解析卡号：%q", e.Input)
}

// Parse 解析站点 id / 卡号。失败返回 *UnmatchedError。
func Parse(id string) (CardID, error) {
	s := strings.TrimSpace(id)
	m := cardIDRE.FindStringSubmatch(s)
	if m == nil {
		return CardID{}, &UnmatchedError{Input: id}
	}
	return CardID{
		Raw:     s,
		Prefix:  strings.ToUpper(m[1]),
		Number:  m[2],
		Variant: strings.ToLower(m[3]),
	}, nil
}

// BaseNumber 返回 id 的基础卡号；无法解析时原样返回（去空白）。
func BaseNumber(id string) string {
	c, err := Parse(id)
	if err != nil {
		return strings.TrimSpace(id)
	}
	return c.Base()
}

// LooksLikeCardNumber 判断 s 是否整体是一个卡号（含可选变体）。
func LooksLikeCardNumber(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// SafeFileStem 校验 id 能否直接作为图片文件名主干：
// 非空、不以点开头、不含路径分隔符与控制字符。
func SafeFileStem(id string) error {
	if id == "" {
		return fmt.Errorf("id 为空")
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("id 含首尾空白：%q", id)
	}
	if strings.HasPrefix(id, ".") {
		return fmt.Errorf("id 不能以点开头：%q", id)
	}
	for _, r := range id {
		if r == '/' || r == '\\' || r == ':' || unicode.IsControl(r) {
			return fmt.Errorf("id 含非法字符：%q", id)
		}
	}
	return nil
}
