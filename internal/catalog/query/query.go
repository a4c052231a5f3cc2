// Package query 实现卡牌目录的检索语言。
//
// 语法（大写关键字）：
//
//	query   := or
//	or      := and ("OR" and)*
//	and     := unary (["AND"] unary)*        相邻子句隐式 AND
//	unary   := ("NOT" | "-") unary | primary
//	primary := "(" or ")" | field op value | value
//	op      := ":" | "=" | "~"               ":" 与 "=" 为忽略大小写的相等，"~" 为忽略大小写的包含
//
// 不带字段的值：形如卡号（OP01-001、OP04-119_p1）时按卡号匹配，否则对名字做模糊匹配。
package query

import (
	"fmt"
	"strings"
)

// SyntaxError 表示查询无法解析。Pos 为 rune 偏移。
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("查询语法错误（位置 %d）：%s", e.Pos, e.Msg)
}

// UnknownFieldError 表示查询使用了不支持的字段。
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("未知字段：%q", e.Field)
}

// Parse 把查询编译为 Expr。空查询（或只有空白）匹配全部条目。
func Parse(q string) (Expr, error) {
	toks, err := lex(q)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return matchAll{}, nil
	}

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("多余的 %q", t.text)}
	}
	return e, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orExpr{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokWord, tokQuoted, tokNot, tokLParen:
			// 隐式 AND
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andExpr{left, right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, &SyntaxError{Pos: c.pos, Msg: "缺少 )"}
		}
		return e, nil
	case tokWord:
		if op := p.peek(); op.kind == tokOp && op.glued {
			p.next()
			return p.parseField(t, op)
		}
		return newTerm(t.text), nil
	case tokQuoted:
		return newTerm(t.text), nil
	case tokEOF:
		return nil, &SyntaxError{Pos: t.pos, Msg: "查询意外结束"}
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("意外的 %q", t.text)}
	}
}

func (p *parser) parseField(name, op token) (Expr, error) {
	v := p.next()
	if (v.kind != tokWord && v.kind != tokQuoted) || !v.glued {
		return nil, &SyntaxError{Pos: op.pos, Msg: fmt.Sprintf("%s%s 之后缺少值", name.text, op.text)}
	}

	f, ok := lookupField(strings.ToLower(name.text))
	if !ok {
		return nil, &UnknownFieldError{Field: name.text}
	}
	mode := matchEqual
	if op.text == "~" {
		mode = matchContains
	}
	return fieldExpr{field: f, mode: mode, value: v.text}, nil
}
