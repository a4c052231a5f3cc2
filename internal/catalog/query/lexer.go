package query

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokQuoted
	tokOp // : = ~
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	pos  int
	// 前面紧贴上一个 token（没有空白），用于识别 field:value。
	glued bool
}

func isOpChar(r rune) bool { return r == ':' || r == '=' || r == '~' }

func isWordBreak(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' || isOpChar(r)
}

// lex 把查询切成 token。关键字 AND/OR/NOT 只认大写；
// 位于 token 开头的 '-' 视为 NOT。
func lex(q string) ([]token, error) {
	rs := []rune(q)
	toks := make([]token, 0, 8)
	glued := false

	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
			glued = false
			continue
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i, glued: glued})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i, glued: glued})
			i++
		case isOpChar(r):
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i, glued: glued})
			i++
		case r == '-' && (!glued || afterLParen(toks)) && i+1 < len(rs) && !unicode.IsSpace(rs[i+1]):
			toks = append(toks, token{kind: tokNot, text: "-", pos: i})
			i++
			glued = false
			continue
		case r == '"':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(rs) {
				if rs[i] == '\\' && i+1 < len(rs) {
					b.WriteRune(rs[i+1])
					i += 2
					continue
				}
				if rs[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteRune(rs[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Pos: start, Msg: "引号未闭合"}
			}
			toks = append(toks, token{kind: tokQuoted, text: b.String(), pos: start, glued: glued})
		default:
			start := i
			for i < len(rs) && !isWordBreak(rs[i]) {
				i++
			}
			w := string(rs[start:i])
			tk := token{kind: tokWord, text: w, pos: start, glued: glued}
			switch w {
			case "AND":
				tk.kind = tokAnd
			case "OR":
				tk.kind = tokOr
			case "NOT":
				tk.kind = tokNot
			}
			toks = append(toks, tk)
		}
		glued = true
	}
	toks = append(toks, token{kind: tokEOF, pos: len(rs)})
	return toks, nil
}

func afterLParen(toks []token) bool {
	return len(toks) > 0 && toks[len(toks)-1].kind == tokLParen
}
