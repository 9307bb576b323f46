package format

import (
	"strings"

	"github.com/leapstack-labs/querycomposer/internal/statement"
)

var keywords = toSet(
	"ALL", "AND", "AS", "ASC", "BETWEEN", "BY", "CASE", "CAST", "CREATE", "CROSS", "DELETE", "DESC",
	"DISTINCT", "DROP", "ELSE", "END", "EXCEPT", "EXISTS", "FALSE", "FILTER", "FROM", "FULL", "FUNCTION",
	"GROUP", "HAVING", "IF", "ILIKE", "IN", "INNER", "INSERT", "INTERSECT", "INTO", "IS", "JOIN",
	"LANGUAGE", "LEFT", "LIKE", "LIMIT", "NATURAL", "NOT", "NULL", "OFFSET", "ON", "OR", "ORDER",
	"OUTER", "OVER", "PARTITION", "QUALIFY", "RECURSIVE", "REPLACE", "RETURNS", "RIGHT", "SELECT", "SET",
	"TABLE", "TEMPORARY", "THEN", "TRUE", "UNION", "UPDATE", "USING", "VALUES", "VIEW", "WHEN", "WHERE",
	"WINDOW", "WITH",
)

// clauses start a new line.
var clauses = toSet(
	"SELECT", "FROM", "WHERE", "GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET", "UNION", "INTERSECT",
	"EXCEPT", "QUALIFY", "WINDOW", "VALUES", "SET",
)

var joinModifiers = toSet("LEFT", "RIGHT", "INNER", "FULL", "CROSS", "NATURAL", "OUTER")

// subqueryStart marks a parenthesis whose body is indented on its own lines.
var subqueryStart = toSet("SELECT", "WITH")

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// SQL formats every statement in text. Keywords are upper-cased, major
// clauses start on their own line, subqueries are indented and statements are
// separated by a blank line. Comments and quoted text are kept verbatim.
// Text without tokens is returned unchanged.
func SQL(text string) (string, error) {
	tokens, err := statement.Tokenize(text)
	if err != nil {
		return "", err
	}
	if len(tokens) == 0 {
		return text, nil
	}

	f := &formatter{p: newPrinter(), tokens: tokens}
	for i := range tokens {
		f.emit(i)
	}
	return f.p.String(), nil
}

type formatter struct {
	p      *Printer
	tokens []statement.Token
	// parens holds one entry per open parenthesis, true for a subquery.
	parens       []bool
	unary        bool
	pendingBlank bool
}

func (f *formatter) prev(i int) *statement.Token {
	if i == 0 {
		return nil
	}
	return &f.tokens[i-1]
}

func (f *formatter) next(i int) *statement.Token {
	if i+1 >= len(f.tokens) {
		return nil
	}
	return &f.tokens[i+1]
}

func (f *formatter) emit(i int) {
	tok := f.tokens[i]
	if f.pendingBlank {
		f.p.writeln()
		f.pendingBlank = false
	}

	switch tok.Kind {
	case statement.TokenTerminator:
		f.p.write(";")
		f.p.writeln()
		f.parens = f.parens[:0]
		f.p.depth = 0
		f.unary = false
		f.pendingBlank = true
		return
	case statement.TokenLineComment:
		if !f.p.atLineStart {
			f.p.space()
		}
		f.p.write(tok.Text)
		f.p.writeln()
		f.unary = false
		return
	}

	text := tok.Text
	kw := keyword(tok)
	if kw != "" {
		text = kw
	}

	if kw != "" && f.breaksBefore(i, kw) {
		if !f.p.atLineStart {
			f.p.writeln()
		}
	} else if f.needsSpace(i) {
		f.p.space()
	}

	switch {
	case tok.Kind == statement.TokenPunct && text == "(":
		next := f.next(i)
		sub := next != nil && subqueryStart[keyword(*next)]
		f.p.write("(")
		f.parens = append(f.parens, sub)
		if sub {
			f.p.indent()
			f.p.writeln()
		}
	case tok.Kind == statement.TokenPunct && text == ")":
		if n := len(f.parens); n > 0 {
			sub := f.parens[n-1]
			f.parens = f.parens[:n-1]
			if sub {
				f.p.dedent()
				f.p.writeln()
			}
		}
		f.p.write(")")
	default:
		f.p.write(text)
	}

	f.unary = tok.Kind == statement.TokenOperator && (text == "-" || text == "+") && f.signIsUnary(i)
}

// keyword returns the upper-cased keyword for a word token, or "".
func keyword(tok statement.Token) string {
	if tok.Kind != statement.TokenWord {
		return ""
	}
	if up := strings.ToUpper(tok.Text); keywords[up] {
		return up
	}
	return ""
}

func (f *formatter) breaksBefore(i int, kw string) bool {
	if n := len(f.parens); n > 0 && !f.parens[n-1] {
		return false
	}
	prevModifier := false
	if prev := f.prev(i); prev != nil {
		prevModifier = joinModifiers[keyword(*prev)]
	}

	switch {
	case clauses[kw]:
		return true
	case kw == "JOIN":
		return !prevModifier
	case joinModifiers[kw]:
		next := f.next(i)
		if prevModifier || next == nil {
			return false
		}
		n := keyword(*next)
		return n == "JOIN" || joinModifiers[n]
	}
	return false
}

func (f *formatter) needsSpace(i int) bool {
	prev := f.prev(i)
	if f.p.atLineStart || prev == nil || f.unary {
		return false
	}
	tok := f.tokens[i]

	switch {
	case prev.Kind == statement.TokenPunct && (prev.Text == "(" || prev.Text == "."):
		return false
	case tok.Kind == statement.TokenPunct && (tok.Text == ")" || tok.Text == "," || tok.Text == "."):
		return false
	case prev.Kind == statement.TokenOperator && prev.Text == "::",
		tok.Kind == statement.TokenOperator && tok.Text == "::":
		return false
	case tok.Kind == statement.TokenPunct && tok.Text == "(" &&
		(prev.Kind == statement.TokenWord || prev.Kind == statement.TokenQuoted):
		// Keep "fn(" and "IN (" as written.
		return tok.SpaceBefore
	}
	return true
}

// signIsUnary reports whether the sign at i applies to the following operand.
func (f *formatter) signIsUnary(i int) bool {
	prev := f.prev(i)
	if prev == nil {
		return true
	}
	switch prev.Kind {
	case statement.TokenOperator, statement.TokenTerminator:
		return true
	case statement.TokenPunct:
		return prev.Text == "(" || prev.Text == ","
	case statement.TokenWord:
		return keyword(*prev) != ""
	}
	return false
}
