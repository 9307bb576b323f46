package statement

import (
	"strings"
	"unicode"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenNumber
	TokenQuoted // string, quoted identifier or dollar-quoted body
	TokenLineComment
	TokenBlockComment
	TokenPunct // ( ) , .
	TokenOperator
	TokenTerminator
)

// Token is one lexical unit of SQL text.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int // rune offset of the first rune
	// SpaceBefore reports whitespace between this token and the previous one.
	SpaceBefore bool
}

const operatorChars = "=<>!+-*/%|&^~:@#?"

// Tokenize splits text into tokens. Whitespace is dropped; quoted runs and
// comments are kept verbatim.
func Tokenize(text string) ([]Token, error) {
	l := newLexer(text)
	var tokens []Token

	for {
		space := false
		for !l.eof() && unicode.IsSpace(l.ch) {
			space = true
			l.readChar()
		}
		if l.eof() {
			return tokens, nil
		}

		start := l.pos
		kind := TokenPunct
		switch {
		case l.ch == '-' && l.peekChar() == '-':
			kind = TokenLineComment
			l.skipLineComment()
		case l.ch == '/' && l.peekChar() == '*':
			kind = TokenBlockComment
			if err := l.skipBlockComment(); err != nil {
				return nil, err
			}
		case l.ch == '\'' || l.ch == '"' || l.ch == '`':
			kind = TokenQuoted
			if err := l.skipQuoted(l.ch); err != nil {
				return nil, err
			}
		case l.ch == '$' && l.dollarTag() > 0:
			kind = TokenQuoted
			if err := l.skipDollarQuoted(l.dollarTag()); err != nil {
				return nil, err
			}
		case l.ch == '$':
			// Positional parameter such as $1.
			kind = TokenWord
			l.readChar()
			for !l.eof() && (unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch)) {
				l.readChar()
			}
		case l.ch == ';':
			kind = TokenTerminator
			l.readChar()
		case l.ch == '_' || unicode.IsLetter(l.ch):
			kind = TokenWord
			for !l.eof() && (l.ch == '_' || l.ch == '$' || unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch)) {
				l.readChar()
			}
		case unicode.IsDigit(l.ch):
			kind = TokenNumber
			for !l.eof() && (l.ch == '.' || unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch)) {
				l.readChar()
			}
		case strings.ContainsRune(operatorChars, l.ch):
			kind = TokenOperator
			l.readChar()
			for !l.eof() && strings.ContainsRune(operatorChars, l.ch) &&
				!(l.ch == '-' && l.peekChar() == '-') && !(l.ch == '/' && l.peekChar() == '*') {
				l.readChar()
			}
		default:
			l.readChar()
		}

		tokens = append(tokens, Token{
			Kind:        kind,
			Text:        string(l.input[start:l.pos]),
			Offset:      start,
			SpaceBefore: space,
		})
	}
}
