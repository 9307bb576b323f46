package statement

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/leapstack-labs/querycomposer/internal/textrange"
)

// ErrUnterminated is returned when a quoted string, quoted identifier,
// dollar-quoted body or block comment runs to the end of the input.
var ErrUnterminated = errors.New("unterminated token")

// Splitter is a statement-boundary oracle backed by a small SQL lexer. It only
// understands enough SQL to find top-level ';' terminators: quotes, quoted
// identifiers, Postgres dollar quotes, line comments and block comments.
type Splitter struct{}

// NewSplitter creates a Splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// lexer walks the input rune by rune.
type lexer struct {
	input []rune
	pos   int // current position in input
	ch    rune
}

func newLexer(text string) *lexer {
	l := &lexer{input: []rune(text), pos: -1}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	l.pos++
	if l.pos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		return
	}
	l.ch = l.input[l.pos]
}

func (l *lexer) peekChar() rune {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *lexer) eof() bool {
	return l.pos >= len(l.input)
}

// skipWhitespaceAndComments advances past insignificant input.
func (l *lexer) skipWhitespaceAndComments() error {
	for !l.eof() {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			l.skipLineComment()
		case l.ch == '/' && l.peekChar() == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) skipLineComment() {
	for !l.eof() && l.ch != '\n' {
		l.readChar()
	}
}

func (l *lexer) skipBlockComment() error {
	start := l.pos
	l.readChar() // '/'
	l.readChar() // '*'
	for !l.eof() {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return nil
		}
		l.readChar()
	}
	return fmt.Errorf("%w: block comment at offset %d", ErrUnterminated, start)
}

// skipQuoted consumes a quoted run; a doubled quote is an escaped quote.
func (l *lexer) skipQuoted(quote rune) error {
	start := l.pos
	l.readChar()
	for !l.eof() {
		if l.ch == quote {
			if l.peekChar() == quote {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return nil
		}
		l.readChar()
	}
	return fmt.Errorf("%w: quote %q at offset %d", ErrUnterminated, quote, start)
}

// dollarTag returns the length of the dollar-quote opening tag at the current
// position ("$$" or "$name$"), or 0 when the '$' does not open one. Positional
// parameters such as $1 are not tags.
func (l *lexer) dollarTag() int {
	if l.pos > 0 {
		// '$' inside an identifier such as a$b.
		if prev := l.input[l.pos-1]; prev == '_' || unicode.IsLetter(prev) || unicode.IsDigit(prev) {
			return 0
		}
	}
	i := l.pos + 1
	for i < len(l.input) {
		c := l.input[i]
		switch {
		case c == '$':
			return i - l.pos + 1
		case c == '_' || unicode.IsLetter(c):
		case unicode.IsDigit(c) && i > l.pos+1:
		default:
			return 0
		}
		i++
	}
	return 0
}

// skipDollarQuoted consumes a dollar-quoted body up to the matching closing
// tag. Nothing inside the body is interpreted.
func (l *lexer) skipDollarQuoted(tagLen int) error {
	start := l.pos
	tag := string(l.input[l.pos : l.pos+tagLen])
	for range tagLen {
		l.readChar()
	}
	for !l.eof() {
		if l.ch == '$' && l.pos+tagLen <= len(l.input) && string(l.input[l.pos:l.pos+tagLen]) == tag {
			for range tagLen {
				l.readChar()
			}
			return nil
		}
		l.readChar()
	}
	return fmt.Errorf("%w: dollar quote %s at offset %d", ErrUnterminated, tag, start)
}

// Split returns the range of every statement in text. A statement starts at
// its first significant rune and ends after its ';' terminator, or after its
// last significant rune when the terminator is missing. Comments between
// statements belong to no statement.
func (s *Splitter) Split(text string) ([]textrange.Range, error) {
	l := newLexer(text)

	var (
		stmts   []textrange.Range
		start   = -1
		lastEnd = -1
	)

	for {
		if err := l.skipWhitespaceAndComments(); err != nil {
			return nil, err
		}
		if l.eof() {
			break
		}

		if start < 0 {
			start = l.pos
		}

		switch l.ch {
		case ';':
			l.readChar()
			stmts = append(stmts, textrange.New(start, l.pos))
			start, lastEnd = -1, -1
			continue
		case '\'', '"', '`':
			if err := l.skipQuoted(l.ch); err != nil {
				return nil, err
			}
		case '$':
			if n := l.dollarTag(); n > 0 {
				if err := l.skipDollarQuoted(n); err != nil {
					return nil, err
				}
			} else {
				l.readChar()
			}
		default:
			l.readChar()
		}
		lastEnd = l.pos
	}

	if start >= 0 && lastEnd > start {
		stmts = append(stmts, textrange.New(start, lastEnd))
	}
	return stmts, nil
}

// EnclosingStatementRange returns the smallest range covering every complete
// statement that intersects sel. For a zero-width selection only one statement
// is used: the one containing the cursor, or the one ending at it when the
// cursor sits on a boundary. When nothing intersects, an empty range at
// sel.From is returned.
func (s *Splitter) EnclosingStatementRange(text string, sel textrange.Range) (*textrange.Range, error) {
	stmts, err := s.Split(text)
	if err != nil {
		return nil, err
	}

	var out *textrange.Range
	for _, stmt := range stmts {
		if !sel.Touches(stmt) {
			continue
		}
		if out == nil {
			r := stmt
			out = &r
			if sel.Empty() {
				break
			}
			continue
		}
		if stmt.From < out.From {
			out.From = stmt.From
		}
		if stmt.To > out.To {
			out.To = stmt.To
		}
	}

	if out == nil {
		empty := textrange.New(sel.From, sel.From)
		return &empty, nil
	}
	return out, nil
}
