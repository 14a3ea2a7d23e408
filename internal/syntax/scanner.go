package syntax

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Scanner performs lexical analysis on Stapel source code.
// Scanning stops at the first error: Next then keeps returning _Error and
// Err reports what went wrong.
type Scanner struct {
	source // embedded character reader

	// Current token info
	tok    Token
	lit    string // source text (raw contents for strings)
	str    string // decoded string value
	val    int64  // integer value
	width  int    // load/store width
	argc   int    // syscall argument count
	tokPos Pos

	err *Error

	litBuf strings.Builder
}

// NewScanner creates a new Scanner for the given source.
func NewScanner(filename string, src io.Reader) *Scanner {
	s := &Scanner{}
	s.source = *newSource(filename, src, func(line, col uint32, msg string) {
		s.errorAt(NewPos(filename, line, col), msg)
	})
	return s
}

// Next advances to the next token.
func (s *Scanner) Next() {
	if s.err != nil {
		s.tok = _Error
		return
	}

redo:
	for isWhitespace(s.ch) {
		s.nextch()
	}

	s.tokPos = s.pos()
	s.lit, s.str, s.val, s.width, s.argc = "", "", 0, 0, 0

	switch {
	case s.ch < 0:
		s.tok = _EOF

	case s.ch == ';' || s.ch == '#':
		s.skipLineComment()
		goto redo

	case s.ch == '"':
		s.scanString()

	case s.ch == '\'':
		s.scanChar()

	case s.ch == '!':
		s.nextch()
		if s.ch == '=' {
			s.nextch()
			s.op(_Neq)
			break
		}
		if !isDigit(s.ch) {
			s.errorAt(s.tokPos, "expected '=' or a byte width after '!'")
			break
		}
		s.scanWidth(_Load)

	case s.ch == '@':
		s.nextch()
		if !isDigit(s.ch) {
			s.errorAt(s.tokPos, "expected a byte width after '@'")
			break
		}
		s.scanWidth(_Store)

	case s.ch == '=':
		s.nextch()
		s.op(_Eql)

	case s.ch == '-' && isDigit(s.peek()):
		s.scanNumber()

	case s.ch == '+' || s.ch == '-' || s.ch == '*' || s.ch == '/' || s.ch == '%':
		ch := s.ch
		s.nextch()
		s.op(arithOps[ch])

	case s.ch == '<' || s.ch == '>':
		ch := s.ch
		s.nextch()
		tok := _Lss
		if ch == '>' {
			tok = _Gtr
		}
		if s.ch == '=' {
			s.nextch()
			tok++ // _Leq follows _Lss, _Geq follows _Gtr
		}
		s.op(tok)

	case isDigit(s.ch):
		s.scanNumber()

	default:
		s.scanWord()
	}

	if s.err != nil {
		s.tok = _Error
	}
}

var arithOps = map[rune]Token{
	'+': _Add,
	'-': _Sub,
	'*': _Mul,
	'/': _Div,
	'%': _Rem,
}

// Token returns the current token type.
func (s *Scanner) Token() Token { return s.tok }

// Literal returns the source text of the current token. For strings this
// is the raw text between the quotes, escapes unresolved.
func (s *Scanner) Literal() string { return s.lit }

// Str returns the decoded value of the current string token.
func (s *Scanner) Str() string { return s.str }

// Value returns the value of the current integer token.
func (s *Scanner) Value() int64 { return s.val }

// Width returns the byte width of the current load or store token.
func (s *Scanner) Width() int { return s.width }

// Argc returns the argument count of the current syscall token.
func (s *Scanner) Argc() int { return s.argc }

// Pos returns the current token's start position.
func (s *Scanner) Pos() Pos { return s.tokPos }

// Err returns the first lexical error, or nil.
func (s *Scanner) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// Lexeme returns the current token with its payload.
func (s *Scanner) Lexeme() Lexeme {
	return Lexeme{
		Tok:   s.tok,
		Pos:   s.tokPos,
		Lit:   s.lit,
		Str:   s.str,
		Value: s.val,
		Width: s.width,
		Argc:  s.argc,
	}
}

// errorAt records the first lexical error.
func (s *Scanner) errorAt(pos Pos, msg string) {
	if s.err == nil {
		s.err = &Error{Kind: LexError, Pos: pos, Msg: msg}
	}
}

func (s *Scanner) op(tok Token) {
	s.tok = tok
	s.lit = tok.String()
}

// skipLineComment skips from ';' or '#' to the end of the line.
func (s *Scanner) skipLineComment() {
	for s.ch != '\n' && s.ch >= 0 {
		s.nextch()
	}
}

// scanWord scans a run of non-whitespace characters and classifies it as a
// keyword, a syscallN token, or an identifier.
func (s *Scanner) scanWord() {
	s.litBuf.Reset()
	for s.ch >= 0 && !isWhitespace(s.ch) {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}
	s.lit = s.litBuf.String()
	s.tok, s.argc = LookupKeyword(s.lit)
}

// scanDigits accumulates a run of decimal digits into litBuf.
func (s *Scanner) scanDigits() {
	for isDigit(s.ch) {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}
}

// scanNumber scans an optionally negative decimal integer.
func (s *Scanner) scanNumber() {
	s.litBuf.Reset()
	if s.ch == '-' {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}
	s.scanDigits()

	s.lit = s.litBuf.String()
	s.tok = _Int
	v, err := strconv.ParseInt(s.lit, 10, 64)
	if err != nil {
		s.errorAt(s.tokPos, fmt.Sprintf("integer literal %s does not fit in 64 bits", s.lit))
		return
	}
	s.val = v
}

// scanWidth scans the byte width following '!' or '@'.
func (s *Scanner) scanWidth(tok Token) {
	s.litBuf.Reset()
	s.scanDigits()
	digits := s.litBuf.String()

	s.tok = tok
	if tok == _Load {
		s.lit = "!" + digits
	} else {
		s.lit = "@" + digits
	}

	w, err := strconv.Atoi(digits)
	if err != nil || !IsValidWidth(w) {
		s.errorAt(s.tokPos, fmt.Sprintf("unsupported width %s in %s; expected 1, 2, 4 or 8", digits, s.lit))
		return
	}
	s.width = w
}

// scanString scans a string literal. Both the raw text and the decoded
// value are kept.
func (s *Scanner) scanString() {
	s.nextch() // skip opening "
	var raw, val strings.Builder

	for {
		switch {
		case s.ch < 0:
			s.errorAt(s.tokPos, "string literal not terminated")
			return

		case s.ch == '"':
			s.nextch()
			s.tok = _String
			s.lit = raw.String()
			s.str = val.String()
			return

		case s.ch == '\\':
			raw.WriteRune(s.ch)
			s.nextch()
			if s.ch >= 0 {
				raw.WriteRune(s.ch)
			}
			r, ok := s.scanEscape()
			if !ok {
				return
			}
			val.WriteRune(r)

		default:
			raw.WriteRune(s.ch)
			val.WriteRune(s.ch)
			s.nextch()
		}
	}
}

// scanChar scans a character literal such as 'a' or '\n' into an integer
// token holding the character's code.
func (s *Scanner) scanChar() {
	s.litBuf.Reset()
	s.litBuf.WriteRune(s.ch)
	s.nextch() // skip opening '

	var r rune
	switch {
	case s.ch < 0 || s.ch == '\n':
		s.errorAt(s.tokPos, "character literal not terminated")
		return
	case s.ch == '\'':
		s.errorAt(s.tokPos, "empty character literal")
		return
	case s.ch == '\\':
		s.litBuf.WriteRune(s.ch)
		s.nextch()
		if s.ch >= 0 {
			s.litBuf.WriteRune(s.ch)
		}
		var ok bool
		if r, ok = s.scanEscape(); !ok {
			return
		}
	case s.ch >= utf8.RuneSelf:
		s.errorAt(s.tokPos, "character literal must be a single byte")
		return
	default:
		r = s.ch
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}

	if s.ch != '\'' {
		s.errorAt(s.tokPos, "character literal not terminated")
		return
	}
	s.litBuf.WriteRune(s.ch)
	s.nextch()

	s.tok = _Int
	s.lit = s.litBuf.String()
	s.val = int64(r)
}

// scanEscape decodes the escape whose backslash has already been consumed;
// s.ch is the character after the backslash.
func (s *Scanner) scanEscape() (rune, bool) {
	var r rune
	switch s.ch {
	case 'n':
		r = '\n'
	case 'r':
		r = '\r'
	case 't':
		r = '\t'
	case '0':
		r = 0
	case '\\', '"', '\'':
		r = s.ch
	case -1:
		s.errorAt(s.pos(), "escape sequence not terminated")
		return 0, false
	default:
		s.errorAt(s.pos(), fmt.Sprintf("unknown escape sequence \\%c", s.ch))
		return 0, false
	}
	s.nextch()
	return r, true
}

// Tokenize scans the whole source and returns its tokens, ending with an
// EOF token. It stops at the first lexical error.
func Tokenize(filename string, src io.Reader) ([]Lexeme, error) {
	s := NewScanner(filename, src)
	var toks []Lexeme
	for {
		s.Next()
		if s.tok == _Error {
			return nil, s.Err()
		}
		toks = append(toks, s.Lexeme())
		if s.tok == _EOF {
			return toks, nil
		}
	}
}
