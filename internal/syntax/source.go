package syntax

import (
	"io"
	"unicode/utf8"
)

// source is a character reader with position tracking and one rune of
// lookahead. The whole input is read into memory up front.
type source struct {
	// Input
	buf []byte // source buffer, the whole file

	// Position tracking
	filename string
	line     uint32 // line of ch (1-based)
	col      uint32 // column of ch (1-based, in runes)

	// Current state
	ch   rune // current character, -1 at EOF
	offs int  // byte offset just past ch

	// Error handling
	errh func(line, col uint32, msg string)
}

// newSource reads src into memory and positions the reader on the first
// character. errh receives read and encoding errors.
func newSource(filename string, src io.Reader, errh func(line, col uint32, msg string)) *source {
	s := &source{
		filename: filename,
		line:     1,
		col:      0,  // incremented to 1 by the first nextch
		ch:       -1, // before the first character; nextch must not see '\n'
		errh:     errh,
	}

	// Read the entire source up front
	var err error
	s.buf, err = io.ReadAll(src)
	if err != nil {
		s.error("error reading source file: " + err.Error())
		s.ch = -1
		return s
	}

	s.nextch()
	return s
}

// nextch advances to the next character. s.ch is -1 at EOF.
//
// Position tracking: (line, col) is always the position of s.ch once
// nextch returns. The reader starts at line=1, col=0 with s.ch=-1, so the
// first call lands on line=1, col=1. The position moves for the character
// being left behind: after a newline the next character is at column 1 of
// the following line, otherwise one column to the right. EOF therefore
// sits one column past the last character, or at column 1 of a new line
// when the file ends in a newline.
//
// Columns count runes, not bytes. A multi-byte character advances offs by
// its encoded width but col by one.
func (s *source) nextch() {
	// Step past the previous character first.
	if s.ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++ // includes the initial 0 -> 1
	}

	if s.offs >= len(s.buf) {
		s.ch = -1
		return
	}

	r, width := utf8.DecodeRune(s.buf[s.offs:])
	if r == utf8.RuneError && width == 1 {
		s.error("invalid UTF-8 encoding")
		// Keep going with the replacement character; the byte is consumed.
	}

	s.ch = r
	s.offs += width
}

// peek returns the character after ch without consuming anything. The
// scanner uses it to tell a negative literal (-1) from subtraction (- 1).
func (s *source) peek() rune {
	if s.offs >= len(s.buf) {
		return -1
	}
	r, _ := utf8.DecodeRune(s.buf[s.offs:])
	return r
}

// pos returns the position of the current character.
func (s *source) pos() Pos {
	return NewPos(s.filename, s.line, s.col)
}

// error reports an error at the current position.
func (s *source) error(msg string) {
	if s.errh != nil {
		s.errh(s.line, s.col, msg)
	}
}

// isDigit reports whether r is a decimal digit.
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// isWhitespace reports whether r separates tokens. Newlines are plain
// whitespace here; the language has no statement terminators.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\v' || r == '\f'
}
