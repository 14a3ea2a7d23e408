package syntax

import "fmt"

// Pos is a source span: the file, line, and column where a token or
// instruction starts. The zero value is an invalid position.
type Pos struct {
	filename string // source file name
	line     uint32 // 1-based line number
	col      uint32 // 1-based column number, counted in runes
}

// NewPos creates a new Pos. Line and column numbers are 1-based.
func NewPos(filename string, line, col uint32) Pos {
	return Pos{filename: filename, line: line, col: col}
}

// String returns "filename:line:col", or "line:col" if the filename is empty.
func (p Pos) String() string {
	if p.filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.filename, p.line, p.col)
	}
	return fmt.Sprintf("%d:%d", p.line, p.col)
}

// IsValid reports whether the position refers to a real source location.
func (p Pos) IsValid() bool {
	return p.line > 0
}

// Line returns the 1-based line number.
func (p Pos) Line() uint32 { return p.line }

// Col returns the 1-based column number.
func (p Pos) Col() uint32 { return p.col }

// Filename returns the source file name.
func (p Pos) Filename() string { return p.filename }

// MarshalText renders the position in its String form so AST dumps
// carry readable spans.
func (p Pos) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
