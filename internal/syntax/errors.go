package syntax

import (
	"fmt"
	"strings"
)

// ErrorKind classifies compile errors raised by this package.
type ErrorKind uint8

const (
	LexError            ErrorKind = iota // malformed token
	ParseError                           // grammar violation
	TopLevelInstruction                  // bare instruction outside a declaration
	DuplicateIdentifier                  // name declared twice in the shared namespace
	MissingEntryPoint                    // no procedure named main
)

var errorKindNames = [...]string{
	LexError:            "lex error",
	ParseError:          "parse error",
	TopLevelInstruction: "top-level instruction",
	DuplicateIdentifier: "duplicate identifier",
	MissingEntryPoint:   "missing entry point",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Error is a lexical or syntactic error. Compilation stops at the first one.
type Error struct {
	Kind ErrorKind
	Pos  Pos
	Msg  string
}

func (e *Error) Error() string {
	return prefix(e.Pos) + e.Kind.String() + ": " + e.Msg
}

// CycleError reports an inline that expands, directly or through other
// inlines, into itself. Chain lists the inlines on the cycle in expansion
// order, starting with the one that was re-entered.
type CycleError struct {
	Pos   Pos
	Chain []string
}

func (e *CycleError) Error() string {
	if len(e.Chain) == 0 {
		return prefix(e.Pos) + "cyclic inline expansion"
	}
	path := append(append([]string(nil), e.Chain...), e.Chain[0])
	return prefix(e.Pos) + "cyclic inline expansion: " + strings.Join(path, " -> ")
}

// prefix formats the location part of a diagnostic.
func prefix(pos Pos) string {
	switch {
	case pos.IsValid():
		return pos.String() + ": "
	case pos.Filename() != "":
		return pos.Filename() + ": "
	}
	return ""
}
