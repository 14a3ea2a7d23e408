// Package syntax implements lexical and syntactic analysis for the Stapel
// stack language.
package syntax

import "fmt"

// Token represents the kind of a lexical token.
type Token uint

const (
	// Special tokens
	_EOF   Token = iota // end of file
	_Error              // lexical error

	// Literals
	_Name   // identifier: foo, print-all, buf
	_Int    // integer or character literal: 42, -7, 'a'
	_String // string literal: "hello\n"

	// Infix operators
	_Add // +
	_Sub // -
	_Mul // *
	_Div // /
	_Rem // %
	_Eql // =
	_Neq // !=
	_Lss // <
	_Leq // <=
	_Gtr // >
	_Geq // >=
	_And // and
	_Or  // or

	// Parametrized memory and system tokens
	_Load    // !1 !2 !4 !8
	_Store   // @1 @2 @4 @8
	_Syscall // syscall0 .. syscall6

	// Keywords
	_Do
	_Dup
	_Elif
	_Else
	_End
	_If
	_Inline
	_Memory
	_Over
	_Pick
	_Pop
	_Proc
	_Put
	_Return
	_Rot
	_Size
	_Swap
	_While

	tokenCount
)

// tokenNames maps tokens to their string representation.
var tokenNames = [...]string{
	_EOF:   "EOF",
	_Error: "ERROR",

	_Name:   "NAME",
	_Int:    "INT",
	_String: "STRING",

	_Add: "+",
	_Sub: "-",
	_Mul: "*",
	_Div: "/",
	_Rem: "%",
	_Eql: "=",
	_Neq: "!=",
	_Lss: "<",
	_Leq: "<=",
	_Gtr: ">",
	_Geq: ">=",
	_And: "and",
	_Or:  "or",

	_Load:    "LOAD",
	_Store:   "STORE",
	_Syscall: "SYSCALL",

	_Do:     "do",
	_Dup:    "dup",
	_Elif:   "elif",
	_Else:   "else",
	_End:    "end",
	_If:     "if",
	_Inline: "inline",
	_Memory: "memory",
	_Over:   "over",
	_Pick:   "pick",
	_Pop:    "pop",
	_Proc:   "proc",
	_Put:    "put",
	_Return: "return",
	_Rot:    "rot",
	_Size:   "size",
	_Swap:   "swap",
	_While:  "while",
}

// String returns the string representation of the token.
func (t Token) String() string {
	if t < tokenCount {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", t)
}

// IsOperator reports whether t is an infix operator.
func (t Token) IsOperator() bool {
	return t >= _Add && t <= _Or
}

// IsKeyword reports whether t is a reserved word.
func (t Token) IsKeyword() bool {
	return t >= _Do && t <= _While || t == _And || t == _Or
}

// IsEOF reports whether t is the EOF token.
func (t Token) IsEOF() bool {
	return t == _EOF
}

// Exported operator tokens, used by Infix nodes and the code generator.
const (
	Add Token = _Add
	Sub Token = _Sub
	Mul Token = _Mul
	Div Token = _Div
	Rem Token = _Rem
	Eql Token = _Eql
	Neq Token = _Neq
	Lss Token = _Lss
	Leq Token = _Leq
	Gtr Token = _Gtr
	Geq Token = _Geq
	And Token = _And
	Or  Token = _Or
)

// keywords maps reserved words to their token. Matching is case-sensitive.
var keywords = map[string]Token{
	"and":    _And,
	"do":     _Do,
	"dup":    _Dup,
	"elif":   _Elif,
	"else":   _Else,
	"end":    _End,
	"if":     _If,
	"inline": _Inline,
	"memory": _Memory,
	"or":     _Or,
	"over":   _Over,
	"pick":   _Pick,
	"pop":    _Pop,
	"proc":   _Proc,
	"put":    _Put,
	"return": _Return,
	"rot":    _Rot,
	"size":   _Size,
	"swap":   _Swap,
	"while":  _While,
}

// MaxSyscallArgs is the largest N accepted in syscallN.
const MaxSyscallArgs = 6

// LookupKeyword returns the token for a word. A word of the form syscallN
// with N in 0..6 yields _Syscall and N; any other unreserved word is a _Name.
func LookupKeyword(word string) (Token, int) {
	if tok, ok := keywords[word]; ok {
		return tok, 0
	}
	if len(word) == len("syscall")+1 && word[:len("syscall")] == "syscall" {
		if d := word[len(word)-1]; d >= '0' && d <= '0'+MaxSyscallArgs {
			return _Syscall, int(d - '0')
		}
	}
	return _Name, 0
}

// validWidths lists the byte widths accepted by load and store.
var validWidths = map[int]bool{1: true, 2: true, 4: true, 8: true}

// IsValidWidth reports whether w is a supported load/store width in bytes.
func IsValidWidth(w int) bool {
	return validWidths[w]
}

// Lexeme is a scanned token together with its span and payload.
type Lexeme struct {
	Tok   Token
	Pos   Pos
	Lit   string // source text; for strings the raw text between the quotes
	Str   string // decoded string value (_String only)
	Value int64  // integer value (_Int only)
	Width int    // byte width (_Load, _Store)
	Argc  int    // argument count (_Syscall)
}

// String renders the lexeme for token dumps.
func (l Lexeme) String() string {
	switch l.Tok {
	case _Name:
		return fmt.Sprintf("NAME(%s)", l.Lit)
	case _Int:
		return fmt.Sprintf("INT(%d)", l.Value)
	case _String:
		return fmt.Sprintf("STRING(%q)", l.Lit)
	case _Load:
		return fmt.Sprintf("LOAD(%d)", l.Width)
	case _Store:
		return fmt.Sprintf("STORE(%d)", l.Width)
	case _Syscall:
		return fmt.Sprintf("SYSCALL(%d)", l.Argc)
	}
	return l.Tok.String()
}
