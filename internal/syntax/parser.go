package syntax

import (
	"fmt"
	"io"
)

// maxDepth bounds the nesting of if and while blocks.
const maxDepth = 512

// Parser performs syntax analysis on a token sequence produced by Tokenize.
// Parsing stops at the first error.
type Parser struct {
	filename string
	toks     []Lexeme
	idx      int // index of the token after tok

	tok Lexeme // current token

	prog  *Program
	err   error // first error encountered
	depth int   // if/while nesting depth
}

// NewParser creates a Parser over toks. The sequence normally ends with an
// EOF token; running off the end behaves as if it did.
func NewParser(filename string, toks []Lexeme) *Parser {
	p := &Parser{
		filename: filename,
		toks:     toks,
		prog:     NewProgram(filename),
	}
	p.next() // prime the parser with first token
	return p
}

// Parse tokenizes and parses src in one step.
func Parse(filename string, src io.Reader) (*Program, error) {
	toks, err := Tokenize(filename, src)
	if err != nil {
		return nil, err
	}
	return NewParser(filename, toks).Parse()
}

// ----------------------------------------------------------------------------
// Token navigation

// next advances to the next token.
func (p *Parser) next() {
	if p.idx < len(p.toks) {
		p.tok = p.toks[p.idx]
		p.idx++
		return
	}
	pos := NewPos(p.filename, 1, 1)
	if n := len(p.toks); n > 0 {
		pos = p.toks[n-1].Pos
	}
	p.tok = Lexeme{Tok: _EOF, Pos: pos}
}

// got reports whether the current token is tok.
// If so, it consumes the token and returns true.
func (p *Parser) got(tok Token) bool {
	if p.tok.Tok == tok {
		p.next()
		return true
	}
	return false
}

// want consumes the current token if it matches tok.
// Otherwise, it reports an error naming what was being parsed.
func (p *Parser) want(tok Token, context string) {
	if !p.got(tok) {
		p.syntaxError(fmt.Sprintf("expected %s %s, found %s", tok, context, describe(p.tok)))
	}
}

// at reports whether the current token is one of toks.
func (p *Parser) at(toks []Token) bool {
	for _, t := range toks {
		if p.tok.Tok == t {
			return true
		}
	}
	return false
}

// describe renders a token for error messages.
func describe(l Lexeme) string {
	switch l.Tok {
	case _EOF:
		return "end of file"
	case _Name:
		return "name " + l.Lit
	case _Int:
		return "integer " + l.Lit
	case _String:
		return fmt.Sprintf("string %q", l.Lit)
	case _Load, _Store, _Syscall:
		return l.Lit
	}
	return fmt.Sprintf("%q", l.Tok.String())
}

// ----------------------------------------------------------------------------
// Error handling

// syntaxError reports a ParseError at the current token.
func (p *Parser) syntaxError(msg string) {
	p.errorAt(ParseError, p.tok.Pos, msg)
}

// errorAt records the first error and stops the parse by jumping to EOF.
func (p *Parser) errorAt(kind ErrorKind, pos Pos, msg string) {
	p.fail(&Error{Kind: kind, Pos: pos, Msg: msg})
}

func (p *Parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
	p.idx = len(p.toks)
	p.tok = Lexeme{Tok: _EOF, Pos: p.tok.Pos}
}

// ----------------------------------------------------------------------------
// Program

// Parse parses the whole token sequence into a Program.
func (p *Parser) Parse() (*Program, error) {
	for p.tok.Tok != _EOF {
		switch p.tok.Tok {
		case _Proc:
			p.procDecl()
		case _Inline:
			p.inlineDecl()
		case _Memory:
			p.memoryDecl()
		default:
			if startsInstr(p.tok.Tok) {
				p.errorAt(TopLevelInstruction, p.tok.Pos,
					fmt.Sprintf("%s outside of a declaration", describe(p.tok)))
			} else {
				p.syntaxError(fmt.Sprintf("unexpected %s at top level", describe(p.tok)))
			}
		}
	}
	if p.err != nil {
		return nil, p.err
	}

	if p.prog.Main() == nil {
		return nil, &Error{
			Kind: MissingEntryPoint,
			Pos:  p.tok.Pos,
			Msg:  "no procedure named " + EntryPoint,
		}
	}
	return p.prog, nil
}

// Program returns the declarations parsed so far. After a failed Parse it
// holds every declaration completed before the error, which is enough for
// editor navigation.
func (p *Parser) Program() *Program {
	return p.prog
}

// name parses the identifier following a declaration keyword.
func (p *Parser) name(what string) (string, Pos) {
	if p.tok.Tok != _Name {
		p.syntaxError(fmt.Sprintf("expected %s name, found %s", what, describe(p.tok)))
		return "", Pos{}
	}
	name, pos := p.tok.Lit, p.tok.Pos
	p.next()
	return name, pos
}

// unique reports a DuplicateIdentifier if d's name is already taken. The
// check runs as soon as the name is read so the error points at the
// redeclaration rather than at a later syntax error in its body.
func (p *Parser) unique(d Decl) bool {
	if err := p.prog.checkUnique(d); err != nil {
		p.fail(err)
		return false
	}
	return true
}

// declare registers a fully parsed declaration. Declarations cut short by
// an error are never registered, so Program only ever holds complete ones.
func (p *Parser) declare(d Decl) {
	if p.err != nil {
		return
	}
	if err := p.prog.Declare(d); err != nil {
		p.fail(err)
	}
}

// procDecl parses proc NAME do BODY end.
func (p *Parser) procDecl() {
	d := &ProcDecl{}
	d.pos = p.tok.Pos
	p.next() // consume proc

	if d.Name, d.NamePos = p.name("procedure"); p.err != nil {
		return
	}
	if !p.unique(d) {
		return
	}

	p.want(_Do, "after procedure name "+d.Name)
	d.Body = p.block("procedure "+d.Name, _End)
	endPos := p.tok.Pos
	p.want(_End, "to close procedure "+d.Name)
	if p.err != nil {
		return
	}

	// The entry procedure keeps its trailing return too; code generation
	// lowers return in main to process exit.
	if !endsInReturn(d.Body) {
		ret := &Return{}
		ret.pos = endPos
		d.Body.List = append(d.Body.List, ret)
	}
	p.declare(d)
}

func endsInReturn(b *Block) bool {
	if n := len(b.List); n > 0 {
		_, ok := b.List[n-1].(*Return)
		return ok
	}
	return false
}

// inlineDecl parses inline NAME [do] BODY end.
func (p *Parser) inlineDecl() {
	d := &InlineDecl{}
	d.pos = p.tok.Pos
	p.next() // consume inline

	if d.Name, d.NamePos = p.name("inline"); p.err != nil {
		return
	}
	if !p.unique(d) {
		return
	}

	p.got(_Do)
	d.Body = p.block("inline "+d.Name, _End)
	p.want(_End, "to close inline "+d.Name)
	p.declare(d)
}

// memoryDecl parses memory NAME SIZE end.
func (p *Parser) memoryDecl() {
	d := &MemoryDecl{}
	d.pos = p.tok.Pos
	p.next() // consume memory

	if d.Name, d.NamePos = p.name("memory"); p.err != nil {
		return
	}
	if !p.unique(d) {
		return
	}

	if p.tok.Tok != _Int || p.tok.Value <= 0 {
		p.syntaxError(fmt.Sprintf("expected positive size for memory %s, found %s", d.Name, describe(p.tok)))
		return
	}
	d.Size = p.tok.Value
	p.next()
	p.want(_End, "to close memory "+d.Name)
	p.declare(d)
}

// ----------------------------------------------------------------------------
// Blocks and instructions

// block parses instructions until the current token is one of closers. The
// closing token is not consumed.
func (p *Parser) block(context string, closers ...Token) *Block {
	b := &Block{}
	b.pos = p.tok.Pos
	for !p.at(closers) {
		if p.tok.Tok == _EOF {
			if p.err == nil {
				p.syntaxError("unexpected end of file in " + context)
			}
			return b
		}
		x := p.instr()
		if x == nil {
			return b
		}
		b.List = append(b.List, x)
	}
	return b
}

// startsInstr reports whether tok begins an instruction.
func startsInstr(tok Token) bool {
	switch tok {
	case _Int, _String, _Name, _Load, _Store, _Syscall,
		_Pop, _Dup, _Swap, _Over, _Rot, _Pick, _Put, _Size, _Return,
		_If, _While:
		return true
	}
	return tok.IsOperator()
}

// instr parses a single instruction. It returns nil after an error.
func (p *Parser) instr() Instr {
	t := p.tok
	var x Instr

	switch t.Tok {
	case _If:
		return p.ifInstr()
	case _While:
		return p.whileInstr()

	case _Int:
		x = &PushInt{Value: t.Value}
	case _String:
		x = &PushStr{Value: t.Str, Raw: t.Lit}
	case _Name:
		x = &Ident{Name: t.Lit}
	case _Load:
		x = &Load{Width: t.Width}
	case _Store:
		x = &Store{Width: t.Width}
	case _Syscall:
		x = &Syscall{Argc: t.Argc}
	case _Pop:
		x = &Pop{}
	case _Dup:
		x = &Dup{}
	case _Swap:
		x = &Swap{}
	case _Over:
		x = &Over{}
	case _Rot:
		x = &Rot{}
	case _Pick:
		x = &Pick{}
	case _Put:
		x = &Put{}
	case _Size:
		x = &Size{}
	case _Return:
		x = &Return{}

	case _Proc, _Inline, _Memory:
		p.syntaxError(fmt.Sprintf("%s declaration inside a block", t.Tok))
		return nil

	default:
		if !t.Tok.IsOperator() {
			p.syntaxError("unexpected " + describe(t))
			return nil
		}
		x = &Infix{Op: t.Tok}
	}

	x.(interface{ SetPos(Pos) }).SetPos(t.Pos)
	p.next()
	return x
}

// nest enters an if or while block.
func (p *Parser) nest() bool {
	p.depth++
	if p.depth > maxDepth {
		p.syntaxError(fmt.Sprintf("blocks nested deeper than %d levels", maxDepth))
		return false
	}
	return true
}

// ifInstr parses if COND do BODY {elif COND do BODY} [else BODY] end.
func (p *Parser) ifInstr() Instr {
	x := &If{}
	x.pos = p.tok.Pos
	defer func() { p.depth-- }()
	if !p.nest() {
		return nil
	}
	p.next() // consume if

	x.Cond = p.block("if condition", _Do)
	p.want(_Do, "after if condition")
	x.Body = p.block("if body", _Elif, _Else, _End)

	for p.tok.Tok == _Elif {
		e := &Elif{}
		e.pos = p.tok.Pos
		p.next()
		e.Cond = p.block("elif condition", _Do)
		p.want(_Do, "after elif condition")
		e.Body = p.block("elif body", _Elif, _Else, _End)
		x.Elifs = append(x.Elifs, e)
	}

	if p.got(_Else) {
		x.Else = p.block("else body", _End)
	}
	p.want(_End, "to close if")

	if p.err != nil {
		return nil
	}
	return x
}

// whileInstr parses while COND do BODY end.
func (p *Parser) whileInstr() Instr {
	x := &While{}
	x.pos = p.tok.Pos
	defer func() { p.depth-- }()
	if !p.nest() {
		return nil
	}
	p.next() // consume while

	x.Cond = p.block("while condition", _Do)
	p.want(_Do, "after while condition")
	x.Body = p.block("while body", _End)
	p.want(_End, "to close while")

	if p.err != nil {
		return nil
	}
	return x
}
