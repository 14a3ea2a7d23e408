package syntax

import (
	"fmt"
	"strings"
)

// ----------------------------------------------------------------------------
// Interfaces
//
// A program is a list of declarations. Procedure and inline declarations own
// a Block of instructions; control instructions own further Blocks, so every
// body is a strict tree.

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Pos // position of the first token belonging to the node
	aNode()   // marker method to restrict implementations to this package
}

// Instr is the interface for all instruction nodes. The set of
// implementations is closed; type switches over Instr list every case and
// panic on anything else.
type Instr interface {
	Node
	aInstr()
}

// Decl is the interface for top-level declarations.
type Decl interface {
	Node
	DeclName() string
	aDecl()
}

// ----------------------------------------------------------------------------
// Base node types

// node is the base struct embedded in all AST nodes.
type node struct {
	pos Pos
}

func (n *node) Pos() Pos { return n.pos }
func (n *node) aNode()   {}

// SetPos sets the node position. It is used by code that builds nodes
// outside the parser.
func (n *node) SetPos(pos Pos) { n.pos = pos }

// instr is embedded in all instruction nodes.
type instr struct{ node }

func (*instr) aInstr() {}

// decl is embedded in all declaration nodes.
type decl struct{ node }

func (*decl) aDecl() {}

// ----------------------------------------------------------------------------
// Declarations

// ProcDecl represents proc NAME do BODY end.
type ProcDecl struct {
	decl
	Name    string
	NamePos Pos
	Body    *Block
}

// InlineDecl represents inline NAME BODY end.
type InlineDecl struct {
	decl
	Name    string
	NamePos Pos
	Body    *Block
}

// MemoryDecl represents memory NAME SIZE end.
type MemoryDecl struct {
	decl
	Name    string
	NamePos Pos
	Size    int64 // bytes
}

func (d *ProcDecl) DeclName() string   { return d.Name }
func (d *InlineDecl) DeclName() string { return d.Name }
func (d *MemoryDecl) DeclName() string { return d.Name }

// ----------------------------------------------------------------------------
// Blocks

// Block is an ordered sequence of instructions.
type Block struct {
	node
	List []Instr
}

// Elif is one elif COND do BODY arm of an If.
type Elif struct {
	node
	Cond *Block
	Body *Block
}

// ----------------------------------------------------------------------------
// Instructions

type (
	// PushInt pushes an integer or character literal.
	PushInt struct {
		instr
		Value int64
	}

	// PushStr pushes the length and address of an interned string.
	PushStr struct {
		instr
		Value string // escapes resolved
		Raw   string // source text between the quotes
	}

	// Infix pops two values and pushes the result of Op.
	Infix struct {
		instr
		Op Token // one of Add .. Or
	}

	Pop    struct{ instr }
	Dup    struct{ instr }
	Swap   struct{ instr }
	Over   struct{ instr }
	Rot    struct{ instr }
	Pick   struct{ instr }
	Put    struct{ instr }
	Size   struct{ instr }
	Return struct{ instr }

	// Load pops an address and pushes the Width-byte value stored there.
	Load struct {
		instr
		Width int
	}

	// Store pops a value, then an address, and writes Width bytes.
	Store struct {
		instr
		Width int
	}

	// Syscall pops Argc values into the syscall registers and pushes the
	// result.
	Syscall struct {
		instr
		Argc int
	}

	// Ident is an unresolved name: a procedure call, an inline expansion
	// site or a memory reference.
	Ident struct {
		instr
		Name string
	}

	// If represents if COND do BODY {elif COND do BODY} [else BODY] end.
	If struct {
		instr
		Cond  *Block
		Body  *Block
		Elifs []*Elif
		Else  *Block // nil if absent
	}

	// While represents while COND do BODY end.
	While struct {
		instr
		Cond *Block
		Body *Block
	}
)

// ----------------------------------------------------------------------------
// Program

// Program is the result of parsing one source file. Procedures, inlines and
// memory regions share a single namespace.
type Program struct {
	Filename string
	Decls    []Decl // declaration order

	Procs    map[string]*ProcDecl
	Inlines  map[string]*InlineDecl
	Memories map[string]*MemoryDecl
}

// NewProgram returns an empty program for filename.
func NewProgram(filename string) *Program {
	return &Program{
		Filename: filename,
		Procs:    make(map[string]*ProcDecl),
		Inlines:  make(map[string]*InlineDecl),
		Memories: make(map[string]*MemoryDecl),
	}
}

// Lookup returns the declaration named name, or nil.
func (p *Program) Lookup(name string) Decl {
	if d, ok := p.Procs[name]; ok {
		return d
	}
	if d, ok := p.Inlines[name]; ok {
		return d
	}
	if d, ok := p.Memories[name]; ok {
		return d
	}
	return nil
}

// Declare adds d to the program. It fails with DuplicateIdentifier if the
// name is already taken by any kind of declaration.
func (p *Program) Declare(d Decl) error {
	if err := p.checkUnique(d); err != nil {
		return err
	}
	name := d.DeclName()
	switch d := d.(type) {
	case *ProcDecl:
		p.Procs[name] = d
	case *InlineDecl:
		p.Inlines[name] = d
	case *MemoryDecl:
		p.Memories[name] = d
	default:
		panic(fmt.Sprintf("syntax: unexpected declaration %T", d))
	}
	p.Decls = append(p.Decls, d)
	return nil
}

// checkUnique reports a DuplicateIdentifier if d's name is already taken.
func (p *Program) checkUnique(d Decl) error {
	name := d.DeclName()
	if prev := p.Lookup(name); prev != nil {
		return &Error{
			Kind: DuplicateIdentifier,
			Pos:  d.Pos(),
			Msg:  fmt.Sprintf("%s redeclared; previous declaration at %s", name, prev.Pos()),
		}
	}
	return nil
}

// Main returns the entry procedure, or nil.
func (p *Program) Main() *ProcDecl {
	return p.Procs[EntryPoint]
}

// EntryPoint is the name of the procedure the program starts in.
const EntryPoint = "main"

// ProcList returns the procedures in declaration order.
func (p *Program) ProcList() []*ProcDecl {
	var list []*ProcDecl
	for _, d := range p.Decls {
		if d, ok := d.(*ProcDecl); ok {
			list = append(list, d)
		}
	}
	return list
}

// MemoryList returns the memory regions in declaration order.
func (p *Program) MemoryList() []*MemoryDecl {
	var list []*MemoryDecl
	for _, d := range p.Decls {
		if d, ok := d.(*MemoryDecl); ok {
			list = append(list, d)
		}
	}
	return list
}

// ----------------------------------------------------------------------------
// Copying

// CloneBlock returns a deep copy of b. Positions are preserved.
func CloneBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	c := &Block{node: b.node, List: make([]Instr, len(b.List))}
	for i, x := range b.List {
		c.List[i] = CloneInstr(x)
	}
	return c
}

// CloneInstr returns a deep copy of x.
func CloneInstr(x Instr) Instr {
	switch x := x.(type) {
	case *If:
		c := &If{
			instr: x.instr,
			Cond:  CloneBlock(x.Cond),
			Body:  CloneBlock(x.Body),
			Else:  CloneBlock(x.Else),
		}
		for _, e := range x.Elifs {
			c.Elifs = append(c.Elifs, &Elif{node: e.node, Cond: CloneBlock(e.Cond), Body: CloneBlock(e.Body)})
		}
		return c
	case *While:
		return &While{instr: x.instr, Cond: CloneBlock(x.Cond), Body: CloneBlock(x.Body)}
	case *PushInt:
		c := *x
		return &c
	case *PushStr:
		c := *x
		return &c
	case *Infix:
		c := *x
		return &c
	case *Pop:
		c := *x
		return &c
	case *Dup:
		c := *x
		return &c
	case *Swap:
		c := *x
		return &c
	case *Over:
		c := *x
		return &c
	case *Rot:
		c := *x
		return &c
	case *Pick:
		c := *x
		return &c
	case *Put:
		c := *x
		return &c
	case *Size:
		c := *x
		return &c
	case *Return:
		c := *x
		return &c
	case *Load:
		c := *x
		return &c
	case *Store:
		c := *x
		return &c
	case *Syscall:
		c := *x
		return &c
	case *Ident:
		c := *x
		return &c
	}
	panic(fmt.Sprintf("syntax: unexpected instruction %T", x))
}

// ----------------------------------------------------------------------------
// Compact formatting

// FormatBlock renders b on one line, e.g. [PushInt(5), Dup, Infix(+), Put].
func FormatBlock(b *Block) string {
	var sb strings.Builder
	formatBlock(&sb, b)
	return sb.String()
}

// FormatInstr renders a single instruction on one line.
func FormatInstr(x Instr) string {
	var sb strings.Builder
	formatInstr(&sb, x)
	return sb.String()
}

func formatBlock(sb *strings.Builder, b *Block) {
	sb.WriteByte('[')
	if b != nil {
		for i, x := range b.List {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatInstr(sb, x)
		}
	}
	sb.WriteByte(']')
}

func formatInstr(sb *strings.Builder, x Instr) {
	switch x := x.(type) {
	case *PushInt:
		fmt.Fprintf(sb, "PushInt(%d)", x.Value)
	case *PushStr:
		fmt.Fprintf(sb, "PushStr(%q)", x.Raw)
	case *Infix:
		fmt.Fprintf(sb, "Infix(%s)", x.Op)
	case *Pop:
		sb.WriteString("Pop")
	case *Dup:
		sb.WriteString("Dup")
	case *Swap:
		sb.WriteString("Swap")
	case *Over:
		sb.WriteString("Over")
	case *Rot:
		sb.WriteString("Rot")
	case *Pick:
		sb.WriteString("Pick")
	case *Put:
		sb.WriteString("Put")
	case *Size:
		sb.WriteString("Size")
	case *Return:
		sb.WriteString("Return")
	case *Load:
		fmt.Fprintf(sb, "Load(%d)", x.Width)
	case *Store:
		fmt.Fprintf(sb, "Store(%d)", x.Width)
	case *Syscall:
		fmt.Fprintf(sb, "Syscall(%d)", x.Argc)
	case *Ident:
		fmt.Fprintf(sb, "Ident(%s)", x.Name)
	case *If:
		sb.WriteString("If(")
		formatBlock(sb, x.Cond)
		sb.WriteByte(' ')
		formatBlock(sb, x.Body)
		for _, e := range x.Elifs {
			sb.WriteString(" elif ")
			formatBlock(sb, e.Cond)
			sb.WriteByte(' ')
			formatBlock(sb, e.Body)
		}
		if x.Else != nil {
			sb.WriteString(" else ")
			formatBlock(sb, x.Else)
		}
		sb.WriteByte(')')
	case *While:
		sb.WriteString("While(")
		formatBlock(sb, x.Cond)
		sb.WriteByte(' ')
		formatBlock(sb, x.Body)
		sb.WriteByte(')')
	default:
		panic(fmt.Sprintf("syntax: unexpected instruction %T", x))
	}
}
