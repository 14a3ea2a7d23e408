package syntax

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes an indented textual representation of prog to w.
func Fprint(w io.Writer, prog *Program) error {
	p := &printer{w: w}
	p.printf("Program %s\n", prog.Filename)
	p.indent++
	for _, d := range prog.Decls {
		p.print(d)
	}
	return p.err
}

type printer struct {
	w      io.Writer
	indent int
	err    error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

func (p *printer) block(label string, b *Block) {
	if b == nil {
		return
	}
	p.printf("%s:\n", label)
	p.indent++
	for _, x := range b.List {
		p.print(x)
	}
	p.indent--
}

func (p *printer) print(node Node) {
	switch n := node.(type) {
	case *ProcDecl:
		p.printf("ProcDecl %s %s\n", n.Name, n.pos)
		p.indent++
		p.block("Body", n.Body)
		p.indent--

	case *InlineDecl:
		p.printf("InlineDecl %s %s\n", n.Name, n.pos)
		p.indent++
		p.block("Body", n.Body)
		p.indent--

	case *MemoryDecl:
		p.printf("MemoryDecl %s %d %s\n", n.Name, n.Size, n.pos)

	case *If:
		p.printf("If %s\n", n.pos)
		p.indent++
		p.block("Cond", n.Cond)
		p.block("Body", n.Body)
		for _, e := range n.Elifs {
			p.printf("Elif %s\n", e.pos)
			p.indent++
			p.block("Cond", e.Cond)
			p.block("Body", e.Body)
			p.indent--
		}
		p.block("Else", n.Else)
		p.indent--

	case *While:
		p.printf("While %s\n", n.pos)
		p.indent++
		p.block("Cond", n.Cond)
		p.block("Body", n.Body)
		p.indent--

	case Instr:
		p.printf("%s %s\n", FormatInstr(n), n.Pos())

	default:
		p.printf("%T\n", n)
	}
}
