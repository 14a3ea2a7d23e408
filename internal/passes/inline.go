package passes

import (
	"github.com/you-not-fish/stapel/internal/syntax"
)

// Inline splices inline bodies into every procedure, replacing each
// identifier that names an inline. Expansion is recursive: inlines may use
// other inlines. An inline that reaches itself, directly or through others,
// fails with a *syntax.CycleError; every inline is checked, used or not.
// Inline declarations themselves are left untouched.
func Inline(prog *syntax.Program) error {
	if err := syntax.CheckInlineCycles(prog); err != nil {
		return err
	}

	for _, d := range prog.ProcList() {
		e := &expander{prog: prog}
		if err := e.block(d.Body); err != nil {
			return err
		}
		log.Debugf("expanded inlines in %s", d.Name)
	}
	return nil
}

// Expand expands inline references in b in place.
func Expand(prog *syntax.Program, b *syntax.Block) error {
	e := &expander{prog: prog}
	return e.block(b)
}

// expander holds the inlines on the active expansion path.
type expander struct {
	prog   *syntax.Program
	active []string
}

// block expands b in place, scanning from the last instruction to the
// first so a splice at i leaves indices below i valid.
func (e *expander) block(b *syntax.Block) error {
	if b == nil {
		return nil
	}
	for i := len(b.List) - 1; i >= 0; i-- {
		switch x := b.List[i].(type) {
		case *syntax.Ident:
			d, ok := e.prog.Inlines[x.Name]
			if !ok {
				continue
			}
			body, err := e.expand(d, x.Pos())
			if err != nil {
				return err
			}
			b.List = splice(b.List, i, body.List)

		case *syntax.If:
			if err := e.block(x.Cond); err != nil {
				return err
			}
			if err := e.block(x.Body); err != nil {
				return err
			}
			for _, el := range x.Elifs {
				if err := e.block(el.Cond); err != nil {
					return err
				}
				if err := e.block(el.Body); err != nil {
					return err
				}
			}
			if err := e.block(x.Else); err != nil {
				return err
			}

		case *syntax.While:
			if err := e.block(x.Cond); err != nil {
				return err
			}
			if err := e.block(x.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// expand returns a fully expanded copy of d's body. pos is the use site,
// reported if d is already on the active path.
func (e *expander) expand(d *syntax.InlineDecl, pos syntax.Pos) (*syntax.Block, error) {
	for k, name := range e.active {
		if name == d.Name {
			return nil, &syntax.CycleError{
				Pos:   pos,
				Chain: append([]string(nil), e.active[k:]...),
			}
		}
	}

	e.active = append(e.active, d.Name)
	defer func() { e.active = e.active[:len(e.active)-1] }()

	body := syntax.CloneBlock(d.Body)
	if err := e.block(body); err != nil {
		return nil, err
	}
	return body, nil
}

// splice replaces list[i] with repl.
func splice(list []syntax.Instr, i int, repl []syntax.Instr) []syntax.Instr {
	out := make([]syntax.Instr, 0, len(list)-1+len(repl))
	out = append(out, list[:i]...)
	out = append(out, repl...)
	return append(out, list[i+1:]...)
}
