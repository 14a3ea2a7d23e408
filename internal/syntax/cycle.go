package syntax

// CheckInlineCycles reports the first inline that reaches itself, directly
// or through other inlines, as a *CycleError. Every inline is checked in
// declaration order whether or not any procedure uses it.
//
// The walk visits uses in the order inline expansion does: instructions of
// a block from last to first, nested blocks condition first. The error
// therefore names the same use site and chain no matter which stage runs
// the check.
func CheckInlineCycles(prog *Program) error {
	for _, d := range prog.Decls {
		if d, ok := d.(*InlineDecl); ok {
			c := &cycleChecker{prog: prog, done: make(map[string]bool)}
			if err := c.visit(d, d.NamePos); err != nil {
				return err
			}
		}
	}
	return nil
}

type cycleChecker struct {
	prog   *Program
	active []string        // inlines on the current path, outermost first
	done   map[string]bool // inlines fully explored without a cycle
}

func (c *cycleChecker) visit(d *InlineDecl, pos Pos) error {
	for k, name := range c.active {
		if name == d.Name {
			return &CycleError{Pos: pos, Chain: append([]string(nil), c.active[k:]...)}
		}
	}
	if c.done[d.Name] {
		return nil
	}

	c.active = append(c.active, d.Name)
	err := c.block(d.Body)
	c.active = c.active[:len(c.active)-1]
	if err == nil {
		c.done[d.Name] = true
	}
	return err
}

func (c *cycleChecker) block(b *Block) error {
	if b == nil {
		return nil
	}
	for i := len(b.List) - 1; i >= 0; i-- {
		var err error
		switch x := b.List[i].(type) {
		case *Ident:
			if d, ok := c.prog.Inlines[x.Name]; ok {
				err = c.visit(d, x.Pos())
			}
		case *If:
			err = c.blocks(x.Cond, x.Body)
			for _, e := range x.Elifs {
				if err == nil {
					err = c.blocks(e.Cond, e.Body)
				}
			}
			if err == nil {
				err = c.block(x.Else)
			}
		case *While:
			err = c.blocks(x.Cond, x.Body)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *cycleChecker) blocks(list ...*Block) error {
	for _, b := range list {
		if err := c.block(b); err != nil {
			return err
		}
	}
	return nil
}
