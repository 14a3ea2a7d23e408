package syntax

import "fmt"

// Visitor is called for each node during Walk.
// If it returns false, the children of the node are not visited.
type Visitor func(node Node) bool

// Walk traverses an AST in depth-first order.
// If visitor returns false, children are not visited.
func Walk(node Node, v Visitor) {
	if node == nil || !v(node) {
		return
	}

	switch n := node.(type) {
	case *ProcDecl:
		walkBlock(n.Body, v)

	case *InlineDecl:
		walkBlock(n.Body, v)

	case *Block:
		for _, x := range n.List {
			Walk(x, v)
		}

	case *If:
		walkBlock(n.Cond, v)
		walkBlock(n.Body, v)
		for _, e := range n.Elifs {
			Walk(e, v)
		}
		walkBlock(n.Else, v)

	case *Elif:
		walkBlock(n.Cond, v)
		walkBlock(n.Body, v)

	case *While:
		walkBlock(n.Cond, v)
		walkBlock(n.Body, v)

	case *MemoryDecl, *PushInt, *PushStr, *Infix, *Pop, *Dup, *Swap, *Over,
		*Rot, *Pick, *Put, *Size, *Return, *Load, *Store, *Syscall, *Ident:
		// leaves

	default:
		panic(fmt.Sprintf("syntax.Walk: unexpected node type %T", n))
	}
}

func walkBlock(b *Block, v Visitor) {
	if b != nil {
		Walk(b, v)
	}
}

// WalkProgram walks every declaration of prog in declaration order.
func WalkProgram(prog *Program, v Visitor) {
	for _, d := range prog.Decls {
		Walk(d, v)
	}
}
