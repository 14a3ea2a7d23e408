package passes

import (
	"fmt"
	"strings"

	"github.com/you-not-fish/stapel/internal/syntax"
)

// Verify checks the structural invariants of a parsed program.
// It returns an error describing all violations found, or nil if valid.
func Verify(prog *syntax.Program) error {
	return combineErrors(verify(prog, false))
}

// VerifyExpanded is like Verify and also checks that no procedure body
// still refers to an inline.
func VerifyExpanded(prog *syntax.Program) error {
	return combineErrors(verify(prog, true))
}

func verify(prog *syntax.Program, expanded bool) []string {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	// 1. Entry point
	if prog.Main() == nil {
		add("no procedure named %s", syntax.EntryPoint)
	}

	// 2. Namespace maps agree with the declaration list
	seen := make(map[string]bool, len(prog.Decls))
	for _, d := range prog.Decls {
		name := d.DeclName()
		if seen[name] {
			add("%s declared more than once", name)
		}
		seen[name] = true
		if prog.Lookup(name) != d {
			add("%s: declaration not registered under its name", name)
		}
	}
	if n := len(prog.Procs) + len(prog.Inlines) + len(prog.Memories); n != len(prog.Decls) {
		add("name maps hold %d entries, declaration list has %d", n, len(prog.Decls))
	}

	// 3. Bodies
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *syntax.ProcDecl:
			if d.Body == nil {
				add("proc %s: nil body", d.Name)
				continue
			}
			if n := len(d.Body.List); n == 0 {
				add("proc %s: body does not end in return", d.Name)
			} else if _, ok := d.Body.List[n-1].(*syntax.Return); !ok {
				add("proc %s: body does not end in return", d.Name)
			}
			verifyBlock(prog, "proc "+d.Name, d.Body, expanded, add)

		case *syntax.InlineDecl:
			if d.Body == nil {
				add("inline %s: nil body", d.Name)
				continue
			}
			verifyBlock(prog, "inline "+d.Name, d.Body, false, add)

		case *syntax.MemoryDecl:
			if d.Size <= 0 {
				add("memory %s: size %d is not positive", d.Name, d.Size)
			}
		}
	}
	return errs
}

func verifyBlock(prog *syntax.Program, where string, b *syntax.Block, expanded bool, add func(string, ...interface{})) {
	syntax.Walk(b, func(n syntax.Node) bool {
		switch x := n.(type) {
		case *syntax.Infix:
			if !x.Op.IsOperator() {
				add("%s, %s: %s is not an infix operator", where, x.Pos(), x.Op)
			}
		case *syntax.Load:
			if !syntax.IsValidWidth(x.Width) {
				add("%s, %s: load width %d", where, x.Pos(), x.Width)
			}
		case *syntax.Store:
			if !syntax.IsValidWidth(x.Width) {
				add("%s, %s: store width %d", where, x.Pos(), x.Width)
			}
		case *syntax.Syscall:
			if x.Argc < 0 || x.Argc > syntax.MaxSyscallArgs {
				add("%s, %s: syscall with %d arguments", where, x.Pos(), x.Argc)
			}
		case *syntax.Ident:
			if _, ok := prog.Inlines[x.Name]; ok && expanded {
				add("%s, %s: unexpanded inline %s", where, x.Pos(), x.Name)
			}
		case *syntax.If:
			if x.Cond == nil || x.Body == nil {
				add("%s, %s: if without condition or body", where, x.Pos())
			}
		case *syntax.While:
			if x.Cond == nil || x.Body == nil {
				add("%s, %s: while without condition or body", where, x.Pos())
			}
		}
		return true
	})
}

// combineErrors creates an error from a list of error strings, or returns nil.
func combineErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("program verification failed:\n  %s", strings.Join(errs, "\n  "))
}
