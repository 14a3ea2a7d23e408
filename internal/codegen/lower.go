package codegen

import (
	"fmt"
	"math"

	"github.com/you-not-fish/stapel/internal/rtabi"
	"github.com/you-not-fish/stapel/internal/syntax"
)

// lowerProc emits a single procedure.
func (g *generator) lowerProc(d *syntax.ProcDecl) {
	g.proc = d
	g.expanding = g.expanding[:0]

	g.e.emitLabel(rtabi.ProcSymbol(d.Name))
	g.lowerBlock(d.Body)

	// The parser always ends bodies in return; programs built by hand
	// might not.
	if n := len(d.Body.List); n == 0 || !isReturn(d.Body.List[n-1]) {
		g.lowerReturn()
	}
	g.e.emitLine()
}

func isReturn(x syntax.Instr) bool {
	_, ok := x.(*syntax.Return)
	return ok
}

// lowerBlock emits every instruction of b in order.
func (g *generator) lowerBlock(b *syntax.Block) {
	if b == nil {
		return
	}
	for _, x := range b.List {
		if g.err != nil {
			return
		}
		g.lowerInstr(x)
	}
}

// lowerInstr emits the code for a single instruction.
func (g *generator) lowerInstr(x syntax.Instr) {
	switch x := x.(type) {
	case *syntax.If:
		g.lowerIf(x)
		return
	case *syntax.While:
		g.lowerWhile(x)
		return
	case *syntax.Ident:
		g.lowerIdent(x)
		return
	}

	g.comment("%s", syntax.FormatInstr(x))

	switch x := x.(type) {
	case *syntax.PushInt:
		g.pushInt(x.Value)

	case *syntax.PushStr:
		idx := g.stringIndex(x.Value)
		g.e.emitInst("push %d", len(x.Value))
		g.e.emitInst("push %s", rtabi.StringLabel(idx))

	case *syntax.Infix:
		g.lowerInfix(x)

	case *syntax.Pop:
		g.e.emitInst("pop rax")

	case *syntax.Dup:
		g.e.emitInst("pop rax")
		g.e.emitInst("push rax")
		g.e.emitInst("push rax")

	case *syntax.Swap:
		g.e.emitInst("pop rax")
		g.e.emitInst("pop rbx")
		g.e.emitInst("push rax")
		g.e.emitInst("push rbx")

	case *syntax.Over:
		// a b -- a b a
		g.e.emitInst("pop rax")
		g.e.emitInst("pop rbx")
		g.e.emitInst("push rbx")
		g.e.emitInst("push rax")
		g.e.emitInst("push rbx")

	case *syntax.Rot:
		// a b c -- b c a
		g.e.emitInst("pop rcx")
		g.e.emitInst("pop rbx")
		g.e.emitInst("pop rax")
		g.e.emitInst("push rbx")
		g.e.emitInst("push rcx")
		g.e.emitInst("push rax")

	case *syntax.Pick:
		// xn .. x0 n -- xn .. x0 xn
		// After popping n, x0 is at [rsp] and xn at [rsp + n*8]; 0 pick
		// behaves like dup. n is not bounds checked.
		g.e.emitInst("pop rax")
		g.e.emitInst("mov rbx, [rsp + rax*%d]", rtabi.WordSize)
		g.e.emitInst("push rbx")

	case *syntax.Put:
		g.e.emitInst("pop rdi")
		g.e.emitInst("call %s", rtabi.FnPrintI64)

	case *syntax.Size:
		g.e.emitInst("mov rax, [%s]", rtabi.OrigStackPtr)
		g.e.emitInst("sub rax, rsp")
		g.e.emitInst("shr rax, %d", rtabi.WordShift)
		g.e.emitInst("push rax")

	case *syntax.Load:
		g.lowerLoad(x)

	case *syntax.Store:
		g.lowerStore(x)

	case *syntax.Syscall:
		for i := 0; i < x.Argc; i++ {
			g.e.emitInst("pop %s", rtabi.SyscallRegs[i])
		}
		g.e.emitInst("syscall")
		g.e.emitInst("push rax")

	case *syntax.Return:
		g.lowerReturn()

	default:
		panic(fmt.Sprintf("codegen: unexpected instruction %T", x))
	}
}

// pushInt pushes a 64-bit constant. push only takes a sign-extended
// 32-bit immediate.
func (g *generator) pushInt(v int64) {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		g.e.emitInst("push %d", v)
		return
	}
	g.e.emitInst("mov rax, %d", v)
	g.e.emitInst("push rax")
}

// setcc maps comparison operators to the signed setCC instruction.
var setcc = map[syntax.Token]string{
	syntax.Eql: "sete",
	syntax.Neq: "setne",
	syntax.Lss: "setl",
	syntax.Leq: "setle",
	syntax.Gtr: "setg",
	syntax.Geq: "setge",
}

// lowerInfix emits a binary operator. The top of the stack is the right
// operand: a b - computes a-b.
//
// Register use: rbx holds the right operand and rax the left one; the
// result is pushed from rax. Division and remainder sign-extend rax into
// rdx:rax with cqo before idiv, which leaves the quotient in rax and the
// remainder in rdx. Comparisons and the logical operators produce 0 or 1.
// and/or look only at whether each operand is non-zero and never skip
// evaluating the right side, since both values are already on the stack.
func (g *generator) lowerInfix(x *syntax.Infix) {
	g.e.emitInst("pop rbx")
	g.e.emitInst("pop rax")

	switch x.Op {
	case syntax.Add:
		g.e.emitInst("add rax, rbx")
	case syntax.Sub:
		g.e.emitInst("sub rax, rbx")
	case syntax.Mul:
		g.e.emitInst("imul rax, rbx")
	case syntax.Div:
		g.e.emitInst("cqo")
		g.e.emitInst("idiv rbx")
	case syntax.Rem:
		g.e.emitInst("cqo")
		g.e.emitInst("idiv rbx")
		g.e.emitInst("mov rax, rdx")
	case syntax.Eql, syntax.Neq, syntax.Lss, syntax.Leq, syntax.Gtr, syntax.Geq:
		g.e.emitInst("cmp rax, rbx")
		g.e.emitInst("%s al", setcc[x.Op])
		g.e.emitInst("movzx rax, al")
	case syntax.And, syntax.Or:
		inst := "and"
		if x.Op == syntax.Or {
			inst = "or"
		}
		g.e.emitInst("cmp rax, 0")
		g.e.emitInst("setne al")
		g.e.emitInst("cmp rbx, 0")
		g.e.emitInst("setne bl")
		g.e.emitInst("%s al, bl", inst)
		g.e.emitInst("movzx rax, al")
	default:
		g.errorf(x.Pos(), "%s is not an infix operator", x.Op)
		return
	}
	g.e.emitInst("push rax")
}

// lowerLoad emits addr !W: the value is zero-extended to 64 bits.
func (g *generator) lowerLoad(x *syntax.Load) {
	g.e.emitInst("pop rax")
	switch x.Width {
	case 1:
		g.e.emitInst("movzx rbx, byte [rax]")
	case 2:
		g.e.emitInst("movzx rbx, word [rax]")
	case 4:
		g.e.emitInst("mov ebx, dword [rax]")
	case 8:
		g.e.emitInst("mov rbx, qword [rax]")
	default:
		g.errorf(x.Pos(), "unsupported load width %d", x.Width)
		return
	}
	g.e.emitInst("push rbx")
}

// lowerStore emits addr value @W.
func (g *generator) lowerStore(x *syntax.Store) {
	g.e.emitInst("pop rbx")
	g.e.emitInst("pop rax")
	switch x.Width {
	case 1:
		g.e.emitInst("mov byte [rax], bl")
	case 2:
		g.e.emitInst("mov word [rax], bx")
	case 4:
		g.e.emitInst("mov dword [rax], ebx")
	case 8:
		g.e.emitInst("mov qword [rax], rbx")
	default:
		g.errorf(x.Pos(), "unsupported store width %d", x.Width)
	}
}

// lowerIdent resolves a name: an inline is spliced in place, a memory
// region pushes its address, a procedure is called.
func (g *generator) lowerIdent(x *syntax.Ident) {
	if d, ok := g.prog.Inlines[x.Name]; ok {
		g.spliceInline(d, x.Pos())
		return
	}

	g.comment("%s", syntax.FormatInstr(x))

	if _, ok := g.prog.Memories[x.Name]; ok {
		g.e.emitInst("push %s", rtabi.MemSymbol(x.Name))
		return
	}
	if _, ok := g.prog.Procs[x.Name]; ok {
		g.lowerCall(x.Name)
		return
	}
	g.errorf(x.Pos(), "unknown identifier %s", x.Name)
}

// spliceInline lowers an inline body at its use site. It matches the
// inline expansion pass: the same instructions reach lowerInstr in the
// same order, so the output is identical.
//
// Generate has already rejected cyclic inlines, so the expanding check
// below only fires for programs assembled by hand after that check.
func (g *generator) spliceInline(d *syntax.InlineDecl, pos syntax.Pos) {
	for k, name := range g.expanding {
		if name == d.Name {
			if g.err == nil {
				g.err = &syntax.CycleError{
					Pos:   pos,
					Chain: append([]string(nil), g.expanding[k:]...),
				}
			}
			return
		}
	}

	g.expanding = append(g.expanding, d.Name)
	g.lowerBlock(d.Body)
	g.expanding = g.expanding[:len(g.expanding)-1]
}

// lowerCall pushes the address after the jump onto the return stack and
// jumps to the procedure.
//
// Return stack layout: RetIndex holds the index of the top entry and
// slot 0 is an empty sentinel, so a full stack has RetIndex equal to the
// configured depth. The check runs before the increment; a call made at
// full depth jumps to the overflow handler without touching the array.
//
//	cmp  r13, DEPTH
//	jae  stack_overflow
//	inc  r13
//	lea  rax, [rel .addr_N]
//	mov  [ret_stack + r13*8], rax
//	jmp  proc_NAME
//	.addr_N:
func (g *generator) lowerCall(name string) {
	ret := g.newLabel()
	g.e.emitInst("cmp %s, %d", rtabi.RetIndex, g.cfg.ReturnStackDepth)
	g.e.emitInst("jae %s", rtabi.FnStackOverflow)
	g.e.emitInst("inc %s", rtabi.RetIndex)
	g.e.emitInst("lea rax, [rel %s]", ret)
	g.e.emitInst("mov [%s + %s*%d], rax", rtabi.RetStack, rtabi.RetIndex, rtabi.WordSize)
	g.e.emitInst("jmp %s", rtabi.ProcSymbol(name))
	g.e.emitLabel(ret)
}

// lowerReturn pops the return stack and jumps to the address. In the
// entry procedure it exits the process with status 0 instead.
//
// An empty return stack (RetIndex 0) outside main means control reached a
// return that no call matches; that goes to the underflow handler.
func (g *generator) lowerReturn() {
	if g.proc.Name == syntax.EntryPoint {
		g.e.emitInst("mov rax, %d", rtabi.SysExit)
		g.e.emitInst("xor rdi, rdi")
		g.e.emitInst("syscall")
		return
	}
	g.e.emitInst("test %s, %s", rtabi.RetIndex, rtabi.RetIndex)
	g.e.emitInst("jz %s", rtabi.FnStackUnderflow)
	g.e.emitInst("mov rdx, [%s + %s*%d]", rtabi.RetStack, rtabi.RetIndex, rtabi.WordSize)
	g.e.emitInst("dec %s", rtabi.RetIndex)
	g.e.emitInst("jmp rdx")
}

// branchIfFalse pops the condition and jumps to label when it is zero.
func (g *generator) branchIfFalse(label string) {
	g.e.emitInst("pop rax")
	g.e.emitInst("test rax, rax")
	g.e.emitInst("jz %s", label)
}

// lowerIf emits if/elif/else. Every arm with a condition gets its own
// "next" label; the shared end label follows the last arm.
//
// The end label takes the lowest number, then each arm's next label in
// source order:
//
//	COND ; pop, jz .addr_next0 ; BODY ; jmp .addr_end
//	.addr_next0:
//	ELIF COND ; pop, jz .addr_next1 ; ELIF BODY ; jmp .addr_end
//	.addr_next1:
//	ELSE BODY
//	.addr_end:
func (g *generator) lowerIf(x *syntax.If) {
	end := g.newLabel()
	g.comment("if")

	next := g.newLabel()
	g.lowerBlock(x.Cond)
	g.branchIfFalse(next)
	g.lowerBlock(x.Body)
	g.e.emitInst("jmp %s", end)
	g.e.emitLabel(next)

	for _, e := range x.Elifs {
		next := g.newLabel()
		g.comment("elif")
		g.lowerBlock(e.Cond)
		g.branchIfFalse(next)
		g.lowerBlock(e.Body)
		g.e.emitInst("jmp %s", end)
		g.e.emitLabel(next)
	}

	if x.Else != nil {
		g.comment("else")
		g.lowerBlock(x.Else)
	}
	g.e.emitLabel(end)
}

// lowerWhile emits a loop: the start label precedes the condition, the
// end label follows the backward jump.
func (g *generator) lowerWhile(x *syntax.While) {
	start := g.newLabel()
	end := g.newLabel()
	g.comment("while")

	g.e.emitLabel(start)
	g.lowerBlock(x.Cond)
	g.branchIfFalse(end)
	g.lowerBlock(x.Body)
	g.e.emitInst("jmp %s", start)
	g.e.emitLabel(end)
}
