package codegen

import (
	"strconv"
	"strings"

	"github.com/you-not-fish/stapel/internal/rtabi"
	"github.com/you-not-fish/stapel/internal/syntax"
)

// header emits the file preamble.
func (g *generator) header() {
	if g.cfg.Comments {
		g.e.emit("; %s", g.prog.Filename)
	}
	g.e.emit("BITS %d", rtabi.Bits)
	g.e.emit("global %s", rtabi.Entry)
	g.e.emitLine()
	g.e.emitSection(".text")
	g.e.emitLine()
}

// prelude emits the runtime routines and the entry point.
func (g *generator) prelude() {
	e := g.e

	// print_i64: rdi as signed decimal plus newline on stdout. Digits are
	// produced right to left into a buffer on the machine stack; the
	// magnitude is divided unsigned so INT64_MIN prints correctly.
	e.emitLabel(rtabi.FnPrintI64)
	e.emitInst("push rbp")
	e.emitInst("mov rbp, rsp")
	e.emitInst("sub rsp, 32")
	e.emitInst("mov rax, rdi")
	e.emitInst("lea rsi, [rbp - 1]")
	e.emitInst("mov byte [rsi], 10")
	e.emitInst("mov rcx, 10")
	e.emitInst("xor r8, r8")
	e.emitInst("test rax, rax")
	e.emitInst("jns .digits")
	e.emitInst("mov r8, 1")
	e.emitInst("neg rax")
	e.emitLabel(".digits")
	e.emitInst("xor rdx, rdx")
	e.emitInst("div rcx")
	e.emitInst("add dl, '0'")
	e.emitInst("dec rsi")
	e.emitInst("mov [rsi], dl")
	e.emitInst("test rax, rax")
	e.emitInst("jnz .digits")
	e.emitInst("test r8, r8")
	e.emitInst("jz .write")
	e.emitInst("dec rsi")
	e.emitInst("mov byte [rsi], '-'")
	e.emitLabel(".write")
	e.emitInst("mov rax, %d", rtabi.SysWrite)
	e.emitInst("mov rdi, %d", rtabi.Stdout)
	e.emitInst("mov rdx, rbp")
	e.emitInst("sub rdx, rsi")
	e.emitInst("syscall")
	e.emitInst("leave")
	e.emitInst("ret")
	e.emitLine()

	g.fatal(rtabi.FnStackUnderflow, rtabi.MsgUnderflow)
	g.fatal(rtabi.FnStackOverflow, rtabi.MsgOverflow)

	e.emitLabel(rtabi.Entry)
	e.emitInst("mov [%s], rsp", rtabi.OrigStackPtr)
	e.emitInst("mov %s, [%s]", rtabi.RetIndex, rtabi.RetIndexCursor)
	e.emitInst("jmp %s", rtabi.ProcSymbol(syntax.EntryPoint))
	e.emitLine()
}

// fatal emits a routine that writes msg to stderr and exits with status 1.
func (g *generator) fatal(name, msg string) {
	e := g.e
	e.emitLabel(name)
	e.emitInst("mov rax, %d", rtabi.SysWrite)
	e.emitInst("mov rdi, %d", rtabi.Stderr)
	e.emitInst("lea rsi, [rel %s]", msg)
	e.emitInst("mov rdx, %s_len", msg)
	e.emitInst("syscall")
	e.emitInst("mov rax, %d", rtabi.SysExit)
	e.emitInst("mov rdi, 1")
	e.emitInst("syscall")
	e.emitLine()
}

// bss emits the memory regions in declaration order.
func (g *generator) bss() {
	g.e.emitSection(".bss")
	for _, m := range g.prog.MemoryList() {
		g.e.emit("%s: resb %d", rtabi.MemSymbol(m.Name), m.Size)
	}
	g.e.emitLine()
}

// data emits the initialized data: runtime state, messages and the
// string table.
func (g *generator) data() {
	e := g.e
	e.emitSection(".data")
	e.emit("%s: dq 0", rtabi.OrigStackPtr)
	e.emit("%s: dq 0", rtabi.RetIndexCursor)
	e.emit("%s: times %d dq 0", rtabi.RetStack, g.cfg.ReturnStackDepth+1)
	g.message(rtabi.MsgUnderflow, rtabi.UnderflowMessage)
	g.message(rtabi.MsgOverflow, rtabi.OverflowMessage)

	for i, s := range g.strings {
		if g.cfg.Comments {
			e.emit("; %s", strconv.Quote(s))
		}
		e.emit("%s: db %s", rtabi.StringLabel(i), dbBytes(s, true))
	}
}

func (g *generator) message(label, text string) {
	g.e.emit("%s: db %s", label, dbBytes(text, false))
	g.e.emit("%s_len equ $ - %s", label, label)
}

// dbBytes renders s as a db operand list of hex bytes, optionally NUL
// terminated.
func dbBytes(s string, nul bool) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(uint64(s[i])|0x100, 16)[1:])
	}
	if nul {
		if len(s) > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('0')
	}
	return sb.String()
}
