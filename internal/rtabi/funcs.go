package rtabi

import (
	"fmt"
	"strings"
)

// Runtime routine and label names emitted by the prelude.
const (
	// Entry is the ELF entry symbol.
	Entry = "_start"

	// FnPrintI64 prints rdi as a signed decimal followed by a newline.
	FnPrintI64 = "print_i64"

	// FnStackUnderflow reports a return with an empty return stack and
	// exits with status 1.
	FnStackUnderflow = "stack_underflow"

	// FnStackOverflow reports a call beyond the return stack capacity and
	// exits with status 1.
	FnStackOverflow = "stack_overflow"

	// MsgUnderflow and MsgOverflow are the data labels of their messages.
	MsgUnderflow = "msg_underflow"
	MsgOverflow  = "msg_overflow"

	// LabelPrefix starts every synthesized control-flow and return label.
	LabelPrefix = ".addr_"

	// StringPrefix starts every interned string label.
	StringPrefix = "str_"

	// ProcPrefix and MemPrefix start procedure and memory-region symbols.
	ProcPrefix = "proc_"
	MemPrefix  = "mem_"
)

// Runtime error messages, newline included.
const (
	UnderflowMessage = "error: return stack underflow\n"
	OverflowMessage  = "error: return stack overflow\n"
)

// ProcSymbol returns the assembly symbol of a procedure.
func ProcSymbol(name string) string {
	return ProcPrefix + Mangle(name)
}

// MemSymbol returns the assembly symbol of a memory region.
func MemSymbol(name string) string {
	return MemPrefix + Mangle(name)
}

// Label returns the n-th synthesized label.
func Label(n int) string {
	return fmt.Sprintf("%s%d", LabelPrefix, n)
}

// StringLabel returns the label of the n-th interned string.
func StringLabel(n int) string {
	return fmt.Sprintf("%s%d", StringPrefix, n)
}

// Mangle maps a source identifier to a valid NASM symbol fragment. Letters,
// digits and '_' pass through; '_' is doubled and every other byte becomes
// _XX (hex), so distinct names never collide.
func Mangle(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_':
			sb.WriteString("__")
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "_%02x", c)
		}
	}
	return sb.String()
}
