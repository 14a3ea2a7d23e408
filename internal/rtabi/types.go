// Package rtabi defines the runtime ABI shared between the code generator
// and the runtime prelude it emits: reserved registers, symbol names, Linux
// syscall numbers and the return-address stack layout.
package rtabi

// Target configuration
const (
	// Format is the NASM output format passed to the assembler.
	Format = "elf64"

	// Bits is the NASM BITS directive value.
	Bits = 64

	// WordSize is the size of a data-stack slot in bytes.
	WordSize = 8

	// WordShift is log2(WordSize).
	WordShift = 3
)

// Reserved registers. User instructions clobber rax, rbx, rcx, rdx, rdi,
// rsi, r8, r9, r10 and r11 freely; RetIndex is only touched by calls,
// returns and the prelude.
const (
	// RetIndex holds the index of the top return address. Index 0 is the
	// empty sentinel.
	RetIndex = "r13"
)

// Return-address stack
const (
	// DefaultReturnStackDepth is the number of nested calls the generated
	// program can make before stack_overflow.
	DefaultReturnStackDepth = 1024

	// MaxReturnStackDepth is the largest depth the overflow check can
	// compare RetIndex against: cmp takes a sign-extended imm32.
	MaxReturnStackDepth = 1<<31 - 1

	// RetStack is the qword array holding return addresses. It has one
	// slot more than the depth; slot 0 is never written.
	RetStack = "ret_stack"

	// RetIndexCursor is the initialized qword the prelude loads into
	// RetIndex.
	RetIndexCursor = "ret_index"

	// OrigStackPtr records rsp at entry so size can compute the depth.
	OrigStackPtr = "ori_stack_ptr"
)

// Linux x86-64 syscall numbers used by the prelude.
const (
	SysWrite = 1
	SysExit  = 60

	Stdout = 1
	Stderr = 2
)

// SyscallRegs is the order syscallN fills registers from the data stack:
// the syscall number first, then the arguments.
var SyscallRegs = [...]string{"rax", "rdi", "rsi", "rdx", "r10", "r8", "r9"}
