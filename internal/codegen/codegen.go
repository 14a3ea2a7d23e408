// Package codegen lowers a parsed Stapel program to x86-64 NASM assembly
// for Linux.
//
// The data stack is the machine stack. Calls between procedures go through
// an explicit return-address stack (rtabi.RetStack indexed by
// rtabi.RetIndex) rather than call/ret, and every procedure ends in a
// return that pops it.
package codegen

import (
	"bytes"
	"fmt"
	"io"

	"github.com/you-not-fish/stapel/internal/rtabi"
	"github.com/you-not-fish/stapel/internal/syntax"
)

// Config controls code generation.
type Config struct {
	// ReturnStackDepth is the capacity of the return-address stack.
	// Zero means rtabi.DefaultReturnStackDepth.
	ReturnStackDepth int

	// Comments annotates the output with the source instructions.
	Comments bool
}

// DefaultConfig returns the default code generation settings.
func DefaultConfig() Config {
	return Config{
		ReturnStackDepth: rtabi.DefaultReturnStackDepth,
		Comments:         true,
	}
}

// Error is a code generation error.
type Error struct {
	Pos syntax.Pos
	Msg string
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return e.Pos.String() + ": generation error: " + e.Msg
	}
	return "generation error: " + e.Msg
}

// generator holds the state of one Generate call.
type generator struct {
	e    *emitter
	prog *syntax.Program
	cfg  Config

	proc   *syntax.ProcDecl // procedure being lowered
	labels int              // next label number

	strings   []string       // interned string values, first-use order
	stringMap map[string]int // value -> index in strings

	expanding []string // inlines being spliced, outermost first
	err       error    // first generation error
}

// Generate writes the assembly for prog to w. Labels are numbered in
// declaration order of procedures, depth-first within each body, so the
// same program always yields the same text. Nothing is written if
// generation fails.
func Generate(w io.Writer, prog *syntax.Program, cfg Config) error {
	if cfg.ReturnStackDepth == 0 {
		cfg.ReturnStackDepth = rtabi.DefaultReturnStackDepth
	}
	if cfg.ReturnStackDepth < 0 || cfg.ReturnStackDepth > rtabi.MaxReturnStackDepth {
		return fmt.Errorf("codegen: invalid return stack depth %d", cfg.ReturnStackDepth)
	}
	if prog.Main() == nil {
		return &Error{Pos: syntax.NewPos(prog.Filename, 0, 0), Msg: "no procedure named " + syntax.EntryPoint}
	}
	// Splicing only meets the inlines procedures use; reject unused cycles
	// here too so both expansion modes accept the same programs.
	if err := syntax.CheckInlineCycles(prog); err != nil {
		return err
	}

	var buf bytes.Buffer
	g := &generator{
		e:         &emitter{w: &buf},
		prog:      prog,
		cfg:       cfg,
		stringMap: make(map[string]int),
	}

	g.header()
	g.prelude()
	for _, d := range prog.ProcList() {
		g.lowerProc(d)
		if g.err != nil {
			return g.err
		}
	}
	g.bss()
	g.data()

	if g.e.err != nil {
		return g.e.err
	}
	_, err := buf.WriteTo(w)
	return err
}

// newLabel returns the next synthesized label.
func (g *generator) newLabel() string {
	l := rtabi.Label(g.labels)
	g.labels++
	return l
}

// stringIndex returns the index of a string in the string table,
// adding it if not present.
func (g *generator) stringIndex(s string) int {
	if idx, ok := g.stringMap[s]; ok {
		return idx
	}
	idx := len(g.strings)
	g.strings = append(g.strings, s)
	g.stringMap[s] = idx
	return idx
}

// errorf records the first generation error.
func (g *generator) errorf(pos syntax.Pos, format string, args ...interface{}) {
	if g.err == nil {
		g.err = &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
	}
}

func (g *generator) comment(format string, args ...interface{}) {
	if g.cfg.Comments {
		g.e.emitComment(format, args...)
	}
}
