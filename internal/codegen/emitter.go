package codegen

import (
	"fmt"
	"io"
)

// emitter wraps an io.Writer with helpers for emitting NASM source text.
//
// Layout: labels and directives start in column 0, instructions and
// comments are indented four spaces. Every helper appends exactly one line.
//
// Write errors are sticky. The first failure is kept in err and every later
// call is a no-op, so callers emit whole procedures without checking and
// look at err once at the end.
type emitter struct {
	w   io.Writer
	err error // first write error
}

// emit writes a formatted line to the output (no indentation).
func (e *emitter) emit(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format+"\n", args...)
}

// emitLine writes a blank line.
func (e *emitter) emitLine() {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w)
}

// emitComment writes an indented comment line.
func (e *emitter) emitComment(format string, args ...interface{}) {
	e.emitInst("; "+format, args...)
}

// emitLabel writes a label definition.
func (e *emitter) emitLabel(name string) {
	e.emit("%s:", name)
}

// emitInst writes an indented instruction line.
func (e *emitter) emitInst(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, "    "+format+"\n", args...)
}

// emitSection starts a new section.
func (e *emitter) emitSection(name string) {
	e.emit("section %s", name)
}
