// Package driver runs the Stapel pipeline end to end: lexing, parsing, the
// pass pipeline and code generation, then the external assembler and
// linker.
package driver

import (
	"bytes"
	"io"

	"github.com/tliron/commonlog"

	"github.com/you-not-fish/stapel/internal/codegen"
	"github.com/you-not-fish/stapel/internal/passes"
	"github.com/you-not-fish/stapel/internal/syntax"
)

var log = commonlog.GetLogger("stapel.driver")

// Options controls a single compilation.
type Options struct {
	NoInline bool           // skip the expansion pass; inlines are spliced during generation
	Passes   passes.Config  // dump and verify settings
	Codegen  codegen.Config // code generation settings
}

// Result holds the products of each phase.
type Result struct {
	Tokens  []syntax.Lexeme
	Program *syntax.Program
	Asm     []byte
}

// Compile runs lex, parse, the pass pipeline and code generation on src.
// The first error stops compilation and is returned as is: *syntax.Error,
// *syntax.CycleError or *codegen.Error.
func Compile(filename string, src io.Reader, opts Options) (*Result, error) {
	toks, err := syntax.Tokenize(filename, src)
	if err != nil {
		return nil, err
	}
	return CompileTokens(filename, toks, opts)
}

// CompileTokens is Compile for an already lexed token sequence. toks is
// not modified, so callers may parse it again for their own use.
func CompileTokens(filename string, toks []syntax.Lexeme, opts Options) (*Result, error) {
	res := &Result{Tokens: toks}
	log.Debugf("%s: %d tokens", filename, len(toks))

	prog, err := syntax.NewParser(filename, toks).Parse()
	if err != nil {
		return nil, err
	}
	res.Program = prog
	log.Debugf("%s: %d declarations", filename, len(prog.Decls))

	pipeline := passes.Default()
	if opts.NoInline {
		pipeline = nil
	}
	if err := passes.Run(prog, pipeline, opts.Passes); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := codegen.Generate(&buf, prog, opts.Codegen); err != nil {
		return nil, err
	}
	res.Asm = buf.Bytes()
	log.Debugf("%s: %d bytes of assembly", filename, len(res.Asm))
	return res, nil
}
