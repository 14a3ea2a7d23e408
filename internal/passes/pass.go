// Package passes runs whole-program passes over a parsed Stapel program.
package passes

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/you-not-fish/stapel/internal/syntax"
)

var log = commonlog.GetLogger("stapel.passes")

// Pass describes a single program pass.
type Pass struct {
	Name string
	Fn   func(prog *syntax.Program) error
}

// Config controls pass execution behavior.
type Config struct {
	DumpBefore string    // dump the program before this pass ("*" for all)
	DumpAfter  string    // dump the program after this pass ("*" for all)
	Verify     bool      // verify the program before/after each pass
	Out        io.Writer // dump destination; os.Stderr if nil
}

// InlinePass is the name of the inline expansion pass.
const InlinePass = "inline"

// Default returns the standard pipeline.
func Default() []Pass {
	return []Pass{
		{Name: InlinePass, Fn: Inline},
	}
}

// Run executes the given passes on prog in order. The first failing pass
// stops the pipeline.
func Run(prog *syntax.Program, passes []Pass, cfg Config) error {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	expanded := false
	verify := func() error {
		if expanded {
			return VerifyExpanded(prog)
		}
		return Verify(prog)
	}

	for _, p := range passes {
		if shouldDump(cfg.DumpBefore, p.Name) {
			if err := dump(out, "before", p.Name, prog); err != nil {
				return err
			}
		}

		if cfg.Verify {
			if err := verify(); err != nil {
				return fmt.Errorf("verify before %s: %w", p.Name, err)
			}
		}

		log.Debugf("running pass %s on %s", p.Name, prog.Filename)
		if err := p.Fn(prog); err != nil {
			return err
		}
		if p.Name == InlinePass {
			expanded = true
		}

		if cfg.Verify {
			if err := verify(); err != nil {
				return fmt.Errorf("verify after %s: %w", p.Name, err)
			}
		}

		if shouldDump(cfg.DumpAfter, p.Name) {
			if err := dump(out, "after", p.Name, prog); err != nil {
				return err
			}
		}
	}
	return nil
}

func dump(w io.Writer, when, pass string, prog *syntax.Program) error {
	fmt.Fprintf(w, "--- %s %s ---\n", when, pass)
	if err := syntax.Fprint(w, prog); err != nil {
		return fmt.Errorf("dump %s %s: %w", when, pass, err)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func shouldDump(pattern, name string) bool {
	return pattern == "*" || pattern == name
}
