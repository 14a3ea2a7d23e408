package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/you-not-fish/stapel/internal/rtabi"
)

// SourceExt is the required extension of Stapel source files.
const SourceExt = ".spl"

// BuildOptions configures Build.
type BuildOptions struct {
	Source    string // path to the .spl file
	Output    string // executable path; default: Source without .spl
	Assembler string // default: nasm
	Linker    string // default: ld
	KeepAsm   bool   // keep the assembly next to the executable as <Output>.asm
	Compile   Options
}

// BuildResult describes the files Build produced.
type BuildResult struct {
	Executable string
	AsmPath    string // empty unless KeepAsm
}

// ToolError reports a failed assembler or linker run. It is distinct from
// compile errors: the program was valid but the toolchain rejected it.
type ToolError struct {
	Tool   string
	Args   []string
	Output string // combined stdout and stderr
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Build compiles a source file and assembles and links it into an
// executable. Intermediate files live in a temporary directory that is
// removed afterwards.
func Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	if filepath.Ext(opts.Source) != SourceExt {
		return nil, fmt.Errorf("%s: source file must have the %s extension", opts.Source, SourceExt)
	}
	if opts.Assembler == "" {
		opts.Assembler = "nasm"
	}
	if opts.Linker == "" {
		opts.Linker = "ld"
	}
	out := opts.Output
	if out == "" {
		out = strings.TrimSuffix(opts.Source, SourceExt)
	}

	data, err := os.ReadFile(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("cannot read source: %w", err)
	}

	log.Infof("compiling %s", opts.Source)
	res, err := Compile(opts.Source, bytes.NewReader(data), opts.Compile)
	if err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp("", "stapel-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	base := strings.TrimSuffix(filepath.Base(opts.Source), SourceExt)
	asmPath := filepath.Join(tmp, base+".asm")
	if opts.KeepAsm {
		asmPath = out + ".asm"
	}
	if err := os.WriteFile(asmPath, res.Asm, 0644); err != nil {
		return nil, fmt.Errorf("cannot write assembly: %w", err)
	}

	objPath := filepath.Join(tmp, base+".o")
	if err := Assemble(ctx, opts.Assembler, asmPath, objPath); err != nil {
		return nil, err
	}
	if err := Link(ctx, opts.Linker, objPath, out); err != nil {
		return nil, err
	}
	log.Infof("built %s", out)

	result := &BuildResult{Executable: out}
	if opts.KeepAsm {
		result.AsmPath = asmPath
	}
	return result, nil
}

// Assemble runs the assembler on asmPath, producing an ELF64 object.
func Assemble(ctx context.Context, assembler, asmPath, objPath string) error {
	return runTool(ctx, assembler, "-f", rtabi.Format, "-o", objPath, asmPath)
}

// Link links a single object into a static executable.
func Link(ctx context.Context, linker, objPath, exePath string) error {
	return runTool(ctx, linker, "-o", exePath, objPath)
}

func runTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	log.Infof("running %s %s", name, strings.Join(args, " "))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ToolError{Tool: name, Args: args, Output: string(out), Err: err}
	}
	return nil
}
