// Package main implements the stapel command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/you-not-fish/stapel/internal/codegen"
	"github.com/you-not-fish/stapel/internal/config"
	"github.com/you-not-fish/stapel/internal/driver"
	"github.com/you-not-fish/stapel/internal/lsp"
	"github.com/you-not-fish/stapel/internal/passes"
	"github.com/you-not-fish/stapel/internal/rtabi"
	"github.com/you-not-fish/stapel/internal/syntax"
)

// Version information
const Version = "0.1.0-dev"

// Exit codes
const (
	exitOK    = 0
	exitError = 1 // compile error, tool failure or I/O error
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Stapel Compiler %s\n\n", Version)
	fmt.Fprintf(w, "Usage: stapel <command> [options]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  build [options] <file.spl>  compile a program to an executable\n")
	fmt.Fprintf(w, "  doctor                      check the assembler and linker\n")
	fmt.Fprintf(w, "  lsp                         run the language server on stdio\n")
	fmt.Fprintf(w, "  version                     print version\n")
	fmt.Fprintf(w, "  help                        show this help\n\n")
	fmt.Fprintf(w, "Run 'stapel build -h' for build options.\n")
}

// run dispatches a command and returns the exit status.
func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return exitUsage
	}

	switch args[0] {
	case "build":
		return runBuild(args[1:])
	case "doctor":
		return runDoctor()
	case "lsp":
		return runLSP()
	case "version", "-version", "--version":
		fmt.Printf("stapel version %s\n", Version)
		fmt.Printf("go version %s\n", runtime.Version())
		return exitOK
	case "help", "-h", "-help", "--help":
		printUsage(os.Stdout)
		return exitOK
	}

	fmt.Fprintf(os.Stderr, "stapel: unknown command %q\n\n", args[0])
	printUsage(os.Stderr)
	return exitUsage
}

// buildFlags holds the options of the build command.
type buildFlags struct {
	output     string
	emitTokens bool
	emitAST    bool
	astFormat  string
	emitAsm    bool
	noInline   bool
	dumpBefore string
	dumpAfter  string
	verify     bool
	keepAsm    bool
	verbosity  int
}

func newBuildFlagSet(f *buildFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.StringVar(&f.output, "o", "", "Output executable (default: source path without .spl)")
	fs.BoolVar(&f.emitTokens, "emit-tokens", false, "Output token stream")
	fs.BoolVar(&f.emitAST, "emit-ast", false, "Output AST")
	fs.StringVar(&f.astFormat, "ast-format", "text", "AST output format (text, json or cbor)")
	fs.BoolVar(&f.emitAsm, "emit-asm", false, "Output assembly instead of building")
	fs.BoolVar(&f.noInline, "no-inline", false, "Skip the inline pass; expand during generation")
	fs.StringVar(&f.dumpBefore, "dump-before", "", "Dump the program before pass (name or \"*\")")
	fs.StringVar(&f.dumpAfter, "dump-after", "", "Dump the program after pass (name or \"*\")")
	fs.BoolVar(&f.verify, "verify", false, "Verify the program around each pass")
	fs.BoolVar(&f.keepAsm, "keep-asm", false, "Keep the assembly next to the executable")
	fs.IntVar(&f.verbosity, "v", 0, "Log verbosity (overrides stapel.toml)")
	return fs
}

func runBuild(args []string) int {
	var f buildFlags
	fs := newBuildFlagSet(&f)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stapel build [options] <file.spl>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "error: expected exactly one input file")
		fmt.Fprintln(os.Stderr, "usage: stapel build [options] <file.spl>")
		return exitUsage
	}
	switch f.astFormat {
	case "text", "json", "cbor":
	default:
		fmt.Fprintf(os.Stderr, "error: unknown AST format %q (want text, json or cbor)\n", f.astFormat)
		return exitUsage
	}

	filename := fs.Arg(0)

	cfg, err := config.FindAndLoad(filepath.Dir(filename))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	verbosity := cfg.Log.Verbosity
	if set["v"] {
		verbosity = f.verbosity
	}
	commonlog.Configure(verbosity, nil)

	// Handle -emit-tokens
	if f.emitTokens {
		return runEmitTokens(filename)
	}

	// Handle -emit-ast
	if f.emitAST {
		return runEmitAST(filename, f.astFormat)
	}

	opts := driver.Options{
		NoInline: f.noInline || !cfg.Codegen.ExpandInlines,
		Passes: passes.Config{
			DumpBefore: f.dumpBefore,
			DumpAfter:  f.dumpAfter,
			Verify:     f.verify,
		},
		Codegen: cfg.CodegenConfig(),
	}

	// Handle -emit-asm
	if f.emitAsm {
		return runEmitAsm(filename, opts)
	}

	output := cfg.OutputPath(filename)
	if f.output != "" {
		output = f.output
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := driver.Build(ctx, driver.BuildOptions{
		Source:    filename,
		Output:    output,
		Assembler: cfg.Build.Assembler,
		Linker:    cfg.Build.Linker,
		KeepAsm:   f.keepAsm || cfg.Build.KeepAsm,
		Compile:   opts,
	})
	if err != nil {
		report(err)
		return exitError
	}
	if res.AsmPath != "" {
		fmt.Fprintf(os.Stderr, "assembly kept in %s\n", res.AsmPath)
	}
	return exitOK
}

// report prints an error. Compile errors already carry their position and
// kind; everything else gets a prefix naming its class.
func report(err error) {
	var (
		serr *syntax.Error
		cerr *syntax.CycleError
		gerr *codegen.Error
		terr *driver.ToolError
	)
	switch {
	case errors.As(err, &serr), errors.As(err, &cerr), errors.As(err, &gerr):
		fmt.Fprintln(os.Stderr, err)
	case errors.As(err, &terr):
		fmt.Fprintf(os.Stderr, "toolchain error: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

// runDoctor checks the toolchain and returns an exit code.
func runDoctor() int {
	fmt.Println("Stapel Toolchain Doctor")
	fmt.Println("=======================")
	fmt.Println()

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	fmt.Printf("Go:      %s ✓\n", runtime.Version())
	fmt.Printf("Target:  linux/amd64 %s", rtabi.Format)
	if runtime.GOOS == "linux" && runtime.GOARCH == "amd64" {
		fmt.Println(" ✓")
	} else {
		fmt.Printf(" (host is %s/%s; executables will not run here)\n", runtime.GOOS, runtime.GOARCH)
	}

	allOk := true
	for _, st := range driver.Doctor(cfg.Build.Assembler, cfg.Build.Linker) {
		fmt.Printf("%-8s %s", st.Name+":", st.Version)
		if st.OK {
			fmt.Println(" ✓")
		} else {
			fmt.Println(" ✗ (not found)")
			allOk = false
		}
	}

	fmt.Println()
	if allOk {
		fmt.Println("All required tools available!")
		return exitOK
	}

	fmt.Println("Some required tools are missing.")
	fmt.Println("Install nasm and binutils, or set [build] assembler/linker in stapel.toml.")
	return exitError
}

func runLSP() int {
	commonlog.Configure(0, nil)
	if err := lsp.New(Version).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}
