package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/you-not-fish/stapel/internal/driver"
	"github.com/you-not-fish/stapel/internal/syntax"
)

// runEmitTokens scans the input file and prints all tokens with positions.
func runEmitTokens(filename string) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	defer f.Close()

	s := syntax.NewScanner(filename, f)

	// Print header
	fmt.Printf("%-20s %-12s %s\n", "POSITION", "TOKEN", "LITERAL")
	fmt.Printf("%-20s %-12s %s\n", strings.Repeat("-", 20), strings.Repeat("-", 12), strings.Repeat("-", 20))

	for {
		s.Next()
		if err := s.Err(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitError
		}
		tok := s.Token()

		// Strings show their filtered value.
		lit := s.Literal()
		if s.Str() != "" {
			lit = s.Str()
		}

		fmt.Printf("%-20s %-12s %s\n", s.Pos(), tok, formatLiteral(lit))

		if tok.IsEOF() {
			break
		}
	}
	return exitOK
}

// formatLiteral formats a literal for display, escaping special characters.
func formatLiteral(lit string) string {
	if lit == "" {
		return "\"\""
	}

	// Show the content with escapes visible for readability
	var b strings.Builder
	b.WriteRune('"')
	for _, r := range lit {
		switch r {
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\r':
			b.WriteString("\\r")
		case '\\':
			b.WriteString("\\\\")
		case '"':
			b.WriteString("\\\"")
		case 0:
			b.WriteString("\\0")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune('"')
	return b.String()
}

// runEmitAST parses the input file and outputs the AST.
func runEmitAST(filename, format string) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	defer f.Close()

	prog, err := syntax.Parse(filename, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	switch format {
	case "json":
		err = syntax.FprintJSON(os.Stdout, prog)
	case "cbor":
		err = syntax.FprintCBOR(os.Stdout, prog)
	default:
		err = syntax.Fprint(os.Stdout, prog)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

// runEmitAsm compiles the input file and writes the assembly to stdout.
func runEmitAsm(filename string, opts driver.Options) int {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	defer f.Close()

	res, err := driver.Compile(filename, f, opts)
	if err != nil {
		report(err)
		return exitError
	}
	if _, err := os.Stdout.Write(res.Asm); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}
