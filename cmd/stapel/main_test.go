package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const helloSrc = `proc main do
    "hi\n" 1 1 syscall3 pop
end
`

func TestRunCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		out  string // substring of stdout
		err  string // substring of stderr
	}{
		{"no_args", nil, exitUsage, "", "Usage: stapel"},
		{"unknown", []string{"frobnicate"}, exitUsage, "", `unknown command "frobnicate"`},
		{"version", []string{"version"}, exitOK, "stapel version " + Version, ""},
		{"help", []string{"help"}, exitOK, "build [options] <file.spl>", ""},
		{"build_no_file", []string{"build"}, exitUsage, "", "expected exactly one input file"},
		{"build_bad_flag", []string{"build", "-nope", "x.spl"}, exitUsage, "", "-nope"},
		{"build_bad_format", []string{"build", "-emit-ast", "-ast-format", "xml", "x.spl"}, exitUsage, "", `unknown AST format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := captureOutput(t, func() int { return run(tt.args) })
			if code != tt.code {
				t.Errorf("exit = %d, want %d\nstderr:\n%s", code, tt.code, errOut)
			}
			if !strings.Contains(out, tt.out) {
				t.Errorf("stdout missing %q:\n%s", tt.out, out)
			}
			if !strings.Contains(errOut, tt.err) {
				t.Errorf("stderr missing %q:\n%s", tt.err, errOut)
			}
		})
	}
}

func TestBuildEmitTokens(t *testing.T) {
	filename := writeTempSource(t, helloSrc)
	code, out, errOut := captureOutput(t, func() int {
		return run([]string{"build", "-emit-tokens", filename})
	})
	if code != exitOK {
		t.Fatalf("exit=%d\nstderr:\n%s", code, errOut)
	}
	for _, want := range []string{"POSITION", "proc", `"main"`, "STRING", `"hi\n"`, "SYSCALL", "EOF"} {
		if !strings.Contains(out, want) {
			t.Errorf("token dump missing %q:\n%s", want, out)
		}
	}
}

func TestBuildEmitTokensLexError(t *testing.T) {
	filename := writeTempSource(t, "proc main do \"open\n")
	code, _, errOut := captureOutput(t, func() int {
		return run([]string{"build", "-emit-tokens", filename})
	})
	if code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut, "lex error: string literal not terminated") {
		t.Errorf("stderr:\n%s", errOut)
	}
}

func TestBuildEmitAST(t *testing.T) {
	filename := writeTempSource(t, helloSrc)

	code, out, errOut := captureOutput(t, func() int {
		return run([]string{"build", "-emit-ast", filename})
	})
	if code != exitOK {
		t.Fatalf("text: exit=%d\nstderr:\n%s", code, errOut)
	}
	if !strings.Contains(out, "ProcDecl main") || !strings.Contains(out, "Syscall(3)") {
		t.Errorf("text AST:\n%s", out)
	}

	code, out, errOut = captureOutput(t, func() int {
		return run([]string{"build", "-emit-ast", "-ast-format", "json", filename})
	})
	if code != exitOK {
		t.Fatalf("json: exit=%d\nstderr:\n%s", code, errOut)
	}
	var tree map[string]any
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("json AST does not decode: %v\n%s", err, out)
	}

	code, out, errOut = captureOutput(t, func() int {
		return run([]string{"build", "-emit-ast", "-ast-format", "cbor", filename})
	})
	if code != exitOK {
		t.Fatalf("cbor: exit=%d\nstderr:\n%s", code, errOut)
	}
	if len(out) == 0 {
		t.Error("empty cbor AST")
	}
}

func TestBuildEmitAsm(t *testing.T) {
	src := "inline two do 2 end\nproc main do two two + put end\n"
	filename := writeTempSource(t, src)

	code, out, errOut := captureOutput(t, func() int {
		return run([]string{"build", "-emit-asm", filename})
	})
	if code != exitOK {
		t.Fatalf("exit=%d\nstderr:\n%s", code, errOut)
	}
	if !strings.Contains(out, "proc_main:") || !strings.Contains(out, "global _start") {
		t.Errorf("assembly:\n%s", out)
	}

	_, spliced, _ := captureOutput(t, func() int {
		return run([]string{"build", "-emit-asm", "-no-inline", filename})
	})
	if spliced != out {
		t.Error("-no-inline changed the generated assembly")
	}
}

func TestBuildDumpAfter(t *testing.T) {
	filename := writeTempSource(t, "inline two do 2 end\nproc main do two put end\n")
	code, _, errOut := captureOutput(t, func() int {
		return run([]string{"build", "-emit-asm", "-verify", "-dump-after", "inline", filename})
	})
	if code != exitOK {
		t.Fatalf("exit=%d\nstderr:\n%s", code, errOut)
	}
	if !strings.Contains(errOut, "--- after inline ---") {
		t.Errorf("stderr missing dump:\n%s", errOut)
	}
}

func TestBuildCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing_main", "proc f do end\n", ":2:1: missing entry point: no procedure named main"},
		{"top_level", "1\nproc main do end\n", ":1:1: top-level instruction:"},
		{"cycle", "inline a do a end\nproc main do a end\n", ":1:13: cyclic inline expansion: a -> a"},
		{"unknown", "proc main do\n  nope\nend\n", ":2:3: generation error: unknown identifier nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filename := writeTempSource(t, tt.src)
			code, _, errOut := captureOutput(t, func() int {
				return run([]string{"build", "-emit-asm", filename})
			})
			if code != exitError {
				t.Errorf("exit = %d, want %d", code, exitError)
			}
			if !strings.Contains(errOut, filename+tt.want) {
				t.Errorf("stderr missing %q:\n%s", filename+tt.want, errOut)
			}
		})
	}
}

func TestBuildWithConfiguredTools(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	asm := writeScript(t, dir, "fake-nasm", `cp "$5" "$4"`)
	ld := writeScript(t, dir, "fake-ld", `cp "$3" "$2"`)
	toml := "[build]\nassembler = \"" + asm + "\"\nlinker = \"" + ld + "\"\noutput = \"out/prog\"\n"
	if err := os.Mkdir(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stapel.toml"), []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	filename := filepath.Join(dir, "hello.spl")
	if err := os.WriteFile(filename, []byte(helloSrc), 0o600); err != nil {
		t.Fatal(err)
	}

	code, _, errOut := captureOutput(t, func() int {
		return run([]string{"build", filename})
	})
	if code != exitOK {
		t.Fatalf("exit=%d\nstderr:\n%s", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "prog")); err != nil {
		t.Errorf("configured output missing: %v", err)
	}

	// -o wins over the configuration.
	exe := filepath.Join(dir, "flagged")
	code, _, errOut = captureOutput(t, func() int {
		return run([]string{"build", "-o", exe, "-keep-asm", filename})
	})
	if code != exitOK {
		t.Fatalf("exit=%d\nstderr:\n%s", code, errOut)
	}
	if _, err := os.Stat(exe); err != nil {
		t.Errorf("-o output missing: %v", err)
	}
	if _, err := os.Stat(exe + ".asm"); err != nil {
		t.Errorf("-keep-asm assembly missing: %v", err)
	}
}

func TestBuildToolFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	bad := writeScript(t, dir, "bad-nasm", `echo "nasm exploded" >&2; exit 1`)
	toml := "[build]\nassembler = \"" + bad + "\"\n"
	if err := os.WriteFile(filepath.Join(dir, "stapel.toml"), []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	filename := filepath.Join(dir, "hello.spl")
	if err := os.WriteFile(filename, []byte(helloSrc), 0o600); err != nil {
		t.Fatal(err)
	}

	code, _, errOut := captureOutput(t, func() int {
		return run([]string{"build", filename})
	})
	if code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut, "toolchain error:") || !strings.Contains(errOut, "nasm exploded") {
		t.Errorf("stderr:\n%s", errOut)
	}
}

func TestBuildBadConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stapel.toml"), []byte("[codegen]\nreturn-stack-depth = 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	filename := filepath.Join(dir, "hello.spl")
	if err := os.WriteFile(filename, []byte(helloSrc), 0o600); err != nil {
		t.Fatal(err)
	}

	code, _, errOut := captureOutput(t, func() int {
		return run([]string{"build", "-emit-asm", filename})
	})
	if code != exitError {
		t.Errorf("exit = %d, want %d", code, exitError)
	}
	if !strings.Contains(errOut, "return-stack-depth") {
		t.Errorf("stderr:\n%s", errOut)
	}
}

func TestFormatLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", `""`},
		{"main", `"main"`},
		{"a\nb", `"a\nb"`},
		{"tab\there", `"tab\there"`},
		{`q"\`, `"q\"\\"`},
		{"nul\x00", `"nul\0"`},
	}
	for _, tt := range tests {
		if got := formatLiteral(tt.in); got != tt.want {
			t.Errorf("formatLiteral(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func writeTempSource(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	filename := filepath.Join(dir, "input.spl")
	if err := os.WriteFile(filename, []byte(src), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return filename
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func captureOutput(t *testing.T, fn func() int) (code int, stdout string, stderr string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe stdout: %v", err)
	}
	rErr, wErr, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe stderr: %v", err)
	}

	os.Stdout = wOut
	os.Stderr = wErr

	// Drain concurrently so large outputs cannot fill the pipes.
	outc := make(chan string)
	errc := make(chan string)
	go func() { b, _ := io.ReadAll(rOut); outc <- string(b) }()
	go func() { b, _ := io.ReadAll(rErr); errc <- string(b) }()

	code = fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdout, stderr = <-outc, <-errc
	_ = rOut.Close()
	_ = rErr.Close()

	return code, stdout, stderr
}
