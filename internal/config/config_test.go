package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[build]
assembler = "yasm"
linker = "ld.lld"
output = "bin/app"
keep-asm = true

[codegen]
return-stack-depth = 64
comments = false
expand-inlines = false

[log]
verbosity = 2
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Build.Assembler != "yasm" || c.Build.Linker != "ld.lld" {
		t.Errorf("tools = %q, %q", c.Build.Assembler, c.Build.Linker)
	}
	if !c.Build.KeepAsm {
		t.Error("keep-asm = false, want true")
	}
	if c.Codegen.ReturnStackDepth != 64 {
		t.Errorf("return-stack-depth = %d, want 64", c.Codegen.ReturnStackDepth)
	}
	if c.Codegen.Comments || c.Codegen.ExpandInlines {
		t.Errorf("codegen = %+v, want comments and expand-inlines off", c.Codegen)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}
	if c.Path != filepath.Join(dir, FileName) {
		t.Errorf("path = %q", c.Path)
	}

	cg := c.CodegenConfig()
	if cg.ReturnStackDepth != 64 || cg.Comments {
		t.Errorf("CodegenConfig = %+v", cg)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[build]\nkeep-asm = true\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if c.Build.Assembler != def.Build.Assembler || c.Build.Linker != def.Build.Linker {
		t.Errorf("tools = %q, %q, want defaults", c.Build.Assembler, c.Build.Linker)
	}
	if c.Codegen != def.Codegen {
		t.Errorf("codegen = %+v, want %+v", c.Codegen, def.Codegen)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if c.Codegen.ReturnStackDepth != 1024 || !c.Codegen.Comments || !c.Codegen.ExpandInlines {
		t.Errorf("codegen defaults = %+v", c.Codegen)
	}
	if c.Build.Assembler != "nasm" || c.Build.Linker != "ld" {
		t.Errorf("tool defaults = %q, %q", c.Build.Assembler, c.Build.Linker)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[build\n", "parse error"},
		{"type", "[codegen]\nreturn-stack-depth = \"deep\"\n", "parse error"},
		{"unknown_key", "[build]\nassember = \"nasm\"\n", "unknown keys: build.assember"},
		{"zero_depth", "[codegen]\nreturn-stack-depth = 0\n", "must be positive"},
		{"negative_depth", "[codegen]\nreturn-stack-depth = -4\n", "must be positive"},
		{"huge_depth", "[codegen]\nreturn-stack-depth = 2147483648\n", "must be at most 2147483647"},
		{"empty_linker", "[build]\nlinker = \"\"\n", "build.linker must not be empty"},
		{"negative_verbosity", "[log]\nverbosity = -1\n", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "stapel.toml")
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[codegen]\nreturn-stack-depth = 8\n")

	sub := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Codegen.ReturnStackDepth != 8 {
		t.Errorf("return-stack-depth = %d, want 8 from the parent config", c.Codegen.ReturnStackDepth)
	}
}

func TestFindAndLoadDefaults(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if c.Path != "" && !strings.HasSuffix(c.Path, FileName) {
		t.Errorf("path = %q", c.Path)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of a directory without stapel.toml succeeded")
	}
}

func TestOutputPath(t *testing.T) {
	c := Default()
	if got := c.OutputPath("dir/hello.spl"); got != "dir/hello" {
		t.Errorf("OutputPath = %q, want dir/hello", got)
	}

	c.Build.Output = "/tmp/out"
	if got := c.OutputPath("hello.spl"); got != "/tmp/out" {
		t.Errorf("OutputPath = %q, want /tmp/out", got)
	}

	c.Path = filepath.Join("proj", FileName)
	c.Build.Output = "bin/app"
	if got, want := c.OutputPath("proj/src/hello.spl"), filepath.Join("proj", "bin", "app"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
}
