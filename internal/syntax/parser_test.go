package syntax

import (
	"errors"
	"strings"
	"testing"
)

// ----------------------------------------------------------------------------
// Test helpers

func parseProgram(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse("test.spl", strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

func parseError(t *testing.T, src string) *Error {
	t.Helper()
	_, err := Parse("test.spl", strings.NewReader(src))
	if err == nil {
		t.Fatalf("Parse(%q) succeeded, want error", src)
	}
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("error %T (%v) is not *Error", err, err)
	}
	return serr
}

func body(t *testing.T, prog *Program, name string) string {
	t.Helper()
	d, ok := prog.Procs[name]
	if !ok {
		t.Fatalf("no procedure %s", name)
	}
	return FormatBlock(d.Body)
}

// ----------------------------------------------------------------------------
// Declarations

func TestParseMain(t *testing.T) {
	prog := parseProgram(t, "proc main do 1 2 + put end")

	if len(prog.Procs) != 1 || len(prog.Decls) != 1 {
		t.Fatalf("got %d procs, %d decls; want 1, 1", len(prog.Procs), len(prog.Decls))
	}
	if got, want := body(t, prog, "main"), "[PushInt(1), PushInt(2), Infix(+), Put, Return]"; got != want {
		t.Errorf("main body = %s, want %s", got, want)
	}
	if prog.Main() == nil {
		t.Error("Main() = nil")
	}
}

func TestParseReturnAppended(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "proc f do end proc main do end", "[Return]"},
		{"explicit", "proc f do 1 return end proc main do end", "[PushInt(1), Return]"},
		{"not_last", "proc f do return 1 end proc main do end", "[Return, PushInt(1), Return]"},
		{"if_last", "proc f do if 1 do return end end proc main do end",
			"[If([PushInt(1)] [Return]), Return]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parseProgram(t, tt.src)
			if got := body(t, prog, "f"); got != tt.want {
				t.Errorf("f body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseInline(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"inline double dup + end proc main do end", "[Dup, Infix(+)]"},
		{"inline double do dup + end proc main do end", "[Dup, Infix(+)]"},
		{"inline nothing end proc main do end", "[]"},
	}

	for _, tt := range tests {
		prog := parseProgram(t, tt.src)
		d := prog.Inlines["double"]
		if d == nil {
			d = prog.Inlines["nothing"]
		}
		if d == nil {
			t.Fatalf("%s: inline not declared", tt.src)
		}
		if got := FormatBlock(d.Body); got != tt.want {
			t.Errorf("%s: body = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestParseMemory(t *testing.T) {
	prog := parseProgram(t, "memory buf 1024 end memory x 8 end proc main do buf end")

	if len(prog.Memories) != 2 {
		t.Fatalf("got %d memories, want 2", len(prog.Memories))
	}
	if m := prog.Memories["buf"]; m == nil || m.Size != 1024 {
		t.Errorf("buf = %+v, want size 1024", m)
	}
	list := prog.MemoryList()
	if len(list) != 2 || list[0].Name != "buf" || list[1].Name != "x" {
		t.Errorf("MemoryList order wrong: %v", list)
	}
	if got, want := body(t, prog, "main"), "[Ident(buf), Return]"; got != want {
		t.Errorf("main body = %s, want %s", got, want)
	}
}

func TestParseDeclOrder(t *testing.T) {
	prog := parseProgram(t, `
proc b do end
memory m 4 end
inline i end
proc main do end
proc a do end
`)
	var names []string
	for _, d := range prog.Decls {
		names = append(names, d.DeclName())
	}
	if got, want := strings.Join(names, " "), "b m i main a"; got != want {
		t.Errorf("decl order = %s, want %s", got, want)
	}

	var procs []string
	for _, d := range prog.ProcList() {
		procs = append(procs, d.Name)
	}
	if got, want := strings.Join(procs, " "), "b main a"; got != want {
		t.Errorf("ProcList = %s, want %s", got, want)
	}
}

func TestParseForwardReference(t *testing.T) {
	prog := parseProgram(t, "proc main do helper later end proc helper do end")
	if got, want := body(t, prog, "main"), "[Ident(helper), Ident(later), Return]"; got != want {
		t.Errorf("main body = %s, want %s", got, want)
	}
}

func TestParseDeclPositions(t *testing.T) {
	prog := parseProgram(t, "proc main do\n  dup\nend")
	d := prog.Main()
	if d.Pos().Line() != 1 || d.Pos().Col() != 1 {
		t.Errorf("proc pos = %s, want 1:1", d.Pos())
	}
	if d.NamePos.Col() != 6 {
		t.Errorf("name pos = %s, want col 6", d.NamePos)
	}
	if x := d.Body.List[0]; x.Pos().Line() != 2 || x.Pos().Col() != 3 {
		t.Errorf("dup pos = %s, want 2:3", x.Pos())
	}
}

// ----------------------------------------------------------------------------
// Instructions

func TestParseInstructions(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`42 -7 'a' "hi\n"`, `[PushInt(42), PushInt(-7), PushInt(97), PushStr("hi\\n"), Return]`},
		{"+ - * / % = != < <= > >= and or",
			"[Infix(+), Infix(-), Infix(*), Infix(/), Infix(%), Infix(=), Infix(!=), Infix(<), Infix(<=), Infix(>), Infix(>=), Infix(and), Infix(or), Return]"},
		{"pop dup swap over rot pick put size", "[Pop, Dup, Swap, Over, Rot, Pick, Put, Size, Return]"},
		{"!1 !8 @2 @4", "[Load(1), Load(8), Store(2), Store(4), Return]"},
		{"syscall0 syscall6", "[Syscall(0), Syscall(6), Return]"},
		{"foo", "[Ident(foo), Return]"},
	}

	for _, tt := range tests {
		prog := parseProgram(t, "proc main do "+tt.src+" end")
		if got := body(t, prog, "main"); got != tt.want {
			t.Errorf("%s:\n got %s\nwant %s", tt.src, got, tt.want)
		}
	}
}

func TestParseStringValue(t *testing.T) {
	prog := parseProgram(t, `proc main do "ab\n" end`)
	s, ok := prog.Main().Body.List[0].(*PushStr)
	if !ok {
		t.Fatalf("first instruction is %T, want *PushStr", prog.Main().Body.List[0])
	}
	if s.Value != "ab\n" || s.Raw != `ab\n` {
		t.Errorf("PushStr = %q / %q", s.Value, s.Raw)
	}
}

func TestParseControlFlow(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"if", "if 1 do 2 end",
			"[If([PushInt(1)] [PushInt(2)]), Return]"},
		{"if_else", "if 1 do 2 else 3 end",
			"[If([PushInt(1)] [PushInt(2)] else [PushInt(3)]), Return]"},
		{"if_elif", "if 1 do 2 elif 3 do 4 elif 5 do 6 else 7 end",
			"[If([PushInt(1)] [PushInt(2)] elif [PushInt(3)] [PushInt(4)] elif [PushInt(5)] [PushInt(6)] else [PushInt(7)]), Return]"},
		{"empty_if", "if do end",
			"[If([] []), Return]"},
		{"while", "while dup 0 > do 1 - end",
			"[While([Dup, PushInt(0), Infix(>)] [PushInt(1), Infix(-)]), Return]"},
		{"nested", "while 1 do if 2 do while 3 do end end end",
			"[While([PushInt(1)] [If([PushInt(2)] [While([PushInt(3)] [])])]), Return]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parseProgram(t, "proc main do "+tt.src+" end")
			if got := body(t, prog, "main"); got != tt.want {
				t.Errorf("\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Errors

func TestParseMissingEntryPoint(t *testing.T) {
	for _, src := range []string{
		"",
		"proc helper do end",
		"inline main end",
		"memory main 8 end",
	} {
		if err := parseError(t, src); err.Kind != MissingEntryPoint {
			t.Errorf("%q: kind = %s, want %s", src, err.Kind, MissingEntryPoint)
		}
	}
}

func TestParseDuplicateIdentifier(t *testing.T) {
	tests := []struct {
		src  string
		line uint32
	}{
		{"memory x 8 end\nproc x do end proc main do end", 2},
		{"proc main do end\nproc main do end", 2},
		{"inline a end\nmemory a 1 end proc main do end", 2},
		{"proc f do end\ninline f end proc main do end", 2},
	}

	for _, tt := range tests {
		err := parseError(t, tt.src)
		if err.Kind != DuplicateIdentifier {
			t.Errorf("%q: kind = %s, want %s", tt.src, err.Kind, DuplicateIdentifier)
			continue
		}
		if err.Pos.Line() != tt.line {
			t.Errorf("%q: error at %s, want line %d", tt.src, err.Pos, tt.line)
		}
		if !strings.Contains(err.Msg, "redeclared") {
			t.Errorf("%q: msg = %q", tt.src, err.Msg)
		}
	}
}

func TestParseTopLevelInstruction(t *testing.T) {
	for _, src := range []string{
		"1 proc main do end",
		"proc main do end dup",
		"proc main do end foo",
		"proc main do end while 1 do end",
	} {
		if err := parseError(t, src); err.Kind != TopLevelInstruction {
			t.Errorf("%q: kind = %s, want %s", src, err.Kind, TopLevelInstruction)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"proc_no_name", "proc do end", "expected procedure name, found \"do\""},
		{"proc_keyword_name", "proc dup do end", "expected procedure name"},
		{"proc_no_do", "proc main 1 end", "expected do after procedure name main"},
		{"proc_unclosed", "proc main do 1", "unexpected end of file in procedure main"},
		{"inline_no_name", "inline 1 end", "expected inline name"},
		{"memory_no_name", "memory 8 end", "expected memory name"},
		{"memory_no_size", "memory m end proc main do end", "expected positive size for memory m"},
		{"memory_zero", "memory m 0 end proc main do end", "expected positive size"},
		{"memory_negative", "memory m -8 end proc main do end", "expected positive size"},
		{"memory_no_end", "memory m 8 proc main do end", "expected end to close memory m"},
		{"if_no_do", "proc main do if 1 end end", "unexpected \"end\""},
		{"if_unclosed", "proc main do if 1 do 2", "unexpected end of file in if body"},
		{"while_unclosed", "proc main do while 1 do", "unexpected end of file in while body"},
		{"stray_else", "proc main do 1 else 2 end", "unexpected \"else\""},
		{"stray_do", "proc main do do end", "unexpected \"do\""},
		{"nested_proc", "proc main do proc f do end end", "proc declaration inside a block"},
		{"stray_end", "end", "unexpected \"end\" at top level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(t, tt.src)
			if err.Kind != ParseError {
				t.Errorf("kind = %s, want %s", err.Kind, ParseError)
			}
			if !strings.Contains(err.Msg, tt.msg) {
				t.Errorf("msg = %q, want it to contain %q", err.Msg, tt.msg)
			}
		})
	}
}

func TestParseLexErrorPropagates(t *testing.T) {
	err := parseError(t, "proc main do !3 end")
	if err.Kind != LexError {
		t.Errorf("kind = %s, want %s", err.Kind, LexError)
	}
}

func TestParseFirstErrorWins(t *testing.T) {
	err := parseError(t, "proc main do end\nproc main do end\n1")
	if err.Kind != DuplicateIdentifier {
		t.Errorf("kind = %s, want first error %s", err.Kind, DuplicateIdentifier)
	}
}

func TestParseNestingLimit(t *testing.T) {
	src := "proc main do " + strings.Repeat("while 1 do ", maxDepth+1) + strings.Repeat("end ", maxDepth+1) + "end"
	err := parseError(t, src)
	if !strings.Contains(err.Msg, "nested deeper") {
		t.Errorf("msg = %q", err.Msg)
	}

	ok := "proc main do " + strings.Repeat("while 1 do ", maxDepth) + strings.Repeat("end ", maxDepth) + "end"
	parseProgram(t, ok)
}

func TestParserProgramAfterError(t *testing.T) {
	toks := scanAll(t, "memory buf 8 end\ninline two 2 end\nproc f do end\nproc main do 1")
	p := NewParser("test.spl", toks)
	if _, err := p.Parse(); err == nil {
		t.Fatal("Parse succeeded, want error")
	}
	prog := p.Program()
	for _, name := range []string{"buf", "two", "f"} {
		if prog.Lookup(name) == nil {
			t.Errorf("declaration %s lost after the error", name)
		}
	}
	if prog.Lookup("main") != nil {
		t.Error("unterminated main registered")
	}
}

func TestParserDuplicateBeforeBodyError(t *testing.T) {
	toks := scanAll(t, "proc f do end\nproc f do 1 +")
	_, err := NewParser("test.spl", toks).Parse()
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if serr.Kind != DuplicateIdentifier || serr.Pos.Line() != 2 || serr.Pos.Col() != 1 {
		t.Errorf("err = %v, want DuplicateIdentifier at 2:1", err)
	}
}

func TestNewParserWithoutEOF(t *testing.T) {
	toks := scanAll(t, "proc main do end")
	prog, err := NewParser("test.spl", toks[:len(toks)-1]).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if prog.Main() == nil {
		t.Error("Main() = nil")
	}
}

// ----------------------------------------------------------------------------
// Program helpers

func TestCloneBlock(t *testing.T) {
	prog := parseProgram(t, "proc main do if 1 do 2 elif 3 do 4 else 5 end while 6 do 7 end end")
	orig := prog.Main().Body
	clone := CloneBlock(orig)

	if FormatBlock(clone) != FormatBlock(orig) {
		t.Fatalf("clone = %s, want %s", FormatBlock(clone), FormatBlock(orig))
	}

	clone.List[0].(*If).Elifs[0].Body.List[0].(*PushInt).Value = 99
	clone.List[1].(*While).Body.List = nil
	if got := FormatBlock(orig); strings.Contains(got, "99") || !strings.Contains(got, "PushInt(7)") {
		t.Errorf("mutating the clone changed the original: %s", got)
	}
	if clone.List[0].Pos() != orig.List[0].Pos() {
		t.Errorf("clone pos = %s, want %s", clone.List[0].Pos(), orig.List[0].Pos())
	}
}

func TestWalk(t *testing.T) {
	prog := parseProgram(t, `
memory m 8 end
inline i foo end
proc main do if 1 do bar elif 2 do baz else m end while 3 do i end end
`)
	var idents []string
	WalkProgram(prog, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			idents = append(idents, id.Name)
		}
		return true
	})
	if got, want := strings.Join(idents, " "), "foo bar baz m i"; got != want {
		t.Errorf("idents = %s, want %s", got, want)
	}

	// Pruning at an If skips its blocks.
	var count int
	WalkProgram(prog, func(n Node) bool {
		if _, ok := n.(*Ident); ok {
			count++
		}
		_, isIf := n.(*If)
		return !isIf
	})
	if count != 2 {
		t.Errorf("with If pruned, saw %d idents, want 2", count)
	}
}
