package lsp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/you-not-fish/stapel/internal/codegen"
	"github.com/you-not-fish/stapel/internal/driver"
	"github.com/you-not-fish/stapel/internal/syntax"
)

// document is the analysis of one open file.
type document struct {
	uri         protocol.DocumentUri
	prog        *syntax.Program // declarations parsed before any error; nil if lexing failed
	diagnostics []protocol.Diagnostic
}

// analyze compiles text for diagnostics and parses it for navigation.
func analyze(uri protocol.DocumentUri, text string) *document {
	filename := uriFilename(uri)
	doc := &document{uri: uri, diagnostics: []protocol.Diagnostic{}}

	toks, err := syntax.Tokenize(filename, strings.NewReader(text))
	if err != nil {
		doc.diagnostics = append(doc.diagnostics, diagnostic(err))
		return doc
	}
	if _, err := driver.CompileTokens(filename, toks, driver.Options{}); err != nil {
		doc.diagnostics = append(doc.diagnostics, diagnostic(err))
	}

	// Compilation expands inlines in place; navigation needs its own tree
	// with the references intact.
	p := syntax.NewParser(filename, toks)
	p.Parse()
	doc.prog = p.Program()
	return doc
}

// uriFilename turns a file URI into the name used in positions.
func uriFilename(uri protocol.DocumentUri) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return u.Path
}

// diagnostic converts a compile error into an LSP diagnostic.
func diagnostic(err error) protocol.Diagnostic {
	var pos syntax.Pos
	var serr *syntax.Error
	var cerr *syntax.CycleError
	var gerr *codegen.Error
	switch {
	case errors.As(err, &serr):
		pos = serr.Pos
	case errors.As(err, &cerr):
		pos = cerr.Pos
	case errors.As(err, &gerr):
		pos = gerr.Pos
	}

	msg := err.Error()
	if pos.IsValid() {
		msg = strings.TrimPrefix(msg, pos.String()+": ")
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return protocol.Diagnostic{
		Range:    span(pos, 1),
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// span returns the range of n columns starting at pos. Columns count
// runes, which matches UTF-16 units outside the astral planes.
func span(pos syntax.Pos, n int) protocol.Range {
	if !pos.IsValid() {
		return protocol.Range{}
	}
	start := protocol.Position{
		Line:      protocol.UInteger(pos.Line() - 1),
		Character: protocol.UInteger(pos.Col() - 1),
	}
	end := start
	end.Character += protocol.UInteger(n)
	return protocol.Range{Start: start, End: end}
}

// width is the number of columns name occupies.
func width(name string) int {
	return utf8.RuneCountInString(name)
}

// contains reports whether the cursor lies within the n-column name at pos.
func contains(pos syntax.Pos, n int, at protocol.Position) bool {
	r := span(pos, n)
	return pos.IsValid() &&
		at.Line == r.Start.Line &&
		at.Character >= r.Start.Character &&
		at.Character <= r.End.Character
}

// nameAt returns the declared or referenced name under the cursor.
func (d *document) nameAt(at protocol.Position) (string, bool) {
	if d.prog == nil {
		return "", false
	}
	for _, decl := range d.prog.Decls {
		if name, pos := declName(decl); contains(pos, width(name), at) {
			return name, true
		}
	}

	var found string
	syntax.WalkProgram(d.prog, func(n syntax.Node) bool {
		if found != "" {
			return false
		}
		if id, ok := n.(*syntax.Ident); ok && contains(id.Pos(), width(id.Name), at) {
			found = id.Name
		}
		return true
	})
	return found, found != ""
}

func declName(d syntax.Decl) (string, syntax.Pos) {
	switch d := d.(type) {
	case *syntax.ProcDecl:
		return d.Name, d.NamePos
	case *syntax.InlineDecl:
		return d.Name, d.NamePos
	case *syntax.MemoryDecl:
		return d.Name, d.NamePos
	}
	return d.DeclName(), d.Pos()
}

func (d *document) location(pos syntax.Pos, n int) protocol.Location {
	return protocol.Location{URI: d.uri, Range: span(pos, n)}
}

// definition locates the declaration of the name under the cursor.
func (d *document) definition(at protocol.Position) (protocol.Location, bool) {
	name, ok := d.nameAt(at)
	if !ok {
		return protocol.Location{}, false
	}
	decl := d.prog.Lookup(name)
	if decl == nil {
		return protocol.Location{}, false
	}
	_, pos := declName(decl)
	return d.location(pos, width(name)), true
}

// references lists every use of the name under the cursor in source order,
// optionally preceded by its declaration.
func (d *document) references(at protocol.Position, includeDecl bool) []protocol.Location {
	name, ok := d.nameAt(at)
	if !ok {
		return nil
	}

	var locs []protocol.Location
	if includeDecl {
		if decl := d.prog.Lookup(name); decl != nil {
			_, pos := declName(decl)
			locs = append(locs, d.location(pos, width(name)))
		}
	}
	syntax.WalkProgram(d.prog, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Ident); ok && id.Name == name {
			locs = append(locs, d.location(id.Pos(), width(name)))
		}
		return true
	})
	return locs
}

// symbols lists the declarations of the document.
func (d *document) symbols() []protocol.DocumentSymbol {
	if d.prog == nil {
		return nil
	}
	syms := make([]protocol.DocumentSymbol, 0, len(d.prog.Decls))
	for _, decl := range d.prog.Decls {
		name, pos := declName(decl)
		kind, detail := describe(decl)
		r := span(pos, width(name))
		syms = append(syms, protocol.DocumentSymbol{
			Name:           name,
			Detail:         &detail,
			Kind:           kind,
			Range:          r,
			SelectionRange: r,
		})
	}
	return syms
}

func describe(d syntax.Decl) (protocol.SymbolKind, string) {
	switch d := d.(type) {
	case *syntax.ProcDecl:
		return protocol.SymbolKindFunction, "proc"
	case *syntax.InlineDecl:
		return protocol.SymbolKindFunction, "inline"
	case *syntax.MemoryDecl:
		return protocol.SymbolKindVariable, fmt.Sprintf("memory, %d bytes", d.Size)
	}
	return protocol.SymbolKindVariable, ""
}

// hover shows what kind of declaration the name under the cursor is.
func (d *document) hover(at protocol.Position) *protocol.Hover {
	name, ok := d.nameAt(at)
	if !ok {
		return nil
	}
	decl := d.prog.Lookup(name)
	if decl == nil {
		return nil
	}
	_, detail := describe(decl)

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)", name, detail)
	if body := declBody(decl); body != nil {
		fmt.Fprintf(&b, "\n\n```\n%s\n```", syntax.FormatBlock(body))
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func declBody(d syntax.Decl) *syntax.Block {
	switch d := d.(type) {
	case *syntax.ProcDecl:
		return d.Body
	case *syntax.InlineDecl:
		return d.Body
	}
	return nil
}
