package syntax

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FprintJSON writes a JSON representation of prog to w.
func FprintJSON(w io.Writer, prog *Program) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(programTree(prog))
}

// cborMode encodes with sorted map keys so equal programs give equal bytes.
var cborMode = sync.OnceValues(func() (cbor.EncMode, error) {
	return cbor.CanonicalEncOptions().EncMode()
})

// FprintCBOR writes a canonical CBOR encoding of prog to w. The document
// has the same shape as the JSON form.
func FprintCBOR(w io.Writer, prog *Program) error {
	em, err := cborMode()
	if err != nil {
		return err
	}
	return em.NewEncoder(w).Encode(programTree(prog))
}

// MarshalCBOR returns the canonical CBOR encoding of prog.
func MarshalCBOR(prog *Program) ([]byte, error) {
	em, err := cborMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(programTree(prog))
}

func programTree(prog *Program) map[string]interface{} {
	decls := make([]interface{}, 0, len(prog.Decls))
	for _, d := range prog.Decls {
		decls = append(decls, toTree(d))
	}
	return map[string]interface{}{
		"type":  "Program",
		"file":  prog.Filename,
		"decls": decls,
	}
}

func blockTree(b *Block) []interface{} {
	list := make([]interface{}, 0, len(b.List))
	for _, x := range b.List {
		list = append(list, toTree(x))
	}
	return list
}

func toTree(node Node) map[string]interface{} {
	m := map[string]interface{}{"pos": node.Pos().String()}

	switch n := node.(type) {
	case *ProcDecl:
		m["type"] = "ProcDecl"
		m["name"] = n.Name
		m["body"] = blockTree(n.Body)

	case *InlineDecl:
		m["type"] = "InlineDecl"
		m["name"] = n.Name
		m["body"] = blockTree(n.Body)

	case *MemoryDecl:
		m["type"] = "MemoryDecl"
		m["name"] = n.Name
		m["size"] = n.Size

	case *PushInt:
		m["type"] = "PushInt"
		m["value"] = n.Value
	case *PushStr:
		m["type"] = "PushStr"
		m["value"] = n.Value
		m["raw"] = n.Raw
	case *Infix:
		m["type"] = "Infix"
		m["op"] = n.Op.String()
	case *Load:
		m["type"] = "Load"
		m["width"] = n.Width
	case *Store:
		m["type"] = "Store"
		m["width"] = n.Width
	case *Syscall:
		m["type"] = "Syscall"
		m["argc"] = n.Argc
	case *Ident:
		m["type"] = "Ident"
		m["name"] = n.Name

	case *If:
		m["type"] = "If"
		m["cond"] = blockTree(n.Cond)
		m["body"] = blockTree(n.Body)
		if len(n.Elifs) > 0 {
			elifs := make([]interface{}, 0, len(n.Elifs))
			for _, e := range n.Elifs {
				elifs = append(elifs, map[string]interface{}{
					"pos":  e.pos.String(),
					"cond": blockTree(e.Cond),
					"body": blockTree(e.Body),
				})
			}
			m["elifs"] = elifs
		}
		if n.Else != nil {
			m["else"] = blockTree(n.Else)
		}

	case *While:
		m["type"] = "While"
		m["cond"] = blockTree(n.Cond)
		m["body"] = blockTree(n.Body)

	case Instr:
		// Pop, Dup, Swap, Over, Rot, Pick, Put, Size and Return carry no
		// payload; FormatInstr gives their bare name.
		m["type"] = FormatInstr(n)
	}
	return m
}
