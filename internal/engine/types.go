package engine

import (
	"encoding/json"
	"strings"
)

// r2 renamed "offset" to "addr" in its JSON output; both are accepted.
type location struct {
	Offset uint64 `json:"offset"`
	Addr   uint64 `json:"addr"`
}

func (l location) address() uint64 {
	if l.Addr != 0 {
		return l.Addr
	}
	return l.Offset
}

// Ref is a cross-reference recorded by the engine.
type Ref struct {
	Addr uint64 `json:"addr"`
	Type string `json:"type"` // CALL, CODE, DATA, ...
	At   uint64 `json:"at"`
}

// Function is one record of the engine's function listing.
type Function struct {
	Addr     uint64 `json:"addr"`
	Name     string `json:"name"`
	Size     uint64 `json:"size"`
	NArgs    int    `json:"nargs"`
	NInstrs  int    `json:"ninstrs"`
	NBBs     int    `json:"nbbs"`
	CallRefs []Ref  `json:"callrefs,omitempty"`
	Ops      []Op   `json:"ops,omitempty"`
}

// Op is one disassembled instruction of a function.
type Op struct {
	Addr   uint64 `json:"addr"`
	Type   string `json:"type"` // r2 op type: jmp, ujmp, call, ucall, mov, ret, ...
	Disasm string `json:"disasm"`
	Bytes  string `json:"bytes"`
	Size   int    `json:"size"`
	Jump   uint64 `json:"jump,omitempty"`
	Ptr    uint64 `json:"ptr,omitempty"`
}

// Operands returns the text after the mnemonic, e.g. "dword [0x404000], 1".
func (o Op) Operands() string {
	_, rest, _ := strings.Cut(strings.TrimSpace(o.Disasm), " ")
	return strings.TrimSpace(rest)
}

// Import is an imported symbol and the address its stub jumps through.
type Import struct {
	Name string `json:"name"`
	Lib  string `json:"libname"`
	PLT  uint64 `json:"plt"`
}

// Info is the subset of "ij" the classifier needs.
type Info struct {
	Arch string
	Bits int
}

type rawFunction struct {
	location
	Name     string `json:"name"`
	Size     uint64 `json:"size"`
	NArgs    int    `json:"nargs"`
	NInstrs  int    `json:"ninstrs"`
	NBBs     int    `json:"nbbs"`
	CallRefs []Ref  `json:"callrefs"`
}

type rawOp struct {
	location
	Type   string `json:"type"`
	Disasm string `json:"disasm"`
	Opcode string `json:"opcode"`
	Bytes  string `json:"bytes"`
	Size   int    `json:"size"`
	Jump   uint64 `json:"jump"`
	Ptr    uint64 `json:"ptr"`
}

type rawInfo struct {
	Bin struct {
		Arch string `json:"arch"`
		Bits int    `json:"bits"`
	} `json:"bin"`
}

func decodeFunctions(data string) ([]Function, error) {
	var raw []rawFunction
	if err := decodeJSON(data, &raw); err != nil {
		return nil, err
	}
	funcs := make([]Function, 0, len(raw))
	for _, r := range raw {
		funcs = append(funcs, Function{
			Addr:     r.address(),
			Name:     r.Name,
			Size:     r.Size,
			NArgs:    r.NArgs,
			NInstrs:  r.NInstrs,
			NBBs:     r.NBBs,
			CallRefs: r.CallRefs,
		})
	}
	return funcs, nil
}

func decodeOps(data string) ([]Op, error) {
	var raw struct {
		Ops []rawOp `json:"ops"`
	}
	if err := decodeJSON(data, &raw); err != nil {
		return nil, err
	}
	ops := make([]Op, 0, len(raw.Ops))
	for _, r := range raw.Ops {
		// Invalid bytes are reported as type "invalid" with no disasm.
		text := r.Disasm
		if text == "" {
			text = r.Opcode
		}
		ops = append(ops, Op{
			Addr:   r.address(),
			Type:   r.Type,
			Disasm: text,
			Bytes:  r.Bytes,
			Size:   r.Size,
			Jump:   r.Jump,
			Ptr:    r.Ptr,
		})
	}
	return ops, nil
}

func decodeJSON(data string, v any) error {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
