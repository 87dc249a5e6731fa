package classify

import (
	"strings"

	"sessionstarter/internal/disasm"
	"sessionstarter/internal/engine"
)

const importMarker = "sym.imp."

var (
	// Unconditional jump op types as reported by r2.
	jumpTypes = map[string]bool{"jmp": true, "ujmp": true, "ijmp": true, "mjmp": true}

	// Op types that end or redirect control flow other than the final ret.
	flowTypes = map[string]bool{
		"jmp": true, "ujmp": true, "ijmp": true, "mjmp": true, "rjmp": true,
		"cjmp": true, "ucjmp": true, "switch": true, "trap": true, "cret": true,
		"call": true, "ucall": true, "ccall": true, "icall": true, "rcall": true,
		"ircall": true, "uccall": true,
	}

	// Argument setup allowed before a wrapper's call.
	setupTypes = map[string]bool{
		"push": true, "upush": true, "rpush": true, "mov": true, "lea": true,
		"xor": true, "sub": true, "add": true, "nop": true, "store": true, "load": true,
	}

	// Stack cleanup allowed between a wrapper's call and its ret.
	cleanupTypes = map[string]bool{
		"add": true, "pop": true, "leave": true, "mov": true, "nop": true,
	}
)

// matchImportJump: the whole body is one unconditional jump to an import.
func matchImportJump(fn engine.Function, ctx Context) (string, string, bool) {
	if len(fn.Ops) != 1 {
		return "", "", false
	}
	op := fn.Ops[0]
	if !jumpTypes[op.Type] {
		return "", "", false
	}
	name := importFromOperand(op.Operands())
	if name == "" {
		for _, addr := range []uint64{op.Ptr, op.Jump} {
			if imp, ok := ctx.Imports[addr]; ok && addr != 0 {
				name = imp
				break
			}
		}
	}
	if name == "" {
		return "", "", false
	}
	return name, name, true
}

// importFromOperand extracts <name> from "sym.imp.<name>" in a jump operand.
func importFromOperand(operand string) string {
	i := strings.Index(operand, importMarker)
	if i < 0 {
		return ""
	}
	name := operand[i+len(importMarker):]
	if j := strings.IndexAny(name, "], "); j >= 0 {
		name = name[:j]
	}
	return name
}

// matchWrapper: argument setup, exactly one call to a named function,
// optional stack cleanup, ret.
func matchWrapper(fn engine.Function, ctx Context) (string, string, bool) {
	if fn.NBBs > 1 || len(fn.Ops) < 2 {
		return "", "", false
	}
	last := len(fn.Ops) - 1
	if fn.Ops[last].Type != "ret" {
		return "", "", false
	}

	callIdx := -1
	for i, op := range fn.Ops[:last] {
		if op.Type == "call" || op.Type == "ucall" {
			if callIdx >= 0 {
				return "", "", false
			}
			callIdx = i
			continue
		}
		if flowTypes[op.Type] {
			return "", "", false
		}
		if callIdx < 0 && !setupTypes[op.Type] {
			return "", "", false
		}
		if callIdx >= 0 && !cleanupTypes[op.Type] {
			return "", "", false
		}
	}
	if callIdx < 0 {
		return "", "", false
	}

	callee, ok := calleeName(fn.Ops[callIdx])
	if !ok {
		return "", "", false
	}
	return strings.ReplaceAll(callee, " ", "_"), callee, true
}

// calleeName returns the display name of a call's target when it is a named
// function: a direct symbol, or a memory slot named by a symbol.
func calleeName(op engine.Op) (string, bool) {
	operand := op.Operands()
	if i := strings.IndexByte(operand, '['); i >= 0 {
		inner := operand[i+1:]
		j := strings.IndexByte(inner, ']')
		if j < 0 {
			return "", false
		}
		operand = inner[:j]
		if strings.ContainsAny(operand, "+*") {
			return "", false
		}
	} else if op.Type != "call" {
		return "", false
	}

	operand = strings.TrimSpace(operand)
	switch {
	case operand == "":
		return "", false
	case strings.HasPrefix(operand, "0x"):
		return "", false
	case strings.HasPrefix(operand, "fcn."):
		return "", false
	}
	// r2 derives "sub.<name>" for unnamed functions it can label by content.
	operand = strings.TrimPrefix(operand, "sub.")
	if operand == "" {
		return "", false
	}
	return operand, true
}

// matchGlobalAssign: no calls, one block, at least one store to a fixed
// address, everything else register setup or frame bookkeeping, then ret.
func matchGlobalAssign(fn engine.Function, ctx Context) (string, string, bool) {
	if fn.NBBs > 1 || len(fn.Ops) < 2 {
		return "", "", false
	}
	for _, ref := range fn.CallRefs {
		if ref.Type == "CALL" {
			return "", "", false
		}
	}

	stores := 0
	last := len(fn.Ops) - 1
	for i, op := range fn.Ops {
		kind := opKind(op, ctx)
		if i == last {
			if kind != disasm.KindRet {
				return "", "", false
			}
			break
		}
		switch kind {
		case disasm.KindGlobalStore:
			stores++
		case disasm.KindRegSetup, disasm.KindFrame, disasm.KindNop:
		default:
			return "", "", false
		}
	}
	if stores == 0 {
		return "", "", false
	}
	return strings.ReplaceAll(fn.Name, ".", ""), "", true
}

// opKind decodes x86 op bytes when available and falls back to the engine's
// op fields otherwise.
func opKind(op engine.Op, ctx Context) disasm.Kind {
	if ctx.Arch == "x86" && op.Bytes != "" {
		if inst, err := disasm.DecodeX86Hex(op.Bytes, op.Addr, ctx.Bits); err == nil {
			return inst.Kind
		}
	}

	operands := op.Operands()
	dst, _, _ := strings.Cut(operands, ",")
	memDst := strings.Contains(dst, "[")
	switch op.Type {
	case "ret":
		return disasm.KindRet
	case "nop":
		return disasm.KindNop
	case "push", "upush", "rpush", "pop", "leave":
		if !memDst {
			return disasm.KindFrame
		}
	case "store":
		// RISC stores name the memory operand last.
		if op.Ptr != 0 && strings.Contains(operands, "[") {
			return disasm.KindGlobalStore
		}
	case "mov":
		if memDst && op.Ptr != 0 {
			return disasm.KindGlobalStore
		}
		if !memDst {
			return disasm.KindRegSetup
		}
	case "lea", "xor", "load", "cast":
		if !memDst {
			return disasm.KindRegSetup
		}
	}
	return disasm.KindOther
}
