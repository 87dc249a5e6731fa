// Package disasm decodes the instruction bytes the engine reports for a
// function so stub shapes can be checked against real operands.
package disasm

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Kind is the coarse effect of one instruction.
type Kind int

const (
	KindOther       Kind = iota
	KindGlobalStore      // store to a fixed absolute or RIP-relative address
	KindRegSetup         // writes a register only
	KindFrame            // push/pop/leave of the frame
	KindNop
	KindRet
)

func (k Kind) String() string {
	switch k {
	case KindGlobalStore:
		return "global-store"
	case KindRegSetup:
		return "reg-setup"
	case KindFrame:
		return "frame"
	case KindNop:
		return "nop"
	case KindRet:
		return "ret"
	}
	return "other"
}

// Inst is a decoded x86 instruction.
type Inst struct {
	Addr   uint64
	Len    int
	Text   string
	Kind   Kind
	Target uint64 // store address for KindGlobalStore
}

// storeOps write their second operand into their first.
var storeOps = map[x86asm.Op]bool{
	x86asm.MOV:       true,
	x86asm.MOVSS:     true,
	x86asm.MOVSD_XMM: true,
	x86asm.MOVQ:      true,
	x86asm.MOVD:      true,
	x86asm.MOVUPS:    true,
	x86asm.MOVAPS:    true,
	x86asm.MOVDQU:    true,
	x86asm.MOVDQA:    true,
}

// setupOps only compute a value into their destination.
var setupOps = map[x86asm.Op]bool{
	x86asm.MOV:    true,
	x86asm.MOVZX:  true,
	x86asm.MOVSX:  true,
	x86asm.MOVSXD: true,
	x86asm.LEA:    true,
	x86asm.XOR:    true,
}

// Mode maps an engine word size to an x86asm decode mode.
func Mode(bits int) int {
	switch bits {
	case 16, 64:
		return bits
	}
	return 32
}

// DecodeX86Hex decodes the hex-encoded instruction at addr.
func DecodeX86Hex(hexBytes string, addr uint64, bits int) (Inst, error) {
	code, err := hex.DecodeString(hexBytes)
	if err != nil {
		return Inst{}, fmt.Errorf("disasm: bad bytes %q: %w", hexBytes, err)
	}
	return DecodeX86(code, addr, bits)
}

// DecodeX86 decodes one instruction from code and classifies its effect.
func DecodeX86(code []byte, addr uint64, bits int) (Inst, error) {
	mode := Mode(bits)
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return Inst{}, fmt.Errorf("disasm: decode at 0x%x: %w", addr, err)
	}

	out := Inst{Addr: addr, Len: inst.Len, Text: inst.String()}
	switch {
	case inst.Op == x86asm.RET:
		out.Kind = KindRet
	case inst.Op == x86asm.NOP:
		out.Kind = KindNop
	case inst.Op == x86asm.PUSH || inst.Op == x86asm.POP || inst.Op == x86asm.LEAVE:
		if _, ok := inst.Args[0].(x86asm.Reg); ok || inst.Op == x86asm.LEAVE {
			out.Kind = KindFrame
		}
	case storeOps[inst.Op]:
		if target, ok := globalTarget(inst, addr, mode); ok {
			out.Kind = KindGlobalStore
			out.Target = target
			break
		}
		if _, ok := inst.Args[0].(x86asm.Reg); ok {
			out.Kind = KindRegSetup
		}
	case setupOps[inst.Op]:
		if _, ok := inst.Args[0].(x86asm.Reg); ok {
			out.Kind = KindRegSetup
		}
	}
	return out, nil
}

// globalTarget returns the fixed address a store writes to, if any.
// Segment-relative (fs:/gs:) and register-based stores do not qualify.
func globalTarget(inst x86asm.Inst, addr uint64, mode int) (uint64, bool) {
	mem, ok := inst.Args[0].(x86asm.Mem)
	if !ok || mem.Index != 0 {
		return 0, false
	}
	if mem.Segment != 0 && mem.Segment != x86asm.DS {
		return 0, false
	}
	switch mem.Base {
	case 0:
		if mode == 64 {
			return uint64(mem.Disp), true
		}
		return uint64(uint32(mem.Disp)), true
	case x86asm.RIP:
		return uint64(int64(addr) + int64(inst.Len) + mem.Disp), true
	}
	return 0, false
}
