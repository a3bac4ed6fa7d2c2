package transpiler

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/loadwasm/loadwasm/internal/wasm"
)

// Instruction is one decoded instruction of a transpiled body.
type Instruction struct {
	// Offset is the position of the opcode in the body.
	Offset uint32
	Op     Opcode
	// Immediates are in encoding order. A br_table lists keep and n, then drop and target per entry.
	Immediates []uint64
}

// String implements fmt.Stringer
func (i Instruction) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "%04x %s", i.Offset, OpName(i.Op))
	switch i.Op {
	case OpUseMemory, OpUseTable, OpUseGlobal:
		fmt.Fprintf(&ret, " %s[%d]", wasm.LocationKind(i.Immediates[0]), i.Immediates[1])
		return ret.String()
	}
	for _, v := range i.Immediates {
		fmt.Fprintf(&ret, " %d", v)
	}
	return ret.String()
}

// Disassemble decodes a transpiled body.
func Disassemble(code []byte) ([]Instruction, error) {
	var ret []Instruction
	for pc := 0; pc < len(code); {
		op := code[pc]
		imm, ok := opImmediate(op)
		if !ok {
			return nil, fmt.Errorf("invalid opcode %#x at %#x", op, pc)
		}
		in := Instruction{Offset: uint32(pc), Op: op}
		pc++

		need := func(n int) error {
			if pc+n > len(code) {
				return fmt.Errorf("%s at %#x: truncated immediates", OpName(op), in.Offset)
			}
			return nil
		}
		u32s := func(n int) error {
			if err := need(4 * n); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				in.Immediates = append(in.Immediates, uint64(binary.LittleEndian.Uint32(code[pc:])))
				pc += 4
			}
			return nil
		}

		var err error
		switch imm {
		case immU32:
			err = u32s(1)
		case immU32x2:
			err = u32s(2)
		case immU32x3:
			err = u32s(3)
		case immU64:
			if err = need(8); err == nil {
				in.Immediates = append(in.Immediates, binary.LittleEndian.Uint64(code[pc:]))
				pc += 8
			}
		case immStore:
			if err = need(5); err == nil {
				in.Immediates = append(in.Immediates, uint64(code[pc]), uint64(binary.LittleEndian.Uint32(code[pc+1:])))
				pc += 5
			}
		case immBrTable:
			if err = u32s(2); err == nil {
				entries := in.Immediates[1] + 1
				if uint64(len(code)-pc) < entries*8 {
					err = need(int(entries * 8))
				} else {
					err = u32s(int(entries * 2))
				}
			}
		}
		if err != nil {
			return nil, err
		}
		ret = append(ret, in)
	}
	return ret, nil
}

// Format disassembles code into one instruction per line, for debugging.
func Format(code []byte) string {
	ins, err := Disassemble(code)
	var ret strings.Builder
	for _, in := range ins {
		ret.WriteString(in.String())
		ret.WriteByte('\n')
	}
	if err != nil {
		ret.WriteString(err.Error())
		ret.WriteByte('\n')
	}
	return ret.String()
}
