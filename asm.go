// asm.go - machine-code buffer with pc-labels and branch fixups
package main

import (
	"encoding/binary"
	"fmt"
)

// PCLabel identifies a position in the code buffer. Labels are allocated
// densely from 1; id 0 is never issued and doubles as "no label".
type PCLabel int

// relFixup is a 4-byte rel32 site at pos, relative to pos+4, resolved against
// a pc-label once every label has been placed.
type relFixup struct {
	pos    int
	target PCLabel
}

// localRef is an unresolved forward reference to a numeric local label.
type localRef struct {
	pos int
	num int
}

// Assembler owns the growing machine-code buffer and the pc-label table.
// Growth never invalidates previously issued label ids.
type Assembler struct {
	buf          []byte
	labelOffsets []int // 1-based; -1 while unplaced
	fixups       []relFixup
	localMarks   [10]int // last placed offset of local labels 1..9
	localPending []localRef
	linked       bool
}

func NewAssembler() *Assembler {
	a := &Assembler{labelOffsets: make([]int, 1, 1<<10)}
	for i := range a.localMarks {
		a.localMarks[i] = -1
	}
	return a
}

// NewPCLabel allocates a fresh pc-label.
func (a *Assembler) NewPCLabel() PCLabel {
	a.labelOffsets = append(a.labelOffsets, -1)
	return PCLabel(len(a.labelOffsets) - 1)
}

// Place marks the current buffer position as the target of l.
func (a *Assembler) Place(l PCLabel) {
	a.labelOffsets[l] = len(a.buf)
}

// Pos returns the current length of the code buffer.
func (a *Assembler) Pos() int {
	return len(a.buf)
}

func (a *Assembler) b(bytes ...byte) {
	a.buf = append(a.buf, bytes...)
}

func (a *Assembler) u32(v uint32) {
	a.buf = binary.LittleEndian.AppendUint32(a.buf, v)
}

func (a *Assembler) u64(v uint64) {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, v)
}

// memOperand emits the ModRM byte, SIB byte if the base demands one, and the
// displacement for a [base+disp] operand. reg is the register field of the
// ModRM byte, base the hardware encoding of the base register.
func (a *Assembler) memOperand(reg, base uint8, disp int) {
	base7 := base & 7
	switch {
	case disp == 0 && base7 != 5:
		a.b(0x00 | (reg&7)<<3 | base7)
		if base7 == 4 {
			a.b(0x24)
		}
	case disp >= -128 && disp <= 127:
		a.b(0x40 | (reg&7)<<3 | base7)
		if base7 == 4 {
			a.b(0x24)
		}
		a.b(byte(int8(disp)))
	default:
		a.b(0x80 | (reg&7)<<3 | base7)
		if base7 == 4 {
			a.b(0x24)
		}
		a.u32(uint32(int32(disp)))
	}
}

// rel32To emits a 4-byte placeholder resolved to l at link time.
func (a *Assembler) rel32To(l PCLabel) {
	a.fixups = append(a.fixups, relFixup{pos: len(a.buf), target: l})
	a.u32(0)
}

// rel32Forward emits a placeholder resolved when local label num is next
// placed.
func (a *Assembler) rel32Forward(num int) {
	a.localPending = append(a.localPending, localRef{pos: len(a.buf), num: num})
	a.u32(0)
}

// rel32Back emits a displacement to the most recent placement of local label
// num.
func (a *Assembler) rel32Back(num int) {
	off := a.localMarks[num]
	if off < 0 {
		internalError("backward reference to unplaced local label %d", num)
	}
	a.u32(uint32(int32(off - (len(a.buf) + 4))))
}

// PlaceLocal places numeric local label num at the current position and
// resolves pending forward references to it. Re-placing a label opens a new
// scope for subsequent backward references.
func (a *Assembler) PlaceLocal(num int) {
	here := len(a.buf)
	a.localMarks[num] = here
	kept := a.localPending[:0]
	for _, ref := range a.localPending {
		if ref.num != num {
			kept = append(kept, ref)
			continue
		}
		binary.LittleEndian.PutUint32(a.buf[ref.pos:], uint32(int32(here-(ref.pos+4))))
	}
	a.localPending = kept
}

// MovAbsRAXPlaceholder emits `mov rax, imm64` (REX.W + B8, 8-byte immediate)
// with a fresh pc-label placed at the instruction start, and returns that
// label. The immediate starts two bytes past the label, which is where the
// linker patches the final address.
func (a *Assembler) MovAbsRAXPlaceholder(imm uint64) PCLabel {
	l := a.NewPCLabel()
	a.Place(l)
	a.b(0x48, 0xB8)
	a.u64(imm)
	return l
}

// Link resolves every rel32 branch site and freezes the buffer, returning the
// final code size.
func (a *Assembler) Link() (int, error) {
	if len(a.localPending) > 0 {
		return 0, fmt.Errorf("unresolved forward reference to local label %d", a.localPending[0].num)
	}
	for _, f := range a.fixups {
		off := a.labelOffsets[f.target]
		if off < 0 {
			return 0, fmt.Errorf("branch to unplaced pc-label %d", f.target)
		}
		binary.LittleEndian.PutUint32(a.buf[f.pos:], uint32(int32(off-(f.pos+4))))
	}
	a.linked = true
	return len(a.buf), nil
}

// Offset returns the byte offset of a placed pc-label.
func (a *Assembler) Offset(l PCLabel) int {
	return a.labelOffsets[l]
}

// Encode copies the linked machine code into dst and returns the number of
// bytes written.
func (a *Assembler) Encode(dst []byte) int {
	if !a.linked {
		internalError("Encode before Link")
	}
	return copy(dst, a.buf)
}
