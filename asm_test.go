package main

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestPCLabelsAreDense(t *testing.T) {
	a := NewAssembler()
	for want := PCLabel(1); want <= 100; want++ {
		if got := a.NewPCLabel(); got != want {
			t.Fatalf("NewPCLabel = %d, want %d", got, want)
		}
	}
}

func TestPCLabelTableGrowthKeepsIDs(t *testing.T) {
	a := NewAssembler()
	first := a.NewPCLabel()
	a.Place(first)
	a.b(0x90)

	// Grow the table well past its initial capacity.
	for i := 0; i < 5000; i++ {
		a.NewPCLabel()
	}

	if got := a.labelOffsets[first]; got != 0 {
		t.Errorf("label %d offset = %d after growth, want 0", first, got)
	}
}

func TestForwardJumpResolution(t *testing.T) {
	a := NewAssembler()
	l := a.NewPCLabel()

	a.b(0xE9) // jmp rel32
	a.rel32To(l)
	a.b(0x90, 0x90, 0x90) // 3 bytes skipped
	a.Place(l)
	a.b(0xC3)

	size, err := a.Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if size != 9 {
		t.Fatalf("size = %d, want 9", size)
	}

	code := make([]byte, size)
	a.Encode(code)

	rel := int32(binary.LittleEndian.Uint32(code[1:]))
	if rel != 3 {
		t.Errorf("rel32 = %d, want 3", rel)
	}
	if got := a.Offset(l); got != 8 {
		t.Errorf("Offset = %d, want 8", got)
	}
}

func TestBackwardJumpResolution(t *testing.T) {
	a := NewAssembler()
	l := a.NewPCLabel()

	a.Place(l)
	a.b(0x90)
	a.b(0xE9)
	a.rel32To(l)

	if _, err := a.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}

	rel := int32(binary.LittleEndian.Uint32(a.buf[2:]))
	if rel != -6 {
		t.Errorf("rel32 = %d, want -6", rel)
	}
}

func TestUnplacedLabelFailsLink(t *testing.T) {
	a := NewAssembler()
	l := a.NewPCLabel()
	a.b(0xE9)
	a.rel32To(l)

	if _, err := a.Link(); err == nil {
		t.Error("Link succeeded with an unplaced label")
	}
}

func TestLocalLabels(t *testing.T) {
	a := NewAssembler()

	a.b(0xE9) // jmp >1
	a.rel32Forward(1)
	a.b(0x90, 0x90)
	a.PlaceLocal(1) // 1:
	a.b(0x90)
	a.b(0xE9) // jmp <1
	a.rel32Back(1)

	if _, err := a.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}

	fwd := int32(binary.LittleEndian.Uint32(a.buf[1:]))
	if fwd != 2 {
		t.Errorf("forward rel = %d, want 2", fwd)
	}
	back := int32(binary.LittleEndian.Uint32(a.buf[9:]))
	if back != -6 {
		t.Errorf("backward rel = %d, want -6", back)
	}
}

func TestLocalLabelReplacement(t *testing.T) {
	a := NewAssembler()

	// Two separate scopes of label 1; each backward reference binds to
	// the most recent placement.
	a.PlaceLocal(1)
	a.b(0x90, 0x90, 0x90, 0x90)
	a.PlaceLocal(1)
	a.b(0xE9)
	a.rel32Back(1)

	back := int32(binary.LittleEndian.Uint32(a.buf[5:]))
	if back != -5 {
		t.Errorf("backward rel = %d, want -5", back)
	}
}

func TestMovAbsRAXPlaceholder(t *testing.T) {
	a := NewAssembler()
	a.b(0x90, 0x90) // some preceding code

	l := a.MovAbsRAXPlaceholder(0x1122334455667788)

	if _, err := a.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}

	off := a.Offset(l)
	if off != 2 {
		t.Fatalf("label offset = %d, want 2", off)
	}
	if !bytes.Equal(a.buf[off:off+2], []byte{0x48, 0xB8}) {
		t.Errorf("prefix = %x, want 48 b8", a.buf[off:off+2])
	}
	// The immediate, and therefore the linker patch site, is at offset+2.
	if got := binary.LittleEndian.Uint64(a.buf[off+2:]); got != 0x1122334455667788 {
		t.Errorf("imm64 = %#x", got)
	}
}
