// cmp.go - comparisons and condition materialization
package main

// setccOpcodes maps a condition suffix to the 0F 9x opcode byte.
var setccOpcodes = map[string]byte{
	"e":  0x94,
	"ne": 0x95,
	"b":  0x92,
	"be": 0x96,
	"a":  0x97,
	"ae": 0x93,
	"l":  0x9C,
	"le": 0x9E,
	"p":  0x9A,
	"np": 0x9B,
}

func (o *Out) CmpEAXZero() {
	o.println("  cmp eax, 0")
	o.asm.b(0x83, 0xF8, 0x00)
}

func (o *Out) CmpRAXZero() {
	o.println("  cmp rax, 0")
	o.asm.b(0x48, 0x83, 0xF8, 0x00)
}

// CmpRAXImm compares rax (or eax) against a sign-extended immediate.
func (o *Out) CmpRAXImm(v int64, is64 bool) {
	if is64 {
		o.println("  cmp rax, %d", v)
		o.asm.b(0x48)
	} else {
		o.println("  cmp eax, %d", v)
	}
	if v >= -128 && v <= 127 {
		o.asm.b(0x83, 0xF8, byte(int8(v)))
		return
	}
	o.asm.b(0x81, 0xF8)
	o.asm.u32(uint32(int32(v)))
}

// CmpRDIImm compares rdi (or edi) against a sign-extended immediate.
func (o *Out) CmpRDIImm(v int64, is64 bool) {
	if is64 {
		o.println("  cmp rdi, %d", v)
		o.asm.b(0x48)
	} else {
		o.println("  cmp edi, %d", v)
	}
	if v >= -128 && v <= 127 {
		o.asm.b(0x83, 0xFF, byte(int8(v)))
		return
	}
	o.asm.b(0x81, 0xFF)
	o.asm.u32(uint32(int32(v)))
}

// Setcc materializes a condition into an 8-bit register.
func (o *Out) Setcc(cc, reg string) {
	opc, ok := setccOpcodes[cc]
	if !ok {
		internalError("unknown condition %q", cc)
	}
	o.println("  set%s %s", cc, reg)
	r := reg8(reg)
	o.asm.b(0x0F, opc, 0xC0|r.Encoding&7)
}

func (o *Out) AndALDL() {
	o.println("  and al, dl")
	o.asm.b(0x20, 0xD0)
}

func (o *Out) OrALDL() {
	o.println("  or al, dl")
	o.asm.b(0x08, 0xD0)
}

func (o *Out) AndALImm(v byte) {
	o.println("  and al, %d", v)
	o.asm.b(0x24, v)
}

func (o *Out) TestRAXRAX() {
	o.println("  test rax, rax")
	o.asm.b(0x48, 0x85, 0xC0)
}
