// jmp.go - branches, calls, stack pushes and pops
package main

// jccOpcodes maps a condition suffix to the second byte of the 0F 8x rel32
// form.
var jccOpcodes = map[string]byte{
	"e":  0x84,
	"ne": 0x85,
	"b":  0x82,
	"be": 0x86,
	"a":  0x87,
	"ae": 0x83,
	"s":  0x88,
	"ns": 0x89,
}

// Jcc emits a conditional branch to a pc-label. All branches use the rel32
// form; the displacement is resolved at link time.
func (o *Out) Jcc(cc, name string, l PCLabel) {
	opc, ok := jccOpcodes[cc]
	if !ok {
		internalError("unknown condition %q", cc)
	}
	o.println("  j%s %s", cc, name)
	o.asm.b(0x0F, opc)
	o.asm.rel32To(l)
}

func (o *Out) Je(name string, l PCLabel)  { o.Jcc("e", name, l) }
func (o *Out) Jne(name string, l PCLabel) { o.Jcc("ne", name, l) }
func (o *Out) Jbe(name string, l PCLabel) { o.Jcc("be", name, l) }

func (o *Out) Jmp(name string, l PCLabel) {
	o.println("  jmp %s", name)
	o.asm.b(0xE9)
	o.asm.rel32To(l)
}

func (o *Out) JmpRAX() {
	o.println("  jmp rax")
	o.asm.b(0xFF, 0xE0)
}

func (o *Out) CallR10() {
	o.println("  call r10")
	o.asm.b(0x41, 0xFF, 0xD2)
}

func (o *Out) Ret() {
	o.println("  ret")
	o.asm.b(0xC3)
}

func (o *Out) PushRAX() {
	o.println("  push rax")
	o.asm.b(0x50)
}

func (o *Out) PushRBP() {
	o.println("  push rbp")
	o.asm.b(0x55)
}

// PopReg pops the stack top into a 64-bit register.
func (o *Out) PopReg(reg string) {
	o.println("  pop %s", reg)
	r := reg64(reg)
	if r.Encoding >= 8 {
		o.asm.b(0x41) // REX.B
	}
	o.asm.b(0x58 + r.Encoding&7)
}

func (o *Out) SubRSPImm(n int) {
	o.println("  sub rsp, %d", n)
	if n >= -128 && n <= 127 {
		o.asm.b(0x48, 0x83, 0xEC, byte(int8(n)))
		return
	}
	o.asm.b(0x48, 0x81, 0xEC)
	o.asm.u32(uint32(int32(n)))
}

func (o *Out) AddRSPImm(n int) {
	o.println("  add rsp, %d", n)
	if n >= -128 && n <= 127 {
		o.asm.b(0x48, 0x83, 0xC4, byte(int8(n)))
		return
	}
	o.asm.b(0x48, 0x81, 0xC4)
	o.asm.u32(uint32(int32(n)))
}
