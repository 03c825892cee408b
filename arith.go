// arith.go - integer arithmetic and bit operations
package main

// aluOpcodes maps the r/m,reg forms of the classic ALU instructions.
var aluOpcodes = map[string]byte{
	"add": 0x01,
	"sub": 0x29,
	"and": 0x21,
	"or":  0x09,
	"xor": 0x31,
	"cmp": 0x39,
}

// AluRAXRDI emits `op rax, rdi` (or the 32-bit form) for the classic ALU
// operations.
func (o *Out) AluRAXRDI(op string, is64 bool) {
	opc, ok := aluOpcodes[op]
	if !ok {
		internalError("unknown ALU op %q", op)
	}
	if is64 {
		o.println("  %s rax, rdi", op)
		o.asm.b(0x48, opc, 0xF8)
	} else {
		o.println("  %s eax, edi", op)
		o.asm.b(opc, 0xF8)
	}
}

// ImulRAXRDI multiplies rax by rdi.
func (o *Out) ImulRAXRDI(is64 bool) {
	if is64 {
		o.println("  imul rax, rdi")
		o.asm.b(0x48, 0x0F, 0xAF, 0xC7)
	} else {
		o.println("  imul eax, edi")
		o.asm.b(0x0F, 0xAF, 0xC7)
	}
}

func (o *Out) NegRAX() {
	o.println("  neg rax")
	o.asm.b(0x48, 0xF7, 0xD8)
}

func (o *Out) NotRAX() {
	o.println("  not rax")
	o.asm.b(0x48, 0xF7, 0xD0)
}

// AddRAXImm adds a constant to rax.
func (o *Out) AddRAXImm(v int32) {
	o.println("  add rax, %d", v)
	if v >= -128 && v <= 127 {
		o.asm.b(0x48, 0x83, 0xC0, byte(int8(v)))
		return
	}
	o.asm.b(0x48, 0x81, 0xC0)
	o.asm.u32(uint32(v))
}

// SubRAXRDI subtracts rdi from rax.
func (o *Out) SubRAXRDI() {
	o.println("  sub rax, rdi")
	o.asm.b(0x48, 0x29, 0xF8)
}

// OrRAXRDI ors rdi into rax.
func (o *Out) OrRAXRDI() {
	o.println("  or rax, rdi")
	o.asm.b(0x48, 0x09, 0xF8)
}

// AndRAXR9 masks rax with r9.
func (o *Out) AndRAXR9() {
	o.println("  and rax, r9")
	o.asm.b(0x4C, 0x21, 0xC8)
}

// AndRDIImm masks rdi with a sign-extended 32-bit immediate.
func (o *Out) AndRDIImm(v int64) {
	o.println("  and rdi, %d", v)
	o.asm.b(0x48, 0x81, 0xE7)
	o.asm.u32(uint32(int32(v)))
}

// SubRDIImm subtracts an immediate from rdi or edi.
func (o *Out) SubRDIImm(v int64, is64 bool) {
	if is64 {
		o.println("  sub rdi, %d", v)
		o.asm.b(0x48)
	} else {
		o.println("  sub edi, %d", v)
	}
	if v >= -128 && v <= 127 {
		o.asm.b(0x83, 0xEF, byte(int8(v)))
		return
	}
	o.asm.b(0x81, 0xEF)
	o.asm.u32(uint32(int32(v)))
}

// Division. Signed division sign-extends rax into rdx first; unsigned
// division zeroes rdx.

func (o *Out) Cdq() {
	o.println("  cdq")
	o.asm.b(0x99)
}

func (o *Out) Cqo() {
	o.println("  cqo")
	o.asm.b(0x48, 0x99)
}

func (o *Out) IdivRDI(is64 bool) {
	if is64 {
		o.println("  idiv rdi")
		o.asm.b(0x48, 0xF7, 0xFF)
	} else {
		o.println("  idiv edi")
		o.asm.b(0xF7, 0xFF)
	}
}

func (o *Out) DivRDI(is64 bool) {
	if is64 {
		o.println("  div rdi")
		o.asm.b(0x48, 0xF7, 0xF7)
	} else {
		o.println("  div edi")
		o.asm.b(0xF7, 0xF7)
	}
}

func (o *Out) MovRDXZero(is64 bool) {
	if is64 {
		o.println("  mov rdx, 0")
		o.asm.b(0x48, 0xC7, 0xC2)
	} else {
		o.println("  mov edx, 0")
		o.asm.b(0xC7, 0xC2)
	}
	o.asm.u32(0)
}

// Shifts.

func (o *Out) MovRCXRDI() {
	o.println("  mov rcx, rdi")
	o.asm.b(0x48, 0x89, 0xF9)
}

func (o *Out) ShlRAXCl(is64 bool) {
	if is64 {
		o.println("  shl rax, cl")
		o.asm.b(0x48, 0xD3, 0xE0)
	} else {
		o.println("  shl eax, cl")
		o.asm.b(0xD3, 0xE0)
	}
}

func (o *Out) ShrRAXCl(is64 bool) {
	if is64 {
		o.println("  shr rax, cl")
		o.asm.b(0x48, 0xD3, 0xE8)
	} else {
		o.println("  shr eax, cl")
		o.asm.b(0xD3, 0xE8)
	}
}

func (o *Out) SarRAXCl(is64 bool) {
	if is64 {
		o.println("  sar rax, cl")
		o.asm.b(0x48, 0xD3, 0xF8)
	} else {
		o.println("  sar eax, cl")
		o.asm.b(0xD3, 0xF8)
	}
}

func (o *Out) ShlRAXImm(n int) {
	o.println("  shl rax, %d", n)
	o.asm.b(0x48, 0xC1, 0xE0, byte(n))
}

func (o *Out) ShrRAXImm(n int) {
	o.println("  shr rax, %d", n)
	o.asm.b(0x48, 0xC1, 0xE8, byte(n))
}

func (o *Out) SarRAXImm(n int) {
	o.println("  sar rax, %d", n)
	o.asm.b(0x48, 0xC1, 0xF8, byte(n))
}

func (o *Out) ShlRDIImm(n int) {
	o.println("  shl rdi, %d", n)
	o.asm.b(0x48, 0xC1, 0xE7, byte(n))
}

func (o *Out) ShlReg64Imm(reg string, n int) {
	o.println("  shl %s, %d", reg, n)
	r := reg64(reg)
	rex := uint8(0x48)
	if r.Encoding >= 8 {
		rex |= 0x01 // REX.B
	}
	o.asm.b(rex, 0xC1, 0xE0|r.Encoding&7, byte(n))
}

func (o *Out) ShrReg64Imm(reg string, n int) {
	o.println("  shr %s, %d", reg, n)
	r := reg64(reg)
	rex := uint8(0x48)
	if r.Encoding >= 8 {
		rex |= 0x01 // REX.B
	}
	o.asm.b(rex, 0xC1, 0xE8|r.Encoding&7, byte(n))
}
