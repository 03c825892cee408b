// sse.go - scalar SSE float moves, arithmetic, compares and conversions
package main

// Loads and stores between xmm registers and memory.

func (o *Out) MovssX0MemRAX() {
	o.println("  movss xmm0, [rax]")
	o.asm.b(0xF3, 0x0F, 0x10, 0x00)
}

func (o *Out) MovsdX0MemRAX() {
	o.println("  movsd xmm0, [rax]")
	o.asm.b(0xF2, 0x0F, 0x10, 0x00)
}

func (o *Out) MovssMemRDIX0() {
	o.println("  movss [rdi], xmm0")
	o.asm.b(0xF3, 0x0F, 0x11, 0x07)
}

func (o *Out) MovsdMemRDIX0() {
	o.println("  movsd [rdi], xmm0")
	o.asm.b(0xF2, 0x0F, 0x11, 0x07)
}

func (o *Out) MovssX0MemRDI(disp int) {
	if disp == 0 {
		o.println("  movss xmm0, [rdi]")
	} else {
		o.println("  movss xmm0, [rdi+%d]", disp)
	}
	o.asm.b(0xF3, 0x0F, 0x10)
	o.asm.memOperand(0, 7, disp)
}

func (o *Out) MovsdX0MemRDI(disp int) {
	if disp == 0 {
		o.println("  movsd xmm0, [rdi]")
	} else {
		o.println("  movsd xmm0, [rdi+%d]", disp)
	}
	o.asm.b(0xF2, 0x0F, 0x10)
	o.asm.memOperand(0, 7, disp)
}

func (o *Out) MovssXnMemRDI(n, disp int) {
	o.println("  movss xmm%d, [rdi+%d]", n, disp)
	o.asm.b(0xF3, 0x0F, 0x10)
	o.asm.memOperand(uint8(n), 7, disp)
}

func (o *Out) MovsdXnMemRDI(n, disp int) {
	o.println("  movsd xmm%d, [rdi+%d]", n, disp)
	o.asm.b(0xF2, 0x0F, 0x10)
	o.asm.memOperand(uint8(n), 7, disp)
}

// MovsdMemRSPX0 spills xmm0 to the stack top (float push).
func (o *Out) MovsdMemRSPX0() {
	o.println("  movsd [rsp], xmm0")
	o.asm.b(0xF2, 0x0F, 0x11)
	o.asm.memOperand(0, 4, 0)
}

// MovsdXnMemRSP reloads the stack top into xmm(n) (float pop).
func (o *Out) MovsdXnMemRSP(n int) {
	o.println("  movsd xmm%d, [rsp]", n)
	o.asm.b(0xF2, 0x0F, 0x10)
	o.asm.memOperand(uint8(n), 4, 0)
}

func (o *Out) MovssMemRBPXn(off, n int) {
	o.println("  movss [rbp+%d], xmm%d", off, n)
	o.asm.b(0xF3, 0x0F, 0x11)
	o.asm.memOperand(uint8(n), 5, off)
}

func (o *Out) MovsdMemRBPXn(off, n int) {
	o.println("  movsd [rbp+%d], xmm%d", off, n)
	o.asm.b(0xF2, 0x0F, 0x11)
	o.asm.memOperand(uint8(n), 5, off)
}

// MovqX0RAX and MovqX1RAX move raw bits from rax into an xmm register.

func (o *Out) MovqX0RAX() {
	o.println("  movq xmm0, rax")
	o.asm.b(0x66, 0x48, 0x0F, 0x6E, 0xC0)
}

func (o *Out) MovqX1RAX() {
	o.println("  movq xmm1, rax")
	o.asm.b(0x66, 0x48, 0x0F, 0x6E, 0xC8)
}

// Sign-bit and zeroing idioms.

func (o *Out) XorpsX0X1() {
	o.println("  xorps xmm0, xmm1")
	o.asm.b(0x0F, 0x57, 0xC1)
}

func (o *Out) XorpdX0X1() {
	o.println("  xorpd xmm0, xmm1")
	o.asm.b(0x66, 0x0F, 0x57, 0xC1)
}

func (o *Out) XorpsX1X1() {
	o.println("  xorps xmm1, xmm1")
	o.asm.b(0x0F, 0x57, 0xC9)
}

func (o *Out) XorpdX1X1() {
	o.println("  xorpd xmm1, xmm1")
	o.asm.b(0x66, 0x0F, 0x57, 0xC9)
}

// Scalar arithmetic, xmm0 op= xmm1.

func (o *Out) AddssX0X1() {
	o.println("  addss xmm0, xmm1")
	o.asm.b(0xF3, 0x0F, 0x58, 0xC1)
}

func (o *Out) SubssX0X1() {
	o.println("  subss xmm0, xmm1")
	o.asm.b(0xF3, 0x0F, 0x5C, 0xC1)
}

func (o *Out) MulssX0X1() {
	o.println("  mulss xmm0, xmm1")
	o.asm.b(0xF3, 0x0F, 0x59, 0xC1)
}

func (o *Out) DivssX0X1() {
	o.println("  divss xmm0, xmm1")
	o.asm.b(0xF3, 0x0F, 0x5E, 0xC1)
}

func (o *Out) AddsdX0X1() {
	o.println("  addsd xmm0, xmm1")
	o.asm.b(0xF2, 0x0F, 0x58, 0xC1)
}

func (o *Out) SubsdX0X1() {
	o.println("  subsd xmm0, xmm1")
	o.asm.b(0xF2, 0x0F, 0x5C, 0xC1)
}

func (o *Out) MulsdX0X1() {
	o.println("  mulsd xmm0, xmm1")
	o.asm.b(0xF2, 0x0F, 0x59, 0xC1)
}

func (o *Out) DivsdX0X1() {
	o.println("  divsd xmm0, xmm1")
	o.asm.b(0xF2, 0x0F, 0x5E, 0xC1)
}

// Unordered compares. The operand order is second-then-first so the setcc
// sequences read naturally for <, <= (seta, setae).

func (o *Out) UcomissX0X1() {
	o.println("  ucomiss xmm0, xmm1")
	o.asm.b(0x0F, 0x2E, 0xC1)
}

func (o *Out) UcomisdX0X1() {
	o.println("  ucomisd xmm0, xmm1")
	o.asm.b(0x66, 0x0F, 0x2E, 0xC1)
}

func (o *Out) UcomissX1X0() {
	o.println("  ucomiss xmm1, xmm0")
	o.asm.b(0x0F, 0x2E, 0xC8)
}

func (o *Out) UcomisdX1X0() {
	o.println("  ucomisd xmm1, xmm0")
	o.asm.b(0x66, 0x0F, 0x2E, 0xC8)
}
