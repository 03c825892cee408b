// mov.go - data movement instructions
package main

// MovRAXImm loads a constant into rax, picking the short sign-extended form
// when the value fits in 32 bits.
func (o *Out) MovRAXImm(v int64) {
	o.println("  mov rax, %d", v)
	if v >= -1<<31 && v < 1<<31 {
		// REX.W + C7 /0, imm32 sign-extended
		o.asm.b(0x48, 0xC7, 0xC0)
		o.asm.u32(uint32(int32(v)))
		return
	}
	// REX.W + B8, imm64
	o.asm.b(0x48, 0xB8)
	o.asm.u64(uint64(v))
}

// MovReg64Imm is MovRAXImm for an arbitrary 64-bit register.
func (o *Out) MovReg64Imm(reg string, v int64) {
	o.println("  mov %s, %d", reg, v)
	r := reg64(reg)
	rex := uint8(0x48)
	if r.Encoding >= 8 {
		rex |= 0x01 // REX.B
	}
	if v >= -1<<31 && v < 1<<31 {
		o.asm.b(rex, 0xC7, 0xC0|r.Encoding&7)
		o.asm.u32(uint32(int32(v)))
		return
	}
	o.asm.b(rex, 0xB8+r.Encoding&7)
	o.asm.u64(uint64(v))
}

func (o *Out) MovEAXImm(v uint32, comment string) {
	if comment != "" {
		o.println("  mov eax, %d  ; %s", v, comment)
	} else {
		o.println("  mov eax, %d", v)
	}
	o.asm.b(0xB8)
	o.asm.u32(v)
}

// MovRAXImm64 always uses the 8-byte immediate form.
func (o *Out) MovRAXImm64(v uint64, comment string) {
	if comment != "" {
		o.println("  mov rax, %d  ; %s", v, comment)
	} else {
		o.println("  mov rax, %d", v)
	}
	o.asm.b(0x48, 0xB8)
	o.asm.u64(v)
}

// MovRegReg moves between two 64-bit registers.
func (o *Out) MovRegReg(dst, src string) {
	o.println("  mov %s, %s", dst, src)
	d, s := reg64(dst), reg64(src)
	rex := uint8(0x48)
	if d.Encoding >= 8 {
		rex |= 0x01 // REX.B
	}
	if s.Encoding >= 8 {
		rex |= 0x04 // REX.R
	}
	o.asm.b(rex, 0x89, 0xC0|s.Encoding&7<<3|d.Encoding&7)
}

// Mov32EDIEAX copies eax into edi.
func (o *Out) Mov32EDIEAX() {
	o.println("  mov edi, eax")
	o.asm.b(0x89, 0xC7)
}

// MovRegMemRBP loads a 64-bit register from [rbp+off].
func (o *Out) MovRegMemRBP(reg string, off int) {
	o.println("  mov %s, [rbp+%d]", reg, off)
	r := reg64(reg)
	rex := uint8(0x48)
	if r.Encoding >= 8 {
		rex |= 0x04 // REX.R
	}
	o.asm.b(rex, 0x8B)
	o.asm.memOperand(r.Encoding, 5, off)
}

// MovMemRBPReg stores a 64-bit register to [rbp+off].
func (o *Out) MovMemRBPReg(off int, reg string) {
	o.println("  mov [rbp+%d], %s", off, reg)
	r := reg64(reg)
	rex := uint8(0x48)
	if r.Encoding >= 8 {
		rex |= 0x04 // REX.R
	}
	o.asm.b(rex, 0x89)
	o.asm.memOperand(r.Encoding, 5, off)
}

// MovRAXMemRSP loads rax from the stack top.
func (o *Out) MovRAXMemRSP() {
	o.println("  mov rax, [rsp]")
	o.asm.b(0x48, 0x8B)
	o.asm.memOperand(0, 4, 0)
}

// Sized loads through rax, extending char and short to int width.

func (o *Out) MovsxEAXByteRAX() {
	o.println("  movsx eax, byte [rax]")
	o.asm.b(0x0F, 0xBE, 0x00)
}

func (o *Out) MovzxEAXByteRAX() {
	o.println("  movzx eax, byte [rax]")
	o.asm.b(0x0F, 0xB6, 0x00)
}

func (o *Out) MovsxEAXWordRAX() {
	o.println("  movsx eax, word [rax]")
	o.asm.b(0x0F, 0xBF, 0x00)
}

func (o *Out) MovzxEAXWordRAX() {
	o.println("  movzx eax, word [rax]")
	o.asm.b(0x0F, 0xB7, 0x00)
}

func (o *Out) MovsxdRAXDwordRAX() {
	o.println("  movsx rax, dword [rax]")
	o.asm.b(0x48, 0x63, 0x00)
}

func (o *Out) MovRAXQwordRAX() {
	o.println("  mov rax, qword [rax]")
	o.asm.b(0x48, 0x8B, 0x00)
}

// StoreRDISized stores the low sz bytes of rax to [rdi].
func (o *Out) StoreRDISized(sz int) {
	switch sz {
	case 1:
		o.println("  mov [rdi], al")
		o.asm.b(0x88, 0x07)
	case 2:
		o.println("  mov [rdi], ax")
		o.asm.b(0x66, 0x89, 0x07)
	case 4:
		o.println("  mov [rdi], eax")
		o.asm.b(0x89, 0x07)
	default:
		o.println("  mov [rdi], rax")
		o.asm.b(0x48, 0x89, 0x07)
	}
}

// MovReg8Mem loads an 8-bit register from [base+disp].
func (o *Out) MovReg8Mem(dst, base string, disp int) {
	o.println("  mov %s, [%s+%d]", dst, base, disp)
	d := reg8(dst)
	b := reg64(base)
	rex := uint8(0)
	if d.needsREX {
		rex = 0x40
	}
	if d.Encoding >= 8 {
		rex |= 0x44 // REX.R
	}
	if b.Encoding >= 8 {
		rex |= 0x41 // REX.B
	}
	if rex != 0 {
		o.asm.b(rex)
	}
	o.asm.b(0x8A)
	o.asm.memOperand(d.Encoding, b.Encoding, disp)
}

// MovMemReg8 stores an 8-bit register to [base+disp].
func (o *Out) MovMemReg8(base string, disp int, src string) {
	o.println("  mov [%s+%d], %s", base, disp, src)
	s := reg8(src)
	b := reg64(base)
	rex := uint8(0)
	if s.needsREX {
		rex = 0x40
	}
	if s.Encoding >= 8 {
		rex |= 0x44 // REX.R
	}
	if b.Encoding >= 8 {
		rex |= 0x41 // REX.B
	}
	if rex != 0 {
		o.asm.b(rex)
	}
	o.asm.b(0x88)
	o.asm.memOperand(s.Encoding, b.Encoding, disp)
}

// MovAXMemRDI loads ax from [rdi+disp].
func (o *Out) MovAXMemRDI(disp int) {
	o.println("  mov ax, [rdi+%d]", disp)
	o.asm.b(0x66, 0x8B)
	o.asm.memOperand(0, 7, disp)
}

// Argument-register spills by width; r indexes the System V integer argument
// register sequence.

func (o *Out) MovMemRBPArgReg8(off, r int) {
	o.println("  mov [rbp+%d], %s", off, argReg8[r])
	enc := argRegEnc[r]
	rex := uint8(0)
	if enc == 6 || enc == 7 {
		rex = 0x40 // dil/sil
	}
	if enc >= 8 {
		rex = 0x44 // REX.R
	}
	if rex != 0 {
		o.asm.b(rex)
	}
	o.asm.b(0x88)
	o.asm.memOperand(enc, 5, off)
}

func (o *Out) MovMemRBPArgReg16(off, r int) {
	o.println("  mov [rbp+%d], %s", off, argReg16[r])
	enc := argRegEnc[r]
	o.asm.b(0x66)
	if enc >= 8 {
		o.asm.b(0x44) // REX.R
	}
	o.asm.b(0x89)
	o.asm.memOperand(enc, 5, off)
}

func (o *Out) MovMemRBPArgReg32(off, r int) {
	o.println("  mov [rbp+%d], %s", off, argReg32[r])
	enc := argRegEnc[r]
	if enc >= 8 {
		o.asm.b(0x44) // REX.R
	}
	o.asm.b(0x89)
	o.asm.memOperand(enc, 5, off)
}

func (o *Out) MovMemRBPArgReg64(off, r int) {
	o.println("  mov [rbp+%d], %s", off, argReg64[r])
	enc := argRegEnc[r]
	rex := uint8(0x48)
	if enc >= 8 {
		rex |= 0x04 // REX.R
	}
	o.asm.b(rex, 0x89)
	o.asm.memOperand(enc, 5, off)
}

// ShrArgReg64Imm shifts the r'th integer argument register right.
func (o *Out) ShrArgReg64Imm(r, imm int) {
	o.println("  shr %s, %d", argReg64[r], imm)
	enc := argRegEnc[r]
	rex := uint8(0x48)
	if enc >= 8 {
		rex |= 0x01 // REX.B
	}
	o.asm.b(rex, 0xC1, 0xE8|enc&7, byte(imm))
}

// MovMemRBPDwordImm stores a 32-bit immediate to [rbp+off].
func (o *Out) MovMemRBPDwordImm(off int, v uint32) {
	o.println("  mov dword [rbp+%d], %d", off, v)
	o.asm.b(0xC7)
	o.asm.memOperand(0, 5, off)
	o.asm.u32(v)
}

// AddMemRBPQwordImm adds an immediate to the qword at [rbp+off].
func (o *Out) AddMemRBPQwordImm(off int, v int32) {
	o.println("  add qword [rbp+%d], %d", off, v)
	if v >= -128 && v <= 127 {
		o.asm.b(0x48, 0x83)
		o.asm.memOperand(0, 5, off)
		o.asm.b(byte(int8(v)))
		return
	}
	o.asm.b(0x48, 0x81)
	o.asm.memOperand(0, 5, off)
	o.asm.u32(uint32(v))
}

// Zero/sign extensions between registers.

func (o *Out) MovzxEAXAL() {
	o.println("  movzx eax, al")
	o.asm.b(0x0F, 0xB6, 0xC0)
}

func (o *Out) MovsxEAXAL() {
	o.println("  movsx eax, al")
	o.asm.b(0x0F, 0xBE, 0xC0)
}

func (o *Out) MovzxEAXAX() {
	o.println("  movzx eax, ax")
	o.asm.b(0x0F, 0xB7, 0xC0)
}

func (o *Out) MovsxEAXAX() {
	o.println("  movsx eax, ax")
	o.asm.b(0x0F, 0xBF, 0xC0)
}

func (o *Out) MovzxRAXAL() {
	o.println("  movzx rax, al")
	o.asm.b(0x48, 0x0F, 0xB6, 0xC0)
}

func (o *Out) MovzxEAXCL() {
	o.println("  movzx eax, cl")
	o.asm.b(0x0F, 0xB6, 0xC1)
}
