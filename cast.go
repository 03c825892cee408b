// cast.go - arithmetic conversions, dispatched by (from, to) type id
package main

// Type ids partition the scalar types for cast dispatch.
const (
	idI8 = iota
	idI16
	idI32
	idI64
	idU8
	idU16
	idU32
	idU64
	idF32
	idF64
	idF80
	numTypeIDs
)

func getTypeID(ty *Type) int {
	switch ty.Kind {
	case TyChar:
		if ty.IsUnsigned {
			return idU8
		}
		return idI8
	case TyShort:
		if ty.IsUnsigned {
			return idU16
		}
		return idI16
	case TyInt:
		if ty.IsUnsigned {
			return idU32
		}
		return idI32
	case TyLong:
		if ty.IsUnsigned {
			return idU64
		}
		return idI64
	case TyFloat:
		return idF32
	case TyDouble:
		return idF64
	case TyLDouble:
		return idF80
	}
	return idU64
}

// Listing text per conversion. Multi-instruction sequences keep their
// embedded newlines; an empty entry means no instruction.
const (
	i32i8  = "movsx eax, al"
	i32u8  = "movzx eax, al"
	i32i16 = "movsx eax, ax"
	i32u16 = "movzx eax, ax"
	i32f32 = "cvtsi2ss xmm0, eax"
	i32i64 = "movsx rax, eax"
	i32f64 = "cvtsi2sd xmm0, eax"
	i32f80 = "mov [rsp-4], eax\n fild dword [rsp-4]"

	u32f32 = "mov eax, eax\n cvtsi2ss xmm0, rax"
	u32i64 = "mov eax, eax"
	u32f64 = "mov eax, eax\n cvtsi2sd xmm0, rax"
	u32f80 = "mov eax, eax\n mov [rsp-8], rax\n fild qword [rsp-8]"

	i64f32 = "cvtsi2ss xmm0, rax"
	i64f64 = "cvtsi2sd xmm0, rax"
	i64f80 = "mov [rsp-8], rax\n  fild qword [rsp-8]"

	u64f32 = "cvtsi2ss xmm0, rax"
	u64f64 = "%push\n" +
		"test rax,rax\n" +
		"js %$loc1\n" +
		"pxor xmm0,xmm0\n" +
		"cvtsi2sd xmm0,rax\n" +
		"jmp %$loc2\n" +
		"%$loc1:\n" +
		"mov rdi,rax\n" +
		"and eax,1\n" +
		"pxor xmm0,xmm0\n" +
		"shr rdi, 1\n" +
		"or rdi,rax\n" +
		"cvtsi2sd xmm0,rdi\n" +
		"addsd xmm0,xmm0\n" +
		"%$loc2:\n" +
		"%pop"
	u64f80 = "mov [rsp-8], rax\n fild qword [rsp-8]\n test rax, rax\n jns 1f;" +
		"mov eax, 1602224128\n mov [rsp-4], eax\n fadds [rsp-4]\n 1:"

	f32i8  = "cvttss2si eax, xmm0\n movsx eax, al"
	f32u8  = "cvttss2si eax, xmm0\n movzx eax, al"
	f32i16 = "cvttss2si eax, xmm0\n movsx eax, ax"
	f32u16 = "cvttss2si eax, xmm0\n movzx eax, ax"
	f32i32 = "cvttss2si eax, xmm0"
	f32u32 = "cvttss2si rax, xmm0"
	f32i64 = "cvttss2si rax, xmm0"
	f32u64 = "cvttss2si rax, xmm0"
	f32f64 = "cvtss2sd xmm0, xmm0"
	f32f80 = "movss [rsp-4], xmm0\n flds [rsp-4]"

	f64i8  = "cvttsd2si eax, xmm0\n movsx eax, al"
	f64u8  = "cvttsd2si eax, xmm0\n movzx eax, al"
	f64i16 = "cvttsd2si eax, xmm0\n movsx eax, ax"
	f64u16 = "cvttsd2si eax, xmm0\n movzx eax, ax"
	f64i32 = "cvttsd2si eax, xmm0"
	f64u32 = "cvttsd2si rax, xmm0"
	f64i64 = "cvttsd2si rax, xmm0"
	f64u64 = "cvttsd2si rax, xmm0"
	f64f32 = "cvtsd2ss xmm0, xmm0"
	f64f80 = "movsd [rsp-8],xmm0\n fld qword [rsp-8]"

	// Truncating long double conversions save the control word, force
	// round-to-zero, convert, and restore.
	fromF801 = "fnstcw [rsp-10]\n movzx eax, word [rsp-10]\n or ah, 12\n " +
		"mov [rsp-12], ax\n fldcw [rsp-12]\n "
	fromF802 = " [rsp-24]\n fldcw [rsp-10]\n "

	f80i8  = fromF801 + "fistp word" + fromF802 + "movsx eax, word [rsp-24]"
	f80u8  = fromF801 + "fistp word" + fromF802 + "movzx eax, word [rsp-24]"
	f80i16 = fromF801 + "fistp word" + fromF802 + "movzx eax, word [rsp-24]"
	f80u16 = fromF801 + "fistp dword" + fromF802 + "movsx eax, dword [rsp-24]"
	f80i32 = fromF801 + "fistp dword" + fromF802 + "mov eax, dword [rsp-24]"
	f80u32 = fromF801 + "fistp dword" + fromF802 + "mov eax, dword [rsp-24]"
	f80i64 = fromF801 + "fistp qword" + fromF802 + "mov rax, qword [rsp-24]"
	f80u64 = fromF801 + "fistp qword" + fromF802 + "mov rax, qword [rsp-24]"
	f80f32 = "fstp dword [rsp-8]\nmovss xmm0, [rsp-8]"
	f80f64 = "fstp qword [rsp-8]\nmovsd xmm0, [rsp-8]"
)

// castTable is the listing text keyed by [from][to]; an empty entry emits
// nothing.
var castTable = [numTypeIDs][numTypeIDs]string{
	// to: i8     i16     i32  i64     u8     u16     u32  u64     f32     f64     f80
	{"", "", "", i32i64, i32u8, i32u16, "", i32i64, i32f32, i32f64, i32f80},                     // from i8
	{i32i8, "", "", i32i64, i32u8, i32u16, "", i32i64, i32f32, i32f64, i32f80},                  // from i16
	{i32i8, i32i16, "", i32i64, i32u8, i32u16, "", i32i64, i32f32, i32f64, i32f80},              // from i32
	{i32i8, i32i16, "", "", i32u8, i32u16, "", "", i64f32, i64f64, i64f80},                      // from i64
	{i32i8, "", "", i32i64, "", "", "", i32i64, i32f32, i32f64, i32f80},                         // from u8
	{i32i8, i32i16, "", i32i64, i32u8, "", "", i32i64, i32f32, i32f64, i32f80},                  // from u16
	{i32i8, i32i16, "", u32i64, i32u8, i32u16, "", u32i64, u32f32, u32f64, u32f80},              // from u32
	{i32i8, i32i16, "", "", i32u8, i32u16, "", "", u64f32, u64f64, u64f80},                      // from u64
	{f32i8, f32i16, f32i32, f32i64, f32u8, f32u16, f32u32, f32u64, "", f32f64, f32f80},          // from f32
	{f64i8, f64i16, f64i32, f64i64, f64u8, f64u16, f64u32, f64u64, f64f32, "", f64f80},          // from f64
	{f80i8, f80i16, f80i32, f80i64, f80u8, f80u16, f80u32, f80u64, f80f32, f80f64, ""},          // from f80
}

// The machine-code side of the table. These write raw bytes; the listing
// line was already produced from castTable.

func castI32I8(o *Out)  { o.asm.b(0x0F, 0xBE, 0xC0) } // movsx eax, al
func castI32U8(o *Out)  { o.asm.b(0x0F, 0xB6, 0xC0) } // movzx eax, al
func castI32I16(o *Out) { o.asm.b(0x0F, 0xBF, 0xC0) } // movsx eax, ax
func castI32U16(o *Out) { o.asm.b(0x0F, 0xB7, 0xC0) } // movzx eax, ax
func castI32I64(o *Out) { o.asm.b(0x48, 0x63, 0xC0) } // movsxd rax, eax

func castI32F32(o *Out) { o.asm.b(0xF3, 0x0F, 0x2A, 0xC0) } // cvtsi2ss xmm0, eax
func castI32F64(o *Out) { o.asm.b(0xF2, 0x0F, 0x2A, 0xC0) } // cvtsi2sd xmm0, eax

func castI32F80(o *Out) {
	o.asm.b(0x89, 0x44, 0x24, 0xFC) // mov [rsp-4], eax
	o.asm.b(0xDF, 0x44, 0x24, 0xFC) // fild dword [rsp-4]
}

func castU32I64(o *Out) { o.asm.b(0x89, 0xC0) } // mov eax, eax

func castU32F32(o *Out) {
	o.asm.b(0x89, 0xC0)                   // mov eax, eax
	o.asm.b(0xF3, 0x48, 0x0F, 0x2A, 0xC0) // cvtsi2ss xmm0, rax
}

func castU32F64(o *Out) {
	o.asm.b(0x89, 0xC0)                   // mov eax, eax
	o.asm.b(0xF2, 0x48, 0x0F, 0x2A, 0xC0) // cvtsi2sd xmm0, rax
}

func castU32F80(o *Out) {
	o.asm.b(0x89, 0xC0)                   // mov eax, eax
	o.asm.b(0x48, 0x89, 0x44, 0x24, 0xF8) // mov [rsp-8], rax
	o.asm.b(0xDF, 0x6C, 0x24, 0xF8)       // fild qword [rsp-8]
}

func castI64F32(o *Out) { o.asm.b(0xF3, 0x48, 0x0F, 0x2A, 0xC0) } // cvtsi2ss xmm0, rax
func castI64F64(o *Out) { o.asm.b(0xF2, 0x48, 0x0F, 0x2A, 0xC0) } // cvtsi2sd xmm0, rax

func castI64F80(o *Out) {
	o.asm.b(0x48, 0x89, 0x44, 0x24, 0xF8) // mov [rsp-8], rax
	o.asm.b(0xDF, 0x6C, 0x24, 0xF8)       // fild qword [rsp-8]
}

func castU64F32(o *Out) { o.asm.b(0xF3, 0x48, 0x0F, 0x2A, 0xC0) } // cvtsi2ss xmm0, rax

// castU64F64 rounds via the halve-and-double trick when the top bit is set,
// since cvtsi2sd only takes a signed source.
func castU64F64(o *Out) {
	a := o.asm
	a.b(0x48, 0x85, 0xC0) // test rax, rax
	a.b(0x0F, 0x88)       // js >1
	a.rel32Forward(1)
	a.b(0x66, 0x0F, 0xEF, 0xC0)       // pxor xmm0, xmm0
	a.b(0xF2, 0x48, 0x0F, 0x2A, 0xC0) // cvtsi2sd xmm0, rax
	a.b(0xE9)                         // jmp >2
	a.rel32Forward(2)
	a.PlaceLocal(1)
	a.b(0x48, 0x89, 0xC7)             // mov rdi, rax
	a.b(0x83, 0xE0, 0x01)             // and eax, 1
	a.b(0x66, 0x0F, 0xEF, 0xC0)       // pxor xmm0, xmm0
	a.b(0x48, 0xD1, 0xEF)             // shr rdi, 1
	a.b(0x48, 0x09, 0xC7)             // or rdi, rax
	a.b(0xF2, 0x48, 0x0F, 0x2A, 0xC7) // cvtsi2sd xmm0, rdi
	a.b(0xF2, 0x0F, 0x58, 0xC0)       // addsd xmm0, xmm0
	a.PlaceLocal(2)
}

// castU64F80 converts as signed and then adds 2^64 when the value was
// negative; 1602224128 is the float bit pattern of 2^64.
func castU64F80(o *Out) {
	a := o.asm
	a.b(0x48, 0x89, 0x44, 0x24, 0xF8) // mov [rsp-8], rax
	a.b(0xDF, 0x6C, 0x24, 0xF8)       // fild qword [rsp-8]
	a.b(0x48, 0x85, 0xC0)             // test rax, rax
	a.b(0x0F, 0x89)                   // jns >1
	a.rel32Forward(1)
	a.b(0xB8) // mov eax, 1602224128
	a.u32(1602224128)
	a.b(0x89, 0x44, 0x24, 0xFC) // mov [rsp-4], eax
	a.b(0xD8, 0x44, 0x24, 0xFC) // fadd dword [rsp-4]
	a.PlaceLocal(1)
}

func castF32I8(o *Out) {
	o.asm.b(0xF3, 0x0F, 0x2C, 0xC0) // cvttss2si eax, xmm0
	o.asm.b(0x0F, 0xBE, 0xC0)       // movsx eax, al
}

func castF32U8(o *Out) {
	o.asm.b(0xF3, 0x0F, 0x2C, 0xC0) // cvttss2si eax, xmm0
	o.asm.b(0x0F, 0xB6, 0xC0)       // movzx eax, al
}

func castF32I16(o *Out) {
	o.asm.b(0xF3, 0x0F, 0x2C, 0xC0) // cvttss2si eax, xmm0
	o.asm.b(0x0F, 0xBF, 0xC0)       // movsx eax, ax
}

func castF32U16(o *Out) {
	o.asm.b(0xF3, 0x0F, 0x2C, 0xC0) // cvttss2si eax, xmm0
	o.asm.b(0x0F, 0xB7, 0xC0)       // movzx eax, ax
}

func castF32I32(o *Out) { o.asm.b(0xF3, 0x0F, 0x2C, 0xC0) }       // cvttss2si eax, xmm0
func castF32I64(o *Out) { o.asm.b(0xF3, 0x48, 0x0F, 0x2C, 0xC0) } // cvttss2si rax, xmm0
func castF32F64(o *Out) { o.asm.b(0xF3, 0x0F, 0x5A, 0xC0) }       // cvtss2sd xmm0, xmm0

func castF32F80(o *Out) {
	o.asm.b(0xF3, 0x0F, 0x11, 0x44, 0x24, 0xFC) // movss [rsp-4], xmm0
	o.asm.b(0xD9, 0x44, 0x24, 0xFC)             // fld dword [rsp-4]
}

func castF64I8(o *Out) {
	o.asm.b(0xF2, 0x0F, 0x2C, 0xC0) // cvttsd2si eax, xmm0
	o.asm.b(0x0F, 0xBE, 0xC0)       // movsx eax, al
}

func castF64U8(o *Out) {
	o.asm.b(0xF2, 0x0F, 0x2C, 0xC0) // cvttsd2si eax, xmm0
	o.asm.b(0x0F, 0xB6, 0xC0)       // movzx eax, al
}

func castF64I16(o *Out) {
	o.asm.b(0xF2, 0x0F, 0x2C, 0xC0) // cvttsd2si eax, xmm0
	o.asm.b(0x0F, 0xBF, 0xC0)       // movsx eax, ax
}

func castF64U16(o *Out) {
	o.asm.b(0xF2, 0x0F, 0x2C, 0xC0) // cvttsd2si eax, xmm0
	o.asm.b(0x0F, 0xB7, 0xC0)       // movzx eax, ax
}

func castF64I32(o *Out) { o.asm.b(0xF2, 0x0F, 0x2C, 0xC0) }       // cvttsd2si eax, xmm0
func castF64I64(o *Out) { o.asm.b(0xF2, 0x48, 0x0F, 0x2C, 0xC0) } // cvttsd2si rax, xmm0
func castF64F32(o *Out) { o.asm.b(0xF2, 0x0F, 0x5A, 0xC0) }       // cvtsd2ss xmm0, xmm0

func castF64F80(o *Out) {
	o.asm.b(0xF2, 0x0F, 0x11, 0x44, 0x24, 0xF8) // movsd [rsp-8], xmm0
	o.asm.b(0xDD, 0x44, 0x24, 0xF8)             // fld qword [rsp-8]
}

// castFromF80Prologue forces the x87 rounding mode to truncate.
func castFromF80Prologue(o *Out) {
	a := o.asm
	a.b(0xD9, 0x7C, 0x24, 0xF6)       // fnstcw [rsp-10]
	a.b(0x0F, 0xB7, 0x44, 0x24, 0xF6) // movzx eax, word [rsp-10]
	a.b(0x80, 0xCC, 0x0C)             // or ah, 12
	a.b(0x66, 0x89, 0x44, 0x24, 0xF4) // mov [rsp-12], ax
	a.b(0xD9, 0x6C, 0x24, 0xF4)       // fldcw [rsp-12]
}

func castF80I8(o *Out) {
	castFromF80Prologue(o)
	o.asm.b(0xDB, 0x5C, 0x24, 0xE8) // fistp dword [rsp-24]
	o.asm.b(0xD9, 0x6C, 0x24, 0xF6) // fldcw [rsp-10]
	o.asm.b(0x0F, 0xBF, 0x44, 0x24, 0xE8) // movsx eax, word [rsp-24]
}

func castF80I32(o *Out) {
	castFromF80Prologue(o)
	o.asm.b(0xDB, 0x5C, 0x24, 0xE8) // fistp dword [rsp-24]
	o.asm.b(0xD9, 0x6C, 0x24, 0xF6) // fldcw [rsp-10]
	o.asm.b(0x8B, 0x44, 0x24, 0xE8) // mov eax, [rsp-24]
}

// The remaining long-double-to-integer widths have no encoding here yet and
// abort the unit rather than emit something wrong.
func castF80NotImplemented(name string) func(*Out) {
	return func(o *Out) {
		castFromF80Prologue(o)
		internalError("cast %s is not implemented", name)
	}
}

func castF80F32(o *Out) {
	o.asm.b(0xD9, 0x5C, 0x24, 0xF8)             // fstp dword [rsp-8]
	o.asm.b(0xF3, 0x0F, 0x10, 0x44, 0x24, 0xF8) // movss xmm0, [rsp-8]
}

func castF80F64(o *Out) {
	o.asm.b(0xDD, 0x5C, 0x24, 0xF8)             // fstp qword [rsp-8]
	o.asm.b(0xF2, 0x0F, 0x10, 0x44, 0x24, 0xF8) // movsd xmm0, [rsp-8]
}

var dynCastTable = [numTypeIDs][numTypeIDs]func(*Out){
	// to: i8      i16       i32        i64        u8        u16        u32  u64        f32        f64        f80
	{nil, nil, nil, castI32I64, castI32U8, castI32U16, nil, castI32I64, castI32F32, castI32F64, castI32F80},                                                   // from i8
	{castI32I8, nil, nil, castI32I64, castI32U8, castI32U16, nil, castI32I64, castI32F32, castI32F64, castI32F80},                                             // from i16
	{castI32I8, castI32I16, nil, castI32I64, castI32U8, castI32U16, nil, castI32I64, castI32F32, castI32F64, castI32F80},                                      // from i32
	{castI32I8, castI32I16, nil, nil, castI32U8, castI32U16, nil, nil, castI64F32, castI64F64, castI64F80},                                                    // from i64
	{castI32I8, nil, nil, castI32I64, nil, nil, nil, castI32I64, castI32F32, castI32F64, castI32F80},                                                          // from u8
	{castI32I8, castI32I16, nil, castI32I64, castI32U8, nil, nil, castI32I64, castI32F32, castI32F64, castI32F80},                                             // from u16
	{castI32I8, castI32I16, nil, castU32I64, castI32U8, castI32U16, nil, castU32I64, castU32F32, castU32F64, castU32F80},                                      // from u32
	{castI32I8, castI32I16, nil, nil, castI32U8, castI32U16, nil, nil, castU64F32, castU64F64, castU64F80},                                                    // from u64
	{castF32I8, castF32I16, castF32I32, castF32I64, castF32U8, castF32U16, castF32I64, castF32I64, nil, castF32F64, castF32F80},                               // from f32
	{castF64I8, castF64I16, castF64I32, castF64I64, castF64U8, castF64U16, castF64I64, castF64I64, castF64F32, nil, castF64F80},                               // from f64
	{castF80I8, castF80NotImplemented("f80->i16"), castF80I32, castF80NotImplemented("f80->i64"), castF80NotImplemented("f80->u8"), castF80NotImplemented("f80->u16"), castF80NotImplemented("f80->u32"), castF80NotImplemented("f80->u64"), castF80F32, castF80F64, nil}, // from f80
}
