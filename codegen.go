// codegen.go - single-pass lowering of typed IR to x86-64
//
// Every expression leaves its value in rax (integers and pointers), xmm0
// (float and double) or st0 (long double). Address computations leave the
// address in rax. Intermediates go through the machine stack with push/pop,
// tracked by depth so call sites can keep rsp 16-byte aligned.
package main

import (
	"fmt"
	"io"
	"math"
)

type nameLabel struct {
	name  string
	label PCLabel
}

type pendingCodeReloc struct {
	fileOffset int64
	label      PCLabel
}

// CodeGen is one code generation session: a single translation unit's worth
// of mutable emission state. Sessions are independent; compile units in the
// same process each get their own.
type CodeGen struct {
	out *Out
	dyo *DyoWriter

	depth        int
	currentFn    *Obj
	labelCounter int

	importFixups      []nameLabel
	dataFixups        []nameLabel
	pendingCodeRelocs []pendingCodeReloc

	mainEntry PCLabel
}

// NewCodeGen creates a session writing assembly text to listing (nil for
// none) and the object stream to dyo.
func NewCodeGen(listing io.Writer, dyo *DyoWriter) *CodeGen {
	return &CodeGen{out: NewOut(listing), dyo: dyo, labelCounter: 1}
}

func (cg *CodeGen) count() int {
	c := cg.labelCounter
	cg.labelCounter++
	return c
}

// pcOf lazily allocates the machine label behind an IR label.
func (cg *CodeGen) pcOf(l *Label) PCLabel {
	if l.pc == 0 {
		l.pc = cg.out.asm.NewPCLabel()
	}
	return l.pc
}

func (cg *CodeGen) must(err error) {
	if err != nil {
		internalError("object write failed: %v", err)
	}
}

func (cg *CodeGen) push() {
	cg.out.PushRAX()
	cg.depth++
}

func (cg *CodeGen) pop(reg string) {
	cg.out.PopReg(reg)
	cg.depth--
}

func (cg *CodeGen) pushf() {
	cg.out.SubRSPImm(8)
	cg.out.MovsdMemRSPX0()
	cg.depth++
}

func (cg *CodeGen) popf(reg int) {
	cg.out.MovsdXnMemRSP(reg)
	cg.out.AddRSPImm(8)
	cg.depth--
}

func regDx(sz int) string {
	switch sz {
	case 1:
		return "dl"
	case 2:
		return "dx"
	case 4:
		return "edx"
	case 8:
		return "rdx"
	}
	internalError("bad operand size %d", sz)
	return ""
}

func regAx(sz int) string {
	switch sz {
	case 1:
		return "al"
	case 2:
		return "ax"
	case 4:
		return "eax"
	case 8:
		return "rax"
	}
	internalError("bad operand size %d", sz)
	return ""
}

// Placeholder immediates for symbol fixup sites. The linker overwrites them;
// the distinctive patterns make an unpatched site obvious in a hex dump.
const (
	importPlaceholder = 0x1234567890abcdef
	dataPlaceholder   = 0xfedcba0987654321
)

// genAddr computes the absolute address of a node into rax. It is an error
// if the node does not reside in memory.
func (cg *CodeGen) genAddr(node *Node) {
	switch node.Kind {
	case NdVar:
		// Variable-length array, which is always local.
		if node.Var.Ty.Kind == TyVLA {
			cg.out.MovRegMemRBP("rax", node.Var.Offset)
			return
		}

		// Local variable
		if node.Var.IsLocal {
			cg.out.LeaRAXMemRBP(node.Var.Offset)
			return
		}

		// Thread-local variable. Only the listing knows how to spell
		// this; there is no encoding behind it yet.
		if node.Var.IsTLS {
			cg.out.println("  mov rax, fs:0")
			cg.out.println("  add rax, [rel %s wrt ..gottpoff]", node.Var.Name)
			errorTok(node.Tok, "thread-local %s reached code emission", node.Var.Name)
		}

		// Functions and globals have no address until the runtime
		// linker has placed them, so emit a 64-bit placeholder and
		// record the fixup site.
		if node.Ty.Kind == TyFunc {
			if node.Var.IsDefinition {
				cg.out.LeaRAXLabel(node.Var.Name, node.Var.entryLabel)
			} else {
				cg.out.println("  mov rax, [rel %s wrt ..got]", node.Var.Name)
				l := cg.out.asm.MovAbsRAXPlaceholder(importPlaceholder)
				cg.importFixups = append(cg.importFixups, nameLabel{node.Var.Name, l})
			}
			return
		}

		// Global variable
		cg.out.println("  lea rax, [rel %s]", node.Var.Name)
		l := cg.out.asm.MovAbsRAXPlaceholder(dataPlaceholder)
		cg.dataFixups = append(cg.dataFixups, nameLabel{node.Var.Name, l})
		return
	case NdDeref:
		cg.genExpr(node.Lhs)
		return
	case NdComma:
		cg.genExpr(node.Lhs)
		cg.genAddr(node.Rhs)
		return
	case NdMember:
		cg.genAddr(node.Lhs)
		cg.out.AddRAXImm(int32(node.Member.Offset))
		return
	case NdFuncall:
		if node.RetBuffer != nil {
			cg.genExpr(node)
			return
		}
	case NdAssign, NdCond:
		if node.Ty.Kind == TyStruct || node.Ty.Kind == TyUnion {
			cg.genExpr(node)
			return
		}
	case NdVLAPtr:
		cg.out.LeaRAXMemRBP(node.Var.Offset)
		return
	}

	errorTok(node.Tok, "not an lvalue")
}

// load reads a value of type ty from the address in rax. Aggregates and
// functions decay to their address and are not loaded.
func (cg *CodeGen) load(ty *Type) {
	switch ty.Kind {
	case TyArray, TyStruct, TyUnion, TyFunc, TyVLA:
		return
	case TyFloat:
		cg.out.MovssX0MemRAX()
		return
	case TyDouble:
		cg.out.MovsdX0MemRAX()
		return
	case TyLDouble:
		cg.out.FldTwordRAX()
		return
	}

	// char and short are always widened to int on load, so the low half of
	// rax holds a valid value; the upper half may contain garbage.
	switch {
	case ty.Size == 1 && ty.IsUnsigned:
		cg.out.MovzxEAXByteRAX()
	case ty.Size == 1:
		cg.out.MovsxEAXByteRAX()
	case ty.Size == 2 && ty.IsUnsigned:
		cg.out.MovzxEAXWordRAX()
	case ty.Size == 2:
		cg.out.MovsxEAXWordRAX()
	case ty.Size == 4:
		cg.out.MovsxdRAXDwordRAX()
	default:
		cg.out.MovRAXQwordRAX()
	}
}

// store writes the value in rax/xmm0/st0 to the address on the stack top.
func (cg *CodeGen) store(ty *Type) {
	cg.pop("rdi")

	switch ty.Kind {
	case TyStruct, TyUnion:
		for i := 0; i < ty.Size; i++ {
			cg.out.MovReg8Mem("r8b", "rax", i)
			cg.out.MovMemReg8("rdi", i, "r8b")
		}
		return
	case TyFloat:
		cg.out.MovssMemRDIX0()
		return
	case TyDouble:
		cg.out.MovsdMemRDIX0()
		return
	case TyLDouble:
		cg.out.FstpTwordRDI()
		return
	}

	switch ty.Size {
	case 1, 2, 4:
		cg.out.StoreRDISized(ty.Size)
	default:
		cg.out.StoreRDISized(8)
	}
}

func (cg *CodeGen) cmpZero(ty *Type) {
	switch ty.Kind {
	case TyFloat:
		cg.out.XorpsX1X1()
		cg.out.UcomissX0X1()
		return
	case TyDouble:
		cg.out.XorpdX1X1()
		cg.out.UcomisdX0X1()
		return
	case TyLDouble:
		cg.out.Fldz()
		cg.out.Fucomip()
		cg.out.FstpSt0()
		return
	}

	if isInteger(ty) && ty.Size <= 4 {
		cg.out.CmpEAXZero()
	} else {
		cg.out.CmpRAXZero()
	}
}

func (cg *CodeGen) cast(from, to *Type) {
	if to.Kind == TyVoid {
		return
	}

	if to.Kind == TyBool {
		cg.cmpZero(from)
		cg.out.Setcc("ne", "al")
		cg.out.MovzxEAXAL()
		return
	}

	t1 := getTypeID(from)
	t2 := getTypeID(to)
	if castTable[t1][t2] != "" {
		cg.out.println("  %s", castTable[t1][t2])
		dynCastTable[t1][t2](cg.out)
	}
}

// pushStruct copies a struct value at [rax] onto the machine stack.
func (cg *CodeGen) pushStruct(ty *Type) {
	sz := alignTo(ty.Size, 8)
	cg.out.SubRSPImm(sz)
	cg.depth += sz / 8

	for i := 0; i < ty.Size; i++ {
		cg.out.MovReg8Mem("r10b", "rax", i)
		cg.out.MovMemReg8("rsp", i, "r10b")
	}
}

// pushArgs2 evaluates arguments right to left and pushes them; the first
// pass handles stack-passed arguments, the second pass register-passed ones.
func (cg *CodeGen) pushArgs2(args []*Node, firstPass bool) {
	for i := len(args) - 1; i >= 0; i-- {
		arg := args[i]
		if (firstPass && !arg.passByStack) || (!firstPass && arg.passByStack) {
			continue
		}

		cg.genExpr(arg)

		switch arg.Ty.Kind {
		case TyStruct, TyUnion:
			cg.pushStruct(arg.Ty)
		case TyFloat, TyDouble:
			cg.pushf()
		case TyLDouble:
			cg.out.SubRSPImm(16)
			cg.out.FstpTwordRSP()
			cg.depth += 2
		default:
			cg.push()
		}
	}
}

// pushArgs classifies every argument, pads the stack to keep rsp 16-byte
// aligned at the call, and pushes everything. Returns the number of
// stack-passed eightbytes.
func (cg *CodeGen) pushArgs(node *Node) int {
	stack, gp, fp := 0, 0, 0

	// If the return type is a large struct/union, the caller passes a
	// pointer to a buffer as if it were the first argument.
	if node.RetBuffer != nil && node.Ty.Size > 16 {
		gp++
	}

	// Load as many arguments to the registers as possible.
	for _, arg := range node.Args {
		ty := arg.Ty
		arg.passByStack = false

		switch ty.Kind {
		case TyStruct, TyUnion:
			if ty.Size > 16 {
				arg.passByStack = true
				stack += alignTo(ty.Size, 8) / 8
			} else {
				fp1 := hasFlonum1(ty)
				fp2 := hasFlonum2(ty)

				if fp+b2i(fp1)+b2i(fp2) < fpMax && gp+b2i(!fp1)+b2i(!fp2) < gpMax {
					fp += b2i(fp1) + b2i(fp2)
					gp += b2i(!fp1) + b2i(!fp2)
				} else {
					arg.passByStack = true
					stack += alignTo(ty.Size, 8) / 8
				}
			}
		case TyFloat, TyDouble:
			if fp >= fpMax {
				arg.passByStack = true
				stack++
			}
			fp++
		case TyLDouble:
			arg.passByStack = true
			stack += 2
		default:
			if gp >= gpMax {
				arg.passByStack = true
				stack++
			}
			gp++
		}
	}

	if (cg.depth+stack)%2 == 1 {
		cg.out.SubRSPImm(8)
		cg.depth++
		stack++
	}

	cg.pushArgs2(node.Args, true)
	cg.pushArgs2(node.Args, false)

	if node.RetBuffer != nil && node.Ty.Size > 16 {
		cg.out.LeaRAXMemRBP(node.RetBuffer.Offset)
		cg.push()
	}

	return stack
}

// copyRetBuffer spills a small struct return value from its registers into
// the caller-side buffer.
func (cg *CodeGen) copyRetBuffer(v *Obj) {
	ty := v.Ty
	gp, fp := 0, 0

	if hasFlonum1(ty) {
		if ty.Size == 4 {
			cg.out.MovssMemRBPXn(v.Offset, 0)
		} else {
			cg.out.MovsdMemRBPXn(v.Offset, 0)
		}
		fp++
	} else {
		for i := 0; i < min(8, ty.Size); i++ {
			cg.out.MovMemReg8("rbp", v.Offset+i, "al")
			cg.out.ShrReg64Imm("rax", 8)
		}
		gp++
	}

	if ty.Size > 8 {
		if hasFlonum2(ty) {
			if ty.Size == 12 {
				cg.out.MovssMemRBPXn(v.Offset+8, fp)
			} else {
				cg.out.MovsdMemRBPXn(v.Offset+8, fp)
			}
		} else {
			reg1, reg2 := "al", "rax"
			if gp != 0 {
				reg1, reg2 = "dl", "rdx"
			}
			for i := 8; i < min(16, ty.Size); i++ {
				cg.out.MovMemReg8("rbp", v.Offset+i, reg1)
				cg.out.ShrReg64Imm(reg2, 8)
			}
		}
	}
}

// copyStructReg assembles a small struct return value, addressed by rax,
// into the return registers.
func (cg *CodeGen) copyStructReg() {
	ty := cg.currentFn.Ty.ReturnTy
	gp, fp := 0, 0

	cg.out.MovRegReg("rdi", "rax")

	if hasFlonum(ty, 0, 8, 0) {
		if ty.Size == 4 {
			cg.out.MovssX0MemRDI(0)
		} else {
			cg.out.MovsdX0MemRDI(0)
		}
		fp++
	} else {
		cg.out.MovRAXImm(0)
		for i := min(8, ty.Size) - 1; i >= 0; i-- {
			cg.out.ShlRAXImm(8)
			cg.out.MovAXMemRDI(i)
		}
		gp++
	}

	if ty.Size > 8 {
		if hasFlonum(ty, 8, 16, 0) {
			if ty.Size == 12 {
				cg.out.MovssXnMemRDI(fp, 8)
			} else {
				cg.out.MovsdXnMemRDI(fp, 8)
			}
		} else {
			reg1, reg2 := "al", "rax"
			if gp != 0 {
				reg1, reg2 = "dl", "rdx"
			}
			cg.out.MovReg64Imm(reg2, 0)
			for i := min(16, ty.Size) - 1; i >= 8; i-- {
				cg.out.ShlReg64Imm(reg2, 8)
				cg.out.MovReg8Mem(reg1, "rdi", i)
			}
		}
	}
}

// copyStructMem copies a large struct return value, addressed by rax, into
// the buffer whose address the caller passed as the hidden first parameter.
func (cg *CodeGen) copyStructMem() {
	ty := cg.currentFn.Ty.ReturnTy
	v := cg.currentFn.Params[0]

	cg.out.MovRegMemRBP("rdi", v.Offset)

	for i := 0; i < ty.Size; i++ {
		cg.out.MovReg8Mem("dl", "rax", i)
		cg.out.MovMemReg8("rdi", i, "dl")
	}
}

// builtinAlloca grows the dynamic allocation region by the byte count in
// rdi, sliding the live stack region between rsp and the alloca bottom.
func (cg *CodeGen) builtinAlloca() {
	o := cg.out
	a := o.asm
	off := cg.currentFn.AllocaBottom.Offset

	// Align size to 16 bytes.
	o.println("  add rdi, 15")
	o.println("  and edi, 0xfffffff0")
	a.b(0x48, 0x83, 0xC7, 0x0F) // add rdi, 15
	a.b(0x81, 0xE7)             // and edi, 0xfffffff0
	a.u32(0xfffffff0)

	// Shift the temporary area by rdi.
	o.println("  %%push")
	o.println("  mov rcx, [rbp+%d]", off)
	o.println("  sub rcx, rsp")
	o.println("  mov rax, rsp")
	o.println("  sub rsp, rdi")
	o.println("  mov rdx, rsp")
	o.println("%%$loc1:")
	o.println("  cmp rcx, 0")
	o.println("  je %%$loc2")
	o.println("  mov r8b, [rax]")
	o.println("  mov [rdx], r8b")
	o.println("  inc rdx")
	o.println("  inc rax")
	o.println("  dec rcx")
	o.println("  jmp %%$loc1")
	o.println("%%$loc2:")
	o.println("  %%pop")
	a.b(0x48, 0x8B) // mov rcx, [rbp+off]
	a.memOperand(1, 5, off)
	a.b(0x48, 0x29, 0xE1) // sub rcx, rsp
	a.b(0x48, 0x89, 0xE0) // mov rax, rsp
	a.b(0x48, 0x29, 0xFC) // sub rsp, rdi
	a.b(0x48, 0x89, 0xE2) // mov rdx, rsp
	a.PlaceLocal(1)
	a.b(0x48, 0x83, 0xF9, 0x00) // cmp rcx, 0
	a.b(0x0F, 0x84)             // je >2
	a.rel32Forward(2)
	a.b(0x44, 0x8A, 0x00) // mov r8b, [rax]
	a.b(0x44, 0x88, 0x02) // mov [rdx], r8b
	a.b(0x48, 0xFF, 0xC2) // inc rdx
	a.b(0x48, 0xFF, 0xC0) // inc rax
	a.b(0x48, 0xFF, 0xC9) // dec rcx
	a.b(0xE9)             // jmp <1
	a.rel32Back(1)
	a.PlaceLocal(2)

	// Move the alloca bottom down by the request.
	o.MovRegMemRBP("rax", off)
	o.SubRAXRDI()
	o.MovMemRBPReg(off, "rax")
}

// f80Bits converts a float64 to the x87 80-bit extended layout.
func f80Bits(f float64) (lo uint64, hi uint64) {
	bits := math.Float64bits(f)
	sign := bits >> 63
	exp := int((bits >> 52) & 0x7FF)
	frac := bits & (1<<52 - 1)

	switch {
	case exp == 0 && frac == 0:
		return 0, sign << 15
	case exp == 0x7FF:
		// Infinity or NaN: explicit integer bit set.
		return 1<<63 | frac<<11, sign<<15 | 0x7FFF
	case exp == 0:
		// Subnormal double; normalize into the wider exponent range.
		e := -1022
		for frac&(1<<52) == 0 {
			frac <<= 1
			e--
		}
		return 1<<63 | (frac&(1<<52-1))<<11, sign<<15 | uint64(e+16383)
	default:
		return 1<<63 | frac<<11, sign<<15 | uint64(exp-1023+16383)
	}
}

// genExpr generates code for an expression node.
func (cg *CodeGen) genExpr(node *Node) {
	switch node.Kind {
	case NdNullExpr:
		return
	case NdNum:
		switch node.Ty.Kind {
		case TyFloat:
			u := math.Float32bits(float32(node.FVal))
			cg.out.MovEAXImm(u, fmt.Sprintf("float %f", node.FVal))
			cg.out.MovqX0RAX()
			return
		case TyDouble:
			u := math.Float64bits(node.FVal)
			cg.out.MovRAXImm64(u, fmt.Sprintf("double %f", node.FVal))
			cg.out.MovqX0RAX()
			return
		case TyLDouble:
			lo, hi := f80Bits(node.FVal)
			a := cg.out.asm
			cg.out.MovRAXImm64(lo, fmt.Sprintf("long double %f", node.FVal))
			cg.out.println("  mov [rsp-16], rax")
			a.b(0x48, 0x89, 0x44, 0x24, 0xF0)
			cg.out.MovRAXImm64(hi, "")
			cg.out.println("  mov [rsp-8], rax")
			a.b(0x48, 0x89, 0x44, 0x24, 0xF8)
			cg.out.println("  fld [rsp-16]")
			a.b(0xDB, 0x6C, 0x24, 0xF0) // fld tword [rsp-16]
			return
		}

		cg.out.MovRAXImm(node.Val)
		return
	case NdNeg:
		cg.genExpr(node.Lhs)

		switch node.Ty.Kind {
		case TyFloat:
			cg.out.MovRAXImm(1)
			cg.out.ShlRAXImm(31)
			cg.out.MovqX1RAX()
			cg.out.XorpsX0X1()
			return
		case TyDouble:
			cg.out.MovRAXImm(1)
			cg.out.ShlRAXImm(63)
			cg.out.MovqX1RAX()
			cg.out.XorpdX0X1()
			return
		case TyLDouble:
			cg.out.Fchs()
			return
		}

		cg.out.NegRAX()
		return
	case NdVar:
		cg.genAddr(node)
		cg.load(node.Ty)
		return
	case NdMember:
		cg.genAddr(node)
		cg.load(node.Ty)

		mem := node.Member
		if mem.IsBitfield {
			cg.out.ShlRAXImm(64 - mem.BitWidth - mem.BitOffset)
			if mem.Ty.IsUnsigned {
				cg.out.ShrRAXImm(64 - mem.BitWidth)
			} else {
				cg.out.SarRAXImm(64 - mem.BitWidth)
			}
		}
		return
	case NdDeref:
		cg.genExpr(node.Lhs)
		cg.load(node.Ty)
		return
	case NdAddr:
		cg.genAddr(node.Lhs)
		return
	case NdAssign:
		cg.genAddr(node.Lhs)
		cg.push()
		cg.genExpr(node.Rhs)

		if node.Lhs.Kind == NdMember && node.Lhs.Member.IsBitfield {
			cg.out.MovRegReg("r8", "rax")

			// The lhs is a bitfield: read the current storage unit and
			// merge the new value into its bits.
			mem := node.Lhs.Member
			cg.out.MovRegReg("rdi", "rax")
			cg.out.AndRDIImm(int64(1)<<mem.BitWidth - 1)
			cg.out.ShlRDIImm(mem.BitOffset)

			cg.out.MovRAXMemRSP()
			cg.load(mem.Ty)

			mask := (int64(1)<<mem.BitWidth - 1) << mem.BitOffset
			cg.out.MovReg64Imm("r9", ^mask)
			cg.out.AndRAXR9()
			cg.out.OrRAXRDI()
			cg.store(node.Ty)
			cg.out.MovRegReg("rax", "r8")
			return
		}

		cg.store(node.Ty)
		return
	case NdStmtExpr:
		for _, n := range node.Body {
			cg.genStmt(n)
		}
		return
	case NdComma:
		cg.genExpr(node.Lhs)
		cg.genExpr(node.Rhs)
		return
	case NdCast:
		cg.genExpr(node.Lhs)
		cg.cast(node.Lhs.Ty, node.Ty)
		return
	case NdMemzero:
		// rep stosb is memset(rdi, al, rcx).
		cg.out.MovRCXImm(int32(node.Var.Ty.Size))
		cg.out.LeaRDIMemRBP(node.Var.Offset)
		cg.out.MovALImm(0)
		cg.out.RepStosb()
		return
	case NdCond:
		c := cg.count()
		lelse := cg.out.asm.NewPCLabel()
		lend := cg.out.asm.NewPCLabel()
		cg.genExpr(node.Cond)
		cg.cmpZero(node.Cond.Ty)
		cg.out.Je(fmt.Sprintf("L.else.%d", c), lelse)
		cg.genExpr(node.Then)
		cg.out.Jmp(fmt.Sprintf("L.end.%d", c), lend)
		cg.out.PlaceLabel(fmt.Sprintf("L.else.%d", c), lelse)
		cg.genExpr(node.Els)
		cg.out.PlaceLabel(fmt.Sprintf("L.end.%d", c), lend)
		return
	case NdNot:
		cg.genExpr(node.Lhs)
		cg.cmpZero(node.Lhs.Ty)
		cg.out.Setcc("e", "al")
		cg.out.MovzxRAXAL()
		return
	case NdBitnot:
		cg.genExpr(node.Lhs)
		cg.out.NotRAX()
		return
	case NdLogand:
		c := cg.count()
		lfalse := cg.out.asm.NewPCLabel()
		lend := cg.out.asm.NewPCLabel()
		cg.genExpr(node.Lhs)
		cg.cmpZero(node.Lhs.Ty)
		cg.out.Je(fmt.Sprintf("L.false.%d", c), lfalse)
		cg.genExpr(node.Rhs)
		cg.cmpZero(node.Rhs.Ty)
		cg.out.Je(fmt.Sprintf("L.false.%d", c), lfalse)
		cg.out.MovRAXImm(1)
		cg.out.Jmp(fmt.Sprintf("L.end.%d", c), lend)
		cg.out.PlaceLabel(fmt.Sprintf("L.false.%d", c), lfalse)
		cg.out.MovRAXImm(0)
		cg.out.PlaceLabel(fmt.Sprintf("L.end.%d", c), lend)
		return
	case NdLogor:
		c := cg.count()
		ltrue := cg.out.asm.NewPCLabel()
		lend := cg.out.asm.NewPCLabel()
		cg.genExpr(node.Lhs)
		cg.cmpZero(node.Lhs.Ty)
		cg.out.Jne(fmt.Sprintf("L.true.%d", c), ltrue)
		cg.genExpr(node.Rhs)
		cg.cmpZero(node.Rhs.Ty)
		cg.out.Jne(fmt.Sprintf("L.true.%d", c), ltrue)
		cg.out.MovRAXImm(0)
		cg.out.Jmp(fmt.Sprintf("L.end.%d", c), lend)
		cg.out.PlaceLabel(fmt.Sprintf("L.true.%d", c), ltrue)
		cg.out.MovRAXImm(1)
		cg.out.PlaceLabel(fmt.Sprintf("L.end.%d", c), lend)
		return
	case NdFuncall:
		if node.Lhs.Kind == NdVar && node.Lhs.Var.Name == "alloca" {
			cg.genExpr(node.Args[0])
			cg.out.MovRegReg("rdi", "rax")
			cg.builtinAlloca()
			return
		}

		stackArgs := cg.pushArgs(node)
		cg.genExpr(node.Lhs)

		gp, fp := 0, 0

		// If the return type is a large struct/union, the caller passes
		// a pointer to a buffer as if it were the first argument.
		if node.RetBuffer != nil && node.Ty.Size > 16 {
			cg.pop(argReg64[gp])
			gp++
		}

		for _, arg := range node.Args {
			ty := arg.Ty

			switch ty.Kind {
			case TyStruct, TyUnion:
				if ty.Size > 16 {
					continue
				}

				fp1 := hasFlonum1(ty)
				fp2 := hasFlonum2(ty)

				if fp+b2i(fp1)+b2i(fp2) < fpMax && gp+b2i(!fp1)+b2i(!fp2) < gpMax {
					if fp1 {
						cg.popf(fp)
						fp++
					} else {
						cg.pop(argReg64[gp])
						gp++
					}

					if ty.Size > 8 {
						if fp2 {
							cg.popf(fp)
							fp++
						} else {
							cg.pop(argReg64[gp])
							gp++
						}
					}
				}
			case TyFloat, TyDouble:
				if fp < fpMax {
					cg.popf(fp)
					fp++
				}
			case TyLDouble:
				// Stays on the stack.
			default:
				if gp < gpMax {
					cg.pop(argReg64[gp])
					gp++
				}
			}
		}

		cg.out.MovRegReg("r10", "rax")
		cg.out.MovRAXImm(int64(fp))
		cg.out.CallR10()
		cg.out.AddRSPImm(stackArgs * 8)

		cg.depth -= stackArgs

		// The upper bits of rax may hold garbage when the return type is
		// narrower than int; clear them here.
		switch node.Ty.Kind {
		case TyBool:
			cg.out.MovzxEAXAL()
			return
		case TyChar:
			if node.Ty.IsUnsigned {
				cg.out.MovzxEAXAL()
			} else {
				cg.out.MovsxEAXAL()
			}
			return
		case TyShort:
			if node.Ty.IsUnsigned {
				cg.out.MovzxEAXAX()
			} else {
				cg.out.MovsxEAXAX()
			}
			return
		}

		// A small struct return arrives in registers; spill it to the
		// buffer and produce the buffer address.
		if node.RetBuffer != nil && node.Ty.Size <= 16 {
			cg.copyRetBuffer(node.RetBuffer)
			cg.out.LeaRAXMemRBP(node.RetBuffer.Offset)
		}

		return
	case NdLabelVal:
		cg.out.LeaRAXLabel(node.Lbl.Name, cg.pcOf(node.Lbl))
		return
	case NdCas:
		cg.genExpr(node.CasAddr)
		cg.push()
		cg.genExpr(node.CasNew)
		cg.push()
		cg.genExpr(node.CasOld)
		cg.out.MovRegReg("r8", "rax")
		cg.load(node.CasOld.Ty.Base)
		cg.pop("rdx") // new
		cg.pop("rdi") // addr

		sz := node.CasAddr.Ty.Base.Size
		o := cg.out
		a := o.asm
		o.println("  %%push")
		o.println("  lock cmpxchg [rdi], %s", regDx(sz))
		o.println("  sete cl")
		o.println("  je %%$loc1")
		o.println("  mov [r8], %s", regAx(sz))
		o.println("%%$loc1:")
		o.println("  movzx eax, cl")
		o.println("  %%pop")
		o.lockCmpxchgRDIDX(sz)
		a.b(0x0F, 0x94, 0xC1) // sete cl
		a.b(0x0F, 0x84)       // je >1
		a.rel32Forward(1)
		o.movMemR8Sized(sz)
		a.PlaceLocal(1)
		a.b(0x0F, 0xB6, 0xC1) // movzx eax, cl
		return
	case NdExch:
		cg.genExpr(node.Lhs)
		cg.push()
		cg.genExpr(node.Rhs)
		cg.pop("rdi")

		sz := node.Lhs.Ty.Base.Size
		cg.out.println("  xchg [rdi], %s", regAx(sz))
		cg.out.xchgRDISized(sz)
		return
	}

	switch node.Lhs.Ty.Kind {
	case TyFloat, TyDouble:
		cg.genExpr(node.Rhs)
		cg.pushf()
		cg.genExpr(node.Lhs)
		cg.popf(1)

		isFloat := node.Lhs.Ty.Kind == TyFloat

		switch node.Kind {
		case NdAdd:
			if isFloat {
				cg.out.AddssX0X1()
			} else {
				cg.out.AddsdX0X1()
			}
			return
		case NdSub:
			if isFloat {
				cg.out.SubssX0X1()
			} else {
				cg.out.SubsdX0X1()
			}
			return
		case NdMul:
			if isFloat {
				cg.out.MulssX0X1()
			} else {
				cg.out.MulsdX0X1()
			}
			return
		case NdDiv:
			if isFloat {
				cg.out.DivssX0X1()
			} else {
				cg.out.DivsdX0X1()
			}
			return
		case NdEq, NdNe, NdLt, NdLe:
			if isFloat {
				cg.out.UcomissX1X0()
			} else {
				cg.out.UcomisdX1X0()
			}

			switch node.Kind {
			case NdEq:
				// Equal and not unordered.
				cg.out.Setcc("e", "al")
				cg.out.Setcc("np", "dl")
				cg.out.AndALDL()
			case NdNe:
				cg.out.Setcc("ne", "al")
				cg.out.Setcc("p", "dl")
				cg.out.OrALDL()
			case NdLt:
				cg.out.Setcc("a", "al")
			default:
				cg.out.Setcc("ae", "al")
			}

			cg.out.AndALImm(1)
			cg.out.MovzxRAXAL()
			return
		}

		errorTok(node.Tok, "invalid expression")
	case TyLDouble:
		cg.genExpr(node.Lhs)
		cg.genExpr(node.Rhs)

		switch node.Kind {
		case NdAdd:
			cg.out.Faddp()
			return
		case NdSub:
			cg.out.Fsubrp()
			return
		case NdMul:
			cg.out.Fmulp()
			return
		case NdDiv:
			cg.out.Fdivrp()
			return
		case NdEq, NdNe, NdLt, NdLe:
			cg.out.Fcomip()
			cg.out.FstpSt0()

			switch node.Kind {
			case NdEq:
				cg.out.Setcc("e", "al")
			case NdNe:
				cg.out.Setcc("ne", "al")
			case NdLt:
				cg.out.Setcc("a", "al")
			default:
				cg.out.Setcc("ae", "al")
			}

			cg.out.MovzxRAXAL()
			return
		}

		errorTok(node.Tok, "invalid expression")
	}

	cg.genExpr(node.Rhs)
	cg.push()
	cg.genExpr(node.Lhs)
	cg.pop("rdi")

	// Operate at 64 bits when either operand is long or a pointer.
	isLong := node.Lhs.Ty.Kind == TyLong || node.Lhs.Ty.Base != nil

	switch node.Kind {
	case NdAdd:
		cg.out.AluRAXRDI("add", isLong)
		return
	case NdSub:
		cg.out.AluRAXRDI("sub", isLong)
		return
	case NdMul:
		cg.out.ImulRAXRDI(isLong)
		return
	case NdDiv, NdMod:
		if node.Ty.IsUnsigned {
			cg.out.MovRDXZero(isLong)
			cg.out.DivRDI(isLong)
		} else {
			if node.Lhs.Ty.Size == 8 {
				cg.out.Cqo()
			} else {
				cg.out.Cdq()
			}
			cg.out.IdivRDI(isLong)
		}

		if node.Kind == NdMod {
			cg.out.MovRegReg("rax", "rdx")
		}
		return
	case NdBitand:
		cg.out.AluRAXRDI("and", isLong)
		return
	case NdBitor:
		cg.out.AluRAXRDI("or", isLong)
		return
	case NdBitxor:
		cg.out.AluRAXRDI("xor", isLong)
		return
	case NdEq, NdNe, NdLt, NdLe:
		cg.out.AluRAXRDI("cmp", isLong)

		switch node.Kind {
		case NdEq:
			cg.out.Setcc("e", "al")
		case NdNe:
			cg.out.Setcc("ne", "al")
		case NdLt:
			if node.Lhs.Ty.IsUnsigned {
				cg.out.Setcc("b", "al")
			} else {
				cg.out.Setcc("l", "al")
			}
		case NdLe:
			if node.Lhs.Ty.IsUnsigned {
				cg.out.Setcc("be", "al")
			} else {
				cg.out.Setcc("le", "al")
			}
		}

		cg.out.MovzxRAXAL()
		return
	case NdShl:
		cg.out.MovRCXRDI()
		cg.out.ShlRAXCl(isLong)
		return
	case NdShr:
		cg.out.MovRCXRDI()
		if node.Lhs.Ty.IsUnsigned {
			cg.out.ShrRAXCl(isLong)
		} else {
			cg.out.SarRAXCl(isLong)
		}
		return
	}

	errorTok(node.Tok, "invalid expression")
}

// genStmt generates code for a statement node.
func (cg *CodeGen) genStmt(node *Node) {
	switch node.Kind {
	case NdIf:
		c := cg.count()
		lelse := cg.out.asm.NewPCLabel()
		lend := cg.out.asm.NewPCLabel()
		cg.genExpr(node.Cond)
		cg.cmpZero(node.Cond.Ty)
		cg.out.Je(fmt.Sprintf("L.else.%d", c), lelse)
		cg.genStmt(node.Then)
		cg.out.Jmp(fmt.Sprintf("L.end.%d", c), lend)
		cg.out.PlaceLabel(fmt.Sprintf("L.else.%d", c), lelse)
		if node.Els != nil {
			cg.genStmt(node.Els)
		}
		cg.out.PlaceLabel(fmt.Sprintf("L.end.%d", c), lend)
		return
	case NdFor:
		c := cg.count()
		if node.Init != nil {
			cg.genStmt(node.Init)
		}
		lbegin := cg.out.asm.NewPCLabel()
		cg.out.PlaceLabel(fmt.Sprintf("L.begin.%d", c), lbegin)
		if node.Cond != nil {
			cg.genExpr(node.Cond)
			cg.cmpZero(node.Cond.Ty)
			cg.out.Je(node.BrkLabel.Name, cg.pcOf(node.BrkLabel))
		}
		cg.genStmt(node.Then)
		cg.out.PlaceLabel(node.ContLabel.Name, cg.pcOf(node.ContLabel))
		if node.Inc != nil {
			cg.genExpr(node.Inc)
		}
		cg.out.Jmp(fmt.Sprintf("L.begin.%d", c), lbegin)
		cg.out.PlaceLabel(node.BrkLabel.Name, cg.pcOf(node.BrkLabel))
		return
	case NdDo:
		c := cg.count()
		lbegin := cg.out.asm.NewPCLabel()
		cg.out.PlaceLabel(fmt.Sprintf("L.begin.%d", c), lbegin)
		cg.genStmt(node.Then)
		cg.out.PlaceLabel(node.ContLabel.Name, cg.pcOf(node.ContLabel))
		cg.genExpr(node.Cond)
		cg.cmpZero(node.Cond.Ty)
		cg.out.Jne(fmt.Sprintf("L.begin.%d", c), lbegin)
		cg.out.PlaceLabel(node.BrkLabel.Name, cg.pcOf(node.BrkLabel))
		return
	case NdSwitch:
		cg.genExpr(node.Cond)

		isLong := node.Cond.Ty.Size == 8
		for _, n := range node.Cases {
			if n.Begin == n.End {
				cg.out.CmpRAXImm(n.Begin, isLong)
				cg.out.Je(n.Lbl.Name, cg.pcOf(n.Lbl))
				continue
			}

			// [GNU] Case ranges: one unsigned compare covers the whole
			// interval.
			if isLong {
				cg.out.MovRegReg("rdi", "rax")
			} else {
				cg.out.Mov32EDIEAX()
			}
			cg.out.SubRDIImm(n.Begin, isLong)
			cg.out.CmpRDIImm(n.End-n.Begin, isLong)
			cg.out.Jbe(n.Lbl.Name, cg.pcOf(n.Lbl))
		}

		if node.DefaultCase != nil {
			cg.out.Jmp(node.DefaultCase.Lbl.Name, cg.pcOf(node.DefaultCase.Lbl))
		}

		cg.out.Jmp(node.BrkLabel.Name, cg.pcOf(node.BrkLabel))
		cg.genStmt(node.Then)
		cg.out.PlaceLabel(node.BrkLabel.Name, cg.pcOf(node.BrkLabel))
		return
	case NdCase:
		cg.out.PlaceLabel(node.Lbl.Name, cg.pcOf(node.Lbl))
		cg.genStmt(node.Lhs)
		return
	case NdBlock:
		for _, n := range node.Body {
			cg.genStmt(n)
		}
		return
	case NdGoto:
		cg.out.Jmp(node.Lbl.Name, cg.pcOf(node.Lbl))
		return
	case NdGotoExpr:
		cg.genExpr(node.Lhs)
		cg.out.JmpRAX()
		return
	case NdLabel:
		cg.out.PlaceLabel(node.Lbl.Name, cg.pcOf(node.Lbl))
		cg.genStmt(node.Lhs)
		return
	case NdReturn:
		if node.Lhs != nil {
			cg.genExpr(node.Lhs)
			ty := node.Lhs.Ty

			switch ty.Kind {
			case TyStruct, TyUnion:
				if ty.Size <= 16 {
					cg.copyStructReg()
				} else {
					cg.copyStructMem()
				}
			}
		}

		cg.out.Jmp("L.return."+cg.currentFn.Name, cg.currentFn.returnLabel)
		return
	case NdExprStmt:
		cg.genExpr(node.Lhs)
		return
	case NdAsm:
		cg.out.println("  %s", node.AsmStr)
		return
	}

	errorTok(node.Tok, "invalid statement")
}

func (cg *CodeGen) storeFp(r, offset, sz int) {
	switch sz {
	case 4:
		cg.out.MovssMemRBPXn(offset, r)
	case 8:
		cg.out.MovsdMemRBPXn(offset, r)
	default:
		internalError("bad float spill size %d", sz)
	}
}

func (cg *CodeGen) storeGp(r, offset, sz int) {
	switch sz {
	case 1:
		cg.out.MovMemRBPArgReg8(offset, r)
	case 2:
		cg.out.MovMemRBPArgReg16(offset, r)
	case 4:
		cg.out.MovMemRBPArgReg32(offset, r)
	case 8:
		cg.out.MovMemRBPArgReg64(offset, r)
	default:
		for i := 0; i < sz; i++ {
			cg.out.MovMemRBPArgReg8(offset+i, r)
			cg.out.ShrArgReg64Imm(r, 8)
		}
	}
}

// emitText lowers every live function definition. Entry and return labels
// are allocated for all of them up front so forward calls resolve.
func (cg *CodeGen) emitText(prog []*Obj) {
	for _, fn := range prog {
		if !fn.IsFunction || !fn.IsDefinition || !fn.IsLive {
			continue
		}
		fn.returnLabel = cg.out.asm.NewPCLabel()
		fn.entryLabel = cg.out.asm.NewPCLabel()
	}

	for _, fn := range prog {
		if !fn.IsFunction {
			continue
		}

		if !fn.IsDefinition {
			cg.out.println("  extern %s:function", fn.Name)
			continue
		}

		// No code is emitted for "static inline" functions if no one is
		// referencing them.
		if !fn.IsLive {
			continue
		}

		if fn.IsStatic {
			cg.out.println("  static %s:function", fn.Name)
		} else {
			cg.out.println("  global %s:function", fn.Name)
		}

		cg.out.println("  section .text")
		cg.out.println("%s:", fn.Name)
		cg.out.asm.Place(fn.entryLabel)

		cg.currentFn = fn

		// Prologue
		cg.out.PushRBP()
		cg.out.MovRegReg("rbp", "rsp")
		cg.out.SubRSPImm(fn.StackSize)
		cg.out.MovMemRBPReg(fn.AllocaBottom.Offset, "rsp")

		// Save arg registers if function is variadic
		if fn.VaArea != nil {
			gp, fp := 0, 0
			for _, v := range fn.Params {
				if isFlonum(v.Ty) {
					fp++
				} else {
					gp++
				}
			}

			off := fn.VaArea.Offset

			// va_elem
			cg.out.MovMemRBPDwordImm(off, uint32(gp*8))        // gp_offset
			cg.out.MovMemRBPDwordImm(off+4, uint32(fp*8+48))   // fp_offset
			cg.out.MovMemRBPReg(off+8, "rbp")                  // overflow_arg_area
			cg.out.AddMemRBPQwordImm(off+8, 16)
			cg.out.MovMemRBPReg(off+16, "rbp")                 // reg_save_area
			cg.out.AddMemRBPQwordImm(off+16, int32(off+24))

			// __reg_save_area__
			cg.out.MovMemRBPReg(off+24, "rdi")
			cg.out.MovMemRBPReg(off+32, "rsi")
			cg.out.MovMemRBPReg(off+40, "rdx")
			cg.out.MovMemRBPReg(off+48, "rcx")
			cg.out.MovMemRBPReg(off+56, "r8")
			cg.out.MovMemRBPReg(off+64, "r9")
			for i := 0; i < 8; i++ {
				cg.out.MovsdMemRBPXn(off+72+i*8, i)
			}
		}

		// Save passed-by-register arguments to the stack
		gp, fp := 0, 0
		for _, v := range fn.Params {
			if v.Offset > 0 {
				continue
			}

			ty := v.Ty

			switch ty.Kind {
			case TyStruct, TyUnion:
				if ty.Size > 16 {
					internalError("register-passed struct larger than 16 bytes")
				}
				if hasFlonum(ty, 0, 8, 0) {
					cg.storeFp(fp, v.Offset, min(8, ty.Size))
					fp++
				} else {
					cg.storeGp(gp, v.Offset, min(8, ty.Size))
					gp++
				}

				if ty.Size > 8 {
					if hasFlonum(ty, 8, 16, 0) {
						cg.storeFp(fp, v.Offset+8, ty.Size-8)
						fp++
					} else {
						cg.storeGp(gp, v.Offset+8, ty.Size-8)
						gp++
					}
				}
			case TyFloat, TyDouble:
				cg.storeFp(fp, v.Offset, ty.Size)
				fp++
			default:
				cg.storeGp(gp, v.Offset, ty.Size)
				gp++
			}
		}

		// Emit code
		cg.genStmt(fn.Body)
		if cg.depth != 0 {
			internalError("stack depth %d at end of %s", cg.depth, fn.Name)
		}

		// Reaching the end of main is equivalent to returning 0.
		if fn.Name == "main" {
			cg.out.MovRAXImm(0)
			cg.mainEntry = fn.entryLabel
		}

		// Epilogue
		cg.out.PlaceLabel("L.return."+fn.Name, fn.returnLabel)
		cg.out.MovRegReg("rsp", "rbp")
		cg.out.PopReg("rbp")
		cg.out.Ret()
	}
}

func (cg *CodeGen) writeTextExports(prog []*Obj) {
	for _, fn := range prog {
		if !fn.IsFunction || !fn.IsDefinition || !fn.IsLive {
			continue
		}
		if !fn.IsStatic {
			cg.must(cg.dyo.WriteFunctionExport(fn.Name, uint32(cg.out.asm.Offset(fn.entryLabel))))
		}
	}
}

// writeImports records every import fixup site. The +2 skips the two-byte
// REX/opcode prefix of `mov rax, imm64` so the offset points straight at the
// immediate the linker overwrites. writeDataFixups does the same for global
// references.
func (cg *CodeGen) writeImports() {
	for _, f := range cg.importFixups {
		offset := cg.out.asm.Offset(f.label) + 2
		cg.must(cg.dyo.WriteImport(f.name, uint32(offset)))
	}
}

func (cg *CodeGen) writeDataFixups() {
	for _, f := range cg.dataFixups {
		offset := cg.out.asm.Offset(f.label) + 2
		cg.must(cg.dyo.WriteCodeReferenceToGlobal(f.name, uint32(offset)))
	}
}

func (cg *CodeGen) updatePendingCodeRelocs() {
	for _, p := range cg.pendingCodeRelocs {
		offset := cg.out.asm.Offset(p.label)
		cg.must(cg.dyo.PatchInitializerCodeRelocation(p.fileOffset, uint32(offset)))
	}
}

// Compile lowers one translation unit and writes the complete object stream.
func (cg *CodeGen) Compile(prog []*Obj) (err error) {
	defer catchCompilerError(&err)

	cg.out.println("extern _GLOBAL_OFFSET_TABLE_")

	assignLvarOffsets(prog)
	cg.emitData(prog)
	cg.emitText(prog)

	size, lerr := cg.out.asm.Link()
	if lerr != nil {
		return lerr
	}

	cg.writeTextExports(prog)
	cg.writeImports()
	cg.writeDataFixups()
	cg.updatePendingCodeRelocs()

	code := make([]byte, size)
	cg.out.asm.Encode(code)

	if cg.mainEntry != 0 {
		cg.must(cg.dyo.WriteEntryPoint(uint32(cg.out.asm.Offset(cg.mainEntry))))
	}
	cg.must(cg.dyo.WriteCode(code))

	return nil
}
