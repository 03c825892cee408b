package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

// newTestFunc builds a live function definition with the implicit alloca
// bottom local every frame carries.
func newTestFunc(name string, body *Node, params ...*Obj) *Obj {
	fn := &Obj{
		Name:         name,
		Ty:           funcType(tyInt),
		IsFunction:   true,
		IsDefinition: true,
		IsLive:       true,
		Body:         body,
	}
	ab := &Obj{Name: "__alloca_size__", Ty: tyLong, IsLocal: true}
	fn.AllocaBottom = ab
	fn.Params = params
	fn.Locals = append(append([]*Obj{}, params...), ab)
	return fn
}

func intNum(v int64) *Node {
	return &Node{Kind: NdNum, Ty: tyInt, Val: v}
}

func retStmt(e *Node) *Node {
	return &Node{Kind: NdReturn, Lhs: e}
}

func exprStmt(e *Node) *Node {
	return &Node{Kind: NdExprStmt, Lhs: e}
}

func blockStmt(ns ...*Node) *Node {
	return &Node{Kind: NdBlock, Body: ns}
}

func varNode(v *Obj) *Node {
	return &Node{Kind: NdVar, Ty: v.Ty, Var: v}
}

// compileUnit lowers a unit and returns the code blob, the raw object
// stream and the assembly listing.
func compileUnit(t *testing.T, prog []*Obj) (code, dyoBytes []byte, listing string) {
	t.Helper()

	var lst bytes.Buffer
	f := &memFile{}
	w, err := NewDyoWriter(f)
	if err != nil {
		t.Fatalf("NewDyoWriter: %v", err)
	}
	cg := NewCodeGen(&lst, w)
	if err := cg.Compile(prog); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return codeFromDyo(t, f.buf), f.buf, lst.String()
}

// codeFromDyo extracts the machine-code blob from an object stream.
func codeFromDyo(t *testing.T, data []byte) []byte {
	t.Helper()
	r := bytes.NewReader(data)
	if err := ensureDyoHeader(r); err != nil {
		t.Fatalf("ensureDyoHeader: %v", err)
	}
	buf := make([]byte, dyoRecordBufSize)
	for {
		typ, payload, err := readDyoRecord(r, buf)
		if err != nil {
			t.Fatalf("no code record: %v", err)
		}
		if typ == TypeX64Code {
			return append([]byte{}, payload...)
		}
	}
}

// dyoRecords parses an object stream into (type, payload) pairs.
type dyoRecord struct {
	typ     int
	payload []byte
}

func dyoRecordList(t *testing.T, data []byte) []dyoRecord {
	t.Helper()
	r := bytes.NewReader(data)
	if err := ensureDyoHeader(r); err != nil {
		t.Fatalf("ensureDyoHeader: %v", err)
	}
	buf := make([]byte, dyoRecordBufSize)
	var recs []dyoRecord
	for {
		typ, payload, err := readDyoRecord(r, buf)
		if err != nil {
			return recs
		}
		recs = append(recs, dyoRecord{typ, append([]byte{}, payload...)})
		if typ == TypeX64Code {
			return recs
		}
	}
}

func containsSeq(haystack, needle []byte) bool {
	return bytes.Contains(haystack, needle)
}

// int main(void) { return 0; } lowers to the exact prologue, zeroing of rax,
// and epilogue, with a main export and an entry point record.
func TestIdentityMain(t *testing.T) {
	fn := newTestFunc("main", retStmt(intNum(0)))
	code, dyoBytes, listing := compileUnit(t, []*Obj{fn})

	want := []byte{
		0x55,                   // push rbp
		0x48, 0x89, 0xE5,       // mov rbp, rsp
		0x48, 0x83, 0xEC, 0x10, // sub rsp, 16
		0x48, 0x89, 0x65, 0xF8, // mov [rbp-8], rsp
		0x48, 0xC7, 0xC0, 0, 0, 0, 0, // mov rax, 0
		0xE9, 0x07, 0, 0, 0, // jmp L.return.main
		0x48, 0xC7, 0xC0, 0, 0, 0, 0, // implicit mov rax, 0
		0x48, 0x89, 0xEC, // mov rsp, rbp
		0x5D, // pop rbp
		0xC3, // ret
	}
	if !bytes.Equal(code, want) {
		t.Errorf("code:\n got % x\nwant % x", code, want)
	}

	recs := dyoRecordList(t, dyoBytes)
	var haveExport, haveEntry bool
	for _, rec := range recs {
		switch rec.typ {
		case TypeFunctionExport:
			haveExport = true
			if off := u32At(rec.payload, 0); off != 0 {
				t.Errorf("export offset = %d, want 0", off)
			}
		case TypeEntryPoint:
			haveEntry = true
			if off := u32At(rec.payload, 0); off != 0 {
				t.Errorf("entry offset = %d, want 0", off)
			}
		}
	}
	if !haveExport {
		t.Error("no function export record for main")
	}
	if !haveEntry {
		t.Error("no entry point record")
	}

	for _, line := range []string{"global main:function", "push rbp", "L.return.main:"} {
		if !strings.Contains(listing, line) {
			t.Errorf("listing missing %q", line)
		}
	}
}

// return puts("hi") against an undefined puts: one import fixup pointing two
// bytes into a mov64, one static string with initializer bytes, one code
// reference to it.
func TestExternalCall(t *testing.T) {
	puts := &Obj{Name: "puts", Ty: funcType(tyInt), IsFunction: true}
	str := &Obj{
		Name:         "L..str",
		Ty:           arrayOf(tyChar, 3),
		IsDefinition: true,
		IsStatic:     true,
		InitData:     []byte("hi\x00"),
	}

	call := &Node{
		Kind: NdFuncall,
		Ty:   tyInt,
		Lhs:  &Node{Kind: NdVar, Ty: puts.Ty, Var: puts},
		Args: []*Node{varNode(str)},
	}
	fn := newTestFunc("main", retStmt(call))

	code, dyoBytes, _ := compileUnit(t, []*Obj{str, puts, fn})

	recs := dyoRecordList(t, dyoBytes)
	strTable := map[uint32]string{}
	idx := uint32(0)
	for _, rec := range recs {
		idx++
		if rec.typ == TypeString {
			strTable[idx] = strings.TrimRight(string(rec.payload), "\x00")
		}
	}

	var importOff, dataOff uint32 = 0xffffffff, 0xffffffff
	var sawBytes bool
	for _, rec := range recs {
		switch rec.typ {
		case TypeImport:
			if strTable[u32At(rec.payload, 4)] == "puts" {
				importOff = u32At(rec.payload, 0)
			}
		case TypeCodeReferenceToGlobal:
			if strTable[u32At(rec.payload, 4)] == "L..str" {
				dataOff = u32At(rec.payload, 0)
			}
		case TypeInitializerBytes:
			if bytes.Equal(rec.payload, []byte("hi\x00")) {
				sawBytes = true
			}
		}
	}

	if importOff == 0xffffffff {
		t.Fatal("no import record for puts")
	}
	if dataOff == 0xffffffff {
		t.Fatal("no code reference to the string")
	}
	if !sawBytes {
		t.Error("string initializer bytes missing")
	}

	// Both fixups point at the imm64 of a mov64 rax: the two bytes before
	// the patch site are the REX.W+B8 prefix.
	for _, off := range []uint32{importOff, dataOff} {
		if code[off-2] != 0x48 || code[off-1] != 0xB8 {
			t.Errorf("fixup at %d not preceded by mov64 prefix: % x", off, code[off-2:off])
		}
	}
	if got := bytes.Count(code, []byte{0x41, 0xFF, 0xD2}); got != 1 {
		t.Errorf("call r10 count = %d, want 1", got)
	}
}

// switch (x) { case 10 ... 20: ...; default: ... } compiles the range to an
// unsigned sub/cmp/jbe chain.
func TestSwitchRangeCase(t *testing.T) {
	x := &Obj{Name: "x", Ty: tyInt, IsLocal: true}

	caseStmt := &Node{Kind: NdCase, Begin: 10, End: 20, Lbl: NewLabel("L.case.1"), Lhs: retStmt(intNum(1))}
	defStmt := &Node{Kind: NdCase, Lbl: NewLabel("L.default.1"), Lhs: retStmt(intNum(0))}
	sw := &Node{
		Kind:        NdSwitch,
		Cond:        varNode(x),
		Cases:       []*Node{caseStmt},
		DefaultCase: defStmt,
		BrkLabel:    NewLabel("L.brk.1"),
		Then:        blockStmt(caseStmt, defStmt),
	}
	fn := newTestFunc("f", sw, x)

	code, _, listing := compileUnit(t, []*Obj{fn})

	rangeSeq := []byte{
		0x89, 0xC7, // mov edi, eax
		0x83, 0xEF, 10, // sub edi, 10
		0x83, 0xFF, 10, // cmp edi, 10
		0x0F, 0x86, // jbe
	}
	if !containsSeq(code, rangeSeq) {
		t.Errorf("range dispatch sequence not found in % x", code)
	}
	for _, line := range []string{"  sub edi, 10", "  cmp edi, 10", "  jbe L.case.1"} {
		if !strings.Contains(listing, line) {
			t.Errorf("listing missing %q", line)
		}
	}
}

// A single-value case on a long comparand compares the full register.
func TestSwitchLongCase(t *testing.T) {
	x := &Obj{Name: "x", Ty: tyLong, IsLocal: true}
	caseStmt := &Node{Kind: NdCase, Begin: 3, End: 3, Lbl: NewLabel("L.case.1"), Lhs: retStmt(intNum(1))}
	sw := &Node{
		Kind:     NdSwitch,
		Cond:     varNode(x),
		Cases:    []*Node{caseStmt},
		BrkLabel: NewLabel("L.brk.1"),
		Then:     blockStmt(caseStmt),
	}
	fn := newTestFunc("f", sw, x)

	code, _, _ := compileUnit(t, []*Obj{fn})
	if !containsSeq(code, []byte{0x48, 0x83, 0xF8, 3}) {
		t.Errorf("cmp rax, 3 not found in % x", code)
	}
}

// Bitfield store: mask the new value, clear the field bits in the old unit,
// merge and restore the expression value.
func TestBitfieldStore(t *testing.T) {
	m := &Member{Name: "b", Ty: tyUInt, Offset: 0, IsBitfield: true, BitOffset: 0, BitWidth: 3}
	s := structType(4, 4, m)
	sv := &Obj{Name: "s", Ty: s, IsLocal: true}

	assign := &Node{
		Kind: NdAssign,
		Ty:   m.Ty,
		Lhs:  &Node{Kind: NdMember, Ty: m.Ty, Member: m, Lhs: varNode(sv)},
		Rhs:  &Node{Kind: NdNum, Ty: tyUInt, Val: 9},
	}
	fn := newTestFunc("f", blockStmt(exprStmt(assign), retStmt(intNum(0))))
	fn.Locals = append(fn.Locals, sv)

	code, _, _ := compileUnit(t, []*Obj{fn})

	for name, seq := range map[string][]byte{
		"and rdi, 7":  {0x48, 0x81, 0xE7, 7, 0, 0, 0},
		"mov r9, ~7":  {0x49, 0xC7, 0xC1, 0xF8, 0xFF, 0xFF, 0xFF},
		"and rax, r9": {0x4C, 0x21, 0xC8},
		"or rax, rdi": {0x48, 0x09, 0xF8},
		"mov rax, r8": {0x4C, 0x89, 0xC0},
	} {
		if !containsSeq(code, seq) {
			t.Errorf("%s sequence not found", name)
		}
	}
}

// Bitfield read shifts the field to the top and back down by signedness.
func TestBitfieldLoad(t *testing.T) {
	m := &Member{Name: "b", Ty: tyUInt, Offset: 0, IsBitfield: true, BitOffset: 2, BitWidth: 3}
	s := structType(4, 4, m)
	sv := &Obj{Name: "s", Ty: s, IsLocal: true}

	read := &Node{Kind: NdMember, Ty: m.Ty, Member: m, Lhs: varNode(sv)}
	fn := newTestFunc("f", retStmt(read))
	fn.Locals = append(fn.Locals, sv)

	code, _, _ := compileUnit(t, []*Obj{fn})

	// shl rax, 64-3-2; shr rax, 64-3 (unsigned).
	if !containsSeq(code, []byte{0x48, 0xC1, 0xE0, 59, 0x48, 0xC1, 0xE8, 61}) {
		t.Errorf("bitfield extraction shifts not found in % x", code)
	}
}

// Ternary, logical and/or and not materialize 0/1 in rax with the two-label
// patterns.
func TestShortCircuitAndTernary(t *testing.T) {
	cond := &Node{Kind: NdLogand, Ty: tyInt, Lhs: intNum(1), Rhs: intNum(0)}
	tern := &Node{Kind: NdCond, Ty: tyInt, Cond: cond, Then: intNum(2), Els: intNum(3)}
	orr := &Node{Kind: NdLogor, Ty: tyInt, Lhs: tern, Rhs: intNum(1)}
	fn := newTestFunc("f", retStmt(orr))

	_, _, listing := compileUnit(t, []*Obj{fn})

	for _, line := range []string{"L.false.", "L.true.", "L.else.", "L.end."} {
		if !strings.Contains(listing, line) {
			t.Errorf("listing missing %q labels", line)
		}
	}
}

// Signed and unsigned division pick cdq/idiv vs zeroed rdx/div.
func TestDivisionLowering(t *testing.T) {
	signed := &Node{Kind: NdDiv, Ty: tyInt, Lhs: intNum(6), Rhs: intNum(3)}
	fn := newTestFunc("f", retStmt(signed))
	code, _, _ := compileUnit(t, []*Obj{fn})
	if !containsSeq(code, []byte{0x99, 0xF7, 0xFF}) {
		t.Errorf("cdq/idiv edi not found in % x", code)
	}

	u := &Node{Kind: NdDiv, Ty: tyUInt, Lhs: &Node{Kind: NdNum, Ty: tyUInt, Val: 6}, Rhs: &Node{Kind: NdNum, Ty: tyUInt, Val: 3}}
	fn2 := newTestFunc("g", retStmt(u))
	code2, _, _ := compileUnit(t, []*Obj{fn2})
	if !containsSeq(code2, []byte{0xC7, 0xC2, 0, 0, 0, 0, 0xF7, 0xF7}) {
		t.Errorf("mov edx,0/div edi not found in % x", code2)
	}
}

// Float equality is sete+setnp, inequality setne+setp; ordering uses the
// unsigned conditions.
func TestFloatComparisons(t *testing.T) {
	dnum := func(v float64) *Node { return &Node{Kind: NdNum, Ty: tyDouble, FVal: v} }

	eq := &Node{Kind: NdEq, Ty: tyInt, Lhs: dnum(1), Rhs: dnum(2)}
	fn := newTestFunc("f", retStmt(eq))
	code, _, _ := compileUnit(t, []*Obj{fn})

	seq := []byte{
		0x66, 0x0F, 0x2E, 0xC8, // ucomisd xmm1, xmm0
		0x0F, 0x94, 0xC0, // sete al
		0x0F, 0x9B, 0xC2, // setnp dl
		0x20, 0xD0, // and al, dl
	}
	if !containsSeq(code, seq) {
		t.Errorf("unordered-aware equality not found in % x", code)
	}

	lt := &Node{Kind: NdLt, Ty: tyInt, Lhs: dnum(1), Rhs: dnum(2)}
	fn2 := newTestFunc("g", retStmt(lt))
	code2, _, _ := compileUnit(t, []*Obj{fn2})
	if !containsSeq(code2, []byte{0x66, 0x0F, 0x2E, 0xC8, 0x0F, 0x97, 0xC0}) {
		t.Errorf("seta for float < not found in % x", code2)
	}
}

// memzero is a rep stosb fill of the local's frame slot.
func TestMemzero(t *testing.T) {
	v := &Obj{Name: "buf", Ty: arrayOf(tyChar, 32), IsLocal: true}
	mz := &Node{Kind: NdMemzero, Ty: tyVoid, Var: v}
	fn := newTestFunc("f", blockStmt(exprStmt(mz), retStmt(intNum(0))))
	fn.Locals = append(fn.Locals, v)

	code, _, _ := compileUnit(t, []*Obj{fn})

	if !containsSeq(code, []byte{0x48, 0xC7, 0xC1, 32, 0, 0, 0}) {
		t.Error("mov rcx, 32 not found")
	}
	if !containsSeq(code, []byte{0xB0, 0x00, 0xF3, 0xAA}) {
		t.Error("mov al,0 / rep stosb not found")
	}
}

// Compare-and-swap emits the size-selected lock cmpxchg bytes and the
// success flag in rax.
func TestCompareAndSwap(t *testing.T) {
	addr := &Obj{Name: "p", Ty: pointerTo(tyInt), IsLocal: true}
	expected := &Obj{Name: "e", Ty: pointerTo(tyInt), IsLocal: true}

	cas := &Node{
		Kind:    NdCas,
		Ty:      tyBool,
		CasAddr: varNode(addr),
		CasOld:  varNode(expected),
		CasNew:  intNum(42),
	}
	fn := newTestFunc("f", retStmt(cas))
	fn.Locals = append(fn.Locals, addr, expected)

	code, _, _ := compileUnit(t, []*Obj{fn})

	if !containsSeq(code, []byte{0xF0, 0x0F, 0xB1, 0x17}) {
		t.Error("lock cmpxchg dword not found")
	}
	if !containsSeq(code, []byte{0x0F, 0x94, 0xC1}) {
		t.Error("sete cl not found")
	}
	if !containsSeq(code, []byte{0x0F, 0xB6, 0xC1}) {
		t.Error("movzx eax, cl not found")
	}
	// Failure path writes the observed value back through r8.
	if !containsSeq(code, []byte{0x41, 0x89, 0x00}) {
		t.Error("mov [r8], eax not found")
	}
}

func TestExchange(t *testing.T) {
	p := &Obj{Name: "p", Ty: pointerTo(tyLong), IsLocal: true}
	ex := &Node{Kind: NdExch, Ty: tyLong, Lhs: varNode(p), Rhs: &Node{Kind: NdNum, Ty: tyLong, Val: 1}}
	fn := newTestFunc("f", retStmt(ex))
	fn.Locals = append(fn.Locals, p)

	code, _, _ := compileUnit(t, []*Obj{fn})
	if !containsSeq(code, []byte{0x48, 0x87, 0x07}) {
		t.Error("xchg [rdi], rax not found")
	}
}

// The f80-to-integer widths with no encoding abort the unit instead of
// guessing.
func TestLongDoubleCastGaps(t *testing.T) {
	for _, to := range []*Type{tyULong, tyUShort, tyUInt} {
		ld := &Obj{Name: "x", Ty: tyLDouble, IsLocal: true}
		cast := &Node{Kind: NdCast, Ty: to, Lhs: varNode(ld)}
		fn := newTestFunc("f", retStmt(cast))
		fn.Locals = append(fn.Locals, ld)

		f := &memFile{}
		w, err := NewDyoWriter(f)
		if err != nil {
			t.Fatal(err)
		}
		cg := NewCodeGen(nil, w)
		err = cg.Compile([]*Obj{fn})
		if err == nil || !strings.Contains(err.Error(), "not implemented") {
			t.Errorf("cast to %v: err = %v, want not-implemented failure", to.Kind, err)
		}
	}
}

// Thread-local access fails fast in the machine-code path.
func TestTLSFailsFast(t *testing.T) {
	g := &Obj{Name: "tlsvar", Ty: tyInt, IsDefinition: true, IsTLS: true}
	fn := newTestFunc("f", retStmt(&Node{Kind: NdVar, Ty: tyInt, Var: g}))

	f := &memFile{}
	w, err := NewDyoWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	cg := NewCodeGen(nil, w)
	err = cg.Compile([]*Obj{g, fn})
	if err == nil || !strings.Contains(err.Error(), "thread-local") {
		t.Errorf("err = %v, want thread-local failure", err)
	}
}

// Taking the address of an rvalue is malformed IR.
func TestAddrOfNonLvalue(t *testing.T) {
	bad := &Node{Kind: NdAddr, Ty: pointerTo(tyInt), Lhs: intNum(1), Tok: &Token{File: "t.c", Line: 3}}
	fn := newTestFunc("f", retStmt(bad))

	f := &memFile{}
	w, err := NewDyoWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	cg := NewCodeGen(nil, w)
	err = cg.Compile([]*Obj{fn})
	if err == nil || !strings.Contains(err.Error(), "not an lvalue") {
		t.Errorf("err = %v, want lvalue diagnostic", err)
	}
	if err != nil && !strings.Contains(err.Error(), "t.c:3") {
		t.Errorf("diagnostic %q does not name the source token", err)
	}
}

// Entry and return labels bracket each function body.
func TestFunctionLabelOrdering(t *testing.T) {
	fnA := newTestFunc("a", retStmt(intNum(1)))
	fnB := newTestFunc("b", retStmt(intNum(2)))

	var lst bytes.Buffer
	f := &memFile{}
	w, err := NewDyoWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	cg := NewCodeGen(&lst, w)
	if err := cg.Compile([]*Obj{fnA, fnB}); err != nil {
		t.Fatal(err)
	}

	for _, fn := range []*Obj{fnA, fnB} {
		entry := cg.out.asm.Offset(fn.entryLabel)
		ret := cg.out.asm.Offset(fn.returnLabel)
		if entry > ret {
			t.Errorf("%s: entry %d > return %d", fn.Name, entry, ret)
		}
	}
	if cg.out.asm.Offset(fnB.entryLabel) <= cg.out.asm.Offset(fnA.returnLabel) {
		t.Error("function bodies overlap")
	}
}

// A call between defined functions resolves through the pre-allocated entry
// label, not an import.
func TestForwardCall(t *testing.T) {
	callee := newTestFunc("callee", retStmt(intNum(7)))
	call := &Node{Kind: NdFuncall, Ty: tyInt, Lhs: &Node{Kind: NdVar, Ty: callee.Ty, Var: callee}}
	caller := newTestFunc("main", retStmt(call))

	// Caller first: the call site references the callee's entry label
	// before its body exists.
	_, dyoBytes, _ := compileUnit(t, []*Obj{caller, callee})

	for _, rec := range dyoRecordList(t, dyoBytes) {
		if rec.typ == TypeImport {
			t.Error("defined callee produced an import record")
		}
	}
}

// Variadic functions lay out the register save area in the prologue.
func TestVariadicPrologue(t *testing.T) {
	va := &Obj{Name: "__va_area__", Ty: arrayOf(tyChar, 136), IsLocal: true, Align: 8}
	x := &Obj{Name: "x", Ty: tyInt, IsLocal: true}
	fn := newTestFunc("f", retStmt(intNum(0)), x)
	fn.VaArea = va
	fn.Locals = append(fn.Locals, va)
	fn.Ty.IsVariadic = true

	code, _, listing := compileUnit(t, []*Obj{fn})

	// gp_offset is 8 with one named integer parameter; fp_offset 48.
	if !strings.Contains(listing, "  mov dword [rbp+"+itoa(va.Offset)+"], 8") {
		t.Errorf("gp_offset store missing in listing")
	}
	if !strings.Contains(listing, "], 48") {
		t.Errorf("fp_offset store missing in listing")
	}
	// All six GP argument registers spill.
	for _, seq := range [][]byte{
		{0x48, 0x89, 0xBD}, // mov [rbp+disp32], rdi
		{0x48, 0x89, 0xB5}, // rsi
		{0x48, 0x89, 0x95}, // rdx
		{0x48, 0x89, 0x8D}, // rcx
		{0x4C, 0x89, 0x85}, // r8
		{0x4C, 0x89, 0x8D}, // r9
	} {
		if !containsSeq(code, seq) {
			t.Errorf("missing register save % x", seq)
		}
	}
}

// alloca slides the live stack region and moves the bottom pointer.
func TestAlloca(t *testing.T) {
	allocaFn := &Obj{Name: "alloca", Ty: funcType(pointerTo(tyVoid)), IsFunction: true}
	call := &Node{
		Kind: NdFuncall,
		Ty:   pointerTo(tyVoid),
		Lhs:  &Node{Kind: NdVar, Ty: allocaFn.Ty, Var: allocaFn},
		Args: []*Node{intNum(64)},
	}
	fn := newTestFunc("f", blockStmt(exprStmt(call), retStmt(intNum(0))))

	code, dyoBytes, _ := compileUnit(t, []*Obj{allocaFn, fn})

	if !containsSeq(code, []byte{0x48, 0x83, 0xC7, 0x0F}) {
		t.Error("add rdi, 15 not found")
	}
	if !containsSeq(code, []byte{0x81, 0xE7, 0xF0, 0xFF, 0xFF, 0xFF}) {
		t.Error("and edi, 0xfffffff0 not found")
	}
	// The byte-copy loop.
	if !containsSeq(code, []byte{0x44, 0x8A, 0x00, 0x44, 0x88, 0x02}) {
		t.Error("alloca copy loop not found")
	}
	// alloca must not be treated as a real call.
	for _, rec := range dyoRecordList(t, dyoBytes) {
		if rec.typ == TypeImport {
			t.Error("alloca lowered as an import")
		}
	}
}

// A static function is not exported.
func TestStaticFunctionNotExported(t *testing.T) {
	fn := newTestFunc("helper", retStmt(intNum(0)))
	fn.IsStatic = true

	_, dyoBytes, _ := compileUnit(t, []*Obj{fn})
	for _, rec := range dyoRecordList(t, dyoBytes) {
		if rec.typ == TypeFunctionExport {
			t.Error("static function exported")
		}
	}
}

// Dead static-inline style functions emit nothing.
func TestDeadFunctionSkipped(t *testing.T) {
	dead := newTestFunc("unused", retStmt(intNum(0)))
	dead.IsLive = false
	live := newTestFunc("main", retStmt(intNum(0)))

	code, _, _ := compileUnit(t, []*Obj{dead, live})

	// Only main's 36 bytes.
	if len(code) != 36 {
		t.Errorf("code length = %d, want 36", len(code))
	}
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
