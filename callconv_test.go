package main

import "testing"

func doubleLongStruct() *Type {
	return structType(16, 8,
		&Member{Name: "a", Ty: tyDouble, Offset: 0},
		&Member{Name: "b", Ty: tyLong, Offset: 8},
	)
}

func TestHasFlonumScalars(t *testing.T) {
	if !hasFlonum(tyFloat, 0, 8, 0) {
		t.Error("float not flonum in [0,8)")
	}
	if !hasFlonum(tyDouble, 0, 8, 0) {
		t.Error("double not flonum in [0,8)")
	}
	if hasFlonum(tyInt, 0, 8, 0) {
		t.Error("int classified as flonum")
	}
	if hasFlonum(tyLDouble, 0, 8, 0) {
		t.Error("long double classified as flonum eightbyte")
	}
	// A scalar entirely outside the window doesn't affect classification.
	if !hasFlonum(tyInt, 0, 8, 8) {
		t.Error("int at offset 8 should not poison [0,8)")
	}
}

func TestHasFlonumStructs(t *testing.T) {
	// struct { double a; long b; }: first eightbyte float, second integer.
	s := doubleLongStruct()
	if !hasFlonum1(s) {
		t.Error("first eightbyte of {double,long} not float")
	}
	if hasFlonum2(s) {
		t.Error("second eightbyte of {double,long} classified float")
	}

	// struct { float a; float b; }: one float eightbyte.
	ff := structType(8, 4,
		&Member{Name: "a", Ty: tyFloat, Offset: 0},
		&Member{Name: "b", Ty: tyFloat, Offset: 4},
	)
	if !hasFlonum1(ff) {
		t.Error("{float,float} not a float eightbyte")
	}

	// struct { float a; int b; }: mixed eightbyte goes to a GP register.
	fi := structType(8, 4,
		&Member{Name: "a", Ty: tyFloat, Offset: 0},
		&Member{Name: "b", Ty: tyInt, Offset: 4},
	)
	if hasFlonum1(fi) {
		t.Error("{float,int} classified float")
	}
}

func TestHasFlonumArraysAndNesting(t *testing.T) {
	// double[2] fills both eightbytes with floats.
	da := arrayOf(tyDouble, 2)
	if !hasFlonum1(da) || !hasFlonum2(da) {
		t.Error("double[2] not float in both eightbytes")
	}

	// struct { struct { double d; } inner; long l; }
	inner := structType(8, 8, &Member{Name: "d", Ty: tyDouble, Offset: 0})
	outer := structType(16, 8,
		&Member{Name: "inner", Ty: inner, Offset: 0},
		&Member{Name: "l", Ty: tyLong, Offset: 8},
	)
	if !hasFlonum1(outer) {
		t.Error("nested double not seen in first eightbyte")
	}
	if hasFlonum2(outer) {
		t.Error("long in second eightbyte classified float")
	}

	// int[4]: both eightbytes integer.
	ia := arrayOf(tyInt, 4)
	if hasFlonum1(ia) || hasFlonum2(ia) {
		t.Error("int[4] classified float")
	}
}

// The full 16-byte classification is the union of its independent eightbyte
// classifications.
func TestClassifierEightbyteIndependence(t *testing.T) {
	tys := []*Type{
		doubleLongStruct(),
		arrayOf(tyDouble, 2),
		arrayOf(tyInt, 4),
		structType(16, 8,
			&Member{Name: "a", Ty: tyLong, Offset: 0},
			&Member{Name: "b", Ty: tyDouble, Offset: 8},
		),
	}
	for _, ty := range tys {
		lo := hasFlonum(ty, 0, 8, 0)
		hi := hasFlonum(ty, 8, 16, 0)
		if hasFlonum1(ty) != lo || hasFlonum2(ty) != hi {
			t.Errorf("eightbyte classification disagrees for size-%d aggregate", ty.Size)
		}
	}
}

// A register-passed {double,long} parameter spills through xmm0 then rdi.
func TestStructParamSpill(t *testing.T) {
	s := doubleLongStruct()
	param := &Obj{Name: "s", Ty: s, IsLocal: true}
	body := &Node{Kind: NdReturn, Lhs: &Node{Kind: NdNum, Ty: tyInt, Val: 0}}
	fn := newTestFunc("f", body, param)

	code, _, _ := compileUnit(t, []*Obj{fn})

	// movsd [rbp+off], xmm0 followed by mov [rbp+off+8], rdi.
	movsd := []byte{0xF2, 0x0F, 0x11, 0x45}
	movrdi := []byte{0x48, 0x89, 0x7D}
	if !containsSeq(code, movsd) {
		t.Errorf("no movsd spill in % x", code)
	}
	if !containsSeq(code, movrdi) {
		t.Errorf("no rdi spill in % x", code)
	}
}
