// callconv.go - System V AMD64 argument classification
package main

// Up to six integer arguments travel in rdi, rsi, rdx, rcx, r8, r9 and up to
// eight float arguments in xmm0..xmm7. Everything else goes to the stack.
const (
	gpMax = 6
	fpMax = 8
)

// hasFlonum reports whether every scalar of ty that overlaps the byte range
// [lo, hi) at the given offset is float or double. Structs or unions no
// larger than 16 bytes are passed in up to two registers; each eightbyte is
// classified independently with this predicate.
func hasFlonum(ty *Type, lo, hi, offset int) bool {
	switch ty.Kind {
	case TyStruct, TyUnion:
		for _, mem := range ty.Members {
			if !hasFlonum(mem.Ty, lo, hi, offset+mem.Offset) {
				return false
			}
		}
		return true
	case TyArray:
		for i := 0; i < ty.ArrayLen; i++ {
			if !hasFlonum(ty.Base, lo, hi, offset+ty.Base.Size*i) {
				return false
			}
		}
		return true
	}
	return offset < lo || hi <= offset || ty.Kind == TyFloat || ty.Kind == TyDouble
}

func hasFlonum1(ty *Type) bool {
	return hasFlonum(ty, 0, 8, 0)
}

func hasFlonum2(ty *Type) bool {
	return hasFlonum(ty, 8, 16, 0)
}
