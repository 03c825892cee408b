// atomic.go - lock cmpxchg and xchg at the operand widths the lowerer needs.
// These emit bytes only; the caller produces the listing text for the whole
// locked sequence.
package main

// lockCmpxchgRDIDX emits `lock cmpxchg [rdi], dl/dx/edx/rdx` by operand
// size. These are fixed byte sequences; there are only four forms.
func (o *Out) lockCmpxchgRDIDX(sz int) {
	switch sz {
	case 1:
		o.asm.b(0xF0, 0x0F, 0xB0, 0x17)
	case 2:
		o.asm.b(0x66, 0xF0, 0x0F, 0xB1, 0x17)
	case 4:
		o.asm.b(0xF0, 0x0F, 0xB1, 0x17)
	case 8:
		o.asm.b(0xF0, 0x48, 0x0F, 0xB1, 0x17)
	default:
		internalError("cmpxchg operand size %d", sz)
	}
}

// movMemR8Sized stores the low sz bytes of rax to [r8].
func (o *Out) movMemR8Sized(sz int) {
	switch sz {
	case 1:
		o.asm.b(0x41, 0x88, 0x00)
	case 2:
		o.asm.b(0x66, 0x41, 0x89, 0x00)
	case 4:
		o.asm.b(0x41, 0x89, 0x00)
	case 8:
		o.asm.b(0x49, 0x89, 0x00)
	default:
		internalError("store operand size %d", sz)
	}
}

// xchgRDISized exchanges rax with [rdi] at the given width.
func (o *Out) xchgRDISized(sz int) {
	switch sz {
	case 1:
		o.asm.b(0x86, 0x07)
	case 2:
		o.asm.b(0x66, 0x87, 0x07)
	case 4:
		o.asm.b(0x87, 0x07)
	case 8:
		o.asm.b(0x48, 0x87, 0x07)
	default:
		internalError("xchg operand size %d", sz)
	}
}
