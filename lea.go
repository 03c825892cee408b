// lea.go - address computation
package main

// LeaRAXMemRBP computes a frame-relative address into rax.
func (o *Out) LeaRAXMemRBP(off int) {
	o.println("  lea rax, [rbp+%d]", off)
	o.asm.b(0x48, 0x8D)
	o.asm.memOperand(0, 5, off)
}

// LeaRDIMemRBP computes a frame-relative address into rdi.
func (o *Out) LeaRDIMemRBP(off int) {
	o.println("  lea rdi, [rbp+%d]", off)
	o.asm.b(0x48, 0x8D)
	o.asm.memOperand(7, 5, off)
}

// LeaRAXLabel loads the address of a pc-label rip-relative. The displacement
// is resolved at link time.
func (o *Out) LeaRAXLabel(name string, l PCLabel) {
	o.println("  lea rax, [rel %s]", name)
	o.asm.b(0x48, 0x8D, 0x05)
	o.asm.rel32To(l)
}
