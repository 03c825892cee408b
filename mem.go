// mem.go - block memory idioms
package main

// RepStosb fills rcx bytes at [rdi] with al.
func (o *Out) RepStosb() {
	o.println("  rep stosb")
	o.asm.b(0xF3, 0xAA)
}

func (o *Out) MovALImm(v byte) {
	o.println("  mov al, %d", v)
	o.asm.b(0xB0, v)
}

func (o *Out) MovRCXImm(v int32) {
	o.println("  mov rcx, %d", v)
	o.asm.b(0x48, 0xC7, 0xC1)
	o.asm.u32(uint32(v))
}
