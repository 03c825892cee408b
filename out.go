// out.go - dual-output instruction writer: encoded bytes plus assembly text
package main

import (
	"fmt"
	"io"
)

// Out writes each instruction twice: encoded bytes into the assembler buffer
// and a NASM-compatible line into the listing. The listing is informative
// only; the bytes are authoritative. A nil listing disables the text path.
type Out struct {
	asm     *Assembler
	listing io.Writer
}

func NewOut(listing io.Writer) *Out {
	return &Out{asm: NewAssembler(), listing: listing}
}

func (o *Out) println(format string, args ...interface{}) {
	if o.listing != nil {
		fmt.Fprintf(o.listing, format+"\n", args...)
	}
}

// PlaceLabel prints a named label and places its pc-label at the current
// position.
func (o *Out) PlaceLabel(name string, l PCLabel) {
	o.println("%s:", name)
	o.asm.Place(l)
}
