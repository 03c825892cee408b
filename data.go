// data.go - global data emission
package main

// emitData writes every non-function object to the object stream: a storage
// record, then an alternating series of byte runs and relocations walking
// the initializer, closed by an end record. Uninitialized globals get a
// storage record and an immediate end record; the linker zero-fills.
func (cg *CodeGen) emitData(prog []*Obj) {
	for _, v := range prog {
		if v.IsFunction {
			continue
		}

		if !v.IsDefinition {
			cg.out.println("  extern %s:data", v.Name)
			continue
		}

		if v.IsStatic {
			cg.out.println("  static %s:data", v.Name)
		} else if !v.IsTentative {
			cg.out.println("  global %s:data", v.Name)
		}

		align := v.align()
		if v.Ty.Kind == TyArray && v.Ty.Size >= 16 && align < 16 {
			align = 16
		}

		cg.must(cg.dyo.WriteInitializedData(uint32(v.Ty.Size), uint32(align), v.IsStatic, v.Name))

		if v.InitData != nil {
			if v.IsTLS {
				cg.out.println("  section .tdata")
			} else {
				cg.out.println("  section .data align=%d", align)
			}
			cg.out.println("%s:", v.Name)

			rels := v.Rel
			pos := 0
			var bytes []byte
			for pos < v.Ty.Size {
				if len(rels) > 0 && rels[0].Offset == pos {
					if len(bytes) > 0 {
						cg.must(cg.dyo.WriteInitializerBytes(bytes))
						bytes = nil
					}

					rel := rels[0]
					if rel.DataLabel != "" && rel.CodeLbl != nil {
						errorTok(v.Tok, "relocation in %s names both data and code", v.Name)
					}
					if rel.DataLabel != "" {
						cg.must(cg.dyo.WriteInitializerDataRelocation(rel.DataLabel, int32(rel.Addend)))
					} else if rel.CodeLbl != nil {
						loc, err := cg.dyo.WriteInitializerCodeRelocation(0xffffffff, int32(rel.Addend))
						cg.must(err)
						cg.pendingCodeRelocs = append(cg.pendingCodeRelocs, pendingCodeReloc{loc, cg.pcOf(rel.CodeLbl)})
					} else {
						errorTok(v.Tok, "relocation in %s names neither data nor code", v.Name)
					}

					rels = rels[1:]
					pos += 8
				} else {
					cg.out.println("  db %d", v.InitData[pos])
					bytes = append(bytes, v.InitData[pos])
					pos++
				}
			}

			if len(bytes) > 0 {
				cg.must(cg.dyo.WriteInitializerBytes(bytes))
			}

			cg.must(cg.dyo.WriteInitializerEnd())
			continue
		}

		if v.IsTLS {
			cg.out.println("  section .tbss")
		} else {
			cg.out.println("  section .bss align=%d", align)
		}
		cg.out.println("%s:", v.Name)
		cg.out.println("  resb %d", v.Ty.Size)

		cg.must(cg.dyo.WriteInitializerEnd())
	}
}
