// link.go - the in-memory DYO linker
//
// Linking is three passes over the input streams, rewinding between them:
// allocate code and data, collect function exports, then resolve imports and
// run initializers. Code pages are flipped executable only after the last
// patch.
package main

import (
	"fmt"
	"io"
	"os"
)

// Image is a linked, executable in-memory program. The image owns every
// region it references; callers may invoke Entry but must not free anything
// while the code can still run.
type Image struct {
	// Entry is the absolute address execution starts at, or 0 if no unit
	// declared an entry point.
	Entry uintptr

	// Exports maps exported function names to absolute code addresses.
	Exports map[string]uintptr

	// ExportedData maps non-static global names to their storage.
	ExportedData map[string]uintptr

	code []*codeRegion
	data *dataArena
}

// Close unmaps everything the image owns. Only safe once no code from the
// image can run anymore.
func (img *Image) Close() error {
	var first error
	for _, r := range img.code {
		if err := r.free(); err != nil && first == nil {
			first = err
		}
	}
	img.code = nil
	if img.data != nil {
		img.data.free()
		img.data = nil
	}
	return first
}

type linkUnit struct {
	code       *codeRegion
	codeLen    int
	staticData map[string]uintptr
}

// readStrings maintains the 1-based record index to string table while
// scanning a unit; non-string records occupy an index too.
type recordScanner struct {
	r       io.ReadSeeker
	buf     []byte
	strings []string
}

func newRecordScanner(r io.ReadSeeker, buf []byte) (*recordScanner, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := ensureDyoHeader(r); err != nil {
		return nil, err
	}
	return &recordScanner{r: r, buf: buf, strings: []string{""}}, nil
}

func (s *recordScanner) next() (int, []byte, error) {
	typ, payload, err := readDyoRecord(s.r, s.buf)
	if err != nil {
		return 0, nil, err
	}
	if typ == TypeString {
		s.strings = append(s.strings, string(payload))
	} else {
		s.strings = append(s.strings, "")
	}
	return typ, payload, nil
}

func (s *recordScanner) str(index uint32) string {
	if int(index) >= len(s.strings) {
		return ""
	}
	return s.strings[index]
}

// LinkDyos loads every object stream, resolves cross-unit and host imports,
// runs data initializers, maps the code executable and returns the image.
// Any failure poisons the whole batch.
func LinkDyos(files []io.ReadSeeker) (img *Image, err error) {
	buf := make([]byte, dyoRecordBufSize)

	img = &Image{
		Exports:      map[string]uintptr{},
		ExportedData: map[string]uintptr{},
		data:         &dataArena{},
	}
	defer func() {
		if err != nil {
			img.Close()
		}
	}()

	units := make([]*linkUnit, len(files))
	page := pageSize()

	// Pass 1: map each unit's code block and allocate its global data.
	for i, f := range files {
		unit := &linkUnit{staticData: map[string]uintptr{}}
		units[i] = unit

		scan, serr := newRecordScanner(f, buf)
		if serr != nil {
			return nil, serr
		}

		entryPointOffset := int64(-1)

		for {
			typ, payload, rerr := scan.next()
			if rerr != nil {
				return nil, rerr
			}

			switch typ {
			case TypeEntryPoint:
				entryPointOffset = int64(u32At(payload, 0))
			case TypeX64Code:
				mapLen := alignTo(len(payload), page)
				if mapLen == 0 {
					// A data-only unit still gets a page so the unit has
					// a valid base address.
					mapLen = page
				}
				region, aerr := allocateWritable(mapLen)
				if aerr != nil {
					return nil, aerr
				}
				copy(region.mem, payload)
				unit.code = region
				unit.codeLen = len(payload)
				img.code = append(img.code, region)
				if entryPointOffset >= 0 {
					img.Entry = region.base() + uintptr(entryPointOffset)
				}
			case TypeInitializedData:
				size := int(u32At(payload, 0))
				align := int(u32At(payload, 4))
				isStatic := u32At(payload, 8) != 0
				name := scan.str(u32At(payload, 12))

				addr, aerr := img.data.alloc(size, align)
				if aerr != nil {
					return nil, aerr
				}
				if isStatic {
					unit.staticData[name] = addr
				} else {
					img.ExportedData[name] = addr
				}
			}

			if typ == TypeX64Code {
				break
			}
		}
	}

	// Pass 2: collect every function export as name to absolute address.
	for i, f := range files {
		scan, serr := newRecordScanner(f, buf)
		if serr != nil {
			return nil, serr
		}

		for {
			typ, payload, rerr := scan.next()
			if rerr != nil {
				return nil, rerr
			}

			if typ == TypeFunctionExport {
				offset := uintptr(u32At(payload, 0))
				name := scan.str(u32At(payload, 4))
				img.Exports[name] = units[i].code.base() + offset
			}

			if typ == TypeX64Code {
				break
			}
		}
	}

	// Pass 3: patch imports and global references, run initializers.
	for i, f := range files {
		unit := units[i]

		scan, serr := newRecordScanner(f, buf)
		if serr != nil {
			return nil, serr
		}

		resolveData := func(name string) (uintptr, error) {
			if addr, ok := unit.staticData[name]; ok {
				return addr, nil
			}
			if addr, ok := img.ExportedData[name]; ok {
				return addr, nil
			}
			return 0, fmt.Errorf("undefined symbol: %s", name)
		}

		var cursorBase, cursorPtr, cursorEnd uintptr

		for {
			typ, payload, rerr := scan.next()
			if rerr != nil {
				return nil, rerr
			}

			switch typ {
			case TypeImport:
				fixupOffset := uintptr(u32At(payload, 0))
				name := scan.str(u32At(payload, 4))
				target, ok := img.Exports[name]
				if !ok {
					target, ok = HostSymbolLookup(name)
					if !ok {
						return nil, fmt.Errorf("undefined symbol: %s", name)
					}
				}
				poke64(unit.code.base()+fixupOffset, uint64(target))
				if VerboseMode {
					fmt.Fprintf(os.Stderr, "fixed up import at +%d to %#x (%s)\n", fixupOffset, target, name)
				}
			case TypeCodeReferenceToGlobal:
				fixupOffset := uintptr(u32At(payload, 0))
				name := scan.str(u32At(payload, 4))
				target, derr := resolveData(name)
				if derr != nil {
					return nil, derr
				}
				poke64(unit.code.base()+fixupOffset, uint64(target))
			case TypeInitializedData:
				size := uintptr(u32At(payload, 0))
				name := scan.str(u32At(payload, 12))
				base, derr := resolveData(name)
				if derr != nil {
					return nil, fmt.Errorf("init data not allocated: %s", name)
				}
				cursorBase = base
				cursorPtr = base
				cursorEnd = base + size
			case TypeInitializerBytes:
				if cursorBase == 0 {
					return nil, fmt.Errorf("initializer bytes outside a data definition")
				}
				if cursorPtr+uintptr(len(payload)) > cursorEnd {
					return nil, fmt.Errorf("initializer overrun bytes")
				}
				for j, b := range payload {
					pokeByte(cursorPtr+uintptr(j), b)
				}
				cursorPtr += uintptr(len(payload))
			case TypeInitializerDataRelocation:
				if cursorBase == 0 {
					return nil, fmt.Errorf("initializer relocation outside a data definition")
				}
				if cursorPtr+8 > cursorEnd {
					return nil, fmt.Errorf("initializer overrun reloc")
				}
				name := scan.str(u32At(payload, 0))
				addend := int32(u32At(payload, 4))
				target, derr := resolveData(name)
				if derr != nil {
					return nil, derr
				}
				poke64(cursorPtr, uint64(target)+uint64(int64(addend)))
				cursorPtr += 8
			case TypeInitializerCodeRelocation:
				if cursorBase == 0 {
					return nil, fmt.Errorf("initializer relocation outside a data definition")
				}
				if cursorPtr+8 > cursorEnd {
					return nil, fmt.Errorf("initializer overrun reloc")
				}
				offset := uintptr(u32At(payload, 0))
				addend := int32(u32At(payload, 4))
				target := unit.code.base() + offset + uintptr(int64(addend))
				poke64(cursorPtr, uint64(target))
				cursorPtr += 8
			case TypeInitializerEnd:
				cursorBase, cursorPtr, cursorEnd = 0, 0, 0
			}

			if typ == TypeX64Code {
				break
			}
		}
	}

	// All patches applied; flip the code pages executable.
	for _, region := range img.code {
		if merr := region.makeExecutable(); merr != nil {
			return nil, merr
		}
	}

	return img, nil
}
