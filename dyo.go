// dyo.go - the DYO object container: writer, reader and dumper
//
// A DYO file is the 16-byte signature followed by records. Each record is a
// little-endian 32-bit header word, (type<<24)|length, and length payload
// bytes. Strings are interned and referenced by their 1-based record index.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

// dyoSignature must be a multiple of 4 bytes long.
const dyoSignature = "# dyibicc obj v1"

// Record types.
const (
	TypeString                    = 1
	TypeImport                    = 2
	TypeFunctionExport            = 3
	TypeCodeReferenceToGlobal     = 4
	TypeInitializedData           = 5
	TypeInitializerEnd            = 6
	TypeInitializerBytes          = 7
	TypeInitializerDataRelocation = 8
	TypeInitializerCodeRelocation = 9
	TypeX64Code                   = 100
	TypeEntryPoint                = 101
)

const maxRecordLength = 0xffffff

// dyoRecordBufSize bounds a single record; anything larger is malformed.
const dyoRecordBufSize = 1 << 20

// DyoWriter appends records to an object stream. The stream must support
// seeking so initializer code relocations can be back-patched once final
// pc-label offsets are known.
type DyoWriter struct {
	w           io.WriteSeeker
	recordIndex int
	strings     map[string]int
}

// NewDyoWriter writes the signature and returns a writer ready for records.
func NewDyoWriter(w io.WriteSeeker) (*DyoWriter, error) {
	if _, err := io.WriteString(w, dyoSignature); err != nil {
		return nil, fmt.Errorf("writing signature: %w", err)
	}
	return &DyoWriter{w: w, strings: make(map[string]int)}, nil
}

func (d *DyoWriter) writeInt(x uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], x)
	_, err := d.w.Write(buf[:])
	return err
}

func (d *DyoWriter) writeRecordHeader(typ, length int) error {
	if length > maxRecordLength {
		return fmt.Errorf("record length %d exceeds 24 bits", length)
	}
	d.recordIndex++
	return d.writeInt(uint32(typ)<<24 | uint32(length))
}

// writeString interns str, emitting a string record only the first time, and
// returns its record index.
func (d *DyoWriter) writeString(str string) (int, error) {
	if idx, ok := d.strings[str]; ok {
		return idx, nil
	}

	padding := (4 - len(str)%4) % 4
	if err := d.writeRecordHeader(TypeString, len(str)+padding); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(d.w, str); err != nil {
		return 0, err
	}
	if padding > 0 {
		if _, err := d.w.Write(make([]byte, padding)); err != nil {
			return 0, err
		}
	}

	d.strings[str] = d.recordIndex
	return d.recordIndex, nil
}

func (d *DyoWriter) writeNameAndOffset(typ int, name string, offset uint32) error {
	strIndex, err := d.writeString(name)
	if err != nil {
		return err
	}
	if err := d.writeRecordHeader(typ, 8); err != nil {
		return err
	}
	if err := d.writeInt(offset); err != nil {
		return err
	}
	return d.writeInt(uint32(strIndex))
}

// WriteImport records an unresolved symbol patched at the given code offset.
func (d *DyoWriter) WriteImport(name string, codeOffset uint32) error {
	return d.writeNameAndOffset(TypeImport, name, codeOffset)
}

// WriteFunctionExport records a function entry visible to other units.
func (d *DyoWriter) WriteFunctionExport(name string, codeOffset uint32) error {
	return d.writeNameAndOffset(TypeFunctionExport, name, codeOffset)
}

// WriteCodeReferenceToGlobal records a global-object address patched at the
// given code offset.
func (d *DyoWriter) WriteCodeReferenceToGlobal(name string, codeOffset uint32) error {
	return d.writeNameAndOffset(TypeCodeReferenceToGlobal, name, codeOffset)
}

// WriteInitializedData opens a data definition. Types 6 to 9 follow until
// the matching InitializerEnd.
func (d *DyoWriter) WriteInitializedData(size, align uint32, isStatic bool, name string) error {
	strIndex := 0
	if name != "" {
		var err error
		strIndex, err = d.writeString(name)
		if err != nil {
			return err
		}
	}

	if err := d.writeRecordHeader(TypeInitializedData, 16); err != nil {
		return err
	}
	if err := d.writeInt(size); err != nil {
		return err
	}
	if err := d.writeInt(align); err != nil {
		return err
	}
	var st uint32
	if isStatic {
		st = 1
	}
	if err := d.writeInt(st); err != nil {
		return err
	}
	return d.writeInt(uint32(strIndex))
}

// WriteInitializerEnd closes the current data definition; uninitialized
// bytes are zero-filled by the linker.
func (d *DyoWriter) WriteInitializerEnd() error {
	return d.writeRecordHeader(TypeInitializerEnd, 0)
}

// WriteInitializerBytes appends a literal byte run to the current data
// definition.
func (d *DyoWriter) WriteInitializerBytes(data []byte) error {
	if err := d.writeRecordHeader(TypeInitializerBytes, len(data)); err != nil {
		return err
	}
	_, err := d.w.Write(data)
	return err
}

// WriteInitializerDataRelocation appends a pointer-to-data initializer.
func (d *DyoWriter) WriteInitializerDataRelocation(name string, addend int32) error {
	strIndex, err := d.writeString(name)
	if err != nil {
		return err
	}
	if err := d.writeRecordHeader(TypeInitializerDataRelocation, 8); err != nil {
		return err
	}
	if err := d.writeInt(uint32(strIndex)); err != nil {
		return err
	}
	return d.writeInt(uint32(addend))
}

// WriteInitializerCodeRelocation appends a pointer-to-code initializer with
// a placeholder code offset and returns the file position of that offset so
// the caller can back-patch it once the label resolves.
func (d *DyoWriter) WriteInitializerCodeRelocation(placeholder uint32, addend int32) (int64, error) {
	if err := d.writeRecordHeader(TypeInitializerCodeRelocation, 8); err != nil {
		return 0, err
	}
	patchLoc, err := d.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if err := d.writeInt(placeholder); err != nil {
		return 0, err
	}
	return patchLoc, d.writeInt(uint32(addend))
}

// PatchInitializerCodeRelocation overwrites a placeholder written earlier
// with the final code offset.
func (d *DyoWriter) PatchInitializerCodeRelocation(patchLoc int64, codeOffset uint32) error {
	old, err := d.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := d.w.Seek(patchLoc, io.SeekStart); err != nil {
		return err
	}
	if err := d.writeInt(codeOffset); err != nil {
		return err
	}
	_, err = d.w.Seek(old, io.SeekStart)
	return err
}

// WriteCode writes the machine-code blob. Exactly one per file, and it must
// be the last record.
func (d *DyoWriter) WriteCode(code []byte) error {
	if err := d.writeRecordHeader(TypeX64Code, len(code)); err != nil {
		return err
	}
	_, err := d.w.Write(code)
	return err
}

// WriteEntryPoint records the code offset execution starts at. It must
// precede the code record.
func (d *DyoWriter) WriteEntryPoint(codeOffset uint32) error {
	if err := d.writeRecordHeader(TypeEntryPoint, 4); err != nil {
		return err
	}
	return d.writeInt(codeOffset)
}

// ensureDyoHeader consumes and checks the signature.
func ensureDyoHeader(r io.Reader) error {
	buf := make([]byte, len(dyoSignature))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("reading signature: %w", err)
	}
	if string(buf) != dyoSignature {
		return fmt.Errorf("signature doesn't match")
	}
	return nil
}

// readDyoRecord reads one record into buf and returns its type and payload.
func readDyoRecord(r io.Reader, buf []byte) (typ int, payload []byte, err error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, fmt.Errorf("reading record header: %w", err)
	}
	header := binary.LittleEndian.Uint32(hdr[:])
	typ = int(header >> 24)
	size := int(header & maxRecordLength)
	if size > len(buf) {
		return 0, nil, fmt.Errorf("record larger than buffer (%d > %d)", size, len(buf))
	}
	if _, err := io.ReadFull(r, buf[:size]); err != nil {
		return 0, nil, fmt.Errorf("reading record payload: %w", err)
	}
	return typ, buf[:size], nil
}

func u32At(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

// DumpDyo prints a readable rendering of one object stream. The code blob is
// hex-dumped; it terminates the file.
func DumpDyo(r io.Reader, w io.Writer) error {
	buf := make([]byte, dyoRecordBufSize)

	if err := ensureDyoHeader(r); err != nil {
		return err
	}

	recordIndex := 0
	for {
		typ, payload, err := readDyoRecord(r, buf)
		if err != nil {
			return err
		}
		recordIndex++

		switch typ {
		case TypeString:
			fmt.Fprintf(w, "%4d string (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "        %q\n", string(payload))
		case TypeImport:
			fmt.Fprintf(w, "%4d import (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "       fixup at %d\n", u32At(payload, 0))
			fmt.Fprintf(w, "       point at str record %d\n", u32At(payload, 4))
		case TypeFunctionExport:
			fmt.Fprintf(w, "%4d function export (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "       function at %d\n", u32At(payload, 0))
			fmt.Fprintf(w, "       named by str record %d\n", u32At(payload, 4))
		case TypeCodeReferenceToGlobal:
			fmt.Fprintf(w, "%4d code reference to global (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "       fixup at %d\n", u32At(payload, 0))
			fmt.Fprintf(w, "       point at str record %d\n", u32At(payload, 4))
		case TypeInitializedData:
			fmt.Fprintf(w, "%4d initialized data (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "       size %d\n", u32At(payload, 0))
			fmt.Fprintf(w, "       align %d\n", u32At(payload, 4))
			fmt.Fprintf(w, "       is_static %d\n", u32At(payload, 8))
			fmt.Fprintf(w, "       name at str record %d\n", u32At(payload, 12))
		case TypeInitializerEnd:
			fmt.Fprintf(w, "    ->%d initializers end (%d bytes)\n", recordIndex, len(payload))
		case TypeInitializerBytes:
			fmt.Fprintf(w, "    ->%d initializer bytes (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "        ")
			for _, b := range payload {
				fmt.Fprintf(w, " 0x%x", b)
			}
			fmt.Fprintln(w)
		case TypeInitializerDataRelocation:
			fmt.Fprintf(w, "    ->%d initializer data relocation (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "        name at str record %d\n", u32At(payload, 0))
			fmt.Fprintf(w, "        addend %d\n", int32(u32At(payload, 4)))
		case TypeInitializerCodeRelocation:
			fmt.Fprintf(w, "    ->%d initializer code relocation (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "        code offset %d\n", u32At(payload, 0))
			fmt.Fprintf(w, "        addend %d\n", int32(u32At(payload, 4)))
		case TypeX64Code:
			fmt.Fprintf(w, "%4d code (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "--------------------\n")
			for i := 0; i < len(payload); i += 16 {
				end := min(i+16, len(payload))
				fmt.Fprintf(w, "%08x ", i)
				for _, b := range payload[i:end] {
					fmt.Fprintf(w, " %02x", b)
				}
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "--------------------\n")
			return nil
		case TypeEntryPoint:
			fmt.Fprintf(w, "%4d entry point (%d bytes)\n", recordIndex, len(payload))
			fmt.Fprintf(w, "       located at offset %d\n", u32At(payload, 0))
		default:
			fmt.Fprintf(w, "unhandled record type %x (%d bytes)\n", typ, len(payload))
		}
	}
}
