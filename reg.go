// reg.go - x86-64 register tables
package main

// Register holds the hardware encoding for a named register. needsREX marks
// the byte registers (dil, sil) that are only reachable with a REX prefix.
type Register struct {
	Name     string
	Encoding uint8
	needsREX bool
}

// 64-bit general purpose registers
var gpRegs64 = map[string]Register{
	"rax": {Name: "rax", Encoding: 0},
	"rcx": {Name: "rcx", Encoding: 1},
	"rdx": {Name: "rdx", Encoding: 2},
	"rbx": {Name: "rbx", Encoding: 3},
	"rsp": {Name: "rsp", Encoding: 4},
	"rbp": {Name: "rbp", Encoding: 5},
	"rsi": {Name: "rsi", Encoding: 6},
	"rdi": {Name: "rdi", Encoding: 7},
	"r8":  {Name: "r8", Encoding: 8},
	"r9":  {Name: "r9", Encoding: 9},
	"r10": {Name: "r10", Encoding: 10},
	"r11": {Name: "r11", Encoding: 11},
}

// 8-bit registers
var gpRegs8 = map[string]Register{
	"al":   {Name: "al", Encoding: 0},
	"cl":   {Name: "cl", Encoding: 1},
	"dl":   {Name: "dl", Encoding: 2},
	"bl":   {Name: "bl", Encoding: 3},
	"sil":  {Name: "sil", Encoding: 6, needsREX: true},
	"dil":  {Name: "dil", Encoding: 7, needsREX: true},
	"r8b":  {Name: "r8b", Encoding: 8},
	"r9b":  {Name: "r9b", Encoding: 9},
	"r10b": {Name: "r10b", Encoding: 10},
}

// System V AMD64 integer argument registers, by operand width.
var (
	argReg8  = []string{"dil", "sil", "dl", "cl", "r8b", "r9b"}
	argReg16 = []string{"di", "si", "dx", "cx", "r8w", "r9w"}
	argReg32 = []string{"edi", "esi", "edx", "ecx", "r8d", "r9d"}
	argReg64 = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
)

// argRegEnc is the hardware encoding of the i'th integer argument register,
// shared by all operand widths.
var argRegEnc = []uint8{7, 6, 2, 1, 8, 9}

func reg64(name string) Register {
	r, ok := gpRegs64[name]
	if !ok {
		internalError("unknown 64-bit register %q", name)
	}
	return r
}

func reg8(name string) Register {
	r, ok := gpRegs8[name]
	if !ok {
		internalError("unknown 8-bit register %q", name)
	}
	return r
}
