// memory.go - page management for linked images and the host symbol registry
package main

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// codeRegion is a writable anonymous mapping that is flipped executable once
// every patch has been applied. Patching after the flip is undefined.
type codeRegion struct {
	mem []byte
}

// allocateWritable maps size bytes readable and writable but not executable.
func allocateWritable(size int) (*codeRegion, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %v", err)
	}
	return &codeRegion{mem: mem}, nil
}

func (r *codeRegion) base() uintptr {
	return uintptr(unsafe.Pointer(&r.mem[0]))
}

func (r *codeRegion) size() int {
	return len(r.mem)
}

// makeExecutable drops the write permission and adds execute.
func (r *codeRegion) makeExecutable() error {
	if err := unix.Mprotect(r.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("mprotect failed: %v", err)
	}
	return nil
}

func (r *codeRegion) free() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	return err
}

// dataArena hands out aligned blocks for global data. Blocks live in
// anonymous mappings owned by the arena so their addresses are stable for
// the lifetime of the image. Data stays writable; that is C semantics.
type dataArena struct {
	chunks [][]byte
	cur    []byte
	off    int
}

const arenaChunkSize = 1 << 20

// alloc returns the address of a zeroed block of the given size and
// alignment.
func (a *dataArena) alloc(size, align int) (uintptr, error) {
	if align <= 0 {
		align = 1
	}
	if a.cur == nil || alignTo(a.off, align)+size > len(a.cur) {
		chunkSize := arenaChunkSize
		if size+align > chunkSize {
			chunkSize = alignTo(size+align, pageSize())
		}
		mem, err := unix.Mmap(-1, 0, chunkSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			return 0, fmt.Errorf("mmap failed: %v", err)
		}
		a.chunks = append(a.chunks, mem)
		a.cur = mem
		a.off = 0
	}

	a.off = alignTo(a.off, align)
	addr := uintptr(unsafe.Pointer(&a.cur[a.off]))
	a.off += size
	return addr, nil
}

func (a *dataArena) free() {
	for _, c := range a.chunks {
		unix.Munmap(c)
	}
	a.chunks = nil
	a.cur = nil
}

func pageSize() int {
	return unix.Getpagesize()
}

// poke64 writes an 8-byte value at an absolute address inside a region the
// linker owns.
func poke64(addr uintptr, val uint64) {
	*(*uint64)(unsafe.Pointer(addr)) = val
}

// pokeByte writes one byte at an absolute address.
func pokeByte(addr uintptr, b byte) {
	*(*byte)(unsafe.Pointer(addr)) = b
}

// peek64 reads the 8-byte value at an absolute address.
func peek64(addr uintptr) uint64 {
	return *(*uint64)(unsafe.Pointer(addr))
}

// Host symbol lookup. The default resolver consults a process-local registry
// populated with RegisterHostSymbol; embedders can swap in their own (a
// dlsym-backed one, for instance) before linking.
var (
	hostSymbolsMu sync.RWMutex
	hostSymbols   = map[string]uintptr{}

	// HostSymbolLookup resolves an import that no loaded unit exports.
	HostSymbolLookup = func(name string) (uintptr, bool) {
		hostSymbolsMu.RLock()
		defer hostSymbolsMu.RUnlock()
		addr, ok := hostSymbols[name]
		return addr, ok
	}
)

// RegisterHostSymbol makes addr visible to the linker under name.
func RegisterHostSymbol(name string, addr uintptr) {
	hostSymbolsMu.Lock()
	defer hostSymbolsMu.Unlock()
	hostSymbols[name] = addr
}
