// Package mmio gives access to memory-mapped peripheral registers.
//
// A Region is a window of 32-bit registers starting at a physical base
// address. It is backed either by a mapping of /dev/mem (or any file whose
// offsets are physical addresses, such as an emulator's shared memory image)
// or by plain memory, optionally with a Device that models the side effects
// real hardware would have on reads and writes.
package mmio

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

const (
	PAGE_SIZE = 4096
	MEM_FILE  = "/dev/mem"
)

// Device models hardware behaviour behind a Region. Read is called before
// the word at addr is loaded; Write returns the value actually latched when
// software writes v over old.
type Device interface {
	Read(r *Region, addr uint32)
	Write(r *Region, addr uint32, old, v uint32) uint32
}

type Region struct {
	base  uint32
	words []uint32
	mm    mmap.MMap
	dev   Device
}

// Alloc returns a Region of size bytes at base backed by ordinary memory.
// size is rounded up to a whole number of registers.
func Alloc(base uint32, size int) *Region {
	return &Region{
		base:  base,
		words: make([]uint32, (size+3)/4),
	}
}

// Map maps size bytes at physical address base from the file at path.
// Since mappings have to start at a page boundary, the mapping is rounded
// down to the nearest page and the region starts at the matching offset.
func Map(path string, base uint32, size int) (*Region, error) {
	if base%4 != 0 {
		return nil, fmt.Errorf("base %08X is not word aligned", base)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %v", path, err)
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close() // The mapping outlives the descriptor

	pagemask := ^uint32(PAGE_SIZE - 1)
	mapAddr := base & pagemask
	offs := int(base - mapAddr)
	log.Printf("MapRegion(%s, %d, RDWR, 0, %08X), base %08X\n", path, size+offs, mapAddr, base)
	mm, err := mmap.MapRegion(f, size+offs, mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, fmt.Errorf("couldn't map region (%08X, %v): %v", base, size, err)
	}
	words := unsafe.Slice((*uint32)(unsafe.Pointer(&mm[offs])), size/4)
	return &Region{base: base, words: words, mm: mm}, nil
}

// Attach routes all register accesses through d.
func (r *Region) Attach(d Device) {
	r.dev = d
}

func (r *Region) Base() uint32 {
	return r.base
}

// Size returns the size of the region in bytes.
func (r *Region) Size() int {
	return len(r.words) * 4
}

func (r *Region) Contains(addr uint32) bool {
	return addr >= r.base && uint64(addr) < uint64(r.base)+uint64(r.Size())
}

func (r *Region) word(addr uint32) *uint32 {
	if !r.Contains(addr) || addr%4 != 0 {
		panic(fmt.Sprintf("mmio: address %08X outside region %08X+%X", addr, r.base, r.Size()))
	}
	return &r.words[(addr-r.base)/4]
}

// Reg returns the register at addr.
func (r *Region) Reg(addr uint32) Reg32 {
	return Reg32{r: r, addr: addr, p: r.word(addr)}
}

// Peek reads the word at addr without involving the attached Device.
func (r *Region) Peek(addr uint32) uint32 {
	return atomic.LoadUint32(r.word(addr))
}

// Poke writes the word at addr without involving the attached Device.
func (r *Region) Poke(addr uint32, v uint32) {
	atomic.StoreUint32(r.word(addr), v)
}

// Lock pins a file-backed region in RAM so register accesses never fault.
func (r *Region) Lock() error {
	if r.mm == nil {
		return nil
	}
	if err := unix.Mlock(r.mm); err != nil {
		return fmt.Errorf("couldn't lock region %08X: %v", r.base, err)
	}
	return nil
}

func (r *Region) Close() error {
	if r.mm == nil {
		return nil
	}
	err := r.mm.Unmap()
	r.mm = nil
	r.words = nil
	return err
}

// Space is a set of non-overlapping regions addressed by physical address.
type Space struct {
	regions []*Region
}

func NewSpace(regions ...*Region) *Space {
	return &Space{regions: regions}
}

// Region returns the region containing addr, or nil.
func (s *Space) Region(addr uint32) *Region {
	for _, r := range s.regions {
		if r.Contains(addr) {
			return r
		}
	}
	return nil
}

func (s *Space) Reg(addr uint32) Reg32 {
	r := s.Region(addr)
	if r == nil {
		panic(fmt.Sprintf("mmio: no region maps address %08X", addr))
	}
	return r.Reg(addr)
}

// Lock locks every file-backed region in RAM.
func (s *Space) Lock() error {
	for _, r := range s.regions {
		if err := r.Lock(); err != nil {
			return err
		}
	}
	return nil
}

// Close unmaps every file-backed region, returning the first error.
func (s *Space) Close() error {
	var err error
	for _, r := range s.regions {
		if te := r.Close(); te != nil && err == nil {
			err = te
		}
	}
	return err
}
