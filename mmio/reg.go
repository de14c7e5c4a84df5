package mmio

import "sync/atomic"

// Reg32 is a single 32-bit register. Loads and stores are atomic so busy
// loops observe every change made by hardware.
type Reg32 struct {
	r    *Region
	addr uint32
	p    *uint32
}

func (g Reg32) Addr() uint32 {
	return g.addr
}

func (g Reg32) Get() uint32 {
	if g.r.dev != nil {
		g.r.dev.Read(g.r, g.addr)
	}
	return atomic.LoadUint32(g.p)
}

func (g Reg32) Set(v uint32) {
	if g.r.dev != nil {
		v = g.r.dev.Write(g.r, g.addr, atomic.LoadUint32(g.p), v)
	}
	atomic.StoreUint32(g.p, v)
}

// Modify performs a read-modify-write of the register.
func (g Reg32) Modify(f func(uint32) uint32) {
	g.Set(f(g.Get()))
}

func (g Reg32) SetBits(bits uint32) {
	g.Modify(func(v uint32) uint32 { return v | bits })
}

func (g Reg32) ClearBits(bits uint32) {
	g.Modify(func(v uint32) uint32 { return v &^ bits })
}

// HasBits reports whether all of bits are set.
func (g Reg32) HasBits(bits uint32) bool {
	return g.Get()&bits == bits
}

// ReplaceBits replaces the field selected by mask at pos with value.
func (g Reg32) ReplaceBits(value, mask uint32, pos uint) {
	g.Modify(func(v uint32) uint32 {
		return (v &^ (mask << pos)) | ((value & mask) << pos)
	})
}

// Field returns the field selected by mask at pos.
func (g Reg32) Field(mask uint32, pos uint) uint32 {
	return (g.Get() >> pos) & mask
}
