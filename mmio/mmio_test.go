package mmio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegBits(t *testing.T) {
	r := Alloc(0x40021000, 0x400)
	g := r.Reg(0x40021004)
	g.Set(0x0000000f)
	g.SetBits(0x100)
	g.ClearBits(0x3)
	if got, want := g.Get(), uint32(0x10c); got != want {
		t.Errorf("after set/clear got: %08X, want: %08X", got, want)
	}
	g.ReplaceBits(0b1010, 0xf, 4)
	if got, want := g.Get(), uint32(0x1ac); got != want {
		t.Errorf("after ReplaceBits got: %08X, want: %08X", got, want)
	}
	if got := g.Field(0xf, 4); got != 0b1010 {
		t.Errorf("Field got: %X, want: A", got)
	}
	if !g.HasBits(0x108) || g.HasBits(0x109) {
		t.Errorf("HasBits wrong for %08X", g.Get())
	}
	// Neighbouring registers are untouched.
	if v := r.Peek(0x40021000); v != 0 {
		t.Errorf("neighbour register got: %08X, want: 0", v)
	}
}

func TestRegOutOfRangePanics(t *testing.T) {
	r := Alloc(0x48000000, 0x10)
	for _, addr := range []uint32{0x48000010, 0x47fffffc, 0x48000002} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Reg(%08X) didn't panic", addr)
				}
			}()
			r.Reg(addr)
		}()
	}
}

type latchDevice struct {
	reads  int
	writes []uint32
}

func (d *latchDevice) Read(r *Region, addr uint32) {
	d.reads++
	// Bit 1 reads back as a copy of bit 0.
	v := r.Peek(addr)
	if v&1 != 0 {
		r.Poke(addr, v|2)
	}
}

func (d *latchDevice) Write(r *Region, addr uint32, old, v uint32) uint32 {
	d.writes = append(d.writes, v)
	return (v &^ 2) | (old & 2) // bit 1 is read-only
}

func TestDeviceHooks(t *testing.T) {
	r := Alloc(0, 8)
	d := &latchDevice{}
	r.Attach(d)
	g := r.Reg(4)
	g.Set(3)
	if v := r.Peek(4); v != 1 {
		t.Errorf("read-only bit latched, got: %08X, want: 1", v)
	}
	if !g.HasBits(2) {
		t.Errorf("device didn't set bit 1 on read, got %08X", r.Peek(4))
	}
	if len(d.writes) != 1 || d.reads != 1 {
		t.Errorf("hooks called %d writes / %d reads, want 1/1", len(d.writes), d.reads)
	}
}

func TestMapImageFile(t *testing.T) {
	const base = 0x40022000
	path := filepath.Join(t.TempDir(), "periph.img")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("couldn't create image: %v", err)
	}
	if err := f.Truncate(base + PAGE_SIZE); err != nil {
		t.Fatalf("couldn't size image: %v", err)
	}
	f.Close()

	r, err := Map(path, base+0x10, 0x20)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if r.Base() != base+0x10 || r.Size() != 0x20 {
		t.Errorf("region got base %08X size %X", r.Base(), r.Size())
	}
	r.Reg(base + 0x14).Set(0xdeadbeef)
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err = Map(path, base, 0x40)
	if err != nil {
		t.Fatalf("re-Map failed: %v", err)
	}
	defer r.Close()
	if got := r.Reg(base + 0x14).Get(); got != 0xdeadbeef {
		t.Errorf("mapped write not persisted, got: %08X", got)
	}
}

func TestSpace(t *testing.T) {
	s := NewSpace(Alloc(0x40021000, 0x1400), Alloc(0x48000000, 0x1800))
	s.Reg(0x48000400).Set(7)
	if got := s.Region(0x48000400).Peek(0x48000400); got != 7 {
		t.Errorf("space write got: %d, want 7", got)
	}
	if err := s.Lock(); err != nil {
		t.Errorf("locking heap space: %v", err)
	}
	if s.Region(0x50000000) != nil {
		t.Errorf("unmapped address has a region")
	}
	if err := s.Close(); err != nil {
		t.Errorf("closing heap space: %v", err)
	}
}
