// Package rcc configures the STM32F30x reset and clock control block.
//
// Constrain splits the RCC into bus handles, used by peripheral drivers to
// enable and reset their peripheral, and a Cfgr request. The request is
// solved into divider settings and applied once by Freeze, which returns
// the frozen Clocks.
package rcc

import (
	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/mmio"
	"github.com/Jon-Bright/rccctl/own"
)

// Rcc is the constrained RCC peripheral.
type Rcc struct {
	AHB  *AHB
	APB1 *APB1
	APB2 *APB2
	CFGR *Cfgr
}

// Constrain consumes the RCC block. It fails if the block has already
// been constrained.
func Constrain(r *device.RCC) (Rcc, error) {
	if err := r.Consume(); err != nil {
		return Rcc{}, err
	}
	c := NewRequest()
	c.rcc = r
	return Rcc{
		AHB:  &AHB{bus{g: own.NewExcl("RCC_AHB"), enr: r.AHBENR, rstr: r.AHBRSTR}},
		APB1: &APB1{bus{g: own.NewExcl("RCC_APB1"), enr: r.APB1ENR, rstr: r.APB1RSTR}},
		APB2: &APB2{bus{g: own.NewExcl("RCC_APB2"), enr: r.APB2ENR, rstr: r.APB2RSTR}},
		CFGR: c,
	}, nil
}

// bus owns one peripheral clock enable register and its reset register.
type bus struct {
	_    own.NoCopy
	g    *own.Excl
	enr  mmio.Reg32
	rstr mmio.Reg32
}

// Enable turns on the clock of the peripherals selected by bits.
func (b *bus) Enable(bits uint32) {
	b.g.Loan(func() { b.enr.SetBits(bits) })
}

func (b *bus) Disable(bits uint32) {
	b.g.Loan(func() { b.enr.ClearBits(bits) })
}

// Enabled reports whether all the peripherals in bits are clocked.
func (b *bus) Enabled(bits uint32) bool {
	var on bool
	b.g.Loan(func() { on = b.enr.HasBits(bits) })
	return on
}

// Reset pulses the reset line of the peripherals selected by bits.
func (b *bus) Reset(bits uint32) {
	b.g.Loan(func() {
		b.rstr.SetBits(bits)
		b.rstr.ClearBits(bits)
	})
}

// AHB is the ownership handle for RCC_AHBENR and RCC_AHBRSTR.
type AHB struct{ bus }

// APB1 is the ownership handle for RCC_APB1ENR and RCC_APB1RSTR.
type APB1 struct{ bus }

// APB2 is the ownership handle for RCC_APB2ENR and RCC_APB2RSTR.
type APB2 struct{ bus }
