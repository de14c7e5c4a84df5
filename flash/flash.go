// Package flash owns the flash interface's access control register, whose
// wait-state setting has to follow the system clock.
package flash

import (
	"fmt"

	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/own"
)

// Parts is the constrained FLASH peripheral.
type Parts struct {
	ACR *ACR
}

// Constrain consumes the FLASH block. It fails if the block has already
// been constrained.
func Constrain(f *device.FLASH) (Parts, error) {
	if err := f.Consume(); err != nil {
		return Parts{}, err
	}
	return Parts{ACR: &ACR{g: own.NewExcl("FLASH_ACR"), f: f}}, nil
}

// ACR is the ownership handle for FLASH_ACR.
type ACR struct {
	_ own.NoCopy
	g *own.Excl
	f *device.FLASH
}

// Latency returns the number of flash wait states currently configured.
func (a *ACR) Latency() uint32 {
	var l uint32
	a.g.Loan(func() {
		l = a.f.ACR.Field(device.FLASH_ACR_LATENCY_MASK, device.FLASH_ACR_LATENCY_POS)
	})
	return l
}

// SetLatency programs ws wait states, leaving the prefetch and half-cycle
// bits as they are.
func (a *ACR) SetLatency(ws uint32) error {
	if ws > 2 {
		return fmt.Errorf("flash latency %d out of range 0..2", ws)
	}
	a.g.Loan(func() {
		a.f.ACR.ReplaceBits(ws, device.FLASH_ACR_LATENCY_MASK, device.FLASH_ACR_LATENCY_POS)
	})
	return nil
}

// Addr is the address of FLASH_ACR.
func (a *ACR) Addr() uint32 {
	return a.f.ACR.Addr()
}
