// Package gpio splits a GPIO port into per-register ownership handles and
// per-pin handles whose type records the pin's mode.
//
// A pin changes mode by calling one of its Into methods (or IntoAlternate),
// which takes the register handles the change needs and returns a new
// handle. The old handle is dead from then on: using it panics.
package gpio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/mmio"
	"github.com/Jon-Bright/rccctl/own"
	"github.com/Jon-Bright/rccctl/rcc"
)

const NUM_PINS = 16

var ErrNotOutput = errors.New("pin isn't an output")

// available are the pins handed out by Split. PA13-15 and PB3-4 carry
// JTAG/SWD after reset and are kept back; GPIOF only bonds out some pins.
var available = [device.NumPorts]uint16{
	device.PortA: 0xffff &^ (0b111 << 13),
	device.PortB: 0xffff &^ (0b11 << 3),
	device.PortC: 0xffff,
	device.PortD: 0xffff,
	device.PortE: 0xffff,
	device.PortF: 1<<0 | 1<<1 | 1<<2 | 1<<4 | 1<<6 | 1<<9 | 1<<10,
}

// Available reports whether Split hands out pin i of port.
func Available(port device.Port, i uint) bool {
	return port < device.NumPorts && i < NUM_PINS && available[port]&(1<<i) != 0
}

// portState is shared by all handles of one port. gens holds the current
// generation of each pin: a pin handle is live while its generation
// matches.
type portState struct {
	port device.Port
	regs *device.GPIO
	gens [NUM_PINS]atomic.Uint32
}

// reg is one register group of a port.
type reg struct {
	g    *own.Excl
	r    mmio.Reg32
	port *portState
}

func newReg(ps *portState, name string, r mmio.Reg32) reg {
	return reg{g: own.NewExcl(fmt.Sprintf("%s_%s", ps.port, name)), r: r, port: ps}
}

func (r *reg) check(ps *portState) {
	if r.port != ps {
		panic(fmt.Sprintf("gpio: %s handle used for a %s pin", r.g.Name(), ps.port))
	}
}

// replace sets the width-bit field of pin i, at bit width*i, to v.
func (r *reg) replace(i uint, width uint, v uint32) {
	mask := uint32(1)<<width - 1
	r.g.Loan(func() { r.r.ReplaceBits(v, mask, width*i) })
}

// MODER owns the port mode register.
type MODER struct{ reg }

// OTYPER owns the port output type register.
type OTYPER struct{ reg }

// PUPDR owns the port pull-up/pull-down register.
type PUPDR struct{ reg }

// AFRL owns the alternate function register of pins 0-7.
type AFRL struct{ reg }

// AFRH owns the alternate function register of pins 8-15.
type AFRH struct{ reg }

// AFR is either alternate function register.
type AFR interface {
	afr() *reg
	high() bool
}

func (a *AFRL) afr() *reg  { return &a.reg }
func (a *AFRL) high() bool { return false }
func (a *AFRH) afr() *reg  { return &a.reg }
func (a *AFRH) high() bool { return true }

// Parts is a split GPIO port. Pins not handed out are nil.
type Parts struct {
	Port   device.Port
	MODER  *MODER
	OTYPER *OTYPER
	PUPDR  *PUPDR
	AFRL   *AFRL
	AFRH   *AFRH
	Pins   [NUM_PINS]*Pin[Input[Floating]]
}

// AFR returns the alternate function register covering pin i.
func (p *Parts) AFR(i uint) AFR {
	if i >= 8 {
		return p.AFRH
	}
	return p.AFRL
}

// Split consumes the port, enables its clock and resets it, and returns
// its register and pin handles.
func Split(g *device.GPIO, ahb *rcc.AHB) (*Parts, error) {
	if err := g.Consume(); err != nil {
		return nil, err
	}
	bit := g.Port.EnableBit()
	ahb.Enable(bit)
	ahb.Reset(bit)

	ps := &portState{port: g.Port, regs: g}
	p := &Parts{
		Port:   g.Port,
		MODER:  &MODER{newReg(ps, "MODER", g.MODER)},
		OTYPER: &OTYPER{newReg(ps, "OTYPER", g.OTYPER)},
		PUPDR:  &PUPDR{newReg(ps, "PUPDR", g.PUPDR)},
		AFRL:   &AFRL{newReg(ps, "AFRL", g.AFRL)},
		AFRH:   &AFRH{newReg(ps, "AFRH", g.AFRH)},
	}
	for i := uint(0); i < NUM_PINS; i++ {
		if Available(g.Port, i) {
			p.Pins[i] = mint[Input[Floating]](ps, i)
		}
	}
	return p, nil
}
