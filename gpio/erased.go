package gpio

import (
	"fmt"

	"github.com/Jon-Bright/rccctl/device"
)

// ErasedPin is a pin whose port, index and mode are only known at run
// time, so pins of different modes can share a slice. It can't change
// mode.
type ErasedPin struct {
	port   *portState
	i      uint
	gen    uint32
	mode   string
	output bool
}

func erase[M Mode](p *Pin[M], output bool) *ErasedPin {
	p.consume()
	var m M
	return &ErasedPin{
		port:   p.port,
		i:      p.i,
		gen:    p.port.gens[p.i].Load(),
		mode:   m.String(),
		output: output,
	}
}

// DowngradeInput erases the type of an input pin.
func DowngradeInput[P PullMode](p *Pin[Input[P]]) *ErasedPin {
	return erase(p, false)
}

// DowngradeOutput erases the type of an output pin.
func DowngradeOutput[O OutputMode](p *Pin[Output[O]]) *ErasedPin {
	return erase(p, true)
}

func (p *ErasedPin) live() {
	if p.port.gens[p.i].Load() != p.gen {
		panic(fmt.Sprintf("gpio: %s used after its mode changed", pinName(p.port.port, p.i)))
	}
}

func (p *ErasedPin) Port() device.Port { return p.port.port }
func (p *ErasedPin) Index() uint       { return p.i }
func (p *ErasedPin) Mode() string      { return p.mode }
func (p *ErasedPin) IsOutput() bool    { return p.output }

func (p *ErasedPin) String() string {
	return fmt.Sprintf("%s (%s)", pinName(p.port.port, p.i), p.mode)
}

// SetHigh drives the pin high. It fails with ErrNotOutput for inputs.
func (p *ErasedPin) SetHigh() error {
	p.live()
	if !p.output {
		return fmt.Errorf("%s: %w", pinName(p.port.port, p.i), ErrNotOutput)
	}
	p.port.regs.BSRR.Set(1 << p.i)
	return nil
}

// SetLow drives the pin low. It fails with ErrNotOutput for inputs.
func (p *ErasedPin) SetLow() error {
	p.live()
	if !p.output {
		return fmt.Errorf("%s: %w", pinName(p.port.port, p.i), ErrNotOutput)
	}
	p.port.regs.BSRR.Set(1 << (16 + p.i))
	return nil
}

func (p *ErasedPin) IsHigh() bool {
	p.live()
	return p.port.regs.IDR.Get()&(1<<p.i) != 0
}

func (p *ErasedPin) IsLow() bool {
	return !p.IsHigh()
}
