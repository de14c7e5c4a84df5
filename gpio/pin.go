package gpio

import (
	"fmt"

	"github.com/Jon-Bright/rccctl/device"
)

const (
	MODER_INPUT     = 0b00
	MODER_OUTPUT    = 0b01
	MODER_ALTERNATE = 0b10
	MODER_ANALOG    = 0b11

	PUPDR_NONE = 0b00
	PUPDR_UP   = 0b01
	PUPDR_DOWN = 0b10

	OTYPER_PUSH_PULL  = 0
	OTYPER_OPEN_DRAIN = 1
)

// Mode is implemented by the pin mode markers.
type Mode interface {
	String() string
}

// PullMode is the pull configuration of an input.
type PullMode interface {
	Mode
	pupd() uint32
}

// OutputMode is the driver configuration of an output.
type OutputMode interface {
	Mode
	otype() uint32
}

// AltMode is one of AF0 to AF15.
type AltMode interface {
	Mode
	af() uint32
}

type Floating struct{}
type PullDown struct{}
type PullUp struct{}

func (Floating) pupd() uint32 { return PUPDR_NONE }
func (PullDown) pupd() uint32 { return PUPDR_DOWN }
func (PullUp) pupd() uint32   { return PUPDR_UP }

func (Floating) String() string { return "floating" }
func (PullDown) String() string { return "pull-down" }
func (PullUp) String() string   { return "pull-up" }

type PushPull struct{}
type OpenDrain struct{}

func (PushPull) otype() uint32  { return OTYPER_PUSH_PULL }
func (OpenDrain) otype() uint32 { return OTYPER_OPEN_DRAIN }

func (PushPull) String() string  { return "push-pull" }
func (OpenDrain) String() string { return "open-drain" }

// Input marks an input pin with pull P.
type Input[P PullMode] struct{}

func (Input[P]) String() string {
	var p P
	return p.String() + " input"
}

// Output marks an output pin driven as O.
type Output[O OutputMode] struct{}

func (Output[O]) String() string {
	var o O
	return o.String() + " output"
}

// Pin is a handle to one pin of a port in mode M.
type Pin[M Mode] struct {
	port *portState
	i    uint
	gen  uint32
}

func mint[M Mode](ps *portState, i uint) *Pin[M] {
	return &Pin[M]{port: ps, i: i, gen: ps.gens[i].Load()}
}

func pinName(port device.Port, i uint) string {
	return fmt.Sprintf("P%c%d", port.Letter(), i)
}

func (p *Pin[M]) String() string {
	var m M
	return fmt.Sprintf("%s (%v)", pinName(p.port.port, p.i), m)
}

func (p *Pin[M]) Port() device.Port {
	return p.port.port
}

func (p *Pin[M]) Index() uint {
	return p.i
}

// live panics if the handle has been consumed by a mode change.
func (p *Pin[M]) live() {
	if p.port.gens[p.i].Load() != p.gen {
		panic(fmt.Sprintf("gpio: %s used after its mode changed", pinName(p.port.port, p.i)))
	}
}

// consume kills the handle. It panics if the handle was already dead.
func (p *Pin[M]) consume() {
	if !p.port.gens[p.i].CompareAndSwap(p.gen, p.gen+1) {
		panic(fmt.Sprintf("gpio: %s used after its mode changed", pinName(p.port.port, p.i)))
	}
}

// IsHigh reports whether the pin reads high. It works in every mode.
func (p *Pin[M]) IsHigh() bool {
	p.live()
	return p.port.regs.IDR.Get()&(1<<p.i) != 0
}

func (p *Pin[M]) IsLow() bool {
	return !p.IsHigh()
}

func (p *Pin[M]) intoInput(pull uint32, moder *MODER, pupdr *PUPDR) {
	moder.check(p.port)
	pupdr.check(p.port)
	p.consume()
	moder.replace(p.i, 2, MODER_INPUT)
	pupdr.replace(p.i, 2, pull)
}

// IntoFloatingInput configures the pin as an input without pull resistor.
func (p *Pin[M]) IntoFloatingInput(moder *MODER, pupdr *PUPDR) *Pin[Input[Floating]] {
	p.intoInput(PUPDR_NONE, moder, pupdr)
	return mint[Input[Floating]](p.port, p.i)
}

// IntoPullDownInput configures the pin as an input with pull-down.
func (p *Pin[M]) IntoPullDownInput(moder *MODER, pupdr *PUPDR) *Pin[Input[PullDown]] {
	p.intoInput(PUPDR_DOWN, moder, pupdr)
	return mint[Input[PullDown]](p.port, p.i)
}

// IntoPullUpInput configures the pin as an input with pull-up.
func (p *Pin[M]) IntoPullUpInput(moder *MODER, pupdr *PUPDR) *Pin[Input[PullUp]] {
	p.intoInput(PUPDR_UP, moder, pupdr)
	return mint[Input[PullUp]](p.port, p.i)
}

func (p *Pin[M]) intoOutput(otype uint32, moder *MODER, otyper *OTYPER) {
	moder.check(p.port)
	otyper.check(p.port)
	p.consume()
	otyper.replace(p.i, 1, otype)
	moder.replace(p.i, 2, MODER_OUTPUT)
}

// IntoPushPullOutput configures the pin as a push-pull output.
func (p *Pin[M]) IntoPushPullOutput(moder *MODER, otyper *OTYPER) *Pin[Output[PushPull]] {
	p.intoOutput(OTYPER_PUSH_PULL, moder, otyper)
	return mint[Output[PushPull]](p.port, p.i)
}

// IntoOpenDrainOutput configures the pin as an open-drain output.
func (p *Pin[M]) IntoOpenDrainOutput(moder *MODER, otyper *OTYPER) *Pin[Output[OpenDrain]] {
	p.intoOutput(OTYPER_OPEN_DRAIN, moder, otyper)
	return mint[Output[OpenDrain]](p.port, p.i)
}

// IntoAlternate hands the pin to alternate function A. afr must be the AFRL
// handle for pins 0-7 and AFRH for pins 8-15.
func IntoAlternate[A AltMode, M Mode](p *Pin[M], moder *MODER, afr AFR) *Pin[A] {
	moder.check(p.port)
	r := afr.afr()
	r.check(p.port)
	if afr.high() != (p.i >= 8) {
		panic(fmt.Sprintf("gpio: %s handle used for %s", r.g.Name(), pinName(p.port.port, p.i)))
	}
	p.consume()
	var a A
	r.replace(p.i%8, 4, a.af())
	moder.replace(p.i, 2, MODER_ALTERNATE)
	return mint[A](p.port, p.i)
}

// SetHigh drives an output pin high.
func SetHigh[O OutputMode](p *Pin[Output[O]]) {
	p.live()
	p.port.regs.BSRR.Set(1 << p.i)
}

// SetLow drives an output pin low.
func SetLow[O OutputMode](p *Pin[Output[O]]) {
	p.live()
	p.port.regs.BSRR.Set(1 << (16 + p.i))
}

// IsSetHigh reports whether the output latch of p is high.
func IsSetHigh[O OutputMode](p *Pin[Output[O]]) bool {
	p.live()
	return p.port.regs.ODR.Get()&(1<<p.i) != 0
}

// InternalPullUp switches the internal pull-up of an open-drain output.
func InternalPullUp(p *Pin[Output[OpenDrain]], pupdr *PUPDR, on bool) {
	p.live()
	pupdr.check(p.port)
	v := uint32(PUPDR_NONE)
	if on {
		v = PUPDR_UP
	}
	pupdr.replace(p.i, 2, v)
}
