package rcc

import (
	"fmt"
	"time"

	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/own"
	"github.com/Jon-Bright/rccctl/units"
)

// HSEDivider is the PREDIV setting applied to the HSE before the PLL.
type HSEDivider uint8

const (
	HSEDiv1 HSEDivider = iota + 1
	HSEDiv2
	HSEDiv3
	HSEDiv4
	HSEDiv5
	HSEDiv6
	HSEDiv7
	HSEDiv8
	HSEDiv9
	HSEDiv10
	HSEDiv11
	HSEDiv12
	HSEDiv13
	HSEDiv14
	HSEDiv15
	HSEDiv16
)

// Valid reports whether d is one of HSEDiv1 to HSEDiv16.
func (d HSEDivider) Valid() bool {
	return d >= HSEDiv1 && d <= HSEDiv16
}

// HSEBypass selects whether the HSE oscillator circuitry is bypassed,
// which is what an external clock source (rather than a crystal) needs.
type HSEBypass bool

const (
	BypassDisable HSEBypass = false
	BypassEnable  HSEBypass = true
)

// HSEConfig describes the external oscillator.
type HSEConfig struct {
	speed   units.Hertz
	divider uint32
	bypass  bool
}

func (h HSEConfig) Speed() units.Hertz { return h.speed }
func (h HSEConfig) Divider() uint32    { return h.divider }
func (h HSEConfig) Bypass() bool       { return h.bypass }

func (h HSEConfig) String() string {
	s := fmt.Sprintf("HSE %v/%d", h.speed, h.divider)
	if h.bypass {
		s += " bypass"
	}
	return s
}

type optHz struct {
	f  units.Hertz
	ok bool
}

// Cfgr is a clock configuration request. The setters overwrite any earlier
// value and return the request so calls can be chained. Nothing is checked
// until the request is solved.
type Cfgr struct {
	_      own.NoCopy
	hse    *HSEConfig
	hclk   optHz
	pclk1  optHz
	pclk2  optHz
	sysclk optHz

	timeout time.Duration
	rcc     *device.RCC
	frozen  own.Once
}

// NewRequest returns a request that isn't tied to any hardware. It can be
// solved but not frozen.
func NewRequest() *Cfgr {
	return &Cfgr{}
}

// HSE configures an external oscillator of freq, divided by div before the
// PLL. div values outside HSEDiv1..HSEDiv16 are clamped.
func (c *Cfgr) HSE(freq units.Hertz, div HSEDivider, bypass HSEBypass) *Cfgr {
	d := uint32(div)
	if d < 1 {
		d = 1
	} else if d > 16 {
		d = 16
	}
	c.hse = &HSEConfig{speed: freq, divider: d, bypass: bool(bypass)}
	return c
}

// HCLK sets the desired AHB frequency.
func (c *Cfgr) HCLK(f units.Hertz) *Cfgr {
	c.hclk = optHz{f, true}
	return c
}

// PCLK1 sets the desired APB1 frequency.
func (c *Cfgr) PCLK1(f units.Hertz) *Cfgr {
	c.pclk1 = optHz{f, true}
	return c
}

// PCLK2 sets the desired APB2 frequency.
func (c *Cfgr) PCLK2(f units.Hertz) *Cfgr {
	c.pclk2 = optHz{f, true}
	return c
}

// SysClk sets the desired system clock frequency.
func (c *Cfgr) SysClk(f units.Hertz) *Cfgr {
	c.sysclk = optHz{f, true}
	return c
}

// ReadyTimeout bounds each wait for the hardware to report an oscillator
// ready, the PLL locked or the clock switched. Zero, the default, waits
// forever.
func (c *Cfgr) ReadyTimeout(d time.Duration) *Cfgr {
	c.timeout = d
	return c
}

// External returns the HSE configuration, if any.
func (c *Cfgr) External() (HSEConfig, bool) {
	if c.hse == nil {
		return HSEConfig{}, false
	}
	return *c.hse, true
}

func (c *Cfgr) String() string {
	s := "HSI"
	if c.hse != nil {
		s = c.hse.String()
	}
	for _, f := range []struct {
		name string
		v    optHz
	}{{"sysclk", c.sysclk}, {"hclk", c.hclk}, {"pclk1", c.pclk1}, {"pclk2", c.pclk2}} {
		if f.v.ok {
			s += fmt.Sprintf(" %s=%v", f.name, f.v.f)
		}
	}
	return s
}
