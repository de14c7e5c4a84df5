// Package sim simulates the STM32F30x RCC, FLASH and GPIO blocks well
// enough to drive the clock sequencer and pin layer without hardware.
//
// The simulation is synchronous: it runs inside register accesses, through
// the mmio.Device hooks, so there are no goroutines racing the code under
// test. Ready flags appear after a configurable number of polls.
package sim

import (
	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/mmio"
)

const (
	RCC_CR_RESET     = 0x00000083 // HSION, HSIRDY, HSITRIM=16
	RCC_AHBENR_RESET = 0x00000014 // SRAM and FLITF clocked
	NEVER            = -1
)

type Options struct {
	// Polls of RCC_CR before HSERDY and PLLRDY are set, and of RCC_CFGR
	// before SWS follows SW. NEVER keeps the flag clear for good.
	HSEReadyAfter int
	PLLLockAfter  int
	SwitchAfter   int
}

// Write is one register write as seen by the hardware.
type Write struct {
	Addr  uint32
	Old   uint32
	Value uint32 // the value written by software
	Latch uint32 // the value the register holds afterwards
}

type Chip struct {
	space   *mmio.Space
	opts    Options
	writes  []Write
	hsePoll int
	pllPoll int
	swPoll  int
	inputs  [device.NumPorts]uint16
}

// New returns a chip in its reset state.
func New(opts Options) *Chip {
	c := &Chip{opts: opts}
	var rs []*mmio.Region
	for _, w := range device.Windows {
		r := mmio.Alloc(w.Base, w.Size)
		r.Attach(c)
		rs = append(rs, r)
	}
	c.space = mmio.NewSpace(rs...)
	c.Reset()
	return c
}

func (c *Chip) Space() *mmio.Space {
	return c.space
}

// Reset puts every simulated register back to its reset value and forgets
// the write log.
func (c *Chip) Reset() {
	for _, w := range device.Windows {
		r := c.space.Region(w.Base)
		for a := w.Base; a < w.Base+uint32(w.Size); a += 4 {
			r.Poke(a, 0)
		}
	}
	c.poke(device.RCC_BASE+device.RCC_CR, RCC_CR_RESET)
	c.poke(device.RCC_BASE+device.RCC_AHBENR, RCC_AHBENR_RESET)
	c.poke(device.FLASH_BASE+device.FLASH_ACR, device.FLASH_ACR_RESET)
	for p := device.PortA; p < device.NumPorts; p++ {
		c.resetPort(p)
	}
	c.writes = nil
	c.hsePoll, c.pllPoll, c.swPoll = 0, 0, 0
}

func (c *Chip) resetPort(p device.Port) {
	b := p.Base()
	for _, off := range []uint32{device.GPIO_MODER, device.GPIO_OTYPER, device.GPIO_OSPEEDR, device.GPIO_PUPDR,
		device.GPIO_ODR, device.GPIO_LCKR, device.GPIO_AFRL, device.GPIO_AFRH} {
		c.poke(b+off, 0)
	}
	switch p {
	case device.PortA:
		c.poke(b+device.GPIO_MODER, device.GPIOA_MODER_RESET)
		c.poke(b+device.GPIO_PUPDR, device.GPIOA_PUPDR_RESET)
		c.poke(b+device.GPIO_OSPEEDR, device.GPIOA_OSPEEDR_RESET)
	case device.PortB:
		c.poke(b+device.GPIO_MODER, device.GPIOB_MODER_RESET)
		c.poke(b+device.GPIO_PUPDR, device.GPIOB_PUPDR_RESET)
		c.poke(b+device.GPIO_OSPEEDR, device.GPIOB_OSPEEDR_RESET)
	}
}

// Peek returns a register's value without any simulated side effects.
func (c *Chip) Peek(addr uint32) uint32 {
	return c.space.Region(addr).Peek(addr)
}

func (c *Chip) poke(addr, v uint32) {
	c.space.Region(addr).Poke(addr, v)
}

// Writes returns every register write since the last Reset or ClearLog.
func (c *Chip) Writes() []Write {
	return c.writes
}

func (c *Chip) ClearLog() {
	c.writes = nil
}

// WritesTo returns the indices in Writes of the writes to addr.
func (c *Chip) WritesTo(addr uint32) []int {
	var is []int
	for i, w := range c.writes {
		if w.Addr == addr {
			is = append(is, i)
		}
	}
	return is
}

// Drive sets the level an external circuit applies to a pin. It's what
// floating inputs read.
func (c *Chip) Drive(p device.Port, pin uint, high bool) {
	if high {
		c.inputs[p] |= 1 << pin
	} else {
		c.inputs[p] &^= 1 << pin
	}
}

func ready(after, polls int) bool {
	return after != NEVER && polls > after
}

// Read implements mmio.Device.
func (c *Chip) Read(r *mmio.Region, addr uint32) {
	switch {
	case addr == device.RCC_BASE+device.RCC_CR:
		c.readCR(r, addr)
	case addr == device.RCC_BASE+device.RCC_CFGR:
		c.readCFGR(r, addr)
	case addr >= device.GPIO_BASE && addr < device.GPIO_BASE+device.NumPorts*device.GPIO_SIZE:
		if (addr-device.GPIO_BASE)%device.GPIO_SIZE == device.GPIO_IDR {
			c.readIDR(r, addr)
		}
	}
}

func (c *Chip) readCR(r *mmio.Region, addr uint32) {
	v := r.Peek(addr)
	if v&device.RCC_CR_HSEON != 0 && v&device.RCC_CR_HSERDY == 0 {
		c.hsePoll++
		if ready(c.opts.HSEReadyAfter, c.hsePoll) {
			v |= device.RCC_CR_HSERDY
		}
	}
	if v&device.RCC_CR_PLLON != 0 && v&device.RCC_CR_PLLRDY == 0 && c.pllInputReady(v) {
		c.pllPoll++
		if ready(c.opts.PLLLockAfter, c.pllPoll) {
			v |= device.RCC_CR_PLLRDY
		}
	}
	r.Poke(addr, v)
}

func (c *Chip) pllInputReady(cr uint32) bool {
	cfgr := c.Peek(device.RCC_BASE + device.RCC_CFGR)
	if cfgr&device.RCC_CFGR_PLLSRC != 0 {
		return cr&device.RCC_CR_HSERDY != 0
	}
	return cr&device.RCC_CR_HSIRDY != 0
}

// readCFGR lets SWS follow SW once the selected source is ready.
func (c *Chip) readCFGR(r *mmio.Region, addr uint32) {
	v := r.Peek(addr)
	sw := v & device.RCC_CFGR_SW_MASK
	sws := (v >> device.RCC_CFGR_SWS_POS) & device.RCC_CFGR_SWS_MASK
	if sw == sws {
		return
	}
	cr := c.Peek(device.RCC_BASE + device.RCC_CR)
	var rdy uint32
	switch sw {
	case device.RCC_CFGR_SW_HSI:
		rdy = device.RCC_CR_HSIRDY
	case device.RCC_CFGR_SW_HSE:
		rdy = device.RCC_CR_HSERDY
	case device.RCC_CFGR_SW_PLL:
		rdy = device.RCC_CR_PLLRDY
	default:
		return
	}
	if cr&rdy == 0 {
		return
	}
	c.swPoll++
	if ready(c.opts.SwitchAfter, c.swPoll) {
		r.Poke(addr, v&^(device.RCC_CFGR_SWS_MASK<<device.RCC_CFGR_SWS_POS)|sw<<device.RCC_CFGR_SWS_POS)
		c.swPoll = 0
	}
}

func (c *Chip) readIDR(r *mmio.Region, addr uint32) {
	b := addr - device.GPIO_IDR
	p := device.Port((b - device.GPIO_BASE) / device.GPIO_SIZE)
	moder := c.Peek(b + device.GPIO_MODER)
	pupdr := c.Peek(b + device.GPIO_PUPDR)
	otyper := c.Peek(b + device.GPIO_OTYPER)
	odr := c.Peek(b + device.GPIO_ODR)
	var idr uint32
	for i := uint(0); i < 16; i++ {
		var high bool
		switch (moder >> (2 * i)) & 3 {
		case 0b01:
			// An open-drain output that isn't pulling low floats.
			high = odr&(1<<i) != 0
			if high && otyper&(1<<i) != 0 {
				high = c.floatingLevel(p, i, pupdr)
			}
		default:
			high = c.floatingLevel(p, i, pupdr)
		}
		if high {
			idr |= 1 << i
		}
	}
	r.Poke(addr, idr)
}

// floatingLevel is the level of a pin nothing on the chip drives: the
// external level if one is applied, otherwise the internal pull.
func (c *Chip) floatingLevel(p device.Port, i uint, pupdr uint32) bool {
	switch (pupdr >> (2 * i)) & 3 {
	case 0b01:
		return true
	case 0b10:
		return false
	}
	return c.inputs[p]&(1<<i) != 0
}

// Write implements mmio.Device.
func (c *Chip) Write(r *mmio.Region, addr uint32, old, v uint32) uint32 {
	latch := c.latch(addr, old, v)
	c.writes = append(c.writes, Write{Addr: addr, Old: old, Value: v, Latch: latch})
	return latch
}

func (c *Chip) latch(addr, old, v uint32) uint32 {
	switch addr {
	case device.RCC_BASE + device.RCC_CR:
		return c.writeCR(old, v)
	case device.RCC_BASE + device.RCC_CFGR:
		return c.writeCFGR(old, v)
	case device.RCC_BASE + device.RCC_CFGR2:
		cfgr := device.RCC_BASE + device.RCC_CFGR
		c.poke(cfgr, c.Peek(cfgr)&^device.RCC_CFGR_PLLXTPRE|(v&1)<<17)
		return v & device.RCC_CFGR2_PREDIV_MASK
	case device.RCC_BASE + device.RCC_AHBRSTR:
		for p := device.PortA; p < device.NumPorts; p++ {
			if v&p.EnableBit() != 0 {
				c.resetPort(p)
			}
		}
		return v
	}
	if addr >= device.GPIO_BASE && addr < device.GPIO_BASE+device.NumPorts*device.GPIO_SIZE {
		return c.writeGPIO(addr, old, v)
	}
	return v
}

func (c *Chip) writeCR(old, v uint32) uint32 {
	const ro = device.RCC_CR_HSIRDY | device.RCC_CR_HSERDY | device.RCC_CR_PLLRDY
	v = v&^ro | old&ro
	sws := (c.Peek(device.RCC_BASE+device.RCC_CFGR) >> device.RCC_CFGR_SWS_POS) & device.RCC_CFGR_SWS_MASK
	if sws == device.RCC_CFGR_SW_HSI {
		// HSI can't be stopped while it's the system clock.
		v |= device.RCC_CR_HSION
	}
	if v&device.RCC_CR_HSION == 0 {
		v &^= device.RCC_CR_HSIRDY
	}
	if v&device.RCC_CR_HSEON == 0 {
		v &^= device.RCC_CR_HSERDY
		c.hsePoll = 0
	}
	if v&device.RCC_CR_PLLON == 0 {
		v &^= device.RCC_CR_PLLRDY
		c.pllPoll = 0
	}
	return v
}

func (c *Chip) writeCFGR(old, v uint32) uint32 {
	const sws = device.RCC_CFGR_SWS_MASK << device.RCC_CFGR_SWS_POS
	v = v&^sws | old&sws
	v = v&^device.RCC_CFGR_PLLXTPRE | (c.Peek(device.RCC_BASE+device.RCC_CFGR2)&1)<<17
	if c.Peek(device.RCC_BASE+device.RCC_CR)&device.RCC_CR_PLLON != 0 {
		// PLL source and multiplier are locked while the PLL runs.
		const pll = device.RCC_CFGR_PLLSRC | device.RCC_CFGR_PLLMUL_MASK<<device.RCC_CFGR_PLLMUL_POS
		v = v&^pll | old&pll
	}
	return v
}

func (c *Chip) writeGPIO(addr, old, v uint32) uint32 {
	b := addr - (addr-device.GPIO_BASE)%device.GPIO_SIZE
	switch addr - b {
	case device.GPIO_IDR:
		return old
	case device.GPIO_BSRR:
		odr := c.Peek(b + device.GPIO_ODR)
		odr = (odr &^ (v >> 16)) | (v & 0xffff)
		c.poke(b+device.GPIO_ODR, odr&0xffff)
		return 0
	case device.GPIO_BRR:
		c.poke(b+device.GPIO_ODR, c.Peek(b+device.GPIO_ODR)&^(v&0xffff))
		return 0
	case device.GPIO_ODR:
		return v & 0xffff
	}
	return v
}
