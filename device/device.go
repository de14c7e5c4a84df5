// Package device describes the STM32F30x peripherals this module drives:
// their fixed base addresses, register offsets and bit fields (RM0316), and
// the raw register blocks handed out once per register space by Take.
//
// The blocks give unchecked access to the hardware. Use rcc.Constrain,
// flash.Constrain and gpio.Split to turn them into ownership handles.
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Jon-Bright/rccctl/mmio"
	"github.com/Jon-Bright/rccctl/own"
)

const (
	RCC_BASE   = uint32(0x40021000)
	FLASH_BASE = uint32(0x40022000)
	GPIO_BASE  = uint32(0x48000000)
	GPIO_SIZE  = 0x400

	// RCC and FLASH sit next to each other on AHB1, the GPIO ports on AHB2.
	AHB1_WINDOW_BASE = RCC_BASE
	AHB1_WINDOW_SIZE = 0x1400
	AHB2_WINDOW_BASE = GPIO_BASE
	AHB2_WINDOW_SIZE = 6 * GPIO_SIZE
)

var ErrTaken = errors.New("peripherals already taken")

// Window is a contiguous range of the physical address space the
// peripherals live in.
type Window struct {
	Name string
	Base uint32
	Size int
}

var Windows = []Window{
	{"AHB1", AHB1_WINDOW_BASE, AHB1_WINDOW_SIZE},
	{"AHB2", AHB2_WINDOW_BASE, AHB2_WINDOW_SIZE},
}

// Alloc returns a register space backed by ordinary memory, with all
// registers zero.
func Alloc() *mmio.Space {
	var rs []*mmio.Region
	for _, w := range Windows {
		rs = append(rs, mmio.Alloc(w.Base, w.Size))
	}
	return mmio.NewSpace(rs...)
}

// Map maps every peripheral window from path, normally /dev/mem.
func Map(path string) (*mmio.Space, error) {
	var rs []*mmio.Region
	for _, w := range Windows {
		r, err := mmio.Map(path, w.Base, w.Size)
		if err != nil {
			for _, m := range rs {
				m.Close() // Ignore error
			}
			return nil, fmt.Errorf("couldn't map %s window: %v", w.Name, err)
		}
		rs = append(rs, r)
	}
	return mmio.NewSpace(rs...), nil
}

type Peripherals struct {
	RCC   *RCC
	FLASH *FLASH
	GPIOA *GPIO
	GPIOB *GPIO
	GPIOC *GPIO
	GPIOD *GPIO
	GPIOE *GPIO
	GPIOF *GPIO
}

var taken sync.Map // *mmio.Space -> struct{}

// Take returns the peripherals of s. There is one set of peripherals per
// register space: every call after the first returns ErrTaken.
func Take(s *mmio.Space) (*Peripherals, error) {
	if _, loaded := taken.LoadOrStore(s, struct{}{}); loaded {
		return nil, ErrTaken
	}
	return &Peripherals{
		RCC:   newRCC(s),
		FLASH: newFLASH(s),
		GPIOA: newGPIO(s, PortA),
		GPIOB: newGPIO(s, PortB),
		GPIOC: newGPIO(s, PortC),
		GPIOD: newGPIO(s, PortD),
		GPIOE: newGPIO(s, PortE),
		GPIOF: newGPIO(s, PortF),
	}, nil
}

// Port returns the GPIO block for port.
func (p *Peripherals) Port(port Port) *GPIO {
	switch port {
	case PortA:
		return p.GPIOA
	case PortB:
		return p.GPIOB
	case PortC:
		return p.GPIOC
	case PortD:
		return p.GPIOD
	case PortE:
		return p.GPIOE
	case PortF:
		return p.GPIOF
	}
	return nil
}

// block is embedded in every register block. Consume is called by the
// package that turns the block into ownership handles.
type block struct {
	once own.Once
	name string
}

func (b *block) Name() string {
	return b.name
}

func (b *block) Consume() error {
	return b.once.Take(b.name)
}
