package device

import (
	"errors"
	"testing"

	"github.com/Jon-Bright/rccctl/own"
)

func TestTakeOnce(t *testing.T) {
	s := Alloc()
	p, err := Take(s)
	if err != nil {
		t.Fatalf("first Take failed: %v", err)
	}
	if p.RCC == nil || p.FLASH == nil || p.GPIOF == nil {
		t.Fatalf("incomplete peripherals: %+v", p)
	}
	if _, err := Take(s); !errors.Is(err, ErrTaken) {
		t.Errorf("second Take got: %v, want ErrTaken", err)
	}
	// A different space has its own peripherals.
	if _, err := Take(Alloc()); err != nil {
		t.Errorf("Take on fresh space failed: %v", err)
	}
}

func TestRegisterAddresses(t *testing.T) {
	p, err := Take(Alloc())
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	tests := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"RCC_CR", p.RCC.CR.Addr(), 0x40021000},
		{"RCC_CFGR", p.RCC.CFGR.Addr(), 0x40021004},
		{"RCC_AHBENR", p.RCC.AHBENR.Addr(), 0x40021014},
		{"RCC_AHBRSTR", p.RCC.AHBRSTR.Addr(), 0x40021028},
		{"RCC_CFGR2", p.RCC.CFGR2.Addr(), 0x4002102C},
		{"FLASH_ACR", p.FLASH.ACR.Addr(), 0x40022000},
		{"GPIOA_MODER", p.GPIOA.MODER.Addr(), 0x48000000},
		{"GPIOB_PUPDR", p.GPIOB.PUPDR.Addr(), 0x4800040C},
		{"GPIOE_BSRR", p.GPIOE.BSRR.Addr(), 0x48001018},
		{"GPIOF_AFRH", p.GPIOF.AFRH.Addr(), 0x48001424},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s got: %08X, want: %08X", tc.name, tc.got, tc.want)
		}
	}
}

func TestBlockConsume(t *testing.T) {
	p, err := Take(Alloc())
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if err := p.GPIOC.Consume(); err != nil {
		t.Fatalf("first Consume failed: %v", err)
	}
	if err := p.GPIOC.Consume(); !errors.Is(err, own.ErrConsumed) {
		t.Errorf("second Consume got: %v, want ErrConsumed", err)
	}
	if err := p.GPIOD.Consume(); err != nil {
		t.Errorf("GPIOD consumed by GPIOC: %v", err)
	}
	if p.Port(PortC) != p.GPIOC || p.Port(NumPorts) != nil {
		t.Errorf("Port lookup wrong")
	}
}

func TestPorts(t *testing.T) {
	tests := []struct {
		in     string
		want   Port
		enable uint32
	}{
		{"A", PortA, 1 << 17},
		{"pb", PortB, 1 << 18},
		{"GPIOE", PortE, 1 << 21},
		{"f", PortF, 1 << 22},
	}
	for _, tc := range tests {
		p, err := ParsePort(tc.in)
		if err != nil {
			t.Errorf("ParsePort(%q) failed: %v", tc.in, err)
			continue
		}
		if p != tc.want || p.EnableBit() != tc.enable {
			t.Errorf("ParsePort(%q) got: %v/%08X, want: %v/%08X", tc.in, p, p.EnableBit(), tc.want, tc.enable)
		}
	}
	for _, s := range []string{"", "G", "P", "GPIO", "AB"} {
		if _, err := ParsePort(s); err == nil {
			t.Errorf("ParsePort(%q) succeeded", s)
		}
	}
	if PortD.String() != "GPIOD" {
		t.Errorf("PortD.String() got: %s", PortD)
	}
}
