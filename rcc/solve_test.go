package rcc

import (
	"errors"
	"testing"

	"github.com/Jon-Bright/rccctl/units"
)

func TestSolveDefault(t *testing.T) {
	s, err := Solve(NewRequest())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	for _, f := range []struct {
		name string
		got  units.Hertz
	}{{"sysclk", s.SysClk()}, {"hclk", s.HCLK()}, {"pclk1", s.PCLK1()}, {"pclk2", s.PCLK2()}} {
		if f.got != 8*units.MHz {
			t.Errorf("%s got: %v, want: 8MHz", f.name, f.got)
		}
	}
	if _, ok := s.PLL(); ok || s.Source() != SourceHSI {
		t.Errorf("default uses %v, want HSI without PLL", s.Source())
	}
	if s.HPRE() != 0b0111 || s.PPRE1() != 0b011 || s.PPRE2() != 0b011 || s.Latency() != 0 {
		t.Errorf("default codes wrong: %v", s)
	}
}

func TestSolveHighSysclkNeedsPCLK1(t *testing.T) {
	_, err := Solve(NewRequest().SysClk(48 * units.MHz))
	if !errors.Is(err, ErrConstraint) {
		t.Fatalf("Solve got: %v, want ErrConstraint", err)
	}
	var ce *ConstraintError
	if !errors.As(err, &ce) || ce.Clock != "pclk1" || ce.Limit != PCLK1_MAX {
		t.Errorf("wrong constraint: %#v", ce)
	}

	s, err := Solve(NewRequest().SysClk(48 * units.MHz).PCLK1(24 * units.MHz))
	if err != nil {
		t.Fatalf("Solve with pclk1 failed: %v", err)
	}
	if s.PCLK1() != 24*units.MHz || s.PPRE1() != 0b100 || s.PCLK2() != 48*units.MHz {
		t.Errorf("got %v", s)
	}
}

func TestSolve(t *testing.T) {
	tests := []struct {
		name    string
		req     *Cfgr
		src     Source
		mul     uint32
		sysclk  units.Hertz
		hclk    units.Hertz
		pclk1   units.Hertz
		pclk2   units.Hertz
		latency uint32
	}{
		{"HSI 64MHz", NewRequest().SysClk(64 * units.MHz).PCLK1(32 * units.MHz),
			SourcePLL, 16, 64 * units.MHz, 64 * units.MHz, 32 * units.MHz, 64 * units.MHz, 2},
		{"HSI clamps to 64MHz", NewRequest().SysClk(100 * units.MHz).PCLK1(32 * units.MHz),
			SourcePLL, 16, 64 * units.MHz, 64 * units.MHz, 32 * units.MHz, 64 * units.MHz, 2},
		{"HSI 24MHz", NewRequest().SysClk(24 * units.MHz),
			SourcePLL, 6, 24 * units.MHz, 24 * units.MHz, 24 * units.MHz, 24 * units.MHz, 0},
		{"HSI 28MHz", NewRequest().SysClk(28 * units.MHz),
			SourcePLL, 7, 28 * units.MHz, 28 * units.MHz, 28 * units.MHz, 28 * units.MHz, 1},
		{"HSI below 8MHz", NewRequest().SysClk(2 * units.MHz),
			SourceHSI, 0, 8 * units.MHz, 8 * units.MHz, 8 * units.MHz, 8 * units.MHz, 0},
		{"HSE 72MHz", NewRequest().HSE(8*units.MHz, HSEDiv1, BypassDisable).SysClk(72 * units.MHz).PCLK1(36 * units.MHz),
			SourcePLL, 9, 72 * units.MHz, 72 * units.MHz, 36 * units.MHz, 72 * units.MHz, 2},
		{"HSE direct", NewRequest().HSE(8*units.MHz, HSEDiv1, BypassEnable),
			SourceHSE, 0, 8 * units.MHz, 8 * units.MHz, 8 * units.MHz, 8 * units.MHz, 0},
		{"HSE direct requested", NewRequest().HSE(16*units.MHz, HSEDiv4, BypassDisable).SysClk(16 * units.MHz),
			SourceHSE, 0, 16 * units.MHz, 16 * units.MHz, 16 * units.MHz, 16 * units.MHz, 0},
		{"HSE divided", NewRequest().HSE(16*units.MHz, HSEDiv2, BypassDisable).SysClk(48 * units.MHz).PCLK1(24 * units.MHz),
			SourcePLL, 6, 48 * units.MHz, 48 * units.MHz, 24 * units.MHz, 48 * units.MHz, 1},
		{"HSE doubled", NewRequest().HSE(8*units.MHz, HSEDiv1, BypassDisable).SysClk(20 * units.MHz),
			SourcePLL, 2, 16 * units.MHz, 16 * units.MHz, 16 * units.MHz, 16 * units.MHz, 0},
		{"slow buses", NewRequest().HCLK(2 * units.MHz).PCLK1(500 * units.KHz).PCLK2(125 * units.KHz),
			SourceHSI, 0, 8 * units.MHz, 2 * units.MHz, 500 * units.KHz, 125 * units.KHz, 0},
	}
	for _, tc := range tests {
		s, err := Solve(tc.req)
		if err != nil {
			t.Errorf("%s: Solve failed: %v", tc.name, err)
			continue
		}
		mul, _ := s.PLL()
		if s.Source() != tc.src || mul != tc.mul {
			t.Errorf("%s: source got: %v x%d, want: %v x%d", tc.name, s.Source(), mul, tc.src, tc.mul)
		}
		if s.SysClk() != tc.sysclk || s.HCLK() != tc.hclk || s.PCLK1() != tc.pclk1 || s.PCLK2() != tc.pclk2 {
			t.Errorf("%s: got %v", tc.name, s)
		}
		if s.Latency() != tc.latency {
			t.Errorf("%s: latency got: %d, want: %d", tc.name, s.Latency(), tc.latency)
		}
	}
}

func TestSolveConstraints(t *testing.T) {
	hse := func() *Cfgr { return NewRequest().HSE(8*units.MHz, HSEDiv1, BypassDisable) }
	tests := []struct {
		name  string
		req   *Cfgr
		clock string
	}{
		{"sysclk over 72MHz", hse().SysClk(80 * units.MHz).PCLK1(20 * units.MHz), "sysclk"},
		{"HSE over 72MHz", NewRequest().HSE(100*units.MHz, HSEDiv1, BypassEnable), "sysclk"},
		{"hclk above sysclk", NewRequest().HCLK(16 * units.MHz), "hclk"},
		{"pclk1 above hclk", NewRequest().PCLK1(16 * units.MHz), "pclk1"},
		{"pclk2 above hclk", NewRequest().HCLK(4 * units.MHz).PCLK2(8 * units.MHz), "pclk2"},
		{"pclk1 default at 72MHz", hse().SysClk(72 * units.MHz), "pclk1"},
		{"zero sysclk", NewRequest().SysClk(0), "sysclk"},
		{"zero pclk2", NewRequest().PCLK2(0), "pclk2"},
		{"zero HSE", NewRequest().HSE(0, HSEDiv1, BypassDisable), "hse"},
	}
	for _, tc := range tests {
		_, err := Solve(tc.req)
		var ce *ConstraintError
		if !errors.As(err, &ce) || !errors.Is(err, ErrConstraint) {
			t.Errorf("%s: got: %v, want a ConstraintError", tc.name, err)
			continue
		}
		if ce.Clock != tc.clock {
			t.Errorf("%s: failed on %s, want %s (%v)", tc.name, ce.Clock, tc.clock, err)
		}
	}
}

func TestSolveLastWriteWins(t *testing.T) {
	c := NewRequest().SysClk(72 * units.MHz).SysClk(16 * units.MHz).
		HSE(8*units.MHz, HSEDiv1, BypassDisable).HSE(12*units.MHz, HSEDiv3, BypassDisable)
	s, err := Solve(c)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if mul, _ := s.PLL(); s.SysClk() != 16*units.MHz || mul != 4 {
		t.Errorf("got %v", s)
	}
	if h, _ := c.External(); h.Speed() != 12*units.MHz || h.Divider() != 3 {
		t.Errorf("HSE got: %v", h)
	}
}

func TestPrescalerBuckets(t *testing.T) {
	ahb := []struct{ ratio, bits, div uint32 }{
		{1, 0b0111, 1}, {2, 0b1000, 2}, {3, 0b1001, 4}, {5, 0b1001, 4},
		{6, 0b1010, 8}, {11, 0b1010, 8}, {12, 0b1011, 16}, {39, 0b1011, 16},
		{40, 0b1100, 64}, {95, 0b1100, 64}, {96, 0b1101, 128}, {191, 0b1101, 128},
		{192, 0b1110, 256}, {383, 0b1110, 256}, {384, 0b1111, 512}, {100000, 0b1111, 512},
	}
	for _, tc := range ahb {
		bits, div := ahbPrescaler(tc.ratio)
		if bits != tc.bits || div != tc.div {
			t.Errorf("ahbPrescaler(%d) got: %04b /%d, want: %04b /%d", tc.ratio, bits, div, tc.bits, tc.div)
		}
		if HPREDivider(bits) != div {
			t.Errorf("HPREDivider(%04b) got: %d, want: %d", bits, HPREDivider(bits), div)
		}
	}
	apb := []struct{ ratio, bits, div uint32 }{
		{1, 0b011, 1}, {2, 0b100, 2}, {3, 0b101, 4}, {5, 0b101, 4},
		{6, 0b110, 8}, {11, 0b110, 8}, {12, 0b111, 16}, {1000, 0b111, 16},
	}
	for _, tc := range apb {
		bits, div := apbPrescaler(tc.ratio)
		if bits != tc.bits || div != tc.div {
			t.Errorf("apbPrescaler(%d) got: %03b /%d, want: %03b /%d", tc.ratio, bits, div, tc.bits, tc.div)
		}
		if PPREDivider(bits) != div {
			t.Errorf("PPREDivider(%03b) got: %d, want: %d", bits, PPREDivider(bits), div)
		}
	}
}

// Every frequency the prescalers can produce is solved exactly, and the
// codes chosen reproduce the solved frequencies.
func TestSolveReachable(t *testing.T) {
	ahbDivs := []uint32{1, 2, 4, 8, 16, 64, 128, 256, 512}
	apbDivs := []uint32{1, 2, 4, 8, 16}
	for _, sysclk := range []units.Hertz{8 * units.MHz, 32 * units.MHz, 64 * units.MHz} {
		for _, hd := range ahbDivs {
			for _, p1 := range apbDivs {
				for _, p2 := range apbDivs {
					hclk := sysclk / units.Hertz(hd)
					pclk1 := hclk / units.Hertz(p1)
					pclk2 := hclk / units.Hertz(p2)
					req := NewRequest().SysClk(sysclk).HCLK(hclk).PCLK1(pclk1).PCLK2(pclk2)
					s, err := Solve(req)
					if pclk1 > PCLK1_MAX {
						if !errors.Is(err, ErrConstraint) {
							t.Errorf("%v: got: %v, want ErrConstraint", req, err)
						}
						continue
					}
					if err != nil {
						t.Errorf("%v: Solve failed: %v", req, err)
						continue
					}
					if s.SysClk() != sysclk || s.HCLK() != hclk || s.PCLK1() != pclk1 || s.PCLK2() != pclk2 {
						t.Errorf("%v: got %v", req, s)
					}
					if s.SysClk()/units.Hertz(HPREDivider(s.HPRE())) != s.HCLK() ||
						s.HCLK()/units.Hertz(PPREDivider(s.PPRE1())) != s.PCLK1() ||
						s.HCLK()/units.Hertz(PPREDivider(s.PPRE2())) != s.PCLK2() {
						t.Errorf("%v: codes don't reproduce %v", req, s)
					}
				}
			}
		}
	}
}

func TestHSEDividerValid(t *testing.T) {
	for d, want := range map[HSEDivider]bool{0: false, HSEDiv1: true, HSEDiv16: true, 17: false, 200: false} {
		if got := d.Valid(); got != want {
			t.Errorf("HSEDivider(%d).Valid() got: %v, want: %v", d, got, want)
		}
	}
}
