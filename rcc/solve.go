package rcc

import (
	"errors"
	"fmt"
	"math"

	"github.com/Jon-Bright/rccctl/mathx"
	"github.com/Jon-Bright/rccctl/units"
)

const (
	HSI = 8 * units.MHz

	SYSCLK_MAX = 72 * units.MHz
	HCLK_MAX   = 72 * units.MHz
	PCLK1_MAX  = 36 * units.MHz
	PCLK2_MAX  = 72 * units.MHz

	PLLMUL_MIN = 2
	PLLMUL_MAX = 16

	// Flash wait states are needed above these system clocks.
	LATENCY1_ABOVE = 24 * units.MHz
	LATENCY2_ABOVE = 48 * units.MHz
)

var ErrConstraint = errors.New("clock constraint violated")

// ConstraintError reports a request that the clock tree can't satisfy.
type ConstraintError struct {
	Clock  string
	Got    units.Hertz
	Limit  units.Hertz
	Reason string
}

func (e *ConstraintError) Error() string {
	if e.Limit == 0 {
		return fmt.Sprintf("%s %v: %s", e.Clock, e.Got, e.Reason)
	}
	return fmt.Sprintf("%s %v: %s %v", e.Clock, e.Got, e.Reason, e.Limit)
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraint
}

// Source is the oscillator the system clock is switched to.
type Source uint8

const (
	SourceHSI Source = iota
	SourceHSE
	SourcePLL
)

func (s Source) String() string {
	switch s {
	case SourceHSI:
		return "HSI"
	case SourceHSE:
		return "HSE"
	case SourcePLL:
		return "PLL"
	}
	return fmt.Sprintf("Source(%d)", uint8(s))
}

// sw is the RCC_CFGR SW/SWS encoding of the source.
func (s Source) sw() uint32 {
	switch s {
	case SourceHSE:
		return 0b01
	case SourcePLL:
		return 0b10
	}
	return 0b00
}

// Solution is a set of register settings that produces a request's clocks.
// It is only made by Solve.
type Solution struct {
	source  Source
	hse     *HSEConfig
	pllMul  uint32
	hpre    uint32
	ppre1   uint32
	ppre2   uint32
	latency uint32

	sysclk, hclk, pclk1, pclk2 units.Hertz
}

func (s Solution) Source() Source { return s.source }

// PLL returns the PLL multiplier and whether the PLL is used at all.
func (s Solution) PLL() (uint32, bool) {
	if s.source != SourcePLL {
		return 0, false
	}
	return s.pllMul, true
}

// PLLMulBits returns the RCC_CFGR PLLMUL code, multiplier minus 2.
func (s Solution) PLLMulBits() uint32 {
	if s.source != SourcePLL {
		return 0
	}
	return s.pllMul - PLLMUL_MIN
}

// HPRE, PPRE1 and PPRE2 return the RCC_CFGR prescaler codes.
func (s Solution) HPRE() uint32  { return s.hpre }
func (s Solution) PPRE1() uint32 { return s.ppre1 }
func (s Solution) PPRE2() uint32 { return s.ppre2 }

// Latency returns the flash wait states the system clock needs.
func (s Solution) Latency() uint32 { return s.latency }

func (s Solution) SysClk() units.Hertz { return s.sysclk }
func (s Solution) HCLK() units.Hertz   { return s.hclk }
func (s Solution) PCLK1() units.Hertz  { return s.pclk1 }
func (s Solution) PCLK2() units.Hertz  { return s.pclk2 }

// UsesHSE reports whether the HSE feeds the system clock, directly or
// through the PLL.
func (s Solution) UsesHSE() bool { return s.hse != nil }

func (s Solution) String() string {
	src := s.source.String()
	if m, ok := s.PLL(); ok {
		in := "HSI/2"
		if s.hse != nil {
			in = fmt.Sprintf("HSE/%d", s.hse.divider)
		}
		src = fmt.Sprintf("PLL(%s x%d)", in, m)
	}
	return fmt.Sprintf("sysclk=%v (%s) hclk=%v pclk1=%v pclk2=%v hpre=%04b ppre1=%03b ppre2=%03b latency=%d",
		s.sysclk, src, s.hclk, s.pclk1, s.pclk2, s.hpre, s.ppre1, s.ppre2, s.latency)
}

type bucket struct {
	max uint32 // largest ratio mapped to div
	div uint32
}

var (
	ahbBuckets = []bucket{
		{1, 1}, {2, 2}, {5, 4}, {11, 8}, {39, 16},
		{95, 64}, {191, 128}, {383, 256}, {math.MaxUint32, 512},
	}
	apbBuckets = []bucket{
		{1, 1}, {2, 2}, {5, 4}, {11, 8}, {math.MaxUint32, 16},
	}
)

func pick(bs []bucket, ratio uint32) uint32 {
	for _, b := range bs {
		if ratio <= b.max {
			return b.div
		}
	}
	return bs[len(bs)-1].div
}

// ahbPrescaler maps a sysclk/hclk ratio to the HPRE code and the divider
// it selects. HPRE has no /32 setting.
func ahbPrescaler(ratio uint32) (bits, div uint32) {
	div = pick(ahbBuckets, ratio)
	bits = 0b0111 + uint32(mathx.Log2(div))
	if div >= 64 {
		bits--
	}
	return bits, div
}

// apbPrescaler maps an hclk/pclk ratio to the PPRE code and its divider.
func apbPrescaler(ratio uint32) (bits, div uint32) {
	div = pick(apbBuckets, ratio)
	return 0b011 + uint32(mathx.Log2(div)), div
}

// HPREDivider returns the divider selected by an HPRE code.
func HPREDivider(bits uint32) uint32 {
	if bits < 0b1000 {
		return 1
	}
	n := bits - 0b0111
	if n >= 5 {
		n++
	}
	return 1 << n
}

// PPREDivider returns the divider selected by a PPRE code.
func PPREDivider(bits uint32) uint32 {
	if bits < 0b100 {
		return 1
	}
	return 1 << (bits - 0b011)
}

// Solve works out the oscillator, PLL multiplier, prescalers and flash
// latency for c. Unset bus frequencies default to their feeding clock.
// The result is checked against the hardware limits, returning a
// *ConstraintError if any is exceeded.
func Solve(c *Cfgr) (Solution, error) {
	var s Solution
	for _, r := range []struct {
		name string
		v    optHz
	}{{"sysclk", c.sysclk}, {"hclk", c.hclk}, {"pclk1", c.pclk1}, {"pclk2", c.pclk2}} {
		if r.v.ok && r.v.f == 0 {
			return s, &ConstraintError{Clock: r.name, Reason: "requested frequency must be non-zero"}
		}
	}

	var sysclk uint64
	if c.hse != nil {
		h := *c.hse
		src := uint64(h.speed) / uint64(h.divider)
		if src == 0 {
			return s, &ConstraintError{Clock: "hse", Got: h.speed, Reason: "oscillator frequency must be non-zero"}
		}
		s.hse = &h
		if !c.sysclk.ok || c.sysclk.f == h.speed {
			// SW=HSE takes the oscillator before PREDIV.
			s.source = SourceHSE
			sysclk = uint64(h.speed)
		} else {
			// The PLL stays engaged even at x2: only SW=HSE bypasses it, and
			// that would skip PREDIV.
			mul := mathx.Clamp(uint64(c.sysclk.f)/src, PLLMUL_MIN, PLLMUL_MAX)
			s.source = SourcePLL
			s.pllMul = uint32(mul)
			sysclk = mul * src
		}
	} else {
		want := uint64(HSI)
		if c.sysclk.ok {
			want = uint64(c.sysclk.f)
		}
		// The PLL sees HSI/2.
		mul := mathx.Clamp(2*want/uint64(HSI), PLLMUL_MIN, PLLMUL_MAX)
		if mul == PLLMUL_MIN {
			s.source = SourceHSI
		} else {
			s.source = SourcePLL
			s.pllMul = uint32(mul)
		}
		sysclk = mul * uint64(HSI) / 2
	}
	if sysclk > uint64(SYSCLK_MAX) {
		got := units.Hertz(math.MaxUint32)
		if sysclk < math.MaxUint32 {
			got = units.Hertz(sysclk)
		}
		return s, &ConstraintError{Clock: "sysclk", Got: got, Limit: SYSCLK_MAX, Reason: "exceeds"}
	}
	s.sysclk = units.Hertz(sysclk)

	ratio := uint32(1)
	if c.hclk.ok {
		ratio = uint32(s.sysclk / c.hclk.f)
		if ratio == 0 {
			return s, &ConstraintError{Clock: "hclk", Got: c.hclk.f, Limit: s.sysclk, Reason: "higher than sysclk"}
		}
	}
	var div uint32
	s.hpre, div = ahbPrescaler(ratio)
	s.hclk = s.sysclk / units.Hertz(div)
	if s.hclk > HCLK_MAX {
		return s, &ConstraintError{Clock: "hclk", Got: s.hclk, Limit: HCLK_MAX, Reason: "exceeds"}
	}

	var err error
	if s.ppre1, s.pclk1, err = apbClock("pclk1", s.hclk, c.pclk1, PCLK1_MAX); err != nil {
		return s, err
	}
	if s.ppre2, s.pclk2, err = apbClock("pclk2", s.hclk, c.pclk2, PCLK2_MAX); err != nil {
		return s, err
	}

	switch {
	case s.sysclk <= LATENCY1_ABOVE:
		s.latency = 0
	case s.sysclk <= LATENCY2_ABOVE:
		s.latency = 1
	default:
		s.latency = 2
	}
	return s, nil
}

func apbClock(name string, hclk units.Hertz, want optHz, limit units.Hertz) (uint32, units.Hertz, error) {
	ratio := uint32(1)
	if want.ok {
		ratio = uint32(hclk / want.f)
		if ratio == 0 {
			return 0, 0, &ConstraintError{Clock: name, Got: want.f, Limit: hclk, Reason: "higher than hclk"}
		}
	}
	bits, div := apbPrescaler(ratio)
	f := hclk / units.Hertz(div)
	if f > limit {
		return 0, 0, &ConstraintError{Clock: name, Got: f, Limit: limit, Reason: "exceeds"}
	}
	return bits, f, nil
}
