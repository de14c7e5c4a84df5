package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Hertz is a frequency in cycles per second.
type Hertz uint32

const (
	Hz  Hertz = 1
	KHz Hertz = 1000 * Hz
	MHz Hertz = 1000 * KHz
)

func KiloHertz(n uint32) Hertz {
	return Hertz(n) * KHz
}

func MegaHertz(n uint32) Hertz {
	return Hertz(n) * MHz
}

// String formats f using the largest unit that divides it exactly, so
// 72000000 prints as "72MHz" and 12500 as "12500Hz".
func (f Hertz) String() string {
	switch {
	case f != 0 && f%MHz == 0:
		return fmt.Sprintf("%dMHz", f/MHz)
	case f != 0 && f%KHz == 0:
		return fmt.Sprintf("%dkHz", f/KHz)
	}
	return fmt.Sprintf("%dHz", uint32(f))
}

// Parse reads a frequency such as "8MHz", "32.768kHz", "36 mhz" or "1000".
// A bare number is taken to be in Hz.
func Parse(s string) (Hertz, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	mul := 1.0
	switch {
	case strings.HasSuffix(t, "mhz"):
		mul = float64(MHz)
		t = strings.TrimSuffix(t, "mhz")
	case strings.HasSuffix(t, "khz"):
		mul = float64(KHz)
		t = strings.TrimSuffix(t, "khz")
	case strings.HasSuffix(t, "hz"):
		t = strings.TrimSuffix(t, "hz")
	}
	t = strings.TrimSpace(t)
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("couldn't parse frequency %q: %v", s, err)
	}
	v *= mul
	if math.IsNaN(v) || v < 0 || v > float64(^uint32(0)) {
		return 0, fmt.Errorf("frequency %q out of range", s)
	}
	// Round to the nearest Hz; "32.768kHz" must not become 32767.
	return Hertz(v + 0.5), nil
}
